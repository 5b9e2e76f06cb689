package storage

import (
	"context"

	"github.com/fcamachol/chatflow/pkg/dberrors"
	"github.com/fcamachol/chatflow/pkg/models"
)

// CreateGroupPlaceholderIfNeeded inserts a group row with a NULL subject if
// absent. It never updates subject — only UpsertGroup may do that
// (spec §4.1, §3 Group invariant).
func (g *Gateway) CreateGroupPlaceholderIfNeeded(ctx context.Context, groupJID, instanceID string) error {
	const op = "storage.CreateGroupPlaceholderIfNeeded"
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO groups (group_jid, instance_id, subject, owner_jid, description, creation_ts, is_locked)
		VALUES ($1, $2, NULL, '', '', now(), false)
		ON CONFLICT (group_jid, instance_id) DO NOTHING`,
		groupJID, instanceID)
	if err != nil {
		return classify(op, err)
	}
	return nil
}

// UpsertGroup is the only operation that may write a non-null subject; it
// applies authoritative fields from a groups.upsert/groups.update event
// (spec §4.1, §4.2).
func (g *Gateway) UpsertGroup(ctx context.Context, group models.Group) (*models.Group, error) {
	const op = "storage.UpsertGroup"
	row := g.db.QueryRowContext(ctx, `
		INSERT INTO groups (group_jid, instance_id, subject, owner_jid, description, creation_ts, is_locked)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (group_jid, instance_id) DO UPDATE SET
			subject     = EXCLUDED.subject,
			owner_jid   = EXCLUDED.owner_jid,
			description = EXCLUDED.description,
			is_locked   = EXCLUDED.is_locked
		RETURNING group_jid, instance_id, subject, owner_jid, description, creation_ts, is_locked`,
		group.GroupJID, group.InstanceID, group.Subject, group.OwnerJID,
		group.Description, group.CreationTS, group.IsLocked)

	var out models.Group
	err := row.Scan(&out.GroupJID, &out.InstanceID, &out.Subject, &out.OwnerJID,
		&out.Description, &out.CreationTS, &out.IsLocked)
	if err != nil {
		return nil, classify(op, err)
	}
	return &out, nil
}

// ApplyParticipantAction adds/removes/promotes/demotes a group participant
// (spec §3 GroupParticipant).
func (g *Gateway) ApplyParticipantAction(ctx context.Context, groupJID, participantJID, instanceID string, action models.ParticipantAction) error {
	const op = "storage.ApplyParticipantAction"

	switch action {
	case models.ParticipantRemove:
		_, err := g.db.ExecContext(ctx, `
			DELETE FROM group_participants
			WHERE group_jid = $1 AND participant_jid = $2 AND instance_id = $3`,
			groupJID, participantJID, instanceID)
		if err != nil {
			return classify(op, err)
		}
		return nil
	case models.ParticipantAdd:
		_, err := g.db.ExecContext(ctx, `
			INSERT INTO group_participants (group_jid, participant_jid, instance_id, is_admin, is_super_admin)
			VALUES ($1, $2, $3, false, false)
			ON CONFLICT (group_jid, participant_jid, instance_id) DO NOTHING`,
			groupJID, participantJID, instanceID)
		if err != nil {
			return classify(op, err)
		}
		return nil
	case models.ParticipantPromote, models.ParticipantDemote:
		isAdmin := action == models.ParticipantPromote
		res, err := g.db.ExecContext(ctx, `
			UPDATE group_participants SET is_admin = $4
			WHERE group_jid = $1 AND participant_jid = $2 AND instance_id = $3`,
			groupJID, participantJID, instanceID, isAdmin)
		if err != nil {
			return classify(op, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return classify(op, err)
		}
		if n == 0 {
			return dberrors.FKViolation(op, nil)
		}
		return nil
	default:
		return dberrors.Permanent(op, nil)
	}
}

// ListGroupsMissingSubject returns every group row for instanceID whose
// subject is still NULL — created only as a placeholder by message/chat
// ingestion and never reconciled by an authoritative groups.upsert event.
// Backs the one-shot sync-groups admin operation (spec §6).
func (g *Gateway) ListGroupsMissingSubject(ctx context.Context, instanceID string) ([]models.Group, error) {
	const op = "storage.ListGroupsMissingSubject"
	rows, err := g.db.QueryContext(ctx, `
		SELECT group_jid, instance_id, subject, owner_jid, description, creation_ts, is_locked
		FROM groups
		WHERE instance_id = $1 AND subject IS NULL`,
		instanceID)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []models.Group
	for rows.Next() {
		var grp models.Group
		if err := rows.Scan(&grp.GroupJID, &grp.InstanceID, &grp.Subject, &grp.OwnerJID,
			&grp.Description, &grp.CreationTS, &grp.IsLocked); err != nil {
			return nil, classify(op, err)
		}
		out = append(out, grp)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

// GroupExists reports whether a group row already exists.
func (g *Gateway) GroupExists(ctx context.Context, groupJID, instanceID string) (bool, error) {
	const op = "storage.GroupExists"
	var exists bool
	err := g.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM groups WHERE group_jid = $1 AND instance_id = $2)`,
		groupJID, instanceID).Scan(&exists)
	if err != nil {
		return false, classify(op, err)
	}
	return exists, nil
}
