package storage

import (
	"context"

	"github.com/fcamachol/chatflow/pkg/models"
)

// UpsertContact merges push_name/profile_picture on update; is_me is
// sticky — once true it is never cleared by a later upsert (spec §4.1).
func (g *Gateway) UpsertContact(ctx context.Context, c models.Contact) (*models.Contact, error) {
	const op = "storage.UpsertContact"
	row := g.db.QueryRowContext(ctx, `
		INSERT INTO contacts (jid, instance_id, push_name, verified_name,
		                       profile_picture_url, is_business, is_me, is_blocked,
		                       first_seen_at, last_updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		ON CONFLICT (jid, instance_id) DO UPDATE SET
			push_name           = CASE WHEN EXCLUDED.push_name <> '' THEN EXCLUDED.push_name ELSE contacts.push_name END,
			verified_name       = CASE WHEN EXCLUDED.verified_name <> '' THEN EXCLUDED.verified_name ELSE contacts.verified_name END,
			profile_picture_url = CASE WHEN EXCLUDED.profile_picture_url <> '' THEN EXCLUDED.profile_picture_url ELSE contacts.profile_picture_url END,
			is_business         = EXCLUDED.is_business,
			is_me               = contacts.is_me OR EXCLUDED.is_me,
			is_blocked          = EXCLUDED.is_blocked,
			last_updated_at     = now()
		RETURNING jid, instance_id, push_name, verified_name, profile_picture_url,
		          is_business, is_me, is_blocked, first_seen_at, last_updated_at`,
		c.JID, c.InstanceID, c.PushName, c.VerifiedName, c.ProfilePictureURL,
		c.IsBusiness, c.IsMe, c.IsBlocked)

	var out models.Contact
	err := row.Scan(&out.JID, &out.InstanceID, &out.PushName, &out.VerifiedName,
		&out.ProfilePictureURL, &out.IsBusiness, &out.IsMe, &out.IsBlocked,
		&out.FirstSeenAt, &out.LastUpdatedAt)
	if err != nil {
		return nil, classify(op, err)
	}
	return &out, nil
}

// ContactExists reports whether a contact row already exists, used by the
// webhook adapter to decide whether dependency materialization is needed.
func (g *Gateway) ContactExists(ctx context.Context, jid, instanceID string) (bool, error) {
	const op = "storage.ContactExists"
	var exists bool
	err := g.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM contacts WHERE jid = $1 AND instance_id = $2)`,
		jid, instanceID).Scan(&exists)
	if err != nil {
		return false, classify(op, err)
	}
	return exists, nil
}

// GetContact looks up one contact row, used by the action executor to
// resolve a {{sender}} template placeholder to a display name.
func (g *Gateway) GetContact(ctx context.Context, jid, instanceID string) (*models.Contact, error) {
	const op = "storage.GetContact"
	row := g.db.QueryRowContext(ctx, `
		SELECT jid, instance_id, push_name, verified_name, profile_picture_url,
		       is_business, is_me, is_blocked, first_seen_at, last_updated_at
		FROM contacts WHERE jid = $1 AND instance_id = $2`,
		jid, instanceID)

	var c models.Contact
	err := row.Scan(&c.JID, &c.InstanceID, &c.PushName, &c.VerifiedName,
		&c.ProfilePictureURL, &c.IsBusiness, &c.IsMe, &c.IsBlocked,
		&c.FirstSeenAt, &c.LastUpdatedAt)
	if err != nil {
		return nil, classify(op, err)
	}
	return &c, nil
}
