package storage

import (
	"context"

	"github.com/fcamachol/chatflow/pkg/dberrors"
	"github.com/fcamachol/chatflow/pkg/models"
)

// GetInstance fetches an instance by ID. Instances are created by an
// external collaborator; the gateway only reads them and updates connection
// state (spec §3 Instance lifecycle).
func (g *Gateway) GetInstance(ctx context.Context, instanceID string) (*models.Instance, error) {
	const op = "storage.GetInstance"
	row := g.db.QueryRowContext(ctx, `
		SELECT instance_id, owner_jid, creator_user_id, api_base_url, api_key,
		       is_owner_cache, connection_state
		FROM instances WHERE instance_id = $1`, instanceID)

	var inst models.Instance
	err := row.Scan(&inst.InstanceID, &inst.OwnerJID, &inst.CreatorUserID, &inst.APIBaseURL,
		&inst.APIKey, &inst.IsOwner, &inst.ConnectionState)
	if err != nil {
		return nil, classify(op, err)
	}
	return &inst, nil
}

// UpdateConnectionState applies a connection.update event (spec §4.2).
func (g *Gateway) UpdateConnectionState(ctx context.Context, instanceID string, state models.ConnectionState) error {
	const op = "storage.UpdateConnectionState"
	res, err := g.db.ExecContext(ctx, `
		UPDATE instances SET connection_state = $2, updated_at = now()
		WHERE instance_id = $1`, instanceID, state)
	if err != nil {
		return classify(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(op, err)
	}
	if n == 0 {
		return dberrors.NotFound(op, nil)
	}
	return nil
}
