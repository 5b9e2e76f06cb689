package api

import (
	"context"

	"github.com/fcamachol/chatflow/pkg/models"
	"github.com/fcamachol/chatflow/pkg/provider"
)

// Gateway is the subset of storage.Gateway the HTTP layer depends on
// directly, beyond what pkg/webhook, pkg/rules, and pkg/recovery already
// narrow for themselves.
type Gateway interface {
	GetInstance(ctx context.Context, instanceID string) (*models.Instance, error)
	InsertFailedEvent(ctx context.Context, fe models.FailedEvent) (*models.FailedEvent, error)
	ListGroupsMissingSubject(ctx context.Context, instanceID string) ([]models.Group, error)
	UpsertGroup(ctx context.Context, group models.Group) (*models.Group, error)
}

// GroupSyncer is the provider collaborator the sync-groups admin operation
// uses to fetch authoritative group subjects (spec §6).
type GroupSyncer interface {
	FetchGroups(ctx context.Context, instance *models.Instance) ([]provider.GroupMetadata, error)
}
