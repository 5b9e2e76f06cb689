package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcamachol/chatflow/pkg/config"
	"github.com/fcamachol/chatflow/pkg/models"
	"github.com/fcamachol/chatflow/pkg/provider"
	"github.com/fcamachol/chatflow/pkg/recovery"
)

type fakeAdminGateway struct {
	instance      *models.Instance
	missingGroups []models.Group
	upserted      []models.Group
}

func (f *fakeAdminGateway) GetInstance(ctx context.Context, instanceID string) (*models.Instance, error) {
	return f.instance, nil
}
func (f *fakeAdminGateway) InsertFailedEvent(ctx context.Context, fe models.FailedEvent) (*models.FailedEvent, error) {
	return &fe, nil
}
func (f *fakeAdminGateway) ListGroupsMissingSubject(ctx context.Context, instanceID string) ([]models.Group, error) {
	return f.missingGroups, nil
}
func (f *fakeAdminGateway) UpsertGroup(ctx context.Context, group models.Group) (*models.Group, error) {
	f.upserted = append(f.upserted, group)
	return &group, nil
}

type fakeGroupSyncer struct {
	groups []provider.GroupMetadata
}

func (f *fakeGroupSyncer) FetchGroups(ctx context.Context, instance *models.Instance) ([]provider.GroupMetadata, error) {
	return f.groups, nil
}

func TestSyncGroupsHandler_NoPlaceholdersSyncsZero(t *testing.T) {
	gw := &fakeAdminGateway{instance: &models.Instance{InstanceID: "inst-1"}}
	syncer := &fakeGroupSyncer{}
	s := &Server{echo: echo.New(), gw: gw, groupSyncer: syncer}
	s.echo.POST("/admin/sync-groups/:instance", s.syncGroupsHandler)

	req := httptest.NewRequest(http.MethodPost, "/admin/sync-groups/inst-1", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp SyncGroupsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Synced)
	assert.Empty(t, gw.upserted)
}

func TestSyncGroupsHandler_ReconcilesMatchingPlaceholders(t *testing.T) {
	gw := &fakeAdminGateway{
		instance: &models.Instance{InstanceID: "inst-1"},
		missingGroups: []models.Group{
			{GroupJID: "120363@g.us", InstanceID: "inst-1"},
			{GroupJID: "999999@g.us", InstanceID: "inst-1"},
		},
	}
	syncer := &fakeGroupSyncer{groups: []provider.GroupMetadata{
		{GroupJID: "120363@g.us", Subject: "Family", OwnerJID: "owner@s.whatsapp.net"},
	}}
	s := &Server{echo: echo.New(), gw: gw, groupSyncer: syncer}
	s.echo.POST("/admin/sync-groups/:instance", s.syncGroupsHandler)

	req := httptest.NewRequest(http.MethodPost, "/admin/sync-groups/inst-1", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp SyncGroupsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Synced)
	require.Len(t, gw.upserted, 1)
	assert.Equal(t, "120363@g.us", gw.upserted[0].GroupJID)
	require.NotNil(t, gw.upserted[0].Subject)
	assert.Equal(t, "Family", *gw.upserted[0].Subject)
}

type fakeRecoveryGateway struct {
	deadLetter []models.ActionQueueItem
	reprocessedIDs []int64
}

func (f *fakeRecoveryGateway) ListPendingFailedEvents(ctx context.Context, limit int) ([]models.FailedEvent, error) {
	return nil, nil
}
func (f *fakeRecoveryGateway) BackoffFailedEvent(ctx context.Context, id int64, backoffCapSeconds int) error {
	return nil
}
func (f *fakeRecoveryGateway) ResolveFailedEvent(ctx context.Context, id int64) error { return nil }
func (f *fakeRecoveryGateway) ListDeadLetterItems(ctx context.Context, eventType models.QueueEventType) ([]models.ActionQueueItem, error) {
	return f.deadLetter, nil
}
func (f *fakeRecoveryGateway) ReprocessDeadLetterItem(ctx context.Context, queueID int64) error {
	f.reprocessedIDs = append(f.reprocessedIDs, queueID)
	return nil
}

func TestReprocessHandler_RequeuesDeadLetterItems(t *testing.T) {
	gw := &fakeRecoveryGateway{deadLetter: []models.ActionQueueItem{{QueueID: 1}, {QueueID: 2}}}
	sweeper := recovery.NewSweeper(gw, nil, config.RecoveryConfig{}, nil)
	s := &Server{echo: echo.New(), recovery: sweeper}
	s.echo.POST("/admin/reprocess", s.reprocessHandler)

	req := httptest.NewRequest(http.MethodPost, "/admin/reprocess", strings.NewReader(`{"event_type":"create_task"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ReprocessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Requeued)
	assert.Equal(t, []int64{1, 2}, gw.reprocessedIDs)
}
