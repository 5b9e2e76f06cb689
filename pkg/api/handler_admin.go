package api

import (
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/fcamachol/chatflow/pkg/models"
)

// syncGroupsHandler handles POST /admin/sync-groups/{instance} (spec §6):
// a one-shot reconciliation of every placeholder group (subject still NULL)
// against the provider's authoritative group list.
func (s *Server) syncGroupsHandler(c *echo.Context) error {
	instanceID := c.Param("instance")
	if instanceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "instance required")
	}
	ctx := c.Request().Context()

	instance, err := s.gw.GetInstance(ctx, instanceID)
	if err != nil {
		return mapGatewayError(err)
	}

	missing, err := s.gw.ListGroupsMissingSubject(ctx, instanceID)
	if err != nil {
		return mapGatewayError(err)
	}
	if len(missing) == 0 {
		return c.JSON(http.StatusOK, SyncGroupsResponse{Synced: 0})
	}

	remote, err := s.groupSyncer.FetchGroups(ctx, instance)
	if err != nil {
		return mapGatewayError(err)
	}
	bySubject := make(map[string]int, len(remote))
	for i, g := range remote {
		bySubject[g.GroupJID] = i
	}

	synced := 0
	for _, placeholder := range missing {
		idx, ok := bySubject[placeholder.GroupJID]
		if !ok {
			continue
		}
		authoritative := remote[idx]
		subject := authoritative.Subject
		if _, err := s.gw.UpsertGroup(ctx, models.Group{
			GroupJID:    authoritative.GroupJID,
			InstanceID:  instanceID,
			Subject:     &subject,
			OwnerJID:    authoritative.OwnerJID,
			Description: authoritative.Description,
			CreationTS:  authoritative.CreationTS,
			IsLocked:    authoritative.IsLocked,
		}); err != nil {
			slog.Error("admin: sync-groups upsert failed", "group_jid", authoritative.GroupJID, "error", err)
			continue
		}
		synced++
	}

	return c.JSON(http.StatusOK, SyncGroupsResponse{Synced: synced})
}

// reprocessHandler handles POST /admin/reprocess (spec §6): requeues
// dead-letter items, optionally filtered by event type.
func (s *Server) reprocessHandler(c *echo.Context) error {
	var req ReprocessRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	n, err := s.recovery.Reprocess(c.Request().Context(), req.EventType)
	if err != nil {
		return mapGatewayError(err)
	}
	return c.JSON(http.StatusOK, ReprocessResponse{Requeued: n})
}
