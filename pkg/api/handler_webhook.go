package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/fcamachol/chatflow/pkg/models"
	"github.com/fcamachol/chatflow/pkg/webhook"
)

// rawEnvelope mirrors spec §6's received event envelope. Only event/data
// are consumed downstream; instance comes from the path, not the body, so
// a single handler serves both `/webhook/{instance}` and
// `/webhook/{instance}/{event_type}`.
type rawEnvelope struct {
	Event webhook.EventType `json:"event"`
	Data  json.RawMessage   `json:"data"`
}

// webhookHandler handles POST /webhook/{instance}[/{event_type}] (spec §6).
// The signature header MUST be validated against the raw body; a mismatch
// returns 401. Any other failure still returns 200 to prevent the provider
// from entering a retry storm — the event is instead persisted into the
// recovery bucket for the background sweep to retry (spec §4.8).
func (s *Server) webhookHandler(c *echo.Context) error {
	instanceID := c.Param("instance")
	log := slog.With("instance_id", instanceID)

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	sigHeader := c.Request().Header.Get("X-Signature")
	if err := webhook.VerifySignature(body, sigHeader, s.webhookSecret); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}

	var env rawEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		log.Warn("webhook: malformed envelope", "error", err)
		s.recordFailedEvent(c, instanceID, "malformed", nil, "malformed envelope")
		return c.NoContent(http.StatusOK)
	}

	// Per-event path form may spell the event with dashes; normalize to the
	// dot-separated form pkg/webhook's EventType constants use (spec §6:
	// "both dot- and dash-separated spellings MUST be accepted").
	if pathEventType := c.Param("eventType"); pathEventType != "" && env.Event == "" {
		env.Event = webhook.EventType(strings.ReplaceAll(pathEventType, "-", "."))
	}
	env.Event = webhook.EventType(strings.ReplaceAll(string(env.Event), "-", "."))

	if err := s.webhook.ProcessIncomingEvent(c.Request().Context(), instanceID, webhook.Envelope{
		Event: env.Event,
		Data:  env.Data,
	}); err != nil {
		log.Warn("webhook: processing failed, recording for retry", "event", env.Event, "error", err)
		s.recordFailedEvent(c, instanceID, string(env.Event), env.Data, err.Error())
	}

	return c.NoContent(http.StatusOK)
}

func (s *Server) recordFailedEvent(c *echo.Context, instanceID, eventType string, data json.RawMessage, reason string) {
	if _, err := s.gw.InsertFailedEvent(c.Request().Context(), models.FailedEvent{
		InstanceID: instanceID,
		EventType:  eventType,
		RawPayload: data,
		Reason:     reason,
	}); err != nil {
		slog.Error("webhook: failed to record failed event", "instance_id", instanceID, "error", err)
	}
}
