package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fcamachol/chatflow/pkg/dberrors"
	"github.com/fcamachol/chatflow/pkg/fanout"
	"github.com/fcamachol/chatflow/pkg/models"
)

// Adapter translates raw provider payloads into storage-gateway writes,
// materializing dependency rows in the order spec §4.2 requires before
// ever inserting a message (spec's fix for the FK-violation and
// placeholder-overwrite bug classes).
type Adapter struct {
	gw     Gateway
	fanout Fanout
}

// New builds an Adapter. fanout may be nil — real-time push is best-effort
// and its absence (e.g. in a test harness) must not block ingestion.
func New(gw Gateway, fan Fanout) *Adapter {
	return &Adapter{gw: gw, fanout: fan}
}

// ProcessIncomingEvent dispatches a decoded Envelope to the handler for
// its event type (spec §4.2's processIncomingEvent). Any error is the
// caller's signal to persist the event into the failed-message bucket
// (spec §4.8) — ProcessIncomingEvent itself does not do so, since the
// HTTP layer needs the raw body for that and this function only sees the
// already-decoded envelope.
func (a *Adapter) ProcessIncomingEvent(ctx context.Context, instanceID string, env Envelope) error {
	log := slog.With("instance_id", instanceID, "event", env.Event)

	switch env.Event {
	case EventMessagesUpsert, EventMessagesUpdate:
		return a.handleMessageEvent(ctx, instanceID, env.Data)
	case EventContactsUpsert, EventContactsUpdate:
		return a.handleContactEvent(ctx, instanceID, env.Data)
	case EventChatsUpsert, EventChatsUpdate:
		return a.handleChatEvent(ctx, instanceID, env.Data)
	case EventGroupsUpsert, EventGroupsUpdate:
		return a.handleGroupEvent(ctx, instanceID, env.Data)
	case EventGroupParticipants:
		return a.handleParticipantsEvent(ctx, instanceID, env.Data)
	case EventCall:
		return a.handleCallEvent(ctx, instanceID, env.Data)
	case EventConnectionUpdate:
		return a.handleConnectionEvent(ctx, instanceID, env.Data)
	case EventMessagesDelete:
		return a.handleMessageDelete(ctx, instanceID, env.Data)
	default:
		log.Warn("webhook: unrecognized event type")
		return nil
	}
}

func (a *Adapter) handleMessageEvent(ctx context.Context, instanceID string, raw json.RawMessage) error {
	msg, err := decode[messagePayload](raw)
	if err != nil {
		return fmt.Errorf("decode message payload: %w", err)
	}

	ownerJID, err := a.ownerJID(ctx, instanceID)
	if err != nil {
		return fmt.Errorf("resolve instance owner: %w", err)
	}

	if msg.ReactionMessage != nil {
		return a.handleReaction(ctx, instanceID, ownerJID, msg)
	}
	return a.handleMessage(ctx, instanceID, ownerJID, msg)
}

// ownerJID resolves the instance's owner_jid, used by isFromMe's
// sender_jid == instance.owner_jid branch (spec §4.2).
func (a *Adapter) ownerJID(ctx context.Context, instanceID string) (string, error) {
	inst, err := a.gw.GetInstance(ctx, instanceID)
	if err != nil {
		return "", err
	}
	return inst.OwnerJID, nil
}

// handleReaction extracts the reactor JID in priority order
// (key.participant → explicit sender field → key.remoteJid) and upserts
// the reaction row. An empty text denotes removal and is retained as-is
// (spec §4.2, §3).
func (a *Adapter) handleReaction(ctx context.Context, instanceID, ownerJID string, msg messagePayload) error {
	rm := msg.ReactionMessage

	messageID, ok := normalizeID(rm.Key.ID)
	if !ok {
		return a.reportMalformed(ctx, instanceID, "reaction message id unresolvable")
	}

	reactorJID := firstNonEmpty(rm.Key.Participant, msg.Sender, rm.Key.RemoteJID)
	reactorJID, ok = normalizeID(reactorJID)
	if !ok {
		return a.reportMalformed(ctx, instanceID, "reactor jid unresolvable")
	}

	reaction := models.MessageReaction{
		MessageID:     messageID,
		InstanceID:    instanceID,
		ReactorJID:    reactorJID,
		ReactionEmoji: rm.Text,
		FromMe:        isFromMe(rm.Key, reactorJID, ownerJID),
		Timestamp:     normalizeTimestamp(msg.MessageTimestamp),
	}

	stored, err := a.gw.UpsertReaction(ctx, reaction)
	if err != nil {
		if errors.Is(err, dberrors.ErrFKViolation) {
			return a.reportDependencyFailure(ctx, instanceID, "reaction", err)
		}
		return err
	}

	if a.fanout != nil && stored.ReactionEmoji != "" {
		_ = a.fanout.PublishNewReaction(ctx, instanceID, fanout.NewReactionPayload{
			MessageID:  stored.MessageID,
			ReactorJID: stored.ReactorJID,
			Emoji:      stored.ReactionEmoji,
		})
	}
	return nil
}

// handleMessage materializes every dependency row a message requires
// before inserting the message itself (spec §4.2's critical ordering):
// sender contact, chat-peer contact (for groups, distinct from the
// sender), the chat row, and — for groups — a placeholder group row.
func (a *Adapter) handleMessage(ctx context.Context, instanceID, ownerJID string, msg messagePayload) error {
	messageID, ok := normalizeID(msg.Key.ID)
	if !ok {
		return a.reportMalformed(ctx, instanceID, "message id unresolvable")
	}
	chatID, ok := normalizeID(msg.Key.RemoteJID)
	if !ok {
		return a.reportMalformed(ctx, instanceID, "chat id unresolvable")
	}

	senderJID := chatID
	if !msg.Key.FromMe && msg.Key.Participant != "" {
		// Group message: the participant field names the actual sender;
		// RemoteJID names the group.
		if jid, ok := normalizeID(msg.Key.Participant); ok {
			senderJID = jid
		}
	}

	if err := a.materializeDependencies(ctx, instanceID, senderJID, chatID, msg.PushName); err != nil {
		return a.reportDependencyFailure(ctx, instanceID, "message", err)
	}

	message := models.Message{
		MessageID:       messageID,
		InstanceID:      instanceID,
		ChatID:          chatID,
		SenderJID:       senderJID,
		FromMe:          isFromMe(msg.Key, senderJID, ownerJID),
		MessageType:     models.MessageType(msg.MessageType),
		Content:         msg.Content,
		Timestamp:       normalizeTimestamp(msg.MessageTimestamp),
		QuotedMessageID: msg.QuotedMessageID,
		SourcePlatform:  "whatsapp",
	}
	if message.MessageType == "" {
		message.MessageType = models.MessageText
	}

	stored, err := a.gw.UpsertMessage(ctx, message)
	if err != nil {
		if errors.Is(err, dberrors.ErrFKViolation) {
			return a.reportDependencyFailure(ctx, instanceID, "message", err)
		}
		return err
	}

	if a.fanout != nil {
		_ = a.fanout.PublishNewMessage(ctx, instanceID, fanout.NewMessagePayload{
			MessageID: stored.MessageID,
			ChatID:    stored.ChatID,
			SenderJID: stored.SenderJID,
			Content:   stored.Content,
			Timestamp: stored.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return nil
}

// materializeDependencies performs the §4.2 ordering: sender contact,
// chat-peer contact (only if distinct from the sender, i.e. a group),
// the chat row, then — for groups — a placeholder.
func (a *Adapter) materializeDependencies(ctx context.Context, instanceID, senderJID, chatID, pushName string) error {
	if _, err := a.gw.UpsertContact(ctx, models.Contact{
		JID:        senderJID,
		InstanceID: instanceID,
		PushName:   pushName,
	}); err != nil {
		return fmt.Errorf("upsert sender contact: %w", err)
	}

	if chatID != senderJID {
		if _, err := a.gw.UpsertContact(ctx, models.Contact{
			JID:        chatID,
			InstanceID: instanceID,
		}); err != nil {
			return fmt.Errorf("upsert chat-peer contact: %w", err)
		}
	}

	chatType := chatTypeFromJID(chatID)
	if _, err := a.gw.UpsertChat(ctx, models.Chat{
		ChatID:     chatID,
		InstanceID: instanceID,
		Type:       chatType,
	}); err != nil {
		return fmt.Errorf("upsert chat: %w", err)
	}

	if chatType == models.ChatGroup {
		if err := a.gw.CreateGroupPlaceholderIfNeeded(ctx, chatID, instanceID); err != nil {
			return fmt.Errorf("create group placeholder: %w", err)
		}
	}
	return nil
}

func (a *Adapter) handleMessageDelete(ctx context.Context, instanceID string, raw json.RawMessage) error {
	key, err := decode[messageKey](raw)
	if err != nil {
		return fmt.Errorf("decode delete payload: %w", err)
	}
	messageID, ok := normalizeID(key.ID)
	if !ok {
		return a.reportMalformed(ctx, instanceID, "delete message id unresolvable")
	}
	// messages.delete never hard-deletes; it marks the row revoked,
	// preserving audit history (spec §4.2).
	return a.gw.MarkMessageRevoked(ctx, messageID, instanceID)
}

func (a *Adapter) handleContactEvent(ctx context.Context, instanceID string, raw json.RawMessage) error {
	c, err := decode[contactPayload](raw)
	if err != nil {
		return fmt.Errorf("decode contact payload: %w", err)
	}
	jid, ok := normalizeID(c.JID)
	if !ok {
		return a.reportMalformed(ctx, instanceID, "contact jid unresolvable")
	}
	_, err = a.gw.UpsertContact(ctx, models.Contact{
		JID:               jid,
		InstanceID:        instanceID,
		PushName:          c.PushName,
		VerifiedName:      c.VerifiedName,
		ProfilePictureURL: c.ProfilePictureURL,
		IsBusiness:        c.IsBusiness,
	})
	return err
}

func (a *Adapter) handleChatEvent(ctx context.Context, instanceID string, raw json.RawMessage) error {
	c, err := decode[chatPayload](raw)
	if err != nil {
		return fmt.Errorf("decode chat payload: %w", err)
	}
	chatID, ok := normalizeID(c.ChatID)
	if !ok {
		return a.reportMalformed(ctx, instanceID, "chat id unresolvable")
	}

	chatType := chatTypeFromJID(chatID)
	if chatType == models.ChatGroup {
		if err := a.gw.CreateGroupPlaceholderIfNeeded(ctx, chatID, instanceID); err != nil {
			return a.reportDependencyFailure(ctx, instanceID, "chat", err)
		}
	}

	_, err = a.gw.UpsertChat(ctx, models.Chat{
		ChatID:        chatID,
		InstanceID:    instanceID,
		Type:          chatType,
		UnreadCount:   c.UnreadCount,
		Archived:      c.Archived,
		Pinned:        c.Pinned,
		LastMessageTS: normalizeTimestamp(c.LastMessageTS),
	})
	return err
}

// handleGroupEvent is the only path that may write a non-null subject
// (spec §4.2): groups.upsert/update is authoritative, unlike the
// placeholder created opportunistically by message/chat handling.
func (a *Adapter) handleGroupEvent(ctx context.Context, instanceID string, raw json.RawMessage) error {
	g, err := decode[groupPayload](raw)
	if err != nil {
		return fmt.Errorf("decode group payload: %w", err)
	}
	groupJID, ok := normalizeID(g.GroupJID)
	if !ok {
		return a.reportMalformed(ctx, instanceID, "group jid unresolvable")
	}

	subject := g.Subject
	_, err = a.gw.UpsertGroup(ctx, models.Group{
		GroupJID:    groupJID,
		InstanceID:  instanceID,
		Subject:     &subject,
		OwnerJID:    g.OwnerJID,
		Description: g.Description,
		CreationTS:  normalizeTimestamp(g.CreationTS),
		IsLocked:    g.IsLocked,
	})
	return err
}

func (a *Adapter) handleParticipantsEvent(ctx context.Context, instanceID string, raw json.RawMessage) error {
	p, err := decode[participantUpdatePayload](raw)
	if err != nil {
		return fmt.Errorf("decode participants payload: %w", err)
	}
	groupJID, ok := normalizeID(p.GroupJID)
	if !ok {
		return a.reportMalformed(ctx, instanceID, "participants group jid unresolvable")
	}

	action, ok := participantActionFor(p.Action)
	if !ok {
		return a.reportMalformed(ctx, instanceID, fmt.Sprintf("unrecognized participant action %q", p.Action))
	}

	for _, raw := range p.Participants {
		participantJID, ok := normalizeID(raw)
		if !ok {
			slog.Warn("webhook: skipping unresolvable participant jid", "instance_id", instanceID, "group_jid", groupJID)
			continue
		}
		if err := a.gw.ApplyParticipantAction(ctx, groupJID, participantJID, instanceID, action); err != nil {
			return err
		}
	}
	return nil
}

func participantActionFor(raw string) (models.ParticipantAction, bool) {
	switch raw {
	case string(models.ParticipantAdd):
		return models.ParticipantAdd, true
	case string(models.ParticipantRemove):
		return models.ParticipantRemove, true
	case string(models.ParticipantPromote):
		return models.ParticipantPromote, true
	case string(models.ParticipantDemote):
		return models.ParticipantDemote, true
	default:
		return "", false
	}
}

func (a *Adapter) handleCallEvent(ctx context.Context, instanceID string, raw json.RawMessage) error {
	c, err := decode[callPayload](raw)
	if err != nil {
		return fmt.Errorf("decode call payload: %w", err)
	}
	chatID, ok := normalizeID(c.ChatID)
	if !ok {
		return a.reportMalformed(ctx, instanceID, "call chat id unresolvable")
	}
	fromJID, ok := normalizeID(c.FromJID)
	if !ok {
		return a.reportMalformed(ctx, instanceID, "call from jid unresolvable")
	}

	_, err = a.gw.UpsertCallLog(ctx, models.CallLog{
		CallLogID:       c.CallLogID,
		InstanceID:      instanceID,
		ChatID:          chatID,
		FromJID:         fromJID,
		FromMe:          c.FromMe,
		StartTS:         normalizeTimestamp(c.StartTS),
		IsVideo:         c.IsVideo,
		DurationSeconds: c.DurationSeconds,
		Outcome:         models.CallOutcome(c.Status),
	})
	return err
}

func (a *Adapter) handleConnectionEvent(ctx context.Context, instanceID string, raw json.RawMessage) error {
	c, err := decode[connectionUpdatePayload](raw)
	if err != nil {
		return fmt.Errorf("decode connection payload: %w", err)
	}
	return a.gw.UpdateConnectionState(ctx, instanceID, models.ConnectionState(c.State))
}

// reportMalformed persists an event whose IDs could not be resolved into
// the failed-message bucket for later reconciliation (spec §4.2, §4.8)
// rather than attempting heuristic recovery.
func (a *Adapter) reportMalformed(ctx context.Context, instanceID, reason string) error {
	_, err := a.gw.InsertFailedEvent(ctx, models.FailedEvent{
		InstanceID: instanceID,
		EventType:  "malformed",
		Reason:     reason,
	})
	if err != nil {
		return fmt.Errorf("record malformed event (%s): %w", reason, err)
	}
	return nil
}

// reportDependencyFailure persists an event whose dependency
// materialization failed even after the ordered upsert sequence (spec
// §4.8's "missing dependency after retries" bucket). Like reportMalformed,
// it returns nil on success: the failure is already durably recorded here,
// so the HTTP layer must not record it a second time under a different
// event-type label.
func (a *Adapter) reportDependencyFailure(ctx context.Context, instanceID, eventType string, cause error) error {
	_, err := a.gw.InsertFailedEvent(ctx, models.FailedEvent{
		InstanceID: instanceID,
		EventType:  eventType,
		Reason:     cause.Error(),
	})
	if err != nil {
		return fmt.Errorf("record dependency failure: %w", err)
	}
	return nil
}

// isFromMe implements spec §4.2: a message is from the instance owner iff
// key.fromMe is true OR sender_jid == instance.owner_jid.
func isFromMe(key messageKey, senderJID, ownerJID string) bool {
	return key.FromMe || (ownerJID != "" && senderJID == ownerJID)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
