// Package provider is the outbound chat-platform API client (spec §6):
// sending text messages and fetching media base64, the "external
// collaborator" referenced throughout spec.md §1/§4.6. Modeled as a thin
// stdlib net/http wrapper the way teacher's pkg/slack/client.go wraps
// slack-go/slack, since no ecosystem SDK exists for this wire protocol.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fcamachol/chatflow/pkg/config"
	"github.com/fcamachol/chatflow/pkg/dberrors"
	"github.com/fcamachol/chatflow/pkg/models"
)

// Client is a thin wrapper around the chat-platform HTTP API.
type Client struct {
	http    *http.Client
	baseURL string
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient builds a Client from the process-wide provider configuration.
// A per-instance Client is not needed: every call takes the target
// *models.Instance and uses its own APIBaseURL when set, falling back to
// cfg.BaseURL otherwise. The apikey header always carries the instance's
// own APIKey; cfg.GlobalAPIKey is not used.
func NewClient(cfg config.ProviderConfig) *Client {
	return &Client{
		http:    &http.Client{Timeout: cfg.CallTimeout},
		baseURL: cfg.BaseURL,
		timeout: cfg.CallTimeout,
		logger:  slog.Default().With("component", "provider-client"),
	}
}

type sendTextKey struct {
	ID string `json:"id,omitempty"`
}

type sendTextQuoted struct {
	Key sendTextKey `json:"key"`
}

type sendTextOptions struct {
	Quoted *sendTextQuoted `json:"quoted,omitempty"`
}

type sendTextPayload struct {
	Number      string          `json:"number"`
	TextMessage sendTextBody    `json:"textMessage"`
	Options     *sendTextOptions `json:"options,omitempty"`
}

type sendTextBody struct {
	Text string `json:"text"`
}

// SendText posts {base}/message/sendText/{instance_name} with the
// instance's apikey header (spec §6). Satisfies action.Provider.
func (c *Client) SendText(ctx context.Context, instance *models.Instance, chatID, text string) error {
	return c.sendText(ctx, instance, chatID, text, "")
}

// SendTextQuoted is the same call with a quoted-message reference attached
// (spec §6's optional options.quoted.key.id) — used when a confirmation
// message should thread off the triggering message.
func (c *Client) SendTextQuoted(ctx context.Context, instance *models.Instance, chatID, text, quotedMessageID string) error {
	return c.sendText(ctx, instance, chatID, text, quotedMessageID)
}

func (c *Client) sendText(ctx context.Context, instance *models.Instance, chatID, text, quotedMessageID string) error {
	const op = "provider.SendText"
	payload := sendTextPayload{Number: chatID, TextMessage: sendTextBody{Text: text}}
	if quotedMessageID != "" {
		payload.Options = &sendTextOptions{Quoted: &sendTextQuoted{Key: sendTextKey{ID: quotedMessageID}}}
	}

	url := fmt.Sprintf("%s/message/sendText/%s", c.resolveBaseURL(instance), instance.InstanceID)
	_, err := c.post(ctx, instance, url, payload)
	if err != nil {
		return dberrors.New(op, classifyErr(err), err)
	}
	return nil
}

type getMediaPayload struct {
	Message getMediaMessage `json:"message"`
}

type getMediaMessage struct {
	Key sendTextKey `json:"key"`
}

type getMediaResponse struct {
	Base64 string `json:"base64"`
}

// FetchMedia posts {base}/chat/getBase64/{instance_name} to retrieve the
// base64 payload for a media message not carried in the inbound webhook
// (spec §6). Media download mechanics beyond this interface are out of
// scope (spec.md §1 Non-goals).
func (c *Client) FetchMedia(ctx context.Context, instance *models.Instance, messageID string) (string, error) {
	const op = "provider.FetchMedia"
	url := fmt.Sprintf("%s/chat/getBase64/%s", c.resolveBaseURL(instance), instance.InstanceID)
	body, err := c.post(ctx, instance, url, getMediaPayload{Message: getMediaMessage{Key: sendTextKey{ID: messageID}}})
	if err != nil {
		return "", dberrors.New(op, classifyErr(err), err)
	}

	var resp getMediaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", dberrors.Permanent(op, fmt.Errorf("decode response: %w", err))
	}
	return resp.Base64, nil
}

type fetchGroupsEntry struct {
	GroupJID    string `json:"id"`
	Subject     string `json:"subject"`
	OwnerJID    string `json:"owner"`
	Description string `json:"desc"`
	Creation    int64  `json:"creation"`
	IsLocked    bool   `json:"restrict"`
}

// GroupMetadata is one authoritative group record returned by FetchGroups.
type GroupMetadata struct {
	GroupJID    string
	Subject     string
	OwnerJID    string
	Description string
	CreationTS  time.Time
	IsLocked    bool
}

// FetchGroups retrieves the authoritative subject/metadata for every group
// the instance belongs to, modeled on the same getBase64-style GET-as-POST
// convention spec §6 documents for media fetch. Backs the one-shot
// sync-groups admin operation, since spec §6 does not itself describe a
// wire shape for it — group subjects otherwise only arrive opportunistically
// via groups.upsert/update webhook events.
func (c *Client) FetchGroups(ctx context.Context, instance *models.Instance) ([]GroupMetadata, error) {
	const op = "provider.FetchGroups"
	url := fmt.Sprintf("%s/group/fetchAllGroups/%s", c.resolveBaseURL(instance), instance.InstanceID)
	body, err := c.post(ctx, instance, url, struct{}{})
	if err != nil {
		return nil, dberrors.New(op, classifyErr(err), err)
	}

	var entries []fetchGroupsEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, dberrors.Permanent(op, fmt.Errorf("decode response: %w", err))
	}

	out := make([]GroupMetadata, 0, len(entries))
	for _, e := range entries {
		out = append(out, GroupMetadata{
			GroupJID:    e.GroupJID,
			Subject:     e.Subject,
			OwnerJID:    e.OwnerJID,
			Description: e.Description,
			CreationTS:  time.Unix(e.Creation, 0),
			IsLocked:    e.IsLocked,
		})
	}
	return out, nil
}

func (c *Client) resolveBaseURL(instance *models.Instance) string {
	if instance.APIBaseURL != "" {
		return instance.APIBaseURL
	}
	return c.baseURL
}

func (c *Client) post(ctx context.Context, instance *models.Instance, url string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", instance.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("provider call failed", "url", url, "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("provider returned %d: %s", resp.StatusCode, respBody)
	}
	if resp.StatusCode >= 400 {
		return nil, permanentStatusError{status: resp.StatusCode, body: string(respBody)}
	}
	return respBody, nil
}

// permanentStatusError marks a 4xx provider response as non-retryable —
// the request itself is malformed or unauthorized, retrying it with the
// same arguments would fail identically (spec §7's "permanent" class).
type permanentStatusError struct {
	status int
	body   string
}

func (e permanentStatusError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.status, e.body)
}

func classifyErr(err error) error {
	var perm permanentStatusError
	if errors.As(err, &perm) {
		return dberrors.ErrPermanent
	}
	return dberrors.ErrTransient
}
