// Package calendar is the external calendar-provider collaborator (spec
// §4.6, §1): resolving a conferencing URL for a calendar event whose
// detected location is the videocall sentinel. Calendar-provider
// integration itself — OAuth, real meeting creation against Zoom/Meet/
// Jitsi APIs — is out of scope (spec.md §1 Non-goals list it as
// "specified only as interfaces"), so Resolver is a minimal conformant
// implementation of that interface rather than a real API client.
package calendar

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fcamachol/chatflow/pkg/models"
)

// defaultRoomHosts maps a detected platform keyword to the room-link host
// it would resolve against in a real integration.
var defaultRoomHosts = map[string]string{
	"zoom":  "zoom.us/j",
	"meet":  "meet.google.com",
	"teams": "teams.microsoft.com/l/meetup-join",
}

const defaultRoomHost = "meet.jit.si"

// Resolver satisfies action.Calendar. It generates a unique room URL per
// call rather than calling out to a real conferencing API.
type Resolver struct{}

// NewResolver builds a Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// ResolveConferenceURL returns a generated conferencing room URL for the
// given platform hint. instance is accepted to match action.Calendar's
// signature (a real integration would need it to select the owner's
// connected calendar account) but is unused by this stub.
func (r *Resolver) ResolveConferenceURL(ctx context.Context, instance *models.Instance, platform string) (string, error) {
	host := defaultRoomHost
	if h, ok := defaultRoomHosts[strings.ToLower(platform)]; ok {
		host = h
	}
	room := uuid.NewString()
	return fmt.Sprintf("https://%s/%s", host, room), nil
}
