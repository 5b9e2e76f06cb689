package models

import "time"

// Group is keyed by (group_jid, instance_id). subject is authoritative only
// when set by a groups.upsert event — see storage.UpsertGroup and
// storage.CreateGroupPlaceholderIfNeeded for the two distinct write paths.
type Group struct {
	GroupJID    string
	InstanceID  string
	Subject     *string // nil = placeholder, never overwritten by non-authoritative writers
	OwnerJID    string
	Description string
	CreationTS  time.Time
	IsLocked    bool
}

// GroupParticipant is keyed by (group_jid, participant_jid, instance_id).
type GroupParticipant struct {
	GroupJID       string
	ParticipantJID string
	InstanceID     string
	IsAdmin        bool
	IsSuperAdmin   bool
}

// ParticipantAction is the kind of membership change carried by a
// group.participants.update event.
type ParticipantAction string

// Participant actions recognized by the webhook adapter.
const (
	ParticipantAdd     ParticipantAction = "add"
	ParticipantRemove  ParticipantAction = "remove"
	ParticipantPromote ParticipantAction = "promote"
	ParticipantDemote  ParticipantAction = "demote"
)
