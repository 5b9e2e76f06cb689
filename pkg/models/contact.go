package models

import "time"

// Contact is keyed by (jid, instance_id). Every message's sender_jid and
// chat_id must resolve to an existing Contact row before the message is
// inserted — see pkg/webhook's dependency materialization.
type Contact struct {
	JID               string
	InstanceID        string
	PushName          string
	VerifiedName      string
	ProfilePictureURL string
	IsBusiness        bool
	IsMe              bool
	IsBlocked         bool
	FirstSeenAt       time.Time
	LastUpdatedAt     time.Time
}
