package webhook

import (
	"strings"
	"time"

	"github.com/fcamachol/chatflow/pkg/models"
)

// normalizeID recognizes a canonical JID by its "@domain" suffix. Anything
// lacking "@" is unresolvable — the adapter never attempts heuristic
// name-matching to recover it (spec §4.2).
func normalizeID(raw string) (id string, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.Contains(raw, "@") {
		return "", false
	}
	return raw, true
}

// msTimestampThreshold and secTimestampThreshold are the 10^12/10^9
// cutoffs spec §4.2 defines for telling a millisecond epoch from a
// second epoch.
const (
	msTimestampThreshold  = 1_000_000_000_000
	secTimestampThreshold = 1_000_000_000
)

// normalizeTimestamp applies spec §4.2's policy: a numeric value above
// 10^12 is milliseconds, above 10^9 is seconds, otherwise (zero, missing,
// or implausibly small) the adapter falls back to now() rather than risk
// emitting an invalid date.
func normalizeTimestamp(raw int64) time.Time {
	switch {
	case raw > msTimestampThreshold:
		return time.UnixMilli(raw)
	case raw > secTimestampThreshold:
		return time.Unix(raw, 0)
	default:
		return time.Now().UTC()
	}
}

// chatTypeFromJID derives a Chat's type from its JID suffix.
func chatTypeFromJID(jid string) models.ChatType {
	if strings.HasSuffix(jid, "@g.us") {
		return models.ChatGroup
	}
	return models.ChatIndividual
}
