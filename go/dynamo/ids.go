package dynamo

import (
	"strings"

	"github.com/rs/xid"
)

const slugMaxLen = 20

// NewEventID derives a URL-safe event id from the event name: a lowercase
// hyphenated slug of at most 20 characters, followed by an xid suffix. The
// slug keeps ids human-readable; the xid (96 bits, lowercase base32) makes
// collisions practically impossible even for identical names.
func NewEventID(name string) string {
	slug := slugify(name)
	if slug == "" {
		slug = "party"
	}
	return slug + "-" + xid.New().String()
}

// NewInviteID returns a unique id for an outbound invite email.
func NewInviteID() string {
	return "inv_" + xid.New().String()
}

func slugify(name string) string {
	var b strings.Builder
	lastDash := true // suppress a leading dash
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
		if b.Len() >= slugMaxLen {
			break
		}
	}
	return strings.Trim(b.String(), "-")
}
