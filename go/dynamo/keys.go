package dynamo

import "strings"

// Partition keys
func EventPK(eventID string) string { return "EVENT#" + eventID }
func UserPK(userID string) string   { return "USER#" + userID }

// Sort keys
const (
	MetadataSK = "METADATA"
	ProfileSK  = "PROFILE"
)

func RsvpSK(userID string) string           { return "RSVP#" + userID }
func InviteMetadataSK(inviteID string) string { return "INVITE_METADATA#" + inviteID }

// User-partition sort keys for the bidirectional relationships: the host's
// events land under EVENT#, their RSVPs under RSVP#.
func UserEventSK(eventID string) string { return "EVENT#" + eventID }
func UserRsvpSK(eventID string) string  { return "RSVP#" + eventID }

// Prefixes for begins_with range queries.
const (
	EventPKPrefix        = "EVENT#"
	UserPKPrefix         = "USER#"
	RsvpSKPrefix         = "RSVP#"
	InviteMetadataPrefix = "INVITE_METADATA#"
	UserEventSKPrefix    = "EVENT#"
)

// Extractors parse an id back out of a key. They return "" when the input
// doesn't carry the expected prefix; malformed keys are never an error.

func EventIDFromPK(pk string) string {
	return trimPrefix(pk, EventPKPrefix)
}

func UserIDFromPK(pk string) string {
	return trimPrefix(pk, UserPKPrefix)
}

// UserIDFromRsvpSK extracts the user id from an event-partition RSVP sort key.
func UserIDFromRsvpSK(sk string) string {
	return trimPrefix(sk, RsvpSKPrefix)
}

// EventIDFromUserEventSK extracts the event id from a user-partition hosted-event sort key.
func EventIDFromUserEventSK(sk string) string {
	return trimPrefix(sk, UserEventSKPrefix)
}

// EventIDFromUserRsvpSK extracts the event id from a user-partition RSVP sort key.
func EventIDFromUserRsvpSK(sk string) string {
	return trimPrefix(sk, RsvpSKPrefix)
}

func InviteIDFromSK(sk string) string {
	return trimPrefix(sk, InviteMetadataPrefix)
}

func trimPrefix(s, prefix string) string {
	if !strings.HasPrefix(s, prefix) || len(s) == len(prefix) {
		return ""
	}
	return s[len(prefix):]
}
