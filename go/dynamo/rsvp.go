package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrEventNotFound is returned by SubmitRsvp when the target event does not
// exist; an RSVP is never written without its event metadata row.
var ErrEventNotFound = errors.New("event not found")

// RSVP status values. Stored verbatim in both the guest row and the mirror
// row; display copy lives in the templates.
const (
	RsvpGoing    = "Going"
	RsvpMaybe    = "Maybe"
	RsvpNotGoing = "Not Going"
)

// Rsvp is the event-partition guest row: EVENT#{eventId} / RSVP#{userId}.
// One row per guest per event; re-submitting overwrites it.
type Rsvp struct {
	PK         string `dynamodbav:"pk" json:"-"`
	SK         string `dynamodbav:"sk" json:"-"`
	GuestName  string `dynamodbav:"guestName" json:"guest_name"`
	Attending  string `dynamodbav:"attending" json:"attending"` // Going | Maybe | Not Going
	GuestCount int    `dynamodbav:"guestCount" json:"guest_count"`
	Message    string `dynamodbav:"message,omitempty" json:"message,omitempty"`
	UpdatedAt  string `dynamodbav:"updatedAt" json:"updated_at"`
}

// UserID returns the guest's user id parsed from the row's sort key.
func (r Rsvp) UserID() string { return UserIDFromRsvpSK(r.SK) }

// StatusClass returns the status as a css-safe token ("Not Going" →
// "not-going") for badge styling.
func (r Rsvp) StatusClass() string { return statusClass(r.Attending) }

// UserRsvp is the guest's user-partition mirror row: USER#{userId} /
// RSVP#{eventId}. Name and Date are denormalized from the event so the
// "my events" listing needs no join.
type UserRsvp struct {
	PK        string `dynamodbav:"pk" json:"-"`
	SK        string `dynamodbav:"sk" json:"-"`
	EventName string `dynamodbav:"eventName" json:"event_name"`
	EventDate string `dynamodbav:"date" json:"event_date"`
	Attending string `dynamodbav:"attending" json:"attending"`
	UpdatedAt string `dynamodbav:"updatedAt" json:"updated_at"`
}

// EventID returns the event id parsed from the row's sort key.
func (u UserRsvp) EventID() string { return EventIDFromUserRsvpSK(u.SK) }

// StatusClass returns the status as a css-safe token, see Rsvp.StatusClass.
func (u UserRsvp) StatusClass() string { return statusClass(u.Attending) }

func statusClass(status string) string {
	return strings.ReplaceAll(strings.ToLower(status), " ", "-")
}

// SubmitRsvp upserts the guest's RSVP as one transaction: a condition check
// that the event metadata row still exists, the event-partition guest row,
// and the user-partition mirror row. The two listings can never disagree,
// and an RSVP can never outlive its event. Re-submitting replaces the prior
// answer. Returns ErrEventNotFound when the event id is unknown.
func SubmitRsvp(ctx context.Context, eventID, userID string, r Rsvp) error {
	c, err := client()
	if err != nil {
		return err
	}

	ev, err := GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if ev == nil {
		return ErrEventNotFound
	}

	now := time.Now().UTC().Format(time.RFC3339)
	r.PK = EventPK(eventID)
	r.SK = RsvpSK(userID)
	r.UpdatedAt = now

	rsvpItem, err := attributevalue.MarshalMap(r)
	if err != nil {
		return fmt.Errorf("marshal rsvp: %w", err)
	}

	mirror := UserRsvp{
		PK:        UserPK(userID),
		SK:        UserRsvpSK(eventID),
		EventName: ev.Name,
		EventDate: ev.Date,
		Attending: r.Attending,
		UpdatedAt: now,
	}
	mirrorItem, err := attributevalue.MarshalMap(mirror)
	if err != nil {
		return fmt.Errorf("marshal user rsvp: %w", err)
	}

	_, err = c.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{ConditionCheck: &types.ConditionCheck{
				TableName: aws.String(TableName),
				Key: map[string]types.AttributeValue{
					"pk": &types.AttributeValueMemberS{Value: EventPK(eventID)},
					"sk": &types.AttributeValueMemberS{Value: MetadataSK},
				},
				ConditionExpression: aws.String("attribute_exists(pk)"),
			}},
			{Put: &types.Put{TableName: aws.String(TableName), Item: rsvpItem}},
			{Put: &types.Put{TableName: aws.String(TableName), Item: mirrorItem}},
		},
	})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			for _, reason := range canceled.CancellationReasons {
				if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
					return ErrEventNotFound
				}
			}
		}
		return fmt.Errorf("submit rsvp: %w", err)
	}
	return nil
}

// GetRsvp returns the guest's RSVP for an event, or nil when they have not
// responded.
func GetRsvp(ctx context.Context, eventID, userID string) (*Rsvp, error) {
	c, err := client()
	if err != nil {
		return nil, err
	}

	out, err := c.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(TableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: EventPK(eventID)},
			"sk": &types.AttributeValueMemberS{Value: RsvpSK(userID)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get rsvp: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var r Rsvp
	if err := attributevalue.UnmarshalMap(out.Item, &r); err != nil {
		return nil, fmt.Errorf("unmarshal rsvp: %w", err)
	}
	return &r, nil
}

// ListGuests returns every RSVP in an event's partition.
func ListGuests(ctx context.Context, eventID string) ([]Rsvp, error) {
	c, err := client()
	if err != nil {
		return nil, err
	}

	out, err := c.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(TableName),
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: EventPK(eventID)},
			":prefix": &types.AttributeValueMemberS{Value: RsvpSKPrefix},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("list guests: %w", err)
	}

	var guests []Rsvp
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &guests); err != nil {
		return nil, fmt.Errorf("unmarshal guests: %w", err)
	}
	return guests, nil
}

// ListUserRsvps returns the events a user has RSVP'd to.
func ListUserRsvps(ctx context.Context, userID string) ([]UserRsvp, error) {
	c, err := client()
	if err != nil {
		return nil, err
	}

	out, err := c.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(TableName),
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: UserPK(userID)},
			":prefix": &types.AttributeValueMemberS{Value: RsvpSKPrefix},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("list user rsvps: %w", err)
	}

	var rsvps []UserRsvp
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &rsvps); err != nil {
		return nil, fmt.Errorf("unmarshal user rsvps: %w", err)
	}
	return rsvps, nil
}
