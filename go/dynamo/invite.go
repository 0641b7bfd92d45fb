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

// Invite statuses, strictly monotonic: Sent < Opened < Clicked. A tracking
// callback never moves a status backwards.
const (
	InviteStatusSent    = "Sent"
	InviteStatusOpened  = "Opened"
	InviteStatusClicked = "Clicked"
)

// InviteMetadata is the per-recipient tracking row:
// EVENT#{eventId} / INVITE_METADATA#{inviteId}.
type InviteMetadata struct {
	PK             string `dynamodbav:"pk" json:"-"`
	SK             string `dynamodbav:"sk" json:"-"`
	RecipientEmail string `dynamodbav:"recipientEmail" json:"recipient_email"`
	Status         string `dynamodbav:"status" json:"status"`
	SentAt         string `dynamodbav:"sentAt" json:"sent_at"`
	OpenedAt       string `dynamodbav:"openedAt,omitempty" json:"opened_at,omitempty"`
	ClickedAt      string `dynamodbav:"clickedAt,omitempty" json:"clicked_at,omitempty"`
}

// InviteID returns the invite id parsed from the row's sort key.
func (i InviteMetadata) InviteID() string { return InviteIDFromSK(i.SK) }

// PutInvite records an invite that was just sent. The recipient email is
// stored lowercased so later lookups are case-insensitive.
func PutInvite(ctx context.Context, eventID, inviteID, recipientEmail string) error {
	c, err := client()
	if err != nil {
		return err
	}

	inv := InviteMetadata{
		PK:             EventPK(eventID),
		SK:             InviteMetadataSK(inviteID),
		RecipientEmail: strings.ToLower(strings.TrimSpace(recipientEmail)),
		Status:         InviteStatusSent,
		SentAt:         time.Now().UTC().Format(time.RFC3339),
	}

	item, err := attributevalue.MarshalMap(inv)
	if err != nil {
		return fmt.Errorf("marshal invite: %w", err)
	}

	_, err = c.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(TableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put invite: %w", err)
	}
	return nil
}

// ListInvites returns every invite sent for an event.
func ListInvites(ctx context.Context, eventID string) ([]InviteMetadata, error) {
	c, err := client()
	if err != nil {
		return nil, err
	}

	out, err := c.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(TableName),
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: EventPK(eventID)},
			":prefix": &types.AttributeValueMemberS{Value: InviteMetadataPrefix},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}

	var invites []InviteMetadata
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &invites); err != nil {
		return nil, fmt.Errorf("unmarshal invites: %w", err)
	}
	return invites, nil
}

// MarkInviteOpened advances an invite to Opened. A no-op when the invite is
// unknown or already Opened/Clicked; tracking callbacks are fired by mail
// clients and must never surface an error to them.
func MarkInviteOpened(ctx context.Context, eventID, inviteID string) error {
	return advanceInvite(ctx, eventID, inviteID, InviteStatusOpened, "openedAt",
		[]string{InviteStatusSent})
}

// MarkInviteClicked advances an invite to Clicked. A no-op when the invite is
// unknown or already Clicked.
func MarkInviteClicked(ctx context.Context, eventID, inviteID string) error {
	return advanceInvite(ctx, eventID, inviteID, InviteStatusClicked, "clickedAt",
		[]string{InviteStatusSent, InviteStatusOpened})
}

// advanceInvite conditionally moves an invite to the target status, recording
// the transition time. The condition restricts which current statuses may
// advance; a failed condition (already past the target, or no such invite)
// is swallowed.
func advanceInvite(ctx context.Context, eventID, inviteID, status, tsField string, from []string) error {
	c, err := client()
	if err != nil {
		return err
	}

	cond := "#status IN ("
	values := map[string]types.AttributeValue{
		":status": &types.AttributeValueMemberS{Value: status},
		":ts":     &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
	}
	for i, s := range from {
		if i > 0 {
			cond += ", "
		}
		placeholder := fmt.Sprintf(":from%d", i)
		cond += placeholder
		values[placeholder] = &types.AttributeValueMemberS{Value: s}
	}
	cond += ")"

	_, err = c.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(TableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: EventPK(eventID)},
			"sk": &types.AttributeValueMemberS{Value: InviteMetadataSK(inviteID)},
		},
		UpdateExpression: aws.String("SET #status = :status, #ts = :ts"),
		ConditionExpression: aws.String(
			"attribute_exists(pk) AND " + cond),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
			"#ts":     tsField,
		},
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return nil
		}
		return fmt.Errorf("advance invite: %w", err)
	}
	return nil
}

// HasInviteForEmail reports whether any invite for the event was addressed to
// the given email. Used to admit invited guests to private events.
func HasInviteForEmail(ctx context.Context, eventID, email string) (bool, error) {
	invites, err := ListInvites(ctx, eventID)
	if err != nil {
		return false, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	for _, inv := range invites {
		if inv.RecipientEmail == email {
			return true, nil
		}
	}
	return false, nil
}
