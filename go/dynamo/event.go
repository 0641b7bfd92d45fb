package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Event is the metadata row of a party: EVENT#{eventId} / METADATA.
type Event struct {
	PK        string `dynamodbav:"pk" json:"-"`
	SK        string `dynamodbav:"sk" json:"-"`
	EventID   string `dynamodbav:"eventId" json:"event_id"`
	HostID    string `dynamodbav:"hostId" json:"host_id"` // USER#{userId}
	Name      string `dynamodbav:"eventName" json:"name"`
	Date      string `dynamodbav:"date" json:"date"`
	Time      string `dynamodbav:"time" json:"time"`
	Location  string `dynamodbav:"location" json:"location"`
	Theme     string `dynamodbav:"theme,omitempty" json:"theme,omitempty"`
	IsPublic  bool   `dynamodbav:"isPublic" json:"is_public"`
	CreatedAt string `dynamodbav:"createdAt" json:"created_at"`
}

// HostedEvent is the host's user-partition row: USER#{userId} / EVENT#{eventId}.
// Name and Date are denormalized so the "my events" listing needs no join.
type HostedEvent struct {
	PK        string `dynamodbav:"pk" json:"-"`
	SK        string `dynamodbav:"sk" json:"-"`
	Role      string `dynamodbav:"role" json:"role"`
	Name      string `dynamodbav:"eventName" json:"name"`
	Date      string `dynamodbav:"date" json:"date"`
	CreatedAt string `dynamodbav:"createdAt" json:"created_at"`
}

// EventID returns the event id parsed from the row's sort key.
func (h HostedEvent) EventID() string { return EventIDFromUserEventSK(h.SK) }

// CreateEvent writes the event metadata row and the host's user->event row in
// one transaction: readers never observe an event without its host listing,
// or the reverse. The caller supplies Name/Date/Time/Location/Theme/IsPublic;
// ids and timestamps are filled in here. HostID must be a raw user id.
func CreateEvent(ctx context.Context, hostID string, e Event) (*Event, error) {
	c, err := client()
	if err != nil {
		return nil, err
	}

	e.EventID = NewEventID(e.Name)
	e.PK = EventPK(e.EventID)
	e.SK = MetadataSK
	e.HostID = UserPK(hostID)
	e.CreatedAt = time.Now().UTC().Format(time.RFC3339)

	eventItem, err := attributevalue.MarshalMap(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	hosted := HostedEvent{
		PK:        UserPK(hostID),
		SK:        UserEventSK(e.EventID),
		Role:      "HOST",
		Name:      e.Name,
		Date:      e.Date,
		CreatedAt: e.CreatedAt,
	}
	hostedItem, err := attributevalue.MarshalMap(hosted)
	if err != nil {
		return nil, fmt.Errorf("marshal hosted event: %w", err)
	}

	_, err = c.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: aws.String(TableName), Item: eventItem}},
			{Put: &types.Put{TableName: aws.String(TableName), Item: hostedItem}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return &e, nil
}

// GetEvent returns the event metadata, or nil when the id is unknown.
func GetEvent(ctx context.Context, eventID string) (*Event, error) {
	c, err := client()
	if err != nil {
		return nil, err
	}

	out, err := c.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(TableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: EventPK(eventID)},
			"sk": &types.AttributeValueMemberS{Value: MetadataSK},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var e Event
	if err := attributevalue.UnmarshalMap(out.Item, &e); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &e, nil
}

// UpdateEvent applies a partial update to the event metadata row and keeps
// the host's denormalized listing row in step when the name or date change.
// Guest mirror rows refresh themselves on the next RSVP. Returns
// ErrEventNotFound when the event row is gone.
func UpdateEvent(ctx context.Context, hostID, eventID string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}

	c, err := client()
	if err != nil {
		return err
	}

	expr, names, values, err := BuildUpdateExpression(fields)
	if err != nil {
		return err
	}

	_, err = c.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(TableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: EventPK(eventID)},
			"sk": &types.AttributeValueMemberS{Value: MetadataSK},
		},
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("attribute_exists(pk)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrEventNotFound
		}
		return fmt.Errorf("update event: %w", err)
	}

	mirror := map[string]interface{}{}
	for _, k := range []string{"eventName", "date"} {
		if v, ok := fields[k]; ok {
			mirror[k] = v
		}
	}
	if len(mirror) == 0 {
		return nil
	}

	expr, names, values, err = BuildUpdateExpression(mirror)
	if err != nil {
		return err
	}

	_, err = c.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(TableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: UserPK(hostID)},
			"sk": &types.AttributeValueMemberS{Value: UserEventSK(eventID)},
		},
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("update hosted event: %w", err)
	}
	return nil
}

// ListHostedEvents returns the events a user hosts, in sort-key order.
func ListHostedEvents(ctx context.Context, userID string) ([]HostedEvent, error) {
	c, err := client()
	if err != nil {
		return nil, err
	}

	out, err := c.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(TableName),
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: UserPK(userID)},
			":prefix": &types.AttributeValueMemberS{Value: UserEventSKPrefix},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("list hosted events: %w", err)
	}

	var hosted []HostedEvent
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &hosted); err != nil {
		return nil, fmt.Errorf("unmarshal hosted events: %w", err)
	}
	return hosted, nil
}
