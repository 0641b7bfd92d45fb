package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// UserProfile is the USER#{userId} / PROFILE row, refreshed on every login
// from the identity provider's token claims.
type UserProfile struct {
	PK        string `dynamodbav:"pk" json:"-"`
	SK        string `dynamodbav:"sk" json:"-"`
	UserID    string `dynamodbav:"userId" json:"user_id"`
	Email     string `dynamodbav:"email" json:"email"`
	Name      string `dynamodbav:"name,omitempty" json:"name,omitempty"`
	UpdatedAt string `dynamodbav:"updatedAt" json:"updated_at"`
}

// UpsertProfile overwrites the user's profile row.
func UpsertProfile(ctx context.Context, p UserProfile) error {
	c, err := client()
	if err != nil {
		return err
	}

	p.PK = UserPK(p.UserID)
	p.SK = ProfileSK
	p.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	_, err = c.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(TableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// GetProfile returns the user's profile row, or nil when none exists.
func GetProfile(ctx context.Context, userID string) (*UserProfile, error) {
	c, err := client()
	if err != nil {
		return nil, err
	}

	out, err := c.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(TableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: UserPK(userID)},
			"sk": &types.AttributeValueMemberS{Value: ProfileSK},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var p UserProfile
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	return &p, nil
}
