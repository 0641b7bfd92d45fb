package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// loginSessionTTL bounds how long an in-flight login may take. The table's
// TTL attribute ("expires") reaps abandoned rows.
const loginSessionTTL = 10 * time.Minute

func loginSessionPK(id string) string { return "LOGIN_SESSION#" + id }

// LoginSession holds the ephemeral OAuth state for one in-flight login:
// the PKCE verifier, the state and nonce to check on callback, and where to
// send the user afterwards. The browser carries only the opaque SessionID.
type LoginSession struct {
	PK           string `dynamodbav:"pk" json:"-"`
	SK           string `dynamodbav:"sk" json:"-"`
	SessionID    string `dynamodbav:"sessionId" json:"session_id"`
	State        string `dynamodbav:"state" json:"state"`
	Nonce        string `dynamodbav:"nonce" json:"nonce"`
	CodeVerifier string `dynamodbav:"codeVerifier" json:"-"`
	RedirectTo   string `dynamodbav:"redirectTo,omitempty" json:"redirect_to,omitempty"`
	Expires      int64  `dynamodbav:"expires" json:"expires"`
}

// CreateLoginSession stores a new login session and returns it with a fresh
// SessionID.
func CreateLoginSession(ctx context.Context, s LoginSession) (*LoginSession, error) {
	c, err := client()
	if err != nil {
		return nil, err
	}

	s.SessionID = uuid.NewString()
	s.PK = loginSessionPK(s.SessionID)
	s.SK = MetadataSK
	s.Expires = time.Now().Add(loginSessionTTL).Unix()

	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return nil, fmt.Errorf("marshal login session: %w", err)
	}

	_, err = c.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(TableName),
		Item:      item,
	})
	if err != nil {
		return nil, fmt.Errorf("create login session: %w", err)
	}
	return &s, nil
}

// GetLoginSession returns the login session, or nil when the id is unknown or
// the session has expired. TTL deletion is lazy, so expiry is also checked
// here.
func GetLoginSession(ctx context.Context, sessionID string) (*LoginSession, error) {
	c, err := client()
	if err != nil {
		return nil, err
	}

	out, err := c.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(TableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: loginSessionPK(sessionID)},
			"sk": &types.AttributeValueMemberS{Value: MetadataSK},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get login session: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var s LoginSession
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, fmt.Errorf("unmarshal login session: %w", err)
	}
	if time.Now().Unix() >= s.Expires {
		return nil, nil
	}
	return &s, nil
}

// DeleteLoginSession removes a login session. Sessions are single-use: the
// callback deletes its session whether or not the exchange succeeds.
func DeleteLoginSession(ctx context.Context, sessionID string) error {
	c, err := client()
	if err != nil {
		return err
	}

	_, err = c.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(TableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: loginSessionPK(sessionID)},
			"sk": &types.AttributeValueMemberS{Value: MetadataSK},
		},
	})
	if err != nil {
		return fmt.Errorf("delete login session: %w", err)
	}
	return nil
}
