package dynamo

import (
	"context"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// TableName is the single Kiddobash table. Every entity lives here under a
// composite pk/sk key; see keys.go for the key space.
var TableName = tableNameFromEnv()

func tableNameFromEnv() string {
	if name := os.Getenv("KIDDOBASH_TABLE_NAME"); name != "" {
		return name
	}
	return "kiddobash"
}

// DynamoDBAPI is the subset of the DynamoDB client API used by this package.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// testClient is set by tests to override the real DynamoDB client.
var testClient DynamoDBAPI

var initReal = sync.OnceValues(func() (DynamoDBAPI, error) {
	cfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(cfg), nil
})

func client() (DynamoDBAPI, error) {
	if testClient != nil {
		return testClient, nil
	}
	return initReal()
}

// SetClient overrides the DynamoDB client. Intended for testing.
func SetClient(c DynamoDBAPI) {
	testClient = c
}
