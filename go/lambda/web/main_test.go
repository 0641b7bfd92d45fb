package main

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/kiddobash/kiddobash.com/go/config"
	"github.com/kiddobash/kiddobash.com/go/dynamo"
	"github.com/kiddobash/kiddobash.com/go/email"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment:       "development",
		CognitoDomain:     "https://auth.example.com",
		CognitoClientID:   "client-1",
		CognitoRegion:     "us-east-1",
		CognitoUserPoolID: "us-east-1_abc123",
		SessionSecret:     strings.Repeat("s", 32),
		BaseURL:           "https://kiddobash.example.com",
		SESSender:         "parties@example.com",
		Port:              "3000",
	}
}

// recordingMailer captures sends instead of talking to SES.
type recordingMailer struct {
	mu   sync.Mutex
	sent []string // recipient addresses
	fail bool
}

func (m *recordingMailer) Send(_ context.Context, to, _, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return context.DeadlineExceeded
	}
	m.sent = append(m.sent, to)
	return nil
}

var _ email.Mailer = (*recordingMailer)(nil)

// fakeDB is a minimal in-memory DynamoDB standing in behind dynamo.SetClient.
type fakeDB struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newFakeDB() *fakeDB {
	return &fakeDB{items: make(map[string]map[string]types.AttributeValue)}
}

func fakeKey(pk, sk string) string { return pk + "\x00" + sk }

func attrStr(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeDB) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make(map[string]types.AttributeValue, len(in.Item))
	for k, v := range in.Item {
		cp[k] = v
	}
	f.items[fakeKey(attrStr(in.Item["pk"]), attrStr(in.Item["sk"]))] = cp
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDB) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[fakeKey(attrStr(in.Key["pk"]), attrStr(in.Key["sk"]))]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (f *fakeDB) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, fakeKey(attrStr(in.Key["pk"]), attrStr(in.Key["sk"])))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDB) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pkVal := attrStr(in.ExpressionAttributeValues[":pk"])
	prefix := ""
	if v, ok := in.ExpressionAttributeValues[":prefix"]; ok {
		prefix = attrStr(v)
	}
	var matched []map[string]types.AttributeValue
	for _, item := range f.items {
		if attrStr(item["pk"]) != pkVal {
			continue
		}
		if prefix != "" && !strings.HasPrefix(attrStr(item["sk"]), prefix) {
			continue
		}
		matched = append(matched, item)
	}
	sort.Slice(matched, func(i, j int) bool {
		return attrStr(matched[i]["sk"]) < attrStr(matched[j]["sk"])
	})
	return &dynamodb.QueryOutput{Items: matched}, nil
}

func (f *fakeDB) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fakeKey(attrStr(in.Key["pk"]), attrStr(in.Key["sk"]))
	item, ok := f.items[key]

	if in.ConditionExpression != nil {
		if !ok {
			return nil, &types.ConditionalCheckFailedException{}
		}
		if strings.Contains(*in.ConditionExpression, "IN (") {
			current := attrStr(item["status"])
			allowed := false
			for ref, av := range in.ExpressionAttributeValues {
				if strings.HasPrefix(ref, ":from") && attrStr(av) == current {
					allowed = true
				}
			}
			if !allowed {
				return nil, &types.ConditionalCheckFailedException{}
			}
		}
	}
	if !ok {
		return &dynamodb.UpdateItemOutput{}, nil
	}

	if in.UpdateExpression != nil {
		expr := strings.TrimPrefix(*in.UpdateExpression, "SET ")
		for _, part := range strings.Split(expr, ", ") {
			sides := strings.SplitN(part, " = ", 2)
			if len(sides) != 2 {
				continue
			}
			attrName := strings.TrimSpace(sides[0])
			if in.ExpressionAttributeNames != nil {
				if resolved, exists := in.ExpressionAttributeNames[attrName]; exists {
					attrName = resolved
				}
			}
			if val, exists := in.ExpressionAttributeValues[strings.TrimSpace(sides[1])]; exists {
				item[attrName] = val
			}
		}
	}
	f.items[key] = item
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDB) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tw := range in.TransactItems {
		if tw.ConditionCheck == nil {
			continue
		}
		key := fakeKey(attrStr(tw.ConditionCheck.Key["pk"]), attrStr(tw.ConditionCheck.Key["sk"]))
		if _, ok := f.items[key]; !ok {
			return nil, &types.TransactionCanceledException{
				CancellationReasons: []types.CancellationReason{
					{Code: aws.String("ConditionalCheckFailed")},
				},
			}
		}
	}
	for _, tw := range in.TransactItems {
		if tw.Put != nil {
			cp := make(map[string]types.AttributeValue, len(tw.Put.Item))
			for k, v := range tw.Put.Item {
				cp[k] = v
			}
			f.items[fakeKey(attrStr(tw.Put.Item["pk"]), attrStr(tw.Put.Item["sk"]))] = cp
		}
		if tw.Delete != nil {
			delete(f.items, fakeKey(attrStr(tw.Delete.Key["pk"]), attrStr(tw.Delete.Key["sk"])))
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

var _ dynamo.DynamoDBAPI = (*fakeDB)(nil)

// newTestApp wires an app against a fresh fake database and mailer. The
// returned cleanup detaches the fake client.
func newTestApp() (*app, *fakeDB, *recordingMailer, func()) {
	db := newFakeDB()
	dynamo.SetClient(db)
	mailer := &recordingMailer{}
	a := newApp(testConfig())
	a.mailer = mailer
	return a, db, mailer, func() { dynamo.SetClient(nil) }
}
