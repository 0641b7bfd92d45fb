package dynamo

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDB is an in-memory DynamoDB mock for unit tests.
type mockDB struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue // key: "pk\x00sk"
}

func newMockDB() *mockDB {
	return &mockDB{items: make(map[string]map[string]types.AttributeValue)}
}

func itemKey(pk, sk string) string { return pk + "\x00" + sk }

func numberAttr(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

func strVal(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (m *mockDB) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk := strVal(in.Item["pk"])
	sk := strVal(in.Item["sk"])
	cp := make(map[string]types.AttributeValue, len(in.Item))
	for k, v := range in.Item {
		cp[k] = v
	}
	m.items[itemKey(pk, sk)] = cp
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDB) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk := strVal(in.Key["pk"])
	sk := strVal(in.Key["sk"])
	item, ok := m.items[itemKey(pk, sk)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (m *mockDB) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk := strVal(in.Key["pk"])
	sk := strVal(in.Key["sk"])
	delete(m.items, itemKey(pk, sk))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (m *mockDB) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pkVal := strVal(in.ExpressionAttributeValues[":pk"])
	prefixVal := ""
	if v, ok := in.ExpressionAttributeValues[":prefix"]; ok {
		prefixVal = strVal(v)
	}

	expr := ""
	if in.KeyConditionExpression != nil {
		expr = *in.KeyConditionExpression
	}

	var matched []map[string]types.AttributeValue
	for _, item := range m.items {
		if strVal(item["pk"]) != pkVal {
			continue
		}
		if strings.Contains(expr, "begins_with") && !strings.HasPrefix(strVal(item["sk"]), prefixVal) {
			continue
		}
		matched = append(matched, item)
	}

	// Sort by sort key
	sort.Slice(matched, func(i, j int) bool {
		a := strVal(matched[i]["sk"])
		b := strVal(matched[j]["sk"])
		if in.ScanIndexForward != nil && !*in.ScanIndexForward {
			return a > b
		}
		return a < b
	})

	if in.Limit != nil && int(*in.Limit) < len(matched) {
		matched = matched[:*in.Limit]
	}

	return &dynamodb.QueryOutput{Items: matched}, nil
}

func (m *mockDB) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk := strVal(in.Key["pk"])
	sk := strVal(in.Key["sk"])
	key := itemKey(pk, sk)
	item, ok := m.items[key]

	if in.ConditionExpression != nil {
		cond := *in.ConditionExpression
		if strings.Contains(cond, "attribute_exists(pk)") && !ok {
			return nil, &types.ConditionalCheckFailedException{}
		}
		// "#status IN (:from0, ...)" gates invite status transitions
		if strings.Contains(cond, "IN (") {
			attr := "status"
			if in.ExpressionAttributeNames != nil {
				if resolved, exists := in.ExpressionAttributeNames["#status"]; exists {
					attr = resolved
				}
			}
			current := strVal(item[attr])
			allowed := false
			for ref, av := range in.ExpressionAttributeValues {
				if strings.HasPrefix(ref, ":from") && strVal(av) == current {
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

	// Parse SET expression to apply updates: "SET #k1 = :v1, #k2 = :v2"
	if in.UpdateExpression != nil {
		expr := strings.TrimPrefix(*in.UpdateExpression, "SET ")
		for _, part := range strings.Split(expr, ", ") {
			sides := strings.SplitN(part, " = ", 2)
			if len(sides) != 2 {
				continue
			}
			nameRef := strings.TrimSpace(sides[0])
			valRef := strings.TrimSpace(sides[1])
			attrName := nameRef
			if in.ExpressionAttributeNames != nil {
				if resolved, exists := in.ExpressionAttributeNames[nameRef]; exists {
					attrName = resolved
				}
			}
			if val, exists := in.ExpressionAttributeValues[valRef]; exists {
				item[attrName] = val
			}
		}
	}

	m.items[key] = item
	return &dynamodb.UpdateItemOutput{}, nil
}

func (m *mockDB) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Condition checks run before any write; a failure cancels the whole
	// transaction, matching the real service.
	for _, tw := range in.TransactItems {
		if tw.ConditionCheck == nil {
			continue
		}
		pk := strVal(tw.ConditionCheck.Key["pk"])
		sk := strVal(tw.ConditionCheck.Key["sk"])
		if _, ok := m.items[itemKey(pk, sk)]; !ok {
			return nil, &types.TransactionCanceledException{
				CancellationReasons: []types.CancellationReason{
					{Code: aws.String("ConditionalCheckFailed")},
				},
			}
		}
	}

	for _, tw := range in.TransactItems {
		if tw.Put != nil {
			pk := strVal(tw.Put.Item["pk"])
			sk := strVal(tw.Put.Item["sk"])
			cp := make(map[string]types.AttributeValue, len(tw.Put.Item))
			for k, v := range tw.Put.Item {
				cp[k] = v
			}
			m.items[itemKey(pk, sk)] = cp
		}
		if tw.Delete != nil {
			pk := strVal(tw.Delete.Key["pk"])
			sk := strVal(tw.Delete.Key["sk"])
			delete(m.items, itemKey(pk, sk))
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

// setup creates a fresh mockDB and sets it as the test client. Returns a cleanup function.
func setup() (*mockDB, func()) {
	db := newMockDB()
	SetClient(db)
	return db, func() { SetClient(nil) }
}
