package dynamo

import (
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// BuildUpdateExpression builds a DynamoDB SET update expression from a map of
// fields. Field order is sorted so the expression is stable across calls.
func BuildUpdateExpression(fields map[string]interface{}) (string, map[string]string, map[string]types.AttributeValue, error) {
	if len(fields) == 0 {
		return "", nil, nil, fmt.Errorf("no fields to update")
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	expr := "SET "
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	for i, k := range keys {
		if i > 0 {
			expr += ", "
		}
		alias := fmt.Sprintf("#f%d", i)
		placeholder := fmt.Sprintf(":v%d", i)
		expr += alias + " = " + placeholder
		names[alias] = k

		av, err := attributevalue.Marshal(fields[k])
		if err != nil {
			return "", nil, nil, fmt.Errorf("marshal field %s: %w", k, err)
		}
		values[placeholder] = av
	}
	return expr, names, values, nil
}
