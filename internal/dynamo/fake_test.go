package dynamo_test

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo is an in-memory stand-in for the handful of DynamoDB calls the
// store makes. It understands pk/sk keys, attribute_exists(pk) conditions,
// SET/REMOVE/ADD update expressions and "pk = :pk" queries.
type fakeDynamo struct {
	mu       sync.Mutex
	tables   map[string]map[string]map[string]types.AttributeValue
	pageSize int
	created  []string
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{
		tables:   make(map[string]map[string]map[string]types.AttributeValue),
		pageSize: 2,
	}
}

func keyString(key map[string]types.AttributeValue) string {
	var pk, sk string
	if v, ok := key["pk"].(*types.AttributeValueMemberS); ok {
		pk = v.Value
	}
	if v, ok := key["sk"].(*types.AttributeValueMemberN); ok {
		sk = v.Value
	}
	return pk + "|" + sk
}

func (f *fakeDynamo) table(name string) map[string]map[string]types.AttributeValue {
	t, ok := f.tables[name]
	if !ok {
		t = make(map[string]map[string]types.AttributeValue)
		f.tables[name] = t
	}
	return t
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func checkCondition(cond *string, exists bool) error {
	if cond == nil {
		return nil
	}
	switch *cond {
	case "attribute_exists(pk)":
		if !exists {
			return &types.ConditionalCheckFailedException{}
		}
	case "attribute_not_exists(pk)":
		if exists {
			return &types.ConditionalCheckFailedException{}
		}
	default:
		return fmt.Errorf("fake: unsupported condition %q", *cond)
	}
	return nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	item, ok := f.table(*in.TableName)[keyString(in.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: copyItem(item)}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := f.table(*in.TableName)
	key := keyString(in.Item)
	_, exists := t[key]
	if err := checkCondition(in.ConditionExpression, exists); err != nil {
		return nil, err
	}
	t[key] = copyItem(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := f.table(*in.TableName)
	key := keyString(in.Key)
	item, exists := t[key]
	if err := checkCondition(in.ConditionExpression, exists); err != nil {
		return nil, err
	}
	if !exists {
		item = copyItem(in.Key)
	}

	name := func(n string) string {
		if real, ok := in.ExpressionAttributeNames[n]; ok {
			return real
		}
		return n
	}
	updated := make(map[string]types.AttributeValue)

	expr := *in.UpdateExpression
	var remove string
	if i := strings.Index(expr, " REMOVE "); i >= 0 {
		expr, remove = expr[:i], expr[i+len(" REMOVE "):]
	}

	switch {
	case strings.HasPrefix(expr, "SET "):
		for _, assign := range strings.Split(strings.TrimPrefix(expr, "SET "), ", ") {
			attr, placeholder, ok := strings.Cut(assign, " = ")
			if !ok {
				return nil, fmt.Errorf("fake: bad assignment %q", assign)
			}
			item[name(attr)] = in.ExpressionAttributeValues[placeholder]
			updated[name(attr)] = item[name(attr)]
		}
	case strings.HasPrefix(expr, "ADD "):
		attr, placeholder, _ := strings.Cut(strings.TrimPrefix(expr, "ADD "), " ")
		delta, _ := strconv.ParseInt(in.ExpressionAttributeValues[placeholder].(*types.AttributeValueMemberN).Value, 10, 64)
		var cur int64
		if n, ok := item[name(attr)].(*types.AttributeValueMemberN); ok {
			cur, _ = strconv.ParseInt(n.Value, 10, 64)
		}
		item[name(attr)] = &types.AttributeValueMemberN{Value: strconv.FormatInt(cur+delta, 10)}
		updated[name(attr)] = item[name(attr)]
	default:
		return nil, fmt.Errorf("fake: unsupported update %q", expr)
	}
	if remove != "" {
		delete(item, name(remove))
	}

	t[key] = item
	return &dynamodb.UpdateItemOutput{Attributes: updated}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := f.table(*in.TableName)
	key := keyString(in.Key)
	_, exists := t[key]
	if err := checkCondition(in.ConditionExpression, exists); err != nil {
		return nil, err
	}
	delete(t, key)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if *in.KeyConditionExpression != "pk = :pk" {
		return nil, fmt.Errorf("fake: unsupported key condition %q", *in.KeyConditionExpression)
	}
	pk := in.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS).Value

	type entry struct {
		sk   int64
		item map[string]types.AttributeValue
	}
	var matches []entry
	for _, item := range f.table(*in.TableName) {
		if item["pk"].(*types.AttributeValueMemberS).Value != pk {
			continue
		}
		sk, _ := strconv.ParseInt(item["sk"].(*types.AttributeValueMemberN).Value, 10, 64)
		matches = append(matches, entry{sk, item})
	}
	sort.Slice(matches, func(a, b int) bool { return matches[a].sk < matches[b].sk })

	start := 0
	if in.ExclusiveStartKey != nil {
		after, _ := strconv.ParseInt(in.ExclusiveStartKey["sk"].(*types.AttributeValueMemberN).Value, 10, 64)
		for start < len(matches) && matches[start].sk <= after {
			start++
		}
	}
	end := start + f.pageSize
	if end > len(matches) {
		end = len(matches)
	}

	out := &dynamodb.QueryOutput{}
	for _, m := range matches[start:end] {
		out.Items = append(out.Items, copyItem(m.item))
	}
	out.Count = int32(len(out.Items))
	if end < len(matches) {
		last := matches[end-1].item
		out.LastEvaluatedKey = map[string]types.AttributeValue{"pk": last["pk"], "sk": last["sk"]}
	}
	return out, nil
}

func (f *fakeDynamo) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.created = append(f.created, *in.TableName)
	f.table(*in.TableName)
	return &dynamodb.CreateTableOutput{}, nil
}
