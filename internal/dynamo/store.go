// Package dynamo provides a DynamoDB record store for list items.
//
// All items of one scope share a partition (pk = "type/id/field", each part
// path-escaped, so it never collides with the "#counter" record) and are
// sorted by their numeric id (sk). Ids come from an atomic counter record in
// the same table. DynamoDB offers no multi-statement transaction that fits the
// engine's read-validate-write window, so WithTx runs against the store itself
// and writes are applied one by one.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/baiirun/treelist/internal/lists"
	"github.com/baiirun/treelist/internal/model"
)

const counterPK = "#counter"

// API is the subset of the DynamoDB client the store uses.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// Store implements lists.Store on DynamoDB.
type Store struct {
	client API
	config Config
	now    func() time.Time
}

var _ lists.Store = (*Store)(nil)

// New creates a new Store instance.
func New(client API, config Config) *Store {
	config.validate()
	return &Store{
		client: client,
		config: config,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// record is the stored shape of a list item.
type record struct {
	PK          string         `dynamodbav:"pk"`
	SK          int64          `dynamodbav:"sk"`
	OwnerType   string         `dynamodbav:"model_type"`
	OwnerID     string         `dynamodbav:"model_id"`
	FieldID     string         `dynamodbav:"field_id"`
	FormType    string         `dynamodbav:"form_type"`
	ParentID    *int64         `dynamodbav:"parent_id,omitempty"`
	OrderColumn int            `dynamodbav:"order_column"`
	Value       map[string]any `dynamodbav:"value"`
	CreatedAt   time.Time      `dynamodbav:"created_at"`
	UpdatedAt   time.Time      `dynamodbav:"updated_at"`
}

func partitionKey(scope model.Scope) string {
	return scope.Key()
}

func itemKey(scope model.Scope, id int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: partitionKey(scope)},
		"sk": &types.AttributeValueMemberN{Value: strconv.FormatInt(id, 10)},
	}
}

func ownerKey(owner model.Owner) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: owner.Key()},
	}
}

func (r record) item() model.ListItem {
	item := model.ListItem{
		ID:          r.SK,
		OwnerType:   r.OwnerType,
		OwnerID:     r.OwnerID,
		FieldID:     r.FieldID,
		FormVariant: r.FormType,
		OrderColumn: r.OrderColumn,
		Value:       model.Value(r.Value),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.ParentID != nil && *r.ParentID != 0 {
		item.Parent = model.ParentOf(*r.ParentID)
	}
	if item.Value == nil {
		item.Value = model.Value{}
	}
	return item
}

func isConditionFailed(err error) bool {
	var condErr *types.ConditionalCheckFailedException
	return errors.As(err, &condErr)
}

func notFound(scope model.Scope, id int64) error {
	return fmt.Errorf("%w: list item %d in %s", model.ErrNotFound, id, scope)
}

// CreateTables creates the items and owners tables with on-demand billing.
func (s *Store) CreateTables(ctx context.Context) error {
	_, err := s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.config.ItemsTable),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("pk"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("sk"), KeyType: types.KeyTypeRange},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("pk"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("sk"), AttributeType: types.ScalarAttributeTypeN},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("create table %s: %w", s.config.ItemsTable, err)
	}

	_, err = s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.config.OwnersTable),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("pk"), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("pk"), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("create table %s: %w", s.config.OwnersTable, err)
	}
	return nil
}

// RegisterOwner records an owner so lists can be attached to it.
func (s *Store) RegisterOwner(ctx context.Context, owner model.Owner, label string) error {
	if owner.Type == "" || owner.ID == "" {
		return fmt.Errorf("owner type and id are required")
	}
	item := ownerKey(owner)
	item["label"] = &types.AttributeValueMemberS{Value: label}

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.config.OwnersTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to register owner: %w", err)
	}
	return nil
}

// OwnerExists reports whether the owner has been registered.
func (s *Store) OwnerExists(ctx context.Context, owner model.Owner) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.config.OwnersTable),
		Key:            ownerKey(owner),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("failed to check owner: %w", err)
	}
	return result.Item != nil, nil
}

// ListItems returns every list item in scope, ordered by order column then id.
func (s *Store) ListItems(ctx context.Context, scope model.Scope) ([]model.ListItem, error) {
	pk, err := attributevalue.Marshal(partitionKey(scope))
	if err != nil {
		return nil, err
	}

	var items []model.ListItem
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(s.config.ItemsTable),
		KeyConditionExpression:    aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":pk": pk},
		ConsistentRead:            aws.Bool(true),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list items: %w", err)
		}
		for _, raw := range page.Items {
			var rec record
			if err := attributevalue.UnmarshalMap(raw, &rec); err != nil {
				return nil, fmt.Errorf("failed to decode list item: %w", err)
			}
			item := rec.item()
			if !item.InScope(scope) {
				continue
			}
			items = append(items, item)
		}
	}

	sort.SliceStable(items, func(a, b int) bool {
		if items[a].OrderColumn != items[b].OrderColumn {
			return items[a].OrderColumn < items[b].OrderColumn
		}
		return items[a].ID < items[b].ID
	})
	return items, nil
}

// GetItem retrieves a list item by ID within scope.
func (s *Store) GetItem(ctx context.Context, scope model.Scope, id int64) (*model.ListItem, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.config.ItemsTable),
		Key:            itemKey(scope, id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get list item: %w", err)
	}
	if result.Item == nil {
		return nil, notFound(scope, id)
	}

	var rec record
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode list item: %w", err)
	}
	item := rec.item()
	if !item.InScope(scope) {
		return nil, notFound(scope, id)
	}
	return &item, nil
}

// CountSiblings counts the items of one form variant directly under parent.
// The scope partition is read in full and filtered here.
func (s *Store) CountSiblings(ctx context.Context, scope model.Scope, variant string, parent model.ParentRef) (int, error) {
	items, err := s.ListItems(ctx, scope)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, it := range items {
		if it.FormVariant == variant && it.Parent.Equal(parent) {
			count++
		}
	}
	return count, nil
}

// nextID increments the id counter and returns the new value.
func (s *Store) nextID(ctx context.Context) (int64, error) {
	result, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.config.ItemsTable),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: counterPK},
			"sk": &types.AttributeValueMemberN{Value: "0"},
		},
		UpdateExpression: aws.String("ADD next_id :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to allocate id: %w", err)
	}

	n, ok := result.Attributes["next_id"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("failed to allocate id: counter missing from response")
	}
	return strconv.ParseInt(n.Value, 10, 64)
}

// CreateItem inserts a new list item and sets its ID and timestamps.
func (s *Store) CreateItem(ctx context.Context, item *model.ListItem) error {
	id, err := s.nextID(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	scope := item.Scope()
	rec := record{
		PK:          partitionKey(scope),
		SK:          id,
		OwnerType:   item.OwnerType,
		OwnerID:     item.OwnerID,
		FieldID:     item.FieldID,
		FormType:    item.FormVariant,
		OrderColumn: item.OrderColumn,
		Value:       item.Value,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if rec.Value == nil {
		rec.Value = map[string]any{}
	}
	if pid, ok := item.Parent.ID(); ok {
		rec.ParentID = &pid
	}

	av, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("failed to encode list item: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.config.ItemsTable),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		return fmt.Errorf("failed to create list item: %w", err)
	}

	item.ID = id
	item.Value = model.Value(rec.Value)
	item.CreatedAt = now
	item.UpdatedAt = now
	return nil
}

// UpdateValue replaces a list item's value.
func (s *Store) UpdateValue(ctx context.Context, scope model.Scope, id int64, value model.Value) error {
	v, err := attributevalue.Marshal(map[string]any(value))
	if err != nil {
		return fmt.Errorf("failed to encode value: %w", err)
	}
	now, err := attributevalue.Marshal(s.now())
	if err != nil {
		return err
	}

	return s.update(ctx, scope, id, &dynamodb.UpdateItemInput{
		UpdateExpression:         aws.String("SET #value = :value, updated_at = :now"),
		ExpressionAttributeNames: map[string]string{"#value": "value"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":value": v,
			":now":   now,
		},
	})
}

// UpdatePosition sets a list item's order column and, when pos carries one,
// its parent.
func (s *Store) UpdatePosition(ctx context.Context, scope model.Scope, pos model.Position) error {
	now, err := attributevalue.Marshal(s.now())
	if err != nil {
		return err
	}

	expr := "SET order_column = :order, updated_at = :now"
	values := map[string]types.AttributeValue{
		":order": &types.AttributeValueMemberN{Value: strconv.Itoa(pos.OrderColumn)},
		":now":   now,
	}
	if pos.Parent != nil {
		if pid, ok := pos.Parent.ID(); ok {
			expr += ", parent_id = :parent"
			values[":parent"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(pid, 10)}
		} else {
			expr += " REMOVE parent_id"
		}
	}

	return s.update(ctx, scope, pos.ID, &dynamodb.UpdateItemInput{
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeValues: values,
	})
}

func (s *Store) update(ctx context.Context, scope model.Scope, id int64, input *dynamodb.UpdateItemInput) error {
	input.TableName = aws.String(s.config.ItemsTable)
	input.Key = itemKey(scope, id)
	input.ConditionExpression = aws.String("attribute_exists(pk)")

	_, err := s.client.UpdateItem(ctx, input)
	if isConditionFailed(err) {
		return notFound(scope, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update list item: %w", err)
	}
	return nil
}

// DeleteItems deletes the given list items one by one. A missing id stops the
// loop with a not-found error; items deleted before it stay deleted.
func (s *Store) DeleteItems(ctx context.Context, scope model.Scope, ids []int64) error {
	for _, id := range ids {
		_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:           aws.String(s.config.ItemsTable),
			Key:                 itemKey(scope, id),
			ConditionExpression: aws.String("attribute_exists(pk)"),
		})
		if isConditionFailed(err) {
			return notFound(scope, id)
		}
		if err != nil {
			return fmt.Errorf("failed to delete list item %d: %w", id, err)
		}
	}
	return nil
}

// WithTx runs fn against the store itself.
func (s *Store) WithTx(ctx context.Context, fn func(lists.Store) error) error {
	return fn(s)
}
