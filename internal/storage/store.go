// Package storage is the single-table DynamoDB access layer. Items are
// schema-less maps keyed by PK/SK, with one global secondary index
// (GSI1PK/GSI1SK) used as the creation-time ordering facet.
//
// Every operation keeps the underlying transport error in its chain,
// annotated with the DynamoDB error code when one is present; retry policy
// belongs to the callers (pipeline steps), not to this layer.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/docuflow/go-document-idp/internal/aws"
)

// Key attribute names of the single-table design.
const (
	AttrPK     = "PK"
	AttrSK     = "SK"
	AttrGSI1PK = "GSI1PK"
	AttrGSI1SK = "GSI1SK"
)

// Item is one schema-less table row. The extracted-data payload varies per
// document type, so rows are generic maps rather than a fixed struct.
type Item = map[string]any

// Store encapsulates operations on the documents table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
}

// NewStore creates a new single-table Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
	}
}

// GetItem fetches one item by full primary key. Returns (nil, nil) if not found.
func (s *Store) GetItem(ctx context.Context, pk, sk string) (Item, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			AttrPK: &types.AttributeValueMemberS{Value: pk},
			AttrSK: &types.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return nil, wrapErr("get item", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var item Item
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return item, nil
}

// QueryPrefix runs a begins_with query on the sort key, optionally against a
// GSI. It follows LastEvaluatedKey pagination until the caller's limit is
// satisfied or the result set is exhausted; single pages may over-fetch, the
// returned slice never exceeds limit. Results follow the sort key's natural
// order, so CREATED_AT# keys come back timestamp-sorted; descending inverts
// the traversal for most-recent-first reads.
func (s *Store) QueryPrefix(ctx context.Context, pk, skPrefix string, limit int32, indexName string, descending bool) ([]Item, error) {
	pkName, skName := AttrPK, AttrSK
	if indexName != "" {
		pkName, skName = AttrGSI1PK, AttrGSI1SK
	}

	forward := !descending
	input := &dyn.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: awsString("#pk = :pk AND begins_with(#sk, :sk)"),
		ExpressionAttributeNames: map[string]string{
			"#pk": pkName,
			"#sk": skName,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
			":sk": &types.AttributeValueMemberS{Value: skPrefix},
		},
		Limit:            &limit,
		ScanIndexForward: &forward,
	}
	if indexName != "" {
		input.IndexName = &indexName
	}

	var all []Item
	for {
		out, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, wrapErr(fmt.Sprintf("query pk=%s sk_prefix=%s", pk, skPrefix), err)
		}
		for _, raw := range out.Items {
			var item Item
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("unmarshal query item: %w", err)
			}
			all = append(all, item)
		}
		if int32(len(all)) >= limit || out.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	if int32(len(all)) > limit {
		all = all[:limit]
	}
	return all, nil
}

// PutItem writes one item, overwriting any existing PK+SK slot. There is no
// optimistic-concurrency check: last writer wins.
func (s *Store) PutItem(ctx context.Context, item Item) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      av,
	})
	if err != nil {
		return wrapErr("put item", err)
	}
	return nil
}

// DeleteItem removes one item by full primary key.
func (s *Store) DeleteItem(ctx context.Context, pk, sk string) error {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			AttrPK: &types.AttributeValueMemberS{Value: pk},
			AttrSK: &types.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return wrapErr("delete item", err)
	}
	return nil
}

// ScanAll returns every item in the table.
//
// Deprecated: unbounded scan kept only for the early listing variant; use
// QueryPrefix against the ordering index instead.
func (s *Store) ScanAll(ctx context.Context) ([]Item, error) {
	out, err := s.client.Scan(ctx, &dyn.ScanInput{
		TableName: &s.tableName,
	})
	if err != nil {
		return nil, wrapErr("scan", err)
	}
	items := make([]Item, 0, len(out.Items))
	for _, raw := range out.Items {
		var item Item
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("unmarshal scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}

// wrapErr annotates a failed call with the DynamoDB error code when one is
// present, so logs show the failure class (throttling, missing table) without
// unwrapping the SDK chain. The original error stays wrapped for errors.Is/As.
func wrapErr(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s: %w", op, apiErr.ErrorCode(), err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func awsString(s string) *string { return &s }
