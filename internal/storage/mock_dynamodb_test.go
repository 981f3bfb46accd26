package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo is a small in-memory stand-in for the DynamoDB client. It keys
// items by PK|SK and supports the begins_with query shape the store issues,
// including GSI lookups, sort direction and page-by-page limits.
type mockDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue

	queryCalls int
	failNext   error

	// pageSize forces smaller pages than the requested Limit to exercise
	// LastEvaluatedKey pagination.
	pageSize int
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{
		items: map[string]map[string]types.AttributeValue{},
	}
}

func itemKey(pk, sk string) string { return pk + "|" + sk }

func attrString(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (m *mockDynamo) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	pk := attrString(params.Item[AttrPK])
	sk := attrString(params.Item[AttrSK])
	if pk == "" || sk == "" {
		return nil, errors.New("missing PK/SK in put item")
	}
	m.items[itemKey(pk, sk)] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	pk := attrString(params.Key[AttrPK])
	sk := attrString(params.Key[AttrSK])
	item, ok := m.items[itemKey(pk, sk)]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamo) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	pk := attrString(params.Key[AttrPK])
	sk := attrString(params.Key[AttrSK])
	delete(m.items, itemKey(pk, sk))
	return &dyn.DeleteItemOutput{}, nil
}

func (m *mockDynamo) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryCalls++
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	pkName, skName := AttrPK, AttrSK
	if params.IndexName != nil {
		pkName, skName = AttrGSI1PK, AttrGSI1SK
	}
	wantPK := attrString(params.ExpressionAttributeValues[":pk"])
	prefix := attrString(params.ExpressionAttributeValues[":sk"])

	type row struct {
		sk   string
		item map[string]types.AttributeValue
	}
	var rows []row
	for _, item := range m.items {
		if attrString(item[pkName]) != wantPK {
			continue
		}
		sk := attrString(item[skName])
		if !strings.HasPrefix(sk, prefix) {
			continue
		}
		rows = append(rows, row{sk: sk, item: item})
	}

	asc := params.ScanIndexForward == nil || *params.ScanIndexForward
	sort.Slice(rows, func(i, j int) bool {
		if asc {
			return rows[i].sk < rows[j].sk
		}
		return rows[i].sk > rows[j].sk
	})

	start := 0
	if params.ExclusiveStartKey != nil {
		after := attrString(params.ExclusiveStartKey[skName])
		for i, r := range rows {
			if r.sk == after {
				start = i + 1
				break
			}
		}
	}
	rows = rows[start:]

	pageSize := len(rows)
	if params.Limit != nil && int(*params.Limit) < pageSize {
		pageSize = int(*params.Limit)
	}
	if m.pageSize > 0 && m.pageSize < pageSize {
		pageSize = m.pageSize
	}

	out := &dyn.QueryOutput{}
	for _, r := range rows[:pageSize] {
		out.Items = append(out.Items, r.item)
	}
	if pageSize < len(rows) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			skName: &types.AttributeValueMemberS{Value: rows[pageSize-1].sk},
		}
	}
	return out, nil
}

func (m *mockDynamo) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	out := &dyn.ScanOutput{}
	for _, item := range m.items {
		out.Items = append(out.Items, item)
	}
	return out, nil
}
