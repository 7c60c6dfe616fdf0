package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dailywin/backend/internal/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDynamo struct {
	items  map[string]map[string]dbtypes.AttributeValue
	putErr error
	query  *dynamodb.QueryInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]dbtypes.AttributeValue{}}
}

func itemKey(key map[string]dbtypes.AttributeValue) string {
	pk := key[hourlyPartitionKey].(*dbtypes.AttributeValueMemberS).Value
	sk := key[hourlySortKey].(*dbtypes.AttributeValueMemberS).Value
	return pk + "|" + sk
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.items[itemKey(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.items[itemKey(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.query = in
	out := &dynamodb.QueryOutput{}
	for _, item := range f.items {
		out.Items = append(out.Items, item)
	}
	return out, nil
}

func newTestDynamoStore(client dynamoAPI) *DynamoHourlyStore {
	cfg := DynamoConfig{Mode: DynamoModeLocal, HourlyTable: "hourly"}
	return newDynamoHourlyStore(client, cfg, zerolog.New(&bytes.Buffer{}))
}

func TestDynamoHourlyStoreRoundTrip(t *testing.T) {
	fake := newFakeDynamo()
	store := newTestDynamoStore(fake)
	ctx := context.Background()

	_, err := store.GetHourly(ctx, "u1", "2024-05-06", 9)
	assert.ErrorIs(t, err, ErrNotFound)

	h := types.HourlyCounter{UserID: "u1", Date: "2024-05-06", Hour: 9, Calls: 40, Won: true}
	require.NoError(t, store.UpsertHourly(ctx, h))

	stored := fake.items["u1|2024-05-06#09"]
	require.NotNil(t, stored)
	var item hourlyItem
	require.NoError(t, attributevalue.UnmarshalMap(stored, &item))
	assert.Equal(t, "2024-05-06#09", item.DateHour)

	got, err := store.GetHourly(ctx, "u1", "2024-05-06", 9)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestDynamoHourlyStoreList(t *testing.T) {
	fake := newFakeDynamo()
	store := newTestDynamoStore(fake)
	ctx := context.Background()

	require.NoError(t, store.UpsertHourly(ctx, types.HourlyCounter{UserID: "u1", Date: "2024-05-06", Hour: 9, Calls: 3}))
	require.NoError(t, store.UpsertHourly(ctx, types.HourlyCounter{UserID: "u1", Date: "2024-05-06", Hour: 10, Sales: 1, Won: true}))

	got, err := store.ListHourly(ctx, "u1", "2024-05-06")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	require.NotNil(t, fake.query)
	assert.Equal(t, "hourly", *fake.query.TableName)
}

func TestDynamoHourlyStoreWriteError(t *testing.T) {
	fake := newFakeDynamo()
	fake.putErr = errors.New("throttled")
	store := newTestDynamoStore(fake)

	err := store.UpsertHourly(context.Background(), types.HourlyCounter{UserID: "u1", Date: "2024-05-06", Hour: 9})
	assert.ErrorContains(t, err, "throttled")
}

func TestLoadDynamoConfig(t *testing.T) {
	t.Setenv("DYNAMO_MODE", "bogus")
	cfg := LoadDynamoConfig()
	assert.Equal(t, DynamoModeNone, cfg.Mode)
	assert.False(t, cfg.Enabled())

	t.Setenv("DYNAMO_MODE", "local")
	t.Setenv("DYNAMO_HOURLY_TABLE", "custom")
	cfg = LoadDynamoConfig()
	assert.True(t, cfg.Enabled())
	assert.Equal(t, "custom", cfg.HourlyTable)
}
