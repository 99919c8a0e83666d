package correlation

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRememberAndLookup(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	_, ok, err := store.Lookup(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Remember(ctx, 1, 111))
	chatID, ok, err := store.Lookup(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(111), chatID)
}

func TestMemoryStoreExpires(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Remember(ctx, 1, 111))
	now = now.Add(2 * time.Minute)

	_, ok, err := store.Lookup(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Remember(ctx, 2, 222))
	store.mu.Lock()
	assert.Len(t, store.entries, 1)
	store.mu.Unlock()
}

func TestMemoryStoreSweepsOnInterval(t *testing.T) {
	store := NewMemoryStore(10 * time.Second)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Remember(ctx, 1, 111))
	now = now.Add(30 * time.Second)
	require.NoError(t, store.Remember(ctx, 2, 222))
	store.mu.Lock()
	assert.Len(t, store.entries, 2, "no sweep inside the interval")
	store.mu.Unlock()

	now = now.Add(40 * time.Second)
	require.NoError(t, store.Remember(ctx, 3, 333))
	store.mu.Lock()
	assert.Len(t, store.entries, 1)
	store.mu.Unlock()
}

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestRedisStore(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRedisStore(client, time.Hour)
	ctx := context.Background()

	_, ok, err := store.Lookup(ctx, 42)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Remember(ctx, 42, 111))
	assert.True(t, mr.Exists("relay:corr:42"))
	assert.Equal(t, time.Hour, mr.TTL("relay:corr:42"))

	chatID, ok, err := store.Lookup(ctx, 42)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(111), chatID)

	mr.FastForward(2 * time.Hour)
	_, ok, err = store.Lookup(ctx, 42)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	store := NewRedisStore(client, time.Hour)
	mr.Close()

	_, _, err = store.Lookup(context.Background(), 1)
	assert.Error(t, err)
	assert.Error(t, store.Remember(context.Background(), 1, 2))
}

func TestNewRedisStorePanicsWithoutClient(t *testing.T) {
	assert.Panics(t, func() { NewRedisStore(nil, time.Hour) })
}

type mockDynamo struct {
	putInput  *dynamodb.PutItemInput
	putErr    error
	getInput  *dynamodb.GetItemInput
	getOutput *dynamodb.GetItemOutput
	getErr    error
}

func (m *mockDynamo) PutItem(ctx context.Context, input *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.putInput = input
	return &dynamodb.PutItemOutput{}, m.putErr
}

func (m *mockDynamo) GetItem(ctx context.Context, input *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.getInput = input
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.getOutput == nil {
		return &dynamodb.GetItemOutput{}, nil
	}
	return m.getOutput, nil
}

func TestDynamoStoreRemember(t *testing.T) {
	mock := &mockDynamo{}
	store := NewDynamoStore(mock, "operator_relay", time.Hour)
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Remember(context.Background(), 7, 111))
	require.NotNil(t, mock.putInput)
	assert.Equal(t, "operator_relay", *mock.putInput.TableName)

	var rec dynamoRecord
	require.NoError(t, attributevalue.UnmarshalMap(mock.putInput.Item, &rec))
	assert.Equal(t, "corr#7", rec.PK)
	assert.Equal(t, int64(111), rec.ChatID)
	assert.Equal(t, now.Add(time.Hour).Unix(), rec.ExpiresAt)
}

func TestDynamoStoreRememberPropagatesError(t *testing.T) {
	store := NewDynamoStore(&mockDynamo{putErr: errors.New("throttled")}, "t", time.Hour)
	assert.Error(t, store.Remember(context.Background(), 1, 1))
}

func TestDynamoStoreLookup(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	item := func(expiresAt int64) map[string]types.AttributeValue {
		return map[string]types.AttributeValue{
			"pk":        &types.AttributeValueMemberS{Value: "corr#7"},
			"chatId":    &types.AttributeValueMemberN{Value: "111"},
			"expiresAt": &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt, 10)},
		}
	}

	t.Run("hit", func(t *testing.T) {
		mock := &mockDynamo{getOutput: &dynamodb.GetItemOutput{Item: item(now.Unix() + 60)}}
		store := NewDynamoStore(mock, "t", time.Hour)
		store.now = func() time.Time { return now }

		chatID, ok, err := store.Lookup(context.Background(), 7)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(111), chatID)
		key := mock.getInput.Key["pk"].(*types.AttributeValueMemberS)
		assert.Equal(t, "corr#7", key.Value)
	})

	t.Run("expired row", func(t *testing.T) {
		store := NewDynamoStore(&mockDynamo{getOutput: &dynamodb.GetItemOutput{Item: item(now.Unix() - 1)}}, "t", time.Hour)
		store.now = func() time.Time { return now }

		_, ok, err := store.Lookup(context.Background(), 7)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("missing", func(t *testing.T) {
		store := NewDynamoStore(&mockDynamo{}, "t", time.Hour)
		_, ok, err := store.Lookup(context.Background(), 7)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("error", func(t *testing.T) {
		store := NewDynamoStore(&mockDynamo{getErr: errors.New("boom")}, "t", time.Hour)
		_, _, err := store.Lookup(context.Background(), 7)
		assert.Error(t, err)
	})
}
