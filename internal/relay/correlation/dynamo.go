package correlation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const dynamoKeyPrefix = "corr#"

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// dynamoRecord shares the relay table with the dedupe records; pk carries a
// type prefix and expiresAt is the table's TTL attribute.
type dynamoRecord struct {
	PK        string `dynamodbav:"pk"`
	ChatID    int64  `dynamodbav:"chatId"`
	ExpiresAt int64  `dynamodbav:"expiresAt"`
}

// DynamoStore keeps correlations in a DynamoDB table keyed by "pk".
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

// NewDynamoStore builds a store backed by the provided DynamoDB client.
func NewDynamoStore(client dynamoAPI, tableName string, ttl time.Duration) *DynamoStore {
	if client == nil {
		panic("correlation: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("correlation: table name cannot be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DynamoStore{client: client, tableName: tableName, ttl: ttl, now: time.Now}
}

func dynamoKey(operatorMessageID int) string {
	return dynamoKeyPrefix + strconv.Itoa(operatorMessageID)
}

func (s *DynamoStore) Remember(ctx context.Context, operatorMessageID int, senderChatID int64) error {
	item, err := attributevalue.MarshalMap(dynamoRecord{
		PK:        dynamoKey(operatorMessageID),
		ChatID:    senderChatID,
		ExpiresAt: s.now().Add(s.ttl).Unix(),
	})
	if err != nil {
		return fmt.Errorf("correlation: marshal record: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("correlation: put record: %w", err)
	}
	return nil
}

func (s *DynamoStore) Lookup(ctx context.Context, operatorMessageID int) (int64, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: dynamoKey(operatorMessageID)},
		},
	})
	if err != nil {
		return 0, false, fmt.Errorf("correlation: get record: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return 0, false, nil
	}
	var rec dynamoRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return 0, false, fmt.Errorf("correlation: unmarshal record: %w", err)
	}
	// TTL deletion is lazy, so expired rows can still be returned
	if rec.ExpiresAt > 0 && rec.ExpiresAt <= s.now().Unix() {
		return 0, false, nil
	}
	if rec.ChatID == 0 {
		return 0, false, errors.New("correlation: record missing chatId")
	}
	return rec.ChatID, true, nil
}
