package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const processedDynamoPrefix = "evt#"

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoProcessedStore claims events with a conditional put. Rows whose
// expiresAt has passed but were not yet swept by TTL can be claimed again.
type DynamoProcessedStore struct {
	client    dynamoAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

func NewDynamoProcessedStore(client dynamoAPI, tableName string, ttl time.Duration) *DynamoProcessedStore {
	if client == nil {
		panic("events: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("events: table name cannot be empty")
	}
	if ttl <= 0 {
		ttl = DefaultProcessedTTL
	}
	return &DynamoProcessedStore{client: client, tableName: tableName, ttl: ttl, now: time.Now}
}

func (s *DynamoProcessedStore) key(provider, eventID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: processedDynamoPrefix + processedKey(provider, eventID)},
	}
}

func (s *DynamoProcessedStore) Claim(ctx context.Context, provider, eventID string) (bool, error) {
	now := s.now()
	item := s.key(provider, eventID)
	item["expiresAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(s.ttl).Unix(), 10)}

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk) OR expiresAt < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return false, nil
		}
		return false, fmt.Errorf("events: claim processed: %w", err)
	}
	return true, nil
}

func (s *DynamoProcessedStore) Release(ctx context.Context, provider, eventID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.key(provider, eventID),
	})
	if err != nil {
		return fmt.Errorf("events: release processed: %w", err)
	}
	return nil
}
