package kvstore

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/rzpsarthak13/tablesync/internal/config"
	"github.com/rzpsarthak13/tablesync/internal/core"
)

// maxBatchWrite is the BatchWriteItem request limit.
const maxBatchWrite = 25

// DynamoDBKVStore implements core.KVStore on a DynamoDB table whose hash key
// is the string attribute "key".
type DynamoDBKVStore struct {
	client    *dynamodb.Client
	tableName string
	closed    bool
}

// dynamoRecord is the item layout of one key.
type dynamoRecord struct {
	Key       string `dynamodbav:"key"`
	Value     []byte `dynamodbav:"value"`
	TTL       *int64 `dynamodbav:"ttl,omitempty"`
	CreatedAt string `dynamodbav:"created_at"`
}

func (r dynamoRecord) expired(now time.Time) bool {
	return r.TTL != nil && now.Unix() > *r.TTL
}

// NewDynamoDBKVStore creates a client and checks that the table exists.
func NewDynamoDBKVStore(ctx context.Context, cfg config.DynamoDBConfig) (*DynamoDBKVStore, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("region is required")
	}
	if cfg.TableName == "" {
		return nil, fmt.Errorf("table name is required")
	}

	client, err := NewDynamoDBClient(ctx, cfg.Region, cfg.Endpoint, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, err
	}

	describeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := client.DescribeTable(describeCtx, &dynamodb.DescribeTableInput{
		TableName: aws.String(cfg.TableName),
	}); err != nil {
		return nil, fmt.Errorf("failed to connect to DynamoDB table %s: %w", cfg.TableName, err)
	}

	return &DynamoDBKVStore{client: client, tableName: cfg.TableName}, nil
}

// NewDynamoDBClient builds a DynamoDB client. Static credentials and a custom
// endpoint (for LocalStack or DynamoDB Local) are optional.
func NewDynamoDBClient(ctx context.Context, region, endpoint, accessKeyID, secretAccessKey string) (*dynamodb.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if accessKeyID != "" && secretAccessKey != "" {
		cfg.Credentials = credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")
	}

	var opts []func(*dynamodb.Options)
	if endpoint != "" {
		opts = append(opts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	return dynamodb.NewFromConfig(cfg, opts...), nil
}

func keyAttribute(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"key": &types.AttributeValueMemberS{Value: key},
	}
}

func newDynamoRecord(key string, value []byte, ttl time.Duration) dynamoRecord {
	rec := dynamoRecord{
		Key:       key,
		Value:     value,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if ttl > 0 {
		exp := time.Now().Add(ttl).Unix()
		rec.TTL = &exp
	}
	return rec
}

func (d *DynamoDBKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if d.closed {
		return nil, core.ErrClosed
	}

	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.tableName),
		Key:            keyAttribute(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		log.Printf("[DYNAMODB] ERROR: Failed to get key %s: %v", key, err)
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("key %s: %w", key, core.ErrNotFound)
	}

	var rec dynamoRecord
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return nil, fmt.Errorf("invalid value format for key %s: %w", key, err)
	}
	if rec.expired(time.Now()) {
		log.Printf("[DYNAMODB] Key %s has expired", key)
		return nil, fmt.Errorf("key %s: %w", key, core.ErrNotFound)
	}

	log.Printf("[DYNAMODB] GET %s (%d bytes)", key, len(rec.Value))
	return rec.Value, nil
}

func (d *DynamoDBKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if d.closed {
		return core.ErrClosed
	}

	item, err := attributevalue.MarshalMap(newDynamoRecord(key, value, ttl))
	if err != nil {
		return fmt.Errorf("failed to encode key %s: %w", key, err)
	}
	if _, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	}); err != nil {
		log.Printf("[DYNAMODB] ERROR: Failed to set key %s: %v", key, err)
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}

	log.Printf("[DYNAMODB] SET %s (%d bytes, ttl %v)", key, len(value), ttl)
	return nil
}

func (d *DynamoDBKVStore) Delete(ctx context.Context, key string) error {
	if d.closed {
		return core.ErrClosed
	}
	if _, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key:       keyAttribute(key),
	}); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

func (d *DynamoDBKVStore) Exists(ctx context.Context, key string) (bool, error) {
	if d.closed {
		return false, core.ErrClosed
	}

	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(d.tableName),
		Key:                      keyAttribute(key),
		ProjectionExpression:     aws.String("#k, #t"),
		ExpressionAttributeNames: map[string]string{"#k": "key", "#t": "ttl"},
	})
	if err != nil {
		return false, fmt.Errorf("failed to check existence of key %s: %w", key, err)
	}
	if result.Item == nil {
		return false, nil
	}
	var rec dynamoRecord
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return false, fmt.Errorf("invalid value format for key %s: %w", key, err)
	}
	return !rec.expired(time.Now()), nil
}

// BatchSet writes in chunks of 25. DynamoDB batches are not atomic across items.
func (d *DynamoDBKVStore) BatchSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	if d.closed {
		return core.ErrClosed
	}
	if len(items) == 0 {
		return nil
	}

	requests := make([]types.WriteRequest, 0, len(items))
	for key, value := range items {
		item, err := attributevalue.MarshalMap(newDynamoRecord(key, value, ttl))
		if err != nil {
			return fmt.Errorf("failed to encode key %s: %w", key, err)
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}

	for i := 0; i < len(requests); i += maxBatchWrite {
		end := i + maxBatchWrite
		if end > len(requests) {
			end = len(requests)
		}

		pending := map[string][]types.WriteRequest{d.tableName: requests[i:end]}
		for len(pending) > 0 {
			out, err := d.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return fmt.Errorf("failed to batch set keys: %w", err)
			}
			pending = out.UnprocessedItems
		}
	}
	return nil
}

// Keys scans the table for keys starting with prefix.
func (d *DynamoDBKVStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	if d.closed {
		return nil, core.ErrClosed
	}

	input := &dynamodb.ScanInput{
		TableName:                 aws.String(d.tableName),
		ProjectionExpression:      aws.String("#k, #t"),
		FilterExpression:          aws.String("begins_with(#k, :prefix)"),
		ExpressionAttributeNames:  map[string]string{"#k": "key", "#t": "ttl"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":prefix": &types.AttributeValueMemberS{Value: prefix}},
	}
	if prefix == "" {
		input.FilterExpression = nil
		input.ExpressionAttributeValues = nil
	}

	now := time.Now()
	var keys []string
	paginator := dynamodb.NewScanPaginator(d.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys with prefix %s: %w", prefix, err)
		}
		var recs []dynamoRecord
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &recs); err != nil {
			return nil, fmt.Errorf("failed to decode scanned keys: %w", err)
		}
		for _, rec := range recs {
			if !rec.expired(now) {
				keys = append(keys, rec.Key)
			}
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (d *DynamoDBKVStore) Close() error {
	d.closed = true
	return nil
}

// DynamoDBKVStoreFactory creates DynamoDB stores.
type DynamoDBKVStoreFactory struct{}

func (f *DynamoDBKVStoreFactory) Type() string {
	return "dynamodb"
}

func (f *DynamoDBKVStoreFactory) Validate(cfg config.StoreConfig) error {
	if cfg.Type != "dynamodb" {
		return fmt.Errorf("invalid type for DynamoDB factory: %s", cfg.Type)
	}
	if cfg.DynamoDB.Region == "" {
		return fmt.Errorf("region is required for DynamoDB")
	}
	if cfg.DynamoDB.TableName == "" {
		return fmt.Errorf("table_name is required for DynamoDB")
	}
	if cfg.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative, got: %d", cfg.MaxRetries)
	}
	return nil
}

func (f *DynamoDBKVStoreFactory) Create(cfg config.StoreConfig) (core.KVStore, error) {
	store, err := NewDynamoDBKVStore(context.Background(), cfg.DynamoDB)
	if err != nil {
		return nil, fmt.Errorf("failed to create DynamoDB KV store: %w", err)
	}
	return store, nil
}

func init() {
	RegisterFactory(&DynamoDBKVStoreFactory{})
}
