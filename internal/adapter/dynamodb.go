package adapter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/rzpsarthak13/tablesync/internal/core"
	"github.com/rzpsarthak13/tablesync/internal/kvstore"
)

// DynamoDBAdapter implements core.Adapter on DynamoDB tables. An item's
// identifier fields must be the table's key attributes. DynamoDB generates
// no values, so an inserted row is returned as written.
type DynamoDBAdapter struct {
	cfg    core.AdapterConfig
	client *dynamodb.Client
	closed bool
}

// NewDynamoDBAdapter creates an unconfigured adapter.
func NewDynamoDBAdapter() *DynamoDBAdapter {
	return &DynamoDBAdapter{}
}

// NewDynamoDBAdapterWithClient binds the adapter to an existing client.
func NewDynamoDBAdapterWithClient(client *dynamodb.Client, cfg core.AdapterConfig) *DynamoDBAdapter {
	return &DynamoDBAdapter{cfg: cfg, client: client}
}

func (d *DynamoDBAdapter) Configure(ctx context.Context, cfg core.AdapterConfig) *core.OperationResponse {
	resp := core.NewOperationResponse()

	client, err := kvstore.NewDynamoDBClient(ctx, cfg.Region, cfg.Endpoint, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		resp.AddGeneral(core.SeverityError, "SetConfiguration cannot connect to database. %v", err)
		return resp
	}
	d.cfg = cfg
	d.client = client

	if !d.TestConnection(ctx) {
		resp.AddGeneral(core.SeverityError, "SetConfiguration cannot connect to database.")
		return resp
	}
	log.Printf("[DYNAMODB] Connected to region %s for %s", cfg.Region, cfg.Name)
	resp.AddGeneral(core.SeverityInfo, "SetConfiguration completed successfully.")
	return resp
}

func (d *DynamoDBAdapter) tableName(table string) string {
	return d.cfg.TablePrefix + table
}

func (d *DynamoDBAdapter) checkOpen() error {
	if d.closed {
		return core.ErrClosed
	}
	if d.client == nil {
		return core.ErrNotConfigured
	}
	return nil
}

// Read scans the table. Filter uses the in-memory adapter's syntax and is
// evaluated on the scanned rows.
func (d *DynamoDBAdapter) Read(ctx context.Context, table string, opts core.ReadOptions) ([]*core.Item, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	filter, err := ParseFilter(opts.Filter)
	if err != nil {
		return nil, err
	}

	input := &dynamodb.ScanInput{TableName: aws.String(d.tableName(table))}
	if len(opts.Fields) > 0 {
		names := make(map[string]string, len(opts.Fields))
		placeholders := make([]string, len(opts.Fields))
		for i, f := range opts.Fields {
			p := fmt.Sprintf("#f%d", i)
			names[p] = f
			placeholders[i] = p
		}
		input.ProjectionExpression = aws.String(strings.Join(placeholders, ", "))
		input.ExpressionAttributeNames = names
	}

	var items []*core.Item
	paginator := dynamodb.NewScanPaginator(d.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan table %s: %w", table, err)
		}
		var rows []map[string]interface{}
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &rows); err != nil {
			return nil, fmt.Errorf("failed to decode rows of %s: %w", table, err)
		}
		for _, row := range rows {
			item := core.NewDataItem(row)
			if !filter.Match(item) {
				continue
			}
			items = append(items, item)
			if opts.Top > 0 && len(items) == opts.Top {
				log.Printf("[DYNAMODB] Read %d rows from %s", len(items), table)
				return items, nil
			}
		}
	}
	log.Printf("[DYNAMODB] Read %d rows from %s", len(items), table)
	return items, nil
}

// keyCondition builds "attribute_exists(#k0) AND ..." or the negated form
// for the identifier fields.
func keyCondition(ids core.Fields, fn string) (string, map[string]string) {
	names := make(map[string]string, ids.Len())
	var conds []string
	for i, k := range ids.Keys() {
		p := fmt.Sprintf("#k%d", i)
		names[p] = k
		conds = append(conds, fmt.Sprintf("%s(%s)", fn, p))
	}
	return strings.Join(conds, " AND "), names
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func (d *DynamoDBAdapter) Insert(ctx context.Context, table string, items []*core.Item) (*core.InsertResult, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}

	result := core.NewInsertResult()
	for _, item := range items {
		if item.Identifiers.Len() == 0 {
			result.Response.AddItemError(core.SeverityError, "Item has no identifier fields.", item)
			continue
		}
		combined := item.CombinedView()
		av, err := attributevalue.MarshalMap(combined.ToMap())
		if err != nil {
			result.Response.AddItemError(core.SeverityError, fmt.Sprintf("INSERT failed %v", err), item)
			continue
		}
		cond, names := keyCondition(item.Identifiers, "attribute_not_exists")

		_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:                aws.String(d.tableName(table)),
			Item:                     av,
			ConditionExpression:      aws.String(cond),
			ExpressionAttributeNames: names,
		})
		if isConditionFailed(err) {
			result.Response.AddItemError(core.SeverityError, "An item with the same identifiers already exists.", item)
			continue
		}
		if err != nil {
			log.Printf("[DYNAMODB] ERROR: Failed to insert into %s: %v", table, err)
			result.Response.AddGeneral(core.SeverityError, "Unexpected error inserting data for table %s. Exception message: %v", table, err)
			return result, nil
		}

		output := item.Clone()
		result.Inserted = append(result.Inserted, core.InsertedItem{Input: item, Output: output})
		result.Response.AddSuccess(output)
	}
	log.Printf("[DYNAMODB] Inserted %d of %d rows into %s", len(result.Inserted), len(items), table)
	return result, nil
}

func (d *DynamoDBAdapter) Update(ctx context.Context, table string, items []*core.Item) (*core.ItemsResult, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}

	result := core.NewItemsResult()
	for _, item := range items {
		if item.Identifiers.Len() == 0 {
			result.Response.AddItemError(core.SeverityError, "Item doesn't have primary keys according to schema", item)
			continue
		}
		if item.Data.Len() == 0 {
			result.Response.AddItemError(core.SeverityError, "Updating item failed. No fields to update.", item)
			continue
		}

		key, err := attributevalue.MarshalMap(item.Identifiers.ToMap())
		if err != nil {
			result.Response.AddItemError(core.SeverityError, fmt.Sprintf("UPDATE failed %v", err), item)
			continue
		}
		cond, names := keyCondition(item.Identifiers, "attribute_exists")

		values := make(map[string]types.AttributeValue, item.Data.Len())
		var assignments []string
		var marshalErr error
		idx := 0
		item.Data.Range(func(k string, v interface{}) bool {
			av, err := attributevalue.Marshal(v)
			if err != nil {
				marshalErr = err
				return false
			}
			names[fmt.Sprintf("#d%d", idx)] = k
			values[fmt.Sprintf(":v%d", idx)] = av
			assignments = append(assignments, fmt.Sprintf("#d%d = :v%d", idx, idx))
			idx++
			return true
		})
		if marshalErr != nil {
			result.Response.AddItemError(core.SeverityError, fmt.Sprintf("UPDATE failed %v", marshalErr), item)
			continue
		}

		_, err = d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(d.tableName(table)),
			Key:                       key,
			UpdateExpression:          aws.String("SET " + strings.Join(assignments, ", ")),
			ConditionExpression:       aws.String(cond),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		})
		if isConditionFailed(err) {
			result.Response.AddItemError(core.SeverityError, "Updating item failed. No Output Keys received.", item)
			continue
		}
		if err != nil {
			log.Printf("[DYNAMODB] ERROR: Failed to update %s: %v", table, err)
			result.Response.AddGeneral(core.SeverityError, "Unexpected error updating data for table %s. Exception message: %v", table, err)
			return result, nil
		}
		result.Items = append(result.Items, item)
		result.Response.AddSuccess(item)
	}
	log.Printf("[DYNAMODB] Updated %d of %d rows in %s", len(result.Items), len(items), table)
	return result, nil
}

func (d *DynamoDBAdapter) Delete(ctx context.Context, table string, items []*core.Item) (*core.ItemsResult, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}

	result := core.NewItemsResult()
	for _, item := range items {
		if item.Identifiers.Len() == 0 {
			result.Response.AddItemError(core.SeverityError, "Deleting item failed. No primary keys found.", item)
			continue
		}
		key, err := attributevalue.MarshalMap(item.Identifiers.ToMap())
		if err != nil {
			result.Response.AddItemError(core.SeverityError, fmt.Sprintf("DELETE failed %v", err), item)
			continue
		}

		out, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:    aws.String(d.tableName(table)),
			Key:          key,
			ReturnValues: types.ReturnValueAllOld,
		})
		if err != nil {
			log.Printf("[DYNAMODB] ERROR: Failed to delete from %s: %v", table, err)
			result.Response.AddGeneral(core.SeverityError, "Unexpected error deleting data for table %s. Exception message: %v", table, err)
			return result, nil
		}
		if len(out.Attributes) == 0 {
			result.Response.AddItemError(core.SeverityError, "Deleting item failed. No rows affected.", item)
			continue
		}
		result.Items = append(result.Items, item)
		result.Response.AddSuccess(item)
	}
	log.Printf("[DYNAMODB] Deleted %d of %d rows from %s", len(result.Items), len(items), table)
	return result, nil
}

func (d *DynamoDBAdapter) Upsert(ctx context.Context, table string, items []*core.Item, identifierKeys []string) (*core.ItemsResult, error) {
	if len(identifierKeys) == 0 {
		identifierKeys = d.cfg.Identifiers()
	}
	return Upsert(ctx, d, table, items, identifierKeys)
}

// TestConnection lists at most one table.
func (d *DynamoDBAdapter) TestConnection(ctx context.Context) bool {
	if d.checkOpen() != nil {
		return false
	}
	if _, err := d.client.ListTables(ctx, &dynamodb.ListTablesInput{Limit: aws.Int32(1)}); err != nil {
		log.Printf("[DYNAMODB] ERROR: TestConnection could not connect: %v", err)
		return false
	}
	return true
}

func (d *DynamoDBAdapter) Type() string {
	return "dynamodb"
}

func (d *DynamoDBAdapter) Close() error {
	d.closed = true
	return nil
}

// DynamoDBAdapterFactory creates DynamoDB adapters.
type DynamoDBAdapterFactory struct{}

func (f *DynamoDBAdapterFactory) Type() string {
	return "dynamodb"
}

func (f *DynamoDBAdapterFactory) Validate(cfg core.AdapterConfig) error {
	if cfg.Type != "dynamodb" {
		return fmt.Errorf("invalid type for DynamoDB factory: %s", cfg.Type)
	}
	if cfg.Region == "" {
		return fmt.Errorf("region is required for DynamoDB")
	}
	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		return fmt.Errorf("access_key_id and secret_access_key must be set together")
	}
	return nil
}

func (f *DynamoDBAdapterFactory) New(Dependencies) core.Adapter {
	return NewDynamoDBAdapter()
}

func init() {
	RegisterFactory(&DynamoDBAdapterFactory{})
}
