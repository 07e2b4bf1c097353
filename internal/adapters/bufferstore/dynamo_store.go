package bufferstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"github.com/ghalamif/FactoryBatch/internal/domain"
	"github.com/ghalamif/FactoryBatch/internal/ports"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoStore buffers records in a table keyed by id (partition) and
// timestamp (sort). Every item also carries an hour bucket; when a global
// secondary index on that attribute is configured, window reads query it
// instead of scanning the table.
type DynamoStore struct {
	client    DynamoAPI
	table     string
	timeIndex string
}

func NewDynamoStore(client DynamoAPI, table, timeIndex string) *DynamoStore {
	return &DynamoStore{client: client, table: table, timeIndex: timeIndex}
}

func (d *DynamoStore) Name() string { return "dynamodb" }

type dynamoItem struct {
	ID        string        `dynamodbav:"id"`
	Timestamp string        `dynamodbav:"timestamp"`
	Bucket    string        `dynamodbav:"bucket,omitempty"`
	Message   dynamoMessage `dynamodbav:"message"`
}

type dynamoMessage struct {
	MachineID   string       `dynamodbav:"machine_id,omitempty"`
	Temperature dynamoNumber `dynamodbav:"temperature"`
	Vibration   dynamoNumber `dynamodbav:"vibration"`
	Timestamp   string       `dynamodbav:"timestamp,omitempty"`
}

// dynamoNumber stores a decimal as a DynamoDB number, whose wire form is its
// decimal text, so no binary float ever sits in between.
type dynamoNumber struct {
	decimal.NullDecimal
}

func (n dynamoNumber) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	if !n.Valid {
		return &types.AttributeValueMemberNULL{Value: true}, nil
	}
	return &types.AttributeValueMemberN{Value: domain.FormatDecimal(n.Decimal)}, nil
}

func (n *dynamoNumber) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	var text string
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		text = v.Value
	case *types.AttributeValueMemberS:
		text = v.Value
	case *types.AttributeValueMemberNULL:
		n.Valid = false
		return nil
	default:
		return fmt.Errorf("unsupported number attribute %T", av)
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return err
	}
	n.NullDecimal = decimal.NewNullDecimal(d)
	return nil
}

func (d *DynamoStore) Put(ctx context.Context, rec *domain.BufferRecord) error {
	item := dynamoItem{
		ID:        rec.ID,
		Timestamp: rec.Timestamp,
		Message: dynamoMessage{
			MachineID:   rec.Message.MachineID,
			Temperature: dynamoNumber{rec.Message.Temperature},
			Vibration:   dynamoNumber{rec.Message.Vibration},
			Timestamp:   rec.Message.Timestamp,
		},
	}
	if t, err := rec.EventTime(); err == nil {
		item.Bucket = domain.HourBucket(t)
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal buffer item: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	var conflict *types.ConditionalCheckFailedException
	if errors.As(err, &conflict) {
		return fmt.Errorf("%w: id=%s timestamp=%s", ErrDuplicateRecord, rec.ID, rec.Timestamp)
	}
	return err
}

// Scan reads the whole table, following pagination to the last page.
func (d *DynamoStore) Scan(ctx context.Context, fn func(rec *domain.BufferRecord) error) error {
	p := dynamodb.NewScanPaginator(d.client, &dynamodb.ScanInput{
		TableName:      aws.String(d.table),
		ConsistentRead: aws.Bool(true),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return err
		}
		if err := emitItems(page.Items, fn); err != nil {
			return err
		}
	}
	return nil
}

// ScanRange queries the hour-bucket index for every hour overlapping w. Without
// an index it falls back to a full scan.
func (d *DynamoStore) ScanRange(ctx context.Context, w domain.TimeWindow, fn func(rec *domain.BufferRecord) error) error {
	if d.timeIndex == "" {
		return d.Scan(ctx, fn)
	}
	for _, bucket := range w.HourBuckets() {
		p := dynamodb.NewQueryPaginator(d.client, &dynamodb.QueryInput{
			TableName:                aws.String(d.table),
			IndexName:                aws.String(d.timeIndex),
			KeyConditionExpression:   aws.String("#b = :b"),
			ExpressionAttributeNames: map[string]string{"#b": "bucket"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":b": &types.AttributeValueMemberS{Value: bucket},
			},
		})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return err
			}
			if err := emitItems(page.Items, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

func emitItems(items []map[string]types.AttributeValue, fn func(rec *domain.BufferRecord) error) error {
	for _, raw := range items {
		var item dynamoItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return fmt.Errorf("decode buffer item: %w", err)
		}
		rec := &domain.BufferRecord{
			ID:        item.ID,
			Timestamp: item.Timestamp,
			Message: domain.Message{
				MachineID:   item.Message.MachineID,
				Temperature: item.Message.Temperature.NullDecimal,
				Vibration:   item.Message.Vibration.NullDecimal,
				Timestamp:   item.Message.Timestamp,
			},
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

var (
	_ ports.BufferStore  = (*DynamoStore)(nil)
	_ ports.RangeScanner = (*DynamoStore)(nil)
)
