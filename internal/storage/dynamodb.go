package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dailywin/backend/internal/types"
	"github.com/rs/zerolog"
)

// dynamoAPI is the subset of the DynamoDB client the hourly store uses
type dynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// hourlyItem is the DynamoDB shape of a HourlyCounter
type hourlyItem struct {
	types.HourlyCounter
	DateHour string `dynamodbav:"DateHour"`
}

// DateHourKey is the sort key for one hour of one day, e.g. 2024-05-01#09
func DateHourKey(date string, hour int) string {
	return fmt.Sprintf("%s#%02d", date, hour)
}

// DynamoHourlyStore keeps hourly scoreboard counters in DynamoDB
type DynamoHourlyStore struct {
	client dynamoAPI
	config DynamoConfig
	logger zerolog.Logger
}

// NewDynamoHourlyStore creates a new DynamoDB hourly store
func NewDynamoHourlyStore(ctx context.Context, cfg DynamoConfig, logger zerolog.Logger) (*DynamoHourlyStore, error) {
	var client *dynamodb.Client

	if cfg.Mode == DynamoModeLocal {
		// For local mode, build the client directly without LoadDefaultConfig.
		// LoadDefaultConfig queries the EC2 IMDS endpoint which hangs when
		// static credentials are intended.
		client = dynamodb.New(dynamodb.Options{
			Region:       cfg.Region,
			BaseEndpoint: aws.String(cfg.Endpoint),
			Credentials:  credentials.NewStaticCredentialsProvider("local", "local", ""),
		})
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client = dynamodb.NewFromConfig(awsCfg)
	}

	// Create the table in local mode
	if cfg.Mode == DynamoModeLocal {
		if err := CreateTablesIfNotExist(ctx, client, cfg, logger); err != nil {
			return nil, err
		}
	}

	logger.Info().
		Str("mode", string(cfg.Mode)).
		Str("region", cfg.Region).
		Str("table", cfg.HourlyTable).
		Msg("DynamoDB hourly store initialized")

	return newDynamoHourlyStore(client, cfg, logger), nil
}

func newDynamoHourlyStore(client dynamoAPI, cfg DynamoConfig, logger zerolog.Logger) *DynamoHourlyStore {
	return &DynamoHourlyStore{
		client: client,
		config: cfg,
		logger: logger.With().Str("component", "dynamo_hourly").Logger(),
	}
}

// GetHourly returns the counter for one (user, date, hour); ErrNotFound when absent
func (s *DynamoHourlyStore) GetHourly(ctx context.Context, userID, date string, hour int) (types.HourlyCounter, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.config.HourlyTable),
		Key: map[string]dbtypes.AttributeValue{
			hourlyPartitionKey: &dbtypes.AttributeValueMemberS{Value: userID},
			hourlySortKey:      &dbtypes.AttributeValueMemberS{Value: DateHourKey(date, hour)},
		},
	})
	if err != nil {
		return types.HourlyCounter{}, fmt.Errorf("failed to get hourly item: %w", err)
	}
	if len(result.Item) == 0 {
		return types.HourlyCounter{}, ErrNotFound
	}

	var item hourlyItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return types.HourlyCounter{}, fmt.Errorf("failed to unmarshal hourly item: %w", err)
	}
	return item.HourlyCounter, nil
}

// UpsertHourly overwrites the item keyed by (user, date#hour)
func (s *DynamoHourlyStore) UpsertHourly(ctx context.Context, h types.HourlyCounter) error {
	item, err := attributevalue.MarshalMap(hourlyItem{HourlyCounter: h, DateHour: DateHourKey(h.Date, h.Hour)})
	if err != nil {
		return fmt.Errorf("failed to marshal hourly item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.config.HourlyTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save hourly item: %w", err)
	}
	return nil
}

// ListHourly returns every stored hour of one user's day
func (s *DynamoHourlyStore) ListHourly(ctx context.Context, userID, date string) ([]types.HourlyCounter, error) {
	keyCond := expression.Key(hourlyPartitionKey).Equal(expression.Value(userID)).
		And(expression.Key(hourlySortKey).BeginsWith(date + "#"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.config.HourlyTable),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query hourly items: %w", err)
	}

	var items []hourlyItem
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal hourly items: %w", err)
	}

	counters := make([]types.HourlyCounter, 0, len(items))
	for _, item := range items {
		counters = append(counters, item.HourlyCounter)
	}
	return counters, nil
}
