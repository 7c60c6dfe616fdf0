package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
)

// Key attributes of the hourly table
const (
	hourlyPartitionKey = "UserID"
	hourlySortKey      = "DateHour"
)

// CreateTablesIfNotExist creates the hourly table for local development
func CreateTablesIfNotExist(ctx context.Context, client *dynamodb.Client, config DynamoConfig, logger zerolog.Logger) error {
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(config.HourlyTable),
	})
	if err == nil {
		logger.Info().Str("table", config.HourlyTable).Msg("table already exists")
		return nil
	}

	_, err = client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(config.HourlyTable),
		KeySchema: []dbtypes.KeySchemaElement{
			{AttributeName: aws.String(hourlyPartitionKey), KeyType: dbtypes.KeyTypeHash},
			{AttributeName: aws.String(hourlySortKey), KeyType: dbtypes.KeyTypeRange},
		},
		AttributeDefinitions: []dbtypes.AttributeDefinition{
			{AttributeName: aws.String(hourlyPartitionKey), AttributeType: dbtypes.ScalarAttributeTypeS},
			{AttributeName: aws.String(hourlySortKey), AttributeType: dbtypes.ScalarAttributeTypeS},
		},
		BillingMode: dbtypes.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", config.HourlyTable, err)
	}
	logger.Info().Str("table", config.HourlyTable).Msg("table created")
	return nil
}
