package storage

import "os"

// Config configures the Postgres pool that backs every table
type Config struct {
	URL      string
	MaxConns int32
}

// DynamoMode represents the DynamoDB connection mode
type DynamoMode string

const (
	DynamoModeLocal DynamoMode = "local"
	DynamoModeAWS   DynamoMode = "aws"
	DynamoModeNone  DynamoMode = "none"
)

// DynamoConfig holds DynamoDB configuration for the hourly scoreboard table
type DynamoConfig struct {
	Mode        DynamoMode
	Endpoint    string // for local mode
	Region      string
	HourlyTable string
}

// Enabled reports whether hourly counters live in DynamoDB instead of Postgres
func (c DynamoConfig) Enabled() bool {
	return c.Mode == DynamoModeLocal || c.Mode == DynamoModeAWS
}

// LoadDynamoConfig loads DynamoDB config from environment
func LoadDynamoConfig() DynamoConfig {
	mode := DynamoMode(getEnv("DYNAMO_MODE", "none"))
	if mode != DynamoModeLocal && mode != DynamoModeAWS {
		mode = DynamoModeNone
	}

	return DynamoConfig{
		Mode:        mode,
		Endpoint:    getEnv("DYNAMO_ENDPOINT", "http://localhost:8000"),
		Region:      getEnv("DYNAMO_REGION", "us-east-1"),
		HourlyTable: getEnv("DYNAMO_HOURLY_TABLE", "dailywin-hourly-activity"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
