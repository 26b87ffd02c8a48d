package database

import (
	"context"
	"errors"
	"fmt"

	"support-chat-backend/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"gorm.io/gorm"
)

var (
	// ErrItemNotFound is returned by GetItem when the key does not exist.
	ErrItemNotFound = errors.New("database: item not found")
	// ErrConditionFailed is returned when a conditional write matched no row.
	ErrConditionFailed = errors.New("database: condition failed")
)

type DynamoDBClient struct {
	svc *dynamodb.Client
}

func NewDynamoDBClient(ctx context.Context, cfg config.DynamoDBConfig) (*DynamoDBClient, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	clientOpts := []func(*dynamodb.Options){}
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		clientOpts = append(clientOpts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}

	return &DynamoDBClient{
		svc: dynamodb.NewFromConfig(awsCfg, clientOpts...),
	}, nil
}

// Database holds whichever backing store the configuration selected.
// Exactly one of Client and SQL is set.
type Database struct {
	Driver string
	Client *DynamoDBClient
	SQL    *gorm.DB
}

func NewDatabase(ctx context.Context, cfg config.Config) (*Database, error) {
	switch cfg.Store.Driver {
	case config.StoreDynamoDB:
		client, err := NewDynamoDBClient(ctx, cfg.DynamoDB)
		if err != nil {
			return nil, fmt.Errorf("init dynamodb client: %w", err)
		}
		return &Database{Driver: cfg.Store.Driver, Client: client}, nil
	case config.StoreMySQL, config.StoreSQLite:
		db, err := OpenSQL(cfg.Store.Driver, cfg.SQL.DSN)
		if err != nil {
			return nil, err
		}
		if err := AutoMigrate(db); err != nil {
			return nil, err
		}
		return &Database{Driver: cfg.Store.Driver, SQL: db}, nil
	default:
		return nil, fmt.Errorf("database: unknown driver %q", cfg.Store.Driver)
	}
}

// Ping checks that the selected store answers.
func (d *Database) Ping(ctx context.Context) error {
	if d.SQL != nil {
		sqlDB, err := d.SQL.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
	if d.Client != nil {
		_, err := d.Client.svc.ListTables(ctx, &dynamodb.ListTablesInput{Limit: aws.Int32(1)})
		return err
	}
	return errors.New("database: no store configured")
}

func (d *Database) Close() error {
	if d == nil || d.SQL == nil {
		return nil
	}
	sqlDB, err := d.SQL.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
