package database

import (
	"context"
	"errors"
	"fmt"

	"support-chat-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type KeySpec struct {
	PartitionKey string
	SortKey      string
}

type IndexSpec struct {
	Name string
	KeySpec
}

type TableSpec struct {
	Name string
	KeySpec
	Indexes []IndexSpec
}

// SupportTables describes every DynamoDB table the repositories read and write.
func SupportTables() []TableSpec {
	return []TableSpec{
		{Name: model.VisitorsTable, KeySpec: KeySpec{PartitionKey: "visitorId"}},
		{
			Name:    model.AgentsTable,
			KeySpec: KeySpec{PartitionKey: "agentId"},
			Indexes: []IndexSpec{{Name: model.AgentsByEmailIndex, KeySpec: KeySpec{PartitionKey: "email"}}},
		},
		{
			Name:    model.ConversationsTable,
			KeySpec: KeySpec{PartitionKey: "conversationId"},
			Indexes: []IndexSpec{
				{Name: model.ConversationsByStatusIndex, KeySpec: KeySpec{PartitionKey: "status", SortKey: "startedAt"}},
				{Name: model.ConversationsByAgentIndex, KeySpec: KeySpec{PartitionKey: "handledByAgentId", SortKey: "startedAt"}},
			},
		},
		{Name: model.MessagesTable, KeySpec: KeySpec{PartitionKey: "conversationId", SortKey: "sortKey"}},
		{Name: model.RatingsTable, KeySpec: KeySpec{PartitionKey: "conversationId"}},
		{
			Name:    model.AgentOTPsTable,
			KeySpec: KeySpec{PartitionKey: "otpId"},
			Indexes: []IndexSpec{{Name: model.OTPsByEmailIndex, KeySpec: KeySpec{PartitionKey: "email", SortKey: "createdAt"}}},
		},
	}
}

func (c *DynamoDBClient) ListTables(ctx context.Context) ([]string, error) {
	var last *string
	var names []string

	for {
		out, err := c.svc.ListTables(ctx, &dynamodb.ListTablesInput{
			ExclusiveStartTableName: last,
			Limit:                   aws.Int32(100),
		})
		if err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}

		names = append(names, out.TableNames...)
		if out.LastEvaluatedTableName == nil {
			break
		}
		last = out.LastEvaluatedTableName
	}
	return names, nil
}

// EnsureTables creates the tables in specs that do not exist yet and returns
// the names it created.
func (c *DynamoDBClient) EnsureTables(ctx context.Context, specs []TableSpec) ([]string, error) {
	var created []string
	for _, spec := range specs {
		_, err := c.svc.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(spec.Name)})
		if err == nil {
			continue
		}
		var missing *types.ResourceNotFoundException
		if !errors.As(err, &missing) {
			return created, fmt.Errorf("describe table %s: %w", spec.Name, err)
		}

		if _, err := c.svc.CreateTable(ctx, createTableInput(spec)); err != nil {
			return created, fmt.Errorf("create table %s: %w", spec.Name, err)
		}
		created = append(created, spec.Name)
	}
	return created, nil
}

func createTableInput(spec TableSpec) *dynamodb.CreateTableInput {
	attrs := map[string]struct{}{}
	var definitions []types.AttributeDefinition
	define := func(name string) {
		if name == "" {
			return
		}
		if _, ok := attrs[name]; ok {
			return
		}
		attrs[name] = struct{}{}
		definitions = append(definitions, types.AttributeDefinition{
			AttributeName: aws.String(name),
			AttributeType: types.ScalarAttributeTypeS,
		})
	}

	define(spec.PartitionKey)
	define(spec.SortKey)

	input := &dynamodb.CreateTableInput{
		TableName:   aws.String(spec.Name),
		KeySchema:   keySchema(spec.KeySpec),
		BillingMode: types.BillingModePayPerRequest,
	}

	for _, idx := range spec.Indexes {
		define(idx.PartitionKey)
		define(idx.SortKey)
		input.GlobalSecondaryIndexes = append(input.GlobalSecondaryIndexes, types.GlobalSecondaryIndex{
			IndexName:  aws.String(idx.Name),
			KeySchema:  keySchema(idx.KeySpec),
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		})
	}

	input.AttributeDefinitions = definitions
	return input
}

func keySchema(k KeySpec) []types.KeySchemaElement {
	schema := []types.KeySchemaElement{
		{AttributeName: aws.String(k.PartitionKey), KeyType: types.KeyTypeHash},
	}
	if k.SortKey != "" {
		schema = append(schema, types.KeySchemaElement{AttributeName: aws.String(k.SortKey), KeyType: types.KeyTypeRange})
	}
	return schema
}
