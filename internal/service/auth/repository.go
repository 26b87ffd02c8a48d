package auth

import (
	"context"
	"errors"

	"support-chat-backend/internal/database"
	"support-chat-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var ErrNotFound = errors.New("auth repository: not found")

type Repository interface {
	GetAgentByEmail(ctx context.Context, email string) (model.AgentItem, error)
	GetAgent(ctx context.Context, agentID string) (model.AgentItem, error)
	CreateAgent(ctx context.Context, agent model.AgentItem) error
	SetAgentOnline(ctx context.Context, agentID string, online bool) error
	SetAgentActive(ctx context.Context, agentID string, active bool) error
	ListAgents(ctx context.Context) ([]model.AgentItem, error)
	CreateOTP(ctx context.Context, otp model.AgentOTPItem) error
	LatestOTP(ctx context.Context, email string) (model.AgentOTPItem, error)
	UpdateOTP(ctx context.Context, otp model.AgentOTPItem) error
	DeleteOTP(ctx context.Context, otpID string) error
}

// NewRepository picks the repository matching the configured store.
func NewRepository(db *database.Database) Repository {
	if db.SQL != nil {
		return NewSQLRepository(db.SQL)
	}
	return NewDynamoRepository(db)
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) *DynamoRepository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) GetAgentByEmail(ctx context.Context, email string) (model.AgentItem, error) {
	items, err := r.db.Client.QueryAll(
		ctx,
		model.AgentsTable,
		aws.String(model.AgentsByEmailIndex),
		"email = :email",
		map[string]types.AttributeValue{":email": database.AttrString(email)},
		nil,
		true,
		1,
	)
	if err != nil {
		return model.AgentItem{}, err
	}
	if len(items) == 0 {
		return model.AgentItem{}, ErrNotFound
	}

	var agents []model.AgentItem
	if err := database.UnmarshalItems(items, &agents); err != nil {
		return model.AgentItem{}, err
	}
	return agents[0], nil
}

func (r *DynamoRepository) GetAgent(ctx context.Context, agentID string) (model.AgentItem, error) {
	var agent model.AgentItem
	if err := r.db.Client.GetItem(ctx, model.AgentsTable, agentKey(agentID), &agent); err != nil {
		if errors.Is(err, database.ErrItemNotFound) {
			return model.AgentItem{}, ErrNotFound
		}
		return model.AgentItem{}, err
	}
	return agent, nil
}

func (r *DynamoRepository) CreateAgent(ctx context.Context, agent model.AgentItem) error {
	return r.db.Client.PutItem(ctx, model.AgentsTable, agent)
}

func (r *DynamoRepository) SetAgentOnline(ctx context.Context, agentID string, online bool) error {
	return r.setAgentFlag(ctx, agentID, "isOnline", online)
}

func (r *DynamoRepository) SetAgentActive(ctx context.Context, agentID string, active bool) error {
	return r.setAgentFlag(ctx, agentID, "isActive", active)
}

func (r *DynamoRepository) setAgentFlag(ctx context.Context, agentID, attr string, value bool) error {
	err := r.db.Client.UpdateItem(
		ctx,
		model.AgentsTable,
		agentKey(agentID),
		"SET #flag = :value",
		"attribute_exists(agentId)",
		map[string]types.AttributeValue{":value": &types.AttributeValueMemberBOOL{Value: value}},
		map[string]string{"#flag": attr},
		nil,
	)
	if errors.Is(err, database.ErrConditionFailed) {
		return ErrNotFound
	}
	return err
}

func (r *DynamoRepository) ListAgents(ctx context.Context) ([]model.AgentItem, error) {
	items, err := r.db.Client.ScanAll(ctx, model.AgentsTable)
	if err != nil {
		return nil, err
	}
	var agents []model.AgentItem
	if err := database.UnmarshalItems(items, &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

func (r *DynamoRepository) CreateOTP(ctx context.Context, otp model.AgentOTPItem) error {
	return r.db.Client.PutItem(ctx, model.AgentOTPsTable, otp)
}

func (r *DynamoRepository) LatestOTP(ctx context.Context, email string) (model.AgentOTPItem, error) {
	items, err := r.db.Client.QueryAll(
		ctx,
		model.AgentOTPsTable,
		aws.String(model.OTPsByEmailIndex),
		"email = :email",
		map[string]types.AttributeValue{":email": database.AttrString(email)},
		nil,
		false,
		1,
	)
	if err != nil {
		return model.AgentOTPItem{}, err
	}
	if len(items) == 0 {
		return model.AgentOTPItem{}, ErrNotFound
	}

	var otps []model.AgentOTPItem
	if err := database.UnmarshalItems(items, &otps); err != nil {
		return model.AgentOTPItem{}, err
	}
	return otps[0], nil
}

func (r *DynamoRepository) UpdateOTP(ctx context.Context, otp model.AgentOTPItem) error {
	return r.db.Client.PutItem(ctx, model.AgentOTPsTable, otp)
}

func (r *DynamoRepository) DeleteOTP(ctx context.Context, otpID string) error {
	return r.db.Client.DeleteItem(ctx, model.AgentOTPsTable, map[string]types.AttributeValue{
		"otpId": database.AttrString(otpID),
	})
}

func agentKey(agentID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"agentId": database.AttrString(agentID),
	}
}
