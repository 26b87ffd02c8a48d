package auth

import (
	"context"
	"errors"

	"support-chat-backend/internal/database"
	"support-chat-backend/internal/model"

	"gorm.io/gorm"
)

type SQLRepository struct {
	db *gorm.DB
}

func NewSQLRepository(db *gorm.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) GetAgentByEmail(ctx context.Context, email string) (model.AgentItem, error) {
	var row database.AgentRow
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&row).Error; err != nil {
		return model.AgentItem{}, mapSQLError(err)
	}
	return row.Item(), nil
}

func (r *SQLRepository) GetAgent(ctx context.Context, agentID string) (model.AgentItem, error) {
	var row database.AgentRow
	if err := r.db.WithContext(ctx).Where("id = ?", agentID).First(&row).Error; err != nil {
		return model.AgentItem{}, mapSQLError(err)
	}
	return row.Item(), nil
}

func (r *SQLRepository) CreateAgent(ctx context.Context, agent model.AgentItem) error {
	row := database.AgentRowFrom(agent)
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *SQLRepository) SetAgentOnline(ctx context.Context, agentID string, online bool) error {
	return r.setAgentColumn(ctx, agentID, "is_online", online)
}

func (r *SQLRepository) SetAgentActive(ctx context.Context, agentID string, active bool) error {
	return r.setAgentColumn(ctx, agentID, "is_active", active)
}

func (r *SQLRepository) setAgentColumn(ctx context.Context, agentID, column string, value bool) error {
	res := r.db.WithContext(ctx).Model(&database.AgentRow{}).Where("id = ?", agentID).Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// MySQL reports zero rows when the value did not change.
		_, err := r.GetAgent(ctx, agentID)
		return err
	}
	return nil
}

func (r *SQLRepository) ListAgents(ctx context.Context) ([]model.AgentItem, error) {
	var rows []database.AgentRow
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	agents := make([]model.AgentItem, 0, len(rows))
	for _, row := range rows {
		agents = append(agents, row.Item())
	}
	return agents, nil
}

func (r *SQLRepository) CreateOTP(ctx context.Context, otp model.AgentOTPItem) error {
	row := database.AgentOTPRowFrom(otp)
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *SQLRepository) LatestOTP(ctx context.Context, email string) (model.AgentOTPItem, error) {
	var row database.AgentOTPRow
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		Order("created_at DESC").
		First(&row).Error
	if err != nil {
		return model.AgentOTPItem{}, mapSQLError(err)
	}
	return row.Item(), nil
}

func (r *SQLRepository) UpdateOTP(ctx context.Context, otp model.AgentOTPItem) error {
	row := database.AgentOTPRowFrom(otp)
	return r.db.WithContext(ctx).Save(&row).Error
}

func (r *SQLRepository) DeleteOTP(ctx context.Context, otpID string) error {
	return r.db.WithContext(ctx).Where("id = ?", otpID).Delete(&database.AgentOTPRow{}).Error
}

func mapSQLError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
