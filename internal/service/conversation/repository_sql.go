package conversation

import (
	"context"
	"errors"
	"fmt"

	"support-chat-backend/internal/database"
	"support-chat-backend/internal/model"

	"gorm.io/gorm"
)

// SQLRepository stores conversations through GORM. The status guard in the
// UPDATE's WHERE clause gives the same compare-and-swap DynamoDB gets from a
// condition expression.
type SQLRepository struct {
	db *gorm.DB
}

func NewSQLRepository(db *gorm.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) CreateVisitor(ctx context.Context, visitor model.VisitorItem) error {
	row := database.VisitorRowFrom(visitor)
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *SQLRepository) GetVisitor(ctx context.Context, visitorID string) (model.VisitorItem, error) {
	var row database.VisitorRow
	if err := r.db.WithContext(ctx).Where("id = ?", visitorID).First(&row).Error; err != nil {
		return model.VisitorItem{}, mapSQLError(err)
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

func (r *SQLRepository) CreateConversation(ctx context.Context, conversation model.ConversationItem) error {
	row := database.ConversationRowFrom(conversation)
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *SQLRepository) GetConversation(ctx context.Context, conversationID string) (model.ConversationItem, error) {
	var row database.ConversationRow
	if err := r.db.WithContext(ctx).Where("id = ?", conversationID).First(&row).Error; err != nil {
		return model.ConversationItem{}, mapSQLError(err)
	}
	return row.Item(), nil
}

func (r *SQLRepository) TransitionConversation(ctx context.Context, conversationID string, tr Transition) (model.ConversationItem, error) {
	if len(tr.From) == 0 {
		return model.ConversationItem{}, fmt.Errorf("transition to %s: no source states", tr.To)
	}

	from := make([]string, 0, len(tr.From))
	for _, status := range tr.From {
		from = append(from, string(status))
	}

	updates := map[string]interface{}{"status": string(tr.To)}
	if tr.AssignAgentID != "" {
		assignedAt := model.ParseTime(tr.AssignedAt)
		updates["assigned_agent_id"] = tr.AssignAgentID
		updates["handled_by_agent_id"] = tr.AssignAgentID
		updates["assigned_at"] = &assignedAt
	}
	if tr.ClearAgent {
		updates["assigned_agent_id"] = nil
	}
	if tr.EndedAt != "" {
		endedAt := model.ParseTime(tr.EndedAt)
		updates["ended_at"] = &endedAt
	}

	res := r.db.WithContext(ctx).
		Model(&database.ConversationRow{}).
		Where("id = ? AND status IN ?", conversationID, from).
		Updates(updates)
	if res.Error != nil {
		return model.ConversationItem{}, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetConversation(ctx, conversationID); err != nil {
			return model.ConversationItem{}, err
		}
		return model.ConversationItem{}, ErrStaleStatus
	}
	return r.GetConversation(ctx, conversationID)
}

func (r *SQLRepository) ListConversationsByStatus(ctx context.Context, status model.ConversationStatus, limit int) ([]model.ConversationItem, error) {
	var rows []database.ConversationRow
	q := r.db.WithContext(ctx).Where("status = ?", string(status)).Order("started_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return conversationItems(rows), nil
}

func (r *SQLRepository) ListConversationsByAgent(ctx context.Context, agentID string, limit int) ([]model.ConversationItem, error) {
	var rows []database.ConversationRow
	q := r.db.WithContext(ctx).Where("handled_by_agent_id = ?", agentID).Order("assigned_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return conversationItems(rows), nil
}

func (r *SQLRepository) CreateMessage(ctx context.Context, message model.MessageItem) error {
	row := database.MessageRowFrom(message)
	return r.db.WithContext(ctx).Create(&row).Error
}

// ListMessages returns the newest limit messages in ascending order. Seq
// breaks ties between messages stored within the same microsecond.
func (r *SQLRepository) ListMessages(ctx context.Context, conversationID string, limit int) ([]model.MessageItem, error) {
	var rows []database.MessageRow
	q := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Order("seq DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	messages := make([]model.MessageItem, len(rows))
	for i, row := range rows {
		messages[len(rows)-1-i] = row.Item()
	}
	return messages, nil
}

func (r *SQLRepository) UpsertRating(ctx context.Context, rating model.RatingItem) error {
	row := database.RatingRowFrom(rating)
	return r.db.WithContext(ctx).Save(&row).Error
}

func (r *SQLRepository) GetRating(ctx context.Context, conversationID string) (model.RatingItem, error) {
	var row database.RatingRow
	if err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).First(&row).Error; err != nil {
		return model.RatingItem{}, mapSQLError(err)
	}
	return row.Item(), nil
}

func conversationItems(rows []database.ConversationRow) []model.ConversationItem {
	items := make([]model.ConversationItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.Item())
	}
	return items
}

func mapSQLError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
