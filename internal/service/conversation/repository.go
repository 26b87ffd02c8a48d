package conversation

import (
	"context"
	"errors"
	"fmt"

	"support-chat-backend/internal/database"
	"support-chat-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	ErrNotFound = errors.New("conversation repository: not found")
	// ErrStaleStatus means a conditional transition matched no row because the
	// stored status was not one of the expected source states.
	ErrStaleStatus = errors.New("conversation repository: status precondition failed")
)

type Repository interface {
	CreateVisitor(ctx context.Context, visitor model.VisitorItem) error
	GetVisitor(ctx context.Context, visitorID string) (model.VisitorItem, error)
	GetAgent(ctx context.Context, agentID string) (model.AgentItem, error)
	CreateConversation(ctx context.Context, conversation model.ConversationItem) error
	GetConversation(ctx context.Context, conversationID string) (model.ConversationItem, error)
	// TransitionConversation applies tr as one conditional write. It returns
	// ErrStaleStatus when the stored status is not in tr.From.
	TransitionConversation(ctx context.Context, conversationID string, tr Transition) (model.ConversationItem, error)
	ListConversationsByStatus(ctx context.Context, status model.ConversationStatus, limit int) ([]model.ConversationItem, error)
	ListConversationsByAgent(ctx context.Context, agentID string, limit int) ([]model.ConversationItem, error)
	CreateMessage(ctx context.Context, message model.MessageItem) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]model.MessageItem, error)
	UpsertRating(ctx context.Context, rating model.RatingItem) error
	GetRating(ctx context.Context, conversationID string) (model.RatingItem, error)
}

// Transition is a compare-and-swap on conversation status plus the fields
// that change with it.
type Transition struct {
	From          []model.ConversationStatus
	To            model.ConversationStatus
	AssignAgentID string
	AssignedAt    string
	ClearAgent    bool
	EndedAt       string
}

func (t Transition) Allows(status model.ConversationStatus) bool {
	for _, from := range t.From {
		if from == status {
			return true
		}
	}
	return false
}

// Apply returns c as it looks after the transition.
func (t Transition) Apply(c model.ConversationItem) model.ConversationItem {
	c.Status = t.To
	if t.AssignAgentID != "" {
		c.AssignedAgentID = t.AssignAgentID
		c.HandledByAgentID = t.AssignAgentID
		c.AssignedAt = t.AssignedAt
	}
	if t.ClearAgent {
		c.AssignedAgentID = ""
	}
	if t.EndedAt != "" {
		c.EndedAt = t.EndedAt
	}
	return c
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

func (r *DynamoRepository) CreateVisitor(ctx context.Context, visitor model.VisitorItem) error {
	return r.db.Client.PutItem(ctx, model.VisitorsTable, visitor)
}

func (r *DynamoRepository) GetVisitor(ctx context.Context, visitorID string) (model.VisitorItem, error) {
	var visitor model.VisitorItem
	err := r.db.Client.GetItem(ctx, model.VisitorsTable, map[string]types.AttributeValue{
		"visitorId": database.AttrString(visitorID),
	}, &visitor)
	if err != nil {
		return model.VisitorItem{}, mapDynamoError(err)
	}
	return visitor, nil
}

func (r *DynamoRepository) GetAgent(ctx context.Context, agentID string) (model.AgentItem, error) {
	var agent model.AgentItem
	err := r.db.Client.GetItem(ctx, model.AgentsTable, map[string]types.AttributeValue{
		"agentId": database.AttrString(agentID),
	}, &agent)
	if err != nil {
		return model.AgentItem{}, mapDynamoError(err)
	}
	return agent, nil
}

func (r *DynamoRepository) CreateConversation(ctx context.Context, conversation model.ConversationItem) error {
	return r.db.Client.PutItem(ctx, model.ConversationsTable, conversation)
}

func (r *DynamoRepository) GetConversation(ctx context.Context, conversationID string) (model.ConversationItem, error) {
	var conversation model.ConversationItem
	err := r.db.Client.GetItem(ctx, model.ConversationsTable, conversationKey(conversationID), &conversation)
	if err != nil {
		return model.ConversationItem{}, mapDynamoError(err)
	}
	return conversation, nil
}

func (r *DynamoRepository) TransitionConversation(ctx context.Context, conversationID string, tr Transition) (model.ConversationItem, error) {
	if len(tr.From) == 0 {
		return model.ConversationItem{}, fmt.Errorf("transition to %s: no source states", tr.To)
	}

	setExpr := "SET #status = :to"
	names := map[string]string{"#status": "status"}
	values := map[string]types.AttributeValue{":to": database.AttrString(string(tr.To))}

	if tr.AssignAgentID != "" {
		setExpr += ", #assignedAgentId = :agent, #handledByAgentId = :agent, #assignedAt = :assignedAt"
		names["#assignedAgentId"] = "assignedAgentId"
		names["#handledByAgentId"] = "handledByAgentId"
		names["#assignedAt"] = "assignedAt"
		values[":agent"] = database.AttrString(tr.AssignAgentID)
		values[":assignedAt"] = database.AttrString(tr.AssignedAt)
	}
	if tr.EndedAt != "" {
		setExpr += ", #endedAt = :endedAt"
		names["#endedAt"] = "endedAt"
		values[":endedAt"] = database.AttrString(tr.EndedAt)
	}
	updateExpr := setExpr
	if tr.ClearAgent {
		names["#assignedAgentId"] = "assignedAgentId"
		updateExpr += " REMOVE #assignedAgentId"
	}

	condition := "attribute_exists(conversationId) AND #status IN ("
	for i, from := range tr.From {
		placeholder := fmt.Sprintf(":from%d", i)
		if i > 0 {
			condition += ", "
		}
		condition += placeholder
		values[placeholder] = database.AttrString(string(from))
	}
	condition += ")"

	var updated model.ConversationItem
	err := r.db.Client.UpdateItem(ctx, model.ConversationsTable, conversationKey(conversationID), updateExpr, condition, values, names, &updated)
	if err != nil {
		if errors.Is(err, database.ErrConditionFailed) {
			if _, getErr := r.GetConversation(ctx, conversationID); errors.Is(getErr, ErrNotFound) {
				return model.ConversationItem{}, ErrNotFound
			}
			return model.ConversationItem{}, ErrStaleStatus
		}
		return model.ConversationItem{}, err
	}
	return updated, nil
}

func (r *DynamoRepository) ListConversationsByStatus(ctx context.Context, status model.ConversationStatus, limit int) ([]model.ConversationItem, error) {
	items, err := r.db.Client.QueryAll(
		ctx,
		model.ConversationsTable,
		aws.String(model.ConversationsByStatusIndex),
		"#status = :status",
		map[string]types.AttributeValue{":status": database.AttrString(string(status))},
		map[string]string{"#status": "status"},
		true,
		limit,
	)
	if err != nil {
		return nil, err
	}

	var conversations []model.ConversationItem
	if err := database.UnmarshalItems(items, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

func (r *DynamoRepository) ListConversationsByAgent(ctx context.Context, agentID string, limit int) ([]model.ConversationItem, error) {
	items, err := r.db.Client.QueryAll(
		ctx,
		model.ConversationsTable,
		aws.String(model.ConversationsByAgentIndex),
		"handledByAgentId = :agent",
		map[string]types.AttributeValue{":agent": database.AttrString(agentID)},
		nil,
		false,
		limit,
	)
	if err != nil {
		return nil, err
	}

	var conversations []model.ConversationItem
	if err := database.UnmarshalItems(items, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

func (r *DynamoRepository) CreateMessage(ctx context.Context, message model.MessageItem) error {
	if message.SortKey == "" {
		message.SortKey = model.MessageSortKey(message.CreatedAt, message.MessageID)
	}
	return r.db.Client.PutItem(ctx, model.MessagesTable, message)
}

// ListMessages returns the newest limit messages in ascending order.
func (r *DynamoRepository) ListMessages(ctx context.Context, conversationID string, limit int) ([]model.MessageItem, error) {
	items, err := r.db.Client.QueryAll(
		ctx,
		model.MessagesTable,
		nil,
		"conversationId = :conversationId",
		map[string]types.AttributeValue{":conversationId": database.AttrString(conversationID)},
		nil,
		false,
		limit,
	)
	if err != nil {
		return nil, err
	}

	var messages []model.MessageItem
	if err := database.UnmarshalItems(items, &messages); err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *DynamoRepository) UpsertRating(ctx context.Context, rating model.RatingItem) error {
	return r.db.Client.PutItem(ctx, model.RatingsTable, rating)
}

func (r *DynamoRepository) GetRating(ctx context.Context, conversationID string) (model.RatingItem, error) {
	var rating model.RatingItem
	err := r.db.Client.GetItem(ctx, model.RatingsTable, conversationKey(conversationID), &rating)
	if err != nil {
		return model.RatingItem{}, mapDynamoError(err)
	}
	return rating, nil
}

func conversationKey(conversationID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"conversationId": database.AttrString(conversationID),
	}
}

func mapDynamoError(err error) error {
	if errors.Is(err, database.ErrItemNotFound) {
		return ErrNotFound
	}
	return err
}
