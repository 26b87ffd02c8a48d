package database

import (
	"time"

	"support-chat-backend/internal/model"
)

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullableTime(ts string) *time.Time {
	t := model.ParseTime(ts)
	if t.IsZero() {
		return nil
	}
	return &t
}

func formatNullable(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return model.FormatTime(*t)
}

func VisitorRowFrom(v model.VisitorItem) VisitorRow {
	return VisitorRow{
		ID:        v.VisitorID,
		Name:      v.Name,
		Email:     v.Email,
		Mobile:    v.Mobile,
		IPAddress: v.IPAddress,
		UserAgent: v.UserAgent,
		CreatedAt: model.ParseTime(v.CreatedAt),
	}
}

func (r VisitorRow) Item() model.VisitorItem {
	return model.VisitorItem{
		VisitorID: r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Mobile:    r.Mobile,
		IPAddress: r.IPAddress,
		UserAgent: r.UserAgent,
		CreatedAt: model.FormatTime(r.CreatedAt),
	}
}

func AgentRowFrom(a model.AgentItem) AgentRow {
	return AgentRow{
		ID:                 a.AgentID,
		Name:               a.Name,
		Email:              a.Email,
		IsActive:           a.IsActive,
		IsOnline:           a.IsOnline,
		MaxConcurrentChats: a.MaxConcurrentChats,
		CreatedAt:          model.ParseTime(a.CreatedAt),
	}
}

func (r AgentRow) Item() model.AgentItem {
	return model.AgentItem{
		AgentID:            r.ID,
		Name:               r.Name,
		Email:              r.Email,
		IsActive:           r.IsActive,
		IsOnline:           r.IsOnline,
		MaxConcurrentChats: r.MaxConcurrentChats,
		CreatedAt:          model.FormatTime(r.CreatedAt),
	}
}

func ConversationRowFrom(c model.ConversationItem) ConversationRow {
	return ConversationRow{
		ID:               c.ConversationID,
		VisitorID:        c.VisitorID,
		VisitorName:      c.VisitorName,
		VisitorEmail:     c.VisitorEmail,
		Status:           string(c.Status),
		AssignedAgentID:  nullableString(c.AssignedAgentID),
		HandledByAgentID: nullableString(c.HandledByAgentID),
		AssignedAt:       nullableTime(c.AssignedAt),
		StartedAt:        model.ParseTime(c.StartedAt),
		EndedAt:          nullableTime(c.EndedAt),
	}
}

func (r ConversationRow) Item() model.ConversationItem {
	return model.ConversationItem{
		ConversationID:   r.ID,
		VisitorID:        r.VisitorID,
		VisitorName:      r.VisitorName,
		VisitorEmail:     r.VisitorEmail,
		Status:           model.ConversationStatus(r.Status),
		AssignedAgentID:  derefString(r.AssignedAgentID),
		HandledByAgentID: derefString(r.HandledByAgentID),
		AssignedAt:       formatNullable(r.AssignedAt),
		StartedAt:        model.FormatTime(r.StartedAt),
		EndedAt:          formatNullable(r.EndedAt),
	}
}

func MessageRowFrom(m model.MessageItem) MessageRow {
	return MessageRow{
		ID:             m.MessageID,
		ConversationID: m.ConversationID,
		SenderType:     string(m.SenderType),
		SenderID:       nullableString(m.SenderID),
		Body:           m.Body,
		CreatedAt:      model.ParseTime(m.CreatedAt),
	}
}

func (r MessageRow) Item() model.MessageItem {
	createdAt := model.FormatTime(r.CreatedAt)
	return model.MessageItem{
		ConversationID: r.ConversationID,
		SortKey:        model.MessageSortKey(createdAt, r.ID),
		MessageID:      r.ID,
		SenderType:     model.SenderType(r.SenderType),
		SenderID:       derefString(r.SenderID),
		Body:           r.Body,
		CreatedAt:      createdAt,
	}
}

func RatingRowFrom(r model.RatingItem) RatingRow {
	return RatingRow{
		ConversationID: r.ConversationID,
		AgentRating:    r.AgentRating,
		SystemRating:   r.SystemRating,
		Comment:        r.Comment,
		SubmittedAt:    model.ParseTime(r.SubmittedAt),
	}
}

func (r RatingRow) Item() model.RatingItem {
	return model.RatingItem{
		ConversationID: r.ConversationID,
		AgentRating:    r.AgentRating,
		SystemRating:   r.SystemRating,
		Comment:        r.Comment,
		SubmittedAt:    model.FormatTime(r.SubmittedAt),
	}
}

func AgentOTPRowFrom(o model.AgentOTPItem) AgentOTPRow {
	return AgentOTPRow{
		ID:         o.OTPID,
		Email:      o.Email,
		CodeHash:   o.CodeHash,
		CreatedAt:  model.ParseTime(o.CreatedAt),
		IsVerified: o.IsVerified,
		Attempts:   o.Attempts,
	}
}

func (r AgentOTPRow) Item() model.AgentOTPItem {
	return model.AgentOTPItem{
		OTPID:      r.ID,
		Email:      r.Email,
		CodeHash:   r.CodeHash,
		CreatedAt:  model.FormatTime(r.CreatedAt),
		IsVerified: r.IsVerified,
		Attempts:   r.Attempts,
	}
}
