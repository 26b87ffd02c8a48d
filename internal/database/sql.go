package database

import (
	"fmt"
	"time"

	"support-chat-backend/internal/config"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenSQL opens a GORM connection for the mysql or sqlite driver.
func OpenSQL(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case config.StoreMySQL:
		dialector = mysql.Open(dsn)
	case config.StoreSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("db: unsupported sql driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect %s: %w", driver, err)
	}

	if driver == config.StoreSQLite {
		// A single connection keeps :memory: databases shared and writes serialised.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("db: sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

func AllModels() []interface{} {
	return []interface{}{
		&VisitorRow{},
		&AgentRow{},
		&ConversationRow{},
		&MessageRow{},
		&RatingRow{},
		&AgentOTPRow{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

type VisitorRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	Name      string `gorm:"size:255;not null"`
	Email     string `gorm:"size:255;not null;index"`
	Mobile    string `gorm:"size:32"`
	IPAddress string `gorm:"size:64"`
	UserAgent string `gorm:"size:512"`
	CreatedAt time.Time
}

func (VisitorRow) TableName() string { return "support_visitors" }

type AgentRow struct {
	ID                 string `gorm:"primaryKey;size:36"`
	Name               string `gorm:"size:255;not null"`
	Email              string `gorm:"size:255;not null;uniqueIndex"`
	IsActive           bool   `gorm:"not null;default:true"`
	IsOnline           bool   `gorm:"not null;default:false"`
	MaxConcurrentChats int    `gorm:"not null;default:3"`
	CreatedAt          time.Time
}

func (AgentRow) TableName() string { return "support_agents" }

type ConversationRow struct {
	ID               string  `gorm:"primaryKey;size:36"`
	VisitorID        string  `gorm:"size:36;not null;index"`
	VisitorName      string  `gorm:"size:255"`
	VisitorEmail     string  `gorm:"size:255"`
	Status           string  `gorm:"size:16;not null;index"`
	AssignedAgentID  *string `gorm:"size:36;index"`
	HandledByAgentID *string `gorm:"size:36;index"`
	AssignedAt       *time.Time
	StartedAt        time.Time `gorm:"not null;index"`
	EndedAt          *time.Time
}

func (ConversationRow) TableName() string { return "support_conversations" }

type MessageRow struct {
	Seq            uint      `gorm:"primaryKey;autoIncrement"`
	ID             string    `gorm:"size:36;not null;uniqueIndex"`
	ConversationID string    `gorm:"size:36;not null;index:idx_message_order,priority:1"`
	SenderType     string    `gorm:"size:16;not null"`
	SenderID       *string   `gorm:"size:36"`
	Body           string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"not null;index:idx_message_order,priority:2"`
}

func (MessageRow) TableName() string { return "support_messages" }

type RatingRow struct {
	ConversationID string `gorm:"primaryKey;size:36"`
	AgentRating    int    `gorm:"not null"`
	SystemRating   int    `gorm:"not null"`
	Comment        string `gorm:"type:text"`
	SubmittedAt    time.Time
}

func (RatingRow) TableName() string { return "support_ratings" }

type AgentOTPRow struct {
	ID         string    `gorm:"primaryKey;size:36"`
	Email      string    `gorm:"size:255;not null;index"`
	CodeHash   string    `gorm:"size:128;not null"`
	CreatedAt  time.Time `gorm:"index"`
	IsVerified bool
	Attempts   int
}

func (AgentOTPRow) TableName() string { return "support_agent_otps" }
