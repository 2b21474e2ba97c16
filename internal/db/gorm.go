package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/RichardoC/chatline/internal/models"
)

// Column types are left to the dialect so the same rows migrate on
// PostgreSQL and MySQL. Timestamps keep microseconds.
type conversationRow struct {
	ID        string    `gorm:"type:varchar(64);primaryKey"`
	Title     string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;precision:6;autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"not null;precision:6;index;autoUpdateTime:false"`
}

func (conversationRow) TableName() string { return "conversations" }

// Seq is filled by the database and breaks ties between messages created
// in the same microsecond.
type messageRow struct {
	ID             string    `gorm:"type:varchar(64);primaryKey"`
	Seq            int64     `gorm:"autoIncrement;uniqueIndex;->"`
	ConversationID string    `gorm:"type:varchar(64);not null;index:idx_messages_conversation_created,priority:1"`
	Role           string    `gorm:"type:varchar(10);not null;check:role IN ('user', 'assistant')"`
	Content        string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"not null;precision:6;index:idx_messages_conversation_created,priority:2;autoCreateTime:false"`
}

func (messageRow) TableName() string { return "messages" }

// GormStore is the Store for server databases reached through GORM.
type GormStore struct {
	db *gorm.DB
}

// NewPostgres connects to a PostgreSQL dsn and migrates the schema.
func NewPostgres(dsn string) (*GormStore, error) {
	return openGorm(postgres.Open(dsn), "postgres")
}

// NewMySQL connects to a MySQL dsn and migrates the schema. The dsn must
// set parseTime=true.
func NewMySQL(dsn string) (*GormStore, error) {
	return openGorm(mysql.Open(dsn), "mysql")
}

func openGorm(dialector gorm.Dialector, name string) (*GormStore, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", name, err)
	}

	if err := db.AutoMigrate(&conversationRow{}, &messageRow{}); err != nil {
		return nil, fmt.Errorf("migrating %s schema: %w", name, err)
	}

	return &GormStore{db: db}, nil
}

func (g *GormStore) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (g *GormStore) Save(ctx context.Context, conv *models.Conversation) error {
	row := conversationRow{ID: conv.ID, Title: conv.Title, CreatedAt: conv.CreatedAt, UpdatedAt: conv.UpdatedAt}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("saving conversation %s: %w", conv.ID, translateGorm(err))
	}
	return nil
}

func (g *GormStore) FindByID(ctx context.Context, id string) (*models.Conversation, error) {
	var row conversationRow
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding conversation %s: %w", id, err)
	}
	return row.model(), nil
}

func (g *GormStore) FindAll(ctx context.Context, offset, limit int) ([]models.Conversation, error) {
	var rows []conversationRow
	err := g.db.WithContext(ctx).
		Order("updated_at DESC, created_at DESC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}

	conversations := make([]models.Conversation, 0, len(rows))
	for _, row := range rows {
		conversations = append(conversations, *row.model())
	}
	return conversations, nil
}

func (g *GormStore) Count(ctx context.Context) (int, error) {
	var n int64
	if err := g.db.WithContext(ctx).Model(&conversationRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting conversations: %w", err)
	}
	return int(n), nil
}

func (g *GormStore) UpdateTitle(ctx context.Context, id, title string, at time.Time) (*models.Conversation, error) {
	var row conversationRow
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&conversationRow{}).
			Where("id = ?", id).
			Updates(map[string]any{"title": title, "updated_at": at})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("id = ?", id).First(&row).Error
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating conversation %s: %w", id, err)
	}
	return row.model(), nil
}

func (g *GormStore) Touch(ctx context.Context, id string, at time.Time) error {
	err := g.db.WithContext(ctx).Model(&conversationRow{}).Where("id = ?", id).Update("updated_at", at).Error
	if err != nil {
		return fmt.Errorf("touching conversation %s: %w", id, err)
	}
	return nil
}

// AddMessages inserts the batch as one statement inside a transaction.
func (g *GormStore) AddMessages(ctx context.Context, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	rows := make([]messageRow, 0, len(msgs))
	for _, msg := range msgs {
		rows = append(rows, messageRow{
			ID:             msg.ID,
			ConversationID: msg.ConversationID,
			Role:           string(msg.Role),
			Content:        msg.Content,
			CreatedAt:      msg.CreatedAt,
		})
	}

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("inserting messages: %w", translateGorm(err))
	}
	return nil
}

func (g *GormStore) FindByConversationID(ctx context.Context, conversationID string, offset, limit int) ([]models.Message, error) {
	var rows []messageRow
	err := g.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, seq ASC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	messages := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, models.Message{
			ID:             row.ID,
			ConversationID: row.ConversationID,
			Role:           models.Role(row.Role),
			Content:        row.Content,
			CreatedAt:      row.CreatedAt.UTC(),
		})
	}
	return messages, nil
}

func (g *GormStore) CountByConversationID(ctx context.Context, conversationID string) (int, error) {
	var n int64
	err := g.db.WithContext(ctx).Model(&messageRow{}).Where("conversation_id = ?", conversationID).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return int(n), nil
}

func (r conversationRow) model() *models.Conversation {
	return &models.Conversation{
		ID:        r.ID,
		Title:     r.Title,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func translateGorm(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}
