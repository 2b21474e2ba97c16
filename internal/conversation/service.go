// Package conversation holds the business rules for conversations and
// their messages. It is the only mutation path: the HTTP layer calls it,
// and it calls the stores and the reply generator.
//
// Lookups of a missing conversation return (nil, nil); the caller decides
// whether that is an error. Store and reply failures propagate wrapped
// and are never retried.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/RichardoC/chatline/internal/db"
	"github.com/RichardoC/chatline/internal/llm"
	"github.com/RichardoC/chatline/internal/models"
)

var (
	// ErrConversationNotFound is returned by SendMessage when the target
	// conversation does not exist.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrTitleUnchanged is returned by Rename when the new title equals the current one.
	ErrTitleUnchanged = errors.New("title is unchanged")
)

// SendResult is the pair of messages written by one SendMessage call.
type SendResult struct {
	UserMessage      models.Message `json:"userMessage"`
	AssistantMessage models.Message `json:"assistantMessage"`
}

type Service struct {
	conversations db.ConversationStore
	messages      db.MessageStore
	replier       llm.Replier
	logger        *zap.Logger
	now           func() time.Time
	newID         func() string
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func New(conversations db.ConversationStore, messages db.MessageStore, replier llm.Replier, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		conversations: conversations,
		messages:      messages,
		replier:       replier,
		logger:        logger.With(zap.String("component", "conversation")),
		now:           time.Now,
		newID:         func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// timestamp is now in UTC at the microsecond precision every store keeps.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// after returns t, or the instant just past floor if t does not come after it.
func after(t, floor time.Time) time.Time {
	if t.After(floor) {
		return t
	}
	return floor.Add(time.Microsecond)
}

// Create stores a new conversation. The title must already be validated.
func (s *Service) Create(ctx context.Context, title string) (*models.Conversation, error) {
	now := s.timestamp()
	conv := &models.Conversation{
		ID:        s.newID(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.conversations.Save(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	s.logger.Debug("conversation created", zap.String("conversationID", conv.ID))
	return conv, nil
}

// List returns conversations, most recently active first.
func (s *Service) List(ctx context.Context, offset, limit int) (*models.Page[models.Conversation], error) {
	var (
		data  []models.Conversation
		total int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		data, err = s.conversations.FindAll(gctx, offset, limit)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.conversations.Count(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	return &models.Page[models.Conversation]{
		Data:       data,
		Pagination: models.Pagination{Offset: offset, Limit: limit, Total: total},
	}, nil
}

// GetByID returns nil, nil when no conversation has the given id.
func (s *Service) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	conv, err := s.conversations.FindByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

// GetMessages returns a conversation's messages, oldest first.
func (s *Service) GetMessages(ctx context.Context, conversationID string, offset, limit int) (*models.Page[models.Message], error) {
	var (
		data  []models.Message
		total int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		data, err = s.messages.FindByConversationID(gctx, conversationID, offset, limit)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.messages.CountByConversationID(gctx, conversationID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	return &models.Page[models.Message]{
		Data:       data,
		Pagination: models.Pagination{Offset: offset, Limit: limit, Total: total},
	}, nil
}

// Rename changes a conversation's title and advances updatedAt. It
// returns nil, nil when the conversation does not exist and
// ErrTitleUnchanged when title matches the current one.
func (s *Service) Rename(ctx context.Context, id, title string) (*models.Conversation, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil || current == nil {
		return nil, err
	}
	if current.Title == title {
		return nil, ErrTitleUnchanged
	}

	conv, err := s.conversations.UpdateTitle(ctx, id, title, after(s.timestamp(), current.UpdatedAt))
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to rename conversation: %w", err)
	}

	s.logger.Debug("conversation renamed", zap.String("conversationID", id))
	return conv, nil
}

// SendMessage records the user's message together with the generated
// reply. Both are written in a single batch after the reply is ready, so
// a failed reply leaves nothing behind. The conversation is touched
// afterwards.
func (s *Service) SendMessage(ctx context.Context, conversationID, content string) (*SendResult, error) {
	conv, err := s.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}

	userMsg := models.Message{
		ID:             s.newID(),
		ConversationID: conversationID,
		Role:           models.RoleUser,
		Content:        content,
		CreatedAt:      s.timestamp(),
	}

	reply, err := s.replier.GenerateReply(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("failed to generate reply: %w", err)
	}

	assistantMsg := models.Message{
		ID:             s.newID(),
		ConversationID: conversationID,
		Role:           models.RoleAssistant,
		Content:        reply,
		CreatedAt:      after(s.timestamp(), userMsg.CreatedAt),
	}

	if err := s.messages.AddMessages(ctx, []models.Message{userMsg, assistantMsg}); err != nil {
		return nil, fmt.Errorf("failed to save messages: %w", err)
	}

	if err := s.conversations.Touch(ctx, conversationID, after(assistantMsg.CreatedAt, conv.UpdatedAt)); err != nil {
		return nil, fmt.Errorf("failed to touch conversation: %w", err)
	}

	s.logger.Debug("message exchanged",
		zap.String("conversationID", conversationID),
		zap.String("userMessageID", userMsg.ID),
		zap.String("assistantMessageID", assistantMsg.ID))

	return &SendResult{UserMessage: userMsg, AssistantMessage: assistantMsg}, nil
}
