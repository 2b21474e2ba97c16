package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/RichardoC/chatline/internal/models"
)

// MemoryStore is an in-memory Store. Records are copied on the way in and
// on the way out so callers never share state with the store.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]models.Conversation
	messages      map[string][]models.Message // keyed by conversation ID, insertion order
	messageIDs    map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]models.Conversation),
		messages:      make(map[string][]models.Message),
		messageIDs:    make(map[string]struct{}),
	}
}

func (m *MemoryStore) Save(ctx context.Context, conv *models.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[conv.ID]; ok {
		return fmt.Errorf("conversation %s: %w", conv.ID, ErrDuplicate)
	}
	m.conversations[conv.ID] = *conv
	return nil
}

func (m *MemoryStore) FindByID(ctx context.Context, id string) (*models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &conv, nil
}

func (m *MemoryStore) FindAll(ctx context.Context, offset, limit int) ([]models.Conversation, error) {
	m.mu.RLock()
	convs := make([]models.Conversation, 0, len(m.conversations))
	for _, c := range m.conversations {
		convs = append(convs, c)
	}
	m.mu.RUnlock()

	sortConversations(convs)
	start, end := window(len(convs), offset, limit)
	return convs[start:end:end], nil
}

func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conversations), nil
}

func (m *MemoryStore) UpdateTitle(ctx context.Context, id, title string, at time.Time) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	conv.Title = title
	conv.UpdatedAt = at
	m.conversations[id] = conv
	return &conv, nil
}

func (m *MemoryStore) Touch(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conv, ok := m.conversations[id]; ok {
		conv.UpdatedAt = at
		m.conversations[id] = conv
	}
	return nil
}

// AddMessages validates the whole batch before inserting anything.
func (m *MemoryStore) AddMessages(ctx context.Context, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]struct{}, len(msgs))
	for _, msg := range msgs {
		if _, ok := m.messageIDs[msg.ID]; ok {
			return fmt.Errorf("message %s: %w", msg.ID, ErrDuplicate)
		}
		if _, ok := seen[msg.ID]; ok {
			return fmt.Errorf("message %s: %w", msg.ID, ErrDuplicate)
		}
		seen[msg.ID] = struct{}{}
	}

	for _, msg := range msgs {
		m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
		m.messageIDs[msg.ID] = struct{}{}
	}
	return nil
}

func (m *MemoryStore) FindByConversationID(ctx context.Context, conversationID string, offset, limit int) ([]models.Message, error) {
	m.mu.RLock()
	msgs := append([]models.Message(nil), m.messages[conversationID]...)
	m.mu.RUnlock()

	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	start, end := window(len(msgs), offset, limit)
	if start == end {
		return []models.Message{}, nil
	}
	return msgs[start:end:end], nil
}

func (m *MemoryStore) CountByConversationID(ctx context.Context, conversationID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages[conversationID]), nil
}

func (m *MemoryStore) Close() error {
	return nil
}
