// Package db persists conversations and messages.
//
// Conversations and messages are two independent collections. Messages
// reference their conversation by ID and are paged on their own, so a
// long conversation never grows a single record.
//
// Three backends implement the same contracts and are checked by one
// shared test suite:
//
//   - MemoryStore: map-backed, for tests and throwaway runs
//   - Database: SQLite through mattn/go-sqlite3
//   - GormStore: PostgreSQL or MySQL through GORM
//
// Pagination everywhere is a plain slice of the ordered collection:
// ordered[offset : offset+limit]. An offset past the end yields an empty
// slice, never an error.
package db

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/RichardoC/chatline/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a record with the same ID already exists.
var ErrDuplicate = errors.New("duplicate id")

// ConversationStore persists conversations. FindAll orders by most recent
// activity first.
type ConversationStore interface {
	Save(ctx context.Context, conv *models.Conversation) error
	FindByID(ctx context.Context, id string) (*models.Conversation, error)
	FindAll(ctx context.Context, offset, limit int) ([]models.Conversation, error)
	Count(ctx context.Context) (int, error)

	// UpdateTitle sets title and updatedAt in one step and returns the
	// record as it is after the update.
	UpdateTitle(ctx context.Context, id, title string, at time.Time) (*models.Conversation, error)

	// Touch advances updatedAt only. A missing id is not an error.
	Touch(ctx context.Context, id string, at time.Time) error
}

// MessageStore persists messages. AddMessages stores the whole batch or
// none of it.
type MessageStore interface {
	AddMessages(ctx context.Context, msgs []models.Message) error
	FindByConversationID(ctx context.Context, conversationID string, offset, limit int) ([]models.Message, error)
	CountByConversationID(ctx context.Context, conversationID string) (int, error)
}

// Store is a backend holding both collections.
type Store interface {
	ConversationStore
	MessageStore
	Close() error
}

// sortConversations applies the canonical listing order: updatedAt desc,
// createdAt desc, id asc.
func sortConversations(convs []models.Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		a, b := convs[i], convs[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// window returns the [offset, offset+limit) bounds clamped to n.
func window(n, offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		return n, n
	}
	end := n
	if limit >= 0 && offset+limit < n {
		end = offset + limit
	}
	return offset, end
}
