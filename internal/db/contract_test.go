package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RichardoC/chatline/internal/models"
)

// base is a fixed, microsecond-aligned instant so every backend
// round-trips it exactly.
var base = time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)

func conversationAt(id, title string, created, updated time.Duration) *models.Conversation {
	return &models.Conversation{
		ID:        id,
		Title:     title,
		CreatedAt: base.Add(created),
		UpdatedAt: base.Add(updated),
	}
}

func messageAt(id, convID string, role models.Role, content string, at time.Duration) models.Message {
	return models.Message{
		ID:             id,
		ConversationID: convID,
		Role:           role,
		Content:        content,
		CreatedAt:      base.Add(at),
	}
}

func conversationIDs(convs []models.Conversation) []string {
	ids := make([]string, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
	}
	return ids
}

func messageIDs(msgs []models.Message) []string {
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	return ids
}

// runStoreContract runs the behavior every Store backend must share.
// newStore must return an empty store.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("SaveAndFindByID", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		conv := conversationAt("conv-1", "Trip Planning", 0, 0)
		require.NoError(t, s.Save(ctx, conv))

		got, err := s.FindByID(ctx, "conv-1")
		require.NoError(t, err)
		assert.Equal(t, conv.ID, got.ID)
		assert.Equal(t, conv.Title, got.Title)
		assert.True(t, got.CreatedAt.Equal(conv.CreatedAt), "createdAt %v != %v", got.CreatedAt, conv.CreatedAt)
		assert.True(t, got.UpdatedAt.Equal(conv.UpdatedAt), "updatedAt %v != %v", got.UpdatedAt, conv.UpdatedAt)
	})

	t.Run("SaveDuplicate", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Save(ctx, conversationAt("conv-1", "First", 0, 0)))
		err := s.Save(ctx, conversationAt("conv-1", "Second", time.Second, time.Second))
		assert.ErrorIs(t, err, ErrDuplicate)

		got, err := s.FindByID(ctx, "conv-1")
		require.NoError(t, err)
		assert.Equal(t, "First", got.Title)
	})

	t.Run("FindByIDNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.FindByID(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("FindAllOrdersByRecency", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Save(ctx, conversationAt("old", "Old", 0, 0)))
		require.NoError(t, s.Save(ctx, conversationAt("active", "Active", time.Second, 10*time.Second)))
		require.NoError(t, s.Save(ctx, conversationAt("new", "New", 5*time.Second, 5*time.Second)))

		all, err := s.FindAll(ctx, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"active", "new", "old"}, conversationIDs(all))
	})

	t.Run("FindAllTieBreaks", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Save(ctx, conversationAt("b", "B", 0, time.Second)))
		require.NoError(t, s.Save(ctx, conversationAt("a", "A", 0, time.Second)))
		require.NoError(t, s.Save(ctx, conversationAt("c", "C", 500*time.Millisecond, time.Second)))

		all, err := s.FindAll(ctx, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "a", "b"}, conversationIDs(all))
	})

	t.Run("FindAllPaginates", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			at := time.Duration(i) * time.Second
			require.NoError(t, s.Save(ctx, conversationAt(fmt.Sprintf("conv-%d", i), "Chat", at, at)))
		}

		page, err := s.FindAll(ctx, 0, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"conv-4", "conv-3"}, conversationIDs(page))

		page, err = s.FindAll(ctx, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"conv-2", "conv-1"}, conversationIDs(page))

		page, err = s.FindAll(ctx, 4, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"conv-0"}, conversationIDs(page))

		page, err = s.FindAll(ctx, 50, 20)
		require.NoError(t, err)
		assert.NotNil(t, page)
		assert.Empty(t, page)
	})

	t.Run("Count", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		for i := 0; i < 3; i++ {
			require.NoError(t, s.Save(ctx, conversationAt(fmt.Sprintf("conv-%d", i), "Chat", 0, 0)))
		}

		n, err = s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("UpdateTitle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Save(ctx, conversationAt("conv-1", "Old", 0, 0)))

		updated, err := s.UpdateTitle(ctx, "conv-1", "New", base.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, "New", updated.Title)
		assert.True(t, updated.UpdatedAt.Equal(base.Add(time.Minute)))
		assert.True(t, updated.CreatedAt.Equal(base))

		got, err := s.FindByID(ctx, "conv-1")
		require.NoError(t, err)
		assert.Equal(t, "New", got.Title)
		assert.True(t, got.UpdatedAt.Equal(base.Add(time.Minute)))
	})

	t.Run("UpdateTitleNotFound", func(t *testing.T) {
		s := newStore(t)
		got, err := s.UpdateTitle(context.Background(), "missing", "X", base)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Nil(t, got)
	})

	t.Run("Touch", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Save(ctx, conversationAt("conv-1", "Title", 0, 0)))
		require.NoError(t, s.Touch(ctx, "conv-1", base.Add(time.Hour)))

		got, err := s.FindByID(ctx, "conv-1")
		require.NoError(t, err)
		assert.Equal(t, "Title", got.Title)
		assert.True(t, got.CreatedAt.Equal(base))
		assert.True(t, got.UpdatedAt.Equal(base.Add(time.Hour)))
	})

	t.Run("TouchMissingIsNoop", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Touch(context.Background(), "missing", base))
	})

	t.Run("AddMessagesAndFind", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.AddMessages(ctx, []models.Message{
			messageAt("m1", "conv-1", models.RoleUser, "Where should I go?", 0),
			messageAt("m2", "conv-1", models.RoleAssistant, "Somewhere warm.", time.Microsecond),
		}))

		msgs, err := s.FindByConversationID(ctx, "conv-1", 0, 20)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "m1", msgs[0].ID)
		assert.Equal(t, models.RoleUser, msgs[0].Role)
		assert.Equal(t, "Where should I go?", msgs[0].Content)
		assert.Equal(t, "conv-1", msgs[0].ConversationID)
		assert.True(t, msgs[0].CreatedAt.Equal(base))
		assert.Equal(t, "m2", msgs[1].ID)
		assert.Equal(t, models.RoleAssistant, msgs[1].Role)

		n, err := s.CountByConversationID(ctx, "conv-1")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("MessagesOrderedOldestFirst", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.AddMessages(ctx, []models.Message{
			messageAt("late", "conv-1", models.RoleUser, "late", 3*time.Second),
			messageAt("early", "conv-1", models.RoleUser, "early", time.Second),
		}))
		require.NoError(t, s.AddMessages(ctx, []models.Message{
			messageAt("middle", "conv-1", models.RoleAssistant, "middle", 2*time.Second),
		}))

		msgs, err := s.FindByConversationID(ctx, "conv-1", 0, 20)
		require.NoError(t, err)
		assert.Equal(t, []string{"early", "middle", "late"}, messageIDs(msgs))
	})

	t.Run("MessagesEqualTimestampsKeepInsertionOrder", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.AddMessages(ctx, []models.Message{
			messageAt("z", "conv-1", models.RoleUser, "first", 0),
			messageAt("a", "conv-1", models.RoleAssistant, "second", 0),
		}))

		msgs, err := s.FindByConversationID(ctx, "conv-1", 0, 20)
		require.NoError(t, err)
		assert.Equal(t, []string{"z", "a"}, messageIDs(msgs))
	})

	t.Run("MessagesPaginate", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var batch []models.Message
		for i := 0; i < 5; i++ {
			batch = append(batch, messageAt(fmt.Sprintf("m%d", i), "conv-1", models.RoleUser, "hi", time.Duration(i)*time.Second))
		}
		require.NoError(t, s.AddMessages(ctx, batch))

		page, err := s.FindByConversationID(ctx, "conv-1", 1, 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"m1", "m2", "m3"}, messageIDs(page))

		page, err = s.FindByConversationID(ctx, "conv-1", 5, 3)
		require.NoError(t, err)
		assert.NotNil(t, page)
		assert.Empty(t, page)
	})

	t.Run("MessagesIsolatedByConversation", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.AddMessages(ctx, []models.Message{
			messageAt("a1", "conv-a", models.RoleUser, "a", 0),
			messageAt("b1", "conv-b", models.RoleUser, "b", 0),
			messageAt("b2", "conv-b", models.RoleAssistant, "b", time.Second),
		}))

		msgs, err := s.FindByConversationID(ctx, "conv-a", 0, 20)
		require.NoError(t, err)
		assert.Equal(t, []string{"a1"}, messageIDs(msgs))

		n, err := s.CountByConversationID(ctx, "conv-b")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = s.CountByConversationID(ctx, "conv-unknown")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("AddMessagesIsAllOrNothing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.AddMessages(ctx, []models.Message{
			messageAt("existing", "conv-1", models.RoleUser, "hello", 0),
		}))

		err := s.AddMessages(ctx, []models.Message{
			messageAt("fresh", "conv-1", models.RoleUser, "new", time.Second),
			messageAt("existing", "conv-1", models.RoleAssistant, "clash", 2*time.Second),
		})
		assert.ErrorIs(t, err, ErrDuplicate)

		msgs, err := s.FindByConversationID(ctx, "conv-1", 0, 20)
		require.NoError(t, err)
		assert.Equal(t, []string{"existing"}, messageIDs(msgs))
		assert.Equal(t, "hello", msgs[0].Content)
	})

	t.Run("AddMessagesEmptyBatch", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.AddMessages(context.Background(), nil))
	})
}
