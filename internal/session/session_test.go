package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLifecycle(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, time.Hour)
	ctx := context.Background()

	s, err := m.Init(ctx, "")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.False(t, s.Authenticated())

	require.NoError(t, m.Set(ctx, s, " tok-123 "))
	require.NoError(t, m.SetSidebarCollapsed(ctx, s, true))

	loaded, err := m.Init(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", loaded.Token)
	assert.True(t, loaded.SidebarCollapsed)

	require.NoError(t, m.Clear(ctx, loaded))
	cleared, err := m.Init(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, cleared.Authenticated())
	assert.True(t, cleared.SidebarCollapsed)
}

func TestInitUnknownIDStartsFreshSession(t *testing.T) {
	m := NewManager(NewMemoryStore(), time.Hour)

	s, err := m.Init(context.Background(), "unknown")

	require.NoError(t, err)
	assert.NotEqual(t, "unknown", s.ID)
}

func TestSetRejectsEmptyToken(t *testing.T) {
	m := NewManager(NewMemoryStore(), time.Hour)
	s := &Session{ID: "s1"}

	assert.ErrorIs(t, m.Set(context.Background(), s, "  "), ErrEmptyToken)
}

func TestTokenFromContext(t *testing.T) {
	assert.Equal(t, "", Token(context.Background()))

	ctx := WithSession(context.Background(), &Session{ID: "s1", Token: "abc"})
	assert.Equal(t, "abc", Token(ctx))
}
