package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemory(t *testing.T) *MemoryStorage {
	t.Helper()
	m, err := CreateMemoryStorage()
	require.NoError(t, err)
	return m
}

func TestMemoryStorage_InsertLink(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)

	created, err := m.InsertLink(ctx, Link{Code: "ABC1234", Target: "https://example.com", OwnerID: "u1", CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	_, err = m.InsertLink(ctx, Link{Code: "ABC1234", Target: "https://other.com", OwnerID: "u2"})
	assert.ErrorIs(t, err, ErrConflict)

	require.NoError(t, m.SoftDelete(ctx, "ABC1234", "u1"))

	reused, err := m.InsertLink(ctx, Link{Code: "ABC1234", Target: "https://other.com", OwnerID: "u2", CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, reused.ID)
	assert.Equal(t, int64(0), reused.TotalClicks)
}

func TestMemoryStorage_FindByCode(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)

	_, err := m.FindLiveByCode(ctx, "NOPE123")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.FindLatestByCode(ctx, "NOPE123")
	assert.ErrorIs(t, err, ErrNotFound)

	base := time.Now()
	_, err = m.InsertLink(ctx, Link{Code: "MYLINK1", Target: "https://a.example", OwnerID: "u1", CreatedAt: base})
	require.NoError(t, err)
	require.NoError(t, m.SoftDelete(ctx, "MYLINK1", "u1"))

	_, err = m.FindLiveByCode(ctx, "MYLINK1")
	assert.ErrorIs(t, err, ErrNotFound)

	latest, err := m.FindLatestByCode(ctx, "MYLINK1")
	require.NoError(t, err)
	assert.True(t, latest.Deleted)

	_, err = m.InsertLink(ctx, Link{Code: "MYLINK1", Target: "https://b.example", OwnerID: "u1", CreatedAt: base.Add(time.Second)})
	require.NoError(t, err)

	latest, err = m.FindLatestByCode(ctx, "MYLINK1")
	require.NoError(t, err)
	assert.False(t, latest.Deleted)
	assert.Equal(t, "https://b.example", latest.Target)

	exists, err := m.CodeExists(ctx, "MYLINK1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryStorage_IncrementClicksConcurrent(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)

	_, err := m.InsertLink(ctx, Link{Code: "HOT1234", Target: "https://example.com", OwnerID: "u1"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.IncrementClicks(ctx, "HOT1234", time.Now()))
		}()
	}
	wg.Wait()

	l, err := m.FindLiveByCode(ctx, "HOT1234")
	require.NoError(t, err)
	assert.Equal(t, int64(100), l.TotalClicks)
	assert.NotNil(t, l.LastClicked)

	assert.ErrorIs(t, m.IncrementClicks(ctx, "MISSING", time.Now()), ErrNotFound)
}

func TestMemoryStorage_SoftDelete(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)

	_, err := m.InsertLink(ctx, Link{Code: "DEL1234", Target: "https://example.com", OwnerID: "u1"})
	require.NoError(t, err)

	assert.ErrorIs(t, m.SoftDelete(ctx, "DEL1234", "someone-else"), ErrNotFound)
	require.NoError(t, m.SoftDelete(ctx, "DEL1234", "u1"))
	assert.ErrorIs(t, m.SoftDelete(ctx, "DEL1234", "u1"), ErrNotFound)
}

func TestMemoryStorage_SoftDeleteBatch(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)

	for _, code := range []string{"AAAAAA1", "BBBBBB2", "CCCCCC3"} {
		_, err := m.InsertLink(ctx, Link{Code: code, Target: "https://example.com", OwnerID: "u1"})
		require.NoError(t, err)
	}

	err := m.SoftDeleteBatch(ctx, []DeleteTask{
		{Code: "AAAAAA1", OwnerID: "u1"},
		{Code: "BBBBBB2", OwnerID: "intruder"},
		{Code: "ZZZZZZ9", OwnerID: "u1"},
	})
	require.NoError(t, err)

	_, err = m.FindLiveByCode(ctx, "AAAAAA1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.FindLiveByCode(ctx, "BBBBBB2")
	assert.NoError(t, err)
}

func TestMemoryStorage_ListByOwner(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	links := []Link{
		{Code: "GoLang1", Target: "https://go.dev", OwnerID: "u1", CreatedAt: base, TotalClicks: 5},
		{Code: "Rusty12", Target: "https://rust-lang.org", OwnerID: "u1", CreatedAt: base.Add(time.Hour), TotalClicks: 10},
		{Code: "Other12", Target: "https://go.dev/doc", OwnerID: "u2", CreatedAt: base},
		{Code: "Third12", Target: "https://example.com/go", OwnerID: "u1", CreatedAt: base.Add(2 * time.Hour), TotalClicks: 1},
	}
	for _, l := range links {
		_, err := m.InsertLink(ctx, l)
		require.NoError(t, err)
	}
	require.NoError(t, m.SoftDelete(ctx, "Third12", "u1"))

	t.Run("owner scope and default order", func(t *testing.T) {
		got, total, err := m.ListByOwner(ctx, ListFilter{OwnerID: "u1"})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, got, 3)
		assert.Equal(t, "GoLang1", got[0].Code)
		assert.Equal(t, "Third12", got[2].Code)
	})

	t.Run("query matches code or target case-insensitively", func(t *testing.T) {
		got, total, err := m.ListByOwner(ctx, ListFilter{OwnerID: "u1", Query: "GO"})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Len(t, got, 2)
	})

	t.Run("deleted filter", func(t *testing.T) {
		live := false
		got, total, err := m.ListByOwner(ctx, ListFilter{OwnerID: "u1", Deleted: &live})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		for _, l := range got {
			assert.False(t, l.Deleted)
		}
	})

	t.Run("click range and sort", func(t *testing.T) {
		minClicks := int64(2)
		got, total, err := m.ListByOwner(ctx, ListFilter{
			OwnerID:   "u1",
			MinClicks: &minClicks,
			SortBy:    SortByTotalClicks,
			Desc:      true,
		})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, got, 2)
		assert.Equal(t, "Rusty12", got[0].Code)
	})

	t.Run("date range", func(t *testing.T) {
		from := base.Add(30 * time.Minute)
		to := base.Add(90 * time.Minute)
		got, _, err := m.ListByOwner(ctx, ListFilter{OwnerID: "u1", DateFrom: &from, DateTo: &to})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Rusty12", got[0].Code)
	})

	t.Run("pagination", func(t *testing.T) {
		got, total, err := m.ListByOwner(ctx, ListFilter{OwnerID: "u1", Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, got, 1)
		assert.Equal(t, "Rusty12", got[0].Code)

		got, _, err = m.ListByOwner(ctx, ListFilter{OwnerID: "u1", Limit: 10, Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestMemoryStorage_Users(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)

	u, err := m.CreateUser(ctx, User{Email: "Ann@Example.com", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)

	_, err = m.CreateUser(ctx, User{Email: "ann@example.com", PasswordHash: "hash"})
	assert.ErrorIs(t, err, ErrConflict)

	byEmail, err := m.FindUserByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	byID, err := m.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash", byID.PasswordHash)

	_, err = m.FindUserByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorage_PingContext(t *testing.T) {
	m := newMemory(t)
	assert.True(t, errors.Is(m.PingContext(context.Background()), errors.ErrUnsupported))
}
