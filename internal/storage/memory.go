package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage keeps links and users in process memory. A single mutex
// serializes writers, which gives the same guarantees as the SQL stores:
// live-code uniqueness on insert and lossless click increments.
type MemoryStorage struct {
	mu     sync.RWMutex
	links  []*Link
	users  map[string]*User
	emails map[string]string
}

func CreateMemoryStorage() (*MemoryStorage, error) {
	return &MemoryStorage{
		links:  make([]*Link, 0),
		users:  make(map[string]*User),
		emails: make(map[string]string),
	}, nil
}

func (m *MemoryStorage) InsertLink(_ context.Context, link Link) (*Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.liveLocked(link.Code) != nil {
		return nil, ErrConflict
	}

	if link.ID == "" {
		link.ID = uuid.NewString()
	}

	stored := link
	m.links = append(m.links, &stored)

	return copyLink(&stored), nil
}

func (m *MemoryStorage) FindLiveByCode(_ context.Context, code string) (*Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if l := m.liveLocked(code); l != nil {
		return copyLink(l), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStorage) FindLatestByCode(_ context.Context, code string) (*Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if l := m.liveLocked(code); l != nil {
		return copyLink(l), nil
	}

	var latest *Link
	for _, l := range m.links {
		if l.Code != code {
			continue
		}
		if latest == nil || !l.CreatedAt.Before(latest.CreatedAt) {
			latest = l
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return copyLink(latest), nil
}

func (m *MemoryStorage) CodeExists(_ context.Context, code string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, l := range m.links {
		if l.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStorage) IncrementClicks(_ context.Context, code string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.liveLocked(code)
	if l == nil {
		return ErrNotFound
	}

	l.TotalClicks++
	clicked := at
	l.LastClicked = &clicked
	return nil
}

func (m *MemoryStorage) SoftDelete(_ context.Context, code, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.liveLocked(code)
	if l == nil || l.OwnerID != ownerID {
		return ErrNotFound
	}
	l.Deleted = true
	return nil
}

func (m *MemoryStorage) SoftDeleteBatch(_ context.Context, tasks []DeleteTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range tasks {
		if l := m.liveLocked(t.Code); l != nil && l.OwnerID == t.OwnerID {
			l.Deleted = true
		}
	}
	return nil
}

func (m *MemoryStorage) ListByOwner(_ context.Context, f ListFilter) ([]Link, int, error) {
	m.mu.RLock()
	matched := make([]Link, 0)
	for _, l := range m.links {
		if f.Match(l) {
			matched = append(matched, *copyLink(l))
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		var less bool
		if f.SortBy == SortByTotalClicks && a.TotalClicks != b.TotalClicks {
			less = a.TotalClicks < b.TotalClicks
		} else if !a.CreatedAt.Equal(b.CreatedAt) {
			less = a.CreatedAt.Before(b.CreatedAt)
		} else {
			less = a.ID < b.ID
		}
		if f.Desc {
			return !less
		}
		return less
	})

	total := len(matched)
	if f.Offset >= total {
		return []Link{}, total, nil
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < total {
		end = f.Offset + f.Limit
	}

	return matched[f.Offset:end], total, nil
}

func (m *MemoryStorage) CreateUser(_ context.Context, u User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(u.Email)
	if _, exists := m.emails[key]; exists {
		return nil, ErrConflict
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}

	stored := u
	m.users[u.ID] = &stored
	m.emails[key] = u.ID

	res := stored
	return &res, nil
}

func (m *MemoryStorage) FindUserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.emails[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	u := *m.users[id]
	return &u, nil
}

func (m *MemoryStorage) FindUserByID(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	res := *u
	return &res, nil
}

func (m *MemoryStorage) PingContext(_ context.Context) error {
	return errors.ErrUnsupported
}

// liveLocked returns the live row for code. The caller holds m.mu.
func (m *MemoryStorage) liveLocked(code string) *Link {
	for _, l := range m.links {
		if l.Code == code && !l.Deleted {
			return l
		}
	}
	return nil
}

func copyLink(l *Link) *Link {
	c := *l
	if l.LastClicked != nil {
		t := *l.LastClicked
		c.LastClicked = &t
	}
	return &c
}
