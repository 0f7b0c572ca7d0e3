package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/venturecamp/internal/app/store/oauthstate"
	profilestore "github.com/dalemusser/venturecamp/internal/app/store/profiles"
	"github.com/dalemusser/venturecamp/internal/app/system/identity"
	"github.com/dalemusser/venturecamp/internal/domain/models"
)

// MemoryProfiles is an in-memory profile store with the same upsert
// semantics as profilestore.Store.
type MemoryProfiles struct {
	mu       sync.Mutex
	profiles map[string]models.Profile

	// GetErr and EnsureErr, when set, are returned by the matching call.
	GetErr    error
	EnsureErr error

	// Calls counts every Get and Ensure.
	Calls int
}

// NewMemoryProfiles returns an empty store.
func NewMemoryProfiles() *MemoryProfiles {
	return &MemoryProfiles{profiles: make(map[string]models.Profile)}
}

func (m *MemoryProfiles) Get(ctx context.Context, uid string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	p, ok := m.profiles[uid]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryProfiles) Ensure(ctx context.Context, u identity.User, extras profilestore.Extras) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.EnsureErr != nil {
		return nil, m.EnsureErr
	}
	now := time.Now().UTC()
	p, ok := m.profiles[u.UID]
	if !ok {
		p = models.Profile{
			ID:          u.UID,
			Email:       u.Email,
			DisplayName: u.DisplayName,
			PhotoURL:    u.PhotoURL,
			Role:        models.RoleParticipant,
			Settings:    models.DefaultSettings(),
			CreatedAt:   now,
		}
	}
	if extras.DisplayName != "" {
		p.DisplayName = extras.DisplayName
	}
	p.UpdatedAt = now
	m.profiles[u.UID] = p
	return &p, nil
}

// Put stores p as-is.
func (m *MemoryProfiles) Put(p models.Profile) {
	m.mu.Lock()
	m.profiles[p.ID] = p
	m.mu.Unlock()
}

// Len returns the number of stored profiles.
func (m *MemoryProfiles) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.profiles)
}

// CallCount returns Calls under the lock.
func (m *MemoryProfiles) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// MemoryStates is an in-memory OAuth state store.
type MemoryStates struct {
	mu     sync.Mutex
	states map[string]oauthstate.State
}

// NewMemoryStates returns an empty store.
func NewMemoryStates() *MemoryStates {
	return &MemoryStates{states: make(map[string]oauthstate.State)}
}

func (m *MemoryStates) Save(ctx context.Context, st oauthstate.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if st.ExpiresAt.IsZero() {
		st.ExpiresAt = now.Add(oauthstate.TTL)
	}
	st.CreatedAt = now
	m.states[st.State] = st
	return nil
}

func (m *MemoryStates) Consume(ctx context.Context, state string) (*oauthstate.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[state]
	if !ok {
		return nil, nil
	}
	delete(m.states, state)
	if !st.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	return &st, nil
}
