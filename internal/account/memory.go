package account

import (
	"context"
	"sync"
)

// MemoryStore keeps accounts in process. Used when no database is configured.
type MemoryStore struct {
	mu       sync.Mutex
	accounts []Account
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) find(pred func(Account) bool) (int, bool) {
	for i, a := range m.accounts {
		if pred(a) {
			return i, true
		}
	}
	return -1, false
}

func (m *MemoryStore) byID(id string) (int, bool) {
	return m.find(func(a Account) bool { return a.ID == id })
}

// GetByUsername finds an account by exact username.
func (m *MemoryStore) GetByUsername(_ context.Context, username string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.find(func(a Account) bool { return a.Username == username }); ok {
		return m.accounts[i], nil
	}
	return Account{}, ErrNotFound
}

// GetByID finds an account by id.
func (m *MemoryStore) GetByID(_ context.Context, id string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.byID(id); ok {
		return m.accounts[i], nil
	}
	return Account{}, ErrNotFound
}

// Create stores a new account.
func (m *MemoryStore) Create(_ context.Context, a Account) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.find(func(x Account) bool { return x.Username == a.Username }); ok {
		return Account{}, ErrExists
	}
	m.accounts = append(m.accounts, a)
	return a, nil
}

// List returns every account in creation order.
func (m *MemoryStore) List(_ context.Context) ([]Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Account, len(m.accounts))
	copy(out, m.accounts)
	return out, nil
}

// DeductCredit takes one credit if any are left.
func (m *MemoryStore) DeductCredit(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.byID(id)
	if !ok {
		return 0, ErrNotFound
	}
	if m.accounts[i].Credits <= 0 {
		return 0, ErrInsufficientCredits
	}
	m.accounts[i].Credits--
	return m.accounts[i].Credits, nil
}

// RefundCredit gives one credit back.
func (m *MemoryStore) RefundCredit(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.byID(id)
	if !ok {
		return 0, ErrNotFound
	}
	m.accounts[i].Credits++
	return m.accounts[i].Credits, nil
}

// SetCredits overwrites the balance.
func (m *MemoryStore) SetCredits(_ context.Context, id string, credits int) error {
	return m.update(id, func(a *Account) { a.Credits = credits })
}

// SetAdmin toggles the admin flag.
func (m *MemoryStore) SetAdmin(_ context.Context, id string, admin bool) error {
	return m.update(id, func(a *Account) { a.IsAdmin = admin })
}

// UpdatePassword stores a new password value.
func (m *MemoryStore) UpdatePassword(_ context.Context, id string, password string) error {
	return m.update(id, func(a *Account) { a.Password = password })
}

func (m *MemoryStore) update(id string, fn func(*Account)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.byID(id)
	if !ok {
		return ErrNotFound
	}
	fn(&m.accounts[i])
	return nil
}
