// Package credential holds the current bearer credential.
//
// The store is the only state shared by independent call paths (requests, refreshes,
// login and logout). All writes replace the whole value so readers never observe a
// mixed access/refresh pair.
package credential

import (
	"sync/atomic"

	"github.com/and161185/campus-kit/internal/model"
)

// Store persists and exposes the current credential.
type Store interface {
	// Get returns the current credential, ok=false when none is stored.
	Get() (model.Credential, bool)
	// Set replaces the stored credential.
	Set(c model.Credential) error
	// Clear removes the stored credential. Clearing an empty store is a no-op.
	Clear() error
}

// Swapper is implemented by stores able to replace a credential only if it is still
// the expected one. The refresher uses it so a logout racing a refresh is not undone.
type Swapper interface {
	CompareAndSwap(old, next model.Credential) (bool, error)
}

// Memory is an in-process Store.
type Memory struct {
	cur atomic.Pointer[model.Credential]
}

var (
	_ Store   = (*Memory)(nil)
	_ Swapper = (*Memory)(nil)
)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory { return &Memory{} }

// Get returns the current credential.
func (m *Memory) Get() (model.Credential, bool) {
	p := m.cur.Load()
	if p == nil || p.IsZero() {
		return model.Credential{}, false
	}
	return *p, true
}

// Set replaces the credential.
func (m *Memory) Set(c model.Credential) error {
	if c.IsZero() {
		m.cur.Store(nil)
		return nil
	}
	m.cur.Store(&c)
	return nil
}

// Clear drops the credential.
func (m *Memory) Clear() error {
	m.cur.Store(nil)
	return nil
}

// CompareAndSwap replaces the credential with next if the stored one equals old.
func (m *Memory) CompareAndSwap(old, next model.Credential) (bool, error) {
	for {
		p := m.cur.Load()
		if p == nil || *p != old {
			return false, nil
		}
		n := next
		if m.cur.CompareAndSwap(p, &n) {
			return true, nil
		}
	}
}
