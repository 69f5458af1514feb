package store

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Clearer is anything a Group can invalidate.
type Clearer interface {
	Name() string
	ClearAll(ctx context.Context) error
}

// Group tracks every store of a session so logout can clear them all.
type Group struct {
	mu      sync.Mutex
	members []Clearer
	log     *zap.Logger
}

// NewGroup returns an empty group.
func NewGroup(log *zap.Logger) *Group {
	if log == nil {
		log = zap.NewNop()
	}
	return &Group{log: log}
}

// Add registers c and returns it for chaining at construction sites.
func Add[C Clearer](g *Group, c C) C {
	g.mu.Lock()
	g.members = append(g.members, c)
	g.mu.Unlock()
	return c
}

// Names lists registered stores in registration order.
func (g *Group) Names() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.members))
	for i, m := range g.members {
		out[i] = m.Name()
	}
	return out
}

// ClearAll clears every member, continuing past failures, and joins the errors.
func (g *Group) ClearAll(ctx context.Context) error {
	g.mu.Lock()
	members := append([]Clearer(nil), g.members...)
	g.mu.Unlock()

	var errList []error
	for _, m := range members {
		if err := m.ClearAll(ctx); err != nil {
			g.log.Warn("store not cleared", zap.String("store", m.Name()), zap.Error(err))
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}
