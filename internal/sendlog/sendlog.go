// Package sendlog keeps the bounded, newest-first history of send attempts.
package sendlog

import (
	"context"
	"fmt"

	"github.com/user/cesto-ofertas-go/internal/model"
	"github.com/user/cesto-ofertas-go/internal/store"
)

// DefaultCapacity is the number of entries kept per user
const DefaultCapacity = 10

// Labels used for references whose target no longer exists
const (
	RemovedProduct = "removed product"
	RemovedGroup   = "removed group"
)

// Push prepends e and drops the oldest entries beyond capacity
func Push(entries []model.SendLog, e model.SendLog, capacity int) []model.SendLog {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	out := make([]model.SendLog, 0, min(len(entries)+1, capacity))
	out = append(out, e)
	for _, old := range entries {
		if len(out) == capacity {
			break
		}
		out = append(out, old)
	}
	return out
}

// Entry is a log line joined with the names of what it referenced
type Entry struct {
	model.SendLog
	ProductName string `json:"product_name"`
	TargetGroup string `json:"whatsapp_group"`
}

// Log is the store-backed send history of every user
type Log struct {
	store    store.Store
	capacity int
}

// NewLog creates a Log keeping capacity entries per user
func NewLog(s store.Store, capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{store: s, capacity: capacity}
}

// Capacity returns the per-user bound
func (l *Log) Capacity() int {
	return l.capacity
}

// Append records e at the head of the user's history
func (l *Log) Append(ctx context.Context, e model.SendLog) error {
	_, err := store.Update(ctx, l.store, store.LogsKey(e.UserID), func(entries []model.SendLog) ([]model.SendLog, error) {
		return Push(entries, e, l.capacity), nil
	})
	if err != nil {
		return fmt.Errorf("failed to append send log: %w", err)
	}
	return nil
}

// List returns the user's history, newest first
func (l *Log) List(ctx context.Context, userID string) ([]model.SendLog, error) {
	return store.Load[model.SendLog](ctx, l.store, store.LogsKey(userID))
}

// Describe lists the user's history with product and group names resolved.
// Dangling references are labelled instead of failing.
func (l *Log) Describe(ctx context.Context, userID string) ([]Entry, error) {
	entries, err := l.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	products, err := store.Load[model.Product](ctx, l.store, store.ProductsKey(userID))
	if err != nil {
		return nil, err
	}
	configs, err := store.Load[model.BroadcastConfig](ctx, l.store, store.ConfigsKey(userID))
	if err != nil {
		return nil, err
	}
	return Join(entries, products, configs), nil
}

// Join resolves names for entries against the given products and configs
func Join(entries []model.SendLog, products []model.Product, configs []model.BroadcastConfig) []Entry {
	names := make(map[string]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}
	groups := make(map[string]string, len(configs))
	for _, c := range configs {
		groups[c.ID] = c.TargetGroup
	}

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		entry := Entry{SendLog: e, ProductName: RemovedProduct, TargetGroup: RemovedGroup}
		if n, ok := names[e.ProductID]; ok {
			entry.ProductName = n
		}
		if g, ok := groups[e.ConfigID]; ok {
			entry.TargetGroup = g
		}
		out = append(out, entry)
	}
	return out
}
