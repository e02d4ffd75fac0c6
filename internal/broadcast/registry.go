// Package broadcast manages each user's ordered list of broadcast configurations.
package broadcast

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/user/cesto-ofertas-go/internal/apperr"
	"github.com/user/cesto-ofertas-go/internal/model"
	"github.com/user/cesto-ofertas-go/internal/store"
)

// Registry stores configurations as one newest-first collection per user.
// Every operation reads the whole collection, transforms it and writes it back.
type Registry struct {
	store store.Store
	now   func() time.Time
	newID func() string
}

// NewRegistry creates a registry over s
func NewRegistry(s store.Store) *Registry {
	return &Registry{
		store: s,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Validate checks an input before any mutation
func Validate(in model.BroadcastConfigInput) error {
	if strings.TrimSpace(in.TargetGroup) == "" {
		return apperr.Invalid("whatsapp_group", "target group is required")
	}
	if strings.TrimSpace(in.Template) == "" {
		return apperr.Invalid("message_template", "message template is required")
	}
	if in.IntervalMinutes < model.MinSendInterval {
		return apperr.Invalid("send_interval", fmt.Sprintf("send interval must be at least %d minutes", model.MinSendInterval))
	}
	return nil
}

// withDefaults fills an unset send interval
func withDefaults(in model.BroadcastConfigInput) model.BroadcastConfigInput {
	if in.IntervalMinutes == 0 {
		in.IntervalMinutes = model.DefaultSendInterval
	}
	return in
}

// List returns the user's configurations, most recent first
func (r *Registry) List(ctx context.Context, s *model.Session) ([]model.BroadcastConfig, error) {
	if err := apperr.RequireSession(s); err != nil {
		return nil, err
	}
	return store.Load[model.BroadcastConfig](ctx, r.store, store.ConfigsKey(s.UserID))
}

// ListActive returns the user's active configurations
func (r *Registry) ListActive(ctx context.Context, userID string) ([]model.BroadcastConfig, error) {
	all, err := store.Load[model.BroadcastConfig](ctx, r.store, store.ConfigsKey(userID))
	if err != nil {
		return nil, err
	}
	active := make([]model.BroadcastConfig, 0, len(all))
	for _, c := range all {
		if c.Active {
			active = append(active, c)
		}
	}
	return active, nil
}

// Get returns one configuration or apperr.ErrNotFound
func (r *Registry) Get(ctx context.Context, s *model.Session, id string) (*model.BroadcastConfig, error) {
	all, err := r.List(ctx, s)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("config %s: %w", id, apperr.ErrNotFound)
}

// Create validates in and prepends a new active configuration
func (r *Registry) Create(ctx context.Context, s *model.Session, in model.BroadcastConfigInput) (*model.BroadcastConfig, error) {
	if err := apperr.RequireSession(s); err != nil {
		return nil, err
	}
	in = withDefaults(in)
	if err := Validate(in); err != nil {
		return nil, err
	}

	now := r.now()
	cfg := model.BroadcastConfig{
		ID:              r.newID(),
		UserID:          s.UserID,
		TargetGroup:     strings.TrimSpace(in.TargetGroup),
		Template:        in.Template,
		IntervalMinutes: in.IntervalMinutes,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	_, err := store.Update(ctx, r.store, store.ConfigsKey(s.UserID), func(all []model.BroadcastConfig) ([]model.BroadcastConfig, error) {
		return append([]model.BroadcastConfig{cfg}, all...), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create config: %w", err)
	}

	log.Info().Str("user", s.UserID).Str("config", cfg.ID).Str("group", cfg.TargetGroup).Msg("Broadcast config created")
	return &cfg, nil
}

// Update replaces the editable fields of a configuration, keeping its identity,
// creation time and last send. An unset interval falls back to the default. A stale id is a no-op that returns nil.
func (r *Registry) Update(ctx context.Context, s *model.Session, id string, in model.BroadcastConfigInput) (*model.BroadcastConfig, error) {
	if err := apperr.RequireSession(s); err != nil {
		return nil, err
	}
	in = withDefaults(in)
	if err := Validate(in); err != nil {
		return nil, err
	}
	return r.mutate(ctx, s.UserID, id, func(c *model.BroadcastConfig) {
		c.TargetGroup = strings.TrimSpace(in.TargetGroup)
		c.Template = in.Template
		c.IntervalMinutes = in.IntervalMinutes
	})
}

// Delete removes a configuration. Unknown ids leave the collection unchanged.
func (r *Registry) Delete(ctx context.Context, s *model.Session, id string) error {
	if err := apperr.RequireSession(s); err != nil {
		return err
	}
	_, err := store.Update(ctx, r.store, store.ConfigsKey(s.UserID), func(all []model.BroadcastConfig) ([]model.BroadcastConfig, error) {
		kept := make([]model.BroadcastConfig, 0, len(all))
		for _, c := range all {
			if c.ID != id {
				kept = append(kept, c)
			}
		}
		return kept, nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete config: %w", err)
	}
	return nil
}

// SetActive sets the active flag and always refreshes UpdatedAt
func (r *Registry) SetActive(ctx context.Context, s *model.Session, id string, active bool) (*model.BroadcastConfig, error) {
	if err := apperr.RequireSession(s); err != nil {
		return nil, err
	}
	return r.mutate(ctx, s.UserID, id, func(c *model.BroadcastConfig) {
		c.Active = active
	})
}

// Toggle flips the active flag
func (r *Registry) Toggle(ctx context.Context, s *model.Session, id string) (*model.BroadcastConfig, error) {
	if err := apperr.RequireSession(s); err != nil {
		return nil, err
	}
	return r.mutate(ctx, s.UserID, id, func(c *model.BroadcastConfig) {
		c.Active = !c.Active
	})
}

// MarkSent records a successful send time
func (r *Registry) MarkSent(ctx context.Context, userID, id string, at time.Time) error {
	_, err := store.Update(ctx, r.store, store.ConfigsKey(userID), func(all []model.BroadcastConfig) ([]model.BroadcastConfig, error) {
		for i := range all {
			if all[i].ID == id {
				sent := at
				all[i].LastSentAt = &sent
			}
		}
		return all, nil
	})
	if err != nil {
		return fmt.Errorf("failed to mark config sent: %w", err)
	}
	return nil
}

// Owners lists the ids of users that have a configuration collection
func (r *Registry) Owners(ctx context.Context) ([]string, error) {
	keys, err := r.store.Keys(ctx, store.ConfigsPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list config owners: %w", err)
	}
	owners := make([]string, 0, len(keys))
	for _, k := range keys {
		owners = append(owners, strings.TrimPrefix(k, store.ConfigsPrefix))
	}
	return owners, nil
}

// mutate applies fn to the configuration with id and refreshes UpdatedAt.
// It returns nil when the id is unknown.
func (r *Registry) mutate(ctx context.Context, userID, id string, fn func(*model.BroadcastConfig)) (*model.BroadcastConfig, error) {
	var updated *model.BroadcastConfig
	_, err := store.Update(ctx, r.store, store.ConfigsKey(userID), func(all []model.BroadcastConfig) ([]model.BroadcastConfig, error) {
		for i := range all {
			if all[i].ID != id {
				continue
			}
			fn(&all[i])
			all[i].UpdatedAt = r.now()
			c := all[i]
			updated = &c
		}
		return all, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update config: %w", err)
	}
	return updated, nil
}
