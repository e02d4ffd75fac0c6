package account

import (
	"context"
	"fmt"

	"github.com/user/cesto-ofertas-go/internal/apperr"
	"github.com/user/cesto-ofertas-go/internal/model"
	"github.com/user/cesto-ofertas-go/internal/store"
)

// Stats summarizes the whole installation for the admin panel
type Stats struct {
	Users         int `json:"total_users"`
	Products      int `json:"total_products"`
	ActiveConfigs int `json:"active_configs"`
	Videos        int `json:"total_videos"`
	Logs          int `json:"total_logs"`
}

// Stats counts records across every user. Only admins may call it.
func (s *Service) Stats(ctx context.Context, sess *model.Session) (*Stats, error) {
	if err := apperr.RequireAdmin(sess); err != nil {
		return nil, err
	}
	var st Stats
	users, err := s.users(ctx)
	if err != nil {
		return nil, err
	}
	st.Users = len(users)

	videos, err := store.Load[model.VideoAsset](ctx, s.store, store.VideosKey)
	if err != nil {
		return nil, err
	}
	st.Videos = len(videos)

	if st.Products, err = countAll[model.Product](ctx, s.store, store.ProductsPrefix, nil); err != nil {
		return nil, err
	}
	if st.Logs, err = countAll[model.SendLog](ctx, s.store, store.LogsPrefix, nil); err != nil {
		return nil, err
	}
	st.ActiveConfigs, err = countAll(ctx, s.store, store.ConfigsPrefix, func(c model.BroadcastConfig) bool { return c.Active })
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func countAll[T any](ctx context.Context, s store.Store, prefix string, keep func(T) bool) (int, error) {
	keys, err := s.Keys(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	total := 0
	for _, k := range keys {
		items, err := store.Load[T](ctx, s, k)
		if err != nil {
			return 0, err
		}
		for _, it := range items {
			if keep == nil || keep(it) {
				total++
			}
		}
	}
	return total, nil
}
