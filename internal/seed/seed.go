// Package seed loads the demo accounts, products and videos.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/user/cesto-ofertas-go/internal/account"
	"github.com/user/cesto-ofertas-go/internal/model"
	"github.com/user/cesto-ofertas-go/internal/store"
	"go.yaml.in/yaml/v3"
)

//go:embed seed.yaml
var embedded []byte

// User is a demo account with a plain-text password
type User struct {
	ID         string `yaml:"id"`
	Email      string `yaml:"email"`
	Password   string `yaml:"password"`
	Name       string `yaml:"name"`
	Admin      bool   `yaml:"admin"`
	FirstLogin bool   `yaml:"first_login"`
}

// Product is a demo product
type Product struct {
	ID           string  `yaml:"id"`
	UserID       string  `yaml:"user_id"`
	Name         string  `yaml:"name"`
	Description  string  `yaml:"description"`
	Price        float64 `yaml:"price"`
	ImageURL     string  `yaml:"image_url"`
	AffiliateURL string  `yaml:"affiliate_link"`
}

// Video is a demo video
type Video struct {
	ID           string `yaml:"id"`
	Title        string `yaml:"title"`
	Description  string `yaml:"description"`
	FileURL      string `yaml:"file_url"`
	ThumbnailURL string `yaml:"thumbnail_url"`
	SizeBytes    int64  `yaml:"file_size"`
	Duration     int    `yaml:"duration"`
	CreatedBy    string `yaml:"created_by"`
}

// Data is the parsed seed file
type Data struct {
	Users    []User    `yaml:"users"`
	Products []Product `yaml:"products"`
	Videos   []Video   `yaml:"videos"`
}

// Result counts what Apply wrote
type Result struct {
	Users    int
	Products int
	Videos   int
}

// Parse decodes a seed document
func Parse(raw []byte) (*Data, error) {
	var d Data
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("failed to parse seed data: %w", err)
	}
	return &d, nil
}

// Load reads path, or the embedded demo data when path is empty
func Load(path string) (*Data, error) {
	if path == "" {
		return Parse(embedded)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(raw)
}

// Apply writes the records that are not already present. Existing data is never overwritten:
// users are matched by id or email, products and videos are only written to empty collections.
func Apply(ctx context.Context, s store.Store, d *Data) (*Result, error) {
	now := time.Now()
	res := &Result{}

	users, err := newUsers(d.Users, now)
	if err != nil {
		return nil, err
	}
	_, err = store.Update(ctx, s, store.UsersKey, func(all []model.User) ([]model.User, error) {
		for _, u := range users {
			if hasUser(all, u) {
				continue
			}
			all = append(all, u)
			res.Users++
		}
		return all, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to seed users: %w", err)
	}

	byOwner := map[string][]model.Product{}
	var owners []string
	for _, p := range d.Products {
		if _, ok := byOwner[p.UserID]; !ok {
			owners = append(owners, p.UserID)
		}
		byOwner[p.UserID] = append(byOwner[p.UserID], model.Product{
			ID:           p.ID,
			UserID:       p.UserID,
			Name:         p.Name,
			Description:  p.Description,
			Price:        p.Price,
			ImageURL:     p.ImageURL,
			AffiliateURL: p.AffiliateURL,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	for _, owner := range owners {
		n, err := fillEmpty(ctx, s, store.ProductsKey(owner), byOwner[owner])
		if err != nil {
			return nil, fmt.Errorf("failed to seed products: %w", err)
		}
		res.Products += n
	}

	videos := make([]model.VideoAsset, 0, len(d.Videos))
	for _, v := range d.Videos {
		videos = append(videos, model.VideoAsset{
			ID:              v.ID,
			Title:           v.Title,
			Description:     v.Description,
			FileURL:         v.FileURL,
			ThumbnailURL:    v.ThumbnailURL,
			SizeBytes:       v.SizeBytes,
			DurationSeconds: v.Duration,
			CreatedBy:       v.CreatedBy,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}
	if res.Videos, err = fillEmpty(ctx, s, store.VideosKey, videos); err != nil {
		return nil, fmt.Errorf("failed to seed videos: %w", err)
	}

	log.Info().
		Int("users", res.Users).
		Int("products", res.Products).
		Int("videos", res.Videos).
		Msg("Demo data applied")
	return res, nil
}

func newUsers(in []User, now time.Time) ([]model.User, error) {
	out := make([]model.User, 0, len(in))
	for _, u := range in {
		hash, err := account.HashPassword(u.Password)
		if err != nil {
			return nil, err
		}
		out = append(out, model.User{
			ID:         u.ID,
			Email:      u.Email,
			Password:   hash,
			Name:       u.Name,
			IsAdmin:    u.Admin,
			FirstLogin: u.FirstLogin,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	return out, nil
}

func hasUser(all []model.User, u model.User) bool {
	for _, existing := range all {
		if existing.ID == u.ID || existing.Email == u.Email {
			return true
		}
	}
	return false
}

// fillEmpty writes items under key only when nothing is stored there yet
func fillEmpty[T any](ctx context.Context, s store.Store, key string, items []T) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	written := 0
	_, err := store.Update(ctx, s, key, func(existing []T) ([]T, error) {
		if len(existing) > 0 {
			return existing, nil
		}
		written = len(items)
		return items, nil
	})
	return written, err
}
