// Package catalog manages each user's affiliate products.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/user/cesto-ofertas-go/internal/apperr"
	"github.com/user/cesto-ofertas-go/internal/model"
	"github.com/user/cesto-ofertas-go/internal/scraper"
	"github.com/user/cesto-ofertas-go/internal/store"
)

// PageFetcher reads metadata from a product page
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*scraper.Metadata, error)
}

// Catalog stores products as one newest-first collection per user
type Catalog struct {
	store   store.Store
	fetcher PageFetcher
	now     func() time.Time
	newID   func() string
}

// New creates a catalog. fetcher may be nil, which disables Import.
func New(s store.Store, fetcher PageFetcher) *Catalog {
	return &Catalog{
		store:   s,
		fetcher: fetcher,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Validate checks a product input before any mutation
func Validate(in model.ProductInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Invalid("name", "product name is required")
	}
	if in.Price < 0 {
		return apperr.Invalid("price", "price must not be negative")
	}
	if strings.TrimSpace(in.AffiliateURL) == "" {
		return apperr.Invalid("affiliate_link", "affiliate link is required")
	}
	if err := scraper.ValidateURL(in.AffiliateURL); err != nil {
		return apperr.Invalid("affiliate_link", err.Error())
	}
	return nil
}

// List returns the user's products, most recent first
func (c *Catalog) List(ctx context.Context, s *model.Session) ([]model.Product, error) {
	if err := apperr.RequireSession(s); err != nil {
		return nil, err
	}
	return store.Load[model.Product](ctx, c.store, store.ProductsKey(s.UserID))
}

// ListActive returns the user's active products
func (c *Catalog) ListActive(ctx context.Context, userID string) ([]model.Product, error) {
	all, err := store.Load[model.Product](ctx, c.store, store.ProductsKey(userID))
	if err != nil {
		return nil, err
	}
	active := make([]model.Product, 0, len(all))
	for _, p := range all {
		if p.Active {
			active = append(active, p)
		}
	}
	return active, nil
}

// Get returns one product or apperr.ErrNotFound
func (c *Catalog) Get(ctx context.Context, s *model.Session, id string) (*model.Product, error) {
	all, err := c.List(ctx, s)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("product %s: %w", id, apperr.ErrNotFound)
}

// Create validates in and prepends a new active product
func (c *Catalog) Create(ctx context.Context, s *model.Session, in model.ProductInput) (*model.Product, error) {
	if err := apperr.RequireSession(s); err != nil {
		return nil, err
	}
	if err := Validate(in); err != nil {
		return nil, err
	}

	now := c.now()
	p := model.Product{
		ID:           c.newID(),
		UserID:       s.UserID,
		Name:         strings.TrimSpace(in.Name),
		Description:  in.Description,
		Price:        in.Price,
		ImageURL:     in.ImageURL,
		AffiliateURL: strings.TrimSpace(in.AffiliateURL),
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := store.Update(ctx, c.store, store.ProductsKey(s.UserID), func(all []model.Product) ([]model.Product, error) {
		return append([]model.Product{p}, all...), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	log.Info().Str("user", s.UserID).Str("product", p.ID).Str("name", p.Name).Msg("Product created")
	return &p, nil
}

// Update replaces the editable fields of a product. A stale id returns nil.
func (c *Catalog) Update(ctx context.Context, s *model.Session, id string, in model.ProductInput) (*model.Product, error) {
	if err := apperr.RequireSession(s); err != nil {
		return nil, err
	}
	if err := Validate(in); err != nil {
		return nil, err
	}
	return c.mutate(ctx, s.UserID, id, func(p *model.Product) {
		p.Name = strings.TrimSpace(in.Name)
		p.Description = in.Description
		p.Price = in.Price
		p.ImageURL = in.ImageURL
		p.AffiliateURL = strings.TrimSpace(in.AffiliateURL)
	})
}

// Delete removes a product. Unknown ids leave the collection unchanged.
func (c *Catalog) Delete(ctx context.Context, s *model.Session, id string) error {
	if err := apperr.RequireSession(s); err != nil {
		return err
	}
	_, err := store.Update(ctx, c.store, store.ProductsKey(s.UserID), func(all []model.Product) ([]model.Product, error) {
		kept := make([]model.Product, 0, len(all))
		for _, p := range all {
			if p.ID != id {
				kept = append(kept, p)
			}
		}
		return kept, nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

// SetActive sets the active flag and always refreshes UpdatedAt
func (c *Catalog) SetActive(ctx context.Context, s *model.Session, id string, active bool) (*model.Product, error) {
	if err := apperr.RequireSession(s); err != nil {
		return nil, err
	}
	return c.mutate(ctx, s.UserID, id, func(p *model.Product) {
		p.Active = active
	})
}

// Toggle flips the active flag
func (c *Catalog) Toggle(ctx context.Context, s *model.Session, id string) (*model.Product, error) {
	if err := apperr.RequireSession(s); err != nil {
		return nil, err
	}
	return c.mutate(ctx, s.UserID, id, func(p *model.Product) {
		p.Active = !p.Active
	})
}

// Import reads the affiliate page and returns a draft input for the product form.
// Nothing is stored.
func (c *Catalog) Import(ctx context.Context, s *model.Session, url string) (*model.ProductInput, error) {
	if err := apperr.RequireSession(s); err != nil {
		return nil, err
	}
	if c.fetcher == nil {
		return nil, fmt.Errorf("product import is disabled: %w", apperr.ErrConflict)
	}
	if err := scraper.ValidateURL(url); err != nil {
		return nil, apperr.Invalid("url", err.Error())
	}

	md, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		log.Warn().Err(err).Str("user", s.UserID).Str("url", url).Msg("Product import failed")
		if errors.Is(err, scraper.ErrBlockedAddress) {
			return nil, apperr.Invalid("url", "the link must point to a public website")
		}
		return nil, apperr.Invalid("url", "could not read the product page")
	}
	return &model.ProductInput{
		Name:         md.Title,
		Description:  md.Description,
		Price:        md.Price,
		ImageURL:     md.ImageURL,
		AffiliateURL: url,
	}, nil
}

func (c *Catalog) mutate(ctx context.Context, userID, id string, fn func(*model.Product)) (*model.Product, error) {
	var updated *model.Product
	_, err := store.Update(ctx, c.store, store.ProductsKey(userID), func(all []model.Product) ([]model.Product, error) {
		for i := range all {
			if all[i].ID != id {
				continue
			}
			fn(&all[i])
			all[i].UpdatedAt = c.now()
			p := all[i]
			updated = &p
		}
		return all, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return updated, nil
}
