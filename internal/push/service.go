// Package push renders broadcast messages and delivers them to target groups.
package push

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/user/cesto-ofertas-go/internal/apperr"
	"github.com/user/cesto-ofertas-go/internal/events"
	"github.com/user/cesto-ofertas-go/internal/metrics"
	"github.com/user/cesto-ofertas-go/internal/model"
	"github.com/user/cesto-ofertas-go/internal/task"
	"golang.org/x/time/rate"
)

// ErrNoActiveProducts is returned when a send has nothing to advertise
var ErrNoActiveProducts = fmt.Errorf("no active products to send: %w", apperr.ErrConflict)

// ConfigSource reads and updates broadcast configurations
type ConfigSource interface {
	Get(ctx context.Context, s *model.Session, id string) (*model.BroadcastConfig, error)
	MarkSent(ctx context.Context, userID, id string, at time.Time) error
}

// ProductSource lists the products a user can advertise
type ProductSource interface {
	ListActive(ctx context.Context, userID string) ([]model.Product, error)
}

// LogSink records send attempts
type LogSink interface {
	Append(ctx context.Context, e model.SendLog) error
}

// Service picks a product, renders the template and hands the message to a Sender
type Service struct {
	configs  ConfigSource
	products ProductSource
	logs     LogSink
	sender   Sender
	events   events.Publisher
	limiter  *rate.Limiter
	pick     func(n int) int
	now      func() time.Time
	newID    func() string
}

// NewService creates a push service. ratePerSecond bounds deliveries across all users.
func NewService(configs ConfigSource, products ProductSource, logs LogSink, sender Sender, publisher events.Publisher, ratePerSecond float64) *Service {
	if publisher == nil {
		publisher = events.NewBus()
	}
	return &Service{
		configs:  configs,
		products: products,
		logs:     logs,
		sender:   sender,
		events:   publisher,
		limiter:  rate.NewLimiter(rate.Limit(ratePerSecond), 1),
		pick:     rand.IntN,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// SimulateSend sends one message for the session user's configuration configID.
// A delivery failure is not an error: it is returned as a log entry with status failed.
func (s *Service) SimulateSend(ctx context.Context, sess *model.Session, configID string) (*model.SendLog, error) {
	if err := apperr.RequireSession(sess); err != nil {
		return nil, err
	}
	cfg, err := s.configs.Get(ctx, sess, configID)
	if err != nil {
		return nil, err
	}
	return s.Send(ctx, cfg)
}

// SendAsync runs SimulateSend as a cancellable task
func (s *Service) SendAsync(ctx context.Context, sess *model.Session, configID string) *task.Task[*model.SendLog] {
	return task.Go(ctx, func(ctx context.Context) (*model.SendLog, error) {
		return s.SimulateSend(ctx, sess, configID)
	})
}

// Send delivers one message for cfg, choosing uniformly among the owner's active products
func (s *Service) Send(ctx context.Context, cfg *model.BroadcastConfig) (*model.SendLog, error) {
	products, err := s.products.ListActive(ctx, cfg.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active products: %w", err)
	}
	if len(products) == 0 {
		return nil, ErrNoActiveProducts
	}
	product := products[s.pick(len(products))]
	msg := Compose(cfg, &product)

	// Wait for rate limiter
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	start := time.Now()
	sendErr := s.sender.Send(ctx, msg)
	if sendErr != nil && (errors.Is(sendErr, context.Canceled) || errors.Is(sendErr, context.DeadlineExceeded)) {
		return nil, sendErr
	}

	entry := model.SendLog{
		ID:        s.newID(),
		UserID:    cfg.UserID,
		ProductID: product.ID,
		ConfigID:  cfg.ID,
		Message:   msg.Text,
		SentAt:    s.now(),
		Status:    model.SendStatusSent,
	}
	eventType := events.TypeBroadcastSent
	if sendErr != nil {
		entry.Status = model.SendStatusFailed
		entry.Error = sendErr.Error()
		eventType = events.TypeBroadcastFailed
		metrics.RecordError("send")
		log.Error().
			Err(sendErr).
			Str("user", cfg.UserID).
			Str("config", cfg.ID).
			Str("group", cfg.TargetGroup).
			Msg("Failed to send broadcast")
	} else {
		log.Info().
			Str("user", cfg.UserID).
			Str("config", cfg.ID).
			Str("product", product.ID).
			Str("group", cfg.TargetGroup).
			Msg("Broadcast sent")
	}
	metrics.RecordSend(string(entry.Status), time.Since(start))

	// Record the attempt even if the caller has gone away
	recordCtx := context.WithoutCancel(ctx)
	if err := s.logs.Append(recordCtx, entry); err != nil {
		return nil, fmt.Errorf("failed to record send: %w", err)
	}
	if entry.Status == model.SendStatusSent {
		if err := s.configs.MarkSent(recordCtx, cfg.UserID, cfg.ID, entry.SentAt); err != nil {
			log.Error().Err(err).Str("config", cfg.ID).Msg("Failed to mark config as sent")
		}
	}
	if err := s.events.Publish(recordCtx, events.Event{Type: eventType, UserID: cfg.UserID, Time: entry.SentAt, Data: entry}); err != nil {
		log.Warn().Err(err).Str("type", eventType).Msg("Failed to publish event")
	}

	return &entry, nil
}
