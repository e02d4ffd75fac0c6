package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/user/cesto-ofertas-go/internal/account"
	"github.com/user/cesto-ofertas-go/internal/bot"
	"github.com/user/cesto-ofertas-go/internal/broadcast"
	"github.com/user/cesto-ofertas-go/internal/catalog"
	"github.com/user/cesto-ofertas-go/internal/config"
	"github.com/user/cesto-ofertas-go/internal/events"
	"github.com/user/cesto-ofertas-go/internal/media"
	"github.com/user/cesto-ofertas-go/internal/notify"
	"github.com/user/cesto-ofertas-go/internal/push"
	"github.com/user/cesto-ofertas-go/internal/scheduler"
	"github.com/user/cesto-ofertas-go/internal/scraper"
	"github.com/user/cesto-ofertas-go/internal/seed"
	"github.com/user/cesto-ofertas-go/internal/sendlog"
	"github.com/user/cesto-ofertas-go/internal/server"
	"github.com/user/cesto-ofertas-go/internal/store"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout = 30 * time.Second
)

func main() {
	// A missing .env file is fine; the environment may already be set
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatal().Err(err).Str("level", cfg.Log.Level).Msg("Invalid log level")
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Str("store", cfg.Store.Driver).Str("sender", cfg.Broadcast.Sender).Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	log.Info().Str("driver", cfg.Store.Driver).Msg("Store ready")

	if cfg.Seed.Enabled {
		data, err := seed.Load(cfg.Seed.File)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load seed data")
		}
		if _, err := seed.Apply(ctx, st, data); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply seed data")
		}
	}

	// Events go to the in-process bus and, when configured, to RabbitMQ
	bus := events.NewBus()
	publisher := events.Multi{bus}
	var amqpPublisher *events.AMQPPublisher
	if cfg.AMQP.URL != "" {
		amqpPublisher, err = events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Queue)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to AMQP broker")
		}
		publisher = append(publisher, amqpPublisher)
		log.Info().Str("queue", cfg.AMQP.Queue).Msg("AMQP event publisher initialized")
	}

	simulated := &notify.Simulated{Delay: cfg.Broadcast.SendDelay}
	router := &notify.Router{Default: simulated, Channels: map[notify.Channel]notify.Notifier{}}
	var twilio *notify.Twilio
	if cfg.Twilio.TwilioEnabled() {
		twilio = notify.NewTwilio(&cfg.Twilio)
		router.Channels[notify.ChannelSMS] = twilio
		log.Info().Msg("Twilio SMS delivery enabled")
	}

	sender, err := newSender(cfg, twilio)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create sender")
	}

	var renderer scraper.Renderer
	var browser *scraper.Browser
	if cfg.Scraper.Browser {
		browser, err = scraper.NewBrowser(cfg.Scraper.UserAgent)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to start headless browser")
		}
		renderer = browser
	}
	fetcher := scraper.NewClient(&cfg.Scraper, renderer)

	configs := broadcast.NewRegistry(st)
	products := catalog.New(st, fetcher)
	logs := sendlog.NewLog(st, cfg.Broadcast.LogCapacity)
	pushService := push.NewService(configs, products, logs, sender, publisher, cfg.Broadcast.RateLimit)
	videos := media.NewLibrary(st, publisher)
	accounts := account.NewService(st, router, publisher, !cfg.Twilio.TwilioEnabled())
	log.Info().Msg("Services initialized")

	if n, err := videos.Count(ctx); err == nil {
		log.Info().Int("videos", n).Msg("Video catalog loaded")
	}

	sched, err := scheduler.NewScheduler(configs, pushService, &cfg.Scheduler)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}

	httpServer := server.NewServer(st, server.Services{
		Accounts:  accounts,
		Products:  products,
		Configs:   configs,
		Push:      pushService,
		Logs:      logs,
		Videos:    videos,
		Scheduler: sched,
	}, &cfg.Server)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpServer.Start(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
			sigCh <- syscall.SIGTERM
		}
	}()

	if err := sched.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn().Err(err).Msg("Failed to notify systemd")
	} else if ok {
		log.Debug().Msg("Notified systemd of readiness")
	}
	log.Info().Int("port", cfg.Server.Port).Msg("Cesto de Ofertas started successfully")

	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		log.Warn().Err(err).Msg("Failed to notify systemd")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()

	log.Info().Msg("Starting graceful shutdown...")

	// 1. Cancel broadcast passes and wait for them
	sched.Stop()

	// 2. Stop accepting requests and drain in-flight sends
	if err := httpServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping HTTP server")
	} else {
		log.Info().Msg("HTTP server stopped")
	}

	// 3. Close the headless browser
	if browser != nil {
		if err := browser.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing browser")
		}
	}

	// 4. Close the event broker connection
	if amqpPublisher != nil {
		if err := amqpPublisher.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing AMQP connection")
		}
	}

	// 5. Close the store
	if err := st.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing store")
	} else {
		log.Info().Msg("Store closed")
	}

	cancel()

	select {
	case <-shutdownCtx.Done():
		if shutdownCtx.Err() == context.DeadlineExceeded {
			log.Warn().Msg("Shutdown timeout exceeded, forcing exit")
		}
	default:
		log.Info().Msg("Graceful shutdown completed")
	}
}

// newSender selects the broadcast transport
func newSender(cfg *config.Config, twilio *notify.Twilio) (push.Sender, error) {
	switch cfg.Broadcast.Sender {
	case "telegram":
		client, err := bot.NewClient(cfg.Telegram.Token)
		if err != nil {
			return nil, fmt.Errorf("failed to create Telegram client: %w", err)
		}
		log.Info().Msg("Telegram sender initialized")
		return &push.TelegramSender{Client: client}, nil
	case "twilio":
		if twilio == nil {
			return nil, fmt.Errorf("SENDER=twilio requires Twilio credentials")
		}
		log.Info().Msg("WhatsApp sender initialized")
		return &push.WhatsAppSender{Client: twilio}, nil
	default:
		log.Info().Dur("delay", cfg.Broadcast.SendDelay).Msg("Simulated sender initialized")
		return &push.SimulatedSender{Delay: cfg.Broadcast.SendDelay}, nil
	}
}
