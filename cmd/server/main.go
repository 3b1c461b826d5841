package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"gopkg.in/vrecan/death.v3"

	"github.com/iliyamo/seat-reservation-engine/internal/booking"
	"github.com/iliyamo/seat-reservation-engine/internal/config"
	"github.com/iliyamo/seat-reservation-engine/internal/database"
	"github.com/iliyamo/seat-reservation-engine/internal/hold"
	"github.com/iliyamo/seat-reservation-engine/internal/logger"
	"github.com/iliyamo/seat-reservation-engine/internal/payment"
	"github.com/iliyamo/seat-reservation-engine/internal/queue"
	"github.com/iliyamo/seat-reservation-engine/internal/repository"
	"github.com/iliyamo/seat-reservation-engine/internal/router"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	policy := booking.Policy{
		HoldTTL:         cfg.Booking.HoldTTL,
		PaymentTimeout:  cfg.Booking.PaymentTimeout,
		MaxSeatsPerHold: cfg.Booking.MaxSeatsPerHold,
		ShowHeldSeats:   cfg.Booking.ShowHeldSeats,
	}
	deps := booking.Deps{
		Gateway: payment.NewMock(cfg.Payment.DeclinePrefix, cfg.Payment.Delay),
		Logger:  log,
	}

	// MySQL is optional; without it state lives only in memory.
	var store *repository.Store
	if cfg.PersistenceEnabled() {
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			log.WithError(err).Error("open database")
			os.Exit(1)
		}
		defer db.Close()
		if err := database.Migrate(ctx, db); err != nil {
			log.WithError(err).Error("migrate database")
			os.Exit(1)
		}
		store = repository.NewStore(db)
		deps.SeatStore = store
		deps.HoldStore = store
		deps.Bookings = store
	}

	var publisher *queue.Publisher
	if cfg.Events.Enabled {
		publisher = queue.NewPublisher(cfg.Events.URL, log)
		deps.Publisher = publisher
	}

	reg := booking.NewRegistry(policy, deps)
	if store != nil {
		n, err := reg.Restore(ctx, store)
		if err != nil {
			log.WithError(err).Error("restore events")
			os.Exit(1)
		}
		log.Info("events restored", "count", n)
	}
	reg.StartSweeper(cfg.Booking.SweepInterval)

	var purge *hold.Sweeper
	if store != nil && cfg.Booking.Retention > 0 {
		purge = hold.NewSweeper(purgeInterval(cfg.Booking.Retention), func(ctx context.Context) int {
			n, err := store.DeleteFinishedBefore(ctx, time.Now().UTC().Add(-cfg.Booking.Retention))
			if err != nil {
				log.WithError(err).Warn("purge finished holds")
			}
			return int(n)
		}, log)
		purge.Start()
	}

	consumerDone := make(chan struct{})
	if cfg.Events.ConsumerEnabled {
		go func() {
			defer close(consumerDone)
			runConsumer(ctx, log, queue.NewBookingLog(cfg.Events.URL, cfg.Events.BookingLogPath, log).Run)
		}()
	} else {
		close(consumerDone)
	}

	// Redis backs rate limiting and the snapshot cache; both are skipped
	// when it is unreachable.
	var rdb *redis.Client
	if cfg.RateLimit.Enabled || cfg.Cache.Enabled {
		c, err := config.NewRedisClient(cfg.Redis)
		if err != nil {
			log.WithError(err).Warn("redis unavailable, rate limiting and caching disabled")
		} else {
			rdb = c
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.LogHTTPRequest(c.Request().Context(), v.Method, v.URI, v.Status, v.Latency, v.RemoteIP)
			return nil
		},
	}))
	router.RegisterRoutes(e, router.Deps{
		Registry:  reg,
		Log:       log,
		JWTSecret: cfg.JWTSecret,
		RateLimit: cfg.RateLimit,
		Cache:     cfg.Cache,
		Redis:     rdb,
	})

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server")
			os.Exit(1)
		}
	}()

	d := death.NewDeath(syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	d.WaitForDeathWithFunc(func() {
		log.Info("shutting down")
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("http shutdown")
		}
		reg.Stop()
		if purge != nil {
			purge.Stop()
		}
		cancel()
		<-consumerDone
		if publisher != nil {
			if err := publisher.Close(); err != nil {
				log.WithError(err).Warn("close publisher")
			}
		}
		if rdb != nil {
			_ = rdb.Close()
		}
	})
}

// runConsumer runs a background consumer until it returns and logs why it
// stopped unless ctx was cancelled.
func runConsumer(ctx context.Context, log *logger.Logger, run func(context.Context) error) {
	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("booking log consumer stopped")
	}
}

// purgeInterval runs the retention purge a few times per retention window,
// at most hourly.
func purgeInterval(retention time.Duration) time.Duration {
	if d := retention / 4; d < time.Hour {
		return max(d, time.Minute)
	}
	return time.Hour
}
