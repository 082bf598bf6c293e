package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/carelane/hospital-scheduling/internal/config"
	"github.com/carelane/hospital-scheduling/internal/db"
	"github.com/carelane/hospital-scheduling/internal/identity"
	"github.com/carelane/hospital-scheduling/internal/notify"
	redisclient "github.com/carelane/hospital-scheduling/internal/redis"
	"github.com/carelane/hospital-scheduling/internal/schedule"
)

// The follow-up worker periodically scans for completed appointments
// flagged follow-up-required and publishes a reminder event for each, so
// reception can book the follow-up visit.
func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "followup-worker").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	log.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("followup-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy, err := schedule.NewPolicy(cfg.WorkDayStart, cfg.WorkDayEnd, cfg.SlotMinutes, cfg.AllowOffSlotBookings)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid booking policy")
	}

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewClient(redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	repo := schedule.NewPgRepository(pgPool)
	dir := identity.NewPgDirectory(pgPool)
	locker := redisclient.NewRedisDoctorDayLocker(rdb, cfg.LockTTL)
	publisher := notify.NewRedisPublisher(rdb)
	svc := schedule.NewService(repo, dir, locker, publisher, policy, log)

	// Run once at startup
	runOnce(rootCtx, svc, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping followup-worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, log)
		}
	}
}

func runOnce(ctx context.Context, svc *schedule.Service, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	notified, err := svc.NotifyFollowUps(runCtx)
	if err != nil {
		log.Error().Err(err).Msg("follow-up run error")
		return
	}
	log.Info().Int("notified", notified).Dur("took", time.Since(start)).Msg("follow-up run complete")
}
