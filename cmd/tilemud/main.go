package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tilemud/server/internal/aic"
	"github.com/tilemud/server/internal/config"
	"github.com/tilemud/server/internal/data"
	"github.com/tilemud/server/internal/idem"
	"github.com/tilemud/server/internal/metrics"
	"github.com/tilemud/server/internal/pack"
	"github.com/tilemud/server/internal/ratelimit"
	"github.com/tilemud/server/internal/room"
	"github.com/tilemud/server/internal/safety"
	"github.com/tilemud/server/internal/session"
	"github.com/tilemud/server/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfgPath := "config/server.toml"
	if p := os.Getenv("TILEMUD_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	log.Info("starting",
		zap.String("name", cfg.Server.Name),
		zap.String("bind", cfg.Server.BindAddress),
	)

	// Load world assets once; rooms share them read-only.
	worldPack, err := pack.Load(cfg.World.PackDir)
	if err != nil {
		return fmt.Errorf("load map pack: %w", err)
	}
	log.Info("map pack loaded",
		zap.String("pack", worldPack.Manifest.Name),
		zap.String("version", worldPack.Manifest.Version),
		zap.Int("zones", len(worldPack.Manifest.Zones)),
		zap.Int("objects", len(worldPack.Objects)),
	)

	skillTable, err := data.LoadSkillTable(filepath.Join(cfg.World.DataDir, "skill_list.yaml"))
	if err != nil {
		return fmt.Errorf("load skill table: %w", err)
	}
	npcTable, err := data.LoadNpcTable(filepath.Join(cfg.World.DataDir, "npc_list.yaml"))
	if err != nil {
		return fmt.Errorf("load npc table: %w", err)
	}
	log.Info("data tables loaded",
		zap.Int("skills", skillTable.Count()),
		zap.Int("npcs", npcTable.Count()),
	)

	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)

	sessions := session.NewStore()
	idemCache := idem.NewCache(cfg.Session.IdempotencyTTL)
	limiter := ratelimit.New(cfg.RateLimit)
	safetyReg := safety.NewRegistry()

	hubDone := make(chan struct{})
	hub := transport.NewHub(log, m)
	go hub.Run(hubDone)

	rooms := room.NewRegistry(room.RegistryOptions{
		Pack:       worldPack,
		Skills:     skillTable,
		Npcs:       npcTable,
		Safety:     safetyReg,
		Cfg:        cfg,
		Log:        log,
		Metrics:    m,
		Publisher:  hub,
		Heartbeats: sessions,
		// The session outlives the entity so a reconnect can respawn it;
		// the janitor sweeps sessions once the reconnect window lapses.
		OnAgentTimeout: func(agentID string) {
			log.Info("agent timed out, session kept for reconnect", zap.String("agent", agentID))
		},
	})

	srv := aic.NewServer(aic.Options{
		Cfg:      cfg,
		Log:      log,
		Rooms:    rooms,
		Sessions: sessions,
		Idem:     idemCache,
		Limiter:  limiter,
		Safety:   safetyReg,
		Metrics:  m,
		PromReg:  promReg,
		WS:       transport.ServeWS(hub, rooms, sessions, log),
	})

	httpSrv := &http.Server{
		Addr:         cfg.Server.BindAddress,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Rate limiter buckets and expired sessions are swept periodically.
	janitorDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				limiter.Sweep(10 * time.Minute)
				if n := sessions.Sweep(cfg.Session.ReconnectWindow); n > 0 {
					log.Info("sessions expired", zap.Int("count", n))
				}
			case <-janitorDone:
				return
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Server.BindAddress))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdownCh:
		log.Info("shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	close(janitorDone)
	close(hubDone)
	rooms.Close()
	log.Info("stopped")
	return nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
