package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/park285/chess-live-server/internal/archive"
	appcfg "github.com/park285/chess-live-server/internal/config"
	"github.com/park285/chess-live-server/internal/dispatch"
	"github.com/park285/chess-live-server/internal/gateway"
	"github.com/park285/chess-live-server/internal/obslog"
	"github.com/park285/chess-live-server/internal/presets"
	"github.com/park285/chess-live-server/internal/registry"
	"github.com/park285/chess-live-server/internal/room"
)

func main() {
	_ = godotenv.Load()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()

	catalog, err := presets.Load(cfg.PresetsFile)
	if err != nil {
		log.Fatalf("presets error: %v", err)
	}

	reg := registry.New(clockwork.NewRealClock())
	disp := dispatch.New()

	var rec registry.Recorder
	archiver, err := archive.NewRecorder(cfg.RedisURL, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("archive init error: %v", err)
	}
	if archiver != nil {
		rec = archiver
		defer archiver.Close()
	}

	defaults := room.Settings{
		Initial:   cfg.DefaultInitial(),
		Increment: cfg.DefaultIncrement(),
	}
	srv := gateway.NewServer(cfg.ListenAddr, reg, disp, rec, catalog, defaults)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := registry.NewScheduler(reg, disp, rec, cfg.TickInterval)
	go sched.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		obslog.L().Info("shutdown_signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			obslog.L().Fatal("server_failed", zap.Error(err))
		}
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		obslog.L().Warn("shutdown_incomplete", zap.Error(err))
	}
	cancel()
}
