// Package main запускает HTTP-сервер сервиса luckyspin.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/luckyspin/internal/bonus"
	"github.com/mmeshcher/luckyspin/internal/config"
	"github.com/mmeshcher/luckyspin/internal/content"
	"github.com/mmeshcher/luckyspin/internal/handler"
	"github.com/mmeshcher/luckyspin/internal/live"
	"github.com/mmeshcher/luckyspin/internal/lock"
	"github.com/mmeshcher/luckyspin/internal/metrics"
	"github.com/mmeshcher/luckyspin/internal/middleware"
	"github.com/mmeshcher/luckyspin/internal/payment"
	"github.com/mmeshcher/luckyspin/internal/repository"
	"github.com/mmeshcher/luckyspin/internal/restgw"
	"github.com/mmeshcher/luckyspin/internal/service"
	"github.com/mmeshcher/luckyspin/internal/storage"
	"github.com/mmeshcher/luckyspin/internal/vip"
	"github.com/mmeshcher/luckyspin/internal/widget"
)

const (
	defaultSessionSecret = "luckyspin-secret"
	clientPruneInterval  = 10 * time.Minute
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	locks := lock.NewUserLock()

	svc := service.NewService(repo, logger)
	defer svc.Close()

	claims := bonus.NewReconciler(repo, svc, locks, logger)
	claims.SetMetrics(m)
	if cfg.ClaimStrategy == config.ClaimStrategyLedger {
		claims.UseLedger(repo)
		svc.UseClaimLedger(repo)

		synced, err := repo.SyncClaimLedger(ctx)
		if err != nil {
			sugar.Fatalw("claim ledger sync error", "error", err.Error())
		}
		sugar.Infow("claim ledger synced", "claims", synced)
	}
	sugar.Infow("bonus claim strategy selected", "strategy", claims.Strategy())

	var source content.Source = repo
	if cfg.ContentAPIAddress != "" {
		source = restgw.NewClient(cfg.ContentAPIAddress, cfg.ContentAPIKey)
		sugar.Infow("site content served by REST gateway", "addr", cfg.ContentAPIAddress)
	}

	carousel := widget.NewCarousel(cfg.CarouselInterval)
	hub := live.NewHub(logger, m)
	carousel.OnChange(func(index int) {
		hub.Broadcast(live.TypeCarousel, map[string]int{"index": index})
	})

	state := content.NewState()
	state.OnCarouselChange(carousel.SetSlides)

	renderer := content.NewRenderer(source, state, logger)
	renderer.SetMetrics(m)
	if err := renderer.Load(ctx); err != nil {
		sugar.Warnw("initial content load failed", "error", err.Error())
	}

	bucket, err := storage.NewBucket(cfg.ReceiptDir, cfg.PublicBaseURL)
	if err != nil {
		sugar.Fatalw("receipt storage initialization error", "error", err.Error())
	}

	payments := payment.NewSubmitter(repo, svc, bucket, locks, logger)
	payments.SetMetrics(m)

	secret := cfg.SessionSecret
	if secret == "" {
		sugar.Warn("session secret is not set, using the built-in default")
		secret = defaultSessionSecret
	}
	authMiddleware := middleware.NewAuthMiddleware(secret)

	h := handler.NewHandler(handler.Deps{
		Sessions: svc,
		Claims:   claims,
		Payments: payments,
		Content:  renderer,
		VIP:      vip.NewGate(source, logger),
		Carousel: carousel,
		Hub:      hub,
		Metrics:  m,
		Assets:   bucket.HTTPFs(),
	}, logger, authMiddleware)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: h.SetupRouter(),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(ctx)
	})

	g.Go(func() error {
		carousel.Run(ctx)
		return nil
	})

	g.Go(func() error {
		renderer.StartRefresh(ctx, cfg.ContentRefreshInterval)
		return nil
	})

	g.Go(func() error {
		h.StartPruning(ctx, clientPruneInterval)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting luckyspin server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
