package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sara-Samara/HealthAidProj-sub001/internal/cache"
	"github.com/Sara-Samara/HealthAidProj-sub001/internal/config"
	"github.com/Sara-Samara/HealthAidProj-sub001/internal/handler"
	"github.com/Sara-Samara/HealthAidProj-sub001/internal/logging"
	"github.com/Sara-Samara/HealthAidProj-sub001/internal/observability"
	"github.com/Sara-Samara/HealthAidProj-sub001/internal/repository"
	"github.com/Sara-Samara/HealthAidProj-sub001/internal/service"
	"github.com/Sara-Samara/HealthAidProj-sub001/pkg/auth"
)

func main() {
	logging.Setup("healthaid-api")
	cfg := config.Load()

	ctx := context.Background()
	shutdownTracing := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:      cfg.OTelEnabled,
		ServiceName:  cfg.OTelServiceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTelEndpoint,
		OTLPInsecure: cfg.OTelInsecure,
		SampleRatio:  cfg.OTelSampleRatio,
	})

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		logging.Fatal("failed to connect to database", "error", err)
	}
	defer pool.Close()

	sponsorshipRepo := repository.NewPgSponsorshipRepository(pool)
	donorRepo := repository.NewPgDonorRepository(pool)
	donationRepo := repository.NewPgDonationRepository(pool)
	ledgerStore := repository.NewPgLedgerStore(pool, cfg.LedgerLockTimeout)

	// Redis が未設定の場合は合計値キャッシュを使わない
	var totalsCache service.TotalsCache
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			slog.Warn("redis unavailable, totals cache disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			defer rdb.Close()
			totalsCache = cache.NewTotalsCache(rdb, cfg.TotalsCacheTTL)
		}
	}

	ledger := service.NewFundingLedger(service.LedgerDeps{
		Store:        ledgerStore,
		Donations:    donationRepo,
		Sponsorships: sponsorshipRepo,
		Donors:       donorRepo,
		Cache:        totalsCache,
		MaxAttempts:  cfg.LedgerMaxAttempts,
	})
	campaignService := service.NewCampaignService(sponsorshipRepo, donorRepo)

	sessionSecretBytes := auth.SessionSecretBytes(cfg.SessionSecret)

	h := handler.New(pool, cfg.FrontendURL)
	sponsorshipHandler := handler.NewSponsorshipHandler(campaignService, ledger)
	donationHandler := handler.NewDonationHandler(ledger, campaignService)

	// 認証必要エンドポイント
	wrapAuth := func(next http.Handler) http.Handler {
		if cfg.AuthRequired {
			return auth.RequireAuth(sessionSecretBytes)(next)
		}
		return auth.DevAuth(next)
	}
	// host 権限（運営・決済コールバック）
	wrapHost := func(next http.Handler) http.Handler {
		return wrapAuth(auth.RequireHost(next))
	}
	// 匿名寄付を許可しつつ、ログイン中なら寄付者を紐づける
	wrapOptional := func(next http.Handler) http.Handler {
		if cfg.AuthRequired {
			return auth.OptionalAuth(sessionSecretBytes)(next)
		}
		return auth.DevAuth(next)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", h.Health)

	// キャンペーン API（一覧・詳細・合計は認証不要）
	mux.HandleFunc("GET /api/sponsorships", sponsorshipHandler.List)
	mux.HandleFunc("GET /api/sponsorships/{id}", sponsorshipHandler.Get)
	mux.HandleFunc("GET /api/sponsorships/{id}/totals", sponsorshipHandler.Totals)
	mux.Handle("POST /api/sponsorships", wrapAuth(http.HandlerFunc(sponsorshipHandler.Create)))
	mux.Handle("POST /api/sponsorships/{id}/close", wrapHost(http.HandlerFunc(sponsorshipHandler.Close)))
	mux.Handle("PATCH /api/sponsorships/{id}/status", wrapHost(http.HandlerFunc(sponsorshipHandler.PatchStatus)))

	// 寄付 API
	mux.HandleFunc("GET /api/sponsorships/{id}/donations", donationHandler.ListBySponsorship)
	mux.Handle("POST /api/sponsorships/{id}/donations", wrapOptional(http.HandlerFunc(donationHandler.Submit)))
	mux.Handle("POST /api/sponsorships/{id}/fund", wrapHost(http.HandlerFunc(donationHandler.Fund)))
	mux.HandleFunc("GET /api/donations/{id}", donationHandler.Get)
	mux.Handle("POST /api/donations/{id}/status", wrapHost(http.HandlerFunc(donationHandler.Transition)))

	// 寄付者 API（認証必須）
	mux.Handle("POST /api/me/donor", wrapAuth(http.HandlerFunc(donationHandler.RegisterDonor)))
	mux.Handle("GET /api/me/donor", wrapAuth(http.HandlerFunc(donationHandler.MyDonor)))
	mux.Handle("GET /api/me/donations", wrapAuth(http.HandlerFunc(donationHandler.MyDonations)))

	limiter := handler.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer limiter.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.SecurityHeaders(h.CORS(limiter.Middleware(handler.RequestLogger(mux)))),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", server.Addr, "auth_required", cfg.AuthRequired, "totals_cache", totalsCache != nil)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Warn("tracing shutdown error", "error", err)
	}
}
