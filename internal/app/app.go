// Package app wires every component into a runnable server: configuration,
// storage, the domain services, and the HTTP route tree.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/beautymarket/backend/internal/audit"
	"github.com/beautymarket/backend/internal/auth"
	"github.com/beautymarket/backend/internal/breaker"
	"github.com/beautymarket/backend/internal/config"
	"github.com/beautymarket/backend/internal/credential"
	"github.com/beautymarket/backend/internal/httpserver"
	"github.com/beautymarket/backend/internal/platform"
	"github.com/beautymarket/backend/internal/ratelimit"
	"github.com/beautymarket/backend/internal/telemetry"
	"github.com/beautymarket/backend/internal/tenancy"
	"github.com/beautymarket/backend/pkg/identity"
	"github.com/beautymarket/backend/pkg/notification"
	"github.com/beautymarket/backend/pkg/payment"
	"github.com/beautymarket/backend/pkg/points"
	"github.com/beautymarket/backend/pkg/referral"
	"github.com/beautymarket/backend/pkg/reservation"
	"github.com/beautymarket/backend/pkg/shop"
	"github.com/beautymarket/backend/pkg/slack"
)

const httpClientTimeout = 10 * time.Second

// App holds every constructed dependency for the lifetime of the process.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *pgxpool.Pool
	rdb    *redis.Client

	auditLog *audit.Writer
	server   *httpserver.Server

	reservationSvc *reservation.Service
	pointsSvc      *points.Service
	dispatcher     *notification.Dispatcher
}

// Run builds the full dependency graph from cfg, starts every background
// loop, and serves HTTP until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	a, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.db.Close()
	defer a.rdb.Close()
	return a.run(ctx)
}

// build constructs the full dependency graph from cfg but does not start any
// background loops or listeners.
func build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	auditLog := audit.NewWriter(db, logger)
	slackNotifier := slack.NewNotifier(cfg.SlackBotToken, cfg.SlackAlertChannel, logger)
	auditLog.SetSlackNotifier(slackNotifier)

	breakerMgr := breaker.NewManager(logger)

	accessTTL, err := time.ParseDuration(cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("parsing access token ttl: %w", err)
	}
	refreshTTL, err := time.ParseDuration(cfg.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("parsing refresh token ttl: %w", err)
	}
	tokens, err := auth.NewTokenService(cfg.AccessTokenSecret, cfg.AccessTokenSecretOld, accessTTL)
	if err != nil {
		return nil, fmt.Errorf("constructing token service: %w", err)
	}
	refreshStore := auth.NewRefreshStore(db, refreshTTL, cfg.MaxActiveSessions)
	principalLookup := auth.NewPrincipalLookup(db)

	credStore := credential.NewStore(db)
	credSvc := credential.NewService(credStore, tokens, refreshStore, cfg.BcryptCost, auditLog, logger)
	credHandler := credential.NewHandler(credSvc, logger)

	shopStore := shop.NewStore(db)
	shopCatalog := shop.NewCatalog(shopStore, logger)
	shopHandler := shop.NewHandler(shopCatalog, logger)

	shopLookup := &tenancy.PgxShopLookup{Pool: db}

	pointsSvc := points.NewService(db, logger)
	pointsHandler := points.NewHandler(pointsSvc, logger)

	reservationSvc := reservation.NewService(db, shopCatalog, pointsSvc, auditLog, logger)
	reservationHandler := reservation.NewHandler(reservationSvc, logger)

	notifyStore := notification.NewStore(db)

	referralRates := referral.Rates{
		Standard:   cfg.ReferralStandardRate,
		Influencer: cfg.ReferralInfluencerRate,
	}
	referralThreshold := referral.InfluencerThreshold{
		MinReferrals:          cfg.ReferralInfluencerMinReferrals,
		MinLifetimeCommission: cfg.ReferralInfluencerMinLifetimeCommission,
	}
	referralSvc := referral.NewService(db, pointsSvc, notifyStore, referralRates, referralThreshold, logger)
	referralHandler := referral.NewHandler(referralSvc, logger)

	paymentGateway := payment.NewHTTPClient(cfg.PaymentGatewayBaseURL, cfg.PaymentGatewayAPIKey, httpClientTimeout, breakerMgr)
	paymentSvc := payment.NewService(db, paymentGateway, pointsSvc, referralSvc, reservationSvc, notifyStore, auditLog, logger)
	webhookMaxSkew, err := time.ParseDuration(cfg.PaymentWebhookMaxSkew)
	if err != nil {
		return nil, fmt.Errorf("parsing payment webhook max skew: %w", err)
	}
	paymentHandler := payment.NewHandler(paymentSvc, cfg.PaymentWebhookSecret, webhookMaxSkew, logger)

	identityBroker := identity.NewHTTPBroker(cfg.IdentityBrokerBaseURL, cfg.IdentityBrokerAPIKey, httpClientTimeout, breakerMgr)
	identityStore := identity.NewStore(db)
	identitySvc := identity.NewService(identityStore, identityBroker, auditLog, logger)
	identityHandler := identity.NewHandler(identitySvc, logger)

	notifyProvider := notification.NewHTTPProvider(cfg.PushGatewayBaseURL, cfg.PushGatewayAPIKey, httpClientTimeout, breakerMgr)
	dedupWindow, err := time.ParseDuration(cfg.NotificationDedupWindow)
	if err != nil {
		return nil, fmt.Errorf("parsing notification dedup window: %w", err)
	}
	backoffBase := time.Duration(cfg.NotificationBackoffBaseMs) * time.Millisecond
	dispatcher := notification.NewDispatcher(notifyStore, notifyProvider, rdb, logger, cfg.NotificationMaxRetries, backoffBase, dedupWindow)
	notifyHandler := notification.NewHandler(notifyStore, logger)

	auditHandler := audit.NewHandler(db, logger)

	rateWindow := time.Duration(cfg.RateLimitWindowSec) * time.Second
	rateMaxBlock := time.Duration(cfg.RateLimitMaxBlockMin) * time.Minute
	limiter := ratelimit.New(rdb, cfg.RateLimitMaxAttempts, rateWindow, rateMaxBlock)

	server := httpserver.NewServer(cfg, logger, db, rdb, metricsReg)
	mountRoutes(server.Router, routeDeps{
		logger:          logger,
		tokens:          tokens,
		principalLookup: principalLookup,
		shopLookup:      shopLookup,
		auditLog:        auditLog,
		limiter:         limiter,
		adminAllowlist:  cfg.AdminIPAllowlist,
		credential:      credHandler,
		shop:            shopHandler,
		reservation:     reservationHandler,
		points:          pointsHandler,
		referral:        referralHandler,
		payment:         paymentHandler,
		identity:        identityHandler,
		notification:    notifyHandler,
		audit:           auditHandler,
	})

	return &App{
		cfg:            cfg,
		logger:         logger,
		db:             db,
		rdb:            rdb,
		auditLog:       auditLog,
		server:         server,
		reservationSvc: reservationSvc,
		pointsSvc:      pointsSvc,
		dispatcher:     dispatcher,
	}, nil
}

// run dispatches to the API or worker process body per cfg.Mode. Both share
// the same constructed dependency graph; only the surface they expose
// differs.
func (a *App) run(ctx context.Context) error {
	a.auditLog.Start(ctx)
	defer a.auditLog.Close()

	switch a.cfg.Mode {
	case "api":
		return a.runAPI(ctx)
	case "worker":
		return a.runWorker(ctx)
	default:
		return fmt.Errorf("unknown mode: %s", a.cfg.Mode)
	}
}

// runAPI starts the background sweep loops alongside the HTTP listener —
// the sweeps are cheap enough that a single-process deploy need not split
// them onto a separate worker.
func (a *App) runAPI(ctx context.Context) error {
	if err := a.startSweeps(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              a.cfg.ListenAddr(),
		Handler:           a.server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", a.cfg.ListenAddr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// runWorker runs only the background sweep loops — reservation
// auto-progress, point expiry, notification dispatch — with no HTTP
// listener, for a deployment that splits request serving from batch work.
func (a *App) runWorker(ctx context.Context) error {
	if err := a.startSweeps(ctx); err != nil {
		return err
	}
	a.logger.Info("worker running")
	<-ctx.Done()
	return nil
}

func (a *App) startSweeps(ctx context.Context) error {
	expireAfter := time.Duration(a.cfg.ReservationExpireAfterMin) * time.Minute
	noShowGrace := time.Duration(a.cfg.ReservationNoShowGraceMin) * time.Minute
	reservationInterval, err := time.ParseDuration(a.cfg.ReservationSweepInterval)
	if err != nil {
		return fmt.Errorf("parsing reservation sweep interval: %w", err)
	}
	go reservation.RunAutoProgressLoop(ctx, a.reservationSvc, a.logger, reservationInterval, expireAfter, noShowGrace)

	pointsInterval, err := time.ParseDuration(a.cfg.PointsSweepInterval)
	if err != nil {
		return fmt.Errorf("parsing points sweep interval: %w", err)
	}
	go points.RunExpireLoop(ctx, a.pointsSvc, a.logger, pointsInterval)

	go a.dispatcher.Run(ctx, 5*time.Second)
	return nil
}

type routeDeps struct {
	logger          *slog.Logger
	tokens          *auth.TokenService
	principalLookup *auth.PrincipalLookup
	shopLookup      *tenancy.PgxShopLookup
	auditLog        *audit.Writer
	limiter         *ratelimit.Limiter
	adminAllowlist  []string

	credential   *credential.Handler
	shop         *shop.Handler
	reservation  *reservation.Handler
	points       *points.Handler
	referral     *referral.Handler
	payment      *payment.Handler
	identity     *identity.Handler
	notification *notification.Handler
	audit        *audit.Handler
}

// mountRoutes lays out the full route tree per control-flow:
//
//	Client -> rate limiter (public routes) -> principal resolver (C3) ->
//	tenancy gate (C4, shop-scoped routes only) -> handler
//
// Gateway webhooks bypass both the principal resolver and the tenancy gate;
// they authenticate via HMAC signature instead.
func mountRoutes(r *chi.Mux, d routeDeps) {
	authMw := auth.Middleware(d.tokens, d.principalLookup, d.logger)

	// Public, unauthenticated surface: registration/login/refresh, and the
	// payment gateway's webhook callback.
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(ratelimit.Middleware(d.limiter, d.auditLog, ratelimit.FamilyLogin)).Mount("/", d.credential.Routes())
	})
	r.Route("/api/v1/payments/webhook", func(r chi.Router) {
		r.With(ratelimit.Middleware(d.limiter, d.auditLog, ratelimit.FamilyPaymentWebhook)).Mount("/", d.payment.WebhookRoutes())
	})

	// Authenticated, platform-scoped surface (no shop binding required).
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authMw)
		r.Use(auth.RequireAuth)

		r.Mount("/shops", d.shop.Routes())
		r.Mount("/points", d.points.Routes())
		r.Mount("/referrals", d.referral.Routes())
		r.With(ratelimit.Middleware(d.limiter, d.auditLog, ratelimit.FamilyIdentitySubmit)).Mount("/identity-verifications", d.identity.Routes())
		r.Mount("/notifications", d.notification.Routes())

		// Shop-scoped surface: every route under /shops/{shopId}/... passes
		// through the tenancy gate in addition to authentication.
		r.Route("/shops/{shopId}", func(r chi.Router) {
			r.Use(tenancy.Gate(d.shopLookup, d.auditLog, d.logger, "shopId"))
			r.With(ratelimit.Middleware(d.limiter, d.auditLog, ratelimit.FamilyReservationCreate)).Mount("/reservations", d.reservation.Routes())
			r.Mount("/payments", d.payment.Routes())
		})

		// Admin surface: shop approval/suspension, audit log queries.
		r.Route("/admin", func(r chi.Router) {
			if len(d.adminAllowlist) > 0 {
				r.Use(ratelimit.IPAllowlist(d.adminAllowlist))
			}
			r.Use(auth.RequireMinRole(auth.RoleAdmin))
			r.Mount("/shops", d.shop.AdminRoutes())
			r.Mount("/", d.audit.Routes())
		})
	})
}
