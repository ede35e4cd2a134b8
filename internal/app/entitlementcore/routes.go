// Package entitlementcore собирает HTTP-приложение: таблицу маршрутов с политиками
// доступа, сервисы и подключения к инфраструктуре.
package entitlementcore

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/entitlement-core/internal/cache"
	"github.com/magabrotheeeer/entitlement-core/internal/config"
	"github.com/magabrotheeeer/entitlement-core/internal/http/handlers/account/me"
	"github.com/magabrotheeeer/entitlement-core/internal/http/handlers/admin/userread"
	"github.com/magabrotheeeer/entitlement-core/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/entitlement-core/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/entitlement-core/internal/http/handlers/content/playback"
	"github.com/magabrotheeeer/entitlement-core/internal/http/handlers/entitlement/subscribe"
	"github.com/magabrotheeeer/entitlement-core/internal/http/handlers/health"
	"github.com/magabrotheeeer/entitlement-core/internal/http/handlers/payment/paymentwebhook"
	progresslist "github.com/magabrotheeeer/entitlement-core/internal/http/handlers/progress/list"
	progressread "github.com/magabrotheeeer/entitlement-core/internal/http/handlers/progress/read"
	progresssave "github.com/magabrotheeeer/entitlement-core/internal/http/handlers/progress/save"
	"github.com/magabrotheeeer/entitlement-core/internal/http/middlewarectx"
	"github.com/magabrotheeeer/entitlement-core/internal/lib/jwt"
	"github.com/magabrotheeeer/entitlement-core/internal/models"
	"github.com/magabrotheeeer/entitlement-core/internal/services/auth"
	"github.com/magabrotheeeer/entitlement-core/internal/services/entitlement"
	"github.com/magabrotheeeer/entitlement-core/internal/services/payment"
	"github.com/magabrotheeeer/entitlement-core/internal/services/progress"
)

// Пути, которые обязаны оставаться публичными.
const (
	PathLogin    = "/auth/login"
	PathRegister = "/auth/register"
)

// ErrRouteTable возвращается, если таблица маршрутов не прошла проверку при старте.
var ErrRouteTable = errors.New("invalid route table")

// Route - маршрут вместе с политикой доступа.
type Route struct {
	Method      string
	Pattern     string
	Policy      middlewarectx.Policy
	Handler     http.Handler
	Middlewares []func(http.Handler) http.Handler
}

// Store - хранилище, общее для всех сервисов.
type Store interface {
	auth.UserRepository
	entitlement.Repository
	progress.Repository
}

// Options - зависимости роутера.
type Options struct {
	Config   *config.Config
	Store    Store
	Cache    *cache.Cache          // nil отключает дедупликацию платежей и дебаунс прогресса
	Notifier entitlement.Notifier  // nil отключает публикацию событий
	Clock    func() time.Time      // nil означает time.Now
	HashCost int                   // 0 означает bcrypt.DefaultCost
}

// Services - сервисы, построенные из Options.
type Services struct {
	Auth        *auth.AuthService
	Entitlement *entitlement.Service
	Progress    *progress.Service
	Payment     *payment.Service
}

// NewServices строит сервисы приложения.
func NewServices(logger *slog.Logger, opts Options) *Services {
	cfg := opts.Config

	var jwtOpts []jwt.Option
	entOpts := []entitlement.Option{entitlement.WithPeriod(cfg.Entitlement.Period)}
	var progOpts []progress.Option
	if opts.Clock != nil {
		jwtOpts = append(jwtOpts, jwt.WithClock(opts.Clock))
		entOpts = append(entOpts, entitlement.WithClock(opts.Clock))
		progOpts = append(progOpts, progress.WithClock(opts.Clock))
	}
	if opts.Notifier != nil {
		entOpts = append(entOpts, entitlement.WithNotifier(opts.Notifier))
	}

	var authOpts []auth.Option
	if opts.HashCost > 0 {
		authOpts = append(authOpts, auth.WithHashCost(opts.HashCost))
	}

	maker := jwt.NewJWTMaker(cfg.JWTToken.JWTSecretKey, cfg.JWTToken.TokenTTL, jwtOpts...)
	entitlementService := entitlement.NewService(opts.Store, logger, entOpts...)

	var deduper payment.Deduper
	if opts.Cache != nil {
		deduper = opts.Cache
		progOpts = append(progOpts, progress.WithDebounce(opts.Cache, cfg.Entitlement.ProgressDebounce))
	}

	return &Services{
		Auth:        auth.NewAuthService(opts.Store, maker, logger, authOpts...),
		Entitlement: entitlementService,
		Progress:    progress.NewService(opts.Store, logger, progOpts...),
		Payment:     payment.New(logger, entitlementService, deduper, cfg.Entitlement.PaymentDedupTTL),
	}
}

// Routes возвращает таблицу маршрутов приложения.
func Routes(logger *slog.Logger, cfg *config.Config, svc *Services) []Route {
	limiter := middlewarectx.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	limited := []func(http.Handler) http.Handler{middlewarectx.RateLimitMiddleware(logger, limiter)}

	return []Route{
		{Method: http.MethodPost, Pattern: PathRegister, Policy: middlewarectx.Public(),
			Handler: register.New(logger, svc.Auth), Middlewares: limited},
		{Method: http.MethodPost, Pattern: PathLogin, Policy: middlewarectx.Public(),
			Handler: login.New(logger, svc.Auth), Middlewares: limited},
		{Method: http.MethodGet, Pattern: "/me", Policy: middlewarectx.Authenticated(),
			Handler: me.New(logger, svc.Entitlement)},
		{Method: http.MethodPost, Pattern: "/subscribe", Policy: middlewarectx.Authenticated(),
			Handler: subscribe.New(logger, svc.Entitlement)},
		{Method: http.MethodGet, Pattern: "/content/{contentID}/playback", Policy: middlewarectx.Authenticated(),
			Handler:     playback.New(logger, svc.Progress),
			Middlewares: []func(http.Handler) http.Handler{middlewarectx.RequireEntitlement(logger, svc.Entitlement)}},
		{Method: http.MethodPut, Pattern: "/progress/{contentID}", Policy: middlewarectx.Authenticated(),
			Handler: progresssave.New(logger, svc.Progress)},
		{Method: http.MethodGet, Pattern: "/progress/{contentID}", Policy: middlewarectx.Authenticated(),
			Handler: progressread.New(logger, svc.Progress)},
		{Method: http.MethodGet, Pattern: "/progress", Policy: middlewarectx.Authenticated(),
			Handler: progresslist.New(logger, svc.Progress)},
		{Method: http.MethodGet, Pattern: "/admin/users/{identifier}", Policy: middlewarectx.RoleRequired(models.RoleAdmin),
			Handler: userread.New(logger, svc.Entitlement)},
		{Method: http.MethodPost, Pattern: "/payments/webhook", Policy: middlewarectx.Public(),
			Handler: paymentwebhook.New(logger, svc.Payment, cfg.Webhook.Secret)},
		{Method: http.MethodGet, Pattern: "/health", Policy: middlewarectx.Public(),
			Handler: health.New(logger)},
		{Method: http.MethodGet, Pattern: "/metrics", Policy: middlewarectx.Public(),
			Handler: promhttp.Handler()},
		{Method: http.MethodGet, Pattern: "/docs/*", Policy: middlewarectx.Public(),
			Handler: httpSwagger.WrapHandler},
	}
}

// ValidateRoutes проверяет таблицу маршрутов: у каждого маршрута корректная политика,
// нет дублей, а эндпоинты входа и регистрации публичны.
func ValidateRoutes(routes []Route) error {
	var errs []error
	seen := make(map[string]struct{}, len(routes))
	public := map[string]bool{PathLogin: false, PathRegister: false}

	for _, rt := range routes {
		key := rt.Method + " " + rt.Pattern
		if rt.Handler == nil {
			errs = append(errs, fmt.Errorf("%s: no handler", key))
		}
		if err := rt.Policy.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		if _, dup := seen[key]; dup {
			errs = append(errs, fmt.Errorf("%s: duplicate route", key))
		}
		seen[key] = struct{}{}

		if _, ok := public[rt.Pattern]; ok {
			if rt.Policy.Access() != middlewarectx.AccessPublic {
				errs = append(errs, fmt.Errorf("%s: credential endpoint must be Public, got %s", key, rt.Policy))
				continue
			}
			public[rt.Pattern] = true
		}
	}
	for path, ok := range public {
		if !ok {
			errs = append(errs, fmt.Errorf("%s: credential endpoint is not routed", path))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrRouteTable, err)
	}
	return nil
}

// RegisterRoutes проверяет таблицу и регистрирует маршруты за шлюзом аутентификации.
func RegisterRoutes(r chi.Router, logger *slog.Logger, authenticator middlewarectx.Authenticator, routes []Route) error {
	if err := ValidateRoutes(routes); err != nil {
		return err
	}

	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middlewarectx.Metrics,
		middlewarectx.Authenticate(logger, authenticator),
	)

	for _, rt := range routes {
		chain := append([]func(http.Handler) http.Handler{middlewarectx.Require(logger, rt.Policy)}, rt.Middlewares...)
		r.With(chain...).Method(rt.Method, rt.Pattern, rt.Handler)
	}
	return nil
}

// NewRouter строит сервисы и готовый роутер.
func NewRouter(logger *slog.Logger, opts Options) (http.Handler, *Services, error) {
	svc := NewServices(logger, opts)
	router := chi.NewRouter()
	if err := RegisterRoutes(router, logger, svc.Auth, Routes(logger, opts.Config, svc)); err != nil {
		return nil, nil, err
	}
	return router, svc, nil
}
