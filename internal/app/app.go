package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/combo-storefront/internal/domain/admin"
	"github.com/xenking/combo-storefront/internal/domain/order"
	"github.com/xenking/combo-storefront/internal/domain/pricing"
	"github.com/xenking/combo-storefront/internal/handler"
	"github.com/xenking/combo-storefront/internal/notify"
	"github.com/xenking/combo-storefront/pkg/health"
	"github.com/xenking/combo-storefront/pkg/httpmiddleware"
)

const serviceName = "combo-storefront"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Driver),
	)

	svc, err := newService(ctx, lg, cfg, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return err
	}
	defer svc.close()

	svc.health.Start(ctx, 10*time.Second)
	svc.health.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           svc.handler,
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		svc.health.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		if err := svc.dispatcher.Wait(shutdownCtx); err != nil {
			lg.Warn("Pending notifications abandoned", zap.Error(err))
		}
		if err := svc.dispatcher.Close(); err != nil {
			lg.Error("Notification sink close error", zap.Error(err))
		}
		svc.health.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// service is the assembled application: the wrapped HTTP handler and the
// components the shutdown sequence drives.
type service struct {
	handler    http.Handler
	health     *health.Health
	dispatcher *notify.Dispatcher
	close      func()
}

func newService(
	ctx context.Context,
	lg *zap.Logger,
	cfg *Config,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*service, error) {
	shopTZ, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, errors.Wrap(err, "load timezone")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second))

	// Stores.
	st, err := openStores(ctx, lg, cfg, healthSvc)
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() {
		if !ok {
			st.close()
		}
	}()

	if cfg.Auth.AdminUsername != "" {
		if err := bootstrapAdmin(ctx, st.admins, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
			return nil, errors.Wrap(err, "bootstrap admin")
		}
		lg.Info("Admin account ready", zap.String("username", cfg.Auth.AdminUsername))
	}

	// Domain services.
	calc, err := pricing.New(cfg.Pricing.Table())
	if err != nil {
		return nil, errors.Wrap(err, "pricing")
	}
	adminService, err := admin.NewService(admin.Config{
		Secret:     []byte(cfg.Auth.Secret),
		SessionTTL: cfg.Auth.SessionTTL,
	}, st.admins)
	if err != nil {
		return nil, errors.Wrap(err, "admin service")
	}

	// Notifications.
	dispatcher := notify.NewDispatcher(buildSinks(cfg.Notify, tp, mp),
		notify.WithTimeout(cfg.Notify.Timeout),
		notify.WithMeterProvider(mp),
	)
	lg.Info("Notification sinks", zap.Strings("sinks", dispatcher.Sinks()))

	orderService := order.NewService(order.Config{
		Guard:    order.GuardPolicy{AllowAfterCancel: cfg.Guard.AllowAfterCancel},
		Catalog:  order.Catalog{Products: cfg.Catalog.Products, Sizes: cfg.Catalog.Sizes},
		Currency: cfg.Notify.Currency,
	}, st.orders, calc,
		order.WithPublisher(dispatcher),
		order.WithMeterProvider(mp),
		order.WithTracerProvider(tp),
	)

	// HTTP handlers.
	h := handler.New(handler.Config{
		CookieSecure: cfg.Auth.CookieSecure,
		Location:     shopTZ,
	}, orderService, adminService)

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	ok = true
	return &service{
		handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
				Skip:   isProbe,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument(serviceName, routeFinder, tp, mp),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
		health:     healthSvc,
		dispatcher: dispatcher,
		close:      st.close,
	}, nil
}

func isProbe(r *http.Request) bool {
	return r.URL.Path == "/livez" || r.URL.Path == "/readyz"
}

// buildSinks returns the sinks whose destination is configured.
func buildSinks(cfg NotifyConfig, tp trace.TracerProvider, mp metric.MeterProvider) []notify.Sink {
	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithTracerProvider(tp),
			otelhttp.WithMeterProvider(mp),
		),
	}

	var sinks []notify.Sink
	if tt := cfg.TikTok.sink(); tt.Enabled() {
		sinks = append(sinks, notify.NewTikTokSink(tt, client))
	}
	if u := strings.TrimSpace(cfg.WebhookURL); u != "" {
		sinks = append(sinks, notify.NewWebhookSink(u, client))
	}
	if brokers := notify.ParseBrokers(cfg.Kafka.Brokers); len(brokers) > 0 {
		sinks = append(sinks, notify.NewKafkaSink(brokers, cfg.Kafka.Topic))
	}
	return sinks
}
