package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"govnet/internal/governance/executor"
	"govnet/internal/governance/handler"
	"govnet/internal/governance/metrics"
	"govnet/internal/governance/models"
	"govnet/internal/governance/router"
	jwttoken "govnet/internal/jwt_token"
	"govnet/internal/platform/config"
	"govnet/internal/platform/httpserver"
	"govnet/internal/platform/logger"
	id "govnet/pkg/domain"
	"govnet/pkg/platform/audit/publisher"
	"govnet/pkg/platform/middleware/admin"
	"govnet/pkg/platform/middleware/auth"
	request "govnet/pkg/platform/middleware/request"
	"govnet/pkg/platform/middleware/requesttime"
)

// parametersTarget is the call target of the router's governed parameter table.
var parametersTarget = id.MustParseAddress("0x9a")

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogFormat, cfg.Server.LogLevel).With("domain", cfg.Router.Domain)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("router exited", "error", err)
		os.Exit(1)
	}
}

// run wires the router from cfg and blocks until ctx is cancelled or a
// component fails.
func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	domain := id.Domain(cfg.Router.Domain)
	address := id.MustParseAddress(cfg.Router.Address)
	governor := id.MustParseAddress(cfg.Router.Governor)
	policy, err := models.ParseRecoveryPolicy(cfg.Router.RecoveryPolicy)
	if err != nil {
		return err
	}

	stores, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.close()

	events := publisher.NewPublisher(stores.audit,
		publisher.WithAsyncBuffer(1024),
		publisher.WithLogger(log),
	)
	defer events.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	exec := executor.New(executor.WithLogger(log))
	params := executor.NewParameterStore()
	if err := exec.Register(parametersTarget, params.Handle); err != nil {
		return err
	}

	link, err := openTransport(ctx, cfg, domain, address, log)
	if err != nil {
		return err
	}
	defer link.close()

	r, err := router.New(router.Config{
		Domain:          domain,
		Address:         address,
		Governor:        governor,
		RecoveryManager: id.MustParseAddress(cfg.Router.RecoveryManager),
		RecoveryDelay:   cfg.Router.RecoveryDelay,
		RecoveryPolicy:  policy,
	}, link.sender,
		router.WithLogger(log),
		router.WithStore(stores.snapshots),
		router.WithExecutor(exec),
		router.WithAuditPublisher(events),
		router.WithMetrics(metrics.New(reg)),
	)
	if err != nil {
		return err
	}
	if err := r.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize router: %w", err)
	}
	if err := applyPeers(ctx, cfg, r, governor, log); err != nil {
		return err
	}
	link.attach(r)

	srv := httpserver.New(cfg.Server.Addr, newMux(cfg, r, events, stores.health, reg, log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting governance router", "addr", cfg.Server.Addr, "store", cfg.Store.Backend, "transport", cfg.Transport.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := link.run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("transport: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// applyPeers registers GOVNET_PEERS through the governor proxy. A router
// that already handed governorship away keeps its stored registry.
func applyPeers(ctx context.Context, cfg config.Config, r *router.Router, governor id.Address, log *slog.Logger) error {
	peers, err := cfg.Router.ParsedPeers()
	if err != nil {
		return err
	}
	if len(peers) == 0 {
		return nil
	}
	if !r.IsGovernor(r.Domain(), governor) {
		log.Warn("skipping configured peers, governor proxy is no longer local", "peers", len(peers))
		return nil
	}
	for domain, addr := range peers {
		if err := r.SetPeer(ctx, governor, domain, addr); err != nil {
			return fmt.Errorf("set peer %s: %w", domain, err)
		}
	}
	log.Info("configured peers applied", "peers", len(peers))
	return nil
}

func newMux(cfg config.Config, r *router.Router, events *publisher.Publisher, health func(context.Context) error, reg *prometheus.Registry, log *slog.Logger) http.Handler {
	mux := chi.NewRouter()
	mux.Use(request.RequestID)
	mux.Use(requesttime.Middleware)

	mux.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if health != nil {
			if err := health(req.Context()); err != nil {
				log.WarnContext(req.Context(), "store health check failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	jwt := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
	var opts []handler.Option
	if cfg.Server.AdminToken != "" {
		opts = append(opts, handler.WithAuditLister(events))
	}
	handler.New(r, log, opts...).Register(mux,
		auth.RequireCaller(jwt, log),
		admin.RequireAdminToken(cfg.Server.AdminToken, log),
	)
	return mux
}
