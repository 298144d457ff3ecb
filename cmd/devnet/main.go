// Command devnet runs a whole governance network in one process: every
// domain's router on a shared in-memory fabric, each exposed over HTTP
// under /domains/{domain}.
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

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"govnet/internal/governance/executor"
	"govnet/internal/governance/handler"
	"govnet/internal/governance/metrics"
	"govnet/internal/governance/router"
	jwttoken "govnet/internal/jwt_token"
	"govnet/internal/network"
	"govnet/internal/platform/httpserver"
	"govnet/internal/platform/logger"
	id "govnet/pkg/domain"
	"govnet/pkg/platform/audit/publisher"
	auditmemory "govnet/pkg/platform/audit/store/memory"
	"govnet/pkg/platform/middleware/admin"
	"govnet/pkg/platform/middleware/auth"
	request "govnet/pkg/platform/middleware/request"
	"govnet/pkg/platform/middleware/requesttime"
)

type devnetConfig struct {
	Addr          string        `env:"GOVNET_ADDR" envDefault:":8080"`
	Domains       []uint32      `env:"GOVNET_DEVNET_DOMAINS" envSeparator:"," envDefault:"1000,2000,3000"`
	RecoveryDelay time.Duration `env:"GOVNET_RECOVERY_DELAY" envDefault:"5m"`
	JWTSigningKey string        `env:"GOVNET_JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	AdminToken    string        `env:"GOVNET_ADMIN_TOKEN" envDefault:"devnet-admin"`
	LogFormat     string        `env:"GOVNET_LOG_FORMAT" envDefault:"text"`
	LogLevel      string        `env:"GOVNET_LOG_LEVEL" envDefault:"info"`
}

func main() {
	var cfg devnetConfig
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogFormat, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("devnet exited", "error", err)
		os.Exit(1)
	}
}

// devSpec derives deterministic addresses from the domain so operators can
// script against a fresh devnet.
func devSpec(d id.Domain) network.RouterSpec {
	return network.RouterSpec{
		Domain:          d,
		Address:         id.MustParseAddress(fmt.Sprintf("0xa0%08x", uint32(d))),
		Governor:        id.MustParseAddress(fmt.Sprintf("0x60%08x", uint32(d))),
		RecoveryManager: id.MustParseAddress(fmt.Sprintf("0x3a%08x", uint32(d))),
	}
}

func run(ctx context.Context, cfg devnetConfig, log *slog.Logger) error {
	if len(cfg.Domains) == 0 {
		return errors.New("GOVNET_DEVNET_DOMAINS must name at least one domain")
	}
	specs := make([]network.RouterSpec, 0, len(cfg.Domains))
	for _, d := range cfg.Domains {
		specs = append(specs, devSpec(id.Domain(d)))
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	events := publisher.NewPublisher(auditmemory.NewInMemoryStore(), publisher.WithLogger(log))
	defer events.Close()

	net, err := network.Deploy(ctx, specs,
		network.WithLogger(log),
		network.WithRecoveryDelay(cfg.RecoveryDelay),
		network.WithRouterOptions(func(d id.Domain) []router.Option {
			exec := executor.New(executor.WithLogger(log))
			params := executor.NewParameterStore()
			// Registration on a fresh registry cannot collide.
			_ = exec.Register(id.MustParseAddress("0x9a"), params.Handle)
			return []router.Option{
				router.WithExecutor(exec),
				router.WithMetrics(m),
				router.WithAuditPublisher(events),
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("deploy: %w", err)
	}

	jwt := jwttoken.NewJWTService(cfg.JWTSigningKey, "govnet", "govnet-router")
	mux := chi.NewRouter()
	mux.Use(request.RequestID)
	mux.Use(requesttime.Middleware)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	for _, s := range specs {
		h := handler.New(net.Router(s.Domain), log.With("domain", s.Domain), handler.WithAuditLister(events))
		mux.Route("/domains/"+s.Domain.String(), func(r chi.Router) {
			h.Register(r, auth.RequireCaller(jwt, log), admin.RequireAdminToken(cfg.AdminToken, log))
		})
		token, err := jwt.GenerateCallerToken(s.Governor, 24*time.Hour)
		if err != nil {
			return err
		}
		log.Info("router deployed",
			"domain", s.Domain,
			"address", s.Address.String(),
			"governor", s.Governor.String(),
			"recovery_manager", s.RecoveryManager.String(),
			"governor_token", token,
		)
	}

	srv := httpserver.New(cfg.Addr, mux)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting devnet", "addr", cfg.Addr, "domains", len(specs))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
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
		if err := net.Fabric.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	return g.Wait()
}
