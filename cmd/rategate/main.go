package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rategate/rategate/internal/auth"
	"github.com/rategate/rategate/internal/config"
	"github.com/rategate/rategate/internal/gateway"
	"github.com/rategate/rategate/internal/obs"
	"github.com/rategate/rategate/internal/proxy"
	"github.com/rategate/rategate/internal/routing"
	"github.com/rategate/rategate/ratelimit"
)

func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := obs.SetupLogger(cfg.Observability.LogLevel)

	promReg := prometheus.NewRegistry()
	metrics := obs.NewMetrics(promReg)

	// routes
	router := routing.New()
	for _, rc := range cfg.Routes {
		u, err := url.Parse(rc.Upstream.URL)
		if err != nil {
			logger.Fatal().Err(err).Str("route", rc.ID).Msg("bad upstream url")
		}
		methods := make(map[string]struct{}, len(rc.Match.Methods))
		for _, m := range rc.Match.Methods {
			methods[strings.ToUpper(m)] = struct{}{}
		}
		router.Add(&routing.Route{
			ID:      rc.ID,
			Methods: methods,
			Prefix:  rc.Match.PathPrefix,
			UpURL:   u,
			Timeout: time.Duration(rc.Upstream.TimeoutMS) * time.Millisecond,
		})
	}

	// limiters: default policy plus per-route overrides
	defReg, err := ratelimit.NewRegistry(cfg.Limits.Default.Rate, cfg.Limits.Default.Period(), cfg.Limits.MaxKeys)
	if err != nil {
		logger.Fatal().Err(err).Msg("default limiter")
	}
	limiters := &gateway.Limiters{
		Default:  defReg,
		PerRoute: make(map[string]*ratelimit.Registry),
	}
	for _, rc := range cfg.Routes {
		if rc.Limit.Rate <= 0 || rc.Limit.PeriodMS <= 0 {
			continue
		}
		reg, err := ratelimit.NewRegistry(rc.Limit.Rate, rc.Limit.Period(), cfg.Limits.MaxKeys)
		if err != nil {
			logger.Fatal().Err(err).Str("route", rc.ID).Msg("route limiter")
		}
		limiters.PerRoute[rc.ID] = reg
	}

	// auth
	pairs := map[string]string{} // secret -> keyID
	for _, k := range cfg.Auth.Keys {
		if k.Secret != "" && k.ID != "" {
			pairs[k.Secret] = k.ID
		}
	}
	authStore := auth.NewStatic(cfg.Auth.Header, pairs)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(version))
	})
	mux.Handle(cfg.Observability.PrometheusPath, promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	mux.Handle("/", proxy.Handler(proxy.NewHTTPTransport()))

	skip := map[string]struct{}{
		"/health":                        {},
		"/version":                       {},
		cfg.Observability.PrometheusPath: {},
	}

	handler := gateway.Chain(
		mux,
		obs.Logger(logger),
		metrics.Middleware(skip),
		gateway.BodyLimit(int(cfg.Server.MaxBody())),
		authStore.Middleware(skip),
		gateway.RouteMatcher(router, skip),
		gateway.RateLimit(limiters, cfg.Limits.RefundServerErrors, skip, metrics.Hooks()),
	)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout(),
		IdleTimeout:       cfg.Server.IdleTimeout(),
		ReadTimeout:       cfg.Server.ReadTimeout(),
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("bye")
}
