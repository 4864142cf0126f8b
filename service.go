package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/plex-offload/plex-offload/internal/config"
	"github.com/plex-offload/plex-offload/internal/metrics"
	"github.com/plex-offload/plex-offload/internal/proxy"
	"github.com/plex-offload/plex-offload/internal/server"
)

// service 持有一次进程生命周期内的全部组件。
type service struct {
	cfg           *config.Config
	logger        *logrus.Logger
	state         *proxy.State
	app           *fiber.App
	metricsServer *http.Server
}

func newService(cfg *config.Config, logger *logrus.Logger) (*service, error) {
	targets, err := server.NewTargets(cfg)
	if err != nil {
		return nil, fmt.Errorf("解析上游地址失败: %w", err)
	}
	state := proxy.NewState(targets)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)
	m.ObserveCaches(state.Tokens, state.Media)

	handler := proxy.NewHandler(proxy.NewStreamer(server.NewUpstreamClient()), state, logger, m)
	app, err := server.NewApp(server.AppOptions{
		Logger:   logger,
		Metadata: server.ProxyHandlerFunc(handler.HandleMetadata),
		Fallback: server.ProxyHandlerFunc(handler.HandleFallback),
	})
	if err != nil {
		return nil, err
	}

	svc := &service{
		cfg:    cfg,
		logger: logger,
		state:  state,
		app:    app,
	}
	if cfg.MetricsEnabled() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(registry))
		svc.metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return svc, nil
}

// Run 启动代理与（可选的）指标监听，直到 ctx 结束或任一监听失败。
func (s *service) Run(ctx context.Context) error {
	group, gctx := errgroup.WithContext(ctx)
	timeout := s.cfg.ShutdownTimeout.DurationValue()

	group.Go(func() error {
		s.logger.WithFields(logrus.Fields{
			"action": "listen",
			"port":   s.cfg.ListenPort,
		}).Info("Fiber 服务启动")
		return s.app.Listen(fmt.Sprintf(":%d", s.cfg.ListenPort), fiber.ListenConfig{
			GracefulContext:       gctx,
			ShutdownTimeout:       timeout,
			DisableStartupMessage: true,
		})
	})

	if s.metricsServer != nil {
		srv := s.metricsServer
		group.Go(func() error {
			s.logger.WithFields(logrus.Fields{
				"action": "listen",
				"port":   s.cfg.MetricsPort,
			}).Info("指标服务启动")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics listener: %w", err)
			}
			return nil
		})
		group.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return group.Wait()
}
