// Package service hosts the backend's network surfaces: health checks,
// prometheus metrics and the operator WebSocket endpoint.
package service

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/ethereum/go-ethereum/log"

	"github.com/project-chip/certification-tool-backend-sub001/metrics"
	"github.com/project-chip/certification-tool-backend-sub001/socket"
)

const (
	HealthzHost = "0.0.0.0"
	HealthzPort = "8080"

	MetricsHost = "0.0.0.0"
	MetricsPort = "7300"
)

// Config holds service configuration.
type Config struct {
	Hub           *socket.Hub
	SocketAddress string
	VideoAddress  string
}

type Service struct {
	Healthz *HealthzServer
	Metrics *MetricsServer
	Socket  *SocketServer
}

func New(cfg Config) *Service {
	s := &Service{
		Healthz: &HealthzServer{},
		Metrics: &MetricsServer{},
		Socket: &SocketServer{
			hub:       cfg.Hub,
			addr:      cfg.SocketAddress,
			videoAddr: cfg.VideoAddress,
		},
	}
	return s
}

func (s *Service) Start(ctx context.Context) {
	log.Info("service starting")

	go func() {
		addr := net.JoinHostPort(HealthzHost, HealthzPort)
		log.Info("starting healthz server", "addr", addr)
		if err := s.Healthz.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("error starting healthz server", "err", err)
			metrics.RecordError("healthz_server")
		}
	}()

	go func() {
		addr := net.JoinHostPort(MetricsHost, MetricsPort)
		log.Info("starting metrics server", "addr", addr)
		if err := s.Metrics.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("error starting metrics server", "err", err)
			metrics.RecordError("metrics_server")
		}
	}()

	go func() {
		log.Info("starting socket server", "addr", s.Socket.addr)
		if err := s.Socket.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("error starting socket server", "err", err)
			metrics.RecordError("socket_server")
		}
	}()

	log.Info("service started")
}

func (s *Service) Shutdown() {
	log.Info("service shutting down")

	_ = s.Healthz.Shutdown()
	log.Info("healthz stopped")

	_ = s.Metrics.Shutdown()
	log.Info("metrics stopped")

	_ = s.Socket.Shutdown()
	log.Info("socket stopped")

	log.Info("service stopped")
}
