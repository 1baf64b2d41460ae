package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zhulik/pal"

	"murmur/internal/config"
)

// HTTPServer exposes /metrics and /health on Config.MetricsAddr.
type HTTPServer struct {
	Logger *slog.Logger
	Config *config.Config

	srv *http.Server
}

func (s *HTTPServer) Init(ctx context.Context) error {
	s.Logger = s.Logger.With("component", "metrics.HTTPServer")

	p := pal.FromContext(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := p.HealthCheck(r.Context()); err != nil {
			s.Logger.Error("Health check failed", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	s.srv = &http.Server{
		Addr:              s.Config.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: time.Second,
	}
	return nil
}

// RunConfig keeps the server from holding the container open on its own.
func (s *HTTPServer) RunConfig() pal.RunConfig {
	return pal.RunConfig{
		Wait: false,
	}
}

func (s *HTTPServer) Run(_ context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.Logger.Info("Starting metrics server", "addr", ln.Addr().String())

	err = s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
