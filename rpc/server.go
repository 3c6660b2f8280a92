package rpc

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"pcnchain/core/types"
	"pcnchain/native/channels"
	"pcnchain/native/router"
)

const (
	moduleName      = "pcn-query"
	shutdownTimeout = 10 * time.Second
)

// ChannelQuerier resolves channel records and network statistics.
type ChannelQuerier interface {
	Channel(id uint64) (*types.Channel, error)
	StatusLabel(id uint64) (string, error)
	Proof(id uint64, side [20]byte) (*types.BalanceProof, error)
	Stats() (*channels.Stats, error)
}

// HTLCQuerier resolves HTLC records.
type HTLCQuerier interface {
	Get(id uint64) (*types.HTLC, error)
	Pending() ([]*types.HTLC, error)
}

// ParticipantQuerier resolves registry records.
type ParticipantQuerier interface {
	Participant(addr [20]byte) (*types.Participant, error)
}

// RouteFinder answers reachability queries.
type RouteFinder interface {
	FindRoute(sender, receiver [20]byte, amount *big.Int) (*router.Route, error)
}

// Backends bundles the engines the query API reads from.
type Backends struct {
	Channels     ChannelQuerier
	HTLCs        HTLCQuerier
	Participants ParticipantQuerier
	Routes       RouteFinder
}

// Config tunes the HTTP listener and the per-client rate limit.
type Config struct {
	ListenAddress     string
	RequestsPerMinute float64
	Burst             int
	ReadTimeout       time.Duration
}

// Server exposes a read-only JSON view of the network.
type Server struct {
	cfg      Config
	backends Backends
	logger   *slog.Logger
	limiter  *rateLimiter
	handler  http.Handler
}

func NewServer(cfg Config, backends Backends, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	s := &Server{
		cfg:      cfg,
		backends: backends,
		logger:   logger,
	}
	if cfg.RequestsPerMinute > 0 {
		s.limiter = newRateLimiter(cfg.RequestsPerMinute, cfg.Burst)
	}
	s.handler = s.routes()
	return s
}

// Handler returns the instrumented HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(api chi.Router) {
		if s.limiter != nil {
			api.Use(s.limiter.middleware)
		}
		api.Get("/channels/{id}", s.instrument("channel", s.handleChannel))
		api.Get("/channels/{id}/status", s.instrument("channel_status", s.handleChannelStatus))
		api.Get("/channels/{id}/proofs/{participant}", s.instrument("channel_proof", s.handleProof))
		api.Get("/htlcs/pending", s.instrument("htlcs_pending", s.handlePendingHTLCs))
		api.Get("/htlcs/{id}", s.instrument("htlc", s.handleHTLC))
		api.Get("/participants/{addr}", s.instrument("participant", s.handleParticipant))
		api.Get("/network/stats", s.instrument("network_stats", s.handleStats))
		api.Get("/routes", s.instrument("route", s.handleRoute))
	})
	return otelhttp.NewHandler(r, moduleName)
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      2 * s.cfg.ReadTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("query api listening", "address", listener.Addr().String())
		errCh <- srv.Serve(listener)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.logger.Info("query api stopped")
		return nil
	}
}
