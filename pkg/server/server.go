// Package server is the dashboard's HTTP API.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pario-ai/tokenboard/pkg/billing"
	"github.com/pario-ai/tokenboard/pkg/config"
	"github.com/pario-ai/tokenboard/pkg/ingest"
	"github.com/pario-ai/tokenboard/pkg/metrics"
	"github.com/pario-ai/tokenboard/pkg/models"
	"github.com/pario-ai/tokenboard/pkg/stats"
	"github.com/pario-ai/tokenboard/pkg/store"
)

// HeaderAPIKey carries the shared sync secret.
const HeaderAPIKey = "x-api-key"

const maxSyncBody = 10 << 20

// Server serves the sync, stats and operational routes.
type Server struct {
	cfg     *config.Config
	store   store.Store
	ingest  *ingest.Service
	stats   *stats.Service
	metrics *metrics.Metrics
	logger  *zap.Logger
	engine  *gin.Engine
}

// New creates a Server wired with all dependencies. m may be nil.
func New(cfg *config.Config, s store.Store, in *ingest.Service, st *stats.Service, m *metrics.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &Server{
		cfg:     cfg,
		store:   s,
		ingest:  in,
		stats:   st,
		metrics: m,
		logger:  logger,
	}
	srv.engine = srv.routes()
	return srv
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(s.logger))
	if s.metrics != nil {
		r.Use(s.metrics.Middleware())
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	syncHandlers := []gin.HandlerFunc{}
	if rl := s.cfg.RateLimit; rl.PerSecond > 0 {
		syncHandlers = append(syncHandlers, newIPLimiter(rl.PerSecond, rl.Burst).middleware())
	}
	syncHandlers = append(syncHandlers, s.handleSync)

	r.POST("/api/usage-sync", syncHandlers...)
	r.GET("/api/usage-stats", s.handleStats)
	r.GET("/api/config", s.handleConfig)
	r.GET("/healthz", s.handleHealth)
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("tokenboard listening", zap.String("addr", s.cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// authorize checks the API key. It must run before anything touches the database.
func (s *Server) authorize(c *gin.Context) bool {
	if s.cfg.APIKey == "" {
		s.logger.Error("sync rejected: API key not configured")
		writeJSONError(c, http.StatusInternalServerError, "server misconfigured")
		return false
	}
	got := c.GetHeader(HeaderAPIKey)
	if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.APIKey)) != 1 {
		writeJSONError(c, http.StatusUnauthorized, "unauthorized")
		return false
	}
	return true
}

func (s *Server) handleSync(c *gin.Context) {
	if !s.authorize(c) {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxSyncBody))
	if err != nil {
		writeJSONError(c, http.StatusBadRequest, "failed to read request body")
		return
	}

	req, err := ingest.DecodeRequest(body)
	if err != nil {
		writeJSONError(c, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.ingest.Sync(c.Request.Context(), req, ingest.Meta{
		RequestID: requestIDFrom(c),
		ClientIP:  c.ClientIP(),
	})
	if err != nil {
		if errors.Is(err, ingest.ErrInvalidRequest) {
			writeJSONError(c, http.StatusBadRequest, err.Error())
			return
		}
		_ = c.Error(err)
		writeJSONError(c, http.StatusInternalServerError, "failed to save device")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStats(c *gin.Context) {
	resp, err := s.stats.Compose(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		if errors.Is(err, stats.ErrMisconfigured) {
			msg := "invalid billing cycle start date"
			if errors.Is(err, billing.ErrNoCycleStart) {
				msg = "CLAUDE_BILLING_CYCLE_START_DATE is not configured"
			}
			writeJSONError(c, http.StatusInternalServerError, msg)
			return
		}
		writeJSONError(c, http.StatusInternalServerError, "failed to fetch usage stats")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, models.Subscription{
		Plan:      billing.LookupPlan(s.cfg.Billing.Plan),
		OwnerName: s.cfg.Dashboard.OwnerName,
		AppURL:    s.cfg.Dashboard.AppURL,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func writeJSONError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}
