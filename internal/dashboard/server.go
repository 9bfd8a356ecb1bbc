// internal/dashboard/server.go
package dashboard

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rovshanmuradov/dogenode/internal/events"
	"github.com/rovshanmuradov/dogenode/internal/ledger"
	"github.com/rovshanmuradov/dogenode/internal/logging"
	"github.com/rovshanmuradov/dogenode/internal/models"
	"github.com/rovshanmuradov/dogenode/internal/session"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Controller is the part of the session engine the dashboard drives.
type Controller interface {
	Snapshot(ctx context.Context) (*session.Snapshot, error)
	ConnectWallet(ctx context.Context, provider, address string) (*models.WalletRef, error)
	DisconnectWallet(ctx context.Context) error
	Start(ctx context.Context) (models.Session, error)
	StopSession(ctx context.Context) error
	SyncWithBackend(ctx context.Context) error
	LoadTransactions(ctx context.Context, limit int) ([]models.Transaction, bool, error)
	EstimateWithdrawal(ctx context.Context, amount decimal.Decimal) (*ledger.Estimate, error)
	RequestWithdrawal(ctx context.Context, address string, amount decimal.Decimal) (*models.Transaction, error)
	ApplyReferral(ctx context.Context, code string) (models.Referrals, error)
	ReferralLink(ctx context.Context, base string) (string, error)
}

// Server is the local dashboard: a JSON API plus a websocket event feed.
type Server struct {
	engine Controller
	hub    *events.Hub
	router *gin.Engine
	srv    *http.Server
}

func New(addr string, engine Controller, hub *events.Hub) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{engine: engine, hub: hub}
	s.router = gin.New()
	s.router.Use(gin.Recovery(), requestLogger())
	s.registerRoutes()

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api")
	api.GET("/snapshot", s.getSnapshot)
	api.POST("/wallet", s.connectWallet)
	api.DELETE("/wallet", s.disconnectWallet)
	api.POST("/session/start", s.startSession)
	api.POST("/session/stop", s.stopSession)
	api.POST("/sync", s.sync)
	api.GET("/transactions", s.listTransactions)
	api.POST("/withdrawals/estimate", s.estimateWithdrawal)
	api.POST("/withdrawals", s.requestWithdrawal)
	api.POST("/referral", s.applyReferral)
	api.GET("/referral/link", s.referralLink)

	s.router.GET("/ws", s.serveWS)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	logging.Info("Dashboard listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Debug("Dashboard request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
