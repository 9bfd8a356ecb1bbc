// internal/ledgerserver/server.go
package ledgerserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rovshanmuradov/dogenode/internal/ledger"
	"github.com/rovshanmuradov/dogenode/internal/logging"
	"github.com/rovshanmuradov/dogenode/internal/wallet"
	"go.uber.org/zap"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
)

type Server struct {
	svc    *Service
	router *gin.Engine
	srv    *http.Server
}

func NewServer(addr string, corsOrigins []string, svc *Service) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	if len(corsOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  corsOrigins,
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        5 * time.Minute,
		}))
	}

	s := &Server{svc: svc, router: router}

	router.GET("/health", s.health)
	api := router.Group("/api")
	api.GET("/users/:userId/balance", s.balance)
	api.GET("/users/:userId/transactions", s.transactions)
	api.POST("/earnings", s.earning)
	api.POST("/withdrawals/estimate", s.estimate)
	api.POST("/withdrawals", s.withdraw)
	api.GET("/withdrawals/:id", s.withdrawalStatus)
	api.GET("/price", s.price)

	s.srv = &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	logging.Info("Ledger listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func respond(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, ledger.Response{Success: true, Data: data})
}

func respondError(c *gin.Context, err error) {
	var verr *wallet.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, ledger.Response{Error: verr.Message})
	case errors.Is(err, ErrInsufficientBalance):
		c.JSON(http.StatusBadRequest, ledger.Response{Error: err.Error()})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, ledger.Response{Error: err.Error()})
	default:
		logging.Error("Ledger request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ledger.Response{Error: "internal error"})
	}
}

func (s *Server) health(c *gin.Context) {
	dbUp := s.svc.Ping(c.Request.Context()) == nil
	status, code := "ok", http.StatusOK
	if !dbUp {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, ledger.Health{Success: dbUp, Status: status, Services: map[string]bool{"database": dbUp}})
}

func (s *Server) balance(c *gin.Context) {
	b, err := s.svc.Balance(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, b)
}

func (s *Server) transactions(c *gin.Context) {
	limit := defaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ledger.Response{Error: "limit must be a positive integer"})
			return
		}
		if n > maxLimit {
			n = maxLimit
		}
		limit = n
	}
	txs, err := s.svc.Transactions(c.Request.Context(), c.Param("userId"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, ledger.TransactionList{Transactions: txs})
}

func (s *Server) earning(c *gin.Context) {
	var req ledger.EarningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ledger.Response{Error: err.Error()})
		return
	}
	receipt, err := s.svc.Credit(c.Request.Context(), req.UserID, req.Amount, req.Source)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, receipt)
}

func (s *Server) estimate(c *gin.Context) {
	var req ledger.EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ledger.Response{Error: err.Error()})
		return
	}
	est, err := s.svc.Estimate(req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, est)
}

func (s *Server) withdraw(c *gin.Context) {
	var req ledger.WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ledger.Response{Error: err.Error()})
		return
	}
	receipt, err := s.svc.RequestWithdrawal(c.Request.Context(), req.UserID, req.Address, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, receipt)
}

func (s *Server) withdrawalStatus(c *gin.Context) {
	st, err := s.svc.WithdrawalStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, st)
}

func (s *Server) price(c *gin.Context) {
	respond(c, ledger.Price{Price: s.svc.Price()})
}
