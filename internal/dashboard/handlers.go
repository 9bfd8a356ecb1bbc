// internal/dashboard/handlers.go
package dashboard

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rovshanmuradov/dogenode/internal/ledger"
	"github.com/rovshanmuradov/dogenode/internal/logging"
	"github.com/rovshanmuradov/dogenode/internal/session"
	"github.com/rovshanmuradov/dogenode/internal/wallet"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultTransactionLimit = 50

type connectRequest struct {
	Address  string `json:"address" binding:"required"`
	Provider string `json:"provider"`
}

type withdrawalRequest struct {
	Address string          `json:"address" binding:"required"`
	Amount  decimal.Decimal `json:"amount"`
}

type estimateRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type referralRequest struct {
	Code string `json:"code" binding:"required"`
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, ledger.Response{Success: true, Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, ledger.Response{Success: false, Error: message})
}

// writeError maps engine errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var (
		verr *wallet.ValidationError
		perr *session.PreconditionError
	)
	switch {
	case errors.As(err, &verr):
		fail(c, http.StatusBadRequest, verr.Error())
	case errors.As(err, &perr):
		fail(c, http.StatusConflict, perr.Error())
	case ledger.IsUnavailable(err):
		fail(c, http.StatusBadGateway, err.Error())
	default:
		logging.Error("Dashboard request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		fail(c, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) getSnapshot(c *gin.Context) {
	snap, err := s.engine.Snapshot(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, snap)
}

func (s *Server) connectWallet(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	ref, err := s.engine.ConnectWallet(c.Request.Context(), req.Provider, req.Address)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, ref)
}

func (s *Server) disconnectWallet(c *gin.Context) {
	if err := s.engine.DisconnectWallet(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	ok(c, nil)
}

func (s *Server) startSession(c *gin.Context) {
	sess, err := s.engine.Start(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, sess)
}

func (s *Server) stopSession(c *gin.Context) {
	if err := s.engine.StopSession(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	ok(c, nil)
}

func (s *Server) sync(c *gin.Context) {
	if err := s.engine.SyncWithBackend(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	s.getSnapshot(c)
}

func (s *Server) listTransactions(c *gin.Context) {
	limit := defaultTransactionLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			fail(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	txs, remote, err := s.engine.LoadTransactions(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, gin.H{"transactions": txs, "remote": remote})
}

func (s *Server) estimateWithdrawal(c *gin.Context) {
	var req estimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	est, err := s.engine.EstimateWithdrawal(c.Request.Context(), req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, est)
}

func (s *Server) requestWithdrawal(c *gin.Context) {
	var req withdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	tx, err := s.engine.RequestWithdrawal(c.Request.Context(), req.Address, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, tx)
}

func (s *Server) applyReferral(c *gin.Context) {
	var req referralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	refs, err := s.engine.ApplyReferral(c.Request.Context(), req.Code)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, refs)
}

func (s *Server) referralLink(c *gin.Context) {
	base := c.DefaultQuery("base", "https://dogenode.app/")
	link, err := s.engine.ReferralLink(c.Request.Context(), base)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, gin.H{"link": link})
}
