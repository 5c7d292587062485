package httpapi

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// Payment handlers

// @Summary Payee key
// @Tags payment
// @Produce json
// @Success 200 {object} payment.Payee
// @Router /api/payment-key [get]
func (s *Server) paymentKey(c *gin.Context) {
	c.JSON(http.StatusOK, s.payments.PaymentKey())
}

// @Summary Ad-hoc payment code
// @Description Amount accepts "10.50" or "10,50"; transaction id defaults to PIX+millis.
// @Tags payment
// @Produce json
// @Param amount path string true "Amount"
// @Param transactionId path string false "Transaction id (max 25 chars)"
// @Success 200 {object} domain.PaymentCode
// @Failure 400 {object} map[string]string
// @Router /api/payment-code/{amount}/{transactionId} [get]
func (s *Server) paymentCode(c *gin.Context) {
	code, err := s.payments.Generate(c, c.Param("amount"), c.Param("transactionId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, code)
}

// Push handlers

// @Summary VAPID public key
// @Tags push
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/push/public-key [get]
func (s *Server) pushPublicKey(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"publicKey": s.subscriptions.PublicKey()})
}

// @Summary Register push subscription
// @Tags push
// @Accept json
// @Produce json
// @Param input body domain.PushSubscription true "Subscription"
// @Success 201 {object} map[string]bool
// @Success 200 {object} map[string]bool
// @Failure 400 {object} map[string]string
// @Router /api/push/subscribe [post]
func (s *Server) subscribe(c *gin.Context) {
	var req domain.PushSubscription
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	added, err := s.subscriptions.Subscribe(c, req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"ok": true, "added": added})
}

type unsubscribeReq struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// @Summary Remove push subscription
// @Tags push
// @Accept json
// @Produce json
// @Param input body unsubscribeReq true "Endpoint"
// @Success 200 {object} map[string]bool
// @Router /api/push/unsubscribe [post]
func (s *Server) unsubscribe(c *gin.Context) {
	var req unsubscribeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	removed, err := s.subscriptions.Unsubscribe(c, req.Endpoint)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "removed": removed})
}

// Backup handlers

// @Summary Download backup
// @Tags backup
// @Produce json
// @Param token query string true "Admin token"
// @Success 200 {object} domain.Document
// @Failure 403 {object} map[string]string
// @Router /api/backup [get]
func (s *Server) exportBackup(c *gin.Context) {
	b := s.backup.Export(c)
	data, err := repository.Encode(b.Document)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+b.Filename)
	c.Data(http.StatusOK, "application/json", data)
}

// @Summary Dump current document
// @Tags backup
// @Produce json
// @Param token query string true "Admin token"
// @Success 200 {object} domain.Document
// @Failure 403 {object} map[string]string
// @Router /api/debug/db [get]
func (s *Server) debugDB(c *gin.Context) {
	c.JSON(http.StatusOK, s.backup.Export(c).Document)
}

// @Summary Restore backup
// @Description Body is the document or {"db": document}. The current file is copied to .bak-<ts> first.
// @Tags backup
// @Accept json
// @Produce json
// @Param token query string true "Admin token"
// @Param mode query string false "replace (default) or merge"
// @Success 200 {object} service.RestoreResult
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /api/restore [post]
func (s *Server) restore(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read body"})
		return
	}
	res, err := s.backup.Restore(c, raw, c.Query("mode"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":     true,
		"mode":   res.Mode,
		"counts": res.Counts,
		"backup": res.Backup,
	})
}
