package gateway

import (
	"errors"
	"net/http"
	"strconv"

	"roulette/auth"
	"roulette/domain/entities"
	"roulette/domain/services"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const identityKey = "identity"

type apiResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, apiResponse{Code: 0, Message: "ok", Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, apiResponse{Code: status, Message: message})
}

// NewRouter builds the HTTP surface: health, the websocket endpoint, player
// reads and the admin routes
func NewRouter(g *Gateway, verifier auth.IdentityVerifier, debug bool) *gin.Engine {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	handler := &HTTPHandler{gateway: g, verifier: verifier}
	handler.Register(router)
	return router
}

// HTTPHandler serves the REST routes
type HTTPHandler struct {
	gateway  *Gateway
	verifier auth.IdentityVerifier
}

// Register mounts every route on the router
func (h *HTTPHandler) Register(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/ws", func(c *gin.Context) {
		h.gateway.ServeWS(c.Writer, c.Request)
	})

	api := r.Group("/api")
	api.GET("/rounds/history", h.roundHistory)

	player := api.Group("", h.requireIdentity)
	player.GET("/me", h.me)
	player.GET("/wagers/mine", h.myWagers)
	player.GET("/balance/history", h.myBalanceHistory)

	admin := api.Group("/admin", h.requireIdentity, h.requireAdmin)
	admin.GET("/accounts", h.listAccounts)
	admin.GET("/stats", h.stats)
	admin.POST("/accounts/:id/balance", h.adjustBalance)
	admin.POST("/accounts/:id/admin", h.grantAdmin)
	admin.GET("/accounts/:id/wagers", h.accountWagers)
}

func (h *HTTPHandler) health(c *gin.Context) {
	snapshot := h.gateway.engine.Snapshot()
	body := gin.H{
		"status":      "ok",
		"phase":       snapshot.Phase,
		"roundId":     snapshot.RoundID,
		"online":      h.gateway.hub.OnlineCount(),
		"connections": h.gateway.hub.ConnectionCount(),
	}
	if h.gateway.engine.Halted() {
		body["status"] = "halted"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

func (h *HTTPHandler) requireIdentity(c *gin.Context) {
	token := auth.BearerToken(c.GetHeader("Authorization"))
	if token == "" {
		fail(c, http.StatusUnauthorized, "missing bearer token")
		return
	}
	identity, err := h.verifier.Verify(token)
	if err != nil {
		fail(c, http.StatusUnauthorized, "invalid token")
		return
	}
	c.Set(identityKey, identity)
	c.Next()
}

func (h *HTTPHandler) requireAdmin(c *gin.Context) {
	identity := identityFrom(c)
	account, err := h.gateway.accounts.GetAccount(c.Request.Context(), identity.AccountID)
	if err != nil {
		if errors.Is(err, entities.ErrAccountNotFound) {
			fail(c, http.StatusForbidden, "admin role required")
			return
		}
		log.WithError(err).Error("Failed to load account for admin check")
		fail(c, http.StatusInternalServerError, "account unavailable")
		return
	}
	if !account.IsAdmin {
		fail(c, http.StatusForbidden, "admin role required")
		return
	}
	c.Next()
}

func identityFrom(c *gin.Context) auth.Identity {
	value, _ := c.Get(identityKey)
	identity, _ := value.(auth.Identity)
	return identity
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func pathAccountID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "invalid account id")
		return 0, false
	}
	return id, true
}

func (h *HTTPHandler) roundHistory(c *gin.Context) {
	rounds, err := h.gateway.accounts.RecentRounds(c.Request.Context(), queryInt(c, "limit", 20))
	if err != nil {
		log.WithError(err).Error("Failed to load round history")
		fail(c, http.StatusInternalServerError, "history unavailable")
		return
	}
	ok(c, rounds)
}

func (h *HTTPHandler) me(c *gin.Context) {
	identity := identityFrom(c)
	account, err := h.gateway.accounts.GetOrCreateAccount(c.Request.Context(), identity.AccountID, identity.Username)
	if err != nil {
		log.WithError(err).Error("Failed to load account")
		fail(c, http.StatusInternalServerError, "account unavailable")
		return
	}
	ok(c, account)
}

func (h *HTTPHandler) myWagers(c *gin.Context) {
	identity := identityFrom(c)
	wagers, err := h.gateway.accounts.RecentWagers(c.Request.Context(), identity.AccountID, queryInt(c, "limit", 50))
	if err != nil {
		log.WithError(err).Error("Failed to load wagers")
		fail(c, http.StatusInternalServerError, "wagers unavailable")
		return
	}
	ok(c, wagers)
}

func (h *HTTPHandler) myBalanceHistory(c *gin.Context) {
	identity := identityFrom(c)
	history, err := h.gateway.accounts.BalanceHistory(c.Request.Context(), identity.AccountID, queryInt(c, "limit", 50))
	if err != nil {
		log.WithError(err).Error("Failed to load balance history")
		fail(c, http.StatusInternalServerError, "history unavailable")
		return
	}
	ok(c, history)
}

func (h *HTTPHandler) listAccounts(c *gin.Context) {
	accounts, err := h.gateway.accounts.ListAccounts(c.Request.Context(), queryInt(c, "limit", 100), queryInt(c, "offset", 0))
	if err != nil {
		log.WithError(err).Error("Failed to list accounts")
		fail(c, http.StatusInternalServerError, "accounts unavailable")
		return
	}
	ok(c, accounts)
}

func (h *HTTPHandler) stats(c *gin.Context) {
	stats, err := h.gateway.accounts.Stats(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Failed to load stats")
		fail(c, http.StatusInternalServerError, "stats unavailable")
		return
	}
	ok(c, stats)
}

type adjustBalanceRequest struct {
	Amount int64 `json:"amount"`
}

func (h *HTTPHandler) adjustBalance(c *gin.Context) {
	accountID, valid := pathAccountID(c)
	if !valid {
		return
	}
	var req adjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "amount must be a whole number")
		return
	}

	admin := identityFrom(c)
	account, err := h.gateway.accounts.AdjustBalance(c.Request.Context(), accountID, req.Amount, admin.AccountID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrZeroAdjustment):
			fail(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, entities.ErrAccountNotFound):
			fail(c, http.StatusNotFound, "account not found")
		case errors.Is(err, entities.ErrInsufficientFunds):
			fail(c, http.StatusConflict, "balance cannot go below zero")
		default:
			log.WithError(err).Error("Failed to adjust balance")
			fail(c, http.StatusInternalServerError, "adjustment failed")
		}
		return
	}

	h.gateway.BalanceUpdated(account.ID, account.Balance)
	ok(c, account)
}

func (h *HTTPHandler) grantAdmin(c *gin.Context) {
	accountID, valid := pathAccountID(c)
	if !valid {
		return
	}
	if err := h.gateway.accounts.GrantAdmin(c.Request.Context(), accountID); err != nil {
		if errors.Is(err, entities.ErrAccountNotFound) {
			fail(c, http.StatusNotFound, "account not found")
			return
		}
		log.WithError(err).Error("Failed to grant admin")
		fail(c, http.StatusInternalServerError, "grant failed")
		return
	}
	ok(c, gin.H{"accountId": accountID, "isAdmin": true})
}

func (h *HTTPHandler) accountWagers(c *gin.Context) {
	accountID, valid := pathAccountID(c)
	if !valid {
		return
	}
	wagers, err := h.gateway.accounts.RecentWagers(c.Request.Context(), accountID, queryInt(c, "limit", 50))
	if err != nil {
		log.WithError(err).Error("Failed to load wagers")
		fail(c, http.StatusInternalServerError, "wagers unavailable")
		return
	}
	ok(c, wagers)
}
