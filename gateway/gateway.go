package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"roulette/application"
	"roulette/application/dto"
	"roulette/auth"
	"roulette/domain/entities"

	log "github.com/sirupsen/logrus"
	"nhooyr.io/websocket"
)

// RoundEngine is the part of the round engine the gateway drives
type RoundEngine interface {
	SubmitWager(ctx context.Context, request entities.WagerRequest) (*entities.Wager, int64, error)
	Snapshot() dto.RoundSnapshotDTO
	Halted() bool
}

// ConnectionMetrics records connection activity
type ConnectionMetrics interface {
	RecordConnectionOpened(authenticated bool)
	RecordConnectionClosed(authenticated bool)
}

type noopConnectionMetrics struct{}

func (noopConnectionMetrics) RecordConnectionOpened(bool) {}
func (noopConnectionMetrics) RecordConnectionClosed(bool) {}

// Gateway owns the websocket connections. It resolves identities, forwards
// requests to the round engine and fans engine notifications out.
type Gateway struct {
	engine         RoundEngine
	accounts       application.AccountHandler
	verifier       auth.IdentityVerifier
	hub            *Hub
	metrics        ConnectionMetrics
	originPatterns []string
}

// Option configures a Gateway
type Option func(*Gateway)

// WithMetrics records connection metrics
func WithMetrics(metrics ConnectionMetrics) Option {
	return func(g *Gateway) {
		if metrics != nil {
			g.metrics = metrics
		}
	}
}

// WithOriginPatterns allows cross-origin websocket upgrades from the given hosts
func WithOriginPatterns(patterns ...string) Option {
	return func(g *Gateway) {
		g.originPatterns = append(g.originPatterns, patterns...)
	}
}

// New creates a gateway. The engine may be attached later with SetEngine
// because the engine needs the gateway as its listener.
func New(engine RoundEngine, accounts application.AccountHandler, verifier auth.IdentityVerifier, opts ...Option) *Gateway {
	g := &Gateway{
		engine:   engine,
		accounts: accounts,
		verifier: verifier,
		hub:      NewHub(),
		metrics:  noopConnectionMetrics{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SetEngine attaches the round engine. It must be called before serving.
func (g *Gateway) SetEngine(engine RoundEngine) {
	g.engine = engine
}

// Hub exposes the connection registry
func (g *Gateway) Hub() *Hub {
	return g.hub
}

// ServeWS upgrades the request and serves the connection until it closes.
// A missing or invalid token yields an observe-only guest connection.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity := g.resolveIdentity(r)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: g.originPatterns,
	})
	if err != nil {
		log.WithError(err).Warn("Failed to accept websocket connection")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var balance int64
	if identity.AccountID != 0 {
		account, err := g.accounts.GetOrCreateAccount(ctx, identity.AccountID, identity.Username)
		if err != nil {
			log.WithField("accountID", identity.AccountID).WithError(err).Error("Failed to load account for connection")
			conn.Close(websocket.StatusInternalError, "account unavailable")
			return
		}
		balance = account.Balance
	}

	client := newClient(identity, func() {
		conn.Close(websocket.StatusPolicyViolation, "connection too slow to keep up with messages")
	})

	// The snapshot is queued before the client can receive broadcasts
	g.sendTo(client, TypeStateSnapshot, g.engine.Snapshot())
	if client.Authenticated() {
		g.sendTo(client, TypeBalanceUpdate, balancePayload{Balance: balance})
	}

	g.hub.Register(client)
	g.metrics.RecordConnectionOpened(client.Authenticated())
	defer g.disconnect(client)

	logger := log.WithFields(log.Fields{
		"connectionID": client.ID(),
		"accountID":    client.AccountID(),
	})
	logger.Debug("Connection opened")

	g.broadcastOnlineCount()

	go func() {
		if err := client.writePump(ctx, conn); err != nil && ctx.Err() == nil {
			logger.WithError(err).Debug("Write pump stopped")
		}
		cancel()
	}()

	g.readLoop(ctx, conn, client)

	conn.Close(websocket.StatusNormalClosure, "")
	logger.Debug("Connection closed")
}

func (g *Gateway) resolveIdentity(r *http.Request) auth.Identity {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		token = auth.BearerToken(r.Header.Get("Authorization"))
	}
	if token == "" || g.verifier == nil {
		return auth.Identity{}
	}

	identity, err := g.verifier.Verify(token)
	if err != nil {
		log.WithError(err).Debug("Token rejected, connecting as guest")
		return auth.Identity{}
	}
	return identity
}

func (g *Gateway) disconnect(client *Client) {
	if g.hub.Unregister(client) {
		g.metrics.RecordConnectionClosed(client.Authenticated())
		g.broadcastOnlineCount()
	}
}

func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn, client *Client) {
	for {
		messageType, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				log.WithField("connectionID", client.ID()).WithError(err).Debug("Read failed")
			}
			return
		}
		if messageType != websocket.MessageText {
			g.reject(client, ReasonBadRequest, "text messages only")
			continue
		}
		g.handleMessage(ctx, client, data)
	}
}

func (g *Gateway) handleMessage(ctx context.Context, client *Client, data []byte) {
	msg, err := decodeMessage(data)
	if err != nil {
		g.reject(client, ReasonBadRequest, err.Error())
		return
	}

	switch msg.Type {
	case TypeSubmitWager:
		g.handleSubmitWager(ctx, client, msg)
	case TypeRequestBalance:
		g.handleRequestBalance(ctx, client)
	default:
		g.reject(client, ReasonBadRequest, "unknown message type "+msg.Type)
	}
}

func (g *Gateway) handleSubmitWager(ctx context.Context, client *Client, msg Message) {
	// A guest is rejected before the payload is looked at
	if !client.Authenticated() {
		g.rejectWith(client, entities.Reject(entities.ReasonUnauthenticated, "sign in to place wagers"))
		return
	}

	request, err := parseSubmitWager(msg.Data)
	if err != nil {
		g.rejectWith(client, err)
		return
	}

	wager, balance, err := g.engine.SubmitWager(ctx, entities.WagerRequest{
		AccountID: client.AccountID(),
		Username:  client.identity.Username,
		Category:  request.Category,
		Amount:    request.Amount,
	})
	if err != nil {
		g.rejectWith(client, err)
		return
	}

	g.sendTo(client, TypeWagerAccepted, wagerAcceptedPayload{
		Wager:   dto.WagerToView(wager),
		Balance: balance,
	})
}

func (g *Gateway) handleRequestBalance(ctx context.Context, client *Client) {
	if !client.Authenticated() {
		g.rejectWith(client, entities.Reject(entities.ReasonUnauthenticated, "sign in to see your balance"))
		return
	}

	account, err := g.accounts.GetAccount(ctx, client.AccountID())
	if err != nil {
		log.WithField("accountID", client.AccountID()).WithError(err).Error("Failed to load balance")
		g.reject(client, ReasonInternalError, "balance unavailable")
		return
	}
	g.sendTo(client, TypeBalanceUpdate, balancePayload{Balance: account.Balance})
}

func (g *Gateway) rejectWith(client *Client, err error) {
	var rejection *entities.RejectionError
	if errors.As(err, &rejection) {
		g.reject(client, string(rejection.Reason), rejection.Message)
		return
	}
	g.reject(client, ReasonInternalError, "request failed, try again")
}

func (g *Gateway) reject(client *Client, reason, message string) {
	g.sendTo(client, TypeRejected, rejectedPayload{Reason: reason, Message: message})
}

func (g *Gateway) sendTo(client *Client, messageType string, data any) {
	msg, err := encodeMessage(messageType, data)
	if err != nil {
		log.WithError(err).Error("Failed to encode message")
		return
	}
	client.Enqueue(msg)
}

func (g *Gateway) broadcast(messageType string, data any) {
	msg, err := encodeMessage(messageType, data)
	if err != nil {
		log.WithError(err).Error("Failed to encode message")
		return
	}
	g.hub.Broadcast(msg)
}

func (g *Gateway) sendToAccount(accountID int64, messageType string, data any) {
	msg, err := encodeMessage(messageType, data)
	if err != nil {
		log.WithError(err).Error("Failed to encode message")
		return
	}
	g.hub.SendToAccount(accountID, msg)
}

func (g *Gateway) broadcastOnlineCount() {
	g.broadcast(TypeOnlineCount, onlineCountPayload{Count: g.hub.OnlineCount()})
}

// RoundStarted implements application.RoundListener
func (g *Gateway) RoundStarted(snapshot dto.RoundSnapshotDTO) {
	g.broadcast(TypeStateSnapshot, snapshot)
}

// Tick implements application.RoundListener
func (g *Gateway) Tick(phase entities.Phase, timeLeft int) {
	g.broadcast(TypeTick, tickPayload{Phase: phase, TimeLeft: timeLeft})
}

// OutcomeDrawn implements application.RoundListener
func (g *Gateway) OutcomeDrawn(roundID int64, outcomeIndex int) {
	g.broadcast(TypeOutcomeDrawn, outcomeDrawnPayload{RoundID: roundID, OutcomeIndex: outcomeIndex})
}

// RoundResult implements application.RoundListener
func (g *Gateway) RoundResult(result dto.RoundResultDTO) {
	g.broadcast(TypeRoundResult, result)
}

// WagersUpdated implements application.RoundListener
func (g *Gateway) WagersUpdated(roundID int64, wagers []dto.WagerView) {
	g.broadcast(TypeWagerListUpdate, wagerListPayload{RoundID: roundID, Wagers: wagers})
}

// BalanceUpdated implements application.RoundListener
func (g *Gateway) BalanceUpdated(accountID int64, balance int64) {
	g.sendToAccount(accountID, TypeBalanceUpdate, balancePayload{Balance: balance})
}

// WinNotice implements application.RoundListener
func (g *Gateway) WinNotice(accountID int64, roundID int64, amount int64) {
	g.sendToAccount(accountID, TypeWinNotice, winPayload{RoundID: roundID, Amount: amount})
}

var _ application.RoundListener = (*Gateway)(nil)
