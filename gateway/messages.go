package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"roulette/application/dto"
	"roulette/domain/entities"
)

// Server to client message types
const (
	TypeStateSnapshot   = "state_snapshot"
	TypeTick            = "tick"
	TypeOutcomeDrawn    = "outcome_drawn"
	TypeRoundResult     = "round_result"
	TypeWagerListUpdate = "wager_list_update"
	TypeBalanceUpdate   = "balance_update"
	TypeWinNotice       = "win_notice"
	TypeRejected        = "rejected"
	TypeWagerAccepted   = "wager_accepted"
	TypeOnlineCount     = "online_count"
)

// Client to server message types
const (
	TypeSubmitWager    = "submit_wager"
	TypeRequestBalance = "request_balance"
)

// Rejection reasons that do not come from the round engine
const (
	ReasonBadRequest    = "BadRequest"
	ReasonInternalError = "InternalError"
)

// Message is the JSON envelope for both directions
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type outboundMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type tickPayload struct {
	Phase    entities.Phase `json:"phase"`
	TimeLeft int            `json:"timeLeft"`
}

type outcomeDrawnPayload struct {
	RoundID      int64 `json:"roundId"`
	OutcomeIndex int   `json:"outcomeIndex"`
}

type wagerListPayload struct {
	RoundID int64           `json:"roundId"`
	Wagers  []dto.WagerView `json:"wagers"`
}

type balancePayload struct {
	Balance int64 `json:"balance"`
}

type winPayload struct {
	RoundID int64 `json:"roundId"`
	Amount  int64 `json:"amount"`
}

type rejectedPayload struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type wagerAcceptedPayload struct {
	Wager   dto.WagerView `json:"wager"`
	Balance int64         `json:"balance"`
}

type onlineCountPayload struct {
	Count int `json:"count"`
}

// SubmitWagerRequest is the payload of submit_wager
type SubmitWagerRequest struct {
	Category entities.Category
	Amount   int64
}

// encodeMessage renders an outbound envelope
func encodeMessage(messageType string, data any) ([]byte, error) {
	payload, err := json.Marshal(outboundMessage{Type: messageType, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", messageType, err)
	}
	return payload, nil
}

// decodeMessage parses an inbound envelope
func decodeMessage(raw []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, fmt.Errorf("malformed message: %w", err)
	}
	if msg.Type == "" {
		return Message{}, fmt.Errorf("message type is required")
	}
	return msg, nil
}

// parseSubmitWager validates the shape of a submit_wager payload. The amount
// must be an integral JSON number; floats and strings are rejected as
// invalid stakes.
func parseSubmitWager(data json.RawMessage) (SubmitWagerRequest, error) {
	var payload struct {
		Category string          `json:"category"`
		Amount   json.RawMessage `json:"amount"`
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&payload); err != nil {
		return SubmitWagerRequest{}, entities.Reject(entities.ReasonInvalidStake, "malformed wager")
	}

	raw := strings.TrimSpace(string(payload.Amount))
	if raw == "" || raw == "null" {
		return SubmitWagerRequest{}, entities.Reject(entities.ReasonInvalidStake, "amount is required")
	}
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return SubmitWagerRequest{}, entities.Reject(entities.ReasonInvalidStake, "amount must be a whole number")
	}

	return SubmitWagerRequest{
		Category: entities.Category(strings.ToLower(strings.TrimSpace(payload.Category))),
		Amount:   amount,
	}, nil
}
