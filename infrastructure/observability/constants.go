package observability

// Metric name prefixes
const (
	MetricPrefix = "roulette"
)

// Metric names
const (
	// Wager metrics
	WagersAcceptedTotal = MetricPrefix + ".wagers.accepted_total"
	WagersRejectedTotal = MetricPrefix + ".wagers.rejected_total"
	WageredAmountTotal  = MetricPrefix + ".wagers.amount_total"

	// Round metrics
	RoundsSettledTotal      = MetricPrefix + ".rounds.settled_total"
	RoundSettlementDuration = MetricPrefix + ".rounds.settlement_duration"
	SettlementFailuresTotal = MetricPrefix + ".rounds.settlement_failures_total"
	RoundWagersPerRound     = MetricPrefix + ".rounds.wagers"

	// Connection metrics
	ConnectionsActive = MetricPrefix + ".connections.active"
	ConnectionsTotal  = MetricPrefix + ".connections.opened_total"

	// NATS metrics
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"

	// Balance metrics
	BalanceTransactionsTotal = MetricPrefix + ".balance.transactions_total"
)

// Label keys
const (
	// Common labels
	LabelType      = "type"
	LabelEventType = "event_type"

	// Wager labels
	LabelCategory = "category"
	LabelReason   = "reason"

	// Connection labels
	LabelAuthenticated = "authenticated"

	// Error labels
	LabelTransient = "transient"
)
