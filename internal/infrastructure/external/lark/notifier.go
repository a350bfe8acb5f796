package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/cash-advance/internal/application/port"
	"github.com/garyjia/cash-advance/internal/domain/entity"
	"github.com/garyjia/cash-advance/internal/domain/ledger"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrNotifierUnavailable is returned while the circuit breaker is open
var ErrNotifierUnavailable = errors.New("treasury notifier unavailable")

// BreakerConfig controls when repeated Lark failures stop further attempts
type BreakerConfig struct {
	ConsecutiveFailures uint32
	Timeout             time.Duration
	MaxRequests         uint32
}

// TreasuryNotifier posts liquidation and reversal cards to the treasury chat
type TreasuryNotifier struct {
	sender  MessageSender
	chatID  string
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewTreasuryNotifier wraps sender in a circuit breaker
func NewTreasuryNotifier(sender MessageSender, chatID string, cfg BreakerConfig, logger *zap.Logger) *TreasuryNotifier {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}

	n := &TreasuryNotifier{sender: sender, chatID: chatID, logger: logger}
	n.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "lark-treasury",
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return n
}

var _ port.TreasuryNotifier = (*TreasuryNotifier)(nil)

// NotifyLiquidation announces a liquidated advance with its final balances
func (n *TreasuryNotifier) NotifyLiquidation(ctx context.Context, advance *entity.Advance, balance ledger.BalanceByCurrency) error {
	var b strings.Builder
	fmt.Fprintf(&b, "**Advance** #%d  season %d  responsible %d\n", advance.ID, advance.SeasonID, advance.ResponsiblePersonID)
	if advance.LiquidationDate != nil {
		fmt.Fprintf(&b, "**Liquidated at** %s\n", advance.LiquidationDate.Format(time.RFC3339))
	}
	for _, cur := range balance.Currencies() {
		cb := balance[cur]
		fmt.Fprintf(&b, "%s: assigned %s, spent %s, balance **%s**\n",
			cur, cb.TotalAssigned.StringFixed(2), cb.TotalSpent.StringFixed(2), cb.Balance.StringFixed(2))
	}
	return n.send(ctx, fmt.Sprintf("Advance #%d liquidated", advance.ID), "green", b.String())
}

// NotifyReversal announces the compensating entry of an approved cash movement
func (n *TreasuryNotifier) NotifyReversal(ctx context.Context, original, reversal *entity.CashMovement) error {
	reason := ""
	if reversal.Reversal != nil {
		reason = reversal.Reversal.Reason
	}
	body := fmt.Sprintf("**Original** #%d  %s %s\n**Reversal** #%d  %s %s\n**Reason** %s",
		original.ID, original.Amount.StringFixed(2), original.Currency,
		reversal.ID, reversal.Amount.StringFixed(2), reversal.Currency,
		reason)
	return n.send(ctx, fmt.Sprintf("Cash movement #%d reverted", original.ID), "red", body)
}

func (n *TreasuryNotifier) send(ctx context.Context, title, template, body string) error {
	if n.chatID == "" {
		return fmt.Errorf("treasury chat id is not configured")
	}
	content, err := json.Marshal(card(title, template, body))
	if err != nil {
		return fmt.Errorf("failed to marshal card: %w", err)
	}

	_, err = n.breaker.Execute(func() (interface{}, error) {
		return n.sender.SendMessage(ctx, "chat_id", n.chatID, "interactive", string(content))
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrNotifierUnavailable, err)
	}
	return err
}

// card builds a Lark interactive message card
func card(title, template, body string) map[string]interface{} {
	return map[string]interface{}{
		"config": map[string]interface{}{"wide_screen_mode": true},
		"header": map[string]interface{}{
			"template": template,
			"title":    map[string]string{"tag": "plain_text", "content": title},
		},
		"elements": []interface{}{
			map[string]interface{}{
				"tag":  "div",
				"text": map[string]string{"tag": "lark_md", "content": body},
			},
		},
	}
}
