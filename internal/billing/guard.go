// Package billing guards session spend and records per-session usage.
package billing

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/shehryarbajwa/cloudbrowser/internal/logging"
	"github.com/shehryarbajwa/cloudbrowser/pkg/errors"
)

// DefaultMinBalance is the balance below which no session is created
const DefaultMinBalance = 0.50

// BalanceSource reads the account balance
type BalanceSource interface {
	GetBalance(ctx context.Context) (float64, error)
}

// Guard refuses to start sessions the account cannot pay for
type Guard struct {
	source     BalanceSource
	minBalance float64
	log        *logrus.Entry
}

// NewGuard creates a guard. A negative minBalance disables the minimum but
// still requires a positive balance.
func NewGuard(source BalanceSource, minBalance float64) *Guard {
	return &Guard{
		source:     source,
		minBalance: minBalance,
		log:        logging.NewLogger("billing"),
	}
}

// Check reads the balance and returns an InsufficientFunds error when it is
// below the minimum. Failures to read the balance are returned as is.
func (g *Guard) Check(ctx context.Context) error {
	balance, err := g.source.GetBalance(ctx)
	if err != nil {
		return err
	}

	if balance <= 0 || balance < g.minBalance {
		g.log.WithFields(logrus.Fields{
			"balance":     balance,
			"min_balance": g.minBalance,
		}).Warn("balance too low to start a session")
		return errors.InsufficientFunds(balance)
	}

	g.log.WithField("balance", balance).Debug("balance check passed")
	return nil
}
