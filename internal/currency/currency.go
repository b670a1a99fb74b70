package currency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ReportingCurrency is the single currency all amounts reconcile into.
const ReportingCurrency = "XOF"

var (
	// ErrRateNotFound occurs when no exchange rate is recorded for a currency code.
	ErrRateNotFound = errors.New("exchange rate not found")

	// ErrRateUnavailable occurs when the rate lookup could not complete in time.
	ErrRateUnavailable = errors.New("exchange rate lookup unavailable")
)

// Rate is one exchange-rate row: 1 unit of Code expressed in reporting-currency units.
type Rate struct {
	Code          string
	Rate          decimal.Decimal
	EffectiveDate time.Time
}

// Service resolves exchange rates and converts native amounts into the
// reporting currency. Rates are resolved once per write operation and the
// resolved value is persisted on the movement row, never recomputed later.
type Service struct {
	repo    Repository
	timeout time.Duration
}

// NewService builds a conversion service. A zero timeout disables the
// per-lookup deadline.
func NewService(repo Repository, timeout time.Duration) *Service {
	return &Service{repo: repo, timeout: timeout}
}

// GetExchangeRate returns the most recent effective rate for the currency code.
// The reporting currency always resolves to the identity rate 1.
func (s *Service) GetExchangeRate(ctx context.Context, code string) (decimal.Decimal, error) {
	if code == ReportingCurrency {
		return decimal.NewFromInt(1), nil
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	rate, err := s.repo.Latest(ctx, code)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return decimal.Decimal{}, fmt.Errorf("rate lookup for %s: %w", code, ErrRateUnavailable)
		}
		if errors.Is(err, ErrRateNotFound) {
			return decimal.Decimal{}, fmt.Errorf("currency %s: %w", code, ErrRateNotFound)
		}
		return decimal.Decimal{}, err
	}

	if rate.Rate.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("currency %s has non-positive rate: %w", code, ErrRateNotFound)
	}

	return rate.Rate, nil
}

// ConvertToReporting converts a native amount into the reporting currency,
// rounded to 2 decimal places. It returns the converted amount and the rate
// used so callers can persist both.
func (s *Service) ConvertToReporting(ctx context.Context, amount decimal.Decimal, code string) (decimal.Decimal, decimal.Decimal, error) {
	rate, err := s.GetExchangeRate(ctx, code)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	return amount.Mul(rate).Round(2), rate, nil
}
