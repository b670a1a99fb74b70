package currency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func seed(t *testing.T, repo Repository, code, rate string, effective time.Time) {
	t.Helper()
	err := repo.Upsert(context.Background(), Rate{
		Code:          code,
		Rate:          decimal.RequireFromString(rate),
		EffectiveDate: effective,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", code, err)
	}
}

func TestReportingCurrencyUsesIdentityRate(t *testing.T) {
	svc := NewService(NewMemoryRepository(), 0)

	converted, rate, err := svc.ConvertToReporting(context.Background(), decimal.RequireFromString("123.45"), ReportingCurrency)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !rate.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected identity rate, got %s", rate)
	}
	if !converted.Equal(decimal.RequireFromString("123.45")) {
		t.Fatalf("expected identity conversion, got %s", converted)
	}
}

func TestConvertRoundsToTwoDecimals(t *testing.T) {
	repo := NewMemoryRepository()
	seed(t, repo, "EUR", "655.957", time.Now())
	svc := NewService(repo, 0)

	converted, rate, err := svc.ConvertToReporting(context.Background(), decimal.NewFromInt(100), "EUR")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !converted.Equal(decimal.RequireFromString("65595.70")) {
		t.Fatalf("expected 65595.70, got %s", converted)
	}
	if !rate.Equal(decimal.RequireFromString("655.957")) {
		t.Fatalf("expected rate 655.957, got %s", rate)
	}
}

func TestLatestEffectiveRateWins(t *testing.T) {
	repo := NewMemoryRepository()
	seed(t, repo, "USD", "590", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	seed(t, repo, "USD", "600", time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	svc := NewService(repo, 0)

	rate, err := svc.GetExchangeRate(context.Background(), "USD")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !rate.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("expected most recent rate 600, got %s", rate)
	}
}

func TestUnknownCurrencyIsNotFound(t *testing.T) {
	svc := NewService(NewMemoryRepository(), 0)
	if _, err := svc.GetExchangeRate(context.Background(), "GBP"); !errors.Is(err, ErrRateNotFound) {
		t.Fatalf("expected ErrRateNotFound, got %v", err)
	}
}

func TestNonPositiveRateIsRejected(t *testing.T) {
	repo := NewMemoryRepository()
	seed(t, repo, "XXX", "0", time.Now())
	svc := NewService(repo, 0)
	if _, err := svc.GetExchangeRate(context.Background(), "XXX"); !errors.Is(err, ErrRateNotFound) {
		t.Fatalf("expected rejection of non-positive rate, got %v", err)
	}
}

type slowRepository struct{ Repository }

func (r slowRepository) Latest(ctx context.Context, code string) (Rate, error) {
	select {
	case <-ctx.Done():
		return Rate{}, ctx.Err()
	case <-time.After(time.Second):
		return Rate{}, ErrRateNotFound
	}
}

func TestLookupTimeoutIsUnavailable(t *testing.T) {
	svc := NewService(slowRepository{NewMemoryRepository()}, 10*time.Millisecond)
	if _, err := svc.GetExchangeRate(context.Background(), "EUR"); !errors.Is(err, ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable, got %v", err)
	}
}
