package tresorerie

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gilandre/emeraude-treasury/internal/cache"
	"github.com/gilandre/emeraude-treasury/internal/ledger"
)

// Projector derives read-only treasury views from movement rows and the
// owners' denormalized aggregates. It never mutates ledger state; per-owner
// views are cached under the owner's namespace so ledger mutations invalidate
// them.
type Projector struct {
	store  ledger.Store
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewProjector wires the projector. cache may be nil; reads then always
// recompute.
func NewProjector(store ledger.Store, c cache.Cache, ttl time.Duration, logger *slog.Logger) *Projector {
	return &Projector{store: store, cache: c, ttl: ttl, logger: logger}
}

// DailyPoint is one day on the cumulative treasury curve.
type DailyPoint struct {
	Date     string          `json:"date"`
	Entrees  decimal.Decimal `json:"entrees"`
	Sorties  decimal.Decimal `json:"sorties"`
	Solde    decimal.Decimal `json:"solde"`
	SoldeXOF decimal.Decimal `json:"solde_xof"`
}

// MonthlyPoint is one month's encaissement/décaissement breakdown.
type MonthlyPoint struct {
	Month         string          `json:"mois"`
	Encaissements decimal.Decimal `json:"encaissements"`
	Decaissements decimal.Decimal `json:"decaissements"`
	Net           decimal.Decimal `json:"net"`
}

// Thresholds parameterize the attention list.
type Thresholds struct {
	BalanceRatio   decimal.Decimal
	UtilizationPct decimal.Decimal
}

// DefaultThresholds flags owners below 20% of budget or drawing more than 80%
// of their préfinancement.
func DefaultThresholds() Thresholds {
	return Thresholds{
		BalanceRatio:   decimal.NewFromFloat(0.2),
		UtilizationPct: decimal.NewFromInt(80),
	}
}

// AttentionItem is one flagged marché.
type AttentionItem struct {
	MarcheID       string          `json:"marche_id"`
	Code           string          `json:"code"`
	Label          string          `json:"libelle"`
	Currency       string          `json:"devise"`
	Solde          decimal.Decimal `json:"solde"`
	Budget         decimal.Decimal `json:"budget"`
	BalanceRatio   decimal.Decimal `json:"ratio_solde"`
	UtilizationPct decimal.Decimal `json:"utilisation_prefinancement_pct"`
}

// ForecastPoint is one projected day of the linear forecast.
type ForecastPoint struct {
	Date  string          `json:"date"`
	Solde decimal.Decimal `json:"solde"`
}

const forecastHorizonDays = 30

// DailyCurve returns the owner's daily inflow/outflow totals with a running
// cumulative solde over [from, to]; zero bounds are unbounded.
func (p *Projector) DailyCurve(ctx context.Context, owner ledger.OwnerRef, from, to time.Time) ([]DailyPoint, error) {
	key := p.key(owner, fmt.Sprintf("daily:%s:%s", dayKey(from), dayKey(to)))
	if points, ok := cachedView[[]DailyPoint](ctx, p, key); ok {
		return points, nil
	}

	movements, err := p.store.ListMovements(ctx, owner, from, to)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		in, out, inXOF, outXOF decimal.Decimal
	}
	buckets := make(map[string]*bucket)
	var days []string
	for _, m := range movements {
		day := m.Date.UTC().Format("2006-01-02")
		b, ok := buckets[day]
		if !ok {
			b = &bucket{}
			buckets[day] = b
			days = append(days, day)
		}
		in, out := contribution(m)
		inXOF, outXOF := contributionXOF(m)
		b.in = b.in.Add(in)
		b.out = b.out.Add(out)
		b.inXOF = b.inXOF.Add(inXOF)
		b.outXOF = b.outXOF.Add(outXOF)
	}
	sort.Strings(days)

	points := make([]DailyPoint, 0, len(days))
	cumul := decimal.Zero
	cumulXOF := decimal.Zero
	for _, day := range days {
		b := buckets[day]
		cumul = cumul.Add(b.in).Sub(b.out)
		cumulXOF = cumulXOF.Add(b.inXOF).Sub(b.outXOF)
		points = append(points, DailyPoint{
			Date:     day,
			Entrees:  b.in,
			Sorties:  b.out,
			Solde:    cumul,
			SoldeXOF: cumulXOF,
		})
	}

	p.remember(ctx, key, points)
	return points, nil
}

// MonthlyBreakdown returns the owner's per-month encaissement/décaissement
// totals for one calendar year.
func (p *Projector) MonthlyBreakdown(ctx context.Context, owner ledger.OwnerRef, year int) ([]MonthlyPoint, error) {
	key := p.key(owner, fmt.Sprintf("monthly:%d", year))
	if points, ok := cachedView[[]MonthlyPoint](ctx, p, key); ok {
		return points, nil
	}

	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0).Add(-time.Nanosecond)
	movements, err := p.store.ListMovements(ctx, owner, from, to)
	if err != nil {
		return nil, err
	}

	points := make([]MonthlyPoint, 12)
	for i := range points {
		points[i].Month = fmt.Sprintf("%d-%02d", year, i+1)
	}
	for _, m := range movements {
		idx := int(m.Date.UTC().Month()) - 1
		in, out := contribution(m)
		points[idx].Encaissements = points[idx].Encaissements.Add(in)
		points[idx].Decaissements = points[idx].Decaissements.Add(out)
	}
	for i := range points {
		points[i].Net = points[i].Encaissements.Sub(points[i].Decaissements)
	}

	p.remember(ctx, key, points)
	return points, nil
}

// AttentionList flags marchés whose balance ratio falls below the threshold or
// whose préfinancement utilization exceeds it, sorted by ascending balance
// ratio then descending utilization. Reads only denormalized rows, so it is
// never cached.
func (p *Projector) AttentionList(ctx context.Context, th Thresholds) ([]AttentionItem, error) {
	owners, err := p.store.ListOwners(ctx, ledger.OwnerMarche)
	if err != nil {
		return nil, err
	}
	facilities, err := p.store.ListPrefinancements(ctx)
	if err != nil {
		return nil, err
	}
	byMarche := make(map[string]ledger.Prefinancement, len(facilities))
	for _, f := range facilities {
		byMarche[f.MarcheID] = f
	}

	var items []AttentionItem
	for _, o := range owners {
		item := AttentionItem{
			MarcheID: o.Ref.ID,
			Code:     o.Code,
			Label:    o.Label,
			Currency: o.Currency,
			Solde:    o.Solde,
			Budget:   o.Budget,
		}

		lowBalance := false
		if o.Budget.Sign() > 0 {
			item.BalanceRatio = o.Solde.Div(o.Budget).Round(4)
			lowBalance = item.BalanceRatio.LessThan(th.BalanceRatio)
		}

		highDraw := false
		if f, ok := byMarche[o.Ref.ID]; ok && f.Authorized.Sign() > 0 {
			item.UtilizationPct = f.Utilized.Div(f.Authorized).Mul(decimal.NewFromInt(100)).Round(2)
			highDraw = item.UtilizationPct.GreaterThan(th.UtilizationPct)
		}

		if lowBalance || highDraw {
			items = append(items, item)
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].BalanceRatio.Equal(items[j].BalanceRatio) {
			return items[i].BalanceRatio.LessThan(items[j].BalanceRatio)
		}
		return items[i].UtilizationPct.GreaterThan(items[j].UtilizationPct)
	})
	return items, nil
}

// Forecast extrapolates the trailing-30-day average daily net flow forward
// from the owner's current solde, one point per day over the horizon.
func (p *Projector) Forecast(ctx context.Context, owner ledger.OwnerRef, now time.Time) ([]ForecastPoint, error) {
	key := p.key(owner, fmt.Sprintf("forecast:%s", dayKey(now)))
	if points, ok := cachedView[[]ForecastPoint](ctx, p, key); ok {
		return points, nil
	}

	current, err := p.store.GetOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	from := now.AddDate(0, 0, -forecastHorizonDays)
	movements, err := p.store.ListMovements(ctx, owner, from, now)
	if err != nil {
		return nil, err
	}

	totalIn := decimal.Zero
	totalOut := decimal.Zero
	for _, m := range movements {
		in, out := contribution(m)
		totalIn = totalIn.Add(in)
		totalOut = totalOut.Add(out)
	}
	window := decimal.NewFromInt(forecastHorizonDays)
	dailyNet := totalIn.Div(window).Sub(totalOut.Div(window))

	points := make([]ForecastPoint, 0, forecastHorizonDays)
	for i := 1; i <= forecastHorizonDays; i++ {
		points = append(points, ForecastPoint{
			Date:  now.AddDate(0, 0, i).UTC().Format("2006-01-02"),
			Solde: current.Solde.Add(dailyNet.Mul(decimal.NewFromInt(int64(i)))).Round(2),
		})
	}

	p.remember(ctx, key, points)
	return points, nil
}

// contribution splits a movement into its cash-in and cash-out parts in the
// owner's currency. Préfinancement-sourced décaissements are accounted on the
// facility, not the cash position, matching the engine's aggregates.
func contribution(m ledger.Movement) (in, out decimal.Decimal) {
	switch m.Kind {
	case ledger.KindAccompte:
		return m.Amount, decimal.Zero
	case ledger.KindMouvement:
		if m.Sens == ledger.SensEntree {
			return m.Amount, decimal.Zero
		}
		return decimal.Zero, m.Amount
	case ledger.KindDecaissement:
		if m.Source == ledger.SourcePrefinancement {
			return decimal.Zero, decimal.Zero
		}
		return decimal.Zero, m.Amount
	}
	return decimal.Zero, decimal.Zero
}

func contributionXOF(m ledger.Movement) (in, out decimal.Decimal) {
	i, o := contribution(m)
	if i.Sign() > 0 {
		return m.AmountXOF, decimal.Zero
	}
	if o.Sign() > 0 {
		return decimal.Zero, m.AmountXOF
	}
	return decimal.Zero, decimal.Zero
}

func (p *Projector) key(owner ledger.OwnerRef, suffix string) string {
	return cache.OwnerPrefix(string(owner.Kind), owner.ID) + suffix
}

func dayKey(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02")
}

// cachedView reads and decodes one cached view; any cache or decode failure
// is treated as a miss.
func cachedView[T any](ctx context.Context, p *Projector, key string) (T, bool) {
	var out T
	if p.cache == nil {
		return out, false
	}
	raw, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		p.logger.Warn("cache read failed", "key", key, "error", err)
		return out, false
	}
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		p.logger.Warn("cache decode failed", "key", key, "error", err)
		return out, false
	}
	return out, true
}

func (p *Projector) remember(ctx context.Context, key string, view any) {
	if p.cache == nil {
		return
	}
	raw, err := json.Marshal(view)
	if err != nil {
		p.logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := p.cache.Set(ctx, key, raw, p.ttl); err != nil {
		p.logger.Warn("cache write failed", "key", key, "error", err)
	}
}
