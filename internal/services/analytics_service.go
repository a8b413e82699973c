package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"finanzas/internal/amqp"
	"finanzas/internal/cache"
	"finanzas/internal/core"
	"finanzas/internal/indicator"
	"finanzas/internal/ledger"
	"finanzas/internal/log"
	"finanzas/internal/metrics"
	"finanzas/internal/ports"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrInvalidMovement wraps every reason a submitted movement is refused.
	ErrInvalidMovement = errors.New("invalid movement")
	ErrInvalidSymbol   = errors.New("invalid symbol")
	ErrInvalidUser     = errors.New("invalid user")
)

// Publisher announces ledger changes to other instances.
type Publisher interface {
	PublishLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error
}

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// MarketReport is an indicator snapshot for one symbol.
type MarketReport struct {
	Symbol    string    `json:"symbol"`
	FetchedAt time.Time `json:"fetched_at"`
	indicator.Result
}

// AnalyticsService loads ledger and price snapshots from the ports, runs the
// engines on them and caches the results.
type AnalyticsService struct {
	store     ports.LedgerStore
	prices    ports.PriceSource
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *log.Logger
	events    *log.StructuredLogger
	now       func() time.Time
	indicator indicator.Config

	summaries *cache.LRUCache[ledger.Result]
	series    *cache.SeriesCache
}

// Option configures an AnalyticsService.
type Option func(*AnalyticsService)

// WithPublisher enables change notifications.
func WithPublisher(p Publisher) Option {
	return func(s *AnalyticsService) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *AnalyticsService) { s.metrics = m }
}

func WithLogger(l *log.Logger) Option {
	return func(s *AnalyticsService) { s.logger = l }
}

// WithClock sets the evaluation time of ledger summaries.
func WithClock(now func() time.Time) Option {
	return func(s *AnalyticsService) { s.now = now }
}

// WithSummaryCache sizes the per-user summary cache.
func WithSummaryCache(size int, ttl time.Duration) Option {
	return func(s *AnalyticsService) { s.summaries = cache.NewLRUCache[ledger.Result](size, ttl) }
}

// WithSeriesCache replaces the price series cache.
func WithSeriesCache(c *cache.SeriesCache) Option {
	return func(s *AnalyticsService) { s.series = c }
}

// WithIndicatorConfig overrides the analyzer windows and levels.
func WithIndicatorConfig(cfg indicator.Config) Option {
	return func(s *AnalyticsService) { s.indicator = cfg }
}

func NewAnalyticsService(store ports.LedgerStore, prices ports.PriceSource, opts ...Option) *AnalyticsService {
	s := &AnalyticsService{
		store:     store,
		prices:    prices,
		metrics:   metrics.New(),
		logger:    log.New(log.DefaultConfig()),
		now:       time.Now,
		indicator: indicator.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.summaries == nil {
		s.summaries = cache.NewLRUCache[ledger.Result](256, 5*time.Minute)
	}
	if s.series == nil {
		s.series = cache.NewSeriesCache(256, cache.DefaultSeriesTTL)
	}
	s.logger = s.logger.WithComponent(log.ComponentAnalytics)
	s.events = log.NewStructuredLogger(s.logger)
	return s
}

// Caches returns the caches owned by the service, for periodic cleanup.
func (s *AnalyticsService) Caches() []cache.Cleaner {
	return []cache.Cleaner{s.summaries, s.series}
}

// summaryKey includes the evaluation month because the month-over-month
// delta and the trend are anchored to it.
func summaryKey(userID string, now time.Time, f ledger.Filter) string {
	return userID + "|" + core.MonthOfTime(now).String() + "|" + f.Key()
}

func checkUser(userID string) error {
	if strings.TrimSpace(userID) == "" || strings.Contains(userID, "|") {
		return fmt.Errorf("%w %q", ErrInvalidUser, userID)
	}
	return nil
}

// LedgerSummary aggregates the user's ledger for the filter. Results are
// cached per user and filter until the ledger changes or the TTL expires.
func (s *AnalyticsService) LedgerSummary(ctx context.Context, userID string, f ledger.Filter) (ledger.Result, error) {
	if err := checkUser(userID); err != nil {
		return ledger.Result{}, err
	}
	key := summaryKey(userID, s.now(), f)
	if res, ok := s.summaries.Get(key); ok {
		s.metrics.SummaryCache.WithLabelValues(metrics.Lookup(true)).Inc()
		return res, nil
	}
	s.metrics.SummaryCache.WithLabelValues(metrics.Lookup(false)).Inc()

	start := time.Now()
	var (
		raws         []core.RawMovement
		user, global []core.CategoryBudget
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		raws, err = s.store.ListMovements(gctx, userID)
		if err != nil {
			return fmt.Errorf("list movements: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		user, global, err = s.store.ListBudgets(gctx, userID)
		if err != nil {
			return fmt.Errorf("list budgets: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.events.LogError(ctx, "Failed to load ledger snapshot", err, log.ComponentAnalytics, log.OpAggregate,
			log.NewFields().WithUser(userID))
		return ledger.Result{}, err
	}

	agg := ledger.NewAggregator(
		ledger.WithClock(s.now),
		ledger.WithRegistry(registryOf(user, global)),
	)
	res := aggregateRaw(agg, raws, ledger.ResolveBudgets(user, global), f)

	s.summaries.Set(key, res)
	s.metrics.Aggregations.Inc()
	s.metrics.RejectedMovements.Add(float64(len(res.Rejected)))
	s.events.LogAggregation(ctx, userID, f.Year, f.Month, string(f.Category), res.Count, len(res.Rejected), time.Since(start))
	return res, nil
}

// registryOf knows every category that has a budget row, user or global.
func registryOf(user, global []core.CategoryBudget) core.Registry {
	names := make([]string, 0, len(user)+len(global))
	for _, b := range user {
		names = append(names, string(b.Category))
	}
	for _, b := range global {
		names = append(names, string(b.Category))
	}
	return core.NewRegistry(names...)
}

// aggregateRaw parses raws and aggregates the valid movements. Rejections
// from parsing and from aggregation are merged and indexed by position in raws.
func aggregateRaw(agg *ledger.Aggregator, raws []core.RawMovement, budgets ledger.Budgets, f ledger.Filter) ledger.Result {
	movements := make([]core.Movement, 0, len(raws))
	origin := make([]int, 0, len(raws))
	var rejected []core.Rejected
	for i, raw := range raws {
		m, err := core.ParseMovement(raw)
		if err != nil {
			rejected = append(rejected, core.Rejected{Index: i, Raw: raw, Err: err})
			continue
		}
		movements = append(movements, m)
		origin = append(origin, i)
	}

	res := agg.Aggregate(movements, budgets, f)
	for _, r := range res.Rejected {
		i := origin[r.Index]
		rejected = append(rejected, core.Rejected{Index: i, Raw: raws[i], Err: r.Err})
	}
	slices.SortFunc(rejected, func(a, b core.Rejected) int { return a.Index - b.Index })
	res.Rejected = rejected
	return res
}

// MarketIndicators analyzes the daily series of symbol. Series are fetched
// at most once per cache TTL.
func (s *AnalyticsService) MarketIndicators(ctx context.Context, symbol string) (MarketReport, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" || strings.ContainsAny(symbol, " /?#") {
		return MarketReport{}, fmt.Errorf("%w %q", ErrInvalidSymbol, symbol)
	}
	if s.prices == nil {
		return MarketReport{}, errors.New("market data source not configured")
	}

	start := time.Now()
	entry, hit, err := s.series.GetOrFetch(ctx, symbol, s.prices.FetchDaily)
	s.metrics.PriceCache.WithLabelValues(metrics.Lookup(hit)).Inc()
	if err != nil {
		s.events.LogError(ctx, "Failed to fetch price series", err, log.ComponentMarketData, log.OpIndicators,
			log.NewFields().WithSymbol(symbol))
		return MarketReport{}, err
	}

	points := entry.Series
	indicator.SortAscending(points)
	res, err := indicator.AnalyzeWith(s.indicator, points)
	if err != nil {
		return MarketReport{}, fmt.Errorf("analyze %s: %w", symbol, err)
	}

	s.metrics.IndicatorRuns.WithLabelValues(string(res.Signal)).Inc()
	s.events.LogIndicators(ctx, symbol, string(res.Signal), len(points), hit, time.Since(start))
	return MarketReport{Symbol: symbol, FetchedAt: entry.FetchedAt, Result: res}, nil
}

// RecordMovement validates and stores a movement, drops the user's cached
// summaries and announces the change. Any valid category is accepted; new
// ones show up in the summary's unknown categories until budgeted. A failed announcement is logged, not
// returned: the movement is already stored.
func (s *AnalyticsService) RecordMovement(ctx context.Context, userID string, raw core.RawMovement) (core.Movement, error) {
	if err := checkUser(userID); err != nil {
		return core.Movement{}, err
	}
	m, err := core.ParseMovement(raw)
	if err != nil {
		return core.Movement{}, fmt.Errorf("%w: %w", ErrInvalidMovement, err)
	}

	id, err := s.store.AppendMovement(ctx, userID, m)
	if err != nil {
		s.events.LogError(ctx, "Failed to append movement", err, log.ComponentStorage, log.OpAppend,
			log.NewFields().WithUser(userID))
		return core.Movement{}, fmt.Errorf("append movement: %w", err)
	}
	m.ID = id

	s.InvalidateUser(userID)
	s.metrics.LedgerChanges.WithLabelValues("api").Inc()
	s.logger.InfoContext(ctx, "Movement recorded",
		log.FieldUserID, userID,
		log.FieldMovementID, id,
		log.FieldCategory, string(m.Category))

	if s.publisher != nil {
		if err := s.publisher.PublishLedgerChanged(ctx, amqp.NewMovementAppended(userID, id)); err != nil {
			s.events.LogError(ctx, "Failed to publish ledger change", err, log.ComponentAMQP, log.OpPublish,
				log.NewFields().WithUser(userID))
		}
	}
	return m, nil
}

// HandleLedgerChanged consumes a change notification from another instance
// or from an import.
func (s *AnalyticsService) HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	if msg == nil || msg.UserID == "" {
		return errors.New("ledger change without user")
	}
	n := s.InvalidateUser(msg.UserID)
	s.metrics.LedgerChanges.WithLabelValues("amqp").Inc()
	s.logger.DebugContext(ctx, "Ledger change received",
		log.FieldUserID, msg.UserID,
		log.FieldOperation, log.OpInvalidate,
		"change", msg.Change,
		log.FieldCount, n)
	return nil
}

// InvalidateUser drops every cached summary of userID and returns how many
// were dropped.
func (s *AnalyticsService) InvalidateUser(userID string) int {
	return s.summaries.DeletePrefix(userID + "|")
}

// Categories lists the category labels known for the user.
func (s *AnalyticsService) Categories(ctx context.Context, userID string) ([]core.Category, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	cats, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return core.NewRegistry(cats...).Names(), nil
}

// Ready reports whether the backing store is reachable.
func (s *AnalyticsService) Ready(ctx context.Context) error {
	if p, ok := s.store.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
