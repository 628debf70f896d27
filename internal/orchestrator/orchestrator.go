// Package orchestrator sequences the dependent fetches behind the
// range exploration screen: pool metadata, price history, the one-shot
// default range suggestion, liquidity distribution, deposit allocation,
// and the APR simulation. Stages are independently debounced and
// cancelled; cross-stage consistency is enforced by structural request
// key comparison, not by a global queue.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"rangescope/internal/api"
	"rangescope/internal/model"
	"rangescope/internal/rangectl"
)

// StageName identifies a pipeline stage in change notifications.
type StageName string

const (
	StageMetadata     StageName = "metadata"
	StagePrice        StageName = "price"
	StageDistribution StageName = "distribution"
	StageAllocation   StageName = "allocation"
	StageApr          StageName = "apr"
	StageRange        StageName = "range"
)

// Debounce and pipeline defaults.
const (
	DefaultDistributionDebounce = 350 * time.Millisecond
	DefaultAllocationDebounce   = 400 * time.Millisecond
	DefaultAprDebounce          = 400 * time.Millisecond
	DefaultTickWindow           = 200
	DefaultRangePreset          = "standard"
	matchPreset                 = "match"
)

// Config tunes the pipeline. Zero values take the defaults above.
type Config struct {
	DistributionDebounce time.Duration
	AllocationDebounce   time.Duration
	AprDebounce          time.Duration
	TickWindow           int
	RangePreset          string
}

func (c *Config) applyDefaults() {
	if c.DistributionDebounce == 0 {
		c.DistributionDebounce = DefaultDistributionDebounce
	}
	if c.AllocationDebounce == 0 {
		c.AllocationDebounce = DefaultAllocationDebounce
	}
	if c.AprDebounce == 0 {
		c.AprDebounce = DefaultAprDebounce
	}
	if c.TickWindow <= 0 {
		c.TickWindow = DefaultTickWindow
	}
	if c.RangePreset == "" {
		c.RangePreset = DefaultRangePreset
	}
}

// Orchestrator owns the per-stage results and their request keys.
type Orchestrator struct {
	cfg      Config
	backend  Backend
	fallback MetadataFallback
	ranges   *rangectl.Controller
	logger   *zap.Logger

	mu            sync.Mutex
	pool          PoolKey
	hasPool       bool
	poolCtx       context.Context
	poolCancel    context.CancelFunc
	deposit       float64
	timeframeDays int
	horizonDays   int
	method        model.AprMethod
	seedIssued    bool

	lastAllocKey    *AllocationKey
	lastAllocResult *model.AllocationResult
	lastAprKey      *AprKey

	metadata     *stage[MetadataKey, model.PoolMeta]
	price        *stage[PriceKey, model.PriceHistory]
	distribution *stage[DistributionKey, model.Distribution]
	allocation   *stage[AllocationKey, model.AllocationResult]
	apr          *stage[AprKey, model.AprSimulationResult]

	changes chan StageName
}

// New builds an orchestrator over a backend and a range controller.
func New(cfg Config, backend Backend, ranges *rangectl.Controller, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()

	o := &Orchestrator{
		cfg:           cfg,
		backend:       backend,
		ranges:        ranges,
		logger:        logger,
		timeframeDays: 30,
		horizonDays:   30,
		method:        model.AprMethodHistorical,
		changes:       make(chan StageName, 64),
	}

	o.metadata = newStage[MetadataKey, model.PoolMeta]("metadata", 0, logger, o.notify(StageMetadata))
	o.price = newStage[PriceKey, model.PriceHistory]("price", 0, logger, o.notify(StagePrice))
	o.distribution = newStage[DistributionKey, model.Distribution]("distribution", cfg.DistributionDebounce, logger, o.notify(StageDistribution))
	o.allocation = newStage[AllocationKey, model.AllocationResult]("allocation", cfg.AllocationDebounce, logger, o.notify(StageAllocation))
	o.allocation.invalidate = true
	o.apr = newStage[AprKey, model.AprSimulationResult]("apr", cfg.AprDebounce, logger, o.notify(StageApr))

	o.metadata.onApplied = o.onMetadata
	o.price.onApplied = o.onPrice
	o.allocation.onApplied = o.onAllocation
	o.apr.onApplied = o.onApr

	return o
}

// SetMetadataFallback installs an on-chain metadata source consulted
// when the backend metadata endpoint fails.
func (o *Orchestrator) SetMetadataFallback(fallback MetadataFallback) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fallback = fallback
}

// Changes delivers stage names whose state changed. The channel is
// buffered and never blocks the pipeline; a slow consumer may miss
// intermediate notifications and should re-read the stage snapshots.
func (o *Orchestrator) Changes() <-chan StageName {
	return o.changes
}

func (o *Orchestrator) notify(name StageName) func() {
	return func() { o.emit(name) }
}

func (o *Orchestrator) emit(name StageName) {
	select {
	case o.changes <- name:
	default:
	}
}

// SelectPool switches the pipeline to a pool, resetting every stage
// and aborting all in-flight calls for the previous pool.
func (o *Orchestrator) SelectPool(ref model.PoolRef) {
	key := poolKey(ref)

	o.mu.Lock()
	if o.hasPool && o.pool == key {
		o.mu.Unlock()
		return
	}
	o.pool = key
	o.hasPool = true
	if o.poolCancel != nil {
		o.poolCancel()
	}
	o.poolCtx, o.poolCancel = context.WithCancel(context.Background())
	o.seedIssued = false
	o.lastAllocKey = nil
	o.lastAllocResult = nil
	o.lastAprKey = nil
	o.mu.Unlock()

	o.ranges.Reset()
	o.metadata.reset()
	o.price.reset()
	o.distribution.reset()
	o.allocation.reset()
	o.apr.reset()

	o.requestMetadata()
	o.requestPrice()
}

// Close aborts all in-flight work.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.poolCancel != nil {
		o.poolCancel()
	}
	o.mu.Unlock()
	o.metadata.reset()
	o.price.reset()
	o.distribution.reset()
	o.allocation.reset()
	o.apr.reset()
}

// --- setters -----------------------------------------------------------

// SetDeposit updates the deposit amount from user input. Both '.' and
// ',' decimal separators are accepted; unparseable input is ignored.
func (o *Orchestrator) SetDeposit(text string) bool {
	value, err := model.ParseDecimal(text)
	if err != nil || value < 0 {
		return false
	}

	o.mu.Lock()
	if o.deposit == value {
		o.mu.Unlock()
		return false
	}
	o.deposit = value
	o.mu.Unlock()

	o.requestAllocation()
	return true
}

// SetTimeframe changes the price history window in days.
func (o *Orchestrator) SetTimeframe(days int) {
	if days <= 0 {
		return
	}
	o.mu.Lock()
	if o.timeframeDays == days {
		o.mu.Unlock()
		return
	}
	o.timeframeDays = days
	o.mu.Unlock()

	o.requestPrice()
}

// SetHorizon changes the APR simulation horizon in days.
func (o *Orchestrator) SetHorizon(days int) {
	if days <= 0 {
		return
	}
	o.mu.Lock()
	o.horizonDays = days
	o.mu.Unlock()
	o.maybeSimulateApr()
}

// SetMethod changes the APR calculation method.
func (o *Orchestrator) SetMethod(method model.AprMethod) {
	o.mu.Lock()
	o.method = method
	o.mu.Unlock()
	o.maybeSimulateApr()
}

// FocusBound forwards focus events to the range controller.
func (o *Orchestrator) FocusBound(side rangectl.Side) {
	o.ranges.Focus(side)
}

// CommitBound commits a typed bound and re-runs the range dependents.
func (o *Orchestrator) CommitBound(side rangectl.Side, text string) bool {
	if !o.ranges.Commit(side, text) {
		return false
	}
	o.emit(StageRange)
	o.rangeChanged()
	return true
}

// StepBound nudges a bound one tick spacing step.
func (o *Orchestrator) StepBound(side rangectl.Side, direction int) bool {
	if !o.ranges.StepBound(side, direction) {
		return false
	}
	o.emit(StageRange)
	o.rangeChanged()
	return true
}

// SetFullRange toggles the full-range position mode.
func (o *Orchestrator) SetFullRange(enabled bool) bool {
	var changed bool
	if enabled {
		changed = o.ranges.EnterFullRange()
	} else {
		changed = o.ranges.ExitFullRange()
	}
	if !changed {
		return false
	}
	o.emit(StageRange)
	o.rangeChanged()
	return true
}

// Range exposes the current user-facing range.
func (o *Orchestrator) Range() model.PriceRange {
	return o.ranges.Range()
}

// Bounds exposes the tick projection of the current range.
func (o *Orchestrator) Bounds() (model.TickBounds, error) {
	return o.ranges.Bounds()
}

// --- stage accessors ---------------------------------------------------

func (o *Orchestrator) Metadata() StageState[model.PoolMeta] { return o.metadata.snapshot() }

func (o *Orchestrator) Price() StageState[model.PriceHistory] { return o.price.snapshot() }

func (o *Orchestrator) Distribution() StageState[model.Distribution] {
	return o.distribution.snapshot()
}

func (o *Orchestrator) Allocation() StageState[model.AllocationResult] {
	return o.allocation.snapshot()
}

func (o *Orchestrator) Apr() StageState[model.AprSimulationResult] { return o.apr.snapshot() }

// --- stage wiring ------------------------------------------------------

func (o *Orchestrator) rangeChanged() {
	o.requestDistribution()
	o.requestAllocation()
}

func (o *Orchestrator) requestMetadata() {
	o.mu.Lock()
	if !o.hasPool {
		o.mu.Unlock()
		return
	}
	key := MetadataKey{o.pool}
	fallback := o.fallback
	o.mu.Unlock()

	pool := key.ref()
	o.metadata.trigger(key, func(ctx context.Context, _ MetadataKey) (model.PoolMeta, error) {
		meta, err := o.backend.PoolMetadata(ctx, pool)
		if err != nil && fallback != nil && ctx.Err() == nil {
			o.logger.Warn("metadata endpoint failed, trying on-chain fallback", zap.Error(err))
			if onchain, chainErr := fallback.PoolMeta(ctx, pool); chainErr == nil {
				return onchain, nil
			}
		}
		return meta, err
	})
}

func (o *Orchestrator) onMetadata(key MetadataKey, meta model.PoolMeta) {
	o.mu.Lock()
	stale := !o.hasPool || o.pool != key.PoolKey
	o.mu.Unlock()
	if stale {
		return
	}

	o.ranges.SetParams(rangectl.Params{
		TickSpacing:   int(meta.TickSpacing),
		DecimalAdjust: meta.DecimalAdjust(),
	})
	o.rangeChanged()
}

func (o *Orchestrator) requestPrice() {
	o.mu.Lock()
	if !o.hasPool {
		o.mu.Unlock()
		return
	}
	key := PriceKey{o.pool, o.timeframeDays}
	o.mu.Unlock()

	pool := key.ref()
	days := key.TimeframeDays
	o.price.trigger(key, func(ctx context.Context, _ PriceKey) (model.PriceHistory, error) {
		return o.backend.PriceSeries(ctx, pool, days)
	})
}

// onPrice fires the one-shot default range lookup on the first
// successful price fetch for a pool.
func (o *Orchestrator) onPrice(key PriceKey, history model.PriceHistory) {
	price, ok := history.LastPrice()
	if !ok {
		return
	}

	o.mu.Lock()
	if !o.hasPool || o.pool != key.PoolKey || o.seedIssued {
		o.mu.Unlock()
		return
	}
	o.seedIssued = true
	ctx := o.poolCtx
	pool := o.pool
	preset := o.cfg.RangePreset
	o.mu.Unlock()

	go o.seedDefaultRange(ctx, pool, price, preset)
}

func (o *Orchestrator) seedDefaultRange(ctx context.Context, pool PoolKey, price float64, preset string) {
	suggestion, err := o.backend.DefaultRange(ctx, pool.ref(), price, preset)
	if err != nil {
		if ctx.Err() == nil {
			o.logger.Warn("default range lookup failed", zap.Error(err))
		}
		return
	}

	o.mu.Lock()
	stale := !o.hasPool || o.pool != pool
	o.mu.Unlock()
	if stale {
		return
	}

	// Seed itself compare-and-sets against user edits that happened
	// while the lookup was in flight, under the range controller's own
	// lock: the most recent user-observable input wins.
	if o.ranges.Seed(suggestion.MinPrice, suggestion.MaxPrice) {
		o.emit(StageRange)
		o.rangeChanged()
	}
}

// MatchTicks asks the backend to snap the current range to its tick
// grid and applies the result. Unlike the seed this is an explicit
// user action: it always applies and marks the range touched.
func (o *Orchestrator) MatchTicks() {
	o.mu.Lock()
	if !o.hasPool {
		o.mu.Unlock()
		return
	}
	pool := o.pool
	ctx := o.poolCtx
	o.mu.Unlock()

	price, ok := o.midPrice()
	if !ok {
		return
	}

	go func() {
		suggestion, err := o.backend.DefaultRange(ctx, pool.ref(), price, matchPreset)
		if err != nil {
			if ctx.Err() == nil {
				o.logger.Warn("match ticks failed", zap.Error(err))
			}
			return
		}

		o.mu.Lock()
		stale := !o.hasPool || o.pool != pool
		o.mu.Unlock()
		if stale {
			return
		}
		if o.ranges.Apply(suggestion.MinPrice, suggestion.MaxPrice) {
			o.emit(StageRange)
			o.rangeChanged()
		}
	}()
}

func (o *Orchestrator) midPrice() (float64, bool) {
	if min, max, full, ok := o.ranges.Resolved(); ok && !full {
		return (min + max) / 2, true
	}
	if state := o.price.snapshot(); state.Data != nil {
		return state.Data.LastPrice()
	}
	return 0, false
}

func (o *Orchestrator) requestDistribution() {
	o.mu.Lock()
	if !o.hasPool {
		o.mu.Unlock()
		return
	}
	pool := o.pool
	tickWindow := o.cfg.TickWindow
	o.mu.Unlock()

	min, max, full, ok := o.ranges.Resolved()
	if !ok {
		return
	}

	key := DistributionKey{
		PoolKey:    pool,
		RangeMin:   min,
		RangeMax:   max,
		FullRange:  full,
		TickWindow: tickWindow,
	}
	ref := pool.ref()
	o.distribution.trigger(key, func(ctx context.Context, _ DistributionKey) (model.Distribution, error) {
		return o.backend.Distribution(ctx, ref, min, max, tickWindow)
	})
}

// allocationKeyLocked computes the current allocation request key.
// Callers hold o.mu.
func (o *Orchestrator) allocationKeyLocked() (AllocationKey, bool) {
	if !o.hasPool || o.deposit <= 0 {
		return AllocationKey{}, false
	}
	min, max, full, ok := o.ranges.Resolved()
	if !ok {
		return AllocationKey{}, false
	}
	return AllocationKey{
		PoolKey:    o.pool,
		DepositUSD: o.deposit,
		RangeMin:   min,
		RangeMax:   max,
		FullRange:  full,
	}, true
}

func (o *Orchestrator) requestAllocation() {
	o.mu.Lock()
	key, ok := o.allocationKeyLocked()
	o.mu.Unlock()
	if !ok {
		return
	}

	params := api.AllocationParams{
		Pool:       key.ref(),
		DepositUSD: key.DepositUSD,
		RangeMin:   key.RangeMin,
		RangeMax:   key.RangeMax,
		FullRange:  key.FullRange,
	}
	o.allocation.trigger(key, func(ctx context.Context, _ AllocationKey) (model.AllocationResult, error) {
		return o.backend.Allocation(ctx, params)
	})

	// The APR on display belongs to the previous allocation; once the
	// inputs move away from the accepted key it is stale.
	o.mu.Lock()
	stale := o.lastAllocKey == nil || *o.lastAllocKey != key
	if stale {
		o.lastAprKey = nil
	}
	o.mu.Unlock()
	if stale {
		o.apr.clearData()
	}
}

// onAllocation records the last accepted allocation key; the APR stage
// is only ever issued against it.
func (o *Orchestrator) onAllocation(key AllocationKey, result model.AllocationResult) {
	o.mu.Lock()
	o.lastAllocKey = &key
	o.lastAllocResult = &result
	o.mu.Unlock()

	o.maybeSimulateApr()
}

func (o *Orchestrator) onApr(key AprKey, _ model.AprSimulationResult) {
	o.mu.Lock()
	o.lastAprKey = &key
	o.mu.Unlock()
}

// maybeSimulateApr issues the APR simulation only when the current
// request key matches the last accepted allocation, and skips keys
// whose result was already computed.
func (o *Orchestrator) maybeSimulateApr() {
	o.mu.Lock()
	if o.lastAllocKey == nil || o.lastAllocResult == nil {
		o.mu.Unlock()
		return
	}
	current, ok := o.allocationKeyLocked()
	if !ok || current != *o.lastAllocKey {
		// The allocation on display no longer matches the inputs; a
		// fresh allocation fetch is already on its way.
		o.mu.Unlock()
		return
	}

	key := AprKey{
		AllocationKey: current,
		HorizonDays:   o.horizonDays,
		Method:        o.method,
	}
	if o.lastAprKey != nil && *o.lastAprKey == key {
		o.mu.Unlock()
		return
	}
	alloc := *o.lastAllocResult
	o.mu.Unlock()

	params := api.AprParams{
		Pool:         key.ref(),
		MinPrice:     key.RangeMin,
		MaxPrice:     key.RangeMax,
		FullRange:    key.FullRange,
		HorizonDays:  key.HorizonDays,
		Method:       key.Method,
		AmountToken0: alloc.AmountToken0,
		AmountToken1: alloc.AmountToken1,
	}
	if bounds, err := o.ranges.Bounds(); err == nil {
		params.TickLower = bounds.LowerTick
		params.TickUpper = bounds.UpperTick
	}

	o.apr.trigger(key, func(ctx context.Context, _ AprKey) (model.AprSimulationResult, error) {
		return o.backend.SimulateApr(ctx, params)
	})
}

// ApplyLivePrice folds a streamed spot price into the price stage
// without re-running the fetch pipeline. Updates for a pool that is no
// longer selected are dropped.
func (o *Orchestrator) ApplyLivePrice(ref model.PoolRef, price float64) bool {
	o.mu.Lock()
	match := o.hasPool && o.pool == poolKey(ref)
	o.mu.Unlock()
	if !match || !(price > 0) {
		return false
	}

	return o.price.update(func(h *model.PriceHistory) {
		p := price
		h.Stats.Price = &p
	})
}
