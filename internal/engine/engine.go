package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"TradeBraid/internal/baseline"
	"TradeBraid/internal/config"
	"TradeBraid/internal/dimension"
	"TradeBraid/internal/model"
	"TradeBraid/internal/pattern"
	"TradeBraid/internal/store"
)

// Engine runs the per-trade learning pipeline: dedupe, extract, generate
// pattern keys, fold the trade into every matching pattern and baseline
// aggregate. Trades are processed strictly sequentially; all shared
// mutation is single-key atomic upsert, so the periodic lesson sweep can
// run concurrently without coordination.
type Engine struct {
	store      store.Store
	extractor  *dimension.Extractor
	generators map[string]*pattern.Generator
	coreDims   map[string][]string
	maxRetries int
	backoff    time.Duration
}

// New wires an engine from configuration.
func New(cfg *config.Config, st store.Store) *Engine {
	gens := make(map[string]*pattern.Generator, len(cfg.Modules))
	core := make(map[string][]string, len(cfg.Modules))
	for _, m := range cfg.Modules {
		gens[m.Name] = pattern.NewGenerator(m.Dimensions, cfg.Learning.MaxSubsetSize)
		core[m.Name] = m.CoreDimensions
	}
	return &Engine{
		store:      st,
		extractor:  dimension.NewExtractor(cfg),
		generators: gens,
		coreDims:   core,
		maxRetries: 3,
		backoff:    100 * time.Millisecond,
	}
}

// ProcessClosedTrade folds one closed trade into the learning state.
// Validation failures abort this trade only. Persistence failures on one
// pattern key are retried with backoff and, if exhausted, logged and
// skipped without aborting the trade's other keys.
func (e *Engine) ProcessClosedTrade(ctx context.Context, t *model.ClosedTrade) error {
	if t.TradeID == "" {
		return errors.New("trade id is required")
	}

	first, err := e.store.TryMarkProcessed(t.Module, t.TradeID)
	if err != nil {
		return fmt.Errorf("dedupe ledger: %w", err)
	}
	if !first {
		log.Printf("[INFO] trade %s already processed, skipping", t.TradeID)
		return nil
	}

	dims, err := e.extractor.Extract(t)
	if err != nil {
		return fmt.Errorf("extract dimensions: %w", err)
	}

	gen, ok := e.generators[t.Module]
	if !ok {
		return fmt.Errorf("module %q not configured", t.Module)
	}

	rr, err := e.extractor.RewardRisk(t)
	if err != nil {
		return fmt.Errorf("derive reward/risk: %w", err)
	}
	win := t.RealizedReturn > 0

	// Fan out into pattern aggregates. Each key is an independent
	// commutative increment; order and partial failure don't matter.
	for _, cand := range gen.Generate(dims) {
		family := pattern.FamilyID(t.Module, e.coreDims[t.Module], cand.Dims)
		err := e.withRetry(ctx, func() error {
			return e.store.RecordPatternObservation(t.Module, cand.Key, cand.Dims, family, rr, win, t.HoldTime)
		})
		if err != nil {
			log.Printf("[ERROR] pattern %s: contribution from trade %s dropped: %v", cand.Key, t.TradeID, err)
		}
	}

	// Baseline segments, most to least specific, global included.
	for _, seg := range baseline.SegmentKeys(dims[baseline.MCapDim], dims[baseline.TimeframeDim]) {
		seg := seg
		err := e.withRetry(ctx, func() error {
			return e.store.RecordBaselineObservation(t.Module, seg, rr)
		})
		if err != nil {
			log.Printf("[ERROR] baseline %q: contribution from trade %s dropped: %v", seg, t.TradeID, err)
		}
	}

	log.Printf("[INFO] trade %s processed (module=%s outcome=%s rr=%.3f)",
		t.TradeID, t.Module, dims[model.OutcomeDim], rr)
	return nil
}

// withRetry runs fn with bounded exponential backoff.
func (e *Engine) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i <= e.maxRetries; i++ {
		if err := fn(); err != nil {
			lastErr = err
			wait := e.backoff * time.Duration(1<<uint(i))
			log.Printf("[WARN] store write failed (attempt %d/%d): %v, retrying in %v", i+1, e.maxRetries+1, err, wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}
		return nil
	}
	return fmt.Errorf("all %d attempts exhausted: %w", e.maxRetries+1, lastErr)
}
