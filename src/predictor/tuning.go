package predictor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aopopov01/TailTracker-sub005/src/models"
)

const (
	stateKeyPatterns = "predictor:patterns"

	lowSuccessRate  = 0.6
	highSuccessRate = 0.8
	decayFactor     = 0.9
	boostFactor     = 1.1
	boostGate       = 0.7

	pruneAge        = 30 * 24 * time.Hour
	pruneConfidence = 0.3
)

// Start launches the self-tuning loop and the preemptive drain loop.
// Calling Start on a running predictor is a no-op.
func (p *Predictor) Start(ctx context.Context) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	if p.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)

		tuner := time.NewTicker(p.tuningInterval)
		defer tuner.Stop()
		pacer := time.NewTicker(preemptivePacing)
		defer pacer.Stop()

		p.log.Infof("Predictor started (tuning every %s)", p.tuningInterval)
		for {
			select {
			case <-loopCtx.Done():
				p.log.Info("Predictor stopped")
				return
			case <-tuner.C:
				p.Tune()
				if err := p.savePatterns(loopCtx); err != nil {
					p.log.Warnf("Failed to persist patterns: %v", err)
				}
			case <-pacer.C:
				p.drainPreemptive(loopCtx)
			}
		}
	}()
}

// Stop cancels the predictor's loops and waits for them to exit.
func (p *Predictor) Stop() {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	p.done = nil
}

// Tune adjusts pattern confidences from the observed prediction outcomes:
// a poor overall success rate decays every confidence, a strong one boosts
// the patterns that individually performed well. Stale low-confidence
// patterns are pruned.
func (p *Predictor) Tune() {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.totalPredictions > 0 {
		overall := float64(p.successfulPredictions) / float64(p.totalPredictions)
		switch {
		case overall < lowSuccessRate:
			for _, pattern := range p.patterns {
				pattern.Confidence = clamp01(pattern.Confidence * decayFactor)
			}
			p.log.Debugf("Tuning: overall success %.2f, decayed all confidences", overall)
		case overall > highSuccessRate:
			for _, pattern := range p.patterns {
				if pattern.SuccessRate > boostGate {
					pattern.Confidence = clamp01(pattern.Confidence * boostFactor)
				}
			}
			p.log.Debugf("Tuning: overall success %.2f, boosted strong patterns", overall)
		}
	}

	pruned := 0
	for id, pattern := range p.patterns {
		if now.Sub(pattern.LastUsed) >= pruneAge && pattern.Confidence < pruneConfidence {
			delete(p.patterns, id)
			pruned++
		}
	}
	for len(p.patterns) > p.maxPatterns {
		p.evictWeakestLocked()
		pruned++
	}
	if pruned > 0 {
		p.log.Debugf("Tuning: pruned %d patterns", pruned)
	}
}

// savePatterns persists the pattern map as one JSON blob.
func (p *Predictor) savePatterns(ctx context.Context) error {
	p.mu.RLock()
	blob, err := json.Marshal(p.patterns)
	p.mu.RUnlock()
	if err != nil {
		return err
	}
	return p.store.Set(ctx, stateKeyPatterns, string(blob))
}

// LoadPatterns restores previously persisted patterns. A missing or
// corrupt blob leaves the predictor empty.
func (p *Predictor) LoadPatterns(ctx context.Context) {
	blob, ok, err := p.store.Get(ctx, stateKeyPatterns)
	if err != nil {
		p.log.Warnf("Failed to load patterns: %v", err)
		return
	}
	if !ok {
		return
	}

	var patterns map[string]*models.PredictivePattern
	if err := json.Unmarshal([]byte(blob), &patterns); err != nil {
		p.log.Warnf("Discarding corrupt pattern state: %v", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if patterns != nil {
		p.patterns = patterns
	}
}
