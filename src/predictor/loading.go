package predictor

import (
	"context"
	"time"

	"github.com/aopopov01/TailTracker-sub005/src/models"
)

const (
	backgroundStagger = time.Second
	preemptivePacing  = 500 * time.Millisecond
)

// ExecutePredictiveLoading dispatches predictions by strategy: immediate
// predictions run sequentially and synchronously, background predictions
// are staggered one second apart, preemptive predictions are queued for
// the idle drain loop, and on-demand predictions are left for the access
// path to pull. Load errors are counted, never propagated.
func (p *Predictor) ExecutePredictiveLoading(ctx context.Context, predictions []models.PredictionResult) {
	p.mu.RLock()
	loader := p.loader
	p.mu.RUnlock()
	if loader == nil {
		return
	}

	stagger := 0
	for _, prediction := range predictions {
		switch prediction.Strategy {
		case models.StrategyImmediate:
			p.recordOutcome(loader(ctx, prediction.DataType) == nil)
		case models.StrategyBackground:
			stagger++
			go p.loadAfter(ctx, loader, prediction.DataType, time.Duration(stagger)*backgroundStagger)
		case models.StrategyPreemptive:
			p.enqueuePreemptive(prediction)
		case models.StrategyOnDemand:
			// Pulled lazily when the resource is actually requested.
		}
	}
}

// loadAfter waits out the stagger delay and performs one background load.
func (p *Predictor) loadAfter(ctx context.Context, loader LoadFunc, dataType string, delay time.Duration) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}
	p.recordOutcome(loader(ctx, dataType) == nil)
}

// enqueuePreemptive adds a prediction to the idle queue.
func (p *Predictor) enqueuePreemptive(prediction models.PredictionResult) {
	p.preemptiveMu.Lock()
	defer p.preemptiveMu.Unlock()
	p.preemptiveQueue = append(p.preemptiveQueue, prediction)
}

// drainPreemptive pops one queued prediction if the app is backgrounded
// and the network is connected, returning false when nothing was drained.
func (p *Predictor) drainPreemptive(ctx context.Context) bool {
	p.mu.RLock()
	allowed := p.backgrounded && p.connected
	loader := p.loader
	p.mu.RUnlock()
	if !allowed || loader == nil {
		return false
	}

	p.preemptiveMu.Lock()
	if len(p.preemptiveQueue) == 0 {
		p.preemptiveMu.Unlock()
		return false
	}
	next := p.preemptiveQueue[0]
	p.preemptiveQueue = p.preemptiveQueue[1:]
	p.preemptiveMu.Unlock()

	p.recordOutcome(loader(ctx, next.DataType) == nil)
	return true
}

// PreemptiveQueueLen returns the number of queued preemptive loads.
func (p *Predictor) PreemptiveQueueLen() int {
	p.preemptiveMu.Lock()
	defer p.preemptiveMu.Unlock()
	return len(p.preemptiveQueue)
}

// recordOutcome folds one load result into the accuracy counters.
func (p *Predictor) recordOutcome(success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totalPredictions++
	if success {
		p.successfulPredictions++
	}
}
