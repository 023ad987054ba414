package advisor

import (
	"context"
	"time"

	"github.com/aopopov01/TailTracker-sub005/src/db"
)

// batchItem is one enqueued statement waiting for the next flush.
type batchItem struct {
	ctx    context.Context
	sql    string
	params []interface{}
	result chan batchResult
}

type batchResult struct {
	result *db.Result
	err    error
}

// BatchQuery enqueues a statement for batched execution. The queue flushes
// immediately once it reaches the configured batch size, otherwise after
// the debounce window. Queued statements execute concurrently and every
// caller receives its own result or error, independent of its siblings.
func (a *Advisor) BatchQuery(ctx context.Context, sql string, params []interface{}) (*db.Result, error) {
	item := &batchItem{
		ctx:    ctx,
		sql:    sql,
		params: params,
		result: make(chan batchResult, 1),
	}

	a.batchMu.Lock()
	a.batchQueue = append(a.batchQueue, item)
	if len(a.batchQueue) >= a.opts.BatchSize {
		if a.batchTimer != nil {
			a.batchTimer.Stop()
			a.batchTimer = nil
		}
		queue := a.batchQueue
		a.batchQueue = nil
		a.batchMu.Unlock()
		a.flush(queue)
	} else {
		if a.batchTimer == nil {
			a.batchTimer = time.AfterFunc(a.opts.BatchDebounce, a.flushPending)
		}
		a.batchMu.Unlock()
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-item.result:
		return out.result, out.err
	}
}

// flushPending drains whatever accumulated during the debounce window.
func (a *Advisor) flushPending() {
	a.batchMu.Lock()
	queue := a.batchQueue
	a.batchQueue = nil
	a.batchTimer = nil
	a.batchMu.Unlock()

	if len(queue) > 0 {
		a.flush(queue)
	}
}

// flush fans the queued statements out to independent goroutines. One
// statement failing never affects the others.
func (a *Advisor) flush(queue []*batchItem) {
	for _, item := range queue {
		go func(item *batchItem) {
			result, _, err := a.ExecuteQuery(item.ctx, item.sql, item.params, ExecOptions{})
			item.result <- batchResult{result: result, err: err}
		}(item)
	}
}

// PendingBatchLen returns the number of statements waiting for a flush.
func (a *Advisor) PendingBatchLen() int {
	a.batchMu.Lock()
	defer a.batchMu.Unlock()
	return len(a.batchQueue)
}
