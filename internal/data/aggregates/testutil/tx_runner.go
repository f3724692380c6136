package testutil

import (
	"context"
	"sync"

	"github.com/yungbote/freightquote-backend/internal/data/aggregates"
	"github.com/yungbote/freightquote-backend/internal/platform/dbctx"
)

// InjectedTxRunner wraps another runner (or none) and injects failures at
// begin, before the body, or at commit. With Inner set, a FailCommit error is
// returned from inside the real transaction so the body's writes roll back.
type InjectedTxRunner struct {
	mu sync.Mutex

	Inner aggregates.TxRunner

	FailBegin      error
	FailBeforeBody error
	FailCommit     error
	// FailTimes limits injected failures; zero means every call fails.
	FailTimes int

	BeginCalls    int
	CommitCalls   int
	RollbackCalls int
	failures      int
}

var _ aggregates.TxRunner = (*InjectedTxRunner)(nil)

func (r *InjectedTxRunner) inject(err error) error {
	if err == nil {
		return nil
	}
	if r.FailTimes > 0 && r.failures >= r.FailTimes {
		return nil
	}
	r.failures++
	return err
}

func (r *InjectedTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.BeginCalls++
	failBegin := r.inject(r.FailBegin)
	failBeforeBody := r.inject(r.FailBeforeBody)
	failCommit := r.inject(r.FailCommit)
	r.mu.Unlock()

	if failBegin != nil {
		return failBegin
	}
	if failBeforeBody != nil {
		r.count(&r.RollbackCalls)
		return failBeforeBody
	}
	body := func(dbc dbctx.Context) error {
		if fn != nil {
			if err := fn(dbc); err != nil {
				return err
			}
		}
		return failCommit
	}
	var err error
	if r.Inner != nil {
		err = r.Inner.InTx(ctx, body)
	} else {
		err = body(dbctx.Context{Ctx: ctx})
	}
	if err != nil {
		r.count(&r.RollbackCalls)
		return err
	}
	r.count(&r.CommitCalls)
	return nil
}

func (r *InjectedTxRunner) count(n *int) {
	r.mu.Lock()
	*n++
	r.mu.Unlock()
}
