// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

package backup

import (
	"context"
	"sync/atomic"
)

// Token is a cooperative cancellation flag shared between the caller and
// a running job. Cancel may be called from any goroutine, any number of
// times; the job polls the flag between files and between chunks.
type Token struct {
	cancelled atomic.Bool
}

// NewToken returns an uncancelled token.
func NewToken() *Token {
	return &Token{}
}

// Cancel requests that the job stop at its next polling point.
func (t *Token) Cancel() {
	t.cancelled.Store(true)
}

// Cancelled reports whether Cancel has been called.
func (t *Token) Cancelled() bool {
	return t.cancelled.Load()
}

// checkCancel folds context cancellation and token cancellation into the
// single ErrCancelled surface the engine exposes.
func checkCancel(ctx context.Context, tok *Token) error {
	if ctx != nil && ctx.Err() != nil {
		return ErrCancelled
	}
	if tok != nil && tok.Cancelled() {
		return ErrCancelled
	}
	return nil
}
