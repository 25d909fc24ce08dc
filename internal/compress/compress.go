// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

// Package compress wraps zstd streaming for the archive pipeline. The
// level is fixed at the balanced default and both directions run
// single-goroutine: a job's I/O is strictly sequential, concurrency in
// this system comes from running independent jobs, never from inside one
// stream.
package compress

import (
	"errors"
	"io"

	"github.com/klauspost/compress/zstd"
)

const (
	// MaxCompressionRatio is the highest expansion factor accepted when
	// decompressing an untrusted archive.
	MaxCompressionRatio = 100

	// MinExpandedAllowance is the floor below which the ratio ceiling is
	// not applied. Tiny archives of empty files legitimately expand far
	// beyond 100x; a bomb has to be large to do damage.
	MinExpandedAllowance = 64 << 20
)

// ErrSizeLimitExceeded reports that decompressed output crossed the
// configured safety ceiling.
var ErrSizeLimitExceeded = errors.New("decompressed data exceeds safety limit")

// NewWriter returns a zstd encoder at the fixed default level.
func NewWriter(w io.Writer) (*zstd.Encoder, error) {
	return zstd.NewWriter(w,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
}

// NewReader returns a zstd decoder. Callers must Close it.
func NewReader(r io.Reader) (*zstd.Decoder, error) {
	return zstd.NewReader(r,
		zstd.WithDecoderConcurrency(1),
	)
}

// ExpansionLimit computes the decompressed-byte ceiling for an archive
// whose compressed payload is compressedSize bytes.
func ExpansionLimit(compressedSize int64) int64 {
	limit := compressedSize * MaxCompressionRatio
	if limit < MinExpandedAllowance {
		limit = MinExpandedAllowance
	}
	return limit
}

// LimitedReader passes reads through while counting output bytes, and
// fails with ErrSizeLimitExceeded once the limit is crossed. The check
// runs after each read, so overshoot is bounded by the caller's buffer.
type LimitedReader struct {
	r        io.Reader
	limit    int64
	consumed int64
}

// NewLimitedReader wraps r with an output ceiling of limit bytes.
func NewLimitedReader(r io.Reader, limit int64) *LimitedReader {
	return &LimitedReader{r: r, limit: limit}
}

// Consumed returns the number of bytes read through so far.
func (l *LimitedReader) Consumed() int64 {
	return l.consumed
}

func (l *LimitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.consumed += int64(n)
	if l.consumed > l.limit {
		return n, ErrSizeLimitExceeded
	}
	return n, err
}
