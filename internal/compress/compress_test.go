// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

package compress

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{name: "empty", input: nil},
		{name: "text", input: []byte("hello compression world")},
		{name: "highly compressible", input: bytes.Repeat([]byte{0}, 4<<20)},
		{name: "incompressible", input: randomBytes(t, 2<<20)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(&buf)
			if err != nil {
				t.Fatalf("NewWriter() error = %v", err)
			}
			if _, err := w.Write(tt.input); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}

			r, err := NewReader(bytes.NewReader(buf.Bytes()))
			if err != nil {
				t.Fatalf("NewReader() error = %v", err)
			}
			defer r.Close()

			out, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if !bytes.Equal(out, tt.input) {
				t.Errorf("round trip mismatch: got %d bytes, want %d", len(out), len(tt.input))
			}
		})
	}
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	rng := rand.New(rand.NewSource(42))
	if _, err := rng.Read(b); err != nil {
		t.Fatalf("rand: %v", err)
	}
	return b
}

func TestExpansionLimit(t *testing.T) {
	tests := []struct {
		name           string
		compressedSize int64
		want           int64
	}{
		{name: "tiny archive uses floor", compressedSize: 100, want: MinExpandedAllowance},
		{name: "floor boundary", compressedSize: MinExpandedAllowance / MaxCompressionRatio, want: MinExpandedAllowance},
		{name: "large archive uses ratio", compressedSize: 1 << 30, want: (1 << 30) * MaxCompressionRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpansionLimit(tt.compressedSize); got != tt.want {
				t.Errorf("ExpansionLimit(%d) = %d, want %d", tt.compressedSize, got, tt.want)
			}
		})
	}
}

func TestLimitedReaderStopsAtLimit(t *testing.T) {
	payload := bytes.Repeat([]byte{1}, 10_000)
	lr := NewLimitedReader(bytes.NewReader(payload), 4096)

	_, err := io.ReadAll(lr)
	if !errors.Is(err, ErrSizeLimitExceeded) {
		t.Errorf("error = %v, want ErrSizeLimitExceeded", err)
	}
	if lr.Consumed() <= 4096 {
		t.Errorf("limit triggered too early at %d bytes", lr.Consumed())
	}
}

func TestLimitedReaderAllowsUnderLimit(t *testing.T) {
	payload := bytes.Repeat([]byte{1}, 4096)
	lr := NewLimitedReader(bytes.NewReader(payload), 4096)

	out, err := io.ReadAll(lr)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(out) != 4096 {
		t.Errorf("read %d bytes, want 4096", len(out))
	}
	if lr.Consumed() != 4096 {
		t.Errorf("Consumed() = %d, want 4096", lr.Consumed())
	}
}

func TestLimitedReaderGuardsDecompression(t *testing.T) {
	// A few KiB of zeros compress to almost nothing; with a small limit the
	// decode side must fail rather than expand fully.
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	if _, err := w.Write(bytes.Repeat([]byte{0}, 1<<20)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	dec, err := NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	defer dec.Close()

	lr := NewLimitedReader(dec, 64<<10)
	_, err = io.ReadAll(lr)
	if !errors.Is(err, ErrSizeLimitExceeded) {
		t.Errorf("error = %v, want ErrSizeLimitExceeded", err)
	}
}
