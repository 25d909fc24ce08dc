// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

/* stream.go - Chunked AES-256-GCM framing

The compressed payload is sealed in frames of at most ChunkSize plaintext
bytes:

    frameLen  uint32 (big-endian, ciphertext length incl. GCM tag)
    final     byte   (1 on the last frame, else 0)
    ciphertext

Nonce per frame = NoncePrefix || big-endian counter, so nonces never
repeat under one key. The counter and final flag are bound as associated
data: frames cannot be reordered, dropped, duplicated, or truncated
without the tag (or framing) check failing. A final frame is always
written, even when empty, so clean EOF is distinguishable from
truncation.
*/
//nolint:staticcheck // File documentation, not package doc
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	gcmNonceSize = 12
	frameLenSize = 4
	aadSize      = 9
)

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key length %d", ErrInvalidParams, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCM: %w", err)
	}
	return aead, nil
}

func frameNonce(prefix []byte, counter uint64) []byte {
	nonce := make([]byte, gcmNonceSize)
	copy(nonce, prefix)
	binary.BigEndian.PutUint64(nonce[NoncePrefixSize:], counter)
	return nonce
}

func frameAAD(counter uint64, final byte) []byte {
	aad := make([]byte, aadSize)
	binary.BigEndian.PutUint64(aad, counter)
	aad[8] = final
	return aad
}

// StreamWriter seals written plaintext into authenticated frames.
// Close must be called to emit the final frame marker.
type StreamWriter struct {
	w       io.Writer
	aead    cipher.AEAD
	prefix  []byte
	buf     []byte
	n       int
	counter uint64
	frame   []byte
	closed  bool
}

// NewStreamWriter returns a writer sealing to w with the given key and
// nonce prefix.
func NewStreamWriter(w io.Writer, key, noncePrefix []byte) (*StreamWriter, error) {
	if len(noncePrefix) != NoncePrefixSize {
		return nil, fmt.Errorf("%w: nonce prefix length %d", ErrInvalidParams, len(noncePrefix))
	}
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	prefix := make([]byte, NoncePrefixSize)
	copy(prefix, noncePrefix)
	return &StreamWriter{
		w:      w,
		aead:   aead,
		prefix: prefix,
		buf:    make([]byte, ChunkSize),
	}, nil
}

func (sw *StreamWriter) Write(p []byte) (int, error) {
	if sw.closed {
		return 0, fmt.Errorf("%w: write after close", ErrCorruptStream)
	}
	written := 0
	for len(p) > 0 {
		space := ChunkSize - sw.n
		c := copy(sw.buf[sw.n:], p[:min(space, len(p))])
		sw.n += c
		written += c
		p = p[c:]
		if sw.n == ChunkSize {
			if err := sw.flush(0); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// flush seals the buffered plaintext into one frame.
func (sw *StreamWriter) flush(final byte) error {
	nonce := frameNonce(sw.prefix, sw.counter)
	aad := frameAAD(sw.counter, final)
	sw.frame = sw.aead.Seal(sw.frame[:0], nonce, sw.buf[:sw.n], aad)

	var hdr [frameLenSize + 1]byte
	binary.BigEndian.PutUint32(hdr[:frameLenSize], uint32(len(sw.frame)))
	hdr[frameLenSize] = final

	if _, err := sw.w.Write(hdr[:]); err != nil {
		return fmt.Errorf("failed to write frame header: %w", err)
	}
	if _, err := sw.w.Write(sw.frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	sw.counter++
	sw.n = 0
	return nil
}

// Close seals any buffered plaintext into the final frame. The final
// frame is written even when empty.
func (sw *StreamWriter) Close() error {
	if sw.closed {
		return nil
	}
	sw.closed = true
	return sw.flush(1)
}

// StreamReader opens authenticated frames back into plaintext. Any tag
// failure surfaces as ErrAuthenticationFailed; framing damage surfaces
// as ErrCorruptStream.
type StreamReader struct {
	r       io.Reader
	aead    cipher.AEAD
	prefix  []byte
	counter uint64
	plain   []byte
	off     int
	done    bool
	ct      []byte
}

// NewStreamReader returns a reader opening frames from r.
func NewStreamReader(r io.Reader, key, noncePrefix []byte) (*StreamReader, error) {
	if len(noncePrefix) != NoncePrefixSize {
		return nil, fmt.Errorf("%w: nonce prefix length %d", ErrInvalidParams, len(noncePrefix))
	}
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	prefix := make([]byte, NoncePrefixSize)
	copy(prefix, noncePrefix)
	return &StreamReader{r: r, aead: aead, prefix: prefix}, nil
}

func (sr *StreamReader) Read(p []byte) (int, error) {
	for sr.off >= len(sr.plain) {
		if sr.done {
			return 0, io.EOF
		}
		if err := sr.nextFrame(); err != nil {
			return 0, err
		}
	}
	n := copy(p, sr.plain[sr.off:])
	sr.off += n
	return n, nil
}

// nextFrame reads and authenticates one frame into sr.plain.
func (sr *StreamReader) nextFrame() error {
	var hdr [frameLenSize + 1]byte
	if _, err := io.ReadFull(sr.r, hdr[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			// EOF before a final frame means the stream was cut short.
			return fmt.Errorf("%w: truncated before final frame", ErrCorruptStream)
		}
		return fmt.Errorf("failed to read frame header: %w", err)
	}

	frameLen := binary.BigEndian.Uint32(hdr[:frameLenSize])
	final := hdr[frameLenSize]
	if final > 1 {
		return fmt.Errorf("%w: invalid frame flag %d", ErrCorruptStream, final)
	}
	maxFrame := uint32(ChunkSize + sr.aead.Overhead())
	if frameLen < uint32(sr.aead.Overhead()) || frameLen > maxFrame {
		return fmt.Errorf("%w: frame length %d", ErrCorruptStream, frameLen)
	}

	if cap(sr.ct) < int(frameLen) {
		sr.ct = make([]byte, frameLen)
	}
	sr.ct = sr.ct[:frameLen]
	if _, err := io.ReadFull(sr.r, sr.ct); err != nil {
		return fmt.Errorf("%w: truncated frame", ErrCorruptStream)
	}

	nonce := frameNonce(sr.prefix, sr.counter)
	aad := frameAAD(sr.counter, final)
	plain, err := sr.aead.Open(sr.plain[:0], nonce, sr.ct, aad)
	if err != nil {
		return ErrAuthenticationFailed
	}
	sr.plain = plain
	sr.off = 0
	sr.counter++

	if final == 1 {
		sr.done = true
		// Anything after the final frame is not ours.
		var probe [1]byte
		if n, _ := sr.r.Read(probe[:]); n > 0 {
			return fmt.Errorf("%w: trailing data after final frame", ErrCorruptStream)
		}
	}
	return nil
}
