// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

/* crypt.go - Password-based key derivation and stream parameters

Keys are derived with Argon2id using the RFC 9106 memory-constrained
recommendation (t=3, m=64 MiB, p=4) and a fresh random salt per archive.
The salt, cost parameters, and nonce prefix are not secret and travel in
the cleartext archive header; the password itself is never stored or
logged. Parameters parsed from an untrusted header are bounds-checked so
a hostile archive cannot demand gigabytes of KDF memory.
*/
//nolint:staticcheck // File documentation, not package doc
package crypt

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	// KeySize is the AES-256 key length produced by the KDF.
	KeySize = 32

	// SaltSize is the Argon2id salt length generated per archive.
	SaltSize = 16

	// NoncePrefixSize is the random prefix of each 12-byte GCM nonce; the
	// remaining 8 bytes are the big-endian chunk counter.
	NoncePrefixSize = 4

	// ChunkSize is the plaintext length of one encrypted frame.
	ChunkSize = 1 << 20
)

// Bounds accepted when reading parameters from an untrusted header.
const (
	maxTimeCost  = 32
	maxMemoryKiB = 2 << 20 // 2 GiB
	maxThreads   = 16
	minSaltSize  = 8
	maxSaltSize  = 64
)

var (
	// ErrAuthenticationFailed covers both a wrong password and tampered
	// ciphertext; the two are deliberately indistinguishable.
	ErrAuthenticationFailed = errors.New("authentication failed: wrong password or corrupted data")

	// ErrCorruptStream reports malformed framing: bad lengths, truncation,
	// or trailing garbage.
	ErrCorruptStream = errors.New("encrypted stream is malformed")

	// ErrInvalidParams reports key-derivation parameters outside the
	// accepted bounds.
	ErrInvalidParams = errors.New("invalid key derivation parameters")
)

// Params carries everything needed to re-derive the key and reconstruct
// chunk nonces, except the password.
type Params struct {
	Time        uint32
	MemoryKiB   uint32
	Threads     uint8
	Salt        []byte
	NoncePrefix []byte
}

// DefaultParams returns the fixed cost settings with a fresh random salt
// and nonce prefix. Each archive gets new randomness, so encrypting the
// same tree twice never produces the same ciphertext.
func DefaultParams() (Params, error) {
	p := Params{
		Time:        3,
		MemoryKiB:   64 * 1024,
		Threads:     4,
		Salt:        make([]byte, SaltSize),
		NoncePrefix: make([]byte, NoncePrefixSize),
	}
	if _, err := rand.Read(p.Salt); err != nil {
		return Params{}, fmt.Errorf("failed to generate salt: %w", err)
	}
	if _, err := rand.Read(p.NoncePrefix); err != nil {
		return Params{}, fmt.Errorf("failed to generate nonce prefix: %w", err)
	}
	return p, nil
}

// Validate bounds-checks parameters, typically ones parsed from an
// archive header.
func (p Params) Validate() error {
	if p.Time == 0 || p.Time > maxTimeCost {
		return fmt.Errorf("%w: time cost %d", ErrInvalidParams, p.Time)
	}
	if p.MemoryKiB < 8*uint32(p.Threads) || p.MemoryKiB > maxMemoryKiB {
		return fmt.Errorf("%w: memory %d KiB", ErrInvalidParams, p.MemoryKiB)
	}
	if p.Threads == 0 || p.Threads > maxThreads {
		return fmt.Errorf("%w: parallelism %d", ErrInvalidParams, p.Threads)
	}
	if len(p.Salt) < minSaltSize || len(p.Salt) > maxSaltSize {
		return fmt.Errorf("%w: salt length %d", ErrInvalidParams, len(p.Salt))
	}
	if len(p.NoncePrefix) != NoncePrefixSize {
		return fmt.Errorf("%w: nonce prefix length %d", ErrInvalidParams, len(p.NoncePrefix))
	}
	return nil
}

// DeriveKey stretches a password into an AES-256 key. Memory-hard by
// construction; cost scales with the stored parameters.
func DeriveKey(password string, p Params) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return argon2.IDKey([]byte(password), p.Salt, p.Time, p.MemoryKiB, p.Threads, KeySize), nil
}
