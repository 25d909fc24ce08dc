// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

/*
format.go - Archive Container Format and Naming

Archives are single files laid out as header, body, trailer:

	magic      [4]byte  "ILK1"
	version    uint8    0x01
	mode       uint8    1 = compressed, 2 = encrypted
	(mode 2 only)
	kdfID        uint8   1 = argon2id
	timeCost     uint32
	memoryKiB    uint32
	parallelism  uint8
	saltLen      uint8 + salt
	prefixLen    uint8 + noncePrefix

	body: zstd stream of the tar archive, framed through AES-GCM in
	      mode 2

	trailer: sha256 [32]byte over every preceding byte of the file

All integers are big-endian. The key-derivation parameters live in the
clear so restore can derive the key without any out-of-band state; they
are covered by the trailing checksum like everything else.

File names follow {name}_{type}_{timestamp} with extension .tar.zst or
.tar.zst.enc, timestamp layout 20060102-150405. In-flight archives carry
an extra .partial suffix and are never listed or restored from.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/beloureiro/inlocker/internal/crypt"
)

const (
	formatVersion byte = 0x01

	wireModeCompressed byte = 0x01
	wireModeEncrypted  byte = 0x02

	kdfArgon2id byte = 0x01

	// TrailerSize is the length of the SHA-256 trailer every archive
	// ends with.
	TrailerSize = 32

	// ExtCompressed and ExtEncrypted are the archive file extensions.
	ExtCompressed = ".tar.zst"
	ExtEncrypted  = ".tar.zst.enc"

	// PartialSuffix marks an archive still being written.
	PartialSuffix = ".partial"

	// TimestampLayout is the archive-name timestamp format.
	TimestampLayout = "20060102-150405"
)

var formatMagic = [4]byte{'I', 'L', 'K', '1'}

// header is the decoded archive container header.
type header struct {
	mode   byte
	params *crypt.Params // nil unless mode is encrypted
}

// encodeHeader writes the container header for the given mode. params is
// required for encrypted archives and ignored otherwise. Returns the
// number of bytes written.
func encodeHeader(w io.Writer, mode byte, params *crypt.Params) (int, error) {
	buf := make([]byte, 0, 64)
	buf = append(buf, formatMagic[:]...)
	buf = append(buf, formatVersion, mode)

	if mode == wireModeEncrypted {
		if params == nil {
			return 0, fmt.Errorf("encrypted header requires key parameters")
		}
		buf = append(buf, kdfArgon2id)
		buf = binary.BigEndian.AppendUint32(buf, params.Time)
		buf = binary.BigEndian.AppendUint32(buf, params.MemoryKiB)
		buf = append(buf, params.Threads)
		buf = append(buf, byte(len(params.Salt)))
		buf = append(buf, params.Salt...)
		buf = append(buf, byte(len(params.NoncePrefix)))
		buf = append(buf, params.NoncePrefix...)
	}

	n, err := w.Write(buf)
	if err != nil {
		return n, fmt.Errorf("failed to write archive header: %w", err)
	}
	return n, nil
}

// decodeHeader reads and validates the container header, returning the
// decoded header and the number of bytes consumed.
func decodeHeader(r io.Reader) (*header, int64, error) {
	var fixed [6]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return nil, 0, fmt.Errorf("%w: short header", ErrInvalidArchive)
	}
	if !bytes.Equal(fixed[:4], formatMagic[:]) {
		return nil, 0, fmt.Errorf("%w: bad magic", ErrInvalidArchive)
	}
	if fixed[4] != formatVersion {
		return nil, 0, fmt.Errorf("%w: unsupported version %d", ErrInvalidArchive, fixed[4])
	}

	h := &header{mode: fixed[5]}
	consumed := int64(len(fixed))

	switch h.mode {
	case wireModeCompressed:
		return h, consumed, nil
	case wireModeEncrypted:
		params, n, err := decodeKDFParams(r)
		if err != nil {
			return nil, 0, err
		}
		h.params = params
		return h, consumed + n, nil
	default:
		return nil, 0, fmt.Errorf("%w: unknown mode %d", ErrInvalidArchive, h.mode)
	}
}

// decodeKDFParams reads the key-derivation block of an encrypted header.
func decodeKDFParams(r io.Reader) (*crypt.Params, int64, error) {
	var fixed [10]byte // kdfID + timeCost + memoryKiB + parallelism
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return nil, 0, fmt.Errorf("%w: short key parameters", ErrInvalidArchive)
	}
	if fixed[0] != kdfArgon2id {
		return nil, 0, fmt.Errorf("%w: unknown kdf %d", ErrInvalidArchive, fixed[0])
	}

	p := crypt.Params{
		Time:      binary.BigEndian.Uint32(fixed[1:5]),
		MemoryKiB: binary.BigEndian.Uint32(fixed[5:9]),
		Threads:   fixed[9],
	}
	consumed := int64(len(fixed))

	salt, n, err := readLenPrefixed(r, "salt")
	if err != nil {
		return nil, 0, err
	}
	p.Salt = salt
	consumed += n

	prefix, n, err := readLenPrefixed(r, "nonce prefix")
	if err != nil {
		return nil, 0, err
	}
	p.NoncePrefix = prefix
	consumed += n

	if err := p.Validate(); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	return &p, consumed, nil
}

// readLenPrefixed reads a uint8 length followed by that many bytes.
func readLenPrefixed(r io.Reader, what string) ([]byte, int64, error) {
	var lenByte [1]byte
	if _, err := io.ReadFull(r, lenByte[:]); err != nil {
		return nil, 0, fmt.Errorf("%w: short %s length", ErrInvalidArchive, what)
	}
	if lenByte[0] == 0 {
		return nil, 0, fmt.Errorf("%w: empty %s", ErrInvalidArchive, what)
	}
	data := make([]byte, lenByte[0])
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, 0, fmt.Errorf("%w: short %s", ErrInvalidArchive, what)
	}
	return data, 1 + int64(len(data)), nil
}

// wireMode maps a target mode to its container header byte.
func wireMode(m Mode) (byte, error) {
	switch m {
	case ModeCompressed:
		return wireModeCompressed, nil
	case ModeEncrypted:
		return wireModeEncrypted, nil
	default:
		return 0, fmt.Errorf("mode %q has no archive representation", m)
	}
}

// archiveFileName builds the final file name for an archive.
func archiveFileName(name string, typ Type, mode Mode, ts time.Time) string {
	ext := ExtCompressed
	if mode == ModeEncrypted {
		ext = ExtEncrypted
	}
	return fmt.Sprintf("%s_%s_%s%s", name, typ, ts.Format(TimestampLayout), ext)
}

// parseArchiveFileName decodes an archive file name back into its parts.
// Target names may themselves contain underscores, so the name is parsed
// from the right: the last two underscore-separated fields are the type
// and the timestamp.
func parseArchiveFileName(filename string) (info ArchiveInfo, ok bool) {
	base := filename
	switch {
	case strings.HasSuffix(base, ExtEncrypted):
		info.Mode = ModeEncrypted
		base = strings.TrimSuffix(base, ExtEncrypted)
	case strings.HasSuffix(base, ExtCompressed):
		info.Mode = ModeCompressed
		base = strings.TrimSuffix(base, ExtCompressed)
	default:
		return ArchiveInfo{}, false
	}

	tsIdx := strings.LastIndexByte(base, '_')
	if tsIdx < 0 {
		return ArchiveInfo{}, false
	}
	typIdx := strings.LastIndexByte(base[:tsIdx], '_')
	if typIdx < 1 {
		return ArchiveInfo{}, false
	}

	ts, err := time.ParseInLocation(TimestampLayout, base[tsIdx+1:], time.Local)
	if err != nil {
		return ArchiveInfo{}, false
	}
	typ := Type(base[typIdx+1 : tsIdx])
	if !typ.Valid() {
		return ArchiveInfo{}, false
	}

	info.Name = filename
	info.Target = base[:typIdx]
	info.Type = typ
	info.CreatedAt = ts
	return info, true
}
