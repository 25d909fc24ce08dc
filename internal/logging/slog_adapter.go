// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// slogBridge forwards slog records into zerolog. The supervision tree
// logs through sutureslog, which expects an *slog.Logger; the bridge
// keeps those lines in the same stream and format as everything else.
type slogBridge struct {
	logger zerolog.Logger
	prefix string // dotted group path, "" at the root
	bound  []boundAttr
}

// boundAttr is an attribute attached via WithAttrs, with its group
// prefix already folded into the key.
type boundAttr struct {
	key string
	val slog.Value
}

// NewSlogLogger returns an slog.Logger whose records land in the global
// zerolog logger. Hand it to sutureslog:
//
//	handler := &sutureslog.Handler{Logger: logging.NewSlogLogger()}
func NewSlogLogger() *slog.Logger {
	return slog.New(&slogBridge{logger: Logger()})
}

// newSlogBridge wraps a specific zerolog logger. Tests use this to
// capture output.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func newSlogBridge(logger zerolog.Logger) *slogBridge {
	return &slogBridge{logger: logger}
}

// Enabled reports whether records at level would be written.
func (b *slogBridge) Enabled(_ context.Context, level slog.Level) bool {
	return bridgeLevel(level) >= b.logger.GetLevel()
}

// Handle writes one record.
//
//nolint:gocritic // slog.Record is passed by value per slog.Handler
func (b *slogBridge) Handle(_ context.Context, record slog.Record) error {
	event := b.logger.WithLevel(bridgeLevel(record.Level))
	for _, a := range b.bound {
		event = writeValue(event, a.key, a.val)
	}
	record.Attrs(func(attr slog.Attr) bool {
		event = writeValue(event, b.prefix+attr.Key, attr.Value)
		return true
	})
	event.Msg(record.Message)
	return nil
}

// WithAttrs returns a bridge carrying the attributes on every record.
func (b *slogBridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return b
	}
	bound := make([]boundAttr, 0, len(b.bound)+len(attrs))
	bound = append(bound, b.bound...)
	for _, attr := range attrs {
		bound = append(bound, boundAttr{key: b.prefix + attr.Key, val: attr.Value})
	}
	return &slogBridge{logger: b.logger, prefix: b.prefix, bound: bound}
}

// WithGroup returns a bridge that prefixes later attribute keys with
// the group name.
func (b *slogBridge) WithGroup(name string) slog.Handler {
	if name == "" {
		return b
	}
	return &slogBridge{logger: b.logger, prefix: b.prefix + name + ".", bound: b.bound}
}

// writeValue appends one attribute to the event, flattening groups into
// dotted keys.
func writeValue(event *zerolog.Event, key string, val slog.Value) *zerolog.Event {
	val = val.Resolve()
	switch val.Kind() {
	case slog.KindString:
		return event.Str(key, val.String())
	case slog.KindInt64:
		return event.Int64(key, val.Int64())
	case slog.KindUint64:
		return event.Uint64(key, val.Uint64())
	case slog.KindFloat64:
		return event.Float64(key, val.Float64())
	case slog.KindBool:
		return event.Bool(key, val.Bool())
	case slog.KindDuration:
		return event.Dur(key, val.Duration())
	case slog.KindTime:
		return event.Time(key, val.Time())
	case slog.KindGroup:
		for _, member := range val.Group() {
			event = writeValue(event, key+"."+member.Key, member.Value)
		}
		return event
	default:
		return event.Interface(key, val.Any())
	}
}

// bridgeLevel maps slog levels onto zerolog's. Levels below debug
// collapse into debug; suture never logs lower.
func bridgeLevel(level slog.Level) zerolog.Level {
	switch {
	case level >= slog.LevelError:
		return zerolog.ErrorLevel
	case level >= slog.LevelWarn:
		return zerolog.WarnLevel
	case level >= slog.LevelInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}
