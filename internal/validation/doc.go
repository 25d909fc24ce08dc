// InLocker - Local Backup and Restore Engine
// Copyright 2026 B. Loureiro (beloureiro)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/beloureiro/inlocker

// Package validation wraps go-playground/validator v10 behind a
// thread-safe singleton with the custom rules the configuration needs.
//
// Example:
//
//	type Target struct {
//	    Name string `validate:"required,targetname"`
//	    Mode string `validate:"oneof=copy compressed encrypted"`
//	}
//
//	if err := validation.ValidateStruct(&t); err != nil {
//	    return err // *StructError with per-field details
//	}
package validation
