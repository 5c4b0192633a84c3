/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package slotengine

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is matched by every request validation failure.
var ErrInvalidInput = errors.New("invalid scheduling input")

// InputError names the offending field.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidInput, e.Field, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

func invalid(field, reason string) error {
	return &InputError{Field: field, Reason: reason}
}
