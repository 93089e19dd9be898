// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package batchdist

import "github.com/pkg/errors"

var (
	// ErrShapeMismatch is returned when inputs or the operation's result don't have the expected shape.
	// Use errors.Is to test for it: returned errors carry more context.
	ErrShapeMismatch = errors.New("batchdist: shape mismatch")

	// ErrInvalidConfiguration is returned for invalid Evaluator options, or when the configured result index
	// doesn't match the operation's results.
	ErrInvalidConfiguration = errors.New("batchdist: invalid configuration")
)
