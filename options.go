// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package mpq

import (
	"io"
	"log/slog"
)

// Option configures an Archive when it is opened.
type Option func(*config)

type config struct {
	cacheSize       int
	logger          *slog.Logger
	strictChecksums bool
}

func defaultConfig() config {
	return config{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithCache keeps up to n decoded files in an adaptive replacement cache.
// Callers still receive their own copy of the content.
func WithCache(n int) Option {
	return func(c *config) { c.cacheSize = n }
}

// WithLogger sets the logger used for non-fatal problems such as sector
// checksum mismatches. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStrictChecksums turns sector checksum mismatches into ErrCorruptData
// instead of logged warnings.
func WithStrictChecksums(strict bool) Option {
	return func(c *config) { c.strictChecksums = strict }
}
