// Package collector contains the per-source adapters that turn each
// retailer's API into the common NormalizedRecord stream. Collectors own
// their session material, category traversal, pagination and request
// pacing; the ingestion layer only sees records and two error classes.
package collector

import (
	"context"
	"errors"

	"pricetrack/tracker-service/internal/app/tracker/entity"
)

var (
	// ErrAuthenticationExpired signals that the source rejected the
	// collector's session/cookie. Credentials need manual renewal; the
	// orchestrator reports the source and moves on.
	ErrAuthenticationExpired = errors.New("authentication expired")

	// ErrNetwork wraps transient transport failures that survived the
	// collector's bounded retries.
	ErrNetwork = errors.New("network error")
)

// Collector produces one source's normalized records.
type Collector interface {
	SourceID() string

	// Collect streams records through emit in source order. Returning a
	// non-nil error from emit stops the stream and is passed back to the
	// caller. Collect itself fails with ErrAuthenticationExpired or a
	// wrapped ErrNetwork on source-level trouble.
	Collect(ctx context.Context, emit func(entity.NormalizedRecord) error) error
}
