// Package recorder implements the event-recording pipeline: validate the
// submission, fetch a metadata snapshot, append the event, and derive
// co-installation pairs for installs.
package recorder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkgpulse/pkgpulse/internal/models"
	"github.com/pkgpulse/pkgpulse/internal/store"
)

// futureTolerance is how far ahead of server time a submitted event
// timestamp may be.
const futureTolerance = 5 * time.Minute

// ValidationError reports a malformed submission. It is returned before
// any side effect; nothing is written when validation fails.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// parseEventTime accepts ISO-8601 timestamps with an offset (RFC3339) or
// without one, in which case UTC is assumed. A fractional second is
// accepted in either form.
func parseEventTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02T15:04:05", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// Fetcher resolves a package name to its metadata snapshot. Fetch failures
// must degrade to all-absent metadata, never to an error.
type Fetcher interface {
	Lookup(ctx context.Context, name string) models.Metadata
}

// Recorder orchestrates one event submission as a logical unit of work.
type Recorder struct {
	store   *store.Store
	fetcher Fetcher
	now     func() time.Time
}

// New builds a Recorder over the given store and metadata fetcher.
func New(st *store.Store, f Fetcher) *Recorder {
	return &Recorder{
		store:   st,
		fetcher: f,
		now:     time.Now,
	}
}

// Record validates and persists one event. The metadata fetch completes
// before any write begins, and a failed fetch still records the event with
// absent metadata. For installs, one co-installation pair is derived per
// distinct package installed within the preceding hour; duplicate pairs are
// dropped silently by the store's uniqueness constraint.
func (r *Recorder) Record(ctx context.Context, req models.EventRequest) error {
	pkg := strings.TrimSpace(req.Package)
	if pkg == "" {
		return &ValidationError{Field: "package", Reason: "package name cannot be empty"}
	}

	et := models.EventType(req.Type)
	if !et.Valid() {
		return &ValidationError{Field: "type", Reason: `event type must be "install" or "uninstall"`}
	}

	ts, err := parseEventTime(req.Timestamp)
	if err != nil {
		return &ValidationError{Field: "timestamp", Reason: "timestamp must be an ISO-8601 datetime"}
	}

	if ts.After(r.now().UTC().Add(futureTolerance)) {
		return &ValidationError{Field: "timestamp", Reason: "timestamp cannot be in the future"}
	}

	md := r.fetcher.Lookup(ctx, pkg)

	// The store commits the event and any derived pairs as one
	// transaction, so a recording reported as failed wrote nothing.
	if _, err := r.store.RecordEvent(ctx, ts, pkg, et, md); err != nil {
		return fmt.Errorf("record event: %w", err)
	}

	return nil
}
