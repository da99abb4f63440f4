package rgstore

import (
	"errors"

	"github.com/databio/rgstore/internal/layout"
	"github.com/databio/rgstore/internal/remote"
)

var (
	// ErrNotFound reports a digest, name, or alias with no entry.
	// Absence is a normal outcome for lookups, never a failure class;
	// match with errors.Is.
	ErrNotFound = errors.New("rgstore: not found")

	// ErrInvalidRange reports start > end or end > length in batch
	// region retrieval, which fails the whole batch.
	ErrInvalidRange = errors.New("rgstore: invalid range")

	// ErrFetchFailed reports a remote fetch failure, scoped to the
	// identifier being resolved.
	ErrFetchFailed = remote.ErrFetch

	// ErrUnsafePath reports a manifest or template path that would
	// escape the store directory.
	ErrUnsafePath = layout.ErrUnsafePath
)
