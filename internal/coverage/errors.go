package coverage

import (
	"errors"
	"fmt"
)

// ErrNoZonesFound means the query was valid but no zone intersects the extent.
var ErrNoZonesFound = errors.New("no DGGS zones found for extent")

// UpstreamError is a hard failure talking to the DGGS service. Zone is empty when zone
// resolution itself failed.
type UpstreamError struct {
	Zone string
	Err  error
}

func (e *UpstreamError) Error() string {
	if e.Zone == "" {
		return fmt.Sprintf("dggs upstream: %v", e.Err)
	}
	return fmt.Sprintf("dggs upstream (zone %s): %v", e.Zone, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// PersistError wraps any failure of FetchAndPersist, including the coverage query itself.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist coverage to %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
