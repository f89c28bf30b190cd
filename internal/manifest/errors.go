package manifest

import "errors"

var (
	// ErrNotFound indicates the requested manifest or summary was not found.
	ErrNotFound = errors.New("manifest not found")

	// ErrDuplicateActive indicates another active manifest already exists
	// for the same (driver, day). The losing writer retries as an append.
	ErrDuplicateActive = errors.New("active manifest already exists for driver and day")
)
