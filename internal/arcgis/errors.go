package arcgis

import "fmt"

// FetchError is any failure talking to the upstream feature service:
// network trouble, a non-2xx status, a malformed body, or an in-body
// service error. Nothing is persisted when one is returned.
type FetchError struct {
	Op     string // "query", "count", "distinct", "info"
	URL    string
	Status int // HTTP status when relevant, else 0
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("arcgis %s %s: status %d: %v", e.Op, e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("arcgis %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
