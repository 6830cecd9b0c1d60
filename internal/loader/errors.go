package loader

import "fmt"

// DataSourceError reports a source file that cannot be used at all:
// missing, unreadable, or without the expected columns.
type DataSourceError struct {
	Path   string
	Reason string
	Err    error
}

func (e *DataSourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data source %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("data source %s: %s", e.Path, e.Reason)
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}
