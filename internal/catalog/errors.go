package catalog

import "fmt"

// NotFoundError is returned when a dataset name is not registered in the
// catalog.
type NotFoundError struct {
	Name      string
	Available []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("dataset %q is not registered in the catalog (available: %v)", e.Name, e.Available)
}
