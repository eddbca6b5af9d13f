package transit

import "errors"

// Sentinel errors for catalog and upstream operations.
var (
	// ErrUpstream indicates a network or HTTP failure calling an operator API.
	ErrUpstream = errors.New("upstream request failed")
	// ErrRouteNotExist indicates the route number is absent from the catalog.
	ErrRouteNotExist = errors.New("route does not exist")
	// ErrStopNotExist indicates the stop id is absent from the resolved stop list.
	ErrStopNotExist = errors.New("stop does not exist")
	// ErrServiceTypeNotExist indicates the service type is absent for the route and direction.
	ErrServiceTypeNotExist = errors.New("service type does not exist")
	// ErrEmptyRoute indicates the catalog yielded zero stops for a nominally valid key.
	ErrEmptyRoute = errors.New("route has no stops")
)

// Error provides detailed error information from a transit operator lookup.
type Error struct {
	Company Company // Operator the lookup was made against
	Code    string  // Short machine-readable code
	Message string  // Human-readable message
	Err     error   // Underlying sentinel or transport error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a domain error wrapping one of the sentinel errors.
func NewError(c Company, code, message string, err error) *Error {
	return &Error{Company: c, Code: code, Message: message, Err: err}
}

// IsCatalogMiss reports whether err is a catalog-resolution failure that a
// caller should surface as an invalid query rather than a system fault.
func IsCatalogMiss(err error) bool {
	return errors.Is(err, ErrRouteNotExist) ||
		errors.Is(err, ErrStopNotExist) ||
		errors.Is(err, ErrServiceTypeNotExist) ||
		errors.Is(err, ErrEmptyRoute)
}
