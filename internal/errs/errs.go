// Package errs defines the closed error taxonomy used across the kernel:
// Container, Scanner, ProviderRegistry, EventBus and HttpDispatcher all
// return *Error so callers can switch on Code rather than parse strings.
package errs

import "fmt"

// Error codes, one per taxonomy entry in spec §7.
const (
	CodeConfigError           = "CONFIG_ERROR"
	CodeScanError             = "SCAN_ERROR"
	CodeDuplicateRegistration = "DUPLICATE_REGISTRATION"
	CodeDuplicateProvider     = "DUPLICATE_PROVIDER"
	CodeUnknownCategory       = "UNKNOWN_CATEGORY"
	CodeBeanNotFound          = "BEAN_NOT_FOUND"
	CodeCircularDependency    = "CIRCULAR_DEPENDENCY"
	CodeDuplicateRoute        = "DUPLICATE_ROUTE"
	CodeBindError             = "BIND_ERROR"
	CodeHandlerError          = "HANDLER_ERROR"
	CodeBusClosed             = "BUS_CLOSED"
)

// Error carries a diagnostic code, message, optional cause and context,
// patterned on xraph-vessel/errors.go's code+context shape but built on
// the standard library (go-utils/errs is not retrievable as full source
// anywhere in the pack, so it cannot be grounded or imported).
type Error struct {
	Code    string
	Message string
	Cause   error
	Context map[string]any
}

func New(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext attaches a diagnostic key/value pair and returns the receiver.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ConfigError reports an unreadable tag or unknown scan root.
func ConfigError(message string, cause error) *Error {
	return New(CodeConfigError, message, cause)
}

// ScanError reports malformed metadata on a discovered type.
func ScanError(typeName string, cause error) *Error {
	return New(CodeScanError, fmt.Sprintf("malformed metadata on %s", typeName), cause).
		WithContext("type", typeName)
}

// DuplicateRegistration reports a type registered twice in the Container.
func DuplicateRegistration(typeName string) *Error {
	return New(CodeDuplicateRegistration, fmt.Sprintf("type %q already registered", typeName), nil).
		WithContext("type", typeName)
}

// DuplicateProvider reports a (category, name) pair registered twice.
func DuplicateProvider(category, name string) *Error {
	return New(CodeDuplicateProvider, fmt.Sprintf("provider %q already registered in category %q", name, category), nil).
		WithContext("category", category).
		WithContext("name", name)
}

// UnknownCategory reports registration against an uninitialized category.
func UnknownCategory(category string) *Error {
	return New(CodeUnknownCategory, fmt.Sprintf("unknown provider category %q", category), nil).
		WithContext("category", category)
}

// BeanNotFound reports a constructor parameter that cannot be resolved.
func BeanNotFound(missing, requiredBy string) *Error {
	return New(CodeBeanNotFound, fmt.Sprintf("bean %q required by %q not found", missing, requiredBy), nil).
		WithContext("missing", missing).
		WithContext("requiredBy", requiredBy)
}

// CircularDependency reports a bean construction cycle.
func CircularDependency(chain []string) *Error {
	return New(CodeCircularDependency, fmt.Sprintf("circular dependency: %v", chain), nil).
		WithContext("chain", chain)
}

// DuplicateRoute reports two handlers sharing (method, path).
func DuplicateRoute(method, path string) *Error {
	return New(CodeDuplicateRoute, fmt.Sprintf("route %s %s already registered", method, path), nil).
		WithContext("method", method).
		WithContext("path", path)
}

// BindError reports a handler parameter that cannot be bound.
func BindError(param string, cause error) *Error {
	return New(CodeBindError, fmt.Sprintf("failed to bind parameter %q", param), cause).
		WithContext("param", param)
}

// HandlerError reports a user handler that threw/returned an error.
func HandlerError(route string, cause error) *Error {
	return New(CodeHandlerError, fmt.Sprintf("handler for %q failed", route), cause).
		WithContext("route", route)
}

// BusClosed reports a bus operation attempted after close.
func BusClosed() *Error {
	return New(CodeBusClosed, "event bus is closed", nil)
}

// Is reports whether err (or anything it wraps) carries the given code.
func Is(err error, code string) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Code == code {
				return true
			}
			err = e.Cause
			continue
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
