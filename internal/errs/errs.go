// Package errs classifies failures so the CLI can decide whether a stage
// aborts and which exit code it reports.
package errs

import "errors"

// Kind is the category of a failure.
type Kind int

const (
	// KindUnknown is any error that was never classified.
	KindUnknown Kind = iota
	// KindConfiguration is a missing file, pattern or setting.
	KindConfiguration
	// KindExternalService is a hosting API, registry or messaging endpoint failure.
	KindExternalService
	// KindStateConflict is a branch, pull request or release that already exists.
	KindStateConflict
	// KindValidation is a request that does not make sense for the current state.
	KindValidation
)

// String returns the name used in log output.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindExternalService:
		return "external_service"
	case KindStateConflict:
		return "state_conflict"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error attaches a Kind to an underlying error.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Configuration marks err as a ConfigurationError.
func Configuration(err error) error { return wrap(KindConfiguration, err) }

// ExternalService marks err as an ExternalServiceError.
func ExternalService(err error) error { return wrap(KindExternalService, err) }

// StateConflict marks err as a StateConflictError.
func StateConflict(err error) error { return wrap(KindStateConflict, err) }

// Validation marks err as a ValidationError.
func Validation(err error) error { return wrap(KindValidation, err) }

// KindOf returns the outermost Kind found in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
