package workflow

import "errors"

var (
	ErrEmptySource            = errors.New("please upload a file or paste contract code")
	ErrBusy                   = errors.New("another operation is already in progress")
	ErrInvalidStage           = errors.New("operation is not available in the current stage")
	ErrNoFixedCode            = errors.New("no fixed code available for deployment")
	ErrNoDeployment           = errors.New("no deployment data available for minting")
	ErrMissingConstructorArgs = errors.New("missing constructor arguments")
)

// IsValidationError reports whether err was caused by caller input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptySource) || errors.Is(err, ErrMissingConstructorArgs)
}

// IsConflictError reports whether err rejects an operation because of the
// current stage.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrBusy) ||
		errors.Is(err, ErrInvalidStage) ||
		errors.Is(err, ErrNoFixedCode) ||
		errors.Is(err, ErrNoDeployment)
}
