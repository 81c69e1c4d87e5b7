// internal/agent/errors.go
package agent

// ErrorCode classifies step-level execution failures for history records and
// logs. These feed back into the planner prompt so the model can route around
// them.
type ErrorCode string

const (
	ErrCodeElementNotFound ErrorCode = "ELEMENT_NOT_FOUND"
	ErrCodeOptionNotFound  ErrorCode = "OPTION_NOT_FOUND"
	ErrCodeNotASelect      ErrorCode = "NOT_A_SELECT"
	ErrCodeBadDirection    ErrorCode = "UNKNOWN_SCROLL_DIRECTION"
	ErrCodeNavigateFailed  ErrorCode = "NAVIGATE_FAILED"
	ErrCodeInteraction     ErrorCode = "INTERACTION_FAILED"
)

// stepError pairs a classification code with the underlying failure so the
// executor can report both into the step record.
type stepError struct {
	code ErrorCode
	err  error
}

func (e *stepError) Error() string { return string(e.code) + ": " + e.err.Error() }
func (e *stepError) Unwrap() error { return e.err }

func newStepError(code ErrorCode, err error) *stepError {
	return &stepError{code: code, err: err}
}
