package exitcode

// Exit codes for term-chat commands
const (
	Success     = 0
	Error       = 1
	NotFound    = 2
	Unavailable = 3
	Cancelled   = 130 // 128 + SIGINT
)

// ExitError is an error that carries a specific exit code
type ExitError struct {
	Code    int
	Message string
}

func (e ExitError) Error() string {
	return e.Message
}

// Convenience constructors
func Missing(msg string) ExitError   { return ExitError{Code: NotFound, Message: msg} }
func NoBackend(msg string) ExitError { return ExitError{Code: Unavailable, Message: msg} }
func Cancel() ExitError              { return ExitError{Code: Cancelled, Message: "cancelled"} }
func Failed(msg string) ExitError    { return ExitError{Code: Error, Message: msg} }
