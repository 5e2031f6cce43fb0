package core

// Actor identifies the authenticated user an error or event belongs to.
// Passed as a plain log arg; implementations may give it special treatment.
type Actor struct {
	ID       string
	Username string
	Email    string
}

// Logger is the application-wide logging contract.
// Implementations live in services/logger.
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}
