package core

// Logger is the leveled logger consumed across the app.
// Implementations may pick well-known types out of args (eg. a user.User to
// attach the acting account to an error report).
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
