package core

// Logger is any leveled logger the app can report to.
// args may carry an error, a map of extra data and/or the acting user's
// identity; implementations decide what to do with each.
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// LoggedUser identifies the acting user on a log record.
type LoggedUser struct {
	ID       string
	Username string
	Email    string
}
