package core

// Logger reports messages and errors.
// args may hold errors and LogFields, anything else is printed as is.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// LogFields are attached to the log entry as structured fields.
type LogFields map[string]interface{}
