package i

// Logger is the logging surface every component depends on.
type Logger interface {
	Debug(string)
	Info(string)
	Warning(string)
	Error(string)
}
