package cacheclient

// Fields carries structured context with a log line. Providers always set
// "provider"; faults add "op" and "err".
type Fields map[string]any

// Logger receives provider diagnostics:
//
//	Debug  namespace generations created or adopted, increment retries, GC sweeps
//	Warn   backend faults reported as connection failures
//
// Adapters for common stacks live in log/zap, log/logrus and log/slog.
// A nil Config.Logger disables logging.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}
