package logger

// NullLogger discards everything. Useful in tests.
type NullLogger struct{}

func NewNullLogger() *NullLogger { return &NullLogger{} }

func (n *NullLogger) Debug(string, ...any) {}
func (n *NullLogger) Info(string, ...any)  {}
func (n *NullLogger) Error(string, ...any) {}
