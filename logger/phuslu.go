package logger

import (
	"fmt"

	phlog "github.com/oarkflow/log"
)

// PhusluLogger emits through the phuslu-style phlog package. This is the
// default logger for the engine so degraded builds are operator-visible
// without any wiring.
type PhusluLogger struct{}

func NewPhusluLogger() *PhusluLogger { return &PhusluLogger{} }

func (p *PhusluLogger) Debug(msg string, keyvals ...any) { emit(phlog.Debug(), msg, keyvals) }
func (p *PhusluLogger) Info(msg string, keyvals ...any)  { emit(phlog.Info(), msg, keyvals) }
func (p *PhusluLogger) Error(msg string, keyvals ...any) { emit(phlog.Error(), msg, keyvals) }

func emit(b *phlog.Entry, msg string, keyvals []any) {
	for i := 0; i < len(keyvals)-1; i += 2 {
		ks := fmt.Sprint(keyvals[i])
		switch vv := keyvals[i+1].(type) {
		case string:
			b = b.Str(ks, vv)
		case bool:
			b = b.Bool(ks, vv)
		case int:
			b = b.Int(ks, vv)
		case error:
			b = b.Str(ks, vv.Error())
		default:
			b = b.Any(ks, vv)
		}
	}
	b.Msg(msg)
}
