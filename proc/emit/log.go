package emit

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// ZerologEmitter writes one structured JSON line per event using
// zerolog. Events carrying an "error" meta key log at error level,
// everything else at info.
//
// Example output:
//
//	{"level":"info","run_id":"run-001","path":"2.0","step":"Add","time":"...","message":"step completed"}
//
// Usage:
//
//	emitter := emit.NewZerologEmitter(os.Stderr)
//	exec := proc.NewExecutor(p, proc.WithEmitter(emitter))
type ZerologEmitter struct {
	log zerolog.Logger
}

// NewZerologEmitter creates an emitter writing JSON lines to w. A nil
// writer falls back to stderr. Wrap w in zerolog.ConsoleWriter for
// human-readable output.
func NewZerologEmitter(w io.Writer) *ZerologEmitter {
	if w == nil {
		w = os.Stderr
	}
	return &ZerologEmitter{log: zerolog.New(w).With().Timestamp().Logger()}
}

// NewZerologEmitterWithLogger wraps an existing logger, letting the
// caller share one configured logger across the application.
func NewZerologEmitterWithLogger(log zerolog.Logger) *ZerologEmitter {
	return &ZerologEmitter{log: log}
}

// Emit writes the event as one log line.
func (z *ZerologEmitter) Emit(event Event) {
	ev := z.log.Info()
	if _, failed := event.Meta["error"]; failed {
		ev = z.log.Error()
	}
	ev.Str("run_id", event.RunID).
		Str("path", event.Path).
		Str("step", event.Step).
		Fields(event.Meta).
		Msg(event.Msg)
}
