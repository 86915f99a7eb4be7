package logger

import (
	"errors"
	"strconv"
	"time"
)

// TraceKind classifies a traced statement
type TraceKind int

const (
	TraceExecuted TraceKind = iota
	TraceSlow
	TraceFailed
)

func (k TraceKind) String() string {
	switch k {
	case TraceSlow:
		return "SLOW SQL executed"
	case TraceFailed:
		return "SQL failed"
	}
	return "SQL executed"
}

// TraceEvent a statement traced by a logger, shared by every adapter
type TraceEvent struct {
	Kind    TraceKind
	Elapsed time.Duration
	SQL     string
	Rows    int64
	Err     error
}

func (e TraceEvent) Millis() float64 {
	return float64(e.Elapsed.Nanoseconds()) / 1e6
}

// RowsString rows affected, "-" when unknown
func (e TraceEvent) RowsString() string {
	if e.Rows == -1 {
		return "-"
	}
	return strconv.FormatInt(e.Rows, 10)
}

// newTraceEvent decides whether a statement is logged under config, fc is only called when it is
func newTraceEvent(config Config, begin time.Time, fc func() (string, int64), err error) (TraceEvent, bool) {
	if config.LogLevel <= Silent {
		return TraceEvent{}, false
	}

	e := TraceEvent{Elapsed: time.Since(begin), Err: err}
	switch {
	case err != nil && config.LogLevel >= Error && (!errors.Is(err, ErrRecordNotFound) || !config.IgnoreRecordNotFoundError):
		e.Kind = TraceFailed
	case config.SlowThreshold != 0 && e.Elapsed > config.SlowThreshold && config.LogLevel >= Warn:
		e.Kind = TraceSlow
	case config.LogLevel == Info:
		e.Kind = TraceExecuted
	default:
		return TraceEvent{}, false
	}

	e.SQL, e.Rows = fc()
	return e, true
}
