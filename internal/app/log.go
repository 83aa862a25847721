package app

import (
	"context"
	"io"
	"maps"
	"slices"

	"github.com/charmbracelet/log"
	"go.trai.ch/zerr"
)

// newLogger creates a logger with "HH:MM:SS.ms" timestamps.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

type ctxKey int

const loggerKey ctxKey = 0

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the logger stored by withLogger, or the
// package default.
func loggerFromContext(ctx context.Context) *log.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
			return l
		}
	}
	return log.Default()
}

// LogErrorDetails writes the metadata attached anywhere in err's chain at
// debug level.
func LogErrorDetails(logger *log.Logger, err error) {
	meta := make(map[string]any)
	collectMetadata(err, meta)
	if len(meta) == 0 {
		return
	}

	kv := make([]any, 0, 2*len(meta))
	for _, k := range slices.Sorted(maps.Keys(meta)) {
		kv = append(kv, k, meta[k])
	}
	logger.Debug("error details", kv...)
}

// collectMetadata walks err depth first. Outer values win over inner ones.
func collectMetadata(err error, into map[string]any) {
	if err == nil {
		return
	}
	if ze, ok := err.(*zerr.Error); ok {
		for k, v := range ze.Metadata() {
			if _, seen := into[k]; !seen {
				into[k] = v
			}
		}
	}
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		collectMetadata(u.Unwrap(), into)
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			collectMetadata(e, into)
		}
	}
}
