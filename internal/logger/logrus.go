package logger

import (
	"context"

	"github.com/sirupsen/logrus"
)

type ctxKey int

const (
	ctxKeyLog ctxKey = iota
)

// Entry returns the log entry carried by ctx, or a plain entry on the
// standard logger when none was installed. Library packages log through
// this so the CLI controls level and formatting in one place.
func Entry(ctx context.Context) *logrus.Entry {
	v := ctx.Value(ctxKeyLog)
	if e, ok := v.(*logrus.Entry); ok {
		return e
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

func WithLogEntry(ctx context.Context, e *logrus.Entry) context.Context {
	return context.WithValue(ctx, ctxKeyLog, e)
}
