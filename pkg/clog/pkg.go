package clog

import (
	"io"
	"os"

	"github.com/apex/log"
)

var clogger = NewContextLogger(os.Stderr)

func Default() *ContextLogger {
	return clogger
}

func AddLoggingContext(ctx string, w io.WriteCloser) {
	clogger.AddLoggingContext(ctx, w)
}

func RemoveLoggingContext(ctx string) {
	clogger.RemoveLoggingContext(ctx)
}

func Contexts() []string {
	return clogger.Contexts()
}

func SetLevel(ctx string, level log.Level) error {
	return clogger.SetLevel(ctx, level)
}

func SetGlobalLoggerLevel(level log.Level) {
	_ = clogger.SetLevel(GlobalLoggerCtx, level)
}

func SetLevelFromString(ctx, s string) error {
	return clogger.SetLevelFromString(ctx, s)
}

func SetOutput(ctx string, w io.WriteCloser) error {
	return clogger.SetOutput(ctx, w)
}

func UsingCtx(ctx string) *log.Entry {
	return clogger.UsingCtx(ctx)
}

func Global() *log.Entry {
	return clogger.Global()
}
