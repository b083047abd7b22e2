// Package clog keeps one apex logger per named context. The pipeline stages each log
// through their own context so their level and output can be changed independently
// at runtime; contexts without a dedicated logger fall back to the global one.
package clog

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/apex/log"
)

type ContextLogger struct {
	GlobalLogger   *log.Logger
	ContextLoggers sync.Map
}

const GlobalLoggerCtx = "global"

func NewContextLogger(globalLoggerWriter io.WriteCloser) *ContextLogger {
	return &ContextLogger{
		GlobalLogger: &log.Logger{
			Handler: NewHandler(globalLoggerWriter),
			Level:   log.InfoLevel,
		},
	}
}

// AddLoggingContext gives ctx its own logger writing to w, starting at the level of the
// global logger.
func (l *ContextLogger) AddLoggingContext(ctx string, w io.WriteCloser) {
	logger := &log.Logger{
		Handler: NewHandler(w),
		Level:   l.GlobalLogger.Level,
	}

	if old, loaded := l.ContextLoggers.Swap(ctx, logger); loaded {
		if h := loggerInterfaceToHandler(old); h != nil {
			h.Close()
		}
	}
}

func (l *ContextLogger) RemoveLoggingContext(ctx string) {
	logger, ok := l.ContextLoggers.LoadAndDelete(ctx)
	if !ok {
		return
	}

	if handler := loggerInterfaceToHandler(logger); handler != nil {
		handler.Close()
	}
}

// Contexts lists the contexts that have a dedicated logger.
func (l *ContextLogger) Contexts() []string {
	var contexts []string
	l.ContextLoggers.Range(func(key, _ any) bool {
		contexts = append(contexts, key.(string))
		return true
	})
	sort.Strings(contexts)
	return contexts
}

func (l *ContextLogger) SetLevel(ctx string, level log.Level) error {
	if ctx == GlobalLoggerCtx {
		l.GlobalLogger.Level = level
		return nil
	}

	clogger := l.getContextLogger(ctx)
	if clogger == nil {
		return fmt.Errorf("no such logging context %s", ctx)
	}
	clogger.Level = level

	return nil
}

func (l *ContextLogger) SetLevelFromString(ctx, s string) error {
	level, err := log.ParseLevel(s)
	if err != nil {
		return err
	}

	return l.SetLevel(ctx, level)
}

func (l *ContextLogger) SetOutput(ctx string, w io.WriteCloser) error {
	var handler *Handler
	if ctx == GlobalLoggerCtx {
		handler, _ = l.GlobalLogger.Handler.(*Handler)
	} else {
		handler = loggerInterfaceToHandler(l.getContextLogger(ctx))
	}

	if handler == nil {
		return fmt.Errorf("no such logging context %s", ctx)
	}

	handler.SetOutput(w)
	return nil
}

// UsingCtx returns an entry tagged with ctx, logging through the context's own logger
// when one was added.
func (l *ContextLogger) UsingCtx(ctx string) *log.Entry {
	if logger := l.getContextLogger(ctx); logger != nil {
		return logger.WithField("ctx", ctx)
	}
	return l.GlobalLogger.WithField("ctx", ctx)
}

func (l *ContextLogger) Global() *log.Entry {
	return l.GlobalLogger.WithField("ctx", GlobalLoggerCtx)
}

func (l *ContextLogger) getContextLogger(ctx string) *log.Logger {
	logger, ok := l.ContextLoggers.Load(ctx)
	if !ok {
		return nil
	}

	clogger, _ := logger.(*log.Logger)
	return clogger
}

func loggerInterfaceToHandler(logger interface{}) *Handler {
	clogger, ok := logger.(*log.Logger)
	if !ok || clogger == nil {
		return nil
	}

	h, _ := clogger.Handler.(*Handler)
	return h
}
