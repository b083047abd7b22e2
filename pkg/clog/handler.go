package clog

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/apex/log"
)

// Handler writes one line per entry: level, timestamp, message, then the fields
// sorted by name.
type Handler struct {
	mu     sync.Mutex
	Writer io.WriteCloser
}

var levelToStrings = [...]string{
	log.DebugLevel: "DEBUG",
	log.InfoLevel:  "INFO",
	log.WarnLevel:  "WARN",
	log.ErrorLevel: "ERROR",
	log.FatalLevel: "FATAL",
}

func NewHandler(w io.WriteCloser) *Handler {
	return &Handler{Writer: w}
}

func (h *Handler) SetOutput(w io.WriteCloser) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closeWriter()
	h.Writer = w
}

func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closeWriter()
}

// closeWriter never closes the process's stdout or stderr.
func (h *Handler) closeWriter() {
	if h.Writer == nil || h.Writer == os.Stdout || h.Writer == os.Stderr {
		return
	}
	_ = h.Writer.Close()
}

func (h *Handler) HandleLog(e *log.Entry) error {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b bytes.Buffer
	_, _ = fmt.Fprintf(&b, "%5s %s %-25s", levelToStrings[e.Level], e.Timestamp.Format("2006-01-02 15:04:05.000"), e.Message)

	for _, name := range names {
		_, _ = fmt.Fprintf(&b, " %s=%v", name, e.Fields[name])
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, _ = fmt.Fprintln(h.Writer, b.String())

	return nil
}
