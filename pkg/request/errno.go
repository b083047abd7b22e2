package request

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Errno returns the POSIX error code behind err. Errors that do not carry one map to EIO.
func Errno(err error) unix.Errno {
	if err == nil {
		return 0
	}

	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}

	if errno, ok := errors.Cause(err).(unix.Errno); ok {
		return errno
	}

	return unix.EIO
}

// Info is a point in time view of a request used for diagnostics.
type Info struct {
	ID             uint64 `json:"id"`
	Kind           string `json:"kind"`
	State          string `json:"state"`
	Error          string `json:"error,omitempty"`
	ActiveChildren int32  `json:"active_children"`
	Refs           int32  `json:"refs"`
	Waiters        int32  `json:"waiters"`
	ParentID       uint64 `json:"parent_id,omitempty"`
	Age            string `json:"age"`
}

func (r *Request) Info() Info {
	r.mu.Lock()
	info := Info{
		ID:    r.id,
		Kind:  r.kind.String(),
		State: r.state.String(),
	}
	if r.err != nil {
		info.Error = r.err.Error()
	}
	r.mu.Unlock()

	info.ActiveChildren = r.activeChildren.Load()
	info.Refs = r.refs.Load()
	info.Waiters = r.waiters.Load()
	info.Age = time.Since(r.created).Round(time.Millisecond).String()
	if r.parent != nil {
		info.ParentID = r.parent.id
	}

	return info
}
