// Package striping describes how a file is cut into fixed size objects that are spread
// round robin over a fixed number of storage node slots.
package striping

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type Kind int

const (
	RAID0 Kind = iota
	RAID5
	Unknown
)

func ParseKind(s string) Kind {
	switch s {
	case "RAID0":
		return RAID0
	case "RAID5":
		return RAID5
	default:
		return Unknown
	}
}

func (k Kind) String() string {
	switch k {
	case RAID0:
		return "RAID0"
	case RAID5:
		return "RAID5"
	default:
		return "UNKNOWN"
	}
}

// Policy is the striping policy of one file. StripeSize is in bytes.
type Policy struct {
	Kind       Kind
	StripeSize int64
	Width      int
}

func NewRAID0(stripeSize int64, width int) Policy {
	return Policy{Kind: RAID0, StripeSize: stripeSize, Width: width}
}

// Validate checks the shape of the policy. It does not reject RAID5, which is a
// recognized policy that the I/O path refuses to serve.
func (p Policy) Validate() error {
	switch {
	case p.StripeSize <= 0:
		return errors.Wrapf(unix.EINVAL, "stripe size %d", p.StripeSize)
	case p.Width <= 0:
		return errors.Wrapf(unix.EINVAL, "width %d", p.Width)
	default:
		return nil
	}
}

// ObjectIndex is the index of the object holding the byte at file offset off.
func (p Policy) ObjectIndex(off int64) int64 {
	return off / p.StripeSize
}

// NodeSlot maps an object to the slot of the storage node holding it.
func (p Policy) NodeSlot(objectIndex int64) (int, error) {
	switch p.Kind {
	case RAID0:
		if p.Width <= 0 {
			return 0, errors.Wrapf(unix.EINVAL, "width %d", p.Width)
		}
		return int(objectIndex % int64(p.Width)), nil
	case RAID5:
		return 0, errors.Wrap(unix.EOPNOTSUPP, "striping policy RAID5 is not supported")
	default:
		return 0, errors.Wrapf(unix.EINVAL, "unsupported striping policy %s", p.Kind)
	}
}

func (p Policy) Split(offset, size int64) []Chunk {
	return Split(offset, size, p.StripeSize)
}

func (p Policy) String() string {
	return fmt.Sprintf("%s stripe=%dKB width=%d", p.Kind, p.StripeSize/1024, p.Width)
}
