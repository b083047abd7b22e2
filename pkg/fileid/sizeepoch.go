package fileid

import "fmt"

// Unknown is the sentinel for a size or epoch that carries no update.
const Unknown int64 = -1

// SizeEpoch is a file size together with the truncate epoch it was observed in.
type SizeEpoch struct {
	Size  int64 `json:"size"`
	Epoch int64 `json:"epoch"`
}

// NoUpdate is the starting point of every aggregation.
var NoUpdate = SizeEpoch{Size: Unknown, Epoch: Unknown}

// Newer reports whether se replaces current: a higher epoch always wins, within the same
// epoch only a larger size does. A stale or reordered report can therefore never
// shrink the visible size.
func (se SizeEpoch) Newer(current SizeEpoch) bool {
	return se.Epoch > current.Epoch || (se.Epoch == current.Epoch && se.Size > current.Size)
}

// Merge replaces se with c if c is newer and reports whether it did.
func (se *SizeEpoch) Merge(c SizeEpoch) bool {
	if !c.Newer(*se) {
		return false
	}
	*se = c
	return true
}

// IsUpdate is false for an aggregate no report ever won.
func (se SizeEpoch) IsUpdate() bool {
	return se.Epoch != Unknown
}

func (se SizeEpoch) String() string {
	return fmt.Sprintf("(size=%d, epoch=%d)", se.Size, se.Epoch)
}
