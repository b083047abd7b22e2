package fileid

import (
	"sort"
	"sync"
)

// Registry tracks the files that are currently open.
type Registry struct {
	files sync.Map
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Open registers f, or returns the file already registered under the same id.
func (r *Registry) Open(f *File) *File {
	existing, _ := r.files.LoadOrStore(f.ID, f)
	return existing.(*File)
}

func (r *Registry) Get(id string) *File {
	f, ok := r.files.Load(id)
	if !ok {
		return nil
	}
	return f.(*File)
}

func (r *Registry) Close(id string) {
	r.files.Delete(id)
}

// ForEach calls fn for every open file, stopping when fn returns false.
func (r *Registry) ForEach(fn func(f *File) bool) {
	r.files.Range(func(_, value any) bool {
		return fn(value.(*File))
	})
}

// Dirty returns the open files whose size must be pushed, ordered by id.
func (r *Registry) Dirty() []*File {
	var dirty []*File
	r.ForEach(func(f *File) bool {
		if f.NeedsUpdate() {
			dirty = append(dirty, f)
		}
		return true
	})
	sort.Slice(dirty, func(i, j int) bool { return dirty[i].ID < dirty[j].ID })
	return dirty
}
