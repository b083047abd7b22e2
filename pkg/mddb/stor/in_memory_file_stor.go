package stor

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/fileid"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/mddb/mdmodel"
)

// InMemoryFileStor keeps file records in a map. When ErrorToReturn is set every call
// fails with it, which lets tests exercise failure paths.
type InMemoryFileStor struct {
	mu            sync.Mutex
	files         map[string]mdmodel.File
	lastID        int
	ErrorToReturn error
}

func NewInMemoryFileStor(files []mdmodel.File) *InMemoryFileStor {
	s := &InMemoryFileStor{files: make(map[string]mdmodel.File)}
	for _, f := range files {
		s.lastID++
		f.ID = s.lastID
		s.files[f.FileID] = f
	}
	return s
}

func (s *InMemoryFileStor) CreateFile(file *mdmodel.File) (*mdmodel.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorToReturn != nil {
		return nil, s.ErrorToReturn
	}

	if _, ok := s.files[file.FileID]; ok {
		return nil, errors.Wrapf(ErrFileExists, "file %s", file.FileID)
	}

	s.lastID++
	file.ID = s.lastID
	s.files[file.FileID] = *file

	return file, nil
}

func (s *InMemoryFileStor) GetFileByFileID(fileID string) (*mdmodel.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorToReturn != nil {
		return nil, s.ErrorToReturn
	}

	f, ok := s.files[fileID]
	if !ok {
		return nil, errors.Wrapf(ErrFileNotFound, "file %s", fileID)
	}

	return &f, nil
}

func (s *InMemoryFileStor) UpdateSizeEpoch(fileID string, se fileid.SizeEpoch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorToReturn != nil {
		return false, s.ErrorToReturn
	}

	f, ok := s.files[fileID]
	if !ok {
		return false, errors.Wrapf(ErrFileNotFound, "file %s", fileID)
	}

	if !se.Newer(f.SizeEpoch()) {
		return false, nil
	}

	f.Size, f.Epoch = se.Size, se.Epoch
	s.files[fileID] = f

	return true, nil
}

func (s *InMemoryFileStor) ListFiles() ([]mdmodel.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorToReturn != nil {
		return nil, s.ErrorToReturn
	}

	files := make([]mdmodel.File, 0, len(s.files))
	for _, f := range s.files {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].FileID < files[j].FileID })

	return files, nil
}
