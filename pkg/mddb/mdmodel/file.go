package mdmodel

import (
	"encoding/json"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/fileid"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/striping"
)

// File is the persisted record of a striped file. Policy holds the CBOR encoded striping
// descriptor and Nodes the JSON list of node addresses.
type File struct {
	ID        int       `json:"id"`
	FileID    string    `json:"file_id" gorm:"uniqueIndex;size:255"`
	Policy    []byte    `json:"-"`
	Nodes     string    `json:"nodes"`
	Size      int64     `json:"size"`
	Epoch     int64     `json:"epoch"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (File) TableName() string {
	return "sfio_files"
}

func (f File) StripingPolicy() (striping.Policy, error) {
	var p striping.Policy
	if err := cbor.Unmarshal(f.Policy, &p); err != nil {
		return striping.Policy{}, errors.Wrapf(err, "file %s", f.FileID)
	}

	return p, nil
}

func (f File) NodeList() ([]string, error) {
	var nodes []string
	if err := json.Unmarshal([]byte(f.Nodes), &nodes); err != nil {
		return nil, errors.Wrapf(err, "file %s nodes", f.FileID)
	}

	return nodes, nil
}

func (f File) SizeEpoch() fileid.SizeEpoch {
	return fileid.SizeEpoch{Size: f.Size, Epoch: f.Epoch}
}

// ToFileIdent builds the in memory identity of the file, seeded with the stored size.
func (f File) ToFileIdent() (*fileid.File, error) {
	p, err := f.StripingPolicy()
	if err != nil {
		return nil, err
	}

	nodes, err := f.NodeList()
	if err != nil {
		return nil, err
	}

	ident, err := fileid.New(f.FileID, p, nodes)
	if err != nil {
		return nil, err
	}

	return ident.WithSizeEpoch(f.SizeEpoch()), nil
}

// FromFileIdent builds a record for ident. A size that was never observed is stored as 0
// in epoch 0.
func FromFileIdent(ident *fileid.File) (*File, error) {
	policy, err := cbor.Marshal(ident.Policy)
	if err != nil {
		return nil, errors.Wrapf(err, "file %s policy", ident.ID)
	}

	nodes, err := json.Marshal(ident.Nodes)
	if err != nil {
		return nil, errors.Wrapf(err, "file %s nodes", ident.ID)
	}

	f := &File{FileID: ident.ID, Policy: policy, Nodes: string(nodes)}
	if se := ident.SizeEpoch(); se.IsUpdate() {
		f.Size, f.Epoch = se.Size, se.Epoch
	}

	return f, nil
}
