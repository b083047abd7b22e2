package stor

import (
	"github.com/pkg/errors"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/fileid"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/mddb/mdmodel"
	"gorm.io/gorm"
)

type GormFileStor struct {
	db *gorm.DB
}

func NewGormFileStor(db *gorm.DB) *GormFileStor {
	return &GormFileStor{db: db}
}

func (s *GormFileStor) CreateFile(file *mdmodel.File) (*mdmodel.File, error) {
	err := WithTxRetry(s.db, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&mdmodel.File{}).Where("file_id = ?", file.FileID).Count(&count).Error; err != nil {
			return err
		}

		if count != 0 {
			return errors.Wrapf(ErrFileExists, "file %s", file.FileID)
		}

		return tx.Create(file).Error
	})

	if err != nil {
		return nil, err
	}

	return file, nil
}

func (s *GormFileStor) GetFileByFileID(fileID string) (*mdmodel.File, error) {
	var file mdmodel.File
	err := s.db.Where("file_id = ?", fileID).First(&file).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, errors.Wrapf(ErrFileNotFound, "file %s", fileID)
	case err != nil:
		return nil, err
	}

	return &file, nil
}

func (s *GormFileStor) UpdateSizeEpoch(fileID string, se fileid.SizeEpoch) (bool, error) {
	var updated bool

	err := WithTxRetry(s.db, func(tx *gorm.DB) error {
		updated = false

		var file mdmodel.File
		err := tx.Where("file_id = ?", fileID).First(&file).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return errors.Wrapf(ErrFileNotFound, "file %s", fileID)
		case err != nil:
			return err
		}

		if !se.Newer(file.SizeEpoch()) {
			return nil
		}

		err = tx.Model(&file).Updates(map[string]any{"size": se.Size, "epoch": se.Epoch}).Error
		if err != nil {
			return err
		}

		updated = true
		return nil
	})

	return updated, err
}

func (s *GormFileStor) ListFiles() ([]mdmodel.File, error) {
	var files []mdmodel.File
	if err := s.db.Order("file_id").Find(&files).Error; err != nil {
		return nil, err
	}

	return files, nil
}
