package stor

import (
	"github.com/xtreemfs/xtreemfs-sub008/pkg/config"
	"gorm.io/gorm"
)

const minTxRetry = 3

func txRetryCount() int {
	retryCount := config.GetIntKeyWithDefault(config.KeyTxRetry, minTxRetry)
	if retryCount < minTxRetry {
		retryCount = minTxRetry
	}

	return retryCount
}

func WithTxRetry(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	var err error

	retryCount := txRetryCount()

	for i := 0; i < retryCount; i++ {
		err = db.Transaction(fn)
		if err == nil {
			break
		}
	}

	return err
}
