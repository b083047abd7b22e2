// Package mddb connects to the metadata store that records, for every file, its
// striping policy, the nodes behind each slot and the last pushed size and epoch.
package mddb

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/xtreemfs/xtreemfs-sub008/pkg/config"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/mddb/mdmodel"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SqliteInMemoryDSN is a shared in memory sqlite database, handy for tests.
const SqliteInMemoryDSN = "file::memory:?cache=shared"

func MakeDSN(c config.Configer) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.GetKey(config.KeyDBUser),
		c.GetKey(config.KeyDBPassword),
		c.GetKeyWithDefault(config.KeyDBHost, "127.0.0.1:3306"),
		c.GetKey(config.KeyDBName))
}

const maxDBRetries = 5

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.New(log.New(os.Stderr, "\r\n", log.LstdFlags),
			logger.Config{
				SlowThreshold:             time.Second * 5,
				LogLevel:                  logger.Silent,
				IgnoreRecordNotFoundError: true,
				ParameterizedQueries:      true,
				Colorful:                  false,
			}),
	}
}

// MustConnectToDB will attempt to connect to the mysql database maxDBRetries times. If it isn't
// successful after that number of retries then it will call log.Fatalf(), which will cause the
// server to exit. Between retry attempts it will sleep for 3 seconds.
func MustConnectToDB(c config.Configer) *gorm.DB {
	retryCount := 1
	for {
		db, err := gorm.Open(mysql.Open(MakeDSN(c)), gormConfig())
		switch {
		case err == nil:
			return db
		case retryCount >= maxDBRetries:
			log.Fatalf("Failed to open db (%s): %s", c.GetKey(config.KeyDBHost), err)
		default:
			retryCount++
			time.Sleep(3 * time.Second)
		}
	}
}

// OpenSQLite opens the sqlite database at dsn. The pool is limited to one connection,
// which gets around table lock errors when several goroutines write.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

// MustOpen opens the sqlite database named by SFIO_SQLITE_PATH when it is set, and mysql
// otherwise, then runs the migrations.
func MustOpen(c config.Configer) *gorm.DB {
	var db *gorm.DB

	if path := c.GetKey(config.KeySQLitePath); path != "" {
		var err error
		if db, err = OpenSQLite(path); err != nil {
			log.Fatalf("Failed to open sqlite db %s: %s", path, err)
		}
	} else {
		db = MustConnectToDB(c)
	}

	if err := RunMigrations(db); err != nil {
		log.Fatalf("Migrations failed: %s", err)
	}

	return db
}

func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(&mdmodel.File{})
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
