package config

const (
	// Worker count of the stripe object stage.
	KeySobjThreads = "SFIO_SOBJ_THREADS"

	// Seconds between stage dumps while a synchronous call is stuck. 0 disables them.
	KeySyncWatchdogSeconds = "SFIO_SYNC_WATCHDOG_SECONDS"

	// Seconds between pushes of changed file sizes to the metadata store.
	KeyUpdateIntervalSeconds = "SFIO_UPDATE_INTERVAL_SECONDS"

	KeyOSDScheme         = "SFIO_OSD_SCHEME"
	KeyOSDTimeoutSeconds = "SFIO_OSD_TIMEOUT_SECONDS"
	KeyAPIAddr           = "SFIO_API_ADDR"

	// When set the metadata store is this sqlite file, otherwise mysql through the DB_* keys.
	KeySQLitePath = "SFIO_SQLITE_PATH"

	KeyDBUser     = "DB_USER"
	KeyDBPassword = "DB_PASSWORD"
	KeyDBName     = "DB_NAME"
	KeyDBHost     = "DB_HOST"
	KeyTxRetry    = "MC_TX_RETRY"
)

const DefaultDotenvFile = ".sfiod.env"
