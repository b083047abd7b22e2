package pipeline

import (
	"time"

	"github.com/xtreemfs/xtreemfs-sub008/pkg/config"
)

const (
	DefaultStripeThreads = 8
	DefaultSyncWatchdog  = 5 * time.Second
)

type Config struct {
	// StripeThreads is the worker count of the stripe object stage. The file rw and file
	// object stages always run one worker each.
	StripeThreads int

	// SyncWatchdog is how often a blocked caller dumps every stage. 0 disables it.
	SyncWatchdog time.Duration
}

func DefaultConfig() Config {
	return Config{StripeThreads: DefaultStripeThreads, SyncWatchdog: DefaultSyncWatchdog}
}

func LoadConfig(c config.Configer) Config {
	return Config{
		StripeThreads: c.GetIntKeyWithDefault(config.KeySobjThreads, DefaultStripeThreads),
		SyncWatchdog:  c.GetSecondsKeyWithDefault(config.KeySyncWatchdogSeconds, DefaultSyncWatchdog),
	}
}
