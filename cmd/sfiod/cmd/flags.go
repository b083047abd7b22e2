package cmd

import (
	"time"

	"github.com/spf13/viper"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/config"
)

const osdTimeout = 30 * time.Second

// flagKeys are the config keys that can be overridden from the command line.
var flagKeys = []string{
	config.KeySobjThreads,
	config.KeyAPIAddr,
	config.KeyOSDScheme,
	config.KeySQLitePath,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "dotenv file (default is $HOME/.sfiod.env)")
	flags.Int("sobj-threads", 0, "workers of the stripe object stage")
	flags.String("api-addr", "", "address the API listens on")
	flags.String("osd-scheme", "", "scheme used to reach the OSDs (http or https)")
	flags.String("sqlite", "", "sqlite metadata database, mysql is used when empty")

	_ = viper.BindPFlag(config.KeySobjThreads, flags.Lookup("sobj-threads"))
	_ = viper.BindPFlag(config.KeyAPIAddr, flags.Lookup("api-addr"))
	_ = viper.BindPFlag(config.KeyOSDScheme, flags.Lookup("osd-scheme"))
	_ = viper.BindPFlag(config.KeySQLitePath, flags.Lookup("sqlite"))
}
