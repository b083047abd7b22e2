package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/apex/log"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/config"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/fileid"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/mddb"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/mddb/stor"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/mdsync"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/osd"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/pipeline"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/webapi"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sfiod",
	Short: "Striped file I/O daemon",
	Long: `Striped file I/O daemon. Reads and writes files striped over a set of object
storage devices, keeps file sizes in the metadata store up to date, and serves a
diagnostics and data API.`,
	Run: func(cmd *cobra.Command, args []string) {
		c := mustLoadConfig()
		if err := Run(context.Background(), c); err != nil {
			log.Fatalf("sfiod: %s", err)
		}
	},
}

// Run starts the daemon and blocks until SIGINT or SIGTERM.
func Run(ctx context.Context, c config.Configer) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := mddb.MustOpen(c)
	defer func() { _ = mddb.Close(db) }()
	fileStor := stor.NewGormFileStor(db)

	p, err := newPipeline(c)
	if err != nil {
		return err
	}

	registry := fileid.NewRegistry()
	updater := mdsync.NewUpdater(registry, fileStor,
		mdsync.WithInterval(c.GetSecondsKeyWithDefault(config.KeyUpdateIntervalSeconds, mdsync.DefaultInterval)))

	updaterDone := make(chan struct{})
	go func() {
		updater.Run(ctx)
		close(updaterDone)
	}()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	webapi.SetupRoutes(e, webapi.RouteDependencies{
		Stages:   p,
		FileIO:   p,
		Registry: registry,
		FileStor: fileStor,
	})

	apiAddr := c.GetKeyWithDefault(config.KeyAPIAddr, "localhost:1350")
	go func() {
		log.Infof("Serving API on %s", apiAddr)
		if err := e.Start(apiAddr); err != nil {
			log.Infof("Web server stopped: %s", err)
		}
	}()

	<-ctx.Done()
	log.Infof("Shutting down...")

	if err := e.Shutdown(context.Background()); err != nil {
		log.Errorf("Web server shutdown failed: %s", err)
	}

	p.Stop()
	<-updaterDone

	return nil
}

func newPipeline(c config.Configer) (*pipeline.Pipeline, error) {
	channel := osd.NewHTTPChannel(
		c.GetKeyWithDefault(config.KeyOSDScheme, "http"),
		c.GetSecondsKeyWithDefault(config.KeyOSDTimeoutSeconds, osdTimeout))

	return pipeline.New(channel, pipeline.LoadConfig(c))
}

// mustLoadConfig loads the dotenv file, then lets flags given on the command line
// override what it set.
func mustLoadConfig() config.Configer {
	path := cfgFile
	if path == "" {
		path = config.DefaultDotenvPath()
	}

	config.SetConfig(config.NewDotenvConfig(path))
	if err := config.Load(); err != nil {
		if cfgFile != "" {
			log.Fatalf("Failed loading configuration file %s: %s", cfgFile, err)
		}
		log.Debugf("No configuration file %s, using the environment", path)
	}

	for _, key := range flagKeys {
		if viper.IsSet(key) {
			_ = os.Setenv(key, viper.GetString(key))
		}
	}

	return config.GetConfig()
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
