package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/apex/log"
	"github.com/mitchellh/go-homedir"
	"github.com/subosito/gotenv"
)

type DotenvConfig struct {
	DotenvPath string
}

func NewDotenvConfig(path string) *DotenvConfig {
	return &DotenvConfig{DotenvPath: path}
}

// DefaultDotenvPath is ~/.sfiod.env.
func DefaultDotenvPath() string {
	home, err := homedir.Dir()
	if err != nil {
		return DefaultDotenvFile
	}

	return filepath.Join(home, DefaultDotenvFile)
}

func (c *DotenvConfig) LoadFromPath(path string) error {
	c.DotenvPath = path
	return c.Load()
}

// Load reads the dotenv file. Values already present in the environment win.
func (c *DotenvConfig) Load() error {
	path, err := homedir.Expand(c.DotenvPath)
	if err != nil {
		return err
	}

	return gotenv.Load(path)
}

func (c *DotenvConfig) GetKey(key string) string {
	return os.Getenv(key)
}

func (c *DotenvConfig) MustGetKey(key string) string {
	return mustGetKey(c, key)
}

func (c *DotenvConfig) GetKeyWithDefault(key, defaultValue string) string {
	return withDefault(c.GetKey(key), defaultValue)
}

func (c *DotenvConfig) GetIntKey(key string) int {
	return atoiWithDefault(c.GetKey(key), 0)
}

func (c *DotenvConfig) MustGetIntKey(key string) int {
	return mustGetIntKey(c, key)
}

func (c *DotenvConfig) GetIntKeyWithDefault(key string, defaultValue int) int {
	return atoiWithDefault(c.GetKey(key), defaultValue)
}

func (c *DotenvConfig) GetSecondsKeyWithDefault(key string, defaultValue time.Duration) time.Duration {
	return secondsWithDefault(c.GetKey(key), defaultValue)
}

func mustGetKey(c Configer, key string) string {
	val := c.GetKey(key)
	if val == "" {
		log.Fatalf("No such required config key: '%s'", key)
	}

	return val
}

func mustGetIntKey(c Configer, key string) int {
	val, err := atoi(c.GetKey(key))
	if err != nil {
		log.Fatalf("Required config key either doesn't exist or isn't an int: '%s': %s", key, err)
	}

	return val
}
