package config

import (
	"fmt"
	"sync"
	"time"
)

// MapConfig serves keys from memory. It is what tests and one-shot commands use.
type MapConfig struct {
	configValues sync.Map
}

func NewMapConfig(entries map[string]string) *MapConfig {
	c := &MapConfig{}

	for key, entry := range entries {
		c.configValues.Store(key, entry)
	}

	return c
}

func (c *MapConfig) Set(key, value string) {
	c.configValues.Store(key, value)
}

func (c *MapConfig) LoadFromPath(_ string) error {
	return fmt.Errorf("LoadFromPath not supported for MapConfig")
}

func (c *MapConfig) Load() error {
	return nil
}

func (c *MapConfig) GetKey(key string) string {
	v, ok := c.configValues.Load(key)
	switch {
	case !ok:
		return ""

	case v == nil:
		return ""

	default:
		return v.(string)
	}
}

func (c *MapConfig) MustGetKey(key string) string {
	return mustGetKey(c, key)
}

func (c *MapConfig) GetKeyWithDefault(key, defaultValue string) string {
	return withDefault(c.GetKey(key), defaultValue)
}

func (c *MapConfig) GetIntKey(key string) int {
	return atoiWithDefault(c.GetKey(key), 0)
}

func (c *MapConfig) MustGetIntKey(key string) int {
	return mustGetIntKey(c, key)
}

func (c *MapConfig) GetIntKeyWithDefault(key string, defaultValue int) int {
	return atoiWithDefault(c.GetKey(key), defaultValue)
}

func (c *MapConfig) GetSecondsKeyWithDefault(key string, defaultValue time.Duration) time.Duration {
	return secondsWithDefault(c.GetKey(key), defaultValue)
}
