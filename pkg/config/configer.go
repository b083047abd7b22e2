// Package config reads settings from the environment, optionally seeded from a dotenv
// file, or from an in memory map in tests.
package config

import "time"

type Configer interface {
	LoadFromPath(path string) error
	Load() error
	GetKey(key string) string
	MustGetKey(key string) string
	GetKeyWithDefault(key, defaultValue string) string
	GetIntKey(key string) int
	MustGetIntKey(key string) int
	GetIntKeyWithDefault(key string, defaultValue int) int
	GetSecondsKeyWithDefault(key string, defaultValue time.Duration) time.Duration
}
