package config

import (
	"strconv"
	"time"
)

func withDefault(val, defaultValue string) string {
	if val == "" {
		return defaultValue
	}

	return val
}

func atoi(val string) (int, error) {
	return strconv.Atoi(val)
}

func atoiWithDefault(val string, defaultValue int) int {
	intVal, err := atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

// secondsWithDefault parses a whole number of seconds. Negative values are rejected.
func secondsWithDefault(val string, defaultValue time.Duration) time.Duration {
	seconds, err := atoi(val)
	if err != nil || seconds < 0 {
		return defaultValue
	}

	return time.Duration(seconds) * time.Second
}
