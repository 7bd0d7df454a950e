package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// lookupEnv parses key with parse, keeping defaultVal when the variable is
// unset or malformed.
func lookupEnv[T any](key string, defaultVal T, parse func(string) (T, error)) T {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	v, err := parse(strings.TrimSpace(value))
	if err != nil {
		return defaultVal
	}
	return v
}

func getEnv(key, defaultVal string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	return lookupEnv(key, defaultVal, strconv.Atoi)
}

func getEnvAsBool(key string, defaultVal bool) bool {
	return lookupEnv(key, defaultVal, strconv.ParseBool)
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	return lookupEnv(key, defaultVal, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	return lookupEnv(key, defaultVal, time.ParseDuration)
}

func getEnvAsStringSlice(key string, defaults []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaults
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaults
	}
	return out
}
