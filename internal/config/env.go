package config

import (
	"strconv"

	"github.com/spf13/viper"
)

// Split overrides are read through viper under their env names, so a .env
// file and the process environment both apply.

func getEnvAsBool(key string, defaultVal bool) bool {
	viper.BindEnv(key)
	if val := viper.GetString(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// lookupEnvFraction reports the env value as a fraction when it parses.
func lookupEnvFraction(key string) (float64, bool) {
	viper.BindEnv(key)
	val := viper.GetString(key)
	if val == "" {
		return 0, false
	}
	return parseFraction(val)
}
