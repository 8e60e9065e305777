// Package config loads server settings from a .env file, falling back
// to the process environment when no file is present.
package config

import (
	"errors"
	"os"

	"github.com/spf13/viper"
)

const defaultPort = 8888

type Config struct {
	// Port the TCP listener binds to.
	Port int
	// DatabaseConnString is the postgres DSN. Empty selects the
	// in-memory store.
	DatabaseConnString string
}

func Load() (Config, error) {
	viper.SetConfigFile(".env")
	viper.SetDefault("SERVER_PORT", defaultPort)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Running without a .env file is fine, the environment and
		// defaults cover everything.
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}

	return Config{
		Port:               viper.GetInt("SERVER_PORT"),
		DatabaseConnString: viper.GetString("DATABASE_CONN_STRING"),
	}, nil
}
