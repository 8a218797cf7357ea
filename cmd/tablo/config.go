// Config loading for the tablo CLI.
package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/tablodb/tablo/driver"
	"github.com/tablodb/tablo/schema"
)

const (
	cfgKeyDialect = "dialect"
	cfgKeyDSN     = "dsn"
	cfgKeySchema  = "schema"

	defaultDialect = driver.SQLite
	defaultSchema  = "schema.tablo"
)

// loadConfig reads tablo.yaml (or the --config file) plus TABLO_*
// environment variables. A missing config file is fine as long as the
// required keys arrive from the environment or defaults.
func loadConfig() (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyDialect, defaultDialect)
	v.SetDefault(cfgKeySchema, defaultSchema)
	v.SetEnvPrefix("TABLO")
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("tablo")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// loadSchema parses and validates the configured schema file.
func loadSchema(v *viper.Viper) (*schema.Snapshot, string, error) {
	path := v.GetString(cfgKeySchema)
	if schemaFile != "" {
		path = schemaFile
	}
	snap, err := schema.ParseFile(path)
	if err != nil {
		return nil, path, err
	}
	return snap, path, nil
}

// openStore opens the configured backend.
func openStore(v *viper.Viper) (*driver.Driver, error) {
	dialect := v.GetString(cfgKeyDialect)
	dsn := v.GetString(cfgKeyDSN)
	if dsn == "" {
		return nil, fmt.Errorf("no dsn configured (set dsn in tablo.yaml or TABLO_DSN)")
	}
	return driver.Open(dialect, dsn)
}
