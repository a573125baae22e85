package test

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// INTEGRATION_BADGER_DIR pins the database to a fixed directory instead
	// of a per-test temp dir, useful to inspect the keyspace after a run.
	BadgerDir string `envconfig:"INTEGRATION_BADGER_DIR"`

	PageLimit        int `envconfig:"INTEGRATION_PAGE_LIMIT" default:"10"`
	MaxContentLength int `envconfig:"INTEGRATION_MAX_CONTENT_LENGTH" default:"500"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
