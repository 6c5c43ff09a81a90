package main

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sharetube/review/internal/repository/asset/sqlite"
)

type commandContext struct {
	v *viper.Viper
}

func newCommandContext(v *viper.Viper) *commandContext {
	return &commandContext{v: v}
}

func (c *commandContext) dbPath() string {
	return strings.TrimSpace(c.v.GetString("db-path"))
}

func (c *commandContext) withStore(fn func(*sqlite.Store) error) error {
	path := c.dbPath()
	if path == "" {
		return errors.New("db path is empty")
	}

	store, err := sqlite.Open(path, sqlite.Options{BusyTimeout: 5 * time.Second})
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(store)
}
