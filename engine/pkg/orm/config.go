// Copyright 2024 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package orm

import (
	"time"

	dmysql "github.com/go-sql-driver/mysql"
	"github.com/pingcap/depflow/pkg/errors"
)

// StoreType is the backend of the metastore.
type StoreType = string

// Defines all supported store types
const (
	StoreTypeSQLite StoreType = "sqlite"
	StoreTypeMySQL  StoreType = "mysql"
)

const (
	defaultStoreType     = StoreTypeSQLite
	defaultDSN           = "file:depflow.db?cache=shared"
	defaultSlowThreshold = 200 * time.Millisecond
)

// StoreConfig is the config of the metastore.
type StoreConfig struct {
	StoreType     StoreType     `toml:"store-type" json:"store-type"`
	DSN           string        `toml:"dsn" json:"dsn"`
	SlowThreshold time.Duration `toml:"slow-threshold" json:"slow-threshold"`
}

// DefaultStoreConfig returns a sqlite backed store config.
func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		StoreType:     defaultStoreType,
		DSN:           defaultDSN,
		SlowThreshold: defaultSlowThreshold,
	}
}

// Adjust fills defaults and normalizes the dsn.
func (c *StoreConfig) Adjust() error {
	if c.StoreType == "" {
		c.StoreType = defaultStoreType
	}
	if c.SlowThreshold == 0 {
		c.SlowThreshold = defaultSlowThreshold
	}
	switch c.StoreType {
	case StoreTypeSQLite:
		if c.DSN == "" {
			c.DSN = defaultDSN
		}
	case StoreTypeMySQL:
		if c.DSN == "" {
			return errors.ErrMetaParamsInvalid.GenWithStackByArgs("mysql store needs a dsn")
		}
		dsnCfg, err := dmysql.ParseDSN(c.DSN)
		if err != nil {
			return errors.ErrMetaParamsInvalid.Wrap(err).GenWithStackByArgs("invalid mysql dsn")
		}
		// time columns are scanned into time.Time
		dsnCfg.ParseTime = true
		c.DSN = dsnCfg.FormatDSN()
	default:
		return errors.ErrMetaParamsInvalid.GenWithStackByArgs("unknown store type " + c.StoreType)
	}
	return nil
}
