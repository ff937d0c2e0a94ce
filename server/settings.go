/*
   xipki - Certificate Authority state store
   Copyright (C) 2024  The xipki authors

   This program is free software: you can redistribute it and/or modify
   it under the terms of the GNU Affero General Public License as published by
   the Free Software Foundation, version 3.

   This program is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
   GNU Affero General Public License for more details.

   You should have received a copy of the GNU Affero General Public License
   along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

package server

import (
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/errgo.v1"

	"github.com/paulvi/xipki/idgen"
	"github.com/paulvi/xipki/metrics"
)

const (
	DefaultDBDriver = "postgres"
	DefaultDBDSN    = "database=xipki host=/var/run/postgresql sslmode=disable"
)

type DBConfig struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// CAConfig names one CA whose state lives in this store.
type CAConfig struct {
	ID   int    `toml:"id"`
	Name string `toml:"name"`

	// CRLRetention is the number of base CRLs kept by periodic
	// cleanup. Zero disables cleanup for this CA.
	CRLRetention int `toml:"crlRetention"`
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

type MaintenanceConfig struct {
	Interval duration `toml:"interval"`
}

const (
	DefaultMaintenanceInterval = time.Hour
	DefaultLogLevel            = "INFO"
)

type Settings struct {
	DB DBConfig `toml:"db"`

	// Shard is this process's id-generator shard. Defaults to
	// the XIPKI_SHARD_ID environment variable.
	Shard int `toml:"shard"`

	Metrics *metrics.Settings `toml:"metrics"`

	Maintenance MaintenanceConfig `toml:"maintenance"`

	CAs []CAConfig `toml:"ca"`

	LogFile  string `toml:"logfile"`
	LogLevel string `toml:"loglevel"`

	Software string `toml:"software"`
	Version  string `toml:"version"`
}

func DefaultSettings() Settings {
	return Settings{
		DB: DBConfig{
			Driver: DefaultDBDriver,
			DSN:    DefaultDBDSN,
		},
		Shard:   idgen.ShardFromEnv(),
		Metrics: metrics.DefaultSettings(),
		Maintenance: MaintenanceConfig{
			Interval: duration{DefaultMaintenanceInterval},
		},
		LogLevel: DefaultLogLevel,
		Software: "xipki-cadb",
		Version:  "~unreleased",
	}
}

func ParseSettings(data string) (*Settings, error) {
	var doc struct {
		XiPKI Settings `toml:"xipki"`
	}
	doc.XiPKI = DefaultSettings()
	_, err := toml.Decode(data, &doc)
	if err != nil {
		return nil, errgo.Mask(err)
	}
	return &doc.XiPKI, nil
}
