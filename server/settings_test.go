package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSettingsDefaults(t *testing.T) {
	s, err := ParseSettings("")
	require.NoError(t, err)
	assert.Equal(t, DefaultDBDriver, s.DB.Driver)
	assert.Equal(t, DefaultLogLevel, s.LogLevel)
	assert.Equal(t, DefaultMaintenanceInterval, s.Maintenance.Interval.Duration)
	assert.NotNil(t, s.Metrics)
}

func TestParseSettings(t *testing.T) {
	s, err := ParseSettings(`
[xipki]
loglevel="debug"
shard=3

[xipki.db]
driver="postgres"
dsn="database=ca host=localhost"

[xipki.maintenance]
interval="30m"

[[xipki.ca]]
id=1
name="root-ca"
crlRetention=10

[[xipki.ca]]
id=2
name="sub-ca"
`)
	require.NoError(t, err)
	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, 3, s.Shard)
	assert.Equal(t, "database=ca host=localhost", s.DB.DSN)
	assert.Equal(t, 30*time.Minute, s.Maintenance.Interval.Duration)
	require.Len(t, s.CAs, 2)
	assert.Equal(t, "root-ca", s.CAs[0].Name)
	assert.Equal(t, 10, s.CAs[0].CRLRetention)
	assert.Equal(t, 0, s.CAs[1].CRLRetention)
}

func TestParseSettingsBadToml(t *testing.T) {
	_, err := ParseSettings("[xipki\n")
	assert.Error(t, err)
}
