package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	log, hook := test.NewNullLogger()
	cfg := Parse("", log)

	assert.Equal(t, DefaultSocketPath, cfg.SocketPath)
	assert.Equal(t, 10, cfg.NumClientThreads)
	assert.Equal(t, 500000, cfg.MaxCachedMessages)
	assert.Equal(t, 100*datasize.MB, cfg.MaxResponseSize)
	assert.Equal(t, 10*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 5*time.Minute, cfg.IdleTimeout)
	assert.Equal(t, AuthLoose, cfg.ServiceAuthorization)
	assert.Equal(t, AuthStrict, cfg.GroupAuthorization)
	assert.Equal(t, "/var/run/mkeventd/status", cfg.MkeventdSocket)
	assert.Empty(t, hook.AllEntries())
}

func TestParseOptions(t *testing.T) {
	log, hook := test.NewNullLogger()
	cfg := Parse("/tmp/live debug=2 num_client_threads=20 query_timeout=0 idle_timeout=1500 "+
		"max_response_size=2MB service_authorization=strict group_authorization=loose "+
		"data_encoding=latin1 max_cached_messages=10 log_archive_pattern=nagios-*.log "+
		"state_file=/srv/core/state.yml", log)

	assert.Equal(t, "/tmp/live", cfg.SocketPath)
	assert.Equal(t, 2, cfg.Debug)
	assert.Equal(t, 20, cfg.NumClientThreads)
	assert.Zero(t, cfg.QueryTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.IdleTimeout)
	assert.Equal(t, 2*datasize.MB, cfg.MaxResponseSize)
	assert.Equal(t, AuthStrict, cfg.ServiceAuthorization)
	assert.Equal(t, AuthLoose, cfg.GroupAuthorization)
	assert.Equal(t, EncodingLatin1, cfg.DataEncoding)
	assert.Equal(t, 10, cfg.MaxCachedMessages)
	assert.Equal(t, "nagios-*.log", cfg.LogArchivePattern)
	assert.Equal(t, "/tmp/mkeventd/status", cfg.MkeventdSocket)
	assert.Equal(t, "/srv/core/nagios.log", cfg.HistoryFile)
	assert.Equal(t, "/srv/core/archives", cfg.LogArchivePath)
	assert.Empty(t, hook.AllEntries())
}

func TestParseInvalidOptions(t *testing.T) {
	tests := []string{
		"num_client_threads=0",
		"num_client_threads=1001",
		"num_client_threads=many",
		"query_timeout=-1",
		"service_authorization=sometimes",
		"data_encoding=ebcdic",
		"max_response_size=lots",
		"frobnicate=1",
	}
	for _, opt := range tests {
		t.Run(opt, func(t *testing.T) {
			log, hook := test.NewNullLogger()
			cfg := Parse(opt, log)
			require.Len(t, hook.AllEntries(), 1)
			assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
			def := Default()
			assert.Equal(t, def.NumClientThreads, cfg.NumClientThreads)
			assert.Equal(t, def.QueryTimeout, cfg.QueryTimeout)
			assert.Equal(t, def.ServiceAuthorization, cfg.ServiceAuthorization)
		})
	}
}

func TestHistoryFileNextToSocket(t *testing.T) {
	log, _ := test.NewNullLogger()
	cfg := Parse("/run/live/socket", log)
	assert.Equal(t, "/run/live/nagios.log", cfg.HistoryFile)
	assert.Equal(t, "/run/live/archives", cfg.LogArchivePath)
}

func TestExplicitMkeventdSocket(t *testing.T) {
	log, _ := test.NewNullLogger()
	cfg := Parse("mkeventd_socket=/run/ec.sock /tmp/live", log)
	assert.Equal(t, "/run/ec.sock", cfg.MkeventdSocket)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "livestatus.cfg")
	content := "# livestatus\n/run/live\nnum_client_threads=3 debug=1\n\nhistory_file=/var/log/nagios.log\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	log, _ := test.NewNullLogger()
	cfg, err := ReadFile(path, log)
	require.NoError(t, err)
	assert.Equal(t, "/run/live", cfg.SocketPath)
	assert.Equal(t, 3, cfg.NumClientThreads)
	assert.Equal(t, 1, cfg.Debug)
	assert.Equal(t, "/var/log/archives", cfg.LogArchivePath)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing"), log)
	assert.Error(t, err)
}
