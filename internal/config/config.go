// Package config parses the livestatus option string.
//
// The options form a single whitespace separated string. A token without
// '=' is the socket path, every other token is a key=value pair. Invalid or
// unknown options are reported and ignored, they never stop the server.
package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// AuthorizationMode selects how object permissions are derived from contacts.
type AuthorizationMode int

const (
	// AuthLoose lets host contacts see all services of the host, and group
	// contacts see a group when they may see any member.
	AuthLoose AuthorizationMode = iota
	// AuthStrict requires the contact on the service itself, and permission
	// for every member of a group.
	AuthStrict
)

func (m AuthorizationMode) String() string {
	if m == AuthStrict {
		return "strict"
	}
	return "loose"
}

// Encoding is how string bytes from the core are interpreted on output.
type Encoding int

const (
	EncodingUTF8 Encoding = iota
	EncodingLatin1
	EncodingMixed
)

func (e Encoding) String() string {
	switch e {
	case EncodingLatin1:
		return "latin1"
	case EncodingMixed:
		return "mixed"
	}
	return "utf8"
}

const (
	DefaultSocketPath = "/var/run/livestatus"
	maxClientThreads  = 1000
)

type Config struct {
	SocketPath           string
	Debug                int
	LogFile              string
	MkeventdSocket       string
	MaxCachedMessages    int
	MaxLinesPerLogfile   int
	MaxResponseSize      datasize.ByteSize
	NumClientThreads     int
	MaxQueuedConnections int
	QueryTimeout         time.Duration
	IdleTimeout          time.Duration
	ServiceAuthorization AuthorizationMode
	GroupAuthorization   AuthorizationMode
	DataEncoding         Encoding
	LogArchivePattern    string
	MetricsAddress       string

	// Options for the bundled in-memory core.
	StateFile      string
	HistoryFile    string
	LogArchivePath string
	ProgramVersion string

	mkeventdSet bool
}

// Default returns the configuration used when no options are given.
func Default() *Config {
	return &Config{
		SocketPath:           DefaultSocketPath,
		MaxCachedMessages:    500000,
		MaxLinesPerLogfile:   1000000,
		MaxResponseSize:      100 * datasize.MB,
		NumClientThreads:     10,
		MaxQueuedConnections: 100,
		QueryTimeout:         10 * time.Second,
		IdleTimeout:          5 * time.Minute,
		ServiceAuthorization: AuthLoose,
		GroupAuthorization:   AuthStrict,
		DataEncoding:         EncodingUTF8,
		LogArchivePattern:    "*",
	}
}

// Parse reads an option string. Problems are logged on log.
func Parse(args string, log logrus.FieldLogger) *Config {
	cfg := Default()
	for _, tok := range strings.Fields(args) {
		cfg.apply(tok, log)
	}
	cfg.finish()
	return cfg
}

// ReadFile reads options from a file, one or more per line. Lines starting
// with '#' are comments.
func ReadFile(path string, log logrus.FieldLogger) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open livestatus config")
	}
	defer f.Close()

	cfg := Default()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		for _, tok := range strings.Fields(line) {
			cfg.apply(tok, log)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	cfg.finish()
	return cfg, nil
}

func (c *Config) apply(tok string, log logrus.FieldLogger) {
	key, val, ok := strings.Cut(tok, "=")
	if !ok {
		c.SocketPath = tok
		return
	}
	if err := c.setOption(key, val); err != nil {
		log.WithError(err).Warnf("ignoring invalid option %s=%s", key, val)
	}
}

// finish fills in defaults that depend on other options.
func (c *Config) finish() {
	if !c.mkeventdSet {
		c.MkeventdSocket = filepath.Join(filepath.Dir(c.SocketPath), "mkeventd", "status")
	}
	if c.HistoryFile == "" {
		dir := filepath.Dir(c.SocketPath)
		if c.StateFile != "" {
			dir = filepath.Dir(c.StateFile)
		}
		c.HistoryFile = filepath.Join(dir, "nagios.log")
	}
	if c.LogArchivePath == "" && c.HistoryFile != "" {
		c.LogArchivePath = filepath.Join(filepath.Dir(c.HistoryFile), "archives")
	}
}

func (c *Config) setOption(key, val string) error {
	switch key {
	case "debug":
		return setInt(&c.Debug, val, 0)
	case "log_file":
		c.LogFile = val
	case "mkeventd_socket":
		c.MkeventdSocket = val
		c.mkeventdSet = true
	case "max_cached_messages":
		return setInt(&c.MaxCachedMessages, val, 0)
	case "max_lines_per_logfile":
		return setInt(&c.MaxLinesPerLogfile, val, 1)
	case "max_response_size":
		var size datasize.ByteSize
		if err := size.UnmarshalText([]byte(val)); err != nil {
			return errors.Wrapf(err, "invalid size %q", val)
		}
		c.MaxResponseSize = size
	case "num_client_threads":
		var n int
		if err := setInt(&n, val, 1); err != nil {
			return err
		}
		if n > maxClientThreads {
			return errors.Errorf("%d exceeds the maximum of %d threads", n, maxClientThreads)
		}
		c.NumClientThreads = n
	case "max_queued_connections":
		return setInt(&c.MaxQueuedConnections, val, 1)
	case "query_timeout":
		return setMillis(&c.QueryTimeout, val)
	case "idle_timeout":
		return setMillis(&c.IdleTimeout, val)
	case "service_authorization":
		return setAuthorization(&c.ServiceAuthorization, val)
	case "group_authorization":
		return setAuthorization(&c.GroupAuthorization, val)
	case "data_encoding":
		switch val {
		case "utf8":
			c.DataEncoding = EncodingUTF8
		case "latin1":
			c.DataEncoding = EncodingLatin1
		case "mixed":
			c.DataEncoding = EncodingMixed
		default:
			return errors.Errorf("unknown encoding %q, expected utf8, latin1 or mixed", val)
		}
	case "log_archive_pattern":
		c.LogArchivePattern = val
	case "metrics_address":
		c.MetricsAddress = val
	case "state_file":
		c.StateFile = val
	case "history_file":
		c.HistoryFile = val
	case "log_archive_path":
		c.LogArchivePath = val
	case "program_version":
		c.ProgramVersion = val
	default:
		return errors.New("unknown option")
	}
	return nil
}

func setInt(dst *int, val string, lower int) error {
	v, err := strconv.Atoi(val)
	if err != nil {
		return errors.Wrapf(err, "invalid integer %q", val)
	}
	if v < lower {
		return errors.Errorf("value %d is below the minimum %d", v, lower)
	}
	*dst = v
	return nil
}

func setMillis(dst *time.Duration, val string) error {
	var ms int
	if err := setInt(&ms, val, 0); err != nil {
		return err
	}
	*dst = time.Duration(ms) * time.Millisecond
	return nil
}

func setAuthorization(dst *AuthorizationMode, val string) error {
	switch val {
	case "strict":
		*dst = AuthStrict
	case "loose":
		*dst = AuthLoose
	default:
		return errors.Errorf("expected strict or loose, got %q", val)
	}
	return nil
}
