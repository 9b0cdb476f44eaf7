package livestatus

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oceanplexian/livestatus/internal/api"
	"github.com/oceanplexian/livestatus/internal/config"
	"github.com/oceanplexian/livestatus/internal/counters"
	"github.com/oceanplexian/livestatus/internal/extcmd"
	"github.com/oceanplexian/livestatus/internal/logcache"
)

// Store owns the tables and answers single requests.
type Store struct {
	core   api.MonitoringCore
	cfg    *config.Config
	log    logrus.FieldLogger
	cache  *logcache.Cache
	ec     *EventConsole
	tables map[string]*Table
	conns  ConnectionStats
}

func NewStore(core api.MonitoringCore, cfg *config.Config, log logrus.FieldLogger) (*Store, error) {
	cache, err := logcache.New(core, logcache.Options{
		MaxCachedMessages:  cfg.MaxCachedMessages,
		MaxLinesPerLogfile: cfg.MaxLinesPerLogfile,
		ArchivePattern:     cfg.LogArchivePattern,
	}, log.WithField("component", "logcache"))
	if err != nil {
		return nil, err
	}
	s := &Store{
		core:   core,
		cfg:    cfg,
		log:    log,
		cache:  cache,
		ec:     NewEventConsole(cfg.MkeventdSocket, log),
		tables: make(map[string]*Table),
	}
	for _, t := range []*Table{
		hostsTable(core),
		servicesTable(core),
		hostgroupsTable(core),
		servicegroupsTable(core),
		contactsTable(core),
		contactgroupsTable(core),
		commandsTable(core),
		timeperiodsTable(core),
		commentsTable(core),
		downtimesTable(core),
		logTable(core, cache),
		statusTable(core, cache, func() ConnectionStats { return s.conns }),
		columnsTable(s.Tables),
	} {
		s.tables[t.Name()] = t
	}
	return s, nil
}

// SetConnectionStats makes the dispatcher gauges visible in the status table.
func (s *Store) SetConnectionStats(c ConnectionStats) { s.conns = c }

// LogCache is the cache serving the log table.
func (s *Store) LogCache() *logcache.Cache { return s.cache }

// Tables returns all tables sorted by name.
func (s *Store) Tables() []*Table {
	out := make([]*Table, 0, len(s.tables))
	for _, t := range s.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (s *Store) Table(name string) *Table { return s.tables[name] }

// AnswerRequest handles one request and reports whether the connection may
// stay open for the next one.
func (s *Store) AnswerRequest(ctx context.Context, lines []string, out *OutputBuffer) bool {
	counters.Increment(counters.Requests)
	if len(lines) == 0 {
		out.SetError(CodeInvalidHeader, "Invalid request method")
		return false
	}
	first := lines[0]
	switch {
	case strings.HasPrefix(first, "GET "):
		return s.answerGet(ctx, strings.TrimSpace(first[4:]), lines[1:], out)
	case strings.HasPrefix(first, "COMMAND "):
		s.answerCommand(strings.TrimSpace(first[8:]), out)
		return true
	case strings.HasPrefix(first, "LOGROTATE"):
		s.log.Info("starting log rotation")
		if err := s.core.RotateLog(); err != nil {
			s.log.WithError(err).Error("log rotation failed")
		}
		return false
	}
	out.SetError(CodeInvalidHeader, "Invalid request method")
	return false
}

func (s *Store) answerGet(ctx context.Context, name string, headers []string, out *OutputBuffer) bool {
	table, ok := s.tables[name]
	if !ok {
		out.SetError(CodeNotFound, fmt.Sprintf("Invalid GET request, no such table '%s'", name))
		// parse anyway so that ResponseHeader and KeepAlive apply
		table = newTable(name, "")
	}
	start := time.Now()

	s.core.RLock()
	q := ParseQuery(headers, table, s.core, s.cfg, out, s.log)
	s.core.RUnlock()

	q.Wait(ctx)

	s.core.RLock()
	q.Process()
	s.core.RUnlock()

	elapsed := time.Since(start)
	code, _, failed := out.Error()
	if !failed {
		code = CodeOK
	}
	s.log.WithFields(logrus.Fields{
		"table":   name,
		"scanned": q.RowsScanned(),
		"rows":    q.RowsMatched(),
		"elapsed": elapsed,
		"code":    int(code),
	}).Debug("processed GET request")
	observeRequest(name, elapsed)
	return q.KeepAlive()
}

// answerCommand handles "COMMAND [ts] NAME;args". Commands have no response
// unless the event console cannot be reached.
func (s *Store) answerCommand(line string, out *OutputBuffer) {
	cmd, err := extcmd.Parse(line)
	if err != nil {
		s.log.WithError(err).Warnf("invalid command '%s'", line)
		return
	}
	counters.Increment(counters.Commands)
	if isEventConsoleCommand(cmd) {
		if err := s.ec.Forward(cmd); err != nil {
			s.log.WithError(err).Errorf("cannot forward %s to event console", cmd.Name)
			out.SetError(CodeBadGateway, err.Error())
		}
		return
	}
	if err := s.core.SubmitCommand(cmd); err != nil {
		s.log.WithError(err).Warnf("external command %s failed", cmd.Name)
	}
}
