package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/oceanplexian/livestatus/internal/objects"
)

// HistoryLog writes the monitoring history file (nagios.log) and rotates it
// into the archive directory. Its lines are what the log table serves.
type HistoryLog struct {
	mu          sync.Mutex
	file        *os.File
	path        string
	archivePath string
	now         func() time.Time
	// Hook, if set, is called after each line has been written.
	Hook func(line string)
}

// OpenHistoryLog opens (or creates) the history file at path.
func OpenHistoryLog(path, archivePath string) (*HistoryLog, error) {
	if err := os.MkdirAll(archivePath, 0o755); err != nil {
		return nil, errors.Wrap(err, "create log archive")
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open history log %s", path)
	}
	return &HistoryLog{file: f, path: path, archivePath: archivePath, now: time.Now}, nil
}

// SetClock replaces the time source used for line timestamps.
func (l *HistoryLog) SetClock(now func() time.Time) {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
}

func (l *HistoryLog) Path() string        { return l.path }
func (l *HistoryLog) ArchivePath() string { return l.archivePath }

// Close closes the underlying file.
func (l *HistoryLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Log writes a timestamped message.
func (l *HistoryLog) Log(format string, args ...interface{}) {
	l.mu.Lock()
	line := fmt.Sprintf("[%d] %s", l.now().Unix(), fmt.Sprintf(format, args...))
	if l.file != nil {
		l.file.WriteString(line + "\n")
	}
	hook := l.Hook
	l.mu.Unlock()
	if hook != nil {
		hook(line)
	}
}

// LogServiceAlert logs a service state change alert.
func (l *HistoryLog) LogServiceAlert(hostName, svcDesc string, state, stateType, attempt int, output string) {
	l.Log("SERVICE ALERT: %s;%s;%s;%s;%d;%s",
		hostName, svcDesc,
		objects.ServiceStateName(state),
		objects.StateTypeName(stateType),
		attempt, output)
}

// LogHostAlert logs a host state change alert.
func (l *HistoryLog) LogHostAlert(hostName string, state, stateType, attempt int, output string) {
	l.Log("HOST ALERT: %s;%s;%s;%d;%s",
		hostName,
		objects.HostStateName(state),
		objects.StateTypeName(stateType),
		attempt, output)
}

// LogHostDowntime logs a host downtime alert.
func (l *HistoryLog) LogHostDowntime(hostName, action, message string) {
	l.Log("HOST DOWNTIME ALERT: %s;%s; %s", hostName, action, message)
}

// LogServiceDowntime logs a service downtime alert.
func (l *HistoryLog) LogServiceDowntime(hostName, svcDesc, action, message string) {
	l.Log("SERVICE DOWNTIME ALERT: %s;%s;%s; %s", hostName, svcDesc, action, message)
}

// LogExternalCommand logs an external command.
func (l *HistoryLog) LogExternalCommand(cmdName string, args []string) {
	argStr := ""
	if len(args) > 0 {
		argStr = ";" + strings.Join(args, ";")
	}
	l.Log("EXTERNAL COMMAND: %s%s", cmdName, argStr)
}

// LogPassiveCheck logs a passive check result.
func (l *HistoryLog) LogPassiveCheck(isHost bool, hostName, svcDesc string, returnCode int, output string) {
	if isHost {
		l.Log("PASSIVE HOST CHECK: %s;%d;%s", hostName, returnCode, output)
	} else {
		l.Log("PASSIVE SERVICE CHECK: %s;%s;%d;%s", hostName, svcDesc, returnCode, output)
	}
}

// LogInitialHostState logs the state of a host at startup.
func (l *HistoryLog) LogInitialHostState(h *objects.Host) {
	l.Log("INITIAL HOST STATE: %s;%s;%s;%d;%s",
		h.Name,
		objects.HostStateName(h.CurrentState),
		objects.StateTypeName(h.StateType),
		h.CurrentAttempt,
		h.PluginOutput)
}

// LogInitialServiceState logs the state of a service at startup.
func (l *HistoryLog) LogInitialServiceState(s *objects.Service) {
	l.Log("INITIAL SERVICE STATE: %s;%s;%s;%s;%d;%s",
		s.Host.Name, s.Description,
		objects.ServiceStateName(s.CurrentState),
		objects.StateTypeName(s.StateType),
		s.CurrentAttempt,
		s.PluginOutput)
}

// Rotate moves the history file into the archive directory and starts a new
// one. It returns the rotation time.
func (l *HistoryLog) Rotate() (time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	base := fmt.Sprintf("nagios-%02d-%02d-%04d-%02d", now.Month(), now.Day(), now.Year(), now.Hour())
	archive := filepath.Join(l.archivePath, base+".log")
	// Never overwrite an archive from an earlier rotation in the same hour.
	for i := 1; ; i++ {
		if _, err := os.Stat(archive); os.IsNotExist(err) {
			break
		}
		archive = filepath.Join(l.archivePath, fmt.Sprintf("%s.%d.log", base, i))
	}

	if l.file != nil {
		l.file.Close()
	}
	if err := os.Rename(l.path, archive); err != nil {
		l.file, _ = os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		return time.Time{}, errors.Wrap(err, "rotate log")
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "open new log")
	}
	l.file = f
	fmt.Fprintf(l.file, "[%d] LOG ROTATION: %s\n", now.Unix(), archive)
	fmt.Fprintf(l.file, "[%d] LOG VERSION: 2.0\n", now.Unix())
	return now, nil
}
