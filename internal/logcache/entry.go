package logcache

import (
	"strconv"
	"strings"
	"time"
)

// Class groups log lines for the log table's class column and for loading.
type Class int

const (
	ClassInfo Class = iota
	ClassAlert
	ClassProgram
	ClassNotification
	ClassPassive
	ClassCommand
	ClassState
	ClassText
	ClassAlertHandlers
	numClasses
)

// AllClasses is the class mask selecting every class.
const AllClasses uint32 = 1<<numClasses - 1

// Mask returns the bit of c in a class mask.
func (c Class) Mask() uint32 { return 1 << uint(c) }

// Entry is one parsed line of a history log.
type Entry struct {
	Time    time.Time
	Lineno  int
	Class   Class
	Type    string
	Message string
	Options string

	State              int
	StateType          string
	StateInfo          string
	Attempt            int
	HostName           string
	ServiceDescription string
	ContactName        string
	CommandName        string
	PluginOutput       string
	LongPluginOutput   string
	Comment            string
}

type entryKey struct {
	time   int64
	lineno int
}

func (e *Entry) key() entryKey { return entryKey{e.Time.Unix(), e.Lineno} }

func (a entryKey) less(b entryKey) bool {
	if a.time != b.time {
		return a.time < b.time
	}
	return a.lineno < b.lineno
}

// field names used by the per-type parameter lists
type param int

const (
	pHost param = iota
	pService
	pContact
	pCommand
	pHostState
	pServiceState
	pExitCode
	pStateType
	pAttempt
	pOutput
	pLongOutput
	pComment
	pStateInt
	pIgnore
)

type logDef struct {
	prefix string
	class  Class
	params []param
}

var logDefs = []logDef{
	{"INITIAL HOST STATE", ClassState, []param{pHost, pHostState, pStateType, pAttempt, pOutput, pLongOutput}},
	{"CURRENT HOST STATE", ClassState, []param{pHost, pHostState, pStateType, pAttempt, pOutput, pLongOutput}},
	{"HOST ALERT", ClassAlert, []param{pHost, pHostState, pStateType, pAttempt, pOutput, pLongOutput}},
	{"HOST DOWNTIME ALERT", ClassAlert, []param{pHost, pStateType, pComment}},
	{"HOST ACKNOWLEDGE ALERT", ClassAlert, []param{pHost, pStateType, pContact, pComment}},
	{"HOST FLAPPING ALERT", ClassAlert, []param{pHost, pStateType, pComment}},
	{"INITIAL SERVICE STATE", ClassState, []param{pHost, pService, pServiceState, pStateType, pAttempt, pOutput, pLongOutput}},
	{"CURRENT SERVICE STATE", ClassState, []param{pHost, pService, pServiceState, pStateType, pAttempt, pOutput, pLongOutput}},
	{"SERVICE ALERT", ClassAlert, []param{pHost, pService, pServiceState, pStateType, pAttempt, pOutput, pLongOutput}},
	{"SERVICE DOWNTIME ALERT", ClassAlert, []param{pHost, pService, pStateType, pComment}},
	{"SERVICE ACKNOWLEDGE ALERT", ClassAlert, []param{pHost, pService, pStateType, pContact, pComment}},
	{"SERVICE FLAPPING ALERT", ClassAlert, []param{pHost, pService, pStateType, pComment}},
	{"TIMEPERIOD TRANSITION", ClassState, nil},
	{"HOST NOTIFICATION RESULT", ClassNotification, []param{pContact, pHost, pExitCode, pCommand, pOutput, pComment}},
	{"SERVICE NOTIFICATION RESULT", ClassNotification, []param{pContact, pHost, pService, pExitCode, pCommand, pOutput, pComment}},
	{"HOST NOTIFICATION PROGRESS", ClassNotification, []param{pContact, pHost, pExitCode, pCommand, pOutput}},
	{"SERVICE NOTIFICATION PROGRESS", ClassNotification, []param{pContact, pHost, pService, pExitCode, pCommand, pOutput}},
	{"HOST NOTIFICATION", ClassNotification, []param{pContact, pHost, pHostState, pCommand, pOutput, pIgnore, pComment, pLongOutput}},
	{"SERVICE NOTIFICATION", ClassNotification, []param{pContact, pHost, pService, pServiceState, pCommand, pOutput, pIgnore, pComment, pLongOutput}},
	{"HOST ALERT HANDLER STARTED", ClassAlertHandlers, []param{pHost, pCommand}},
	{"SERVICE ALERT HANDLER STARTED", ClassAlertHandlers, []param{pHost, pService, pCommand}},
	{"HOST ALERT HANDLER STOPPED", ClassAlertHandlers, []param{pHost, pCommand, pExitCode, pOutput}},
	{"SERVICE ALERT HANDLER STOPPED", ClassAlertHandlers, []param{pHost, pService, pCommand, pExitCode, pOutput}},
	{"PASSIVE HOST CHECK", ClassPassive, []param{pHost, pStateInt, pOutput}},
	{"PASSIVE SERVICE CHECK", ClassPassive, []param{pHost, pService, pStateInt, pOutput}},
	{"EXTERNAL COMMAND", ClassCommand, nil},
}

// Lines of the program class keep their whole text as type.
var programPrefixes = []string{
	"LOG VERSION: ",
	"LOG ROTATION: ",
	"logging initial states",
	"starting...",
	"active mode...",
	"shutting down...",
	"Bailing out",
	"standby mode...",
	"Caught SIG",
	"Successfully",
	"Lockfile",
}

// ParseEntry parses one history line. It reports false for lines without a
// valid "[timestamp] " prefix.
func ParseEntry(lineno int, line string) (*Entry, bool) {
	if len(line) < 3 || line[0] != '[' {
		return nil, false
	}
	end := strings.IndexByte(line, ']')
	if end < 2 || end+1 >= len(line) || line[end+1] != ' ' {
		return nil, false
	}
	ts, err := strconv.ParseInt(line[1:end], 10, 64)
	if err != nil {
		return nil, false
	}
	e := &Entry{Time: time.Unix(ts, 0), Lineno: lineno, Message: line}
	text := line[end+2:]
	if i := strings.IndexByte(text, ':'); i >= 0 {
		e.Options = strings.TrimLeft(text[i+1:], " ")
	}

	for _, p := range programPrefixes {
		if strings.HasPrefix(text, p) {
			e.Class = ClassProgram
			e.Type = text
			return e, true
		}
	}
	for i := range logDefs {
		def := &logDefs[i]
		if strings.HasPrefix(text, def.prefix+": ") {
			e.Class = def.class
			e.Type = def.prefix
			e.assign(def.params)
			return e, true
		}
	}
	e.Class = ClassInfo
	e.Type = text
	return e, true
}

func (e *Entry) assign(params []param) {
	if len(params) == 0 {
		return
	}
	fields := strings.Split(e.Options, ";")
	// Legacy notification lines carry the command before the state.
	if e.Class == ClassNotification {
		for i, p := range params {
			if p != pHostState && p != pServiceState && p != pExitCode {
				continue
			}
			if i+1 < len(fields) && fields[i] == "check-mk-notify" {
				fields[i], fields[i+1] = fields[i+1], fields[i]
			}
			break
		}
	}

	var stateName, exitName string
	for i, p := range params {
		if i >= len(fields) {
			break
		}
		f := fields[i]
		switch p {
		case pHost:
			e.HostName = f
		case pService:
			e.ServiceDescription = f
		case pContact:
			e.ContactName = f
		case pCommand:
			e.CommandName = f
		case pHostState:
			stateName = f
			e.StateType = f
			if strings.HasPrefix(f, "ALERTHANDLER (") {
				e.State = serviceStateFromName(parensArg(f))
			} else {
				e.State = hostStateFromName(parensArg(f))
			}
		case pServiceState:
			stateName = f
			e.StateType = f
			e.State = serviceStateFromName(parensArg(f))
		case pExitCode:
			// exit codes are logged as service states
			exitName = f
			if e.Class == ClassNotification {
				e.StateType = f
			}
			e.State = serviceStateFromName(f)
		case pStateType:
			e.StateType = f
		case pAttempt:
			e.Attempt, _ = strconv.Atoi(f)
		case pOutput:
			e.PluginOutput = f
		case pLongOutput:
			e.LongPluginOutput = strings.ReplaceAll(f, `\n`, "\n")
		case pComment:
			e.Comment = f
		case pStateInt:
			e.State, _ = strconv.Atoi(f)
		}
	}
	if i := strings.Index(e.PluginOutput, `\n`); i >= 0 && e.LongPluginOutput == "" {
		e.LongPluginOutput = strings.ReplaceAll(e.PluginOutput[i+2:], `\n`, "\n")
		e.PluginOutput = e.PluginOutput[:i]
	}
	e.StateInfo = e.stateInfo(params, stateName, exitName)
}

func (e *Entry) stateInfo(params []param, stateName, exitName string) string {
	switch {
	case exitName != "":
		return "EXIT_CODE (" + exitCodeName(e.State) + ")"
	case e.Class == ClassNotification && stateName != "":
		if strings.Contains(stateName, "(") {
			if strings.HasPrefix(stateName, "ALERTHANDLER (") {
				return "EXIT_CODE (" + exitCodeName(e.State) + ")"
			}
			return stateName
		}
		return "NOTIFY (" + stateName + ")"
	case e.Class == ClassPassive:
		if e.ServiceDescription != "" {
			return "PASSIVE (" + serviceStateName(e.State) + ")"
		}
		return "PASSIVE (" + hostStateName(e.State) + ")"
	case stateName != "":
		return e.StateType + " (" + stateName + ")"
	}
	for _, p := range params {
		if p == pStateType {
			return e.StateType
		}
	}
	return ""
}

// parensArg returns the text inside "REASON (ARG)", or s itself.
func parensArg(s string) string {
	open := strings.IndexByte(s, '(')
	end := strings.LastIndexByte(s, ')')
	if open < 0 || end < open {
		return s
	}
	return strings.TrimSpace(s[open+1 : end])
}

func hostStateFromName(s string) int {
	switch s {
	case "DOWN":
		return 1
	case "UNREACHABLE":
		return 2
	}
	return 0
}

func serviceStateFromName(s string) int {
	switch s {
	case "WARNING":
		return 1
	case "CRITICAL":
		return 2
	case "UNKNOWN":
		return 3
	}
	return 0
}

func hostStateName(state int) string {
	switch state {
	case 0:
		return "UP"
	case 1:
		return "DOWN"
	case 2:
		return "UNREACHABLE"
	}
	return "UNKNOWN"
}

func serviceStateName(state int) string {
	switch state {
	case 0:
		return "OK"
	case 1:
		return "WARNING"
	case 2:
		return "CRITICAL"
	}
	return "UNKNOWN"
}

func exitCodeName(code int) string {
	switch code {
	case 0:
		return "SUCCESS"
	case 1:
		return "TEMPORARY_FAILURE"
	case 2:
		return "PERMANENT_FAILURE"
	}
	return "FUNNY_EXIT_CODE_" + strconv.Itoa(code)
}
