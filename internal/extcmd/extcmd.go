// Package extcmd parses Nagios external commands and dispatches them to
// registered handlers.
package extcmd

import (
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// ErrUnknownCommand is returned by Dispatch for names without a handler.
var ErrUnknownCommand = errors.New("unknown external command")

// Command represents a parsed external command.
type Command struct {
	Timestamp int64
	Name      string
	Args      []string
	Raw       string
}

// String renders the command in pipe format.
func (c *Command) String() string {
	if len(c.Args) == 0 {
		return "[" + strconv.FormatInt(c.Timestamp, 10) + "] " + c.Name
	}
	return "[" + strconv.FormatInt(c.Timestamp, 10) + "] " + c.Name + ";" + strings.Join(c.Args, ";")
}

// Arg returns argument i, or an error naming the command if it is missing.
func (c *Command) Arg(i int) (string, error) {
	if i >= len(c.Args) {
		return "", errors.Errorf("%s: missing argument %d", c.Name, i+1)
	}
	return c.Args[i], nil
}

// Int parses argument i as an integer.
func (c *Command) Int(i int) (int64, error) {
	s, err := c.Arg(i)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "%s: argument %d", c.Name, i+1)
	}
	return v, nil
}

// Bool parses argument i as a Nagios flag: anything but "0" and "" is true.
func (c *Command) Bool(i int) (bool, error) {
	s, err := c.Arg(i)
	if err != nil {
		return false, err
	}
	s = strings.TrimSpace(s)
	return s != "" && s != "0", nil
}

// Handler processes one external command.
type Handler func(cmd *Command) error

// Dispatcher routes commands to handlers by name.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// Register registers a handler for a command name.
func (d *Dispatcher) Register(name string, h Handler) {
	d.mu.Lock()
	d.handlers[name] = h
	d.mu.Unlock()
}

// RegisterHandlers registers multiple handlers at once.
func (d *Dispatcher) RegisterHandlers(handlers map[string]Handler) {
	d.mu.Lock()
	for name, h := range handlers {
		d.handlers[name] = h
	}
	d.mu.Unlock()
}

// Dispatch runs the handler registered for cmd.Name.
func (d *Dispatcher) Dispatch(cmd *Command) error {
	d.mu.RLock()
	h, ok := d.handlers[cmd.Name]
	d.mu.RUnlock()
	if !ok {
		return errors.Wrap(ErrUnknownCommand, cmd.Name)
	}
	return h(cmd)
}

// Parse parses a single external command line.
// Format: [<timestamp>] <COMMAND_NAME>;<arg1>;<arg2>;...
func Parse(line string) (*Command, error) {
	line = strings.TrimSpace(line)
	if len(line) == 0 {
		return nil, errors.New("empty command")
	}
	if line[0] != '[' {
		return nil, errors.New("missing timestamp bracket")
	}
	closeBracket := strings.IndexByte(line, ']')
	if closeBracket < 0 {
		return nil, errors.New("missing closing bracket")
	}
	ts, err := strconv.ParseInt(line[1:closeBracket], 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "invalid timestamp")
	}

	rest := strings.TrimSpace(line[closeBracket+1:])
	if rest == "" {
		return nil, errors.New("missing command name")
	}
	cmd := &Command{Timestamp: ts, Raw: line}
	name, argStr, ok := strings.Cut(rest, ";")
	cmd.Name = name
	if ok {
		cmd.Args = splitArgs(name, argStr)
	}
	return cmd, nil
}

// splitArgs splits on semicolons. For commands with a known arity the last
// argument keeps any further semicolons (comments, plugin output).
func splitArgs(cmdName, argStr string) []string {
	n, ok := argCounts[cmdName]
	if !ok {
		return strings.Split(argStr, ";")
	}
	return strings.SplitN(argStr, ";", n)
}

// argCounts is the number of arguments of commands whose last argument is
// free text.
var argCounts = map[string]int{
	"ACKNOWLEDGE_HOST_PROBLEM":     6, // host;sticky;notify;persistent;author;comment
	"ACKNOWLEDGE_SVC_PROBLEM":      7, // host;svc;sticky;notify;persistent;author;comment
	"ADD_HOST_COMMENT":             4, // host;persistent;author;comment
	"ADD_SVC_COMMENT":              5, // host;svc;persistent;author;comment
	"SCHEDULE_HOST_DOWNTIME":       8, // host;start;end;fixed;trigger_id;duration;author;comment
	"SCHEDULE_SVC_DOWNTIME":        9, // host;svc;start;end;fixed;trigger_id;duration;author;comment
	"PROCESS_HOST_CHECK_RESULT":    3, // host;status;output
	"PROCESS_SERVICE_CHECK_RESULT": 4, // host;svc;status;output
}
