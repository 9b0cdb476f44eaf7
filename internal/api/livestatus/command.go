package livestatus

import (
	"io"
	"net"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/oceanplexian/livestatus/internal/extcmd"
)

const (
	eventConsolePrefix  = "EC_"
	eventConsoleTimeout = 5 * time.Second
)

// isEventConsoleCommand reports whether cmd belongs to the event console.
func isEventConsoleCommand(cmd *extcmd.Command) bool {
	return strings.HasPrefix(cmd.Name, eventConsolePrefix)
}

// EventConsole forwards EC_ commands to the event console status socket.
type EventConsole struct {
	socket   string
	attempts uint
	delay    time.Duration
	log      logrus.FieldLogger
}

func NewEventConsole(socket string, log logrus.FieldLogger) *EventConsole {
	return &EventConsole{socket: socket, attempts: 3, delay: 100 * time.Millisecond, log: log}
}

// Forward sends "COMMAND NAME;args" without the EC_ prefix and drains the
// reply. The event console answers on the same connection once the write
// side is closed.
func (ec *EventConsole) Forward(cmd *extcmd.Command) error {
	var conn net.Conn
	err := retry.Do(
		func() error {
			c, err := net.DialTimeout("unix", ec.socket, eventConsoleTimeout)
			if err != nil {
				return err
			}
			conn = c
			return nil
		},
		retry.Attempts(ec.attempts),
		retry.Delay(ec.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			ec.log.WithError(err).Debugf("retrying event console connect (%d)", n+1)
		}),
	)
	if err != nil {
		return errors.Wrapf(err, "cannot connect to event console at %s", ec.socket)
	}
	defer conn.Close()

	line := "COMMAND " + strings.TrimPrefix(cmd.Name, eventConsolePrefix)
	if len(cmd.Args) > 0 {
		line += ";" + strings.Join(cmd.Args, ";")
	}
	_ = conn.SetDeadline(time.Now().Add(eventConsoleTimeout))
	if _, err := io.WriteString(conn, line+"\n"); err != nil {
		return errors.Wrap(err, "cannot send command to event console")
	}
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		if err := cw.CloseWrite(); err != nil {
			return errors.Wrap(err, "cannot shutdown event console connection")
		}
	}
	if _, err := io.Copy(io.Discard, conn); err != nil {
		return errors.Wrap(err, "cannot read event console reply")
	}
	return nil
}
