package livestatus

import (
	"bytes"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/oceanplexian/livestatus/internal/poller"
)

// InputResult is the outcome of reading one request.
type InputResult int

const (
	RequestRead InputResult = iota
	DataRead
	UnexpectedEOF
	ShouldTerminate
	LineTooLong
	EOF
	EmptyRequest
	Timeout
)

var inputResultNames = [...]string{
	"request read", "data read", "unexpected EOF", "should terminate",
	"line too long", "EOF", "empty request", "timeout",
}

func (r InputResult) String() string { return inputResultNames[r] }

const (
	initialBufferSize = 4096
	maxBufferSize     = 500 * 1024 * 1024
	readSlice         = 200 * time.Millisecond
)

// InputBuffer splits the byte stream of a connection into requests: runs of
// lines terminated by an empty line.
type InputBuffer struct {
	conn         net.Conn
	terminate    func() bool
	queryTimeout time.Duration
	idleTimeout  time.Duration
	log          logrus.FieldLogger

	buf      []byte
	readIdx  int // start of unconsumed data
	writeIdx int // end of valid data
	maxSize  int
	request  []string
}

// NewInputBuffer reads from conn until terminate reports true. A request
// must arrive completely within queryTimeout of its first byte, and the
// first byte within idleTimeout. Zero timeouts disable the limit.
func NewInputBuffer(conn net.Conn, terminate func() bool, queryTimeout, idleTimeout time.Duration, log logrus.FieldLogger) *InputBuffer {
	return &InputBuffer{
		conn:         conn,
		terminate:    terminate,
		queryTimeout: queryTimeout,
		idleTimeout:  idleTimeout,
		log:          log,
		buf:          make([]byte, initialBufferSize),
		maxSize:      maxBufferSize,
	}
}

// Request returns the lines of the last request read, right-trimmed.
func (b *InputBuffer) Request() []string { return b.request }

// ReadRequest reads the next request. Data following it stays buffered for
// the next call.
func (b *InputBuffer) ReadRequest() InputResult {
	b.request = nil
	idleStart := time.Now()
	var queryStart time.Time
	started := b.readIdx < b.writeIdx
	if started {
		queryStart = idleStart
	}

	r := b.readIdx
	for {
		for r < b.writeIdx && b.buf[r] != '\n' {
			r++
		}
		if r < b.writeIdx {
			line := b.buf[b.readIdx:r]
			r++
			b.readIdx = r
			if len(line) == 0 || (len(line) == 1 && line[0] == '\r') {
				if len(b.request) > 0 {
					return RequestRead
				}
				return EmptyRequest
			}
			if trimmed := bytes.TrimRight(line, " \t\r\v\f"); len(trimmed) > 0 {
				b.request = append(b.request, string(trimmed))
			} else {
				b.log.Warn("ignoring line containing only whitespace")
			}
			continue
		}

		if b.writeIdx == len(b.buf) {
			switch {
			case b.readIdx > 0:
				n := copy(b.buf, b.buf[b.readIdx:b.writeIdx])
				r -= b.readIdx
				b.readIdx, b.writeIdx = 0, n
			case len(b.buf) < b.maxSize:
				size := min(2*len(b.buf), b.maxSize)
				b.log.Debugf("input buffer too small, enlarging it to %d bytes", size)
				grown := make([]byte, size)
				copy(grown, b.buf[:b.writeIdx])
				b.buf = grown
			default:
				return LineTooLong
			}
		}

		var deadline time.Time
		if started && b.queryTimeout > 0 {
			deadline = queryStart.Add(b.queryTimeout)
		} else if !started && b.idleTimeout > 0 {
			deadline = idleStart.Add(b.idleTimeout)
		}
		switch res := b.readData(deadline); res {
		case DataRead:
			if !started {
				started, queryStart = true, time.Now()
			}
		case EOF:
			if r > b.readIdx {
				return UnexpectedEOF
			}
			if len(b.request) > 0 {
				return RequestRead
			}
			return EOF
		case Timeout:
			if started {
				b.log.Debugf("timeout of %v exceeded while reading query", b.queryTimeout)
			} else {
				b.log.Debugf("idle timeout of %v exceeded, going to close connection", b.idleTimeout)
			}
			return Timeout
		default:
			return res
		}
	}
}

// readData reads whatever is available into the free part of the buffer. It
// waits in short slices so that termination and deadline are noticed.
func (b *InputBuffer) readData(deadline time.Time) InputResult {
	for !b.terminate() {
		wait := readSlice
		if !deadline.IsZero() {
			left := time.Until(deadline)
			if left <= 0 {
				return Timeout
			}
			wait = min(wait, left)
		}
		ready, err := poller.Wait(b.conn, poller.Read, wait)
		if err != nil {
			b.log.WithError(err).Debug("cannot poll client connection")
			return EOF
		}
		if !ready {
			continue
		}
		_ = b.conn.SetReadDeadline(time.Now().Add(wait))
		n, err := b.conn.Read(b.buf[b.writeIdx:])
		b.writeIdx += n
		if n > 0 {
			return DataRead
		}
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if err != io.EOF {
				b.log.WithError(err).Debug("cannot read from client connection")
			}
			return EOF
		}
	}
	return ShouldTerminate
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
