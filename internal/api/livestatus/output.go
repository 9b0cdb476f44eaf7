package livestatus

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/valyala/bytebufferpool"

	"github.com/oceanplexian/livestatus/internal/poller"
)

// ResponseCode is the status reported in a fixed16 response header.
type ResponseCode int

const (
	CodeOK                ResponseCode = 200
	CodeInvalidHeader     ResponseCode = 400
	CodeUnauthorized      ResponseCode = 403
	CodeNotFound          ResponseCode = 404
	CodeLimitExceeded     ResponseCode = 413
	CodeIncompleteRequest ResponseCode = 451
	CodeTimeout           ResponseCode = 452
	CodeInternalError     ResponseCode = 500
	CodeBadGateway        ResponseCode = 502
)

const (
	writeSlice          = 100 * time.Millisecond
	fixed16HeaderFormat = "%03d %11d\n"
)

// ResponseHeader selects whether a status line precedes the body.
type ResponseHeader int

const (
	HeaderOff ResponseHeader = iota
	HeaderFixed16
)

// OutputBuffer collects the response to one request and writes it in one
// go. The first error set replaces the whole body.
type OutputBuffer struct {
	conn      net.Conn
	terminate func() bool
	log       logrus.FieldLogger

	body   *bytebufferpool.ByteBuffer
	header ResponseHeader
	code   ResponseCode
	errMsg string
}

func NewOutputBuffer(conn net.Conn, terminate func() bool, log logrus.FieldLogger) *OutputBuffer {
	return &OutputBuffer{
		conn:      conn,
		terminate: terminate,
		log:       log,
		body:      bytebufferpool.Get(),
		code:      CodeOK,
	}
}

// Write appends to the body.
func (o *OutputBuffer) Write(p []byte) (int, error) { return o.body.Write(p) }

func (o *OutputBuffer) WriteString(s string) (int, error) { return o.body.WriteString(s) }

// Size is the body length so far.
func (o *OutputBuffer) Size() int { return o.body.Len() }

func (o *OutputBuffer) SetResponseHeader(h ResponseHeader) { o.header = h }

// SetError records an error unless one is already set.
func (o *OutputBuffer) SetError(code ResponseCode, msg string) {
	if o.code != CodeOK {
		return
	}
	o.log.Debugf("error %d: %s", code, msg)
	o.code = code
	o.errMsg = msg
}

// Error returns the recorded error, if any.
func (o *OutputBuffer) Error() (ResponseCode, string, bool) {
	return o.code, o.errMsg, o.code != CodeOK
}

// Bytes returns what Flush writes.
func (o *OutputBuffer) Bytes() []byte {
	var body []byte
	if o.code != CodeOK {
		body = []byte(o.errMsg + "\n")
	} else {
		body = o.body.B
	}
	if o.header == HeaderFixed16 {
		head := fmt.Sprintf(fixed16HeaderFormat, o.code, len(body))
		return append([]byte(head), body...)
	}
	return body
}

// Flush writes the response to the connection and releases the body.
func (o *OutputBuffer) Flush() {
	o.writeAll(o.Bytes())
	o.Release()
}

// Release returns the body to the pool without writing it.
func (o *OutputBuffer) Release() {
	if o.body != nil {
		bytebufferpool.Put(o.body)
		o.body = nil
	}
}

// writeAll retries short writes in slices until everything is written,
// the client is gone or the server terminates.
func (o *OutputBuffer) writeAll(data []byte) {
	for len(data) > 0 {
		if o.terminate() {
			o.log.Debug("server terminating, response not sent completely")
			return
		}
		ready, err := poller.Wait(o.conn, poller.Write, writeSlice)
		if err != nil {
			o.log.WithError(err).Debug("cannot poll client connection")
			return
		}
		if !ready {
			continue
		}
		_ = o.conn.SetWriteDeadline(time.Now().Add(writeSlice))
		n, err := o.conn.Write(data)
		data = data[n:]
		if err != nil && !isTimeout(err) {
			if err != io.EOF {
				o.log.WithError(err).Debug("cannot write to client connection")
			}
			return
		}
	}
}
