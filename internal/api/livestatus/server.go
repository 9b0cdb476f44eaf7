package livestatus

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/oceanplexian/livestatus/internal/config"
	"github.com/oceanplexian/livestatus/internal/counters"
	"github.com/oceanplexian/livestatus/internal/poller"
)

// defaultPollInterval bounds how long the acceptor sleeps without noticing
// shutdown. It is also the housekeeping period for counter rates.
const defaultPollInterval = 2500 * time.Millisecond

// Server accepts connections on a UNIX socket and hands them to a fixed
// pool of workers through a bounded queue.
type Server struct {
	cfg   *config.Config
	store *Store
	log   logrus.FieldLogger

	ln           *net.UnixListener
	queue        *Queue[net.Conn]
	pollInterval time.Duration
	warnLimit    *rate.Limiter

	terminating atomic.Bool
	active      atomic.Int64
}

func NewServer(store *Store, cfg *config.Config, log logrus.FieldLogger) *Server {
	s := &Server{
		cfg:          cfg,
		store:        store,
		log:          log,
		queue:        NewQueue[net.Conn](cfg.MaxQueuedConnections),
		pollInterval: defaultPollInterval,
		warnLimit:    rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
	store.SetConnectionStats(s)
	return s
}

func (s *Server) ActiveConnections() int { return int(s.active.Load()) }
func (s *Server) QueuedConnections() int { return s.queue.Len() }
func (s *Server) Threads() int           { return s.cfg.NumClientThreads }

func (s *Server) shouldTerminate() bool { return s.terminating.Load() }

// Listen binds the socket, replacing a stale socket file.
func (s *Server) Listen() error {
	path := s.cfg.SocketPath
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "cannot remove stale socket %s", path)
	}
	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return errors.Wrapf(err, "cannot bind UNIX socket %s", path)
	}
	ln.SetUnlinkOnClose(false)
	if err := os.Chmod(path, 0o660); err != nil {
		ln.Close()
		return errors.Wrapf(err, "cannot chmod socket %s", path)
	}
	s.ln = ln
	s.log.Infof("opened UNIX socket at %s", path)
	return nil
}

// Serve runs the acceptor and the workers until ctx is done, then shuts
// down: queued connections are closed, running requests see
// shouldTerminate and the socket file is removed.
func (s *Server) Serve(ctx context.Context) error {
	if s.ln == nil {
		return errors.New("server is not listening")
	}
	g := new(errgroup.Group)
	for i := 0; i < s.cfg.NumClientThreads; i++ {
		log := s.log.WithField("thread", fmt.Sprintf("client %d", i))
		g.Go(func() error {
			s.worker(ctx, log)
			return nil
		})
	}
	s.log.Infof("starting %d client threads", s.cfg.NumClientThreads)

	s.accept(ctx, s.log.WithField("thread", "main"))

	s.terminating.Store(true)
	s.queue.Join()
	for _, conn := range s.queue.Drain() {
		conn.Close()
	}
	err := g.Wait()
	s.ln.Close()
	if rmErr := os.Remove(s.cfg.SocketPath); rmErr != nil && !os.IsNotExist(rmErr) {
		s.log.WithError(rmErr).Warn("cannot remove socket")
	}
	s.log.Info("socket thread has terminated")
	return err
}

// accept runs until ctx is done. Poll and accept failures are logged and
// retried.
func (s *Server) accept(ctx context.Context, log logrus.FieldLogger) {
	for ctx.Err() == nil {
		ready, err := poller.Wait(s.ln, poller.Read, s.pollInterval)
		counters.Update(time.Now())
		if err != nil {
			if s.warnLimit.Allow() {
				log.WithError(err).Warn("cannot poll socket")
			}
			select {
			case <-ctx.Done():
			case <-time.After(s.pollInterval):
			}
			continue
		}
		if !ready || ctx.Err() != nil {
			continue
		}
		_ = s.ln.SetDeadline(time.Now().Add(s.pollInterval))
		conn, err := s.ln.Accept()
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if s.warnLimit.Allow() {
				log.WithError(err).Warn("cannot accept client connection")
			}
			continue
		}
		counters.Increment(counters.Connections)
		dropped, hasDropped, status := s.queue.Push(conn, OverflowPopOldest)
		switch {
		case status == QueueJoined:
			conn.Close()
			return
		case hasDropped:
			dropped.Close()
			counters.Increment(counters.Overflows)
			if s.warnLimit.Allow() {
				log.Warnf("queue full, dropped oldest connection, limit is %d", s.cfg.MaxQueuedConnections)
			}
		}
	}
}

func (s *Server) worker(ctx context.Context, log logrus.FieldLogger) {
	for {
		conn, ok := s.queue.Pop()
		if !ok {
			return
		}
		s.handleConnection(ctx, conn, log)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn, log logrus.FieldLogger) {
	s.active.Add(1)
	defer s.active.Add(-1)
	defer conn.Close()

	in := NewInputBuffer(conn, s.shouldTerminate, s.cfg.QueryTimeout, s.cfg.IdleTimeout, log)
	for {
		res := in.ReadRequest()
		out := NewOutputBuffer(conn, s.shouldTerminate, log)
		keepAlive := false
		switch res {
		case RequestRead:
			keepAlive = s.store.AnswerRequest(ctx, in.Request(), out)
		case UnexpectedEOF, LineTooLong, EmptyRequest:
			out.SetError(CodeIncompleteRequest, "Client sent "+res.String())
		case Timeout:
			out.SetError(CodeTimeout, "Client connection timed out")
		default:
			out.Release()
			return
		}
		if code, msg, failed := out.Error(); failed {
			log.WithField("code", int(code)).Debug(msg)
		}
		out.Flush()
		if !keepAlive || s.shouldTerminate() {
			return
		}
	}
}
