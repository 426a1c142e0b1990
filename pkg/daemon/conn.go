package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/cuemby/omg/pkg/handler"
	"github.com/cuemby/omg/pkg/log"
	"github.com/cuemby/omg/pkg/metrics"
	"github.com/cuemby/omg/pkg/rpc"
	"github.com/cuemby/omg/pkg/validate"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MaxHandlersPerConn bounds the number of requests dispatched
// concurrently within a single connection.
const MaxHandlersPerConn = 32

// RequestTimeout bounds a single dispatched request. Handlers observe
// it at their next suspension point (backend call, storage access);
// pure in-memory work is already bounded by the index's candidate cap.
const RequestTimeout = 30 * time.Second

// conn owns one accepted connection's read loop: decode frames,
// validate, dispatch (bounded by a per-connection task semaphore),
// encode and write responses. Writes are serialized through writeMu
// since responses to concurrently-dispatched requests complete out of
// order.
type conn struct {
	id       string
	raw      *net.UnixConn
	handlers *handler.Handlers
	limiter  *validate.ConnLimiter
	logger   zerolog.Logger
	owner    bool

	writeMu sync.Mutex
	taskSem chan struct{}
	wg      sync.WaitGroup
}

func newConn(raw *net.UnixConn, h *handler.Handlers, ratePerSec int, logger zerolog.Logger) *conn {
	id := uuid.NewString()
	return &conn{
		id:       id,
		raw:      raw,
		handlers: h,
		limiter:  validate.NewConnLimiter(ratePerSec),
		logger:   log.WithConnID(id),
		owner:    isOwner(raw),
		taskSem:  make(chan struct{}, MaxHandlersPerConn),
	}
}

// serve runs the read loop until the peer disconnects, a protocol
// error occurs, or ctx is cancelled (server draining). It always
// returns once every dispatched task has written its response.
func (c *conn) serve(ctx context.Context) {
	defer c.raw.Close()

	readDone := make(chan struct{})
	defer close(readDone)
	go func() {
		select {
		case <-ctx.Done():
			// Unblock a pending ReadFrame once the server starts
			// draining, rather than waiting indefinitely for the peer
			// to close.
			c.raw.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
		case <-readDone:
		}
	}()

	for {
		payload, err := rpc.ReadFrame(c.raw)
		if err != nil {
			if errors.Is(err, rpc.ErrFrameTooLarge) {
				c.writeError(0, "", &rpc.Error{Kind: rpc.KindProtocolError, Reason: "frame_too_large"})
			} else if !errors.Is(err, io.EOF) {
				c.logger.Debug().Err(err).Msg("connection read ended")
			}
			break
		}

		req, err := rpc.DecodeRequest(payload)
		if err != nil {
			var derr *rpc.Error
			if !errors.As(err, &derr) {
				derr = &rpc.Error{Kind: rpc.KindProtocolError, Reason: "malformed_body"}
			}
			c.writeError(0, "", derr)
			break
		}

		if !c.limiter.Allow() {
			c.writeError(req.ID, req.Kind, rpc.ErrRateLimited)
			continue
		}

		c.dispatchAsync(ctx, *req)
	}

	c.wg.Wait()
}

func (c *conn) dispatchAsync(ctx context.Context, req rpc.Request) {
	select {
	case c.taskSem <- struct{}{}:
	case <-ctx.Done():
		c.writeError(req.ID, req.Kind, rpc.NewInternal("connection draining"))
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() { <-c.taskSem }()
		defer func() {
			if r := recover(); r != nil {
				log.WithRequestID(req.ID).Error().Interface("panic", r).Msg("handler panic recovered")
				c.writeError(req.ID, req.Kind, rpc.NewInternal("handler panic"))
				metrics.RPCRequestsTotal.WithLabelValues(string(req.Kind), "panic").Inc()
			}
		}()

		reqCtx, cancel := context.WithTimeout(ctx, RequestTimeout)
		defer cancel()

		timer := metrics.NewTimer()
		resp := c.handlers.Dispatch(reqCtx, req, handler.ConnInfo{IsOwner: c.owner, ConnID: c.id})
		timer.ObserveDurationVec(metrics.RPCRequestDuration, string(req.Kind))

		outcome := "ok"
		if resp.Error != nil {
			outcome = string(resp.Error.Kind)
		}
		metrics.RPCRequestsTotal.WithLabelValues(string(req.Kind), outcome).Inc()

		c.write(resp)
	}()
}

func (c *conn) writeError(id uint64, kind rpc.RequestKind, err *rpc.Error) {
	c.write(rpc.ErrorResponse(id, kind, err))
}

func (c *conn) write(resp rpc.Response) {
	payload, err := rpc.EncodeResponse(resp)
	if err != nil {
		c.logger.Error().Err(err).Msg("encode response")
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := rpc.WriteFrame(c.raw, payload); err != nil {
		c.logger.Debug().Err(err).Msg("write response")
	}
}
