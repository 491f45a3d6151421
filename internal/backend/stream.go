package backend

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	hmi "extruder_hmi"
)

const (
	ioPath = "/ws/io"

	streamBuffer  = 64
	maxFrameSize  = 1 << 12 // 4 KB, single-field events are tiny
	redialEvery   = 2 * time.Second
	redialBurst   = 1
	handshakeWait = 5 * time.Second
)

// StatusFunc is notified on connect and disconnect. err is nil on connect.
type StatusFunc func(connected bool, err error)

// DeltaStream is the push channel: it dials the backend's io websocket,
// decodes {category, key, val} frames into Deltas, and redials on loss.
// Reconnection lives here, not in the arbiter: the consumer just reads
// Deltas() until it is closed by cancellation.
type DeltaStream struct {
	url     string
	dialer  *websocket.Dialer
	limiter *rate.Limiter
	deltas  chan hmi.Delta
	notify  StatusFunc
}

// NewDeltaStream builds a stream for ws(s)://host base URL wsBase.
// notify may be nil.
func NewDeltaStream(wsBase string, notify StatusFunc) *DeltaStream {
	return &DeltaStream{
		url: wsBase + ioPath,
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeWait,
		},
		limiter: rate.NewLimiter(rate.Every(redialEvery), redialBurst),
		deltas:  make(chan hmi.Delta, streamBuffer),
		notify:  notify,
	}
}

// Deltas is the in-order event channel. Closed when Run returns.
func (s *DeltaStream) Deltas() <-chan hmi.Delta {
	return s.deltas
}

// Run dials, reads, and redials until ctx is canceled. Dial attempts are
// paced by the limiter so a flapping backend is not hammered.
func (s *DeltaStream) Run(ctx context.Context) {
	defer close(s.deltas)

	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}

		conn, resp, err := s.dialer.DialContext(ctx, s.url, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			s.report(false, err)
			if ctx.Err() != nil {
				return
			}
			continue
		}

		s.report(true, nil)
		err = s.readLoop(ctx, conn)
		_ = conn.Close()
		s.report(false, err)

		if ctx.Err() != nil {
			return
		}
	}
}

// readLoop decodes frames until the connection drops or ctx is canceled.
// Cancellation closes the connection out-of-band to unblock the read.
func (s *DeltaStream) readLoop(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadLimit(maxFrameSize)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var d hmi.Delta
		if err := conn.ReadJSON(&d); err != nil {
			return err
		}
		select {
		case s.deltas <- d:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *DeltaStream) report(connected bool, err error) {
	if s.notify != nil {
		s.notify(connected, err)
	}
}
