// Package transport manages the TCP connection between an endpoint and
// the relay server: dialing, handshake, framed send and receive loops,
// heartbeats and bounded reconnection. The capture and render legs of
// the audio pipeline share a single client, so the relay sees one
// session per endpoint.
package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/audsync/audsync/protocol"
)

type itemKind int

const (
	itemAudio itemKind = iota
	itemHeartbeat
)

type outItem struct {
	kind    itemKind
	samples []float32
}

// Client is a connection to the relay server.
type Client struct {
	sync.RWMutex
	options Options
	conn    net.Conn
	queue   chan outItem
	stop    chan struct{}
	wg      sync.WaitGroup
	log     *logrus.Entry

	started   bool
	connected atomic.Bool
	sequence  uint32

	lastAudioSent atomic.Int64 // unix nanos

	sentFrames    uint64
	recvFrames    uint64
	droppedFrames uint64
	reconnects    uint64
}

// NewClient returns a relay client. It does not connect until Start is
// called.
func NewClient(opts ...Option) (*Client, error) {

	c := &Client{
		options: Options{
			QueueSize:            32,
			HeartbeatInterval:    time.Second,
			ReconnectDelay:       time.Second,
			MaxReconnectAttempts: 5,
			ReadTimeout:          10 * time.Millisecond,
			WriteTimeout:         2 * time.Second,
			StreamConfig: protocol.StreamConfig{
				Samplerate:      44100,
				Channels:        1,
				FramesPerBuffer: 256,
			},
		},
	}

	for _, option := range opts {
		option(&c.options)
	}

	if c.options.Address == "" {
		return nil, fmt.Errorf("transport: no relay address provided")
	}

	c.queue = make(chan outItem, c.options.QueueSize)
	c.log = logrus.WithFields(logrus.Fields{
		"component": "transport",
		"relay":     c.options.Address,
	})

	return c, nil
}

// Start connects to the relay, performs the handshake and launches the
// worker goroutines.
func (c *Client) Start() error {
	c.Lock()
	defer c.Unlock()

	if c.started {
		return nil
	}

	conn, err := c.dial()
	if err != nil {
		return err
	}
	c.conn = conn
	c.connected.Store(true)
	c.notifyState(true)

	c.stop = make(chan struct{})
	c.started = true

	c.wg.Add(2)
	go c.supervise()
	go c.heartbeatLoop()

	return nil
}

// dial establishes the connection and announces this endpoint: CONNECT,
// the stream format, then CLIENT_READY.
func (c *Client) dial() (net.Conn, error) {
	conn, err := net.Dial("tcp", c.options.Address)
	if err != nil {
		return nil, fmt.Errorf("transport: unable to connect to relay %s: %w",
			c.options.Address, err)
	}

	handshake := [][]byte{
		protocol.Encode(protocol.Message{Type: protocol.Connect, Timestamp: micros()}),
		protocol.Encode(protocol.Message{Type: protocol.Config, Timestamp: micros(),
			Payload: protocol.EncodeConfig(c.options.StreamConfig)}),
		protocol.Encode(protocol.Message{Type: protocol.ClientReady, Timestamp: micros()}),
	}

	for _, frame := range handshake {
		conn.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout))
		if _, err := conn.Write(frame); err != nil {
			conn.Close()
			return nil, fmt.Errorf("transport: handshake failed: %w", err)
		}
	}
	conn.SetWriteDeadline(time.Time{})

	return conn, nil
}

// supervise runs send/receive sessions on the current connection and
// re-dials with bounded attempts when a session dies.
func (c *Client) supervise() {
	defer c.wg.Done()

	for {
		c.RLock()
		conn := c.conn
		c.RUnlock()

		c.runSession(conn)

		select {
		case <-c.stop:
			return
		default:
		}

		if !c.reconnect() {
			return
		}
	}
}

// runSession drives the send and receive loops until either fails or the
// client is stopped. The first failure closes the socket, which unblocks
// the other loop.
func (c *Client) runSession(conn net.Conn) {
	var once sync.Once
	done := make(chan struct{})
	fail := func() {
		once.Do(func() {
			close(done)
			conn.Close()
		})
	}

	var sessionWg sync.WaitGroup
	sessionWg.Add(2)

	go func() {
		defer sessionWg.Done()
		c.sendLoop(conn, done, fail)
	}()
	go func() {
		defer sessionWg.Done()
		c.recvLoop(conn, done, fail)
	}()

	// a stop request also ends the session
	go func() {
		select {
		case <-c.stop:
			fail()
		case <-done:
		}
	}()

	sessionWg.Wait()
}

func (c *Client) sendLoop(conn net.Conn, done chan struct{}, fail func()) {
	for {
		select {
		case <-done:
			return
		case item := <-c.queue:
			seq := atomic.AddUint32(&c.sequence, 1)

			var frame []byte
			switch item.kind {
			case itemAudio:
				frame = protocol.Encode(protocol.Message{
					Type:      protocol.AudioData,
					Sequence:  seq,
					Timestamp: micros(),
					Payload:   protocol.EncodeSamples(item.samples),
				})
			case itemHeartbeat:
				frame = protocol.Encode(protocol.Message{
					Type:      protocol.Heartbeat,
					Sequence:  seq,
					Timestamp: micros(),
				})
			}

			conn.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout))
			if _, err := conn.Write(frame); err != nil {
				c.log.WithError(err).Warn("send failed")
				fail()
				return
			}

			if item.kind == itemAudio {
				atomic.AddUint64(&c.sentFrames, 1)
				c.lastAudioSent.Store(time.Now().UnixNano())
			}
		}
	}
}

// recvLoop reads framed messages. Short read deadlines keep the loop
// responsive to shutdown without a dedicated wakeup connection.
func (c *Client) recvLoop(conn net.Conn, done chan struct{}, fail func()) {
	for {
		select {
		case <-done:
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(c.options.ReadTimeout))
		msg, err := protocol.ReadMessage(conn)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			select {
			case <-done:
			default:
				c.log.WithError(err).Warn("receive failed")
			}
			fail()
			return
		}

		atomic.AddUint64(&c.recvFrames, 1)
		if c.options.OnMessage != nil {
			c.options.OnMessage(msg)
		}
	}
}

// reconnect tries to re-establish the relay connection. It returns false
// when the attempts are exhausted or the client is stopping.
func (c *Client) reconnect() bool {
	c.connected.Store(false)
	c.notifyState(false)

	for attempt := 1; attempt <= c.options.MaxReconnectAttempts; attempt++ {
		select {
		case <-c.stop:
			return false
		case <-time.After(c.options.ReconnectDelay):
		}

		conn, err := c.dial()
		if err != nil {
			c.log.WithError(err).WithField("attempt", attempt).Warn("reconnect failed")
			continue
		}

		c.Lock()
		c.conn = conn
		c.Unlock()
		c.connected.Store(true)
		atomic.AddUint64(&c.reconnects, 1)
		c.notifyState(true)
		c.log.WithField("attempt", attempt).Info("reconnected to relay")
		return true
	}

	c.log.Error("giving up on relay connection")
	return false
}

// heartbeatLoop enqueues a heartbeat whenever no audio has been sent for
// a full interval.
func (c *Client) heartbeatLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.options.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.connected.Load() {
				continue
			}
			last := time.Unix(0, c.lastAudioSent.Load())
			if time.Since(last) < c.options.HeartbeatInterval {
				continue
			}
			select {
			case c.queue <- outItem{kind: itemHeartbeat}:
			default:
				// queue full means audio is flowing, no heartbeat needed
			}
		}
	}
}

// Stop sends a DISCONNECT, closes the connection and joins the workers.
func (c *Client) Stop() error {
	c.Lock()
	if !c.started {
		c.Unlock()
		return nil
	}
	c.started = false
	conn := c.conn
	connected := c.connected.Load()
	c.Unlock()

	if conn != nil && connected {
		conn.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout))
		conn.Write(protocol.Encode(protocol.Message{
			Type:      protocol.Disconnect,
			Timestamp: micros(),
		}))
	}

	close(c.stop)
	if conn != nil {
		conn.Close()
	}
	c.connected.Store(false)

	c.wg.Wait()
	return nil
}

// SendAudio enqueues an audio frame for transmission. It never blocks:
// when the client is disconnected or the send queue is full, the frame
// is dropped and an error returned.
func (c *Client) SendAudio(samples []float32) error {
	if !c.connected.Load() {
		atomic.AddUint64(&c.droppedFrames, 1)
		return fmt.Errorf("transport: not connected, frame dropped")
	}

	select {
	case c.queue <- outItem{kind: itemAudio, samples: samples}:
		return nil
	default:
		atomic.AddUint64(&c.droppedFrames, 1)
		return fmt.Errorf("transport: send queue full, frame dropped")
	}
}

func (c *Client) notifyState(connected bool) {
	if c.options.OnStateChange != nil {
		c.options.OnStateChange(connected)
	}
}

// Connected reports whether the client currently holds a relay
// connection.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// SetOnMessage registers the receive callback. It must be set before
// Start.
func (c *Client) SetOnMessage(cb func(protocol.Message)) {
	c.Lock()
	defer c.Unlock()
	c.options.OnMessage = cb
}

// Stats returns the message counters of the client.
func (c *Client) Stats() (sent, received, dropped, reconnects uint64) {
	return atomic.LoadUint64(&c.sentFrames),
		atomic.LoadUint64(&c.recvFrames),
		atomic.LoadUint64(&c.droppedFrames),
		atomic.LoadUint64(&c.reconnects)
}

func micros() uint64 {
	return uint64(time.Now().UnixMicro())
}
