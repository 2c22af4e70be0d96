package relay

import (
	"sync"
	"sync/atomic"
	"time"

	"net"

	"github.com/sirupsen/logrus"

	"github.com/audsync/audsync/protocol"
)

// session is the per-connection state of a relay client. Every session
// owns a reader goroutine (which also fans audio out to the peers) and a
// writer goroutine draining the outbound queue, so one slow client can
// not stall the others.
type session struct {
	id          string
	conn        net.Conn
	server      *Server
	log         *logrus.Entry
	out         chan []byte
	done        chan struct{}
	closeOnce   sync.Once
	ready       atomic.Bool
	config      atomic.Pointer[protocol.StreamConfig]
	connectedAt time.Time

	packetsIn  uint64
	packetsOut uint64
	droppedOut uint64
}

// run drives the session until the client disconnects or the stream
// turns invalid. It must be called on its own goroutine.
func (s *session) run() {
	defer s.server.removeSession(s)

	go s.writeLoop()

	for {
		msg, raw, err := protocol.ReadRawMessage(s.conn)
		if err != nil {
			select {
			case <-s.done:
			default:
				s.log.WithError(err).Info("client connection closed")
			}
			return
		}

		atomic.AddUint64(&s.packetsIn, 1)

		switch msg.Type {
		case protocol.Connect:
			s.log.Info("client connected")
			s.server.publish(s.id, "connected")

		case protocol.Config:
			cfg, err := protocol.DecodeConfig(msg.Payload)
			if err != nil {
				s.log.WithError(err).Warn("ignoring malformed config")
				continue
			}
			s.config.Store(&cfg)
			s.log.WithFields(logrus.Fields{
				"samplerate": cfg.Samplerate,
				"channels":   cfg.Channels,
				"frames":     cfg.FramesPerBuffer,
			}).Info("client stream format")

		case protocol.ClientReady:
			s.ready.Store(true)
			s.log.Info("client ready")
			s.server.publish(s.id, "ready")

		case protocol.AudioData:
			if s.ready.Load() {
				s.server.broadcast(s, raw)
			}

		case protocol.Heartbeat:
			// heartbeats are echoed back to the sender only
			s.enqueue(raw)

		case protocol.Disconnect:
			s.log.Info("client disconnected")
			return

		default:
			s.log.WithField("type", msg.Type.String()).Debug("ignoring message")
		}
	}
}

// enqueue places a frame on the outbound queue without blocking. A full
// queue drops the frame and counts it.
func (s *session) enqueue(frame []byte) bool {
	select {
	case s.out <- frame:
		return true
	default:
		atomic.AddUint64(&s.droppedOut, 1)
		return false
	}
}

func (s *session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(s.server.options.WriteTimeout))
			if _, err := s.conn.Write(frame); err != nil {
				select {
				case <-s.done:
				default:
					s.log.WithError(err).Info("write failed, dropping client")
					s.conn.Close()
				}
				return
			}
			atomic.AddUint64(&s.packetsOut, 1)
		}
	}
}

// close tears the session down. Safe to call concurrently and more than
// once.
func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// SessionInfo is a read-only snapshot of a session, served by the status
// monitor.
type SessionInfo struct {
	ID          string    `json:"id"`
	RemoteAddr  string    `json:"remoteAddr"`
	Ready       bool      `json:"ready"`
	Samplerate  int32     `json:"samplerate"`
	Channels    int32     `json:"channels"`
	ConnectedAt time.Time `json:"connectedAt"`
	PacketsIn   uint64    `json:"packetsIn"`
	PacketsOut  uint64    `json:"packetsOut"`
	DroppedOut  uint64    `json:"droppedOut"`
}

func (s *session) info() SessionInfo {
	cfg := s.config.Load()
	return SessionInfo{
		ID:          s.id,
		RemoteAddr:  s.conn.RemoteAddr().String(),
		Ready:       s.ready.Load(),
		Samplerate:  cfg.Samplerate,
		Channels:    cfg.Channels,
		ConnectedAt: s.connectedAt,
		PacketsIn:   atomic.LoadUint64(&s.packetsIn),
		PacketsOut:  atomic.LoadUint64(&s.packetsOut),
		DroppedOut:  atomic.LoadUint64(&s.droppedOut),
	}
}
