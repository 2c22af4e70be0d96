// Package relay implements the audio relay server. Endpoints connect
// over TCP, announce themselves ready, and every audio packet a ready
// client sends is forwarded verbatim to all other ready clients. The
// relay never touches the audio payload; it is a pure packet fan-out.
package relay

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/audsync/audsync/events"
	"github.com/audsync/audsync/protocol"
)

var defaultConfig = protocol.StreamConfig{
	Samplerate:      48000,
	Channels:        2,
	FramesPerBuffer: 256,
}

// Server accepts endpoint connections and fans audio out between them.
type Server struct {
	sync.RWMutex
	options  Options
	listener net.Listener
	sessions map[string]*session
	stop     chan struct{}
	wg       sync.WaitGroup
	log      *logrus.Entry

	packetsRelayed uint64
	bytesRelayed   uint64
	dropped        uint64
}

// NewServer returns a relay server listening on the configured address
// once started.
func NewServer(opts ...Option) (*Server, error) {

	s := &Server{
		options: Options{
			Address:       ":8080",
			SendQueueSize: 64,
			WriteTimeout:  2 * time.Second,
		},
		sessions: make(map[string]*session),
	}

	for _, option := range opts {
		option(&s.options)
	}

	s.log = logrus.WithFields(logrus.Fields{
		"component": "relay",
		"address":   s.options.Address,
	})

	return s, nil
}

// Start begins listening and accepting clients.
func (s *Server) Start() error {
	s.Lock()
	defer s.Unlock()

	if s.listener != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.options.Address)
	if err != nil {
		return fmt.Errorf("relay: unable to listen on %s: %w", s.options.Address, err)
	}
	s.listener = ln
	s.stop = make(chan struct{})

	s.log.Info("relay listening")

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Addr returns the listener address, useful when listening on port 0.
func (s *Server) Addr() net.Addr {
	s.RLock()
	defer s.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stop:
				return
			default:
				s.log.WithError(err).Warn("accept failed")
				continue
			}
		}

		sess := &session{
			id:          uuid.New().String(),
			conn:        conn,
			server:      s,
			out:         make(chan []byte, s.options.SendQueueSize),
			done:        make(chan struct{}),
			connectedAt: time.Now(),
		}
		sess.config.Store(&defaultConfig)
		sess.log = s.log.WithFields(logrus.Fields{
			"client": sess.id,
			"remote": conn.RemoteAddr().String(),
		})

		s.Lock()
		s.sessions[sess.id] = sess
		s.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			sess.run()
		}()
	}
}

// broadcast forwards a raw audio frame to every ready client except the
// sender. Called from the sender's reader goroutine, which preserves the
// per-sender packet order.
func (s *Server) broadcast(from *session, raw []byte) {
	s.RLock()
	defer s.RUnlock()

	delivered := false
	for id, sess := range s.sessions {
		if id == from.id || !sess.ready.Load() {
			continue
		}
		if sess.enqueue(raw) {
			delivered = true
			atomic.AddUint64(&s.packetsRelayed, 1)
			atomic.AddUint64(&s.bytesRelayed, uint64(len(raw)))
		} else {
			atomic.AddUint64(&s.dropped, 1)
		}
	}
	_ = delivered
}

// removeSession drops a session from the table and closes it.
func (s *Server) removeSession(sess *session) {
	s.Lock()
	_, present := s.sessions[sess.id]
	delete(s.sessions, sess.id)
	s.Unlock()

	sess.close()

	if present {
		s.publish(sess.id, "disconnected")
	}
}

func (s *Server) publish(sessionID, event string) {
	if s.options.EventBus == nil {
		return
	}
	switch event {
	case "connected":
		s.options.EventBus.Pub(sessionID, events.ClientConnected)
	case "ready":
		s.options.EventBus.Pub(sessionID, events.ClientReady)
	case "disconnected":
		s.options.EventBus.Pub(sessionID, events.ClientDisconnected)
	}
}

// Stop gracefully shuts the relay down: the listener closes, every
// client receives a DISCONNECT and the sessions are torn down.
func (s *Server) Stop() error {
	s.Lock()
	if s.listener == nil {
		s.Unlock()
		return nil
	}
	close(s.stop)
	s.listener.Close()
	s.listener = nil

	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.Unlock()

	goodbye := protocol.Encode(protocol.Message{
		Type:      protocol.Disconnect,
		Timestamp: uint64(time.Now().UnixMicro()),
	})

	for _, sess := range sessions {
		sess.conn.SetWriteDeadline(time.Now().Add(s.options.WriteTimeout))
		sess.conn.Write(goodbye)
		sess.close()
	}

	s.wg.Wait()
	s.log.Info("relay stopped")
	return nil
}

// Stats is a snapshot of the relay counters, served by the status
// monitor.
type Stats struct {
	Clients        int           `json:"clients"`
	ReadyClients   int           `json:"readyClients"`
	PacketsRelayed uint64        `json:"packetsRelayed"`
	BytesRelayed   uint64        `json:"bytesRelayed"`
	Dropped        uint64        `json:"dropped"`
	Sessions       []SessionInfo `json:"sessions"`
}

// Stats returns a snapshot of the relay state.
func (s *Server) Stats() Stats {
	s.RLock()
	defer s.RUnlock()

	st := Stats{
		Clients:        len(s.sessions),
		PacketsRelayed: atomic.LoadUint64(&s.packetsRelayed),
		BytesRelayed:   atomic.LoadUint64(&s.bytesRelayed),
		Dropped:        atomic.LoadUint64(&s.dropped),
		Sessions:       make([]SessionInfo, 0, len(s.sessions)),
	}
	for _, sess := range s.sessions {
		if sess.ready.Load() {
			st.ReadyClients++
		}
		st.Sessions = append(st.Sessions, sess.info())
	}
	return st
}
