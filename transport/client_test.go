package transport

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audsync/audsync/protocol"
)

// fakeRelay accepts connections, reading each on its own goroutine, and
// records every frame it receives.
type fakeRelay struct {
	t        *testing.T
	listener net.Listener

	mu       sync.Mutex
	frames   []protocol.Message
	conns    int
	dropNext bool
}

func newFakeRelay(t *testing.T) *fakeRelay {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	f := &fakeRelay{t: t, listener: ln}
	go f.acceptLoop()
	t.Cleanup(func() { ln.Close() })
	return f
}

func (f *fakeRelay) acceptLoop() {
	for {
		conn, err := f.listener.Accept()
		if err != nil {
			return
		}

		f.mu.Lock()
		f.conns++
		drop := f.dropNext
		f.dropNext = false
		f.mu.Unlock()

		if drop {
			conn.Close()
			continue
		}

		go f.readLoop(conn)
	}
}

func (f *fakeRelay) readLoop(conn net.Conn) {
	defer conn.Close()
	for {
		msg, err := protocol.ReadMessage(conn)
		if err != nil {
			return
		}
		f.mu.Lock()
		f.frames = append(f.frames, msg)
		f.mu.Unlock()
	}
}

func (f *fakeRelay) addr() string {
	return f.listener.Addr().String()
}

func (f *fakeRelay) received() []protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.Message, len(f.frames))
	copy(out, f.frames)
	return out
}

func (f *fakeRelay) waitForFrames(n int, timeout time.Duration) []protocol.Message {
	f.t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if msgs := f.received(); len(msgs) >= n {
			return msgs
		}
		time.Sleep(5 * time.Millisecond)
	}
	f.t.Fatalf("relay did not receive %d frames in time", n)
	return nil
}

func newTestClient(t *testing.T, addr string, opts ...Option) *Client {
	t.Helper()

	opts = append([]Option{Address(addr)}, opts...)
	c, err := NewClient(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Stop() })
	return c
}

func TestHandshakeSequence(t *testing.T) {
	relay := newFakeRelay(t)

	cfg := protocol.StreamConfig{Samplerate: 48000, Channels: 2, FramesPerBuffer: 128}
	c := newTestClient(t, relay.addr(), StreamConfig(cfg))
	require.NoError(t, c.Start())

	msgs := relay.waitForFrames(3, 2*time.Second)
	assert.Equal(t, protocol.Connect, msgs[0].Type)
	assert.Equal(t, protocol.Config, msgs[1].Type)
	assert.Equal(t, protocol.ClientReady, msgs[2].Type)

	gotCfg, err := protocol.DecodeConfig(msgs[1].Payload)
	require.NoError(t, err)
	assert.Equal(t, cfg, gotCfg)
}

func TestSendAudioReachesRelayInOrder(t *testing.T) {
	relay := newFakeRelay(t)
	c := newTestClient(t, relay.addr())
	require.NoError(t, c.Start())
	relay.waitForFrames(3, 2*time.Second)

	for i := 0; i < 10; i++ {
		require.NoError(t, c.SendAudio([]float32{float32(i)}))
	}

	msgs := relay.waitForFrames(13, 2*time.Second)

	var lastSeq uint32
	audio := 0
	for _, msg := range msgs[3:] {
		if msg.Type != protocol.AudioData {
			continue
		}
		require.Greater(t, msg.Sequence, lastSeq, "sequence numbers must increase")
		lastSeq = msg.Sequence

		samples, err := protocol.DecodeSamples(msg.Payload)
		require.NoError(t, err)
		assert.Equal(t, float32(audio), samples[0])
		audio++
	}
	assert.Equal(t, 10, audio)
}

func TestSendAudioWhenDisconnected(t *testing.T) {
	relay := newFakeRelay(t)
	c := newTestClient(t, relay.addr())

	err := c.SendAudio([]float32{1})
	require.Error(t, err, "sending before Start must fail without blocking")

	_, _, dropped, _ := c.Stats()
	assert.Equal(t, uint64(1), dropped)
}

func TestHeartbeatWhenIdle(t *testing.T) {
	relay := newFakeRelay(t)
	c := newTestClient(t, relay.addr(), HeartbeatInterval(50*time.Millisecond))
	require.NoError(t, c.Start())

	// handshake plus at least one heartbeat
	msgs := relay.waitForFrames(4, 2*time.Second)

	found := false
	for _, msg := range msgs[3:] {
		if msg.Type == protocol.Heartbeat {
			found = true
		}
	}
	assert.True(t, found, "idle client must send heartbeats")
}

func TestOnMessageDelivery(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan protocol.Message, 1)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		// drain the handshake then push one audio frame down
		for i := 0; i < 3; i++ {
			if _, err := protocol.ReadMessage(conn); err != nil {
				return
			}
		}
		conn.Write(protocol.Encode(protocol.Message{
			Type:     protocol.AudioData,
			Sequence: 7,
			Payload:  protocol.EncodeSamples([]float32{0.25}),
		}))
		// hold the connection open until the test ends
		protocol.ReadMessage(conn)
	}()

	c := newTestClient(t, ln.Addr().String(), OnMessage(func(msg protocol.Message) {
		select {
		case received <- msg:
		default:
		}
	}))
	require.NoError(t, c.Start())

	select {
	case msg := <-received:
		assert.Equal(t, protocol.AudioData, msg.Type)
		assert.Equal(t, uint32(7), msg.Sequence)
	case <-time.After(2 * time.Second):
		t.Fatal("OnMessage callback never fired")
	}
}

func TestReconnectAfterConnectionLoss(t *testing.T) {
	relay := newFakeRelay(t)

	states := make(chan bool, 10)
	c := newTestClient(t, relay.addr(),
		ReconnectDelay(20*time.Millisecond),
		OnStateChange(func(connected bool) { states <- connected }),
	)
	require.NoError(t, c.Start())
	relay.waitForFrames(3, 2*time.Second)

	waitState := func(want bool) {
		t.Helper()
		for {
			select {
			case got := <-states:
				if got == want {
					return
				}
			case <-time.After(2 * time.Second):
				t.Fatalf("never observed connection state %v", want)
			}
		}
	}
	waitState(true)

	// sever the connection; the client must dial again and repeat the
	// handshake
	relay.mu.Lock()
	before := relay.conns
	relay.mu.Unlock()

	c.RLock()
	conn := c.conn
	c.RUnlock()
	conn.Close()

	waitState(false)
	waitState(true)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		relay.mu.Lock()
		conns := relay.conns
		relay.mu.Unlock()
		if conns > before {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	_, _, _, reconnects := c.Stats()
	assert.Equal(t, uint64(1), reconnects)
}

func TestStopSendsDisconnect(t *testing.T) {
	relay := newFakeRelay(t)
	c := newTestClient(t, relay.addr())
	require.NoError(t, c.Start())
	relay.waitForFrames(3, 2*time.Second)

	require.NoError(t, c.Stop())

	msgs := relay.waitForFrames(4, 2*time.Second)
	assert.Equal(t, protocol.Disconnect, msgs[len(msgs)-1].Type)
	assert.False(t, c.Connected())
}

func TestMissingAddress(t *testing.T) {
	_, err := NewClient()
	require.Error(t, err)
}
