package netReader

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audsync/audsync/audio"
	"github.com/audsync/audsync/jitter"
	"github.com/audsync/audsync/protocol"
)

// collector gathers the frames the reader plays out.
type collector struct {
	mu     sync.Mutex
	frames []audio.Msg
}

func (c *collector) cb(msg audio.Msg) {
	c.mu.Lock()
	c.frames = append(c.frames, msg)
	c.mu.Unlock()
}

func (c *collector) collected() []audio.Msg {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]audio.Msg, len(c.frames))
	copy(out, c.frames)
	return out
}

func (c *collector) waitFor(t *testing.T, n int, timeout time.Duration) []audio.Msg {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if frames := c.collected(); len(frames) >= n {
			return frames
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("reader did not emit %d frames in time", n)
	return nil
}

func audioMsg(seq uint32, samples []float32) protocol.Message {
	return protocol.Message{
		Type:      protocol.AudioData,
		Sequence:  seq,
		Timestamp: uint64(seq) * 1000,
		Payload:   protocol.EncodeSamples(samples),
	}
}

// filledFrame returns an 8 sample mono frame filled with the given value.
func filledFrame(seq uint32, value float32) protocol.Message {
	samples := make([]float32, 8)
	for i := range samples {
		samples[i] = value
	}
	return audioMsg(seq, samples)
}

func TestPlayoutInSequenceOrder(t *testing.T) {
	sink := &collector{}
	r := NewNetReader(
		Samplerate(8000),
		FramesPerBuffer(8),
		JitterOpts(jitter.MinPackets(1), jitter.MinDepth(time.Millisecond)),
		Callback(sink.cb),
	)

	// out of order arrival
	r.HandleMessage(filledFrame(1, 1))
	r.HandleMessage(filledFrame(3, 3))
	r.HandleMessage(filledFrame(2, 2))

	require.NoError(t, r.Start())
	defer r.Stop()

	frames := sink.waitFor(t, 3, 2*time.Second)
	assert.Equal(t, float32(1), frames[0].Data[0])
	assert.Equal(t, float32(2), frames[1].Data[0])
	assert.Equal(t, float32(3), frames[2].Data[0])
}

func TestReframesSmallPeerFrames(t *testing.T) {
	sink := &collector{}
	r := NewNetReader(
		Samplerate(8000),
		FramesPerBuffer(8),
		JitterOpts(jitter.MinPackets(1), jitter.MinDepth(time.Millisecond)),
		Callback(sink.cb),
	)

	// the peer sends 4 sample frames, playout emits 8 sample frames
	r.HandleMessage(audioMsg(1, []float32{1, 1, 1, 1}))
	r.HandleMessage(audioMsg(2, []float32{2, 2, 2, 2}))

	require.NoError(t, r.Start())
	defer r.Stop()

	frames := sink.waitFor(t, 1, 2*time.Second)
	assert.Equal(t, 8, frames[0].Frames)
	assert.Equal(t, float32(1), frames[0].Data[0])
	assert.Equal(t, float32(2), frames[0].Data[4])
}

func TestMalformedAudioIsDropped(t *testing.T) {
	sink := &collector{}
	r := NewNetReader(
		JitterOpts(jitter.MinPackets(1), jitter.MinDepth(time.Millisecond)),
		Callback(sink.cb),
	)

	r.HandleMessage(protocol.Message{
		Type:    protocol.AudioData,
		Payload: []byte{1, 2, 3}, // not a multiple of 4
	})

	assert.Equal(t, uint64(0), r.BufferStats().Received)
}

func TestConfigUpdatesPeerFormat(t *testing.T) {
	sink := &collector{}
	r := NewNetReader(
		Samplerate(8000),
		FramesPerBuffer(8),
		JitterOpts(jitter.MinPackets(1), jitter.MinDepth(time.Millisecond)),
		Callback(sink.cb),
	)

	r.HandleMessage(protocol.Message{
		Type: protocol.Config,
		Payload: protocol.EncodeConfig(protocol.StreamConfig{
			Samplerate:      48000,
			Channels:        2,
			FramesPerBuffer: 128,
		}),
	})
	samples := make([]float32, 16) // 8 stereo frames
	for i := range samples {
		samples[i] = 0.5
	}
	r.HandleMessage(audioMsg(1, samples))

	require.NoError(t, r.Start())
	defer r.Stop()

	frames := sink.waitFor(t, 1, 2*time.Second)
	assert.Equal(t, float64(48000), frames[0].Samplerate)
	assert.Equal(t, 2, frames[0].Channels)
	assert.Equal(t, 8, frames[0].Frames)
}

func TestHeartbeatsCounted(t *testing.T) {
	r := NewNetReader()

	r.HandleMessage(protocol.Message{Type: protocol.Heartbeat})
	r.HandleMessage(protocol.Message{Type: protocol.Heartbeat})

	assert.Equal(t, uint64(2), r.Heartbeats())
	assert.Equal(t, uint64(0), r.BufferStats().Received)
}

func TestStopDiscardsBufferedPackets(t *testing.T) {
	sink := &collector{}
	r := NewNetReader(
		JitterOpts(jitter.MinPackets(1), jitter.MinDepth(time.Millisecond)),
		Callback(sink.cb),
	)

	r.HandleMessage(audioMsg(1, []float32{1}))
	require.NoError(t, r.Start())
	require.NoError(t, r.Stop())

	assert.Equal(t, 0, r.BufferStats().Buffered)
}
