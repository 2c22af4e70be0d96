package jitter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audsync/audsync/audio"
)

func testMsg(seq uint32) audio.Msg {
	return audio.Msg{
		Data:       []float32{0.1, 0.2, 0.3, 0.4},
		Samplerate: 44100,
		Channels:   1,
		Frames:     4,
		Sequence:   seq,
		Timestamp:  uint64(seq) * 5805, // ~256 frames at 44.1kHz in µs
	}
}

// fakeClock lets the tests control the buffer's notion of time.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBuffer(opts ...Option) (*Buffer, *fakeClock) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	// a tiny initial depth keeps the ready gate at the configured packet count
	all := append([]Option{MinDepth(time.Millisecond)}, opts...)
	b := NewBuffer(all...)
	b.now = clk.now
	return b, clk
}

func TestOutOfOrderDelivery(t *testing.T) {
	b, _ := newTestBuffer(MinPackets(2))

	for _, seq := range []uint32{1, 3, 2, 4, 5} {
		b.Push(testMsg(seq))
	}

	for want := uint32(1); want <= 5; want++ {
		msg, ok := b.Pop()
		require.True(t, ok, "pop for sequence %d", want)
		assert.Equal(t, want, msg.Sequence)
		assert.Equal(t, []float32{0.1, 0.2, 0.3, 0.4}, msg.Data)
	}
}

func TestSmallGapBridgedWithSilence(t *testing.T) {
	b, _ := newTestBuffer(MinPackets(2))

	for _, seq := range []uint32{1, 2, 4, 5, 6} {
		b.Push(testMsg(seq))
	}

	for want := uint32(1); want <= 2; want++ {
		msg, ok := b.Pop()
		require.True(t, ok)
		assert.Equal(t, want, msg.Sequence)
	}

	// sequence 3 is missing, the gap is small enough to bridge
	msg, ok := b.Pop()
	require.True(t, ok)
	assert.Equal(t, uint32(3), msg.Sequence)
	assert.Equal(t, []float32{0, 0, 0, 0}, msg.Data, "expected silence")
	assert.Greater(t, msg.Timestamp, testMsg(2).Timestamp)
	assert.Less(t, msg.Timestamp, testMsg(4).Timestamp)

	for want := uint32(4); want <= 6; want++ {
		msg, ok := b.Pop()
		require.True(t, ok)
		assert.Equal(t, want, msg.Sequence)
		assert.NotEqual(t, []float32{0, 0, 0, 0}, msg.Data)
	}

	assert.Equal(t, uint64(1), b.Stats().Concealed)
}

func TestDuplicateSuppression(t *testing.T) {
	b, _ := newTestBuffer(MinPackets(2))

	for _, seq := range []uint32{1, 2, 2, 3} {
		b.Push(testMsg(seq))
	}

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, uint64(4), b.Stats().Received)
	assert.Equal(t, uint64(1), b.Stats().Duplicates)

	for want := uint32(1); want <= 3; want++ {
		msg, ok := b.Pop()
		require.True(t, ok)
		assert.Equal(t, want, msg.Sequence)
	}
}

func TestLatePacketDropped(t *testing.T) {
	b, _ := newTestBuffer(MinPackets(1))

	b.Push(testMsg(5))
	_, ok := b.Pop()
	require.True(t, ok)

	b.Push(testMsg(2))
	assert.Equal(t, uint64(1), b.Stats().Late)
	assert.Equal(t, 0, b.Len())
}

func TestReadyGate(t *testing.T) {
	b, _ := newTestBuffer(MinPackets(3))

	b.Push(testMsg(1))
	b.Push(testMsg(2))

	_, ok := b.Pop()
	assert.False(t, ok, "buffer must not be ready below the minimum")
	assert.False(t, b.Ready())

	b.Push(testMsg(3))
	assert.True(t, b.Ready())

	msg, ok := b.Pop()
	require.True(t, ok)
	assert.Equal(t, uint32(1), msg.Sequence)
}

func TestRebufferAfterRunningDry(t *testing.T) {
	b, clk := newTestBuffer(MinPackets(2))

	b.Push(testMsg(1))
	b.Push(testMsg(2))

	for want := uint32(1); want <= 2; want++ {
		_, ok := b.Pop()
		require.True(t, ok)
	}

	// empty but still inside the grace period
	_, ok := b.Pop()
	assert.False(t, ok)

	clk.advance(emptyGrace + time.Millisecond)
	_, ok = b.Pop()
	assert.False(t, ok)
	assert.False(t, b.Ready(), "expected a full rebuffer after running dry")

	// a single packet is not enough to reopen the gate
	b.Push(testMsg(3))
	_, ok = b.Pop()
	assert.False(t, ok)

	b.Push(testMsg(4))
	msg, ok := b.Pop()
	require.True(t, ok)
	assert.Equal(t, uint32(3), msg.Sequence)
}

func TestLargeGapConcealedAfterTimeout(t *testing.T) {
	b, clk := newTestBuffer(MinPackets(1), PacketTimeout(40*time.Millisecond))

	b.Push(testMsg(1))
	msg, ok := b.Pop()
	require.True(t, ok)
	require.Equal(t, uint32(1), msg.Sequence)

	// sequences 2..9 lost
	b.Push(testMsg(10))

	_, ok = b.Pop()
	assert.False(t, ok, "must wait for the timeout before concealing")

	clk.advance(50 * time.Millisecond)
	msg, ok = b.Pop()
	require.True(t, ok)
	assert.Equal(t, []float32{0, 0, 0, 0}, msg.Data, "expected silence")

	msg, ok = b.Pop()
	require.True(t, ok)
	assert.Equal(t, uint32(10), msg.Sequence)

	assert.Equal(t, uint64(8), b.Stats().Concealed)
}

func TestEvictionKeepsNewest(t *testing.T) {
	b, _ := newTestBuffer(MinPackets(1), MaxPackets(4))

	for seq := uint32(1); seq <= 6; seq++ {
		b.Push(testMsg(seq))
	}

	assert.Equal(t, 4, b.Len())
	assert.Equal(t, uint64(2), b.Stats().Evicted)

	msg, ok := b.Pop()
	require.True(t, ok)
	assert.Equal(t, uint32(3), msg.Sequence, "oldest packets must be evicted first")
}

func TestDepthGrowsWithJitter(t *testing.T) {
	b, clk := newTestBuffer(MinPackets(1), JitterThreshold(5*time.Millisecond))

	before := b.Stats().Depth

	// packets evenly spaced at the sender but arriving in bursts
	for seq := uint32(1); seq <= 20; seq++ {
		msg := testMsg(seq)
		msg.Timestamp = uint64(seq) * 10000 // 10ms spacing
		if seq%2 == 0 {
			clk.advance(40 * time.Millisecond)
		}
		b.Push(msg)
	}

	assert.Greater(t, b.Stats().Depth, before)
}
