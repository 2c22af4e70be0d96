// Package jitter provides an adaptive jitter buffer which reorders audio
// packets received from the network before they are handed to the sound
// card for playout.
package jitter

import (
	"container/heap"
	"sync"
	"time"

	"github.com/audsync/audsync/audio"
)

const (
	// gaps up to this many packets are bridged immediately with silence
	maxBridgeGap = 3

	// time the buffer may run dry before a full rebuffer is forced
	emptyGrace = 50 * time.Millisecond

	// ema weight for the interarrival jitter estimate
	jitterAlpha = 0.1

	growStep   = 10 * time.Millisecond
	shrinkStep = 5 * time.Millisecond
)

type packet struct {
	msg     audio.Msg
	arrival time.Time
}

type packetHeap []*packet

func (h packetHeap) Len() int            { return len(h) }
func (h packetHeap) Less(i, j int) bool  { return h[i].msg.Sequence < h[j].msg.Sequence }
func (h packetHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *packetHeap) Push(x interface{}) { *h = append(*h, x.(*packet)) }
func (h *packetHeap) Pop() interface{} {
	old := *h
	n := len(old)
	p := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return p
}

// Stats is a snapshot of the buffer counters.
type Stats struct {
	Received   uint64
	Duplicates uint64
	Late       uint64
	Evicted    uint64
	Concealed  uint64
	Buffered   int
	Jitter     time.Duration
	Depth      time.Duration
}

// Buffer reorders packets by sequence number, suppresses duplicates,
// bridges small gaps with silence and conceals larger losses after a
// timeout. The buffer depth adapts to the measured network jitter.
type Buffer struct {
	sync.Mutex
	options Options

	heap packetHeap
	seen map[uint32]bool

	started       bool
	ready         bool
	nextSeq       uint32
	lastTimestamp uint64
	emptySince    time.Time
	gapSince      time.Time

	jitterEMA    float64 // milliseconds
	lastArrival  time.Time
	lastSenderTS uint64
	depth        time.Duration

	stats Stats

	now func() time.Time
}

// NewBuffer returns an initialized jitter buffer.
func NewBuffer(opts ...Option) *Buffer {
	b := &Buffer{
		options: Options{
			MinPackets:      4,
			MaxPackets:      64,
			FrameDuration:   time.Duration(256) * time.Second / 44100,
			PacketTimeout:   60 * time.Millisecond,
			JitterThreshold: 20 * time.Millisecond,
			MinDepth:        20 * time.Millisecond,
			MaxDepth:        200 * time.Millisecond,
		},
		seen: make(map[uint32]bool),
		now:  time.Now,
	}

	for _, option := range opts {
		option(&b.options)
	}

	b.depth = b.options.MinDepth
	heap.Init(&b.heap)

	return b
}

// Push inserts a received packet. Duplicates and packets older than the
// current playout position are dropped.
func (b *Buffer) Push(msg audio.Msg) {
	b.Lock()
	defer b.Unlock()

	now := b.now()
	b.updateJitter(now, msg.Timestamp)

	// every arrival counts, including the ones dropped below
	b.stats.Received++

	if b.started && msg.Sequence < b.nextSeq {
		b.stats.Late++
		return
	}

	if b.seen[msg.Sequence] {
		b.stats.Duplicates++
		return
	}

	heap.Push(&b.heap, &packet{msg: msg, arrival: now})
	b.seen[msg.Sequence] = true

	if b.heap.Len() > b.options.MaxPackets {
		evicted := heap.Pop(&b.heap).(*packet)
		delete(b.seen, evicted.msg.Sequence)
		b.stats.Evicted++
		// the playout position must not point before the remaining data
		if b.started && evicted.msg.Sequence >= b.nextSeq {
			b.nextSeq = evicted.msg.Sequence + 1
		}
	}

	if !b.ready && b.heap.Len() >= b.minPackets() {
		b.ready = true
		b.emptySince = time.Time{}
	}
}

// Pop returns the next packet for playout. The boolean is false while the
// buffer is not ready, is rebuffering, or is waiting for a late packet.
// Missing packets inside a small gap are returned as synthesized silence.
func (b *Buffer) Pop() (audio.Msg, bool) {
	b.Lock()
	defer b.Unlock()

	now := b.now()

	if !b.ready {
		if b.heap.Len() >= b.minPackets() {
			b.ready = true
		} else {
			return audio.Msg{}, false
		}
	}

	if b.heap.Len() == 0 {
		if b.emptySince.IsZero() {
			b.emptySince = now
		} else if now.Sub(b.emptySince) >= emptyGrace {
			// ran dry for too long, force a full rebuffer
			b.ready = false
		}
		return audio.Msg{}, false
	}
	b.emptySince = time.Time{}

	head := b.heap[0]

	if !b.started {
		b.started = true
		b.nextSeq = head.msg.Sequence
	}

	if head.msg.Sequence == b.nextSeq {
		p := heap.Pop(&b.heap).(*packet)
		delete(b.seen, p.msg.Sequence)
		b.nextSeq++
		b.lastTimestamp = p.msg.Timestamp
		b.gapSince = time.Time{}
		return p.msg, true
	}

	gap := head.msg.Sequence - b.nextSeq

	if gap <= maxBridgeGap {
		msg := b.silenceFor(head.msg, gap)
		b.stats.Concealed++
		b.nextSeq++
		return msg, true
	}

	if b.gapSince.IsZero() {
		b.gapSince = now
		return audio.Msg{}, false
	}
	if now.Sub(b.gapSince) < b.options.PacketTimeout {
		return audio.Msg{}, false
	}

	// the missing packets are not going to arrive, skip forward
	b.stats.Concealed += uint64(gap)
	msg := b.silenceFor(head.msg, gap)
	b.nextSeq = head.msg.Sequence
	b.gapSince = time.Time{}
	return msg, true
}

// silenceFor builds a silent packet in place of the missing sequence
// number, with a timestamp interpolated between the last played packet
// and the next buffered one.
func (b *Buffer) silenceFor(next audio.Msg, gap uint32) audio.Msg {
	ts := next.Timestamp
	if b.lastTimestamp != 0 && next.Timestamp > b.lastTimestamp {
		ts = b.lastTimestamp + (next.Timestamp-b.lastTimestamp)/uint64(gap+1)
	}
	b.lastTimestamp = ts

	return audio.Msg{
		Data:       make([]float32, len(next.Data)),
		Samplerate: next.Samplerate,
		Channels:   next.Channels,
		Frames:     next.Frames,
		Sequence:   b.nextSeq,
		Timestamp:  ts,
	}
}

func (b *Buffer) updateJitter(now time.Time, senderTS uint64) {
	if !b.lastArrival.IsZero() && senderTS > b.lastSenderTS {
		dArrival := float64(now.Sub(b.lastArrival)) / float64(time.Millisecond)
		dSender := float64(senderTS-b.lastSenderTS) / 1000.0
		diff := dArrival - dSender
		if diff < 0 {
			diff = -diff
		}
		b.jitterEMA = jitterAlpha*diff + (1-jitterAlpha)*b.jitterEMA

		threshold := float64(b.options.JitterThreshold) / float64(time.Millisecond)
		if b.jitterEMA > threshold {
			b.depth += growStep
			if b.depth > b.options.MaxDepth {
				b.depth = b.options.MaxDepth
			}
		} else if b.jitterEMA < threshold/2 {
			b.depth -= shrinkStep
			if b.depth < b.options.MinDepth {
				b.depth = b.options.MinDepth
			}
		}
	}
	b.lastArrival = now
	b.lastSenderTS = senderTS
}

// minPackets converts the adaptive depth into a packet count, bounded
// below by the configured minimum.
func (b *Buffer) minPackets() int {
	n := int(b.depth / b.options.FrameDuration)
	if n < b.options.MinPackets {
		n = b.options.MinPackets
	}
	if n > b.options.MaxPackets {
		n = b.options.MaxPackets
	}
	return n
}

// Ready reports whether enough packets are buffered for playout.
func (b *Buffer) Ready() bool {
	b.Lock()
	defer b.Unlock()
	return b.ready
}

// Len returns the number of buffered packets.
func (b *Buffer) Len() int {
	b.Lock()
	defer b.Unlock()
	return b.heap.Len()
}

// Stats returns a snapshot of the buffer counters.
func (b *Buffer) Stats() Stats {
	b.Lock()
	defer b.Unlock()
	s := b.stats
	s.Buffered = b.heap.Len()
	s.Jitter = time.Duration(b.jitterEMA * float64(time.Millisecond))
	s.Depth = b.depth
	return s
}

// Reset discards all buffered packets and restarts the playout position.
func (b *Buffer) Reset() {
	b.Lock()
	defer b.Unlock()
	b.heap = b.heap[:0]
	b.seen = make(map[uint32]bool)
	b.started = false
	b.ready = false
	b.nextSeq = 0
	b.lastTimestamp = 0
	b.emptySince = time.Time{}
	b.gapSince = time.Time{}
}
