// Package netReader provides an audio.Source which turns the message
// stream received from the relay into an ordered sequence of audio
// frames. Incoming packets pass through a jitter buffer; a playout
// goroutine pulls frames at the stream cadence once the buffer is ready.
package netReader

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/audsync/audsync/audio"
	"github.com/audsync/audsync/audio/ringbuffer"
	"github.com/audsync/audsync/jitter"
	"github.com/audsync/audsync/protocol"
)

// NetReader implements the audio.Source interface for the network leg of
// the render pipeline.
type NetReader struct {
	sync.RWMutex
	options Options
	buffer  *jitter.Buffer
	ring    *ringbuffer.RingBuffer
	cb      audio.OnDataCb
	log     *logrus.Entry

	stop    chan struct{}
	wg      sync.WaitGroup
	started bool

	peerConfig protocol.StreamConfig
	heartbeats uint64
}

// NewNetReader returns a network reader. Feed it received messages
// through HandleMessage and start it to begin playout.
func NewNetReader(opts ...Option) *NetReader {

	r := &NetReader{
		options: Options{
			Samplerate:      44100,
			Channels:        1,
			FramesPerBuffer: 256,
		},
	}

	for _, option := range opts {
		option(&r.options)
	}
	r.cb = r.options.Callback

	frameDuration := time.Duration(float64(r.options.FramesPerBuffer) /
		r.options.Samplerate * float64(time.Second))

	jitterOpts := append([]jitter.Option{
		jitter.FrameDuration(frameDuration),
	}, r.options.JitterOpts...)
	r.buffer = jitter.NewBuffer(jitterOpts...)

	// a second of stereo samples at the local rate, enough to absorb
	// peers sending larger frames than we emit
	r.ring = ringbuffer.New(int(r.options.Samplerate) * 2)

	r.peerConfig = protocol.StreamConfig{
		Samplerate:      int32(r.options.Samplerate),
		Channels:        int32(r.options.Channels),
		FramesPerBuffer: int32(r.options.FramesPerBuffer),
	}

	r.log = logrus.WithField("component", "netReader")

	return r
}

// HandleMessage consumes a message received from the relay. AUDIO_DATA
// is queued for playout, CONFIG updates the assumed peer format,
// heartbeat echos are counted.
func (r *NetReader) HandleMessage(msg protocol.Message) {
	switch msg.Type {
	case protocol.AudioData:
		samples, err := protocol.DecodeSamples(msg.Payload)
		if err != nil {
			r.log.WithError(err).Warn("dropping malformed audio packet")
			return
		}

		r.RLock()
		cfg := r.peerConfig
		r.RUnlock()

		r.buffer.Push(audio.Msg{
			Data:       samples,
			Samplerate: float64(cfg.Samplerate),
			Channels:   int(cfg.Channels),
			Frames:     len(samples) / int(cfg.Channels),
			Sequence:   msg.Sequence,
			Timestamp:  msg.Timestamp,
		})

	case protocol.Config:
		cfg, err := protocol.DecodeConfig(msg.Payload)
		if err != nil {
			r.log.WithError(err).Warn("ignoring malformed config")
			return
		}
		r.Lock()
		r.peerConfig = cfg
		r.Unlock()
		// buffered samples are in the old format, discard them
		r.ring.Clear()
		r.log.WithFields(logrus.Fields{
			"samplerate": cfg.Samplerate,
			"channels":   cfg.Channels,
		}).Info("peer stream format")

	case protocol.Heartbeat:
		atomic.AddUint64(&r.heartbeats, 1)

	default:
		r.log.WithField("type", msg.Type.String()).Debug("ignoring message")
	}
}

// Start launches the playout goroutine.
func (r *NetReader) Start() error {
	r.Lock()
	defer r.Unlock()

	if r.started {
		return nil
	}
	r.started = true
	r.stop = make(chan struct{})

	r.wg.Add(1)
	go r.playoutLoop()

	return nil
}

// playoutLoop pulls packets from the jitter buffer at the stream cadence,
// stages their samples in the sample ring and emits frames of the local
// frame size. Peers may send frames of a different size; the ring
// re-frames the stream. While not enough samples are staged nothing is
// emitted; the playback sink pads with silence.
func (r *NetReader) playoutLoop() {
	defer r.wg.Done()

	interval := time.Duration(float64(r.options.FramesPerBuffer) /
		r.options.Samplerate * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.RLock()
			cfg := r.peerConfig
			cb := r.cb
			r.RUnlock()

			frameSamples := r.options.FramesPerBuffer * int(cfg.Channels)

			for r.ring.Available() < frameSamples {
				msg, ok := r.buffer.Pop()
				if !ok {
					break
				}
				if !r.ring.Write(msg.Data) {
					r.log.Debug("sample ring full, dropping tail")
				}
			}

			if r.ring.Available() < frameSamples {
				continue
			}

			out := make([]float32, frameSamples)
			r.ring.Read(out)

			if cb != nil {
				cb(audio.Msg{
					Data:       out,
					Samplerate: float64(cfg.Samplerate),
					Channels:   int(cfg.Channels),
					Frames:     r.options.FramesPerBuffer,
				})
			}
		}
	}
}

// Stop halts the playout goroutine and discards buffered packets.
func (r *NetReader) Stop() error {
	r.Lock()
	defer r.Unlock()

	if !r.started {
		return nil
	}
	r.started = false
	close(r.stop)
	r.Unlock()
	r.wg.Wait()
	r.Lock()

	r.buffer.Reset()
	r.ring.Clear()
	return nil
}

// Close is equivalent to Stop.
func (r *NetReader) Close() error {
	return r.Stop()
}

// SetCb sets the callback which will be executed to provide audio
// frames.
func (r *NetReader) SetCb(cb audio.OnDataCb) {
	r.Lock()
	defer r.Unlock()
	r.cb = cb
}

// BufferStats returns a snapshot of the jitter buffer counters.
func (r *NetReader) BufferStats() jitter.Stats {
	return r.buffer.Stats()
}

// Heartbeats returns the number of heartbeat echos received.
func (r *NetReader) Heartbeats() uint64 {
	return atomic.LoadUint64(&r.heartbeats)
}
