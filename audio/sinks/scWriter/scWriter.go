package scWriter

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	ringBuffer "github.com/dh1tw/golang-ring"
	"github.com/dh1tw/gosamplerate"
	pa "github.com/gordonklaus/portaudio"

	"github.com/audsync/audsync/audio"
	"github.com/audsync/audsync/audio/nodes/voicefilter"
	"github.com/audsync/audsync/audio/padevice"
)

// FrameCb is executed by the playback callback in pull mode to request
// the next chunk of samples. It must return exactly len(out) samples or
// leave the remainder untouched (silence).
type FrameCb func(out []float32) int

// ScWriter implements the audio.Sink interface and is used to play audio
// on a local audio output device (e.g. speakers). Frames can either be
// pushed through Write or pulled on demand through a FrameCb.
type ScWriter struct {
	sync.RWMutex
	options    Options
	deviceInfo *pa.DeviceInfo
	stream     *pa.Stream
	ring       ringBuffer.Ring
	stash      []float32
	volume     float32
	muted      bool
	paused     bool
	src        src
	bufFill    bool // indicates if the buffer is filling up
	pullCb     FrameCb

	queuedSamples  int
	underruns      uint64
	droppedSamples uint64

	onUnderrun func()
}

// src contains a samplerate converter and its needed variables
type src struct {
	gosamplerate.Src
	samplerate float64
	ratio      float64
}

// NewScWriter returns a new soundcard writer for a specific audio output
// device. This is typically a speaker or a pair of headphones.
func NewScWriter(opts ...Option) (*ScWriter, error) {

	w := &ScWriter{
		options: Options{
			DeviceName:      "default",
			HostAPI:         "default",
			Channels:        1,
			Samplerate:      44100,
			FramesPerBuffer: 256,
			RingBufferSize:  128,
			MaxQueue:        time.Millisecond * 500,
			Latency:         time.Millisecond * 10,
		},
		ring:   ringBuffer.Ring{},
		volume: 1.0,
	}

	for _, option := range opts {
		option(&w.options)
	}
	w.onUnderrun = w.options.OnUnderrun

	// setup a samplerate converter
	srConv, err := gosamplerate.New(gosamplerate.SRC_SINC_FASTEST, w.options.Channels, 65536)
	if err != nil {
		return nil, fmt.Errorf("player: %v", err)
	}

	w.src = src{
		Src:        srConv,
		samplerate: w.options.Samplerate,
		ratio:      1,
	}

	hostAPI, err := padevice.HostAPI(w.options.HostAPI)
	if err != nil {
		return nil, err
	}

	w.deviceInfo, err = padevice.Output(hostAPI, w.options.DeviceName)
	if err != nil {
		return nil, err
	}

	streamDeviceParam := pa.StreamDeviceParameters{
		Device:   w.deviceInfo,
		Channels: w.options.Channels,
		Latency:  w.options.Latency,
	}

	streamParm := pa.StreamParameters{
		FramesPerBuffer: w.options.FramesPerBuffer,
		Output:          streamDeviceParam,
		SampleRate:      w.options.Samplerate,
	}

	w.ring.SetCapacity(w.options.RingBufferSize)

	stream, err := pa.OpenStream(streamParm, w.playCb)
	if err != nil {
		return nil,
			fmt.Errorf("unable to open playback audio stream on device %s: %s",
				w.options.DeviceName, err)
	}

	w.stream = stream
	log.Printf("output sound device: %s, HostAPI: %s\n", w.deviceInfo.Name, w.deviceInfo.HostApi.Name)

	return w, nil
}

// SetFrameCb switches the writer into pull mode. The callback is executed
// from the playback callback and must not block.
func (p *ScWriter) SetFrameCb(cb FrameCb) {
	p.Lock()
	defer p.Unlock()
	p.pullCb = cb
}

// portaudio callback which will be called continuously when the stream is
// started; this function should be short and never block
func (p *ScWriter) playCb(out []float32,
	iTime pa.StreamCallbackTimeInfo,
	iFlags pa.StreamCallbackFlags) {
	switch iFlags {
	case pa.OutputUnderflow:
		log.Println("Output Underflow")
		return // move on!
	case pa.OutputOverflow:
		log.Println("Output Overflow")
		return // move on!
	}

	p.Lock()
	paused := p.paused
	muted := p.muted
	vol := p.volume
	pullCb := p.pullCb
	p.Unlock()

	if paused {
		silence(out)
		return
	}

	if pullCb != nil {
		n := pullCb(out)
		for i := n; i < len(out); i++ {
			out[i] = 0
		}
		p.applyGain(out, vol, muted)
		return
	}

	var data interface{}

	p.Lock()
	bufFill := p.bufFill
	bufCapacity := p.ring.Capacity()
	bufLength := p.ring.Length()
	// when filling up the buffer, don't dequeue data
	if !bufFill {
		data = p.ring.Dequeue()
		if data != nil {
			p.queuedSamples -= len(data.([]float32))
		}
	}
	p.Unlock()

	// start filling buffer when buffer runs empty
	if bufLength == 0 {
		p.Lock()
		p.bufFill = true
		p.Unlock()
	}

	if bufFill {
		// stop filling buffer when it's again half full
		if bufLength >= bufCapacity/2 {
			p.bufFill = false
		}
	}

	// if no data is available we fill the audio package with silence
	if data == nil {
		silence(out)
		atomic.AddUint64(&p.underruns, 1)
		if p.onUnderrun != nil {
			p.onUnderrun()
		}
		return
	}

	audioData := data.([]float32)

	// should never happen
	if len(audioData) != len(out) {
		log.Printf("unable to play audio frame; expected frame size %d, but got %d",
			len(out), len(audioData))
		return
	}

	copy(out, audioData)
	p.applyGain(out, vol, muted)
}

// applyGain applies the volume stage followed by the clipping protection.
func (p *ScWriter) applyGain(out []float32, vol float32, muted bool) {
	if muted {
		silence(out)
		return
	}
	if vol != 1 {
		audio.AdjustVolume(vol, out)
	}
	voicefilter.SoftClip(out)
}

func silence(out []float32) {
	for i := range out {
		out[i] = 0
	}
}

// Start starts streaming audio to the soundcard output device.
func (p *ScWriter) Start() error {
	if p.stream == nil {
		return fmt.Errorf("portaudio stream not initialized")
	}
	return p.stream.Start()
}

// Stop stops streaming audio.
func (p *ScWriter) Stop() error {
	if p.stream == nil {
		return fmt.Errorf("portaudio stream not initialized")
	}
	return p.stream.Stop()
}

// Close shuts down the soundcard audio device.
func (p *ScWriter) Close() error {
	if p.stream == nil {
		return fmt.Errorf("portaudio stream not initialized")
	}
	p.stream.Abort()
	p.stream.Stop()
	return nil
}

// Pause keeps the stream running but replaces the output with silence.
func (p *ScWriter) Pause() {
	p.Lock()
	defer p.Unlock()
	p.paused = true
}

// Resume continues audio processing after a Pause.
func (p *ScWriter) Resume() {
	p.Lock()
	defer p.Unlock()
	p.paused = false
}

// SetMute silences the output without changing the volume setting.
func (p *ScWriter) SetMute(muted bool) {
	p.Lock()
	defer p.Unlock()
	p.muted = muted
}

// SetVolume sets the volume for all upcoming audio frames.
func (p *ScWriter) SetVolume(v float32) {
	p.Lock()
	defer p.Unlock()
	if v < 0 {
		p.volume = 0
	} else if v > 1 {
		p.volume = 1
	} else {
		p.volume = v
	}
}

// Volume returns the current volume.
func (p *ScWriter) Volume() float32 {
	p.RLock()
	defer p.RUnlock()
	return p.volume
}

// Underruns returns the number of playback quanta filled with silence
// because no data was queued.
func (p *ScWriter) Underruns() uint64 {
	return atomic.LoadUint64(&p.underruns)
}

// DroppedSamples returns the number of queued samples discarded to keep
// the playback queue inside its latency bound.
func (p *ScWriter) DroppedSamples() uint64 {
	return atomic.LoadUint64(&p.droppedSamples)
}

// Write converts the frames in the audio buffer into the right format
// and queues them into a ring buffer for playing on the speaker.
func (p *ScWriter) Write(msg audio.Msg) error {

	var aData []float32
	var err error

	// if necessary adjust the amount of audio channels
	if msg.Channels != p.options.Channels {
		aData = audio.AdjustChannels(msg.Channels, p.options.Channels, msg.Data)
	} else {
		aData = msg.Data
	}

	// if necessary, resample the audio
	if msg.Samplerate != p.options.Samplerate {
		if p.src.samplerate != msg.Samplerate {
			p.src.Reset()
			p.src.samplerate = msg.Samplerate
			p.src.ratio = p.options.Samplerate / msg.Samplerate
		}
		aData, err = p.src.Process(aData, p.src.ratio, false)
		if err != nil {
			return err
		}
	}

	// audio buffer size we want to write into our ring buffer
	// (size expected by portaudio callback)
	expBufferSize := p.options.FramesPerBuffer * p.options.Channels

	// if there is data stashed from previous calls, prepend it to the
	// data received
	if len(p.stash) > 0 {
		aData = append(p.stash, aData...)
		p.stash = p.stash[:0]
	}

	// if the audio buffer size is actually smaller than the one we need,
	// then stash it for the next time and return
	if len(aData) < expBufferSize {
		p.stash = aData
		return nil
	}

	// slice of audio buffers which will be enqueued into the ring buffer
	var bData [][]float32

	for len(aData) >= expBufferSize {
		bData = append(bData, aData[:expBufferSize])
		aData = aData[expBufferSize:]
	}

	// stash the left over
	if len(aData) > 0 {
		p.stash = aData
	}

	p.enqueue(bData)

	return nil
}

// enqueue inserts the frames into the playback queue. When the queue
// grows beyond the configured latency bound, the oldest frames are
// discarded first.
func (p *ScWriter) enqueue(bData [][]float32) {
	p.Lock()
	defer p.Unlock()

	maxQueueSamples := int(p.options.MaxQueue.Seconds() *
		p.options.Samplerate * float64(p.options.Channels))

	for _, frame := range bData {
		for p.queuedSamples+len(frame) > maxQueueSamples && p.ring.Length() > 0 {
			old := p.ring.Dequeue()
			if old == nil {
				break
			}
			n := len(old.([]float32))
			p.queuedSamples -= n
			atomic.AddUint64(&p.droppedSamples, uint64(n))
		}
		p.ring.Enqueue(frame)
		p.queuedSamples += len(frame)
	}
}

// Flush clears all internal buffers
func (p *ScWriter) Flush() {
	p.Lock()
	defer p.Unlock()

	p.stash = []float32{}
	p.queuedSamples = 0

	p.ring = ringBuffer.Ring{}
	p.ring.SetCapacity(p.options.RingBufferSize)
}
