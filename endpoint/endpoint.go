// Package endpoint assembles the two halves of a voice endpoint: the
// capture leg (microphone, voice filter, relay connection) and the
// render leg (relay connection, jitter buffer, voice filter, speaker).
// Both legs share a single relay connection so the server sees one
// session per endpoint.
package endpoint

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/audsync/audsync/audio"
	"github.com/audsync/audsync/audio/nodes/voicefilter"
	"github.com/audsync/audsync/audio/nodes/vox"
	"github.com/audsync/audsync/audio/sinks/netWriter"
	"github.com/audsync/audsync/audio/sinks/scWriter"
	"github.com/audsync/audsync/audio/sinks/wavWriter"
	"github.com/audsync/audsync/audio/sources/netReader"
	"github.com/audsync/audsync/audio/sources/scReader"
	"github.com/audsync/audsync/audio/sources/wavReader"
	"github.com/audsync/audsync/events"
	"github.com/audsync/audsync/protocol"
	"github.com/audsync/audsync/transport"
)

// Endpoint is a voice client: it captures the microphone, streams it to
// the relay and renders what the relay forwards from the other
// endpoints.
type Endpoint struct {
	sync.Mutex
	options Options
	log     *logrus.Entry

	client   *transport.Client
	mic      *scReader.ScReader
	speaker  *scWriter.ScWriter
	reader   *netReader.NetReader
	writer   *netWriter.NetWriter
	txFilter *voicefilter.VoiceFilter
	rxFilter *voicefilter.VoiceFilter
	voxNode  *vox.Vox

	recorder   *wavWriter.WavWriter
	muRecorder sync.Mutex

	player   *wavReader.WavReader
	muPlayer sync.Mutex

	loggedOn  bool
	streaming bool

	bytesReceived uint64
	lastPacket    atomic.Int64 // unix nanos
}

// NewEndpoint builds the full pipeline. Audio devices are opened here;
// the relay connection is not established until Logon.
func NewEndpoint(opts ...Option) (*Endpoint, error) {

	e := &Endpoint{
		options: Options{
			RelayAddress:    "localhost:8080",
			HostAPI:         "default",
			InputDevice:     "default",
			OutputDevice:    "default",
			Samplerate:      44100,
			Channels:        1,
			FramesPerBuffer: 256,
		},
	}

	for _, option := range opts {
		option(&e.options)
	}

	e.log = logrus.WithFields(logrus.Fields{
		"component": "endpoint",
		"relay":     e.options.RelayAddress,
	})

	var err error

	e.client, err = transport.NewClient(
		transport.Address(e.options.RelayAddress),
		transport.StreamConfig(protocol.StreamConfig{
			Samplerate:      int32(e.options.Samplerate),
			Channels:        int32(e.options.Channels),
			FramesPerBuffer: int32(e.options.FramesPerBuffer),
		}),
		transport.OnStateChange(e.onConnState),
	)
	if err != nil {
		return nil, err
	}

	e.mic, err = scReader.NewScReader(
		scReader.HostAPI(e.options.HostAPI),
		scReader.DeviceName(e.options.InputDevice),
		scReader.Samplerate(e.options.Samplerate),
		scReader.Channels(e.options.Channels),
		scReader.FramesPerBuffer(e.options.FramesPerBuffer),
	)
	if err != nil {
		return nil, fmt.Errorf("endpoint: unable to open capture device: %w", err)
	}

	e.speaker, err = scWriter.NewScWriter(
		scWriter.HostAPI(e.options.HostAPI),
		scWriter.DeviceName(e.options.OutputDevice),
		scWriter.Samplerate(e.options.Samplerate),
		scWriter.Channels(e.options.Channels),
		scWriter.FramesPerBuffer(e.options.FramesPerBuffer),
		scWriter.OnUnderrun(e.onUnderrun),
	)
	if err != nil {
		return nil, fmt.Errorf("endpoint: unable to open playback device: %w", err)
	}

	e.reader = netReader.NewNetReader(
		netReader.Samplerate(e.options.Samplerate),
		netReader.Channels(e.options.Channels),
		netReader.FramesPerBuffer(e.options.FramesPerBuffer),
		netReader.JitterOpts(e.options.JitterOpts...),
	)

	e.writer = netWriter.NewNetWriter(e.client)

	e.wire()

	return e, nil
}

// wire connects the pipeline stages. With the voice filter enabled the
// capture leg runs mic -> vox -> filter -> relay and the render leg
// runs relay -> jitter -> filter -> speaker.
func (e *Endpoint) wire() {

	var txHead audio.Node

	if e.options.DisableFilter {
		e.reader.SetCb(e.render)
	} else {
		e.txFilter = voicefilter.New()
		e.txFilter.SetCb(func(msg audio.Msg) {
			e.writer.Write(msg)
		})
		txHead = e.txFilter

		e.rxFilter = voicefilter.New(voicefilter.DisableDynamic())
		e.rxFilter.SetCb(e.render)
		e.reader.SetCb(func(msg audio.Msg) {
			e.rxFilter.Write(msg)
		})
	}

	if e.options.EnableVox {
		e.voxNode = vox.New(
			vox.Threshold(e.options.VoxThreshold),
			vox.StateChanged(e.onVoxState),
		)
		if txHead != nil {
			next := txHead
			e.voxNode.SetCb(func(msg audio.Msg) {
				next.Write(msg)
			})
		} else {
			e.voxNode.SetCb(func(msg audio.Msg) {
				e.writer.Write(msg)
			})
		}
		txHead = e.voxNode
	}

	if txHead != nil {
		head := txHead
		e.mic.SetCb(func(msg audio.Msg) {
			head.Write(msg)
		})
	} else {
		e.mic.SetCb(func(msg audio.Msg) {
			e.writer.Write(msg)
		})
	}

	e.client.SetOnMessage(e.onMessage)
}

// onVoxState gates the network sink on speech. While the vox considers
// the stream silent, captured frames are processed but not sent.
func (e *Endpoint) onVoxState(speech bool) {
	if speech {
		e.writer.Start()
	} else {
		e.writer.Stop()
	}
	if e.options.EventBus != nil {
		e.options.EventBus.Pub(speech, events.VoxActive)
	}
}

// render delivers a playable frame to the speaker and, while recording
// is active, to the wav file.
func (e *Endpoint) render(msg audio.Msg) {
	e.speaker.Write(msg)

	e.muRecorder.Lock()
	rec := e.recorder
	e.muRecorder.Unlock()
	if rec != nil {
		rec.Write(msg)
	}
}

func (e *Endpoint) onMessage(msg protocol.Message) {
	if msg.Type == protocol.AudioData {
		atomic.AddUint64(&e.bytesReceived, uint64(len(msg.Payload)))

		if e.options.SessionLog != nil {
			now := time.Now()
			last := e.lastPacket.Swap(now.UnixNano())
			elapsed := time.Duration(0)
			if last != 0 {
				elapsed = now.Sub(time.Unix(0, last))
			}
			e.options.SessionLog.Packet(msg.Timestamp, len(msg.Payload), elapsed)
		}
	}
	e.reader.HandleMessage(msg)
}

func (e *Endpoint) onConnState(connected bool) {
	if e.options.EventBus != nil {
		e.options.EventBus.Pub(connected, events.RelayConnStatus)
	}
	if connected {
		e.log.Info("relay connection up")
	} else {
		e.log.Warn("relay connection down")
	}
}

func (e *Endpoint) onUnderrun() {
	if e.options.EventBus != nil {
		e.options.EventBus.Pub(true, events.Underrun)
	}
}

// Logon connects to the relay and starts the render leg. The endpoint
// hears the other clients but does not send until StartStream.
func (e *Endpoint) Logon() error {
	e.Lock()
	defer e.Unlock()

	if e.loggedOn {
		return nil
	}

	if err := e.client.Start(); err != nil {
		return err
	}
	if err := e.reader.Start(); err != nil {
		e.client.Stop()
		return err
	}
	if err := e.speaker.Start(); err != nil {
		e.reader.Stop()
		e.client.Stop()
		return err
	}

	e.loggedOn = true
	if e.options.SessionLog != nil {
		e.options.SessionLog.Event("logged on to %s", e.options.RelayAddress)
	}
	e.log.Info("logged on")
	return nil
}

// Logoff stops streaming, disconnects from the relay and stops the
// render leg. The audio devices stay open for a later Logon.
func (e *Endpoint) Logoff() error {
	e.Lock()
	defer e.Unlock()

	if !e.loggedOn {
		return nil
	}

	if e.streaming {
		e.mic.Stop()
		e.writer.Stop()
		e.streaming = false
	}

	e.speaker.Stop()
	e.reader.Stop()
	err := e.client.Stop()

	e.loggedOn = false

	if e.options.SessionLog != nil {
		e.options.SessionLog.AudioStats(
			atomic.LoadUint64(&e.bytesReceived),
			int(e.options.Samplerate),
			e.options.Channels,
			e.options.RelayAddress,
		)
		e.options.SessionLog.Event("logged off from %s", e.options.RelayAddress)
	}
	e.log.Info("logged off")
	return err
}

// StartStream begins capturing the microphone and sending it to the
// relay.
func (e *Endpoint) StartStream() error {
	e.Lock()
	defer e.Unlock()

	if !e.loggedOn {
		return fmt.Errorf("endpoint: not logged on")
	}
	if e.streaming {
		return nil
	}

	if err := e.writer.Start(); err != nil {
		return err
	}
	if err := e.mic.Start(); err != nil {
		e.writer.Stop()
		return err
	}

	e.streaming = true
	e.log.Info("streaming")
	return nil
}

// StopStream stops capturing. The render leg keeps playing.
func (e *Endpoint) StopStream() error {
	e.Lock()
	defer e.Unlock()

	if !e.streaming {
		return nil
	}

	err := e.mic.Stop()
	e.writer.Stop()
	e.streaming = false
	e.log.Info("stream stopped")
	return err
}

// PlayFile streams a wav file to the relay instead of the microphone.
// Playback runs at the cadence of the recorded stream and stops by
// itself at the end of the file.
func (e *Endpoint) PlayFile(path string) error {
	e.muPlayer.Lock()
	defer e.muPlayer.Unlock()

	if e.player != nil && e.player.Playing() {
		return fmt.Errorf("endpoint: already playing a file")
	}

	player, err := wavReader.NewWavReader(path,
		wavReader.FramesPerBuffer(e.options.FramesPerBuffer),
	)
	if err != nil {
		return err
	}

	player.SetCb(func(msg audio.Msg) {
		e.writer.Write(msg)
	})
	player.OnDone(func() {
		e.log.Info("file playback finished")
	})

	if err := e.writer.Start(); err != nil {
		player.Close()
		return err
	}
	if err := player.Start(); err != nil {
		player.Close()
		return err
	}

	e.player = player
	e.log.WithField("path", path).Info("playing file")
	return nil
}

// StopPlayback cancels a running file playback.
func (e *Endpoint) StopPlayback() error {
	e.muPlayer.Lock()
	defer e.muPlayer.Unlock()

	if e.player == nil {
		return nil
	}
	err := e.player.Close()
	e.player = nil
	return err
}

// StartRecording writes the rendered audio to a 16 bit wav file at the
// given path until StopRecording is called.
func (e *Endpoint) StartRecording(path string) error {
	e.muRecorder.Lock()
	defer e.muRecorder.Unlock()

	if e.recorder != nil {
		return fmt.Errorf("endpoint: already recording")
	}

	rec, err := wavWriter.NewWavWriter(path,
		wavWriter.Samplerate(e.options.Samplerate),
		wavWriter.Channels(e.options.Channels),
	)
	if err != nil {
		return err
	}
	if err := rec.Start(); err != nil {
		rec.Close()
		return err
	}

	e.recorder = rec
	if e.options.EventBus != nil {
		e.options.EventBus.Pub(true, events.RecordAudioOn)
	}
	if e.options.SessionLog != nil {
		e.options.SessionLog.Event("recording to %s", path)
	}
	e.log.WithField("path", path).Info("recording")
	return nil
}

// StopRecording finalizes the wav file.
func (e *Endpoint) StopRecording() error {
	e.muRecorder.Lock()
	defer e.muRecorder.Unlock()

	if e.recorder == nil {
		return fmt.Errorf("endpoint: not recording")
	}

	err := e.recorder.Close()
	e.recorder = nil
	if e.options.EventBus != nil {
		e.options.EventBus.Pub(false, events.RecordAudioOn)
	}
	if e.options.SessionLog != nil {
		e.options.SessionLog.Event("recording stopped")
	}
	e.log.Info("recording stopped")
	return err
}

// SetVolume sets the playback volume, clamped to [0, 1].
func (e *Endpoint) SetVolume(v float32) {
	e.speaker.SetVolume(v)
}

// Volume returns the playback volume.
func (e *Endpoint) Volume() float32 {
	return e.speaker.Volume()
}

// SetMute silences the playback without stopping the stream.
func (e *Endpoint) SetMute(muted bool) {
	e.speaker.SetMute(muted)
}

// PauseRender keeps the playback device running but outputs silence.
// Frames rendered meanwhile stay in the playback queue, which drops its
// oldest frames once it exceeds its latency bound.
func (e *Endpoint) PauseRender() {
	e.speaker.Pause()
}

// ResumeRender continues playback after PauseRender.
func (e *Endpoint) ResumeRender() {
	e.speaker.Resume()
}

// Connected reports whether the endpoint holds a relay connection.
func (e *Endpoint) Connected() bool {
	return e.client.Connected()
}

// Stats is a snapshot of the endpoint counters.
type Stats struct {
	Connected     bool
	Streaming     bool
	Recording     bool
	Volume        float32
	SentFrames    uint64
	RecvFrames    uint64
	DroppedFrames uint64
	Reconnects    uint64
	BytesReceived uint64
	Overflows     uint64
	Underruns     uint64
	Heartbeats    uint64
	Jitter        time.Duration
	BufferDepth   time.Duration
}

// Stats returns a snapshot of the endpoint state.
func (e *Endpoint) Stats() Stats {
	e.Lock()
	streaming := e.streaming
	e.Unlock()

	e.muRecorder.Lock()
	recording := e.recorder != nil
	e.muRecorder.Unlock()

	sent, received, dropped, reconnects := e.client.Stats()
	buf := e.reader.BufferStats()

	return Stats{
		Connected:     e.client.Connected(),
		Streaming:     streaming,
		Recording:     recording,
		Volume:        e.speaker.Volume(),
		SentFrames:    sent,
		RecvFrames:    received,
		DroppedFrames: dropped,
		Reconnects:    reconnects,
		BytesReceived: atomic.LoadUint64(&e.bytesReceived),
		Overflows:     e.mic.Overflows(),
		Underruns:     e.speaker.Underruns(),
		Heartbeats:    e.reader.Heartbeats(),
		Jitter:        buf.Jitter,
		BufferDepth:   buf.Depth,
	}
}

// Close releases the audio devices and the relay connection.
func (e *Endpoint) Close() error {
	e.Logoff()

	e.muRecorder.Lock()
	if e.recorder != nil {
		e.recorder.Close()
		e.recorder = nil
	}
	e.muRecorder.Unlock()

	e.StopPlayback()

	e.mic.Close()
	e.speaker.Close()
	e.reader.Close()
	return nil
}
