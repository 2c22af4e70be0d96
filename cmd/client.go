package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cskr/pubsub"
	"github.com/gordonklaus/portaudio"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/audsync/audsync/endpoint"
	"github.com/audsync/audsync/events"
	"github.com/audsync/audsync/sessionlog"
)

// clientCmd represents the client command
var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Run a voice endpoint connected to a relay server",
	Long: `Run a voice endpoint

The endpoint captures the microphone, streams it to the relay server
and plays back the audio the relay forwards from the other endpoints.

In order to find the supported audio devices and audio host APIs
for your platform run:

$ audsync enumerate

Once running, the endpoint accepts commands on stdin:

  logon     connect to the relay
  logoff    disconnect from the relay
  start     start sending microphone audio
  stop      stop sending microphone audio
  recstart [file]  record received audio to a wav file
  recstop   stop recording
  play <file>      stream a wav file to the relay
  playstop  stop file playback
  volume N  set playback volume (0-100)
  mute / unmute
  stats     print endpoint counters
  quit      exit
`,
	Run: runClient,
}

func init() {
	RootCmd.AddCommand(clientCmd)
	clientCmd.Flags().StringP("relay", "r", "localhost:8080", "relay server address (host:port)")
	clientCmd.Flags().String("host-api", "default", "audio host API")
	clientCmd.Flags().StringP("input-device", "i", "default", "capture device name")
	clientCmd.Flags().StringP("output-device", "o", "default", "playback device name")
	clientCmd.Flags().Float64P("samplerate", "s", 44100, "sampling rate in frames per second")
	clientCmd.Flags().IntP("channels", "c", 1, "channels sent over the wire (1=mono, 2=stereo)")
	clientCmd.Flags().IntP("frames-per-buffer", "f", 256, "audio frame size in samples")
	clientCmd.Flags().Bool("no-filter", false, "bypass the voice filter chain")
	clientCmd.Flags().Float32("vox", 0, "voice activated transmission threshold (0-1), 0 disables vox")
	clientCmd.Flags().String("session-log", "", "session log file, empty disables session logging")
}

func runClient(cmd *cobra.Command, args []string) {

	// Try to read config file
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	} else {
		if !strings.Contains(err.Error(), "Not Found in") {
			fmt.Fprintf(os.Stderr, "Error parsing config file %v: %v\n",
				viper.ConfigFileUsed(), err)
			os.Exit(1)
		}
	}

	// bind the pflags to viper settings
	viper.BindPFlag("client.relay", cmd.Flags().Lookup("relay"))
	viper.BindPFlag("audio.host-api", cmd.Flags().Lookup("host-api"))
	viper.BindPFlag("audio.input-device", cmd.Flags().Lookup("input-device"))
	viper.BindPFlag("audio.output-device", cmd.Flags().Lookup("output-device"))
	viper.BindPFlag("audio.samplerate", cmd.Flags().Lookup("samplerate"))
	viper.BindPFlag("audio.channels", cmd.Flags().Lookup("channels"))
	viper.BindPFlag("audio.frames-per-buffer", cmd.Flags().Lookup("frames-per-buffer"))
	viper.BindPFlag("audio.no-filter", cmd.Flags().Lookup("no-filter"))
	viper.BindPFlag("audio.vox", cmd.Flags().Lookup("vox"))
	viper.BindPFlag("client.session-log", cmd.Flags().Lookup("session-log"))

	if err := checkAudioParameterValues(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	portaudio.Initialize()
	defer portaudio.Terminate()

	bus := pubsub.New(100)
	go events.WatchSystemEvents(bus)
	go events.CaptureKeyboard(bus)

	opts := []endpoint.Option{
		endpoint.RelayAddress(viper.GetString("client.relay")),
		endpoint.HostAPI(viper.GetString("audio.host-api")),
		endpoint.InputDevice(viper.GetString("audio.input-device")),
		endpoint.OutputDevice(viper.GetString("audio.output-device")),
		endpoint.Samplerate(viper.GetFloat64("audio.samplerate")),
		endpoint.Channels(viper.GetInt("audio.channels")),
		endpoint.FramesPerBuffer(viper.GetInt("audio.frames-per-buffer")),
		endpoint.EventBus(bus),
	}
	if viper.GetBool("audio.no-filter") {
		opts = append(opts, endpoint.DisableFilter())
	}
	if threshold := viper.GetFloat64("audio.vox"); threshold > 0 {
		opts = append(opts, endpoint.EnableVox(float32(threshold)))
	}

	var slog *sessionlog.Logger
	if path := viper.GetString("client.session-log"); path != "" {
		slog = sessionlog.New(sessionlog.Path(path))
		defer slog.Close()
		opts = append(opts, endpoint.SessionLog(slog))
	}

	ep, err := endpoint.NewEndpoint(opts...)
	if err != nil {
		logrus.Fatal(err)
	}
	defer ep.Close()

	if err := ep.Logon(); err != nil {
		logrus.Fatal(err)
	}

	cmdCh := bus.Sub(events.CliCommand)
	shutdownCh := bus.Sub(events.OsExit)

	fmt.Println("connected, type 'start' to stream ('quit' to exit)")

	for {
		select {
		case <-shutdownCh:
			return

		case ev := <-cmdCh:
			line := ev.(string)
			if done := dispatchCommand(ep, line); done {
				return
			}
		}
	}
}

// dispatchCommand executes one interactive command. It returns true
// when the endpoint should shut down.
func dispatchCommand(ep *endpoint.Endpoint, line string) bool {

	fields := strings.Fields(line)
	verb := strings.ToLower(fields[0])

	report := func(err error) {
		if err != nil {
			fmt.Println("error:", err)
		}
	}

	switch verb {
	case "logon":
		report(ep.Logon())

	case "logoff":
		report(ep.Logoff())

	case "start":
		report(ep.StartStream())

	case "stop":
		report(ep.StopStream())

	case "recstart":
		path := fmt.Sprintf("audsync-%s.wav", time.Now().Format("20060102-150405"))
		if len(fields) > 1 {
			path = fields[1]
		}
		report(ep.StartRecording(path))

	case "recstop":
		report(ep.StopRecording())

	case "play":
		if len(fields) < 2 {
			fmt.Println("usage: play <file.wav>")
			return false
		}
		report(ep.PlayFile(fields[1]))

	case "playstop":
		report(ep.StopPlayback())

	case "volume":
		if len(fields) < 2 {
			fmt.Printf("volume: %.0f\n", ep.Volume()*100)
			return false
		}
		v, err := strconv.Atoi(fields[1])
		if err != nil || v < 0 || v > 100 {
			fmt.Println("usage: volume 0-100")
			return false
		}
		ep.SetVolume(float32(v) / 100)

	case "mute":
		ep.SetMute(true)

	case "unmute":
		ep.SetMute(false)

	case "pause":
		ep.PauseRender()

	case "resume":
		ep.ResumeRender()

	case "stats":
		printStats(ep.Stats())

	case "quit", "exit":
		return true

	default:
		fmt.Println("unknown command:", verb)
	}
	return false
}

func printStats(st endpoint.Stats) {
	fmt.Printf(`connected:       %v
streaming:       %v
recording:       %v
volume:          %.0f
frames sent:     %d
frames received: %d
frames dropped:  %d
reconnects:      %d
bytes received:  %d
overflows:       %d
underruns:       %d
heartbeats:      %d
jitter:          %v
buffer depth:    %v
`,
		st.Connected, st.Streaming, st.Recording, st.Volume*100,
		st.SentFrames, st.RecvFrames, st.DroppedFrames, st.Reconnects,
		st.BytesReceived, st.Overflows, st.Underruns, st.Heartbeats,
		st.Jitter, st.BufferDepth)
}
