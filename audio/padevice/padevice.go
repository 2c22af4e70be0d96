// Package padevice resolves portaudio host APIs and devices by name. It is
// shared by the capture and playback packages and by the device
// enumeration command.
package padevice

import (
	"fmt"
	"runtime"
	"strings"

	pa "github.com/gordonklaus/portaudio"
)

// HostAPI returns the portaudio host api with the given name. The name
// "default" selects the platform default, preferring WASAPI on windows
// for its lower latency.
func HostAPI(name string) (*pa.HostApiInfo, error) {
	if name == "default" {
		if runtime.GOOS == "windows" {
			if ha, err := pa.HostApi(pa.WASAPI); err == nil {
				return ha, nil
			}
		}
		ha, err := pa.DefaultHostApi()
		if err != nil {
			return nil, fmt.Errorf("unable to determine the default host api - please provide a specific host api")
		}
		return ha, nil
	}

	var hostAPIType pa.HostApiType

	switch strings.ToLower(name) {
	case "indevelopment":
		hostAPIType = pa.InDevelopment
	case "directsound":
		hostAPIType = pa.DirectSound
	case "mme":
		hostAPIType = pa.MME
	case "asio":
		hostAPIType = pa.ASIO
	case "soundmanager":
		hostAPIType = pa.SoundManager
	case "coreaudio":
		hostAPIType = pa.CoreAudio
	case "oss":
		hostAPIType = pa.OSS
	case "alsa":
		hostAPIType = pa.ALSA
	case "al":
		hostAPIType = pa.AL
	case "beos":
		hostAPIType = pa.BeOS
	case "wdmks":
		hostAPIType = pa.WDMkS
	case "jack":
		hostAPIType = pa.JACK
	case "wasapi":
		hostAPIType = pa.WASAPI
	case "audiosciencehpi":
		hostAPIType = pa.AudioScienceHPI
	default:
		return nil, fmt.Errorf("unknown host api type: %s", name)
	}

	hostAPIInfo, err := pa.HostApi(hostAPIType)
	if err != nil {
		return nil, fmt.Errorf("unable to load host api %s: %s", name, err.Error())
	}

	return hostAPIInfo, nil
}

// Input resolves an input device by name within the host api. The name
// "default" selects the api's default input device.
func Input(hostAPI *pa.HostApiInfo, name string) (*pa.DeviceInfo, error) {
	if name == "default" {
		if hostAPI.DefaultInputDevice == nil {
			return nil, fmt.Errorf("host api %s has no default input device", hostAPI.Name)
		}
		return hostAPI.DefaultInputDevice, nil
	}
	return lookup(hostAPI, name)
}

// Output resolves an output device by name within the host api. The name
// "default" selects the api's default output device.
func Output(hostAPI *pa.HostApiInfo, name string) (*pa.DeviceInfo, error) {
	if name == "default" {
		if hostAPI.DefaultOutputDevice == nil {
			return nil, fmt.Errorf("host api %s has no default output device", hostAPI.Name)
		}
		return hostAPI.DefaultOutputDevice, nil
	}
	return lookup(hostAPI, name)
}

func lookup(hostAPI *pa.HostApiInfo, name string) (*pa.DeviceInfo, error) {
	for _, device := range hostAPI.Devices {
		if strings.EqualFold(device.Name, name) {
			return device, nil
		}
	}
	return nil, fmt.Errorf("unknown audio device '%s'", name)
}
