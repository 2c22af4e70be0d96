package cmd

import (
	"fmt"

	"github.com/spf13/viper"
)

func checkAudioParameterValues() error {

	if chs := viper.GetInt("audio.channels"); chs < 1 || chs > 2 {
		return &parmError{
			parm: "audio.channels",
			msg:  "allowed values are [1 (Mono), 2 (Stereo)]",
		}
	}

	if sr := viper.GetFloat64("audio.samplerate"); sr < 8000 || sr > 192000 {
		return &parmError{
			parm: "audio.samplerate",
			msg:  "allowed values are [8000...192000]",
		}
	}

	if fpb := viper.GetInt("audio.frames-per-buffer"); fpb < 32 || fpb > 8192 {
		return &parmError{
			parm: "audio.frames-per-buffer",
			msg:  "allowed values are [32...8192]",
		}
	}

	return nil
}

type parmError struct {
	parm string
	msg  string
}

func (p *parmError) Error() string {
	return fmt.Sprintf("%v: %v\n", p.parm, p.msg)
}
