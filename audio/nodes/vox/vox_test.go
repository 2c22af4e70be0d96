package vox

import (
	"testing"
	"time"

	"github.com/audsync/audsync/audio"
)

func loudFrame(level float32, n int) audio.Msg {
	data := make([]float32, n)
	for i := range data {
		data[i] = level
	}
	return audio.Msg{Data: data, Channels: 1, Frames: n, Samplerate: 8000}
}

func TestFramesPassThrough(t *testing.T) {
	v := New()

	var got []audio.Msg
	v.SetCb(func(msg audio.Msg) {
		got = append(got, msg)
	})

	v.Write(loudFrame(0.5, 16))
	v.Write(loudFrame(0.0, 16))

	if len(got) != 2 {
		t.Fatalf("expected 2 forwarded frames, got %d", len(got))
	}
}

func TestActivatesAboveThreshold(t *testing.T) {
	states := make(chan bool, 4)
	v := New(Threshold(0.1), StateChanged(func(on bool) { states <- on }))
	v.SetCb(func(audio.Msg) {})

	v.Write(loudFrame(0.5, 16))

	select {
	case on := <-states:
		if !on {
			t.Error("expected vox to activate")
		}
	case <-time.After(time.Second):
		t.Fatal("state change never fired")
	}
	if !v.Active() {
		t.Error("Active() should report true")
	}
}

func TestDeactivatesAfterHoldTime(t *testing.T) {
	states := make(chan bool, 4)
	v := New(
		Threshold(0.1),
		HoldTime(10*time.Millisecond),
		StateChanged(func(on bool) { states <- on }),
	)
	v.SetCb(func(audio.Msg) {})

	v.Write(loudFrame(0.5, 16))
	<-states

	time.Sleep(20 * time.Millisecond)
	v.Write(loudFrame(0.0, 16))

	select {
	case on := <-states:
		if on {
			t.Error("expected vox to deactivate")
		}
	case <-time.After(time.Second):
		t.Fatal("deactivation never fired")
	}
}

func TestDisabledVoxStaysQuiet(t *testing.T) {
	states := make(chan bool, 4)
	v := New(Enabled(false), StateChanged(func(on bool) { states <- on }))
	v.SetCb(func(audio.Msg) {})

	v.Write(loudFrame(0.9, 16))

	select {
	case <-states:
		t.Error("disabled vox must not fire state changes")
	case <-time.After(50 * time.Millisecond):
	}
}
