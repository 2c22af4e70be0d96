package audio

// AdjustChannels either upmixes a mono buffer to stereo (duplicating the
// channel) or downmixes a stereo buffer to mono (dropping the right
// channel). Buffers which already match the requested channel count are
// returned unmodified.
func AdjustChannels(iChs, oChs int, audioFrames []float32) []float32 {
	if iChs == oChs {
		return audioFrames
	}

	// mono -> stereo
	if iChs == 1 && oChs == 2 {
		res := make([]float32, 0, len(audioFrames)*2)
		// left channel = right channel
		for _, frame := range audioFrames {
			res = append(res, frame)
			res = append(res, frame)
		}
		return res
	}

	// stereo -> mono
	res := make([]float32, 0, len(audioFrames)/2)
	// chop off the right channel
	for i := 0; i < len(audioFrames); i += 2 {
		res = append(res, audioFrames[i])
	}
	return res
}

// AdjustVolume applies a gain factor in place to all samples in the buffer.
func AdjustVolume(volume float32, audioFrames []float32) {
	for i := 0; i < len(audioFrames); i++ {
		audioFrames[i] *= volume
	}
}
