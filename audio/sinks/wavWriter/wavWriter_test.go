package wavWriter

import "testing"

func TestQuantizeStaysInRange(t *testing.T) {
	for _, sample := range []float32{0, 0.5, -0.5, 1.0, -1.0, 2.5, -2.5, 100, -100} {
		v := quantize(sample)
		if v > 32767 || v < -32768 {
			t.Fatalf("quantize(%f) = %d out of int16 range", sample, v)
		}
	}
}

func TestQuantizeSilence(t *testing.T) {
	// dither may move silence by at most one step
	v := quantize(0)
	if v < -1 || v > 1 {
		t.Fatalf("quantize(0) = %d, expected dither within one step", v)
	}
}

func TestQuantizePreservesSign(t *testing.T) {
	if v := quantize(0.5); v < 16000 || v > 16767 {
		t.Fatalf("quantize(0.5) = %d, expected ~16384", v)
	}
	if v := quantize(-0.5); v > -16000 || v < -16767 {
		t.Fatalf("quantize(-0.5) = %d, expected ~-16384", v)
	}
}
