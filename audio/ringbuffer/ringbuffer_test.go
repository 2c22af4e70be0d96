package ringbuffer

import "testing"

func TestWriteRead(t *testing.T) {
	rb := New(8)

	in := []float32{0.1, 0.2, 0.3, 0.4}
	if ok := rb.Write(in); !ok {
		t.Fatal("expected write to succeed")
	}
	if rb.Available() != 4 {
		t.Fatalf("expected 4 samples available, got %d", rb.Available())
	}

	out := make([]float32, 4)
	n := rb.Read(out)
	if n != 4 {
		t.Fatalf("expected to read 4 samples, got %d", n)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d: expected %f, got %f", i, in[i], out[i])
		}
	}
}

func TestOverflowDropsTail(t *testing.T) {
	rb := New(4)

	if ok := rb.Write([]float32{1, 2, 3}); !ok {
		t.Fatal("first write should succeed")
	}
	if ok := rb.Write([]float32{4, 5, 6}); ok {
		t.Fatal("second write should report dropped samples")
	}
	if rb.Available() != 4 {
		t.Fatalf("expected buffer to be full (4), got %d", rb.Available())
	}

	out := make([]float32, 4)
	rb.Read(out)
	expected := []float32{1, 2, 3, 4}
	for i := range expected {
		if out[i] != expected[i] {
			t.Fatalf("sample %d: expected %f, got %f", i, expected[i], out[i])
		}
	}
}

func TestUnderrunPadsSilence(t *testing.T) {
	rb := New(8)
	rb.Write([]float32{0.5, 0.5})

	out := []float32{9, 9, 9, 9}
	n := rb.Read(out)
	if n != 2 {
		t.Fatalf("expected 2 samples read, got %d", n)
	}
	if out[0] != 0.5 || out[1] != 0.5 {
		t.Fatalf("unexpected data: %v", out)
	}
	if out[2] != 0 || out[3] != 0 {
		t.Fatalf("expected silence padding, got %v", out[2:])
	}
}

func TestWrapAround(t *testing.T) {
	rb := New(4)
	out := make([]float32, 2)

	// push the positions past the end of the backing slice several times
	for round := 0; round < 10; round++ {
		in := []float32{float32(round), float32(round) + 0.5}
		if ok := rb.Write(in); !ok {
			t.Fatalf("round %d: write failed", round)
		}
		if n := rb.Read(out); n != 2 {
			t.Fatalf("round %d: expected 2 samples, got %d", round, n)
		}
		if out[0] != in[0] || out[1] != in[1] {
			t.Fatalf("round %d: expected %v, got %v", round, in, out)
		}
	}
}

func TestClear(t *testing.T) {
	rb := New(4)
	rb.Write([]float32{1, 2, 3})
	rb.Clear()
	if rb.Available() != 0 {
		t.Fatalf("expected empty buffer after clear, got %d", rb.Available())
	}
	if rb.Free() != 4 {
		t.Fatalf("expected 4 free after clear, got %d", rb.Free())
	}
}
