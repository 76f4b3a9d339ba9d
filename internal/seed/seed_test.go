package seed

import (
	"testing"
	"time"

	"pgregory.net/rapid"
)

func TestNew_SameKeySameSequence(t *testing.T) {
	a := New("0e2749a9-c857-4b59-tcgplayer-473352")
	b := New("0e2749a9-c857-4b59-tcgplayer-473352")

	for i := 0; i < 100; i++ {
		if x, y := a.Uint64(), b.Uint64(); x != y {
			t.Fatalf("draw %d differs: %d vs %d", i, x, y)
		}
	}
}

func TestNew_DifferentKeysDiffer(t *testing.T) {
	a := New("bulk-1")
	b := New("bulk-2")
	if a.Uint64() == b.Uint64() {
		t.Error("adjacent keys should not produce the same first draw")
	}
}

func TestNew_EmptyKeyFallsBack(t *testing.T) {
	a := New("")
	b := New(EmptyKey)
	for i := 0; i < 10; i++ {
		if a.Float64() != b.Float64() {
			t.Fatal("empty key should seed the same stream as EmptyKey")
		}
	}
}

// Streams must not change across releases: every stored or exported price
// was derived from them.
func TestNew_Golden(t *testing.T) {
	tests := []struct {
		key    string
		ints   [3]uint64
		floats [3]float64
	}{
		{
			key:    "",
			ints:   [3]uint64{0x0f4bb0552dcec766, 0x736de4b47f4e07e9, 0x50c4edd671627039},
			floats: [3]float64{0.059748669429434464, 0.4508955898921201, 0.31550489888594213},
		},
		{
			key:    EmptyKey,
			ints:   [3]uint64{0x0f4bb0552dcec766, 0x736de4b47f4e07e9, 0x50c4edd671627039},
			floats: [3]float64{0.059748669429434464, 0.4508955898921201, 0.31550489888594213},
		},
		{
			key:    "X-tcgplayer-473352",
			ints:   [3]uint64{0xbb7e8cd1db488358, 0x5f3f59afbb804171, 0xe21639de239937b8},
			floats: [3]float64{0.732399750933185, 0.3720603994402163, 0.8831516425449066},
		},
	}
	for _, tt := range tests {
		s := New(tt.key)
		for i, want := range tt.ints {
			if got := s.Uint64(); got != want {
				t.Errorf("New(%q) Uint64 draw %d = %#x, want %#x", tt.key, i, got, want)
			}
		}
		s = New(tt.key)
		for i, want := range tt.floats {
			if got := s.Float64(); got != want {
				t.Errorf("New(%q) Float64 draw %d = %v, want %v", tt.key, i, got, want)
			}
		}
	}
}

func TestFloat64_Range(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		key := rapid.String().Draw(t, "key")
		s := New(key)
		for i := 0; i < 50; i++ {
			f := s.Float64()
			if f < 0 || f >= 1 {
				t.Fatalf("Float64 out of [0,1): %v", f)
			}
		}
	})
}

func TestIntn_Range(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		key := rapid.String().Draw(t, "key")
		n := rapid.IntRange(1, 1000).Draw(t, "n")
		s := New(key)
		for i := 0; i < 20; i++ {
			v := s.Intn(n)
			if v < 0 || v >= n {
				t.Fatalf("Intn(%d) = %d", n, v)
			}
		}
	})
}

func TestIntn_NonPositive(t *testing.T) {
	s := New("x")
	if got := s.Intn(0); got != 0 {
		t.Errorf("Intn(0) = %d, want 0", got)
	}
	if got := s.Intn(-3); got != 0 {
		t.Errorf("Intn(-3) = %d, want 0", got)
	}
}

func TestFloat64_RoughlyUniform(t *testing.T) {
	s := New("uniformity")
	const n = 20000
	var below int
	for i := 0; i < n; i++ {
		if s.Float64() < 0.5 {
			below++
		}
	}
	frac := float64(below) / n
	if frac < 0.48 || frac > 0.52 {
		t.Errorf("fraction below 0.5 = %.3f, want ≈ 0.5", frac)
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		parts []any
		want  string
	}{
		{[]any{"X", "tcgplayer", int64(473352)}, "X-tcgplayer-473352"},
		{[]any{"latest", int64(1704067200000), 7}, "latest-1704067200000-7"},
		{[]any{"bulk", 0}, "bulk-0"},
		{[]any{"only"}, "only"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := Key(tt.parts...); got != tt.want {
			t.Errorf("Key(%v) = %q, want %q", tt.parts, got, tt.want)
		}
	}
}

func TestHourBucket(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if got, want := HourBucket(ts), int64(473352); got != want {
		t.Errorf("HourBucket(2024-01-01) = %d, want %d", got, want)
	}
	if got := HourBucket(ts.Add(59 * time.Minute)); got != 473352 {
		t.Errorf("bucket should not change within the hour, got %d", got)
	}
	if got := HourBucket(time.UnixMilli(-1)); got != -1 {
		t.Errorf("HourBucket(-1ms) = %d, want -1", got)
	}
}
