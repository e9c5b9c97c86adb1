package feather

import "testing"

func TestGenerateVelocityClamp(t *testing.T) {
	s := NewSampler(5)
	variations := []Range{{-100, 100}, {0, 0}, {-100, -100}, {100, 100}, {-30, 80}}
	for base := 0; base <= 200; base++ {
		for _, v := range variations {
			for i := 0; i < 20; i++ {
				got := GenerateVelocity(s, base, v)
				if got < 0 || got > 127 {
					t.Fatalf("GenerateVelocity(%d, %v) = %d, want in [0,127]", base, v, got)
				}
			}
		}
	}
}

func TestGenerateVelocityFixed(t *testing.T) {
	s := NewSampler(5)
	tests := []struct {
		base      int
		variation Range
		want      int
	}{
		{100, Range{0, 0}, 100},
		{100, Range{-100, -100}, 0},
		{100, Range{100, 100}, 127},
		{50, Range{50, 50}, 75},
	}
	for _, tt := range tests {
		if got := GenerateVelocity(s, tt.base, tt.variation); got != tt.want {
			t.Errorf("GenerateVelocity(%d, %v) = %d, want %d", tt.base, tt.variation, got, tt.want)
		}
	}
}

func TestOctaveDelta(t *testing.T) {
	s := NewSampler(9)
	tests := []struct {
		shift Range
		want  int
	}{
		{Range{1, 1}, 0},
		{Range{3, 3}, 24},
		{Range{0, 0}, -12},
		{Range{-3, -3}, -48},
	}
	for _, tt := range tests {
		if got := OctaveDelta(s, tt.shift); got != tt.want {
			t.Errorf("OctaveDelta(%v) = %d, want %d", tt.shift, got, tt.want)
		}
	}

	for i := 0; i < 1000; i++ {
		got := OctaveDelta(s, Range{-3, 3})
		if got%12 != 0 || got < -48 || got > 24 {
			t.Fatalf("OctaveDelta(-3..3) = %d", got)
		}
	}
}

func TestExtensionDelta(t *testing.T) {
	s := NewSampler(13)

	for i := 0; i < 200; i++ {
		if got := ExtensionDelta(s, Range{0, 0}, 0); got != 0 {
			t.Fatalf("empty set gave %d", got)
		}
	}

	set := ExtensionSet(0).Enable(4).Enable(7)
	seen := map[int]int{}
	for i := 0; i < 1000; i++ {
		seen[ExtensionDelta(s, Range{0, 0}, set)]++
	}
	if seen[4] == 0 || seen[7] == 0 {
		t.Errorf("gate 0 should apply extensions: %v", seen)
	}
	for d := range seen {
		if d != 0 && d != 4 && d != 7 {
			t.Errorf("unexpected delta %d", d)
		}
	}

	// gate 1 never passes: Float64 is < 1
	for i := 0; i < 1000; i++ {
		if got := ExtensionDelta(s, Range{1, 1}, set); got != 0 {
			t.Fatalf("gate 1 applied extension %d", got)
		}
	}
}

func TestRepairPitch(t *testing.T) {
	tests := []struct {
		name                     string
		pitch, octave, extension int
		want                     int
		clamped                  bool
	}{
		{"in window", 60, 12, 4, 76, false},
		{"drop octave keeps extension", 124, 36, 2, 126, false},
		{"drop octave then extension", 124, 36, 5, 124, false},
		{"low side drops octave", 30, -24, 0, 30, false},
		{"low side drops both", 30, -24, -3, 30, false},
		{"clamp high", 127, 0, 0, 126, true},
		{"clamp low", 20, -12, 0, 28, true},
		{"edges", 28, 0, 0, 28, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, clamped := RepairPitch(tt.pitch, tt.octave, tt.extension)
			if got != tt.want || clamped != tt.clamped {
				t.Errorf("RepairPitch(%d,%d,%d) = %d,%v, want %d,%v",
					tt.pitch, tt.octave, tt.extension, got, clamped, tt.want, tt.clamped)
			}
		})
	}
}

func TestPickChannel(t *testing.T) {
	s := NewSampler(1)
	if _, ok := PickChannel(s, nil); ok {
		t.Error("no channels should report false")
	}
	if ch, _ := PickChannel(s, []uint8{4}); ch != 4 {
		t.Errorf("single channel = %d, want 4", ch)
	}
	seen := map[uint8]bool{}
	for i := 0; i < 500; i++ {
		ch, _ := PickChannel(s, []uint8{0, 1, 2})
		seen[ch] = true
	}
	if len(seen) != 3 {
		t.Errorf("channels seen = %v, want all three", seen)
	}
}
