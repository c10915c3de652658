package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/preytrap/trap"
)

func TestReplayTrajectory(t *testing.T) {
	var b strings.Builder
	b.WriteString("x,y\n")
	for i := 0; i < 30; i++ {
		b.WriteString("1.5,-2\n")
	}

	path := filepath.Join(t.TempDir(), "trajectory.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}

	samples, err := readTrajectory(path)
	if err != nil {
		t.Fatalf("readTrajectory: %v", err)
	}
	if len(samples) != 30 {
		t.Fatalf("got %d samples, want 30", len(samples))
	}
	if samples[0] != (Sample{X: 1.5, Y: -2}) {
		t.Errorf("first sample = %+v", samples[0])
	}

	log := replay(samples, &trap.Detector{Window: 10, Size: 0.1})
	records := log.Records()
	for i, r := range records {
		wantTrapped := i >= 10
		if bool(r.Trapped) != wantTrapped {
			t.Errorf("step %d: trapped = %v, want %v", i, r.Trapped, wantTrapped)
		}
	}
	if got := records[len(records)-1].Cumulative; got != 20 {
		t.Errorf("final cumulative = %d, want 20", got)
	}
}

func TestReadTrajectoryMissingFile(t *testing.T) {
	if _, err := readTrajectory(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCheckParams(t *testing.T) {
	tests := []struct {
		window  int
		size    float64
		wantErr bool
	}{
		{window: 100, size: 0.1},
		{window: 1, size: 5},
		{window: 0, size: 0.1, wantErr: true},
		{window: -5, size: 0.1, wantErr: true},
		{window: 10, size: 0, wantErr: true},
	}
	for _, tt := range tests {
		err := checkParams(tt.window, tt.size)
		if (err != nil) != tt.wantErr {
			t.Errorf("checkParams(%d, %g) error = %v, wantErr %v", tt.window, tt.size, err, tt.wantErr)
		}
	}
}

func TestReplayNonPositiveWindowDoesNotPanic(t *testing.T) {
	samples := []Sample{{X: 1, Y: 1}, {X: 1, Y: 1}}
	for _, window := range []int{0, -5} {
		log := replay(samples, &trap.Detector{Window: window, Size: 0.1})
		for i, r := range log.Records() {
			if r.Trapped || r.Cumulative != 0 {
				t.Errorf("window %d, step %d: %+v, want untrapped", window, i, r)
			}
		}
	}
}
