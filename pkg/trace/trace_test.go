package trace

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/phi-robotics/motorlink/pkg/motor"
)

func TestRecorderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	r := NewRecorder(&buf)

	axes := []motor.AxisDiag{
		{Status: 0x0237, Target: 4000, Actual: 3998, ModeDisplay: 8, ServoEnabled: true},
		{Status: 0x0250, Target: 0, Actual: 17, ModeDisplay: 8},
	}
	r.ObserveCycle(0, 1000, axes)
	axes[0].Target = 4400
	r.ObserveCycle(1, 2000, axes)
	if err := r.Err(); err != nil {
		t.Fatalf("recorder error: %v", err)
	}

	frames, err := ReadAll(&buf)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(frames))
	}
	if frames[0].Cycle != 0 || frames[1].Cycle != 1 {
		t.Errorf("cycles = %d, %d", frames[0].Cycle, frames[1].Cycle)
	}
	if frames[1].TimeNs != 2000 {
		t.Errorf("time = %d", frames[1].TimeNs)
	}
	if len(frames[0].Axes) != 2 {
		t.Fatalf("axes = %d", len(frames[0].Axes))
	}
	if frames[0].Axes[0].Status != 0x0237 || !frames[0].Axes[0].Enabled {
		t.Errorf("axis 0 = %+v", frames[0].Axes[0])
	}
	if frames[1].Axes[0].Target != 4400 {
		t.Errorf("frame 1 target = %d, want 4400", frames[1].Axes[0].Target)
	}
	if frames[0].Axes[1].Actual != 17 {
		t.Errorf("axis 1 actual = %d", frames[0].Axes[1].Actual)
	}
}

func TestRecorderFileLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.trace")
	r, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	r.ObserveCycle(7, 42, []motor.AxisDiag{{Status: 0x27, Actual: 5}})
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	frames, err := ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(frames) != 1 || frames[0].Cycle != 7 {
		t.Errorf("frames = %+v", frames)
	}
}

func TestCreateBadPath(t *testing.T) {
	if _, err := Create("/no/such/dir/run.trace"); err == nil {
		t.Error("expected error for bad path")
	}
}
