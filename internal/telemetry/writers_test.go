package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"otsim/internal/plant"
)

func frame(t float64) Frame {
	return Frame{
		T:        t,
		Real:     plant.State{"tank1.level_sensor": 5},
		Observed: plant.State{"tank1.level_sensor": 8.5},
		Control:  map[string]float64{"tank1.valve_in_target": 0.2},
	}
}

func TestJSONWriterEmitsOneLinePerFrame(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONWriter(&buf)
	if err := w.Write(frame(0)); err != nil {
		t.Fatal(err)
	}
	if err := w.Write(frame(0.1)); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	var f Frame
	if err := json.Unmarshal([]byte(lines[1]), &f); err != nil {
		t.Fatal(err)
	}
	if f.T != 0.1 || f.Observed["tank1.level_sensor"] != 8.5 {
		t.Errorf("decoded frame = %+v", f)
	}
}

func TestFileWriterAppendsAndFlushes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.jsonl")

	w, err := NewFileWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write(frame(0)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	// A second writer appends rather than truncating.
	w, err = NewFileWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write(frame(0.1)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
}

type failingWriter struct{ err error }

func (w failingWriter) Write(Frame) error { return w.err }

func TestMultiWriterFansOutAndStopsOnError(t *testing.T) {
	var a, b bytes.Buffer
	mw := NewMultiWriter(NewJSONWriter(&a), NewJSONWriter(&b))
	if err := mw.Write(frame(0)); err != nil {
		t.Fatal(err)
	}
	if a.Len() == 0 || b.Len() == 0 {
		t.Error("both writers should receive the frame")
	}

	sink := errors.New("sink failed")
	mw = NewMultiWriter(failingWriter{err: sink}, NewJSONWriter(&a))
	if err := mw.Write(frame(0)); !errors.Is(err, sink) {
		t.Errorf("err = %v, want sink failure", err)
	}
}
