// Package store records telemetry frames and exports finished runs for
// offline plotting and inspection.
package store

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"sort"
	"strconv"
	"sync"

	"otsim/internal/telemetry"
)

// Recorder accumulates every frame of a run. It implements
// telemetry.Writer so it can sit behind a MultiWriter.
type Recorder struct {
	mu     sync.Mutex
	frames []telemetry.Frame
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Write(f telemetry.Frame) error {
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
	return nil
}

// Frames returns the recorded frames in emission order.
func (r *Recorder) Frames() []telemetry.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]telemetry.Frame, len(r.frames))
	copy(out, r.frames)
	return out
}

// Len reports the number of recorded frames.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// Export is the serialized form of one recorded run.
type Export struct {
	Model      string            `json:"model"`
	Method     string            `json:"method"`
	Dt         float64           `json:"dt"`
	FinalState string            `json:"final_state"`
	Frames     []telemetry.Frame `json:"frames"`
}

// ExportJSON writes the run to path as indented JSON.
func ExportJSON(path string, exp Export) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(exp)
}

// LoadJSON reads a run exported with ExportJSON.
func LoadJSON(path string) (*Export, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var exp Export
	if err := json.Unmarshal(data, &exp); err != nil {
		return nil, err
	}
	return &exp, nil
}

// ExportCSV writes one row per frame: t, then every real signal, every
// observed signal, and every control variable, columns sorted by name.
func ExportCSV(path string, frames []telemetry.Frame) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if len(frames) == 0 {
		return w.Error()
	}

	sigNames := frames[0].Real.Names()
	ctrlNames := make([]string, 0, len(frames[0].Control))
	for k := range frames[0].Control {
		ctrlNames = append(ctrlNames, k)
	}
	sort.Strings(ctrlNames)

	header := []string{"t"}
	for _, n := range sigNames {
		header = append(header, "real."+n)
	}
	for _, n := range sigNames {
		header = append(header, "observed."+n)
	}
	header = append(header, ctrlNames...)
	if err := w.Write(header); err != nil {
		return err
	}

	for _, fr := range frames {
		row := []string{fmtFloat(fr.T)}
		for _, n := range sigNames {
			row = append(row, fmtFloat(fr.Real[n]))
		}
		for _, n := range sigNames {
			row = append(row, fmtFloat(fr.Observed[n]))
		}
		for _, n := range ctrlNames {
			row = append(row, fmtFloat(fr.Control[n]))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
