package telemetry

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
)

// JSONWriter emits one JSON object per frame, newline separated.
type JSONWriter struct {
	out io.Writer
}

// NewJSONStdoutWriter creates a JSONWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONWriter {
	return &JSONWriter{out: os.Stdout}
}

// NewJSONWriter creates a JSONWriter writing to w.
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{out: w}
}

func (w *JSONWriter) Write(f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.out.Write(data)
	return err
}

// FileWriter appends JSON-lines frames to a file.
type FileWriter struct {
	f  *os.File
	bw *bufio.Writer
	jw *JSONWriter
}

// NewFileWriter opens (or creates) path for appending frames.
func NewFileWriter(path string) (*FileWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriter(f)
	return &FileWriter{f: f, bw: bw, jw: NewJSONWriter(bw)}, nil
}

func (w *FileWriter) Write(f Frame) error {
	return w.jw.Write(f)
}

// Close flushes buffered frames and closes the file.
func (w *FileWriter) Close() error {
	if err := w.bw.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// MultiWriter fans each frame out to several writers.
type MultiWriter struct {
	writers []Writer
}

func NewMultiWriter(ws ...Writer) *MultiWriter {
	return &MultiWriter{writers: ws}
}

func (mw *MultiWriter) Write(f Frame) error {
	for _, w := range mw.writers {
		if err := w.Write(f); err != nil {
			return err
		}
	}
	return nil
}
