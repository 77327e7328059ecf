package telemetry

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// TraceWriter appends frames to a zstd-compressed JSON-lines file.
type TraceWriter struct {
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
	frames int
}

// CreateTrace creates (or truncates) a trace file.
func CreateTrace(path string) (*TraceWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating trace: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("creating trace encoder: %w", err)
	}
	return &TraceWriter{
		f:   f,
		enc: enc,
		w:   bufio.NewWriterSize(enc, 128*1024),
	}, nil
}

// WriteFrame appends one frame.
func (tw *TraceWriter) WriteFrame(frame *Frame) error {
	b, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if _, err := tw.w.Write(b); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if err := tw.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	tw.frames++
	return nil
}

// Frames returns the number of frames written.
func (tw *TraceWriter) Frames() int {
	return tw.frames
}

// Close flushes and closes the trace.
func (tw *TraceWriter) Close() error {
	var firstErr error
	if err := tw.w.Flush(); err != nil {
		firstErr = err
	}
	if err := tw.enc.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := tw.f.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		return fmt.Errorf("closing trace: %w", firstErr)
	}
	return nil
}

// TraceReader reads frames written by TraceWriter.
type TraceReader struct {
	f   *os.File
	dec *zstd.Decoder
	sc  *bufio.Scanner
}

// OpenTrace opens a trace file for reading.
func OpenTrace(path string) (*TraceReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trace: %w", err)
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("opening trace decoder: %w", err)
	}
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	return &TraceReader{f: f, dec: dec, sc: sc}, nil
}

// Next returns the next frame, or io.EOF after the last one.
func (tr *TraceReader) Next() (*Frame, error) {
	if !tr.sc.Scan() {
		if err := tr.sc.Err(); err != nil {
			return nil, fmt.Errorf("reading trace: %w", err)
		}
		return nil, io.EOF
	}
	var frame Frame
	if err := json.Unmarshal(tr.sc.Bytes(), &frame); err != nil {
		return nil, fmt.Errorf("unmarshal frame: %w", err)
	}
	return &frame, nil
}

// Close releases the decoder and the file.
func (tr *TraceReader) Close() error {
	tr.dec.Close()
	return tr.f.Close()
}

// Divergence describes the first frame at which two traces differ.
type Divergence struct {
	Index  int
	Colony string
	Tick   int32
	Reason string
}

func (d *Divergence) Error() string {
	return fmt.Sprintf("traces diverge at frame %d (colony %s, tick %d): %s", d.Index, d.Colony, d.Tick, d.Reason)
}

// CompareTraces reads two traces in lockstep and returns the number of
// identical frames. A mismatch is reported as a *Divergence error.
func CompareTraces(pathA, pathB string) (int, error) {
	a, err := OpenTrace(pathA)
	if err != nil {
		return 0, err
	}
	defer a.Close()
	b, err := OpenTrace(pathB)
	if err != nil {
		return 0, err
	}
	defer b.Close()

	for i := 0; ; i++ {
		fa, errA := a.Next()
		fb, errB := b.Next()
		endA, endB := errors.Is(errA, io.EOF), errors.Is(errB, io.EOF)
		switch {
		case endA && endB:
			return i, nil
		case errA != nil && !endA:
			return i, errA
		case errB != nil && !endB:
			return i, errB
		case endA || endB:
			return i, &Divergence{Index: i, Reason: "trace lengths differ"}
		}
		if !fa.Equal(fb) {
			return i, &Divergence{Index: i, Colony: fa.Colony, Tick: fa.Tick, Reason: "frame contents differ"}
		}
	}
}
