package record

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/milk9111/boxfall/physics"
	"github.com/milk9111/boxfall/protocol"
	"github.com/milk9111/boxfall/sim"
)

// DefaultBacklog is how many frames may wait for the disk before the
// recorder starts dropping them.
const DefaultBacklog = 256

// maxLine bounds a single recorded frame.
const maxLine = 64 * 1024 * 1024

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("record: recorder closed")

// Entry is one recorded line.
type Entry struct {
	At time.Time `json:"at"`
	protocol.Frame
}

// Recorder is a sim.Sink that appends every frame to a compressed stream.
// Frames are written by a background goroutine; Send never waits for I/O.
type Recorder struct {
	clock sim.Clock
	log   *slog.Logger

	file io.Closer
	enc  *zstd.Encoder
	w    *bufio.Writer

	mu      sync.RWMutex
	closed  bool
	queue   chan Entry
	done    chan struct{}
	err     error
	written atomic.Int64
}

var _ sim.Sink = (*Recorder)(nil)

// Create opens path for writing, creating parent directories, and records to
// it.
func Create(path string, clock sim.Clock, logger *slog.Logger) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("record: create %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("record: create %s: %w", path, err)
	}
	r, err := NewRecorder(f, clock, logger)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.file = f
	return r, nil
}

// NewRecorder records to w. Close does not close w.
func NewRecorder(w io.Writer, clock sim.Clock, logger *slog.Logger) (*Recorder, error) {
	if clock == nil {
		clock = sim.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("record: zstd writer: %w", err)
	}
	r := &Recorder{
		clock: clock,
		log:   logger.With("component", "record"),
		enc:   enc,
		w:     bufio.NewWriterSize(enc, 128*1024),
		queue: make(chan Entry, DefaultBacklog),
		done:  make(chan struct{}),
	}
	go r.run()
	return r, nil
}

// Send queues f with the current time.
func (r *Recorder) Send(f protocol.Frame) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}
	select {
	case r.queue <- Entry{At: r.clock.Now(), Frame: f}:
		return nil
	default:
		return fmt.Errorf("record: %w", sim.ErrSinkFull)
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.queue {
		if r.err != nil {
			continue
		}
		if e.Objects == nil {
			e.Objects = []physics.Pose{}
		}
		b, err := json.Marshal(e)
		if err == nil {
			_, err = r.w.Write(b)
		}
		if err == nil {
			err = r.w.WriteByte('\n')
		}
		if err != nil {
			r.err = fmt.Errorf("record: write: %w", err)
			r.log.Error("recording stopped", "err", err)
			continue
		}
		r.written.Add(1)
	}
}

// Close writes out every queued frame and finishes the zstd stream.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done

	errs := []error{r.err}
	if err := r.w.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("record: flush: %w", err))
	}
	if err := r.enc.Close(); err != nil {
		errs = append(errs, fmt.Errorf("record: close zstd: %w", err))
	}
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("record: close file: %w", err))
		}
	}
	r.log.Info("recording closed", "frames", r.written.Load())
	return errors.Join(errs...)
}

// Written returns how many frames have been written so far.
func (r *Recorder) Written() int {
	return int(r.written.Load())
}

// Reader iterates the entries of a recording.
type Reader struct {
	file io.Closer
	dec  *zstd.Decoder
	sc   *bufio.Scanner
	line int
}

// Open opens a recording file.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("record: open %s: %w", path, err)
	}
	r, err := NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.file = f
	return r, nil
}

// NewReader reads a recording from src.
func NewReader(src io.Reader) (*Reader, error) {
	dec, err := zstd.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("record: zstd reader: %w", err)
	}
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	return &Reader{dec: dec, sc: sc}, nil
}

// Next returns the next entry, or io.EOF after the last one.
func (r *Reader) Next() (Entry, error) {
	for r.sc.Scan() {
		r.line++
		b := r.sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(b, &e); err != nil {
			return Entry{}, fmt.Errorf("record: line %d: %w", r.line, err)
		}
		return e, nil
	}
	if err := r.sc.Err(); err != nil {
		return Entry{}, fmt.Errorf("record: line %d: %w", r.line+1, err)
	}
	return Entry{}, io.EOF
}

// All reads every remaining entry.
func (r *Reader) All() ([]Entry, error) {
	var out []Entry
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
}

// Close releases the decoder and the file, if Open created it.
func (r *Reader) Close() error {
	r.dec.Close()
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}
