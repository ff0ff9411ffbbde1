package record

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/milk9111/boxfall/physics"
	"github.com/milk9111/boxfall/protocol"
)

type stepClock struct {
	t time.Time
}

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(16 * time.Millisecond)
	return c.t
}

func TestRecordRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	clock := &stepClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	rec, err := NewRecorder(&buf, clock, nil)
	if err != nil {
		t.Fatal(err)
	}

	frames := []protocol.Frame{
		{Objects: nil, CurrFPS: 500, AllFPS: 50},
		{Objects: []physics.Pose{{1, 2, 3, 0, 0, 0, 1}}, CurrFPS: 61, AllFPS: 60},
		{Objects: []physics.Pose{{0, 0, 0, 0, 0, 0, 1}, {4, 5, 6, 0, 0, 0, 1}}, CurrFPS: 59, AllFPS: 60},
	}
	for _, f := range frames {
		if err := rec.Send(f); err != nil {
			t.Fatal(err)
		}
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}
	if rec.Written() != len(frames) {
		t.Fatalf("Written() = %d, want %d", rec.Written(), len(frames))
	}
	if err := rec.Send(frames[0]); !errors.Is(err, ErrClosed) {
		t.Fatalf("Send after Close = %v, want ErrClosed", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	got, err := r.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(frames) {
		t.Fatalf("read %d entries, want %d", len(got), len(frames))
	}
	prev := time.Time{}
	for i, e := range got {
		if !e.At.After(prev) {
			t.Fatalf("entry %d time %v not after %v", i, e.At, prev)
		}
		prev = e.At
		if e.CurrFPS != frames[i].CurrFPS || e.AllFPS != frames[i].AllFPS || len(e.Objects) != len(frames[i].Objects) {
			t.Fatalf("entry %d = %+v, want %+v", i, e.Frame, frames[i])
		}
		for j := range e.Objects {
			if e.Objects[j] != frames[i].Objects[j] {
				t.Fatalf("entry %d object %d = %v", i, j, e.Objects[j])
			}
		}
	}
	if got[0].Objects == nil {
		t.Fatalf("empty frame should read back as an empty list")
	}
}

func TestCreateAndOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "run.jsonl.zst")
	rec, err := Create(path, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		if err := rec.Send(protocol.Frame{CurrFPS: i + 1, AllFPS: i + 1}); err != nil {
			t.Fatal(err)
		}
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	for i := 0; i < 10; i++ {
		e, err := r.Next()
		if err != nil {
			t.Fatalf("entry %d: %v", i, err)
		}
		if e.CurrFPS != i+1 {
			t.Fatalf("entry %d currFPS = %d", i, e.CurrFPS)
		}
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("want EOF, got %v", err)
	}
}

func TestReaderReportsBadLines(t *testing.T) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = enc.Write([]byte(`{"at":"2024-05-01T12:00:00Z","objects":[],"currFPS":1,"allFPS":1}` + "\n\nnot json\n"))
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if _, err := r.Next(); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Next(); err == nil {
		t.Fatalf("expected an error for the bad line")
	}
}

func TestOpenMissing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.zst")); err == nil {
		t.Fatalf("expected error")
	}
}
