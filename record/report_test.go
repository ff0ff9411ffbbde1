package record

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/milk9111/boxfall/physics"
	"github.com/milk9111/boxfall/protocol"
)

func entriesFor(fps []int, bodies []int) []Entry {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	out := make([]Entry, len(fps))
	for i := range fps {
		objs := make([]physics.Pose, bodies[i])
		for j := range objs {
			objs[j] = physics.Pose{0, float64(j), 0, 0, 0, 0, 1}
		}
		out[i] = Entry{
			At:    t0.Add(time.Duration(i) * 100 * time.Millisecond),
			Frame: protocol.Frame{Objects: objs, CurrFPS: fps[i], AllFPS: 60},
		}
	}
	return out
}

func TestSummarize(t *testing.T) {
	fps := make([]int, 100)
	bodies := make([]int, 100)
	for i := range fps {
		fps[i] = i + 1
		bodies[i] = 3
		if i >= 50 {
			bodies[i] = 5
		}
	}
	s := Summarize(entriesFor(fps, bodies))

	if s.Frames != 100 || s.Duration != 9900*time.Millisecond {
		t.Fatalf("frames/duration = %d/%s", s.Frames, s.Duration)
	}
	if math.Abs(s.CurrFPS.Mean-50.5) > 1e-9 {
		t.Fatalf("mean = %v, want 50.5", s.CurrFPS.Mean)
	}
	if s.CurrFPS.P5 != 5 || s.CurrFPS.P95 != 95 {
		t.Fatalf("p5/p95 = %v/%v, want 5/95", s.CurrFPS.P5, s.CurrFPS.P95)
	}
	if s.CurrFPS.Min != 1 || s.CurrFPS.Max != 100 {
		t.Fatalf("min/max = %v/%v", s.CurrFPS.Min, s.CurrFPS.Max)
	}
	if s.AllFPS.StdDev != 0 || s.AllFPS.Mean != 60 {
		t.Fatalf("allFPS = %+v", s.AllFPS)
	}
	if s.Bodies.Mean != 4 || s.Resizes != 1 {
		t.Fatalf("bodies mean = %v, resizes = %d", s.Bodies.Mean, s.Resizes)
	}
}

func TestSummarizeEdgeCases(t *testing.T) {
	if s := Summarize(nil); s.Frames != 0 {
		t.Fatalf("empty summary = %+v", s)
	}
	s := Summarize(entriesFor([]int{42}, []int{1}))
	if s.CurrFPS.Mean != 42 || s.CurrFPS.StdDev != 0 || s.CurrFPS.P95 != 42 {
		t.Fatalf("single-frame dist = %+v", s.CurrFPS)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	entries := entriesFor([]int{10, 20, 30}, []int{0, 2, 4})
	if err := WriteCSV(&buf, entries); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if lines[0] != "frame,t_ms,bodies,curr_fps,all_fps,mean_y" {
		t.Fatalf("header = %q", lines[0])
	}

	var rows []Row
	if err := gocsv.UnmarshalBytes(buf.Bytes(), &rows); err != nil {
		t.Fatal(err)
	}
	want := []Row{
		{Frame: 0, Millis: 0, Bodies: 0, CurrFPS: 10, AllFPS: 60, MeanY: 0},
		{Frame: 1, Millis: 100, Bodies: 2, CurrFPS: 20, AllFPS: 60, MeanY: 0.5},
		{Frame: 2, Millis: 200, Bodies: 4, CurrFPS: 30, AllFPS: 60, MeanY: 1.5},
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Fatalf("row %d = %+v, want %+v", i, rows[i], want[i])
		}
	}
}
