package record

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/stat"
)

// Dist summarizes one series.
type Dist struct {
	Mean   float64
	StdDev float64
	P5     float64
	P95    float64
	Min    float64
	Max    float64
}

func (d Dist) String() string {
	return fmt.Sprintf("mean=%.2f sd=%.2f p5=%.2f p95=%.2f min=%.0f max=%.0f", d.Mean, d.StdDev, d.P5, d.P95, d.Min, d.Max)
}

// Summary describes a recording.
type Summary struct {
	Frames   int
	Duration time.Duration
	CurrFPS  Dist
	AllFPS   Dist
	Bodies   Dist
	// Resizes counts frames whose body count differs from the previous one.
	Resizes int
}

// Summarize computes distributions over entries.
func Summarize(entries []Entry) Summary {
	s := Summary{Frames: len(entries)}
	if len(entries) == 0 {
		return s
	}
	s.Duration = entries[len(entries)-1].At.Sub(entries[0].At)

	curr := make([]float64, len(entries))
	all := make([]float64, len(entries))
	bodies := make([]float64, len(entries))
	for i, e := range entries {
		curr[i] = float64(e.CurrFPS)
		all[i] = float64(e.AllFPS)
		bodies[i] = float64(len(e.Objects))
		if i > 0 && len(e.Objects) != len(entries[i-1].Objects) {
			s.Resizes++
		}
	}
	s.CurrFPS = dist(curr)
	s.AllFPS = dist(all)
	s.Bodies = dist(bodies)
	return s
}

func dist(x []float64) Dist {
	var d Dist
	d.Mean, d.StdDev = stat.MeanStdDev(x, nil)
	if len(x) < 2 {
		d.StdDev = 0
	}
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	d.P5 = stat.Quantile(0.05, stat.Empirical, sorted, nil)
	d.P95 = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	d.Min, d.Max = sorted[0], sorted[len(sorted)-1]
	return d
}

// Row is one CSV line per recorded frame.
type Row struct {
	Frame   int     `csv:"frame"`
	Millis  int64   `csv:"t_ms"`
	Bodies  int     `csv:"bodies"`
	CurrFPS int     `csv:"curr_fps"`
	AllFPS  int     `csv:"all_fps"`
	MeanY   float64 `csv:"mean_y"`
}

// Rows flattens entries, timing each frame from the first one.
func Rows(entries []Entry) []Row {
	rows := make([]Row, len(entries))
	for i, e := range entries {
		var sumY float64
		for _, p := range e.Objects {
			sumY += p[1]
		}
		meanY := 0.0
		if len(e.Objects) > 0 {
			meanY = sumY / float64(len(e.Objects))
		}
		rows[i] = Row{
			Frame:   i,
			Millis:  e.At.Sub(entries[0].At).Milliseconds(),
			Bodies:  len(e.Objects),
			CurrFPS: e.CurrFPS,
			AllFPS:  e.AllFPS,
			MeanY:   meanY,
		}
	}
	return rows
}

// WriteCSV writes Rows(entries) with a header line.
func WriteCSV(w io.Writer, entries []Entry) error {
	rows := Rows(entries)
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("record: write csv: %w", err)
	}
	return nil
}
