// Command replay summarizes a boxfalld recording and can export it as CSV.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/milk9111/boxfall/record"
)

func main() {
	var (
		in     = flag.String("in", "", "recording to read (.jsonl.zst)")
		csvOut = flag.String("csv", "", "write one row per frame to this CSV file")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if *in == "" && flag.NArg() > 0 {
		*in = flag.Arg(0)
	}
	if *in == "" {
		fmt.Fprintln(os.Stderr, "usage: replay [-csv out.csv] recording.jsonl.zst")
		os.Exit(2)
	}

	if err := run(*in, *csvOut); err != nil {
		logger.Error("replay failed", "err", err)
		os.Exit(1)
	}
}

func run(in, csvOut string) error {
	r, err := record.Open(in)
	if err != nil {
		return err
	}
	defer r.Close()

	entries, err := r.All()
	if err != nil {
		return err
	}

	s := record.Summarize(entries)
	fmt.Printf("frames:   %d over %s\n", s.Frames, s.Duration)
	if s.Frames > 0 {
		fmt.Printf("currFPS:  %s\n", s.CurrFPS)
		fmt.Printf("allFPS:   %s\n", s.AllFPS)
		fmt.Printf("bodies:   %s\n", s.Bodies)
		fmt.Printf("resizes:  %d\n", s.Resizes)
	}

	if csvOut == "" {
		return nil
	}
	f, err := os.Create(csvOut)
	if err != nil {
		return fmt.Errorf("replay: create %s: %w", csvOut, err)
	}
	if err := record.WriteCSV(f, entries); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
