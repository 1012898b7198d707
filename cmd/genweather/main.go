// Command genweather writes a synthetic daily weather history CSV in the
// layout the trainer reads. It is used to bootstrap a model when no real
// export is available and to produce reproducible fixtures.
//
// Usage:
//
//	go run ./cmd/genweather -out harareweather2.csv -start 2023-01-01 -days 730 -seed 42
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/couchcryptid/streetlight-predictor/internal/dataset"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output CSV path")
	start := flag.String("start", "2023-01-01", "first date (YYYY-MM-DD)")
	days := flag.Int("days", 730, "number of daily rows")
	seed := flag.Uint64("seed", 42, "random seed")
	name := flag.String("name", "Harare,Zimbabwe", "value written to the name column")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *days <= 0 {
		return fmt.Errorf("-days must be positive, got %d", *days)
	}
	first, err := time.Parse(time.DateOnly, *start)
	if err != nil {
		return fmt.Errorf("parsing -start: %w", err)
	}

	obs := dataset.Synthesize(first, *days, *seed)

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", *out, err)
	}
	w := bufio.NewWriter(f)
	if err := dataset.Write(w, *name, obs); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", *out, err)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", *out, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	log.Printf("wrote %d rows to %s", len(obs), *out)
	return nil
}
