// Package sequence issues human-facing job numbers of the form RJ<year>-<NNNN>.
//
// Numbers restart at 1 every calendar year. The counter itself lives in the
// store and is advanced inside the transaction that inserts the job, so a
// rolled back creation never consumes a number.
package sequence

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const prefix = "RJ"

// Counter advances the per-year counter and returns the new value. It must
// be called on a transaction-scoped handle.
type Counter interface {
	NextJobSequence(ctx context.Context, year int) (int, error)
}

type Generator struct {
	now func() time.Time
}

func NewGenerator(now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{now: now}
}

func (g *Generator) Year() int {
	return g.now().Year()
}

func (g *Generator) Next(ctx context.Context, c Counter) (string, error) {
	year := g.Year()
	seq, err := c.NextJobSequence(ctx, year)
	if err != nil {
		return "", err
	}
	if seq < 1 {
		return "", fmt.Errorf("sequence: counter returned %d for %d", seq, year)
	}
	return Format(year, seq), nil
}

func Prefix(year int) string {
	return fmt.Sprintf("%s%d-", prefix, year)
}

func Format(year, seq int) string {
	return fmt.Sprintf("%s%04d", Prefix(year), seq)
}

func Parse(number string) (year, seq int, err error) {
	rest, ok := strings.CutPrefix(number, prefix)
	if !ok {
		return 0, 0, fmt.Errorf("sequence: %q lacks %s prefix", number, prefix)
	}
	y, s, ok := strings.Cut(rest, "-")
	if !ok {
		return 0, 0, fmt.Errorf("sequence: %q lacks year separator", number)
	}
	if year, err = strconv.Atoi(y); err != nil || len(y) != 4 {
		return 0, 0, fmt.Errorf("sequence: bad year in %q", number)
	}
	if seq, err = strconv.Atoi(s); err != nil || seq < 1 || len(s) < 4 {
		return 0, 0, fmt.Errorf("sequence: bad suffix in %q", number)
	}
	return year, seq, nil
}

// MaxForYear returns the highest suffix among numbers issued in year, or 0.
// Numbers from other years and malformed numbers are ignored. Suffixes are
// compared numerically, so RJ2026-10000 ranks above RJ2026-9999.
func MaxForYear(numbers []string, year int) int {
	highest := 0
	for _, n := range numbers {
		y, s, err := Parse(n)
		if err != nil || y != year {
			continue
		}
		if s > highest {
			highest = s
		}
	}
	return highest
}
