// Package etl turns survey spreadsheets into frequency tables and writes the
// JSON summary the insight agents read.
package etl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/gofrs/flock"
)

// Row is one answer value with its frequency
type Row struct {
	Value   string  `json:"value"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// Table is an ordered frequency table
type Table []Row

// Result is the survey summary
type Result struct {
	Respondents int                         `json:"respondents"`
	Simple      map[string]Table            `json:"simple"`
	Multi       map[string]Table            `json:"multi"`
	Matrix      map[string]map[string]Table `json:"matrix"`
	Scores      map[string]map[string]Table `json:"scores"`
	Logs        []string                    `json:"logs"`

	// JSON is the serialized summary as written to disk
	JSON string `json:"-"`
}

// Runner produces a Result from a spreadsheet
type Runner interface {
	Run(ctx context.Context, xlsxPath string) (*Result, error)
}

// ErrNoData means the spreadsheet had no header or no answers
var ErrNoData = errors.New("spreadsheet has no survey data")

// NewResult returns an empty result with every map allocated
func NewResult() *Result {
	return &Result{
		Simple: make(map[string]Table),
		Multi:  make(map[string]Table),
		Matrix: make(map[string]map[string]Table),
		Scores: make(map[string]map[string]Table),
	}
}

// Logf appends a log line
func (r *Result) Logf(format string, args ...any) {
	r.Logs = append(r.Logs, fmt.Sprintf(format, args...))
}

// Questions returns the number of questions across all groups
func (r *Result) Questions() int {
	return len(r.Simple) + len(r.Multi) + len(r.Matrix) + len(r.Scores)
}

// WriteSummary writes r as indented JSON to path under an exclusive file lock
// and stores the text in r.JSON.
func WriteSummary(ctx context.Context, path string, r *Result) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating summary directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquire summary lock: %w", err)
	}
	if !ok {
		return errors.New("summary file is locked by another process")
	}
	defer func() { _ = lock.Unlock() }()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing summary: %w", err)
	}

	r.JSON = string(data)
	return nil
}

// LoadSummary reads a summary written by WriteSummary or an external ETL command
func LoadSummary(ctx context.Context, path string) (*Result, error) {
	lock := flock.New(path + ".lock")
	ok, err := lock.TryRLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("acquire summary lock: %w", err)
	}
	if ok {
		defer func() { _ = lock.Unlock() }()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading summary: %w", err)
	}

	r := NewResult()
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("decoding summary: %w", err)
	}
	r.JSON = string(data)
	return r, nil
}

// counter accumulates value frequencies
type counter struct {
	counts map[string]int
	order  []string
	total  int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(value string) {
	if _, ok := c.counts[value]; !ok {
		c.order = append(c.order, value)
	}
	c.counts[value]++
	c.total++
}

// table sorts by count desc, then first appearance. base is the percentage denominator.
func (c *counter) table(base int) Table {
	t := make(Table, 0, len(c.order))
	for _, v := range c.order {
		t = append(t, Row{Value: v, Count: c.counts[v], Percent: percent(c.counts[v], base)})
	}
	sort.SliceStable(t, func(i, j int) bool { return t[i].Count > t[j].Count })
	return t
}

// scoreTable sorts numerically by score
func (c *counter) scoreTable(base int) Table {
	t := c.table(base)
	sort.SliceStable(t, func(i, j int) bool {
		a, _ := strconv.ParseFloat(t[i].Value, 64)
		b, _ := strconv.ParseFloat(t[j].Value, 64)
		return a < b
	})
	return t
}

func percent(count, base int) float64 {
	if base == 0 {
		return 0
	}
	return math.Round(float64(count)/float64(base)*1000) / 10
}
