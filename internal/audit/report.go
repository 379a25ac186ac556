package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/rpattn/shopsync/internal/domain"
)

// ResultsPath returns the sibling artifact path for input, e.g.
// data/variants.csv -> data/variants-import-results.json.
func ResultsPath(input, suffix string) string {
	dir := filepath.Dir(input)
	base := filepath.Base(input)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, fmt.Sprintf("%s-%s", base, suffix))
}

// WriteReport persists report as indented JSON, replacing path atomically.
func WriteReport(path string, report domain.Report) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure results directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".results-*.json")
	if err != nil {
		return fmt.Errorf("create results file: %w", err)
	}
	tmpPath := tmp.Name()
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode results: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close results file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("promote results file: %w", err)
	}
	return nil
}

// Journal appends one JSON line per record as results are produced, so a
// run that dies midway still leaves its progress on disk.
type Journal struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// OpenJournal creates (or truncates) the journal at path.
func OpenJournal(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{f: f, enc: json.NewEncoder(f)}, nil
}

// Record appends result to the journal.
func (j *Journal) Record(result domain.RecordResult) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(result); err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}

// Close flushes and closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.f.Sync(); err != nil {
		_ = j.f.Close()
		return err
	}
	return j.f.Close()
}

// PrintSummary writes the human readable summary block.
func PrintSummary(w io.Writer, report domain.Report) {
	mode := "live"
	if report.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(w, "\n%s summary (%s)\n", report.Operation, mode)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  run\t%s\n", report.RunID)
	if report.Source != "" {
		fmt.Fprintf(tw, "  source\t%s\n", report.Source)
	}
	fmt.Fprintf(tw, "  success\t%d\n", report.Success)
	fmt.Fprintf(tw, "  failed\t%d\n", report.Failed)
	fmt.Fprintf(tw, "  skipped\t%d\n", report.Skipped)
	if report.Dropped > 0 {
		fmt.Fprintf(tw, "  dropped lines\t%d\n", report.Dropped)
	}
	fmt.Fprintf(tw, "  duration\t%s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	_ = tw.Flush()

	if report.Failed > 0 {
		fmt.Fprintln(w, "\nfailures:")
		for _, result := range report.Results {
			if result.Status == domain.RecordStatusFailed {
				fmt.Fprintf(w, "  %s: %s\n", result.ID, result.Error)
			}
		}
	}
}
