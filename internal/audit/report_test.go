package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rpattn/shopsync/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() domain.Report {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	report := domain.NewReport("metafield import", "variants.csv", false, start)
	report.Add(domain.RecordResult{ID: "1", Row: 2, Status: domain.RecordStatusSuccess})
	report.Add(domain.RecordResult{ID: "2", Row: 3, Status: domain.RecordStatusFailed, Error: "Value is invalid"})
	report.Add(domain.RecordResult{ID: "3", Row: 4, Status: domain.RecordStatusSkipped})
	report.Dropped = 1
	report.Finish(start.Add(1500 * time.Millisecond))
	return report
}

func TestResultsPath(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "variants-import-results.json"), ResultsPath(filepath.Join("data", "variants.csv"), "import-results.json"))
	assert.Equal(t, "sheet-import-results.json", ResultsPath("sheet.xlsx", "import-results.json"))
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "variants-import-results.json")
	report := sampleReport()

	require.NoError(t, WriteReport(path, report))

	payload, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.EqualValues(t, 1, decoded["success"])
	assert.EqualValues(t, 1, decoded["failed"])
	assert.EqualValues(t, 1, decoded["skipped"])
	assert.EqualValues(t, 1, decoded["dropped"])
	assert.Equal(t, report.RunID.String(), decoded["runId"])
	assert.Len(t, decoded["results"], 3)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestJournalAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "variants-import-results.jsonl")
	journal, err := OpenJournal(path)
	require.NoError(t, err)

	for _, result := range sampleReport().Results {
		require.NoError(t, journal.Record(result))
	}
	require.NoError(t, journal.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []domain.RecordResult
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var result domain.RecordResult
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &result))
		lines = append(lines, result)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, lines, 3)
	assert.Equal(t, domain.RecordStatusFailed, lines[1].Status)
	assert.Equal(t, "Value is invalid", lines[1].Error)
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, sampleReport())

	out := buf.String()
	assert.Contains(t, out, "metafield import summary (live)")
	assert.Contains(t, out, "dropped lines")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "2: Value is invalid")
}
