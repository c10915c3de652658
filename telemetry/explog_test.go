package telemetry

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// readSeries parses a series file back into records without going through gocsv.
func readSeries(t *testing.T, path string) []Record {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open series: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse series: %v", err)
	}

	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		if len(row) != 5 {
			t.Fatalf("line %d has %d fields, want 5", i, len(row))
		}
		step, err1 := strconv.Atoi(row[0])
		cum, err2 := strconv.Atoi(row[2])
		x, err3 := strconv.ParseFloat(row[3], 64)
		y, err4 := strconv.ParseFloat(row[4], 64)
		for _, err := range []error{err1, err2, err3, err4} {
			if err != nil {
				t.Fatalf("line %d: %v", i, err)
			}
		}
		var flag Flag
		if err := flag.UnmarshalCSV(row[1]); err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		records = append(records, Record{Step: step, Trapped: flag, Cumulative: cum, X: x, Y: y})
	}
	return records
}

func TestFlushRoundTrip(t *testing.T) {
	log := NewExperimentLog()
	want := []Record{
		{Step: 0, Trapped: false, Cumulative: 0, X: 0.1, Y: -2.5},
		{Step: 1, Trapped: true, Cumulative: 1, X: 1.0 / 3.0, Y: 1e-9},
		{Step: 2, Trapped: true, Cumulative: 2, X: -123456.789, Y: 0},
		{Step: 3, Trapped: false, Cumulative: 2, X: 3, Y: 4},
	}
	for _, r := range want {
		log.Append(r.Step, bool(r.Trapped), r.Cumulative, r.X, r.Y)
	}

	path := filepath.Join(t.TempDir(), "series.csv")
	if err := log.Flush(path); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	got := readSeries(t, path)
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestFlushFormat(t *testing.T) {
	log := NewExperimentLog()
	log.Append(0, false, 0, 1.5, -0.25)
	log.Append(1, true, 1, 2, 3)

	path := filepath.Join(t.TempDir(), "series.csv")
	if err := log.Flush(path); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "0,0,0,1.5,-0.25\n1,1,1,2,3\n"
	if string(data) != want {
		t.Errorf("file = %q, want %q", data, want)
	}
}

func TestFlushIdempotent(t *testing.T) {
	log := NewExperimentLog()
	for i := 0; i < 20; i++ {
		log.Append(i, i%3 == 0, i/3, float64(i)*0.1, float64(-i))
	}

	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	if err := log.Flush(a); err != nil {
		t.Fatal(err)
	}
	first, _ := os.ReadFile(a)
	if err := log.Flush(a); err != nil {
		t.Fatal(err)
	}
	second, _ := os.ReadFile(a)

	if !bytes.Equal(first, second) {
		t.Error("flushing twice produced different files")
	}
}

func TestFlushLineCountMatchesAppends(t *testing.T) {
	log := NewExperimentLog()
	for i := 0; i < 50; i++ {
		log.Append(i, false, 0, float64(i), 0)
	}

	path := filepath.Join(t.TempDir(), "series.csv")
	if err := log.Flush(path); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if n := strings.Count(string(data), "\n"); n != 50 {
		t.Errorf("file has %d lines, want 50", n)
	}
	if log.Len() != 50 {
		t.Errorf("Len() = %d, want 50", log.Len())
	}
}

func TestFlushEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	if err := NewExperimentLog().Flush(path); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("empty series not written: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("empty series has size %d", info.Size())
	}
}

func TestFlushUnwritableDestination(t *testing.T) {
	log := NewExperimentLog()
	log.Append(0, false, 0, 0, 0)

	path := filepath.Join(t.TempDir(), "missing", "dir", "series.csv")
	if err := log.Flush(path); err == nil {
		t.Fatal("expected error for unwritable destination")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("failed flush must not leave a file behind")
	}
}

func TestFlushFailureKeepsPreviousFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "series.csv")
	if err := os.WriteFile(path, []byte("previous\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	// Read-only directory: the temporary file cannot be created
	if err := os.Chmod(dir, 0500); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(dir, 0755)

	log := NewExperimentLog()
	log.Append(0, true, 1, 0, 0)
	if err := log.Flush(path); err == nil {
		t.Fatal("expected error writing into read-only directory")
	}

	data, _ := os.ReadFile(path)
	if string(data) != "previous\n" {
		t.Errorf("previous file was modified: %q", data)
	}
}

func TestFlagUnmarshalRejectsGarbage(t *testing.T) {
	var f Flag
	if err := f.UnmarshalCSV("true"); err == nil {
		t.Error("expected error for non 0/1 flag")
	}
}
