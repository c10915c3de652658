package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
)

// ExperimentLog accumulates one Record per step and writes the full series
// at the end of a run.
type ExperimentLog struct {
	records []Record
}

// NewExperimentLog creates an empty log.
func NewExperimentLog() *ExperimentLog {
	return &ExperimentLog{}
}

// Append adds the record for one step. Steps arrive in order, once each.
func (l *ExperimentLog) Append(step int, trapped bool, cumulative int, x, y float64) {
	l.records = append(l.records, Record{
		Step:       step,
		Trapped:    Flag(trapped),
		Cumulative: cumulative,
		X:          x,
		Y:          y,
	})
}

// Len returns the number of records.
func (l *ExperimentLog) Len() int {
	return len(l.records)
}

// Records returns the accumulated records in step order.
// The slice is shared with the log and must not be modified.
func (l *ExperimentLog) Records() []Record {
	return l.records
}

// Flush writes every record as a headerless CSV line
// (step,trapped,cumulative,x,y) to path.
//
// The series is written to a temporary file in the destination directory
// and renamed into place, so path either holds the complete series or is
// left as it was and an error is returned.
func (l *ExperimentLog) Flush(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("opening output %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if len(l.records) > 0 {
		if err := gocsv.MarshalWithoutHeaders(l.records, tmp); err != nil {
			tmp.Close()
			return fmt.Errorf("writing output %s: %w", path, err)
		}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing output %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing output %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("setting output mode %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replacing output %s: %w", path, err)
	}

	return nil
}
