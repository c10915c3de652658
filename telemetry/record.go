// Package telemetry records the per-step trap series and persists it for offline analysis.
package telemetry

import (
	"database/sql/driver"
	"fmt"
)

// Flag is a boolean that serializes as 0/1.
type Flag bool

// MarshalCSV implements gocsv.TypeMarshaller.
func (f Flag) MarshalCSV() (string, error) {
	if f {
		return "1", nil
	}
	return "0", nil
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller.
func (f *Flag) UnmarshalCSV(s string) error {
	switch s {
	case "1":
		*f = true
	case "0":
		*f = false
	default:
		return fmt.Errorf("invalid flag %q", s)
	}
	return nil
}

// Value implements driver.Valuer so flags are stored as INTEGER.
func (f Flag) Value() (driver.Value, error) {
	if f {
		return int64(1), nil
	}
	return int64(0), nil
}

// Scan implements sql.Scanner.
func (f *Flag) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		*f = v != 0
	case bool:
		*f = Flag(v)
	case nil:
		*f = false
	default:
		return fmt.Errorf("cannot scan %T into Flag", src)
	}
	return nil
}

// Record is one step of the trap series. Field order is the file column order.
type Record struct {
	Step       int     `csv:"step" db:"step"`
	Trapped    Flag    `csv:"trapped" db:"trapped"`
	Cumulative int     `csv:"cumulative" db:"cumulative"`
	X          float64 `csv:"x" db:"x"`
	Y          float64 `csv:"y" db:"y"`
}
