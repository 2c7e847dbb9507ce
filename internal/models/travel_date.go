package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TravelDateLayout is the wire and storage format of a travel date
const TravelDateLayout = "2006-01-02"

// TravelDate is a calendar date with no time-of-day or zone.
// The zero value is "no date". TravelDate is comparable and safe as a map key.
type TravelDate struct {
	year  int
	month time.Month
	day   int
}

// NewTravelDate builds a TravelDate, normalising out-of-range values the way time.Date does
func NewTravelDate(year int, month time.Month, day int) TravelDate {
	return TravelDateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// TravelDateOf returns the calendar date of t in t's own location
func TravelDateOf(t time.Time) TravelDate {
	y, m, d := t.Date()
	return TravelDate{year: y, month: m, day: d}
}

// ParseTravelDate parses a YYYY-MM-DD string
func ParseTravelDate(s string) (TravelDate, error) {
	t, err := time.Parse(TravelDateLayout, s)
	if err != nil {
		return TravelDate{}, fmt.Errorf("invalid travel date %q, expected YYYY-MM-DD", s)
	}
	return TravelDateOf(t), nil
}

// IsZero reports whether d is the zero date
func (d TravelDate) IsZero() bool {
	return d == TravelDate{}
}

// Time returns midnight UTC of the date
func (d TravelDate) Time() time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
}

// Before reports whether d is strictly earlier than other
func (d TravelDate) Before(other TravelDate) bool {
	return d.Time().Before(other.Time())
}

// AddDays returns the date n days after d
func (d TravelDate) AddDays(n int) TravelDate {
	return TravelDateOf(d.Time().AddDate(0, 0, n))
}

func (d TravelDate) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(TravelDateLayout)
}

// MarshalJSON implements json.Marshaler
func (d TravelDate) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (d *TravelDate) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = TravelDate{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("travel date must be a string: %w", err)
	}
	parsed, err := ParseTravelDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements the driver.Valuer interface
func (d TravelDate) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan implements the sql.Scanner interface
func (d *TravelDate) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = TravelDate{}
		return nil
	case time.Time:
		*d = TravelDateOf(v)
		return nil
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	default:
		return fmt.Errorf("cannot scan %T into TravelDate", src)
	}
}

func (d *TravelDate) scanString(s string) error {
	if len(s) > len(TravelDateLayout) {
		s = s[:len(TravelDateLayout)]
	}
	parsed, err := ParseTravelDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
