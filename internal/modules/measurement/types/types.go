package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the only accepted external date format.
const DateLayout = "2006-01-02"

// Measurement is a validated data point. Time is the natural key.
type Measurement struct {
	Humidity    float64   `json:"humidity" db:"humidity"`
	Temperature float64   `json:"temperature" db:"temperature"`
	Time        time.Time `json:"time" db:"time"`
}

// Submission is the untrusted input shape accepted by /submit and MQTT.
type Submission struct {
	Humidity    float64 `json:"humidity"`
	Temperature float64 `json:"temperature"`
	Date        string  `json:"date"`
}

// UnmarshalJSON requires every field to be present and non-null, so a
// partial payload can never overwrite a stored day with zeros.
func (s *Submission) UnmarshalJSON(data []byte) error {
	var raw struct {
		Humidity    *float64 `json:"humidity"`
		Temperature *float64 `json:"temperature"`
		Date        *string  `json:"date"`
	}
	// the caller's DisallowUnknownFields does not reach into Unmarshalers
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch {
	case raw.Humidity == nil:
		return fmt.Errorf("%w %q", ErrMissingField, "humidity")
	case raw.Temperature == nil:
		return fmt.Errorf("%w %q", ErrMissingField, "temperature")
	case raw.Date == nil:
		return fmt.Errorf("%w %q", ErrMissingField, "date")
	}
	*s = Submission{Humidity: *raw.Humidity, Temperature: *raw.Temperature, Date: *raw.Date}
	return nil
}

// Validate reports whether humidity lies in [0, 100].
func (s Submission) Validate() bool {
	return s.Humidity >= 0 && s.Humidity <= 100
}

// ToMeasurement checks humidity first, then parses the date.
func (s Submission) ToMeasurement() (Measurement, error) {
	if !s.Validate() {
		return Measurement{}, ErrInvalidData
	}
	ts, err := ParseDate(s.Date)
	if err != nil {
		return Measurement{}, err
	}
	return Measurement{
		Humidity:    s.Humidity,
		Temperature: s.Temperature,
		Time:        ts,
	}, nil
}

// ParseDate accepts exactly YYYY-MM-DD and returns midnight of that day.
// UTC carries the zone-less calendar date.
func ParseDate(text string) (time.Time, error) {
	if !isDateShape(text) {
		return time.Time{}, &DateError{Input: text, Reason: "expected YYYY-MM-DD"}
	}
	ts, err := time.ParseInLocation(DateLayout, text, time.UTC)
	if err != nil {
		return time.Time{}, &DateError{Input: text, Err: err}
	}
	return ts, nil
}

// isDateShape checks NNNN-NN-NN; time.Parse does the calendar check.
func isDateShape(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	for i := 0; i < len(s); i++ {
		switch i {
		case 4, 7:
			if s[i] != '-' {
				return false
			}
		default:
			if s[i] < '0' || s[i] > '9' {
				return false
			}
		}
	}
	return true
}
