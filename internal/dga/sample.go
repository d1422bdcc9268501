package dga

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sample is a historical oil sample: a gas reading plus the metadata that
// identifies where and when it was taken.
type Sample struct {
	Code           string     `json:"code"`
	TransformerID  string     `json:"transformer_id"`
	ExtractionDate time.Time  `json:"extraction_date"`
	Reading        GasReading `json:"reading"`
}

// Validate checks the sample invariants against the supplied clock.
func (s Sample) Validate(now time.Time) error {
	if strings.TrimSpace(s.Code) == "" {
		return errors.New("sample code cannot be empty")
	}
	if strings.TrimSpace(s.TransformerID) == "" {
		return fmt.Errorf("sample %s: transformer reference cannot be empty", s.Code)
	}
	if s.ExtractionDate.IsZero() {
		return fmt.Errorf("sample %s: extraction date is required", s.Code)
	}
	if s.ExtractionDate.After(now) {
		return fmt.Errorf("sample %s: extraction date %s is in the future", s.Code, s.ExtractionDate.Format("2006-01-02"))
	}
	if err := s.Reading.Validate(); err != nil {
		return fmt.Errorf("sample %s: %w", s.Code, err)
	}
	return nil
}
