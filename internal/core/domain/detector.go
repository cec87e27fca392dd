package domain

import (
	"fmt"
	"time"
)

// DefaultSampleSize caps how many non-null values the detector inspects.
const DefaultSampleSize = 1000

// specialRule pairs a special type with its value predicate.
type specialRule struct {
	Type  SpecialType
	Match func(string) bool
}

// detectionPriority is evaluated in order; the first rule whose match fraction
// reaches the threshold wins.
var detectionPriority = []specialRule{
	{SpecialURL, IsURL},
	{SpecialEmail, IsEmail},
	{SpecialPhone, IsPhone},
	{SpecialDatetime, IsDatetime},
}

// Detector classifies a column sample as a special type.
type Detector struct {
	// Threshold is the fraction of sampled non-null values that must match,
	// in (0, 1]. Zero means 1.0.
	Threshold float64
	// SampleSize caps the number of values inspected. Zero means DefaultSampleSize.
	SampleSize int
}

// NewDetector returns a Detector requiring every sampled value to match.
func NewDetector() Detector {
	return Detector{Threshold: 1.0, SampleSize: DefaultSampleSize}
}

// Validate checks the detector settings.
func (d Detector) Validate() error {
	if d.Threshold < 0 || d.Threshold > 1 {
		return fmt.Errorf("special type threshold %v out of range (0, 1]", d.Threshold)
	}
	if d.SampleSize < 0 {
		return fmt.Errorf("sample size %d must not be negative", d.SampleSize)
	}
	return nil
}

// Detect returns the highest-priority special type whose pattern is satisfied by
// the required fraction of the sample, or SpecialNone. Null values are ignored.
func (d Detector) Detect(values []any) SpecialType {
	sample := d.sample(values)
	if len(sample) == 0 {
		return SpecialNone
	}

	threshold := d.Threshold
	if threshold == 0 {
		threshold = 1.0
	}
	required := threshold * float64(len(sample))

	for _, rule := range detectionPriority {
		matched := 0
		for _, v := range sample {
			if rule.Match(v) {
				matched++
			}
		}
		if matched > 0 && float64(matched) >= required {
			return rule.Type
		}
	}
	return SpecialNone
}

// sample renders up to SampleSize non-null values as strings.
func (d Detector) sample(values []any) []string {
	limit := d.SampleSize
	if limit <= 0 {
		limit = DefaultSampleSize
	}
	out := make([]string, 0, min(limit, len(values)))
	for _, v := range values {
		if len(out) == limit {
			break
		}
		s, ok := sampleString(v)
		if !ok {
			continue
		}
		out = append(out, s)
	}
	return out
}

func sampleString(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case time.Time:
		return val.Format(DatetimeStorageLayout), true
	case int64:
		return fmt.Sprintf("%d", val), true
	case int:
		return fmt.Sprintf("%d", val), true
	default:
		return fmt.Sprintf("%v", val), true
	}
}
