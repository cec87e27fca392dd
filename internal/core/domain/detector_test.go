package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSpecialType(t *testing.T) {
	t.Parallel()
	for _, v := range SpecialTypeValues() {
		st, err := ParseSpecialType(v)
		require.NoError(t, err)
		assert.Equal(t, v, st.String())
		assert.NotEqual(t, "unknown", st.Description())
	}

	st, err := ParseSpecialType("")
	require.NoError(t, err)
	assert.Equal(t, SpecialNone, st)

	_, err = ParseSpecialType("ssn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ssn")
}

func TestSpecialType_Groups(t *testing.T) {
	t.Parallel()
	assert.True(t, SpecialURL.IsDataType())
	assert.True(t, SpecialPhone.IsDataType())
	assert.False(t, SpecialDatetime.IsDataType())
	assert.True(t, SpecialTimestamp.IsTimeType())
	assert.False(t, SpecialEmail.IsTimeType())
}

func TestPatterns(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		match func(string) bool
		value string
		want  bool
	}{
		{"https url", IsURL, "https://example.com/a?b=1", true},
		{"http url", IsURL, "http://x.io", true},
		{"ftp is not url", IsURL, "ftp://x.io", false},
		{"url with space", IsURL, "http://x.io/a b", false},
		{"email", IsEmail, "alice@example.com", true},
		{"email plus", IsEmail, "a.b+c@mail.example.org", true},
		{"email missing tld", IsEmail, "alice@example", false},
		{"phone", IsPhone, "13800001234", true},
		{"phone bad prefix", IsPhone, "12800001234", false},
		{"phone too long", IsPhone, "138000012345", false},
		{"date", IsDatetime, "2024-03-01", true},
		{"datetime", IsDatetime, "2024-03-01 12:30:00", true},
		{"rfc3339", IsDatetime, "2024-03-01T12:30:00Z", true},
		{"dotted date", IsDatetime, "01.03.2024", true},
		{"not a date", IsDatetime, "yesterday", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.match(tt.value))
		})
	}
}

func TestDetector_Detect(t *testing.T) {
	t.Parallel()
	det := NewDetector()

	tests := []struct {
		name   string
		values []any
		want   SpecialType
	}{
		{"all urls", []any{"https://a.com", "http://b.com/x"}, SpecialURL},
		{"all emails", []any{"a@b.com", "c@d.org"}, SpecialEmail},
		{"all phones", []any{"13800001234", "15912345678"}, SpecialPhone},
		{"integer phones", []any{int64(13800001234), int64(15912345678)}, SpecialPhone},
		{"all dates", []any{"2024-01-01", "2024-02-03 10:00:00"}, SpecialDatetime},
		{"mixed", []any{"https://a.com", "plain"}, SpecialNone},
		{"nulls ignored", []any{nil, "https://a.com", nil}, SpecialURL},
		{"only nulls", []any{nil, nil}, SpecialNone},
		{"empty", nil, SpecialNone},
		{"plain text", []any{"hello", "world"}, SpecialNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, det.Detect(tt.values))
		})
	}
}

func TestDetector_Threshold(t *testing.T) {
	t.Parallel()
	values := []any{"a@b.com", "c@d.com", "e@f.com", "g@h.com", "not-an-email"}

	assert.Equal(t, SpecialNone, NewDetector().Detect(values))
	assert.Equal(t, SpecialEmail, Detector{Threshold: 0.75}.Detect(values))
	assert.Equal(t, SpecialNone, Detector{Threshold: 0.9}.Detect(values))
}

func TestDetector_SampleSize(t *testing.T) {
	t.Parallel()
	values := []any{"https://a.com", "https://b.com", "not a url"}
	assert.Equal(t, SpecialURL, Detector{Threshold: 1, SampleSize: 2}.Detect(values))
	assert.Equal(t, SpecialNone, Detector{Threshold: 1, SampleSize: 3}.Detect(values))
}

func TestDetector_Priority(t *testing.T) {
	t.Parallel()
	// A URL embedding an email-like path still classifies as URL first.
	values := []any{"https://a.com/u@b.com"}
	assert.Equal(t, SpecialURL, NewDetector().Detect(values))
}

func TestDetector_TimeValues(t *testing.T) {
	t.Parallel()
	values := []any{time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	assert.Equal(t, SpecialDatetime, NewDetector().Detect(values))
}

func TestDetector_Validate(t *testing.T) {
	t.Parallel()
	assert.NoError(t, NewDetector().Validate())
	assert.Error(t, Detector{Threshold: 1.5}.Validate())
	assert.Error(t, Detector{Threshold: -0.1}.Validate())
	assert.Error(t, Detector{Threshold: 1, SampleSize: -1}.Validate())
}
