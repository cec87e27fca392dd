package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// SpecialType is the semantic classification layered on top of a column's storage type.
type SpecialType string

const (
	SpecialNone       SpecialType = "normal"
	SpecialPrimaryKey SpecialType = "primary_key"
	SpecialURL        SpecialType = "url"
	SpecialEmail      SpecialType = "email"
	SpecialPhone      SpecialType = "phone"
	SpecialDatetime   SpecialType = "datetime"
	SpecialTimestamp  SpecialType = "timestamp"
)

var allSpecialTypes = []SpecialType{
	SpecialNone,
	SpecialPrimaryKey,
	SpecialURL,
	SpecialEmail,
	SpecialPhone,
	SpecialDatetime,
	SpecialTimestamp,
}

var specialTypeDescriptions = map[SpecialType]string{
	SpecialNone:       "plain column, no special handling",
	SpecialPrimaryKey: "primary key, uniquely identifies a row",
	SpecialURL:        "web address",
	SpecialEmail:      "email address",
	SpecialPhone:      "mobile phone number",
	SpecialDatetime:   "date and time value",
	SpecialTimestamp:  "row creation or update time",
}

// ParseSpecialType converts a persisted string to a SpecialType.
// The empty string is read as SpecialNone.
func ParseSpecialType(s string) (SpecialType, error) {
	if s == "" {
		return SpecialNone, nil
	}
	st := SpecialType(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid special_type %q (allowed: %s)", s, strings.Join(SpecialTypeValues(), ", "))
	}
	return st, nil
}

// SpecialTypeValues lists every persisted special_type value.
func SpecialTypeValues() []string {
	out := make([]string, len(allSpecialTypes))
	for i, st := range allSpecialTypes {
		out[i] = string(st)
	}
	return out
}

func (s SpecialType) Valid() bool {
	_, ok := specialTypeDescriptions[s]
	return ok
}

func (s SpecialType) Description() string {
	if d, ok := specialTypeDescriptions[s]; ok {
		return d
	}
	return "unknown"
}

// IsDataType reports whether values of this type are validated against a pattern on load.
func (s SpecialType) IsDataType() bool {
	return s == SpecialURL || s == SpecialEmail || s == SpecialPhone
}

func (s SpecialType) IsTimeType() bool {
	return s == SpecialDatetime || s == SpecialTimestamp
}

func (s SpecialType) String() string { return string(s) }

var (
	urlPattern   = regexp.MustCompile(`^https?://\S+$`)
	emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	phonePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)
)

// Accepted layouts for datetime detection, most specific first.
var datetimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"02.01.2006 15:04:05",
	"02.01.2006",
}

// DatetimeStorageLayout is the text form datetime values are normalized to before insert.
const DatetimeStorageLayout = "2006-01-02 15:04:05"

func IsURL(s string) bool   { return urlPattern.MatchString(strings.TrimSpace(s)) }
func IsEmail(s string) bool { return emailPattern.MatchString(strings.TrimSpace(s)) }
func IsPhone(s string) bool { return phonePattern.MatchString(strings.TrimSpace(s)) }

// ParseDatetime tries every accepted layout and returns the first match.
func ParseDatetime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func IsDatetime(s string) bool {
	_, ok := ParseDatetime(s)
	return ok
}

// MatchesSpecialType reports whether a single value conforms to the pattern of st.
// Types without a pattern accept every value.
func MatchesSpecialType(st SpecialType, value string) bool {
	switch st {
	case SpecialURL:
		return IsURL(value)
	case SpecialEmail:
		return IsEmail(value)
	case SpecialPhone:
		return IsPhone(value)
	case SpecialDatetime:
		return IsDatetime(value)
	default:
		return true
	}
}
