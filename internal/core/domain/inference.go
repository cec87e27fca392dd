package domain

import (
	"fmt"
	"math"
)

// Storage type names produced by inference.
const (
	TypeTinyInt   = "TINYINT"
	TypeSmallInt  = "SMALLINT"
	TypeInt       = "INT"
	TypeBigInt    = "BIGINT"
	TypeFloat     = "FLOAT"
	TypeDouble    = "DOUBLE"
	TypeBoolean   = "BOOLEAN"
	TypeDatetime  = "DATETIME"
	TypeTimestamp = "TIMESTAMP"
	TypeText      = "TEXT"
	TypeLongText  = "LONGTEXT"
)

const (
	// varcharCeiling is the longest observed text kept in VARCHAR storage.
	varcharCeiling = 255
	// longTextAvgLength switches unbounded text from TEXT to LONGTEXT.
	longTextAvgLength = 500
	emailLength       = 255
	phoneLength       = 20
)

type intTier struct {
	Type     string
	Min, Max int64
}

// integerLadder is ordered narrowest first.
var integerLadder = []intTier{
	{TypeTinyInt, math.MinInt8, math.MaxInt8},
	{TypeSmallInt, math.MinInt16, math.MaxInt16},
	{TypeInt, math.MinInt32, math.MaxInt32},
	{TypeBigInt, math.MinInt64, math.MaxInt64},
}

// InferOptions tunes storage type selection.
type InferOptions struct {
	// SinglePrecisionFloats maps float columns to FLOAT instead of DOUBLE.
	SinglePrecisionFloats bool
}

// Inference is the outcome of InferStorageType.
type Inference struct {
	StorageType string
	SpecialType SpecialType
	// Ambiguous is set when the profile had no evidence and the fallback was used.
	Ambiguous bool
}

// InferStorageType maps a profile to a storage type. It is a pure function of its
// inputs. A profile without any non-null value resolves to LONGTEXT and is marked
// ambiguous.
func InferStorageType(p ColumnProfile, opts InferOptions) Inference {
	st := p.SpecialType
	if st == "" {
		st = SpecialNone
	}

	switch st {
	case SpecialURL:
		return Inference{StorageType: TypeText, SpecialType: st}
	case SpecialEmail:
		return Inference{StorageType: varchar(emailLength), SpecialType: st}
	case SpecialPhone:
		return Inference{StorageType: varchar(phoneLength), SpecialType: st}
	case SpecialDatetime:
		return Inference{StorageType: TypeDatetime, SpecialType: st}
	}

	if p.NonNullCount() == 0 {
		return Inference{StorageType: TypeLongText, SpecialType: SpecialNone, Ambiguous: true}
	}

	switch p.Kind {
	case KindInteger:
		return Inference{StorageType: IntegerType(p.MinInt, p.MaxInt), SpecialType: st}
	case KindFloat:
		if opts.SinglePrecisionFloats {
			return Inference{StorageType: TypeFloat, SpecialType: st}
		}
		return Inference{StorageType: TypeDouble, SpecialType: st}
	case KindBoolean:
		return Inference{StorageType: TypeBoolean, SpecialType: st}
	case KindDatetime:
		return Inference{StorageType: TypeDatetime, SpecialType: SpecialDatetime}
	case KindText:
		return Inference{StorageType: TextType(p.MaxLength, p.AvgLength), SpecialType: st}
	default:
		return Inference{StorageType: TypeLongText, SpecialType: SpecialNone, Ambiguous: true}
	}
}

// IntegerType returns the narrowest integer tier bounding [lo, hi].
func IntegerType(lo, hi int64) string {
	for _, tier := range integerLadder {
		if lo >= tier.Min && hi <= tier.Max {
			return tier.Type
		}
	}
	return TypeBigInt
}

// TextType sizes character storage from observed lengths.
func TextType(maxLen int, avgLen float64) string {
	switch {
	case maxLen == 0:
		return varchar(varcharCeiling)
	case maxLen <= 50:
		return varchar(max(maxLen+10, 50))
	case maxLen <= varcharCeiling:
		return varchar(maxLen + 50)
	case avgLen > longTextAvgLength:
		return TypeLongText
	default:
		return TypeText
	}
}

// DefaultFor returns the implicit default of a NOT NULL plain column, or nil when
// the column should not carry one.
func DefaultFor(kind ValueKind, st SpecialType) any {
	if st != SpecialNone && st != "" {
		return nil
	}
	switch kind {
	case KindInteger, KindFloat:
		return float64(0)
	case KindBoolean:
		return false
	case KindText:
		return ""
	}
	return nil
}

func varchar(n int) string {
	return fmt.Sprintf("VARCHAR(%d)", n)
}
