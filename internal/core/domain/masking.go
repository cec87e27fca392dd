package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// MaskType is how a column is obscured in query and export output.
type MaskType string

const (
	MaskRedact  MaskType = "redact"
	MaskHash    MaskType = "hash"
	MaskPartial MaskType = "partial"
	MaskNull    MaskType = "null"
)

// Valid accepts the known strategies and "" (no mask).
func (m MaskType) Valid() bool {
	switch m {
	case MaskRedact, MaskHash, MaskPartial, MaskNull, "":
		return true
	}
	return false
}

// ApplyMask obscures one value. nil stays nil.
func ApplyMask(value any, m MaskType) any {
	if value == nil {
		return nil
	}
	switch m {
	case MaskRedact:
		return "***"
	case MaskHash:
		sum := sha256.Sum256([]byte(fmt.Sprintf("%v", value)))
		return hex.EncodeToString(sum[:])
	case MaskPartial:
		return keepLast(fmt.Sprintf("%v", value), 4)
	case MaskNull:
		return nil
	default:
		return value
	}
}

// keepLast replaces all but the last n runes with '*'.
func keepLast(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return "***" + s
	}
	for i := 0; i < len(runes)-n; i++ {
		runes[i] = '*'
	}
	return string(runes)
}

// PIIMasks returns partial masks for every phone and email column of schema.
func PIIMasks(schema *TableSchema) map[string]MaskType {
	masks := make(map[string]MaskType)
	for _, c := range schema.Columns {
		if c.SpecialType == SpecialPhone || c.SpecialType == SpecialEmail {
			masks[c.Name] = MaskPartial
		}
	}
	return masks
}

// MergeMasks overlays explicit on top of base. An explicit "" removes a base mask.
func MergeMasks(base, explicit map[string]MaskType) map[string]MaskType {
	out := make(map[string]MaskType, len(base)+len(explicit))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range explicit {
		if v == "" {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// MaskRows masks result rows in place.
func MaskRows(rows []map[string]any, masks map[string]MaskType) {
	if len(masks) == 0 {
		return
	}
	for _, row := range rows {
		for col, m := range masks {
			if v, ok := row[col]; ok {
				row[col] = ApplyMask(v, m)
			}
		}
	}
}
