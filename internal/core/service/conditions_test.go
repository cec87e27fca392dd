package service

import (
	"testing"

	"github.com/guillermoBallester/tablesmith/internal/core/domain"
	"github.com/guillermoBallester/tablesmith/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConditions(t *testing.T) {
	t.Parallel()

	conds, err := ParseConditions([]string{"status=new|won", " city =Berlin", "note="})
	require.NoError(t, err)
	assert.Equal(t, []port.Condition{
		{Column: "status", Values: []any{"new", "won"}},
		{Column: "city", Values: []any{"Berlin"}},
		{Column: "note", Values: []any{""}},
	}, conds)

	for _, bad := range []string{"status", "=x", "  =x"} {
		_, err := ParseConditions([]string{bad})
		assert.ErrorIs(t, err, domain.ErrInvalidQuery, bad)
	}
}

func TestConditionsFromMap(t *testing.T) {
	t.Parallel()

	conds, err := ConditionsFromMap(map[string]any{
		"status": []any{"new", "won"},
		"score":  float64(7),
		"ratio":  0.5,
	})
	require.NoError(t, err)
	require.Len(t, conds, 3)

	// Ordered by column name.
	assert.Equal(t, "ratio", conds[0].Column)
	assert.Equal(t, []any{0.5}, conds[0].Values)
	assert.Equal(t, "score", conds[1].Column)
	assert.Equal(t, []any{int64(7)}, conds[1].Values)
	assert.Equal(t, "status", conds[2].Column)
	assert.Equal(t, []any{"new", "won"}, conds[2].Values)

	none, err := ConditionsFromMap(nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	tests := []struct {
		name string
		raw  any
		want string
	}{
		{"not an object", "score = 1", "must be an object"},
		{"empty list", map[string]any{"status": []any{}}, "empty value list"},
		{"nested object", map[string]any{"score": map[string]any{"gt": 1}}, "nested"},
		{"nested list", map[string]any{"score": []any{[]any{1}}}, "nested"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ConditionsFromMap(tt.raw)
			require.ErrorIs(t, err, domain.ErrInvalidQuery)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
