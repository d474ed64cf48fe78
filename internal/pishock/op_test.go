package pishock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpCodes(t *testing.T) {
	cases := []struct {
		op      Op
		letter  string
		numeric int
	}{
		{Shock, "s", 0},
		{Vibration, "v", 1},
		{Beep, "b", 2},
	}
	for _, tc := range cases {
		t.Run(tc.op.String(), func(t *testing.T) {
			assert.Equal(t, tc.letter, tc.op.LetterCode())
			assert.Equal(t, tc.numeric, tc.op.NumericCode())
			assert.True(t, tc.op.Valid())
		})
	}
}

func TestParseOp(t *testing.T) {
	for raw, want := range map[string]Op{
		"Shock":     Shock,
		"shock":     Shock,
		"s":         Shock,
		"Vibration": Vibration,
		" v ":       Vibration,
		"BEEP":      Beep,
		"b":         Beep,
	} {
		got, err := ParseOp(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseOp("zap")
	assert.Error(t, err)
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("id_key")
	require.NoError(t, err)
	assert.Equal(t, MethodIDKey, m)

	m, err = ParseMethod("API_SHARECODE")
	require.NoError(t, err)
	assert.Equal(t, MethodAPIShareCode, m)

	_, err = ParseMethod("oauth")
	assert.Error(t, err)
}
