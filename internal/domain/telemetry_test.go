package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDecimalKeepsReceivedDigits(t *testing.T) {
	cases := map[string]string{
		"72.34": "72.34",
		"0.420": "0.420",
		"72.0":  "72.0",
		"72":    "72",
		"-3.5":  "-3.5",
	}
	for in, want := range cases {
		d, err := decimal.NewFromString(in)
		require.NoError(t, err)
		assert.Equal(t, want, FormatDecimal(d), in)
	}
}

func TestMessageJSONPreservesDecimalText(t *testing.T) {
	rec := BufferRecord{
		ID:        "id-1",
		Timestamp: "2024-01-01T10:15:00Z",
		Message: Reading{
			MachineID:   "M01",
			Temperature: decimal.RequireFromString("72.34"),
			Vibration:   decimal.RequireFromString("0.420"),
			Timestamp:   "2024-01-01T10:15:00Z",
		}.Message(),
	}

	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"temperature":72.34`)
	assert.Contains(t, string(raw), `"vibration":0.420`)

	var back BufferRecord
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.Message.Complete())
	assert.Equal(t, "72.34", FormatDecimal(back.Message.Temperature.Decimal))
	assert.Equal(t, "0.420", FormatDecimal(back.Message.Vibration.Decimal))
}

func TestMessageMissingFieldsIsIncomplete(t *testing.T) {
	var m Message
	require.NoError(t, json.Unmarshal([]byte(`{"machine_id":"M01","temperature":70.1}`), &m))
	assert.False(t, m.Complete())
	assert.True(t, m.Temperature.Valid)
	assert.False(t, m.Vibration.Valid)
}

func TestParseTimestamp(t *testing.T) {
	z, err := ParseTimestamp("2024-01-01T10:15:00Z")
	require.NoError(t, err)
	offset, err := ParseTimestamp("2024-01-01T12:15:00+02:00")
	require.NoError(t, err)
	zoneless, err := ParseTimestamp("2024-01-01T10:15:00")
	require.NoError(t, err)

	assert.True(t, z.Equal(offset))
	assert.True(t, z.Equal(zoneless))

	_, err = ParseTimestamp("yesterday")
	assert.Error(t, err)
}
