package cleaning

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonth(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Month
		wantErr bool
	}{
		{name: "year-month", in: "2025-01", want: Month{2025, time.January}},
		{name: "first day", in: "2025-03-01", want: Month{2025, time.March}},
		{name: "mid month", in: "2025-03-17", want: Month{2025, time.March}},
		{name: "timestamp", in: "2024-12-31T10:00:00Z", want: Month{2024, time.December}},
		{name: "spaces", in: " 2025-02 ", want: Month{2025, time.February}},
		{name: "empty", in: "", wantErr: true},
		{name: "garbage", in: "january", wantErr: true},
		{name: "bad month", in: "2025-13", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMonth(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMonth)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMonth(t *testing.T) {
	m := NewMonth(2024, 13)
	assert.Equal(t, Month{2025, time.January}, m)
	assert.Equal(t, "2025-01-01", m.String())
	assert.Equal(t, Month{2024, time.December}, m.AddMonths(-1))
	assert.True(t, m.AddMonths(-1).Before(m))

	assert.Equal(t, "January 2025", m.Label(LangEnglish))
	assert.Equal(t, "ינואר 2025", m.Label(LangHebrew))
	assert.Equal(t, "ינואר", m.Name("fr"), "unknown languages fall back to Hebrew")

	jlm := time.FixedZone("IST", 2*60*60)
	assert.True(t, m.Contains(time.Date(2025, 1, 31, 23, 30, 0, 0, jlm)))
	assert.False(t, m.Contains(time.Date(2025, 2, 1, 0, 30, 0, 0, jlm)))
}

func TestMonth_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		M Month `json:"m"`
		Z Month `json:"z"`
	}{M: Month{2025, time.February}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"m": "2025-02-01", "z": null}`, string(data))

	var m Month
	require.NoError(t, json.Unmarshal([]byte(`"2025-02"`), &m))
	assert.Equal(t, Month{2025, time.February}, m)
	assert.ErrorIs(t, json.Unmarshal([]byte(`"02/2025"`), &m), ErrInvalidMonth)
	assert.Error(t, json.Unmarshal([]byte(`202502`), &m))
}

func TestMonth_Scan(t *testing.T) {
	var m Month
	require.NoError(t, m.Scan(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, Month{2025, time.April}, m)

	require.NoError(t, m.Scan([]byte("2025-05-01")))
	assert.Equal(t, Month{2025, time.May}, m)

	require.NoError(t, m.Scan(nil))
	assert.True(t, m.IsZero())

	assert.Error(t, m.Scan(42))

	v, err := Month{2025, time.June}.Value()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), v)
}
