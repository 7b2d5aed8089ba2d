package ingest_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/insights/core/ingest"
)

func TestDateChain_Parse(t *testing.T) {
	now := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	chain := ingest.DefaultDateChain()

	tests := []struct {
		input      string
		wantStr    string
		wantValid  bool
		wantParser string
	}{
		{input: "45352", wantStr: "2024-03-01", wantValid: true, wantParser: "serial"},
		{input: "2024-03-01", wantStr: "2024-03-01", wantValid: true, wantParser: "native"},
		{input: "2024-03-01T09:30:00Z", wantStr: "2024-03-01", wantValid: true, wantParser: "native"},
		{input: "03/15/2024", wantStr: "2024-03-15", wantValid: true, wantParser: "native"},
		{input: "2024. 3. 5", wantStr: "2024-03-05", wantValid: true, wantParser: "loose"},
		{input: "제출일 24.11.30 오후", wantStr: "2024-11-30", wantValid: true, wantParser: "loose"},
		{input: "2024-13-01", wantStr: "2024-13-01", wantValid: false},
		{input: "2024.02.30", wantStr: "2024.02.30", wantValid: false},
		{input: "미제출", wantStr: "미제출", wantValid: false},
		{input: "", wantStr: "", wantValid: false},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			info := chain.Parse(tc.input, now)
			assert.Equal(t, tc.wantStr, info.Str)
			assert.Equal(t, tc.wantValid, info.Valid)
			assert.Equal(t, tc.wantParser, info.Parser)
			if !tc.wantValid {
				assert.Equal(t, now, info.Time)
			}
		})
	}
}

func TestParseSerialDate(t *testing.T) {
	got, ok := ingest.ParseSerialDate("45352")
	assert.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), got)

	for _, s := range []string{"", "2024-03-01", "1.5.3", "abc", "NaN", "1e308"} {
		_, ok := ingest.ParseSerialDate(s)
		assert.False(t, ok, s)
	}
}

func TestParseNativeDate_RejectsOldYears(t *testing.T) {
	_, ok := ingest.ParseNativeDate("1999-12-31")
	assert.False(t, ok)
}
