package core

import (
	"testing"
	"time"
)

// ----------------------------------------------------------------------------
// ParseNumber Tests
// ----------------------------------------------------------------------------

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		wantErr error
	}{
		{name: "integer", input: "123", want: 123},
		{name: "zero", input: "0", want: 0},
		{name: "negative", input: "-456", want: -456},
		{name: "decimal", input: "25.5", want: 25.5},
		{name: "leading decimal point", input: ".99", want: 0.99},
		{name: "explicit plus", input: "+7", want: 7},
		{name: "thousands separators", input: "1,234,567.89", want: 1234567.89},
		{name: "underscores", input: "1_000", want: 1000},
		{name: "accounting negative", input: "(12.5)", want: -12.5},
		{name: "scientific notation", input: "1.5e3", want: 1500},
		{name: "surrounding whitespace", input: "  42  ", want: 42},

		{name: "empty", input: "", wantErr: errInvalidNumber},
		{name: "letters", input: "abc", wantErr: errInvalidNumber},
		{name: "unit suffix", input: "25t", wantErr: errInvalidNumber},
		{name: "two decimal points", input: "1.2.3", wantErr: errInvalidNumber},
		{name: "currency symbol", input: "$10", wantErr: errInvalidNumber},
		{name: "overflow", input: "1e400", wantErr: errOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseNumber(tt.input)
			if err != tt.wantErr {
				t.Fatalf("ParseNumber(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParseNumber(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ParseDate Tests
// ----------------------------------------------------------------------------

func TestParseDate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   time.Time
		wantOK bool
	}{
		{
			name:   "ISO date",
			input:  "2024-01-10",
			want:   time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "RFC3339 UTC",
			input:  "2024-01-10T08:30:00Z",
			want:   time.Date(2024, 1, 10, 8, 30, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "RFC3339 with offset normalized to UTC",
			input:  "2024-01-10T08:30:00+02:00",
			want:   time.Date(2024, 1, 10, 6, 30, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "timestamp without zone",
			input:  "2024-01-10T08:30:00",
			want:   time.Date(2024, 1, 10, 8, 30, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "space separated timestamp",
			input:  "2024-01-10 08:30",
			want:   time.Date(2024, 1, 10, 8, 30, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "slash separated year first",
			input:  "2024/01/10",
			want:   time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "compact",
			input:  "20240110",
			want:   time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "month name",
			input:  "Jan 10, 2024",
			want:   time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "day before month name",
			input:  "10 Jan 2024",
			want:   time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
			wantOK: true,
		},

		// Numeric day/month order depends on locale.
		{name: "slash day month", input: "03/04/2024", wantOK: false},
		{name: "dotted day month", input: "03.04.2024", wantOK: false},
		{name: "dashed day month", input: "03-04-2024", wantOK: false},
		{name: "unpadded slash", input: "1/10/2024", wantOK: false},
		{name: "two digit year", input: "1/2/06", wantOK: false},

		{name: "empty", input: "", wantOK: false},
		{name: "garbage", input: "soon", wantOK: false},
		{name: "impossible day", input: "2024-02-30", wantOK: false},
		{name: "month out of range", input: "2024-13-01", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseDate(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// CleanCell Tests
// ----------------------------------------------------------------------------

func TestCleanCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "V1", want: "V1"},
		{name: "whitespace", input: "  V1 \t", want: "V1"},
		{name: "excel formula text", input: `="00123"`, want: "00123"},
		{name: "leading equals", input: "=42", want: "42"},
		{name: "double quotes", input: `"TA"`, want: "TA"},
		{name: "single quotes", input: `'TA'`, want: "TA"},
		{name: "empty", input: "", want: ""},
		{name: "only whitespace", input: "   ", want: ""},
		{name: "inner spaces kept", input: " a b ", want: "a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanCell(tt.input); got != tt.want {
				t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// MakeHeaderIndex Tests
// ----------------------------------------------------------------------------

func TestMakeHeaderIndex(t *testing.T) {
	idx := MakeHeaderIndex([]string{" Vehicle_ID ", "START_DATE", `"end_date"`, "type"})

	want := map[string]int{
		"vehicle_id": 0,
		"start_date": 1,
		"end_date":   2,
		"type":       3,
	}
	if len(idx) != len(want) {
		t.Fatalf("len(idx) = %d, want %d", len(idx), len(want))
	}
	for k, v := range want {
		if got, ok := idx[k]; !ok || got != v {
			t.Errorf("idx[%q] = %d, %v; want %d", k, got, ok, v)
		}
	}
}

func TestMakeHeaderIndex_DuplicateHeaders(t *testing.T) {
	idx := MakeHeaderIndex([]string{"type", "id", "TYPE"})
	if idx["type"] != 0 {
		t.Errorf("duplicate header should keep first position, got %d", idx["type"])
	}
}
