package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
)

// ============================================================================
// Conversion Benchmarks
// ============================================================================

// BenchmarkParseDate covers both accepted date shapes.
func BenchmarkParseDate(b *testing.B) {
	testCases := []string{
		"2024-01-15",
		"2024-01-15T08:30:00Z",
		"2024-01-15T08:30:00+02:00",
		"15/01/2024", // rejected
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			ParseDate(tc)
		}
	}
}

func BenchmarkParseNumber(b *testing.B) {
	testCases := []string{"120", "45.5", "-73.98", "1e3", "abc"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			_, _ = ParseNumber(tc)
		}
	}
}

func BenchmarkCleanCell(b *testing.B) {
	testCases := []string{
		"V1",
		"  padded  ",
		"=\"00123\"",
		"\ufeffV1",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			CleanCell(tc)
		}
	}
}

// ============================================================================
// Pipeline Benchmarks
// ============================================================================

func windowFile(rows int) []byte {
	var buf bytes.Buffer
	buf.WriteString(windowHeader)
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&buf, "V%d,2024-01-10,2024-01-15,PREVENTIVE\n", i%50)
	}
	return buf.Bytes()
}

func benchRefs() ReferenceSet {
	ids := make([]string, 50)
	for i := range ids {
		ids[i] = fmt.Sprintf("V%d", i)
	}
	return testRefs(ids...)
}

// BenchmarkCheck measures parse plus validation without submission.
func BenchmarkCheck(b *testing.B) {
	data := windowFile(1000)
	refs := benchRefs()
	schema := windowSchema()

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Check(context.Background(), bytes.NewReader(data), schema, refs, DefaultParseOptions()); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkRun measures a full best-effort run against a no-op submitter.
func BenchmarkRun(b *testing.B) {
	data := windowFile(1000)
	refs := benchRefs()
	schema := windowSchema()
	noop := func(context.Context, Record) error { return nil }
	opts := RunOptions{Policy: BestEffort, Parse: DefaultParseOptions()}

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Run(context.Background(), bytes.NewReader(data), schema, refs, noop, opts); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkUTF8Sanitizer(b *testing.B) {
	data := []byte(strings.Repeat("V1,caf\xe9,2024-01-10\n", 2000))

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := io.Copy(io.Discard, NewUTF8Sanitizer(bytes.NewReader(data))); err != nil {
			b.Fatal(err)
		}
	}
}
