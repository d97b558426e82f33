package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

// fixedClock advances one second per call.
func fixedClock() func() time.Time {
	t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name    string
		total   int64
		batches [][2]int64
		want    []string
		notWant []string
	}{
		{
			name:    "clean run",
			total:   4,
			batches: [][2]int64{{2, 0}, {2, 0}},
			want:    []string{"verify: 0/4 (0%)", "verify: 2/4 (50%)", "verify: 4/4 (100%)", "/s"},
			notWant: []string{"flagged"},
		},
		{
			name:    "flagged records",
			total:   3,
			batches: [][2]int64{{3, 2}},
			want:    []string{"verify: 3/3 (100%), 2 flagged"},
		},
		{
			name:    "overshoot is capped",
			total:   2,
			batches: [][2]int64{{5, 0}},
			want:    []string{"5/2 (100%)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			p := NewProgress(buf, "verify")
			p.now = fixedClock()

			p.Start(tt.total)
			for _, b := range tt.batches {
				p.Advance(b[0], b[1])
			}
			p.Done()

			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q: %q", w, out)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Errorf("output contains %q: %q", w, out)
				}
			}
			if !strings.HasSuffix(out, "\n") {
				t.Error("Done() did not end the line")
			}
		})
	}
}

func TestProgress_ZeroTotalIsSilent(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgress(buf, "verify")
	p.Start(0)
	p.Advance(0, 0)
	p.Done()

	if buf.String() != "\n" {
		t.Errorf("output = %q, want a bare newline", buf.String())
	}
}

func TestProgress_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgress(buf, "verify")
	p.Start(10)
	p.Fail(errors.New("connection reset"))

	if !strings.Contains(buf.String(), "✗ verify failed: connection reset") {
		t.Errorf("output = %q", buf.String())
	}
}
