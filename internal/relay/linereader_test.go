package relay

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestLineReader(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		max     int
		want    []string
		wantErr error
	}{
		{
			name:    "single line",
			input:   "hello\n",
			max:     64,
			want:    []string{"hello\n"},
			wantErr: io.EOF,
		},
		{
			name:    "several lines keep their terminators",
			input:   "a\nbb\r\nccc\n",
			max:     64,
			want:    []string{"a\n", "bb\r\n", "ccc\n"},
			wantErr: io.EOF,
		},
		{
			name:    "trailing fragment is returned with EOF",
			input:   "done\npartial",
			max:     64,
			want:    []string{"done\n", "partial"},
			wantErr: io.EOF,
		},
		{
			name:    "line exactly at the limit",
			input:   "abcde\n",
			max:     5,
			want:    []string{"abcde\n"},
			wantErr: io.EOF,
		},
		{
			name:    "fragment exactly at the limit",
			input:   "abcde",
			max:     5,
			want:    []string{"abcde"},
			wantErr: io.EOF,
		},
		{
			name:    "fragment over the limit",
			input:   "abcdef",
			max:     5,
			wantErr: ErrLineTooLong,
		},
		{
			name:    "line over the limit",
			input:   "ok\nabcdef\n",
			max:     5,
			want:    []string{"ok\n"},
			wantErr: ErrLineTooLong,
		},
		{
			name:    "line longer than the read buffer",
			input:   strings.Repeat("x", 3*readBufferSize) + "\n",
			max:     4 * readBufferSize,
			want:    []string{strings.Repeat("x", 3*readBufferSize) + "\n"},
			wantErr: io.EOF,
		},
		{
			name:    "unbounded",
			input:   strings.Repeat("y", 2*readBufferSize) + "\n",
			max:     -1,
			want:    []string{strings.Repeat("y", 2*readBufferSize) + "\n"},
			wantErr: io.EOF,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lr := newLineReader(strings.NewReader(tt.input), tt.max)

			var got []string
			var err error
			for {
				var line string
				line, err = lr.ReadLine()
				if line != "" {
					got = append(got, line)
				}
				if err != nil {
					break
				}
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected error %v, got %v", tt.wantErr, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d lines, got %d: %q", len(tt.want), len(got), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Line %d: expected %q, got %q", i, tt.want[i], got[i])
				}
			}
		})
	}
}
