package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestChooseGame(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "1\n", want: "rtype"},
		{input: "snake\n", want: "snake"},
		{input: "9\nRTYPE\n", want: "rtype"},
		{input: "", wantErr: true},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got, err := chooseGame(strings.NewReader(tt.input), &out)
		if tt.wantErr {
			if err == nil {
				t.Errorf("input %q: expected error", tt.input)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("input %q: got %q, %v; want %q", tt.input, got, err, tt.want)
		}
		if !strings.Contains(out.String(), "2) snake") {
			t.Errorf("menu not printed: %q", out.String())
		}
	}
}
