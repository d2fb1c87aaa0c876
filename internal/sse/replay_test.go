package sse

import (
	"strconv"
	"strings"
	"testing"
)

func ids(frames []frame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.id
	}
	return out
}

func TestReplay_After(t *testing.T) {
	r := newReplay(3)
	for i := 1; i <= 5; i++ {
		r.push(frame{id: strconv.Itoa(i)})
	}

	cases := []struct {
		lastID string
		want   []string
	}{
		{"", nil},
		{"1", nil}, // evicted
		{"2", nil}, // evicted
		{"3", []string{"4", "5"}},
		{"4", []string{"5"}},
		{"5", []string{}},
		{"unknown", nil},
	}
	for _, tc := range cases {
		got := r.after(tc.lastID)
		if tc.want == nil {
			if got != nil {
				t.Errorf("after(%q) = %v, want nil", tc.lastID, ids(got))
			}
			continue
		}
		if g := ids(got); got == nil || strings.Join(g, ",") != strings.Join(tc.want, ",") {
			t.Errorf("after(%q) = %v, want %v", tc.lastID, g, tc.want)
		}
	}
}

func TestReplay_ZeroSize(t *testing.T) {
	r := newReplay(0)
	r.push(frame{id: "a"})
	if got := r.after("a"); got != nil {
		t.Errorf("after = %v, want nil", ids(got))
	}
}
