package checksum

import "testing"

func TestSum(t *testing.T) {
	// sha256("abc")
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := Sum([]byte("abc")); got != want {
		t.Errorf("Sum = %s, want %s", got, want)
	}
}

func TestMatches(t *testing.T) {
	data := []byte("# note")
	if !Matches(data, "") {
		t.Error("empty want should match")
	}
	if !Matches(data, Sum(data)) {
		t.Error("own digest should match")
	}
	if Matches(data, Sum([]byte("other"))) {
		t.Error("foreign digest should not match")
	}
}

func TestParseIfMatch(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"abc", "abc"},
		{`"abc"`, "abc"},
		{`W/"abc"`, "abc"},
		{` "abc" `, "abc"},
		{"*", ""},
	}
	for _, tt := range tests {
		if got := ParseIfMatch(tt.in); got != tt.want {
			t.Errorf("ParseIfMatch(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestETagRoundTrip(t *testing.T) {
	sum := Sum([]byte("x"))
	if got := ParseIfMatch(ETag(sum)); got != sum {
		t.Errorf("round trip = %q, want %q", got, sum)
	}
}
