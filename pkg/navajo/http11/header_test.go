package http11

import "testing"

func TestHeadersGetCaseInsensitive(t *testing.T) {
	h := Headers{
		{Name: []byte("content-type"), Value: []byte("text/plain")},
	}
	for _, name := range []string{"Content-Type", "CONTENT-TYPE", "content-type"} {
		if v := h.Get([]byte(name)); string(v) != "text/plain" {
			t.Errorf("Get(%q) = %q, want text/plain", name, v)
		}
	}
	if v := h.Get([]byte("missing")); v != nil {
		t.Errorf("Get(missing) = %q, want nil", v)
	}
}

func TestHeadersGetReturnsFirstOfDuplicates(t *testing.T) {
	h := Headers{
		{Name: []byte("x-a"), Value: []byte("1")},
		{Name: []byte("X-A"), Value: []byte("2")},
	}
	if v := h.Get([]byte("x-a")); string(v) != "1" {
		t.Errorf("Get = %q, want 1 (first occurrence)", v)
	}
}

func TestHeadersHasAndCount(t *testing.T) {
	h := Headers{
		{Name: []byte("x-a"), Value: []byte("1")},
		{Name: []byte("x-b"), Value: []byte("2")},
		{Name: []byte("X-A"), Value: []byte("3")},
	}
	if !h.Has([]byte("x-a")) {
		t.Error("Has(x-a) = false, want true")
	}
	if h.Has([]byte("x-z")) {
		t.Error("Has(x-z) = true, want false")
	}
	if n := h.Count([]byte("x-a")); n != 2 {
		t.Errorf("Count(x-a) = %d, want 2", n)
	}
}

func TestBytesEqualCaseInsensitive(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"Host", "host", true},
		{"HOST", "host", true},
		{"Host", "hosts", false},
		{"", "", true},
	}
	for _, c := range cases {
		if got := bytesEqualCaseInsensitive([]byte(c.a), []byte(c.b)); got != c.want {
			t.Errorf("bytesEqualCaseInsensitive(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}
