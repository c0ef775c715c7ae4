package agent

import (
	"reflect"
	"testing"
)

func TestHeaderLookupCaseInsensitive(t *testing.T) {
	h := Headers{"Content-Type": {"application/json"}, "X-Trace": {"a", "b"}}
	if h.Get("content-type") != "application/json" {
		t.Fatal("case-insensitive lookup failed")
	}
	if got := h.Values("x-TRACE"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("values = %v", got)
	}
	if h.Has("missing") {
		t.Fatal("phantom header")
	}
	// Storage stays case-preserving: the original key is untouched.
	if _, ok := h["Content-Type"]; !ok {
		t.Fatal("original casing lost")
	}
}

func TestContentTypeSniffing(t *testing.T) {
	cases := []struct {
		ct    string
		check func(Headers) bool
		want  bool
	}{
		{"application/json; charset=utf-8", Headers.IsJSON, true},
		{"text/html", Headers.IsHTML, true},
		{"application/x-www-form-urlencoded", Headers.IsForm, true},
		{"multipart/form-data; boundary=x", Headers.IsMultipart, true},
		{"image/png", Headers.IsImage, true},
		{"application/xml", Headers.IsXML, true},
		{"text/xml", Headers.IsXML, true},
		{"application/javascript", Headers.IsJavaScript, true},
		{"text/javascript", Headers.IsJavaScript, true},
		{"TEXT/HTML", Headers.IsHTML, true},
		{"application/octet-stream", Headers.IsJSON, false},
	}
	for _, tc := range cases {
		h := Headers{"Content-Type": {tc.ct}}
		if got := tc.check(h); got != tc.want {
			t.Errorf("content-type %q: got %v, want %v", tc.ct, got, tc.want)
		}
	}
}

func TestPathAndQuerySplit(t *testing.T) {
	req := &Request{URI: "/search/items?q=a+b&tag=x&tag=y&raw=%2Fetc&flag"}
	if req.Path() != "/search/items" {
		t.Fatalf("path = %q", req.Path())
	}

	q := req.Query()
	// '+' is not a space in a URI query.
	if q.Get("q") != "a+b" {
		t.Fatalf("q = %q", q.Get("q"))
	}
	if got := q.Values("tag"); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Fatalf("tag = %v", got)
	}
	if q.Get("raw") != "/etc" {
		t.Fatalf("raw = %q", q.Get("raw"))
	}
	if !q.Has("flag") || q.Get("flag") != "" {
		t.Fatal("bare key lost")
	}
	if got := q.Keys(); !reflect.DeepEqual(got, []string{"q", "tag", "raw", "flag"}) {
		t.Fatalf("key order = %v", got)
	}
}

func TestQueryAbsent(t *testing.T) {
	req := &Request{URI: "/plain"}
	if req.Path() != "/plain" || req.RawQuery() != "" {
		t.Fatalf("plain uri mishandled: %q %q", req.Path(), req.RawQuery())
	}
	if len(req.Query().Keys()) != 0 {
		t.Fatal("phantom query keys")
	}
}

func TestQueryKeepsFirstQuestionMarkOnly(t *testing.T) {
	req := &Request{URI: "/p?next=/a?b=c"}
	if req.Path() != "/p" {
		t.Fatalf("path = %q", req.Path())
	}
	if req.RawQuery() != "next=/a?b=c" {
		t.Fatalf("raw query = %q", req.RawQuery())
	}
}
