package agent

import (
	"net/url"
	"strings"

	"github.com/agentgate/agentgate/protocol"
)

// Request is the capability's view of one in-flight request. The headers
// snapshot is taken when the request-headers event arrives; Body is the
// accumulated request body (empty until the last chunk has been seen, and
// only for capabilities that handle bodies).
type Request struct {
	Key      RequestKey
	Metadata protocol.RequestMetadata
	Method   string
	URI      string
	Headers  Headers
	Body     []byte
	HasBody  bool

	query *QueryValues
}

// Path returns the request path: the URI up to the first '?'.
func (r *Request) Path() string {
	if i := strings.IndexByte(r.URI, '?'); i >= 0 {
		return r.URI[:i]
	}
	return r.URI
}

// RawQuery returns the query string after the first '?', or "".
func (r *Request) RawQuery() string {
	if i := strings.IndexByte(r.URI, '?'); i >= 0 {
		return r.URI[i+1:]
	}
	return ""
}

// Query returns the parsed query parameters. Parsed once, lazily.
func (r *Request) Query() *QueryValues {
	if r.query == nil {
		r.query = parseQuery(r.RawQuery())
	}
	return r.query
}

// Header returns the first value of the named request header.
func (r *Request) Header(name string) string { return r.Headers.Get(name) }

// ClientIP returns the client address from the request metadata.
func (r *Request) ClientIP() string { return r.Metadata.ClientIP }

// Content-type helpers, delegating to the headers snapshot.
func (r *Request) IsJSON() bool       { return r.Headers.IsJSON() }
func (r *Request) IsHTML() bool       { return r.Headers.IsHTML() }
func (r *Request) IsForm() bool       { return r.Headers.IsForm() }
func (r *Request) IsMultipart() bool  { return r.Headers.IsMultipart() }
func (r *Request) IsImage() bool      { return r.Headers.IsImage() }
func (r *Request) IsXML() bool        { return r.Headers.IsXML() }
func (r *Request) IsJavaScript() bool { return r.Headers.IsJavaScript() }

// Response is the capability's view of the upstream response. For
// response-body events Body holds only the latest chunk, never an
// accumulation.
type Response struct {
	Status     int
	Headers    Headers
	Body       []byte
	ChunkIndex int
	IsLast     bool
}

// Header returns the first value of the named response header.
func (r *Response) Header(name string) string { return r.Headers.Get(name) }

func (r *Response) IsJSON() bool { return r.Headers.IsJSON() }
func (r *Response) IsHTML() bool { return r.Headers.IsHTML() }
func (r *Response) IsXML() bool  { return r.Headers.IsXML() }

// QueryValues holds parsed query parameters. Repeated keys accumulate in
// insertion order.
type QueryValues struct {
	keys   []string
	values map[string][]string
}

// Get returns the first value for key, or "".
func (q *QueryValues) Get(key string) string {
	vs := q.values[key]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Values returns all values for key in insertion order.
func (q *QueryValues) Values(key string) []string { return q.values[key] }

// Has reports whether key appeared in the query.
func (q *QueryValues) Has(key string) bool { _, ok := q.values[key]; return ok }

// Keys returns the distinct keys in first-appearance order.
func (q *QueryValues) Keys() []string { return q.keys }

// parseQuery splits a raw query string on '&' and '='. Components are
// percent-decoded; '+' is left alone (this is a URI query, not an HTML
// form submission). Undecodable components keep their raw text.
func parseQuery(raw string) *QueryValues {
	q := &QueryValues{values: make(map[string][]string)}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key, value := pair, ""
		if i := strings.IndexByte(pair, '='); i >= 0 {
			key, value = pair[:i], pair[i+1:]
		}
		key = unescapeComponent(key)
		value = unescapeComponent(value)
		if _, seen := q.values[key]; !seen {
			q.keys = append(q.keys, key)
		}
		q.values[key] = append(q.values[key], value)
	}
	return q
}

// unescapeComponent percent-decodes without treating '+' as space.
func unescapeComponent(s string) string {
	out, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return out
}
