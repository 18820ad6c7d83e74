package llmprovider

import (
	"maps"
	"net/http"
	"slices"
)

// Headers maps HTTP header names to values. Keys are stored in canonical
// form, so "x-api-key" and "X-Api-Key" address the same entry.
type Headers map[string]string

// NewHeaders builds Headers from alternating name/value pairs. A trailing
// name without value is ignored.
func NewHeaders(pairs ...string) Headers {
	h := make(Headers, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		h.Set(pairs[i], pairs[i+1])
	}
	return h
}

// Set stores value under the canonical form of name, replacing any
// previous value.
func (h Headers) Set(name, value string) {
	h[http.CanonicalHeaderKey(name)] = value
}

// Get returns the value for name, matched case-insensitively.
func (h Headers) Get(name string) (string, bool) {
	v, ok := h[http.CanonicalHeaderKey(name)]
	return v, ok
}

// Merge returns a new Headers holding h overlaid with overlay; overlay wins
// on conflicts. Neither input is modified. Keys are applied in sorted order,
// so a literal holding two spellings of one name ("X-Api-Key" and
// "x-api-key") always resolves to the same value.
func (h Headers) Merge(overlay Headers) Headers {
	out := make(Headers, len(h)+len(overlay))
	for _, k := range h.Keys() {
		out.Set(k, h[k])
	}
	for _, k := range overlay.Keys() {
		out.Set(k, overlay[k])
	}
	return out
}

// Clone returns a copy of h.
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	return maps.Clone(h)
}

// Keys returns the stored header names in sorted order.
func (h Headers) Keys() []string {
	return slices.Sorted(maps.Keys(h))
}

// HTTPHeader converts h into an http.Header.
func (h Headers) HTTPHeader() http.Header {
	out := make(http.Header, len(h))
	for _, k := range h.Keys() {
		out.Set(k, h[k])
	}
	return out
}
