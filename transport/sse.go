package transport

import (
	"bufio"
	"io"
	"strings"

	"github.com/haowjy/unillm-go"
)

// sseReader parses Server-Sent Events into fragments. Comment lines, "id:"
// and "retry:" fields are dropped; multiple "data:" lines of one event are
// joined with "\n".
type sseReader struct {
	scanner *bufio.Scanner

	event   string
	data    strings.Builder
	hasData bool
}

func newSSEReader(r io.Reader) *sseReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return &sseReader{scanner: scanner}
}

// next returns the next complete event, or io.EOF when the source is
// exhausted. An event cut off by EOF without its blank line is still
// returned.
func (r *sseReader) next() (llmprovider.Fragment, error) {
	for r.scanner.Scan() {
		line := r.scanner.Text()

		if line == "" {
			if r.hasData {
				return r.flush(), nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			r.event = value
		case "data":
			if r.hasData {
				r.data.WriteByte('\n')
			}
			r.data.WriteString(value)
			r.hasData = true
		}
	}

	if err := r.scanner.Err(); err != nil {
		return llmprovider.Fragment{}, err
	}
	if r.hasData {
		return r.flush(), nil
	}
	return llmprovider.Fragment{}, io.EOF
}

func (r *sseReader) flush() llmprovider.Fragment {
	f := llmprovider.Fragment{Event: r.event, Data: []byte(r.data.String())}
	r.event = ""
	r.data.Reset()
	r.hasData = false
	return f
}
