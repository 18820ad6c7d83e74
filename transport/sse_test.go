package transport

import (
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("sseReader", func() {
	readAll := func(src string) []string {
		r := newSSEReader(strings.NewReader(src))
		var out []string
		for {
			f, err := r.next()
			if err == io.EOF {
				return out
			}
			Expect(err).NotTo(HaveOccurred())
			out = append(out, f.Event+"|"+string(f.Data))
		}
	}

	It("parses data-only events", func() {
		Expect(readAll("data: first\n\ndata: second\n\n")).To(Equal([]string{"|first", "|second"}))
	})

	It("keeps the event name with its data", func() {
		src := "event: content_block_delta\ndata: {\"type\":\"content_block_delta\"}\n\n"
		Expect(readAll(src)).To(Equal([]string{`content_block_delta|{"type":"content_block_delta"}`}))
	})

	It("resets the event name between events", func() {
		src := "event: ping\ndata: {}\n\ndata: plain\n\n"
		Expect(readAll(src)).To(Equal([]string{"ping|{}", "|plain"}))
	})

	It("joins multiple data lines with a newline", func() {
		Expect(readAll("data: one\ndata: two\n\n")).To(Equal([]string{"|one\ntwo"}))
	})

	It("skips comments, ids, retry fields and keep-alive blank lines", func() {
		src := ": keep-alive\n\n\nid: 7\nretry: 3000\ndata: x\n\n"
		Expect(readAll(src)).To(Equal([]string{"|x"}))
	})

	It("accepts data without a space after the colon", func() {
		Expect(readAll("data:[DONE]\n\n")).To(Equal([]string{"|[DONE]"}))
	})

	It("returns a trailing event cut off by EOF", func() {
		Expect(readAll("data: a\n\ndata: b")).To(Equal([]string{"|a", "|b"}))
	})

	It("handles CRLF line endings", func() {
		Expect(readAll("data: a\r\n\r\n")).To(Equal([]string{"|a"}))
	})

	It("returns io.EOF on an empty source", func() {
		r := newSSEReader(strings.NewReader(""))
		_, err := r.next()
		Expect(err).To(Equal(io.EOF))
	})
})
