package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/haowjy/unillm-go"
)

func payload(url string, stream bool) *llmprovider.Payload {
	return &llmprovider.Payload{
		Provider: llmprovider.ProviderAnthropic,
		Method:   http.MethodPost,
		URL:      url,
		Header:   http.Header{"X-Api-Key": {"sk-test"}, "Content-Type": {"application/json"}},
		Body:     []byte(`{"model":"claude-haiku-4-5"}`),
		Stream:   stream,
	}
}

var _ = Describe("HTTP", func() {
	var (
		server  *httptest.Server
		handler http.HandlerFunc
	)

	BeforeEach(func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
		DeferCleanup(server.Close)
	})

	Describe("Send", func() {
		It("posts the payload and returns the body", func() {
			var gotKey, gotBody string
			handler = func(w http.ResponseWriter, r *http.Request) {
				gotKey = r.Header.Get("x-api-key")
				b, _ := io.ReadAll(r.Body)
				gotBody = string(b)
				fmt.Fprint(w, `{"ok":true}`)
			}

			body, err := New().Send(context.Background(), payload(server.URL, false))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal(`{"ok":true}`))
			Expect(gotKey).To(Equal("sk-test"))
			Expect(gotBody).To(Equal(`{"model":"claude-haiku-4-5"}`))
		})

		It("maps a 429 to a retryable rate limit error", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "7")
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprint(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)
			}

			_, err := New().Send(context.Background(), payload(server.URL, false))

			var perr *llmprovider.ProviderError
			Expect(errors.As(err, &perr)).To(BeTrue())
			Expect(perr.StatusCode).To(Equal(429))
			Expect(perr.Code).To(Equal("rate_limit_error"))
			Expect(perr.Message).To(Equal("slow down"))
			Expect(perr.RetryAfter).To(Equal(7 * time.Second))
			Expect(errors.Is(err, llmprovider.ErrRateLimited)).To(BeTrue())
			Expect(llmprovider.IsRetryable(err)).To(BeTrue())
			Expect(llmprovider.KindOf(err)).To(Equal(llmprovider.ErrorKindVendor))
		})

		It("maps a 401 to an auth error", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`)
			}

			_, err := New().Send(context.Background(), payload(server.URL, false))
			Expect(errors.Is(err, llmprovider.ErrInvalidAPIKey)).To(BeTrue())
			Expect(llmprovider.IsAuthError(err)).To(BeTrue())
			Expect(llmprovider.IsRetryable(err)).To(BeFalse())
			Expect(err.Error()).To(ContainSubstring("Incorrect API key provided"))
		})

		It("reads the Gemini error status as the code", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`)
			}

			_, err := New().Send(context.Background(), payload(server.URL, false))
			var perr *llmprovider.ProviderError
			Expect(errors.As(err, &perr)).To(BeTrue())
			Expect(perr.Code).To(Equal("INVALID_ARGUMENT"))
			Expect(perr.Retryable).To(BeFalse())
		})

		It("falls back to the raw body for non-JSON errors", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				fmt.Fprint(w, "upstream unavailable")
			}

			_, err := New().Send(context.Background(), payload(server.URL, false))
			var perr *llmprovider.ProviderError
			Expect(errors.As(err, &perr)).To(BeTrue())
			Expect(perr.Message).To(Equal("HTTP 502: upstream unavailable"))
			Expect(perr.Retryable).To(BeTrue())
		})

		It("reports network failures as transport errors", func() {
			url := server.URL
			server.Close()

			_, err := New().Send(context.Background(), payload(url, false))
			Expect(errors.Is(err, llmprovider.ErrTransport)).To(BeTrue())
			Expect(llmprovider.KindOf(err)).To(Equal(llmprovider.ErrorKindTransport))
		})

		It("applies the single-shot timeout", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			}

			_, err := New(WithTimeout(50*time.Millisecond)).Send(context.Background(), payload(server.URL, false))
			Expect(errors.Is(err, llmprovider.ErrTransport)).To(BeTrue())
			Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
		})
	})

	Describe("Open", func() {
		It("yields SSE fragments then io.EOF", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				fmt.Fprint(w, "event: message_start\ndata: {\"type\":\"message_start\"}\n\n")
				fmt.Fprint(w, ": keep-alive\n\n")
				fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
			}

			reader, err := New().Open(context.Background(), payload(server.URL, true))
			Expect(err).NotTo(HaveOccurred())
			defer reader.Close()

			f, err := reader.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(f.Event).To(Equal("message_start"))
			Expect(string(f.Data)).To(Equal(`{"type":"message_start"}`))

			f, err = reader.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(f.Event).To(Equal("message_stop"))

			_, err = reader.Next()
			Expect(err).To(Equal(io.EOF))
		})

		It("returns the vendor error before any fragment", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(529)
				fmt.Fprint(w, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
			}

			reader, err := New().Open(context.Background(), payload(server.URL, true))
			Expect(reader).To(BeNil())
			Expect(llmprovider.IsRetryable(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("Overloaded"))
		})

		It("surfaces cancellation mid-stream as a transport error", func() {
			release := make(chan struct{})
			DeferCleanup(func() { close(release) })
			handler = func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "data: {\"n\":1}\n\n")
				w.(http.Flusher).Flush()
				select {
				case <-r.Context().Done():
				case <-release:
				}
			}

			ctx, cancel := context.WithCancel(context.Background())
			reader, err := New().Open(ctx, payload(server.URL, true))
			Expect(err).NotTo(HaveOccurred())
			defer reader.Close()

			_, err = reader.Next()
			Expect(err).NotTo(HaveOccurred())

			cancel()
			_, err = reader.Next()
			Expect(errors.Is(err, llmprovider.ErrTransport)).To(BeTrue())
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		})

		It("allows Close more than once and stops reading", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "data: a\n\n")
			}

			reader, err := New().Open(context.Background(), payload(server.URL, true))
			Expect(err).NotTo(HaveOccurred())
			Expect(reader.Close()).To(Succeed())
			Expect(reader.Close()).To(Succeed())

			_, err = reader.Next()
			Expect(err).To(Equal(io.EOF))
		})
	})
})

var _ = Describe("retryAfter", func() {
	It("prefers retry-after-ms", func() {
		h := http.Header{}
		h.Set("Retry-After-Ms", "1500")
		h.Set("Retry-After", "9")
		Expect(retryAfter(h)).To(Equal(1500 * time.Millisecond))
	})

	It("parses an HTTP date", func() {
		h := http.Header{}
		h.Set("Retry-After", time.Now().Add(time.Minute).UTC().Format(http.TimeFormat))
		Expect(retryAfter(h)).To(BeNumerically("~", time.Minute, 2*time.Second))
	})

	It("ignores garbage", func() {
		h := http.Header{}
		h.Set("Retry-After", "soon")
		Expect(retryAfter(h)).To(BeZero())
	})
})
