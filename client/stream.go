package client

import (
	"errors"
	"io"
	"iter"
	"log/slog"

	"github.com/haowjy/unillm-go"
)

// Stream is a pull-based, single-pass sequence of events for one streaming
// completion. It is not safe for concurrent use.
//
//	s, err := c.Stream(ctx, "claude-haiku-4-5", req)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//	for ev := range s.Events() {
//	    if ev.Type == llmprovider.EventTextDelta {
//	        fmt.Print(ev.Delta)
//	    }
//	}
//	if err := s.Err(); err != nil {
//	    return err
//	}
type Stream struct {
	provider llmprovider.ProviderID
	reader   llmprovider.FragmentReader
	decoder  llmprovider.StreamDecoder
	logger   *slog.Logger

	pending  []llmprovider.StreamEvent
	current  llmprovider.StreamEvent
	terminal bool // terminal event delivered
	done     bool
	err      error
	response *llmprovider.Response
	events   int
}

func newStream(provider llmprovider.ProviderID, reader llmprovider.FragmentReader, decoder llmprovider.StreamDecoder, logger *slog.Logger) *Stream {
	return &Stream{provider: provider, reader: reader, decoder: decoder, logger: logger}
}

// Next advances to the next event and reports whether there is one. After
// the terminal event it returns false; a fragment that still arrives then is
// reported through Err as a protocol error.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}

	for len(s.pending) == 0 {
		if s.terminal {
			s.drain()
			return false
		}
		s.fill()
		if s.done {
			return false
		}
	}

	s.current = s.pending[0]
	s.pending = s.pending[1:]
	s.events++

	switch s.current.Type {
	case llmprovider.EventFinish:
		s.terminal = true
		s.response = s.current.Response
	case llmprovider.EventError:
		s.terminal = true
		if s.err == nil && s.current.Err != nil {
			s.err = s.current.Err
		}
	}
	return true
}

// fill reads fragments until the decoder yields events or the stream ends.
func (s *Stream) fill() {
	f, err := s.reader.Next()
	if errors.Is(err, io.EOF) {
		events, endErr := s.decoder.End()
		if endErr != nil {
			s.finish(endErr)
			return
		}
		s.pending = append(s.pending, events...)
		return
	}
	if err != nil {
		// The transport failed mid-stream; end the sequence with an error
		// event and keep the transport's own error for Err.
		s.err = err
		s.pending = append(s.pending, llmprovider.NewErrorEvent(&llmprovider.StreamError{
			Kind:     llmprovider.ErrorKindTransport,
			Message:  err.Error(),
			Provider: s.provider.String(),
		}))
		return
	}

	events, err := s.decoder.Step(f)
	if err != nil {
		s.finish(err)
		return
	}
	s.pending = append(s.pending, events...)
}

// drain checks that nothing follows the terminal event.
func (s *Stream) drain() {
	f, err := s.reader.Next()
	switch {
	case errors.Is(err, io.EOF):
		s.finish(nil)
	case err != nil:
		// The completion is already whole; a late read failure does not change it.
		s.finish(nil)
	default:
		_, stepErr := s.decoder.Step(f)
		if stepErr == nil {
			stepErr = llmprovider.NewProtocolError(s.provider, "fragment after terminal event")
		}
		s.finish(stepErr)
	}
}

func (s *Stream) finish(err error) {
	if err != nil && s.err == nil {
		s.err = err
	}
	s.done = true
	s.Close()
}

// Current returns the event Next advanced to.
func (s *Stream) Current() llmprovider.StreamEvent {
	return s.current
}

// Err returns what ended the stream abnormally: the Error event's
// *StreamError, a transport error, or a protocol error for data after the
// terminal event. It is nil for a stream that finished cleanly.
func (s *Stream) Err() error {
	return s.err
}

// Response returns the assembled response once the Finish event was seen.
func (s *Stream) Response() *llmprovider.Response {
	return s.response
}

// Events returns the remaining events as an iterator. Breaking out of the
// loop closes the stream.
func (s *Stream) Events() iter.Seq[llmprovider.StreamEvent] {
	return func(yield func(llmprovider.StreamEvent) bool) {
		for s.Next() {
			if !yield(s.current) {
				s.Close()
				return
			}
		}
	}
}

// Close releases the transport. It is safe to call more than once and
// does not require the stream to have reached a terminal event.
func (s *Stream) Close() error {
	if s.reader == nil {
		return nil
	}
	err := s.reader.Close()
	s.reader = nil
	s.done = true
	s.logger.Debug("stream closed", "provider", s.provider, "events", s.events, "finished", s.response != nil)
	return err
}

// Collect reads s to the end, closes it and returns the assembled response.
func Collect(s *Stream) (*llmprovider.Response, error) {
	defer s.Close()
	for s.Next() {
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	if s.response == nil {
		return nil, llmprovider.NewProtocolError(s.provider, "stream closed before its terminal event")
	}
	return s.response, nil
}
