package frame

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"
)

// StreamOptions configures Stream.
type StreamOptions struct {
	// HeaderCh, when set, receives the first record instead of the row channel.
	HeaderCh   chan<- []string
	LazyQuotes bool
}

// Stream parses CSV records on a goroutine. Ragged rows are passed through
// as-is. Both channels are closed when the reader is exhausted, fails, or
// ctx is done; at most one error is sent.
func Stream(ctx context.Context, r io.Reader, opts StreamOptions) (<-chan []string, <-chan error) {
	rows := make(chan []string, 64)
	errs := make(chan error, 1)

	send := func(ch chan<- []string, rec []string) bool {
		select {
		case ch <- rec:
			return true
		case <-ctx.Done():
			errs <- eris.Wrap(ctx.Err(), "frame: stream cancelled")
			return false
		}
	}

	go func() {
		defer close(rows)
		defer close(errs)

		cr := csv.NewReader(r)
		cr.LazyQuotes = opts.LazyQuotes
		cr.FieldsPerRecord = -1

		header := opts.HeaderCh != nil
		for {
			rec, err := cr.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errs <- eris.Wrap(err, "frame: read row")
				return
			}
			if header {
				header = false
				if !send(opts.HeaderCh, rec) {
					return
				}
				continue
			}
			if !send(rows, rec) {
				return
			}
		}
	}()

	return rows, errs
}
