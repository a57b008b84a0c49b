package rpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

// Dispatcher handles one decoded Request and returns its Response. Service
// is the production implementation; tests may substitute a stub.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) Response
}

// Server drives the length-prefixed request/response loop over a single
// long-lived framed stream. Requests are handled strictly in arrival
// order; the dispatcher relies on that for its unsynchronized state.
type Server struct {
	r          io.Reader
	w          io.Writer
	dispatcher Dispatcher
}

// NewServer creates a Server reading requests from r and writing responses
// to w.
func NewServer(r io.Reader, w io.Writer, dispatcher Dispatcher) *Server {
	return &Server{r: r, w: w, dispatcher: dispatcher}
}

// Serve reads and dispatches requests until r is exhausted, ctx is
// cancelled, or a transport-level (non-decode) error occurs. A malformed
// request body does not end the loop — it yields a parse-error response
// and the loop continues, since one bad message shouldn't kill a
// long-lived native-messaging connection.
func (s *Server) Serve(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		req, err := readRequest(s.r)
		if err != nil {
			var decodeErr *frameDecodeError
			if errors.As(err, &decodeErr) {
				resp := NewErrorResponse("", ErrCodeParseError, "failed to parse request")
				if werr := writeResponse(s.w, resp); werr != nil {
					return werr
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		resp := s.handle(ctx, req)
		if err := writeResponse(s.w, resp); err != nil {
			return err
		}
	}
}

func (s *Server) handle(ctx context.Context, req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("rpc_handler_panic", slog.Any("panic", r), slog.String("method", req.Method))
			resp = NewErrorResponse(req.ID, ErrCodeInternalError, "internal error")
		}
	}()
	return s.dispatcher.Dispatch(ctx, req)
}
