package rpc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
)

// MaxInboundBytes is the largest message body readFrame will accept.
const MaxInboundBytes = 100 * 1024 * 1024

// WarnOutboundBytes is the size past which writeFrame logs a warning
// rather than refusing to send; the native-messaging host caps outbound
// messages at 1 MiB.
const WarnOutboundBytes = 1 * 1024 * 1024

// readFrame reads one length-prefixed message: a 4-byte little-endian
// length followed by that many bytes of UTF-8 JSON body.
func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err // io.EOF propagates to signal a clean stream close
	}

	n := binary.LittleEndian.Uint32(lenBuf[:])
	if int64(n) > MaxInboundBytes {
		return nil, fmt.Errorf("inbound message of %d bytes exceeds limit of %d", n, MaxInboundBytes)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("failed to read message body: %w", err)
	}
	return body, nil
}

// writeFrame writes one length-prefixed message.
func writeFrame(w io.Writer, body []byte) error {
	if len(body) > WarnOutboundBytes {
		slog.Warn("rpc_outbound_message_large", slog.Int("bytes", len(body)))
	}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("failed to write length prefix: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("failed to write message body: %w", err)
	}
	return nil
}

// readRequest reads and decodes one framed Request.
func readRequest(r io.Reader) (Request, error) {
	body, err := readFrame(r)
	if err != nil {
		return Request{}, err
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return Request{}, &frameDecodeError{err}
	}
	return req, nil
}

// writeResponse encodes and writes one framed Response.
func writeResponse(w io.Writer, resp Response) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	return writeFrame(w, body)
}

// frameDecodeError distinguishes a malformed JSON body (→ ErrCodeParseError)
// from a transport-level read failure (→ connection close).
type frameDecodeError struct{ err error }

func (e *frameDecodeError) Error() string { return e.err.Error() }
func (e *frameDecodeError) Unwrap() error { return e.err }
