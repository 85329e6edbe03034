// cmd/merlin/transport.go
//
// ROLE: Line-oriented JSON transport and the four-way response envelope.
//
// What lives here
//   • Framing: one JSON value per line in, one [tag, payload] array per
//     line out, flushed after every response.
//   • The response taxonomy: return / error / failure / exception, plus
//     the classifier that maps internal failures onto it.
//   • Duplex protocol logging: every read line is teed with a leading
//     ">", every written line with "<". The sink comes from MERLIN_LOG
//     (or config); opening or writing it can fail silently, the
//     protocol itself is never affected.
//
// What does NOT live here
//   • No command semantics, no session state, no dispatch.

package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	merlin "github.com/MarcWeber/merlin"
)

// Response tags.
const (
	tagReturn    = "return"
	tagError     = "error"
	tagFailure   = "failure"
	tagException = "exception"
)

// failureError marks caller/command misuse: bad arguments, unknown
// command. The dispatch loop renders it with the "failure" tag.
type failureError struct{ msg string }

func (e *failureError) Error() string { return e.msg }

func failuref(format string, a ...any) error {
	return &failureError{msg: fmt.Sprintf(format, a...)}
}

// queryError is a recognized analysis failure ("no typed tree available"
// and friends). Rendered with the "error" tag, with a location when one
// is known.
type queryError struct {
	msg string
	loc *merlin.Location
}

func (e *queryError) Error() string { return e.msg }

type transport struct {
	in  *bufio.Scanner
	out *bufio.Writer
	log io.WriteCloser // nil when protocol logging is disabled
}

func newTransport(r io.Reader, w io.Writer, logPath string, maxLine int) *transport {
	sc := bufio.NewScanner(r)
	if maxLine > 0 {
		// The scanner's effective limit is the larger of max and the
		// initial capacity, so the buffer must not exceed the limit.
		initial := 64 * 1024
		if maxLine < initial {
			initial = maxLine
		}
		sc.Buffer(make([]byte, 0, initial), maxLine)
	}
	t := &transport{in: sc, out: bufio.NewWriter(w)}
	if logPath != "" {
		// Failure to open the sink silently disables logging.
		if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			t.log = f
		}
	}
	return t
}

// read returns the next decoded JSON value. io.EOF signals clean stream
// exhaustion; a line that is not valid JSON is returned as errBadJSON so
// the loop can answer it instead of dying.
func (t *transport) read() (any, error) {
	for {
		if !t.in.Scan() {
			if err := t.in.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		line := t.in.Bytes()
		if len(line) == 0 {
			continue
		}
		t.tee('>', line)
		var v any
		if err := json.Unmarshal(line, &v); err != nil {
			return nil, errBadJSON
		}
		return v, nil
	}
}

var errBadJSON = errors.New("invalid json")

// write emits one [tag, payload] response line and flushes.
func (t *transport) write(tag string, payload any) error {
	b, err := json.Marshal([]any{tag, payload})
	if err != nil {
		// Payload failed to serialize; degrade to an exception envelope.
		b, _ = json.Marshal([]any{tagException, fmt.Sprintf("unserializable response: %v", err)})
	}
	t.tee('<', b)
	if _, err := t.out.Write(b); err != nil {
		return err
	}
	if err := t.out.WriteByte('\n'); err != nil {
		return err
	}
	return t.out.Flush()
}

// tee copies one wire line to the protocol log. Write failures are
// ignored, the log is best-effort.
func (t *transport) tee(dir byte, line []byte) {
	if t.log == nil {
		return
	}
	buf := make([]byte, 0, len(line)+3)
	buf = append(buf, dir, ' ')
	buf = append(buf, line...)
	buf = append(buf, '\n')
	t.log.Write(buf)
}

func (t *transport) close() {
	if t.log != nil {
		t.log.Close()
	}
}

// classify converts a handler failure into a response tag and payload.
// Recognized domain errors become "error" (with a location when
// available); caller misuse becomes "failure"; everything else is an
// "exception" with a generic rendering.
func classify(err error) (string, any) {
	var fe *failureError
	if errors.As(err, &fe) {
		return tagFailure, fe.msg
	}
	var qe *queryError
	if errors.As(err, &qe) {
		if qe.loc != nil {
			return tagError, merlin.WithLocation(*qe.loc, map[string]any{"message": qe.msg})
		}
		return tagError, map[string]any{"message": qe.msg}
	}
	if errors.Is(err, merlin.ErrMalformedPosition) {
		return tagFailure, err.Error()
	}
	if loc, ok := merlin.ErrorLocation(err); ok {
		return tagError, merlin.WithLocation(loc, map[string]any{"message": err.Error()})
	}
	return tagException, err.Error()
}
