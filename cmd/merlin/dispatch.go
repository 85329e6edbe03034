// cmd/merlin/dispatch.go
//
// ROLE: Command registry and the request/response loop.
//
// What lives here
//   • The command table: name → handler, populated once at startup and
//     enumerable (the help command walks it).
//   • The dispatch loop: read one JSON value, validate the
//     [name, args...] shape, invoke, convert any failure into a tagged
//     response, write, repeat. Only stream exhaustion ends the loop.
//
// What does NOT live here
//   • No framing or tagging details (transport.go), no pipeline logic
//     (state.go), no handler bodies (commands.go).

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/tliron/commonlog"

	"github.com/MarcWeber/merlin/internal/config"
)

// handler processes one command against the session. A nil error means
// the result is wrapped as "return"; errors go through the classifier.
type handler func(s *session, args []any) (any, error)

type command struct {
	name  string
	usage string
	run   handler
}

type server struct {
	t   *transport
	s   *session
	reg map[string]command
	log commonlog.Logger
}

func newServer(cfg *config.Config, in io.Reader, out io.Writer) (*server, error) {
	s, err := newSession(cfg)
	if err != nil {
		return nil, err
	}
	srv := &server{
		t:   newTransport(in, out, cfg.Log.File, cfg.Protocol.MaxLineBytes),
		s:   s,
		log: commonlog.GetLogger("merlin.server"),
	}
	srv.reg = registry()
	return srv, nil
}

func (srv *server) close() { srv.t.close() }

// loop runs until the input stream is exhausted. Every input produces
// exactly one tagged response; nothing terminates the loop but EOF or an
// unreadable stream.
func (srv *server) loop() {
	for {
		v, err := srv.t.read()
		if err == io.EOF {
			srv.log.Noticef("input exhausted, shutting down")
			return
		}
		if err == errBadJSON {
			srv.t.write(tagFailure, "malformed command")
			continue
		}
		if err != nil {
			// The stream is unusable past this point; still answer the
			// offending input before shutting down.
			srv.log.Errorf("read: %v", err)
			msg := "cannot read request"
			if errors.Is(err, bufio.ErrTooLong) {
				msg = "request line too long"
			}
			srv.t.write(tagFailure, msg)
			return
		}
		tag, payload := srv.dispatch(v)
		if err := srv.t.write(tag, payload); err != nil {
			srv.log.Errorf("write: %v", err)
			return
		}
	}
}

// dispatch validates the request shape, routes to the handler and maps
// the outcome onto the response taxonomy.
func (srv *server) dispatch(v any) (tag string, payload any) {
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return tagFailure, "malformed command"
	}
	name, ok := arr[0].(string)
	if !ok {
		return tagFailure, "malformed command"
	}
	cmd, ok := srv.reg[name]
	if !ok {
		return tagFailure, "unknown command"
	}

	defer func() {
		if r := recover(); r != nil {
			srv.log.Errorf("panic in %q: %v", name, r)
			tag, payload = tagException, fmt.Sprintf("internal failure in %s: %v", name, r)
		}
	}()

	result, err := cmd.run(srv.s, arr[1:])
	if err != nil {
		return classify(err)
	}
	return tagReturn, result
}
