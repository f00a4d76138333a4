// Package pprof serves runtime profiles on localhost while a command runs.
package pprof

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
)

// Server exposes the net/http/pprof handlers on a loopback listener.
type Server struct {
	log    *slog.Logger
	server *http.Server
	port   int
}

// NewServer returns an unstarted server. A nil logger discards output.
func NewServer(log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Server{log: log}
}

// Start listens on 127.0.0.1:port, or a free port when port is 0, and
// returns the bound port.
func (s *Server) Start(port int) (int, error) {
	if s.server != nil {
		return 0, errors.New("pprof server already started")
	}
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("bind to %s: %w", addr, err)
	}
	s.port = ln.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	srv := &http.Server{Handler: mux}
	s.server = srv

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("pprof server stopped", "error", err)
		}
	}()
	s.log.Debug("pprof server listening", "port", s.port)
	return s.port, nil
}

// Port returns the bound port, or 0 before Start.
func (s *Server) Port() int {
	return s.port
}

// Stop shuts the server down. Stopping an unstarted server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.server = nil
	return err
}

// PrintUsage prints go tool pprof commands for the running server.
func PrintUsage(w io.Writer, port int) {
	base := fmt.Sprintf("http://127.0.0.1:%d/debug/pprof", port)
	fmt.Fprintf(w, "pprof server: %s/\n", base)
	fmt.Fprintf(w, "  go tool pprof %s/profile?seconds=30\n", base)
	fmt.Fprintf(w, "  go tool pprof %s/heap\n", base)
	fmt.Fprintf(w, "  curl %s/goroutine?debug=2\n", base)
}
