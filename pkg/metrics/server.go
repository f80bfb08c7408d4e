package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Server exposes /metrics on a dedicated listener, for `docsearch build`
// and for `docsearch serve` when metrics.enabled moves scraping off the API
// port.
type Server struct {
	http     *http.Server
	listener net.Listener
}

// Serve binds addr before returning, so a taken port fails the command
// instead of a background goroutine. component names the process on the
// landing page.
func Serve(addr, component string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler())
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><body><h1>docsearch %s</h1><p><a href="/metrics">/metrics</a></p></body></html>`, component)
	})
	s := &Server{
		http: &http.Server{
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		listener: ln,
	}
	go func() {
		slog.Info("metrics server listening", "addr", ln.Addr().String(), "component", component)
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()
	return s, nil
}

// Addr is the bound address, useful when addr asked for port 0.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
