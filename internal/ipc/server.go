// Package ipc implements the Lock & IPC Endpoints' socket half (C3) and
// the Control Server (C7): two Unix-domain-socket listeners speaking a
// newline-terminated text command protocol on the status socket and a
// JSON enqueue protocol on the add-sync socket, grounded on
// original_source/status_server.py and daemon_functions.py's
// handle_add_sync_request.
package ipc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/bisyncd/bisyncd/internal/corelog"
)

// acceptTimeout bounds how long each listener's Accept blocks so it can
// observe a shutdown request at roughly 1 Hz, per spec.md §5's
// "each accepts with a 1 s timeout" concurrency model.
const acceptTimeout = 1 * time.Second

// Handlers are the supervisor-side callbacks the control plane invokes.
// Keeping them as functions rather than an interface lets the supervisor
// wire closures directly over its own mutex without this package needing
// to know the supervisor's shape.
type Handlers struct {
	// Status builds the current STATUS response.
	Status func() StatusReport
	// Stop requests a graceful shutdown; the response is always success
	// once the signal has been recorded, per spec.md §4.7.
	Stop func()
	// Reload re-validates the on-disk config and swaps it in on success.
	// A non-nil error carries the human-readable reason for the
	// "error" response and leaves the daemon in limbo.
	Reload func() error
	// AddSync enqueues jobKey, applying forceBisync. An error is
	// reported back to the client verbatim.
	AddSync func(jobKey string, forceBisync bool) error
}

// Server owns the two Unix-domain-socket listeners that make up the
// daemon's control plane.
type Server struct {
	log             corelog.Logger
	statusSockPath  string
	addSyncSockPath string
	handlers        Handlers
}

// New binds a Server to the given socket paths. Listening does not start
// until ServeStatus/ServeAddSync are called (conventionally each in its
// own goroutine, matching the Python original's two daemon threads).
func New(statusSockPath, addSyncSockPath string, handlers Handlers, log corelog.Logger) *Server {
	return &Server{
		log:             log,
		statusSockPath:  statusSockPath,
		addSyncSockPath: addSyncSockPath,
		handlers:        handlers,
	}
}

type jsonResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ServeStatus runs the STATUS/STOP/RELOAD control socket's accept loop
// until done is closed, unlinking the socket file on exit.
func (s *Server) ServeStatus(done <-chan struct{}) error {
	ln, err := listenUnix(s.statusSockPath)
	if err != nil {
		return fmt.Errorf("listening on status socket: %w", err)
	}
	defer unlinkSocket(s.statusSockPath)
	defer ln.Close()

	for {
		select {
		case <-done:
			return nil
		default:
		}

		ln.SetDeadline(time.Now().Add(acceptTimeout))
		conn, err := ln.Accept()
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warningf("ipc: status socket accept error: %v", err)
			continue
		}
		s.handleControlConn(conn)
	}
}

func (s *Server) handleControlConn(conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	reader := bufio.NewReader(conn)
	line, _ := reader.ReadString('\n')
	cmd := strings.ToUpper(strings.TrimSpace(line))

	var payload []byte
	switch cmd {
	case "STATUS":
		payload, _ = json.Marshal(s.handlers.Status())
	case "STOP":
		s.handlers.Stop()
		payload, _ = json.Marshal(jsonResponse{Status: "success", Message: "Shutdown signal sent to daemon"})
	case "RELOAD":
		if err := s.handlers.Reload(); err != nil {
			payload, _ = json.Marshal(jsonResponse{Status: "error", Message: err.Error()})
		} else {
			payload, _ = json.Marshal(jsonResponse{Status: "success"})
		}
	default:
		payload, _ = json.Marshal(jsonResponse{Status: "error", Message: "Invalid command"})
	}

	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Write(payload); err != nil {
		s.log.Warningf("ipc: writing control response: %v", err)
	}
}

// addSyncRequest is the add-sync socket's request body.
type addSyncRequest struct {
	JobKey      string `json:"job_key"`
	ForceBisync bool   `json:"force_bisync"`
}

// ServeAddSync runs the add-sync socket's accept loop until done fires.
func (s *Server) ServeAddSync(done <-chan struct{}) error {
	ln, err := listenUnix(s.addSyncSockPath)
	if err != nil {
		return fmt.Errorf("listening on add-sync socket: %w", err)
	}
	defer unlinkSocket(s.addSyncSockPath)
	defer ln.Close()

	for {
		select {
		case <-done:
			return nil
		default:
		}

		ln.SetDeadline(time.Now().Add(acceptTimeout))
		conn, err := ln.Accept()
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warningf("ipc: add-sync socket accept error: %v", err)
			continue
		}
		s.handleAddSyncConn(conn)
	}
}

func (s *Server) handleAddSyncConn(conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		s.log.Warningf("ipc: reading add-sync request: %v", err)
		return
	}

	var req addSyncRequest
	dec := json.NewDecoder(bytes.NewReader(buf[:n]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		conn.Write([]byte(fmt.Sprintf("ERROR: invalid request: %v", err)))
		return
	}

	if err := s.handlers.AddSync(req.JobKey, req.ForceBisync); err != nil {
		conn.Write([]byte(fmt.Sprintf("ERROR: %v", err)))
		return
	}
	conn.Write([]byte("OK"))
}

func listenUnix(path string) (*net.UnixListener, error) {
	if _, err := os.Stat(path); err == nil {
		os.Remove(path)
	}
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, err
	}
	return net.ListenUnix("unix", addr)
}

func unlinkSocket(path string) {
	os.Remove(path)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
