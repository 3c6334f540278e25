package ipc

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/bisyncd/bisyncd/internal/config"
)

// clientTimeout bounds how long a CLI client waits for a control-socket
// round trip, matching original_source/daemon_functions.py's
// client.settimeout(5) for STATUS.
const clientTimeout = 5 * time.Second

// DefaultStatusSocketPath and DefaultAddSyncSocketPath are the fixed socket
// paths the CLI dials, mirroring the Python original's fixed /tmp paths but
// rooted under the cache dir so multiple users on one host don't collide.
func DefaultStatusSocketPath() string {
	return config.DefaultCacheDir() + "/status.sock"
}

func DefaultAddSyncSocketPath() string {
	return config.DefaultCacheDir() + "/add_sync.sock"
}

// dialControl opens a connection to the status/control socket, sends a
// single command line, and returns the full response body.
func dialControl(socketPath, command string) ([]byte, error) {
	conn, err := net.DialTimeout("unix", socketPath, clientTimeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to daemon control socket: %w", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(clientTimeout))
	if _, err := conn.Write([]byte(command + "\n")); err != nil {
		return nil, fmt.Errorf("sending %s command: %w", command, err)
	}

	body, err := io.ReadAll(conn)
	if err != nil {
		return nil, fmt.Errorf("reading daemon response: %w", err)
	}
	return body, nil
}

// FetchStatus sends STATUS and decodes the response into a StatusReport.
func FetchStatus(socketPath string) (*StatusReport, error) {
	body, err := dialControl(socketPath, "STATUS")
	if err != nil {
		return nil, err
	}
	var report StatusReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("decoding status response: %w", err)
	}
	return &report, nil
}

// SendStop sends STOP and returns the daemon's acknowledgement message.
func SendStop(socketPath string) (string, error) {
	body, err := dialControl(socketPath, "STOP")
	if err != nil {
		return "", err
	}
	var resp jsonResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decoding stop response: %w", err)
	}
	return resp.Message, nil
}

// SendReload sends RELOAD and reports whether the daemon accepted it, plus
// an error message on failure.
func SendReload(socketPath string) (ok bool, message string, err error) {
	body, dialErr := dialControl(socketPath, "RELOAD")
	if dialErr != nil {
		return false, "", dialErr
	}
	var resp jsonResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, "", fmt.Errorf("decoding reload response: %w", err)
	}
	return resp.Status == "success", resp.Message, nil
}

// SendAddSync asks a running daemon to enqueue jobKey via the add-sync
// socket, mirroring the Python CLI's add-sync client.
func SendAddSync(socketPath, jobKey string, forceBisync bool) error {
	conn, err := net.DialTimeout("unix", socketPath, clientTimeout)
	if err != nil {
		return fmt.Errorf("connecting to daemon add-sync socket: %w", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(clientTimeout))
	req := addSyncRequest{JobKey: jobKey, ForceBisync: forceBisync}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding add-sync request: %w", err)
	}
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("sending add-sync request: %w", err)
	}

	body, err := io.ReadAll(conn)
	if err != nil {
		return fmt.Errorf("reading add-sync response: %w", err)
	}
	resp := string(body)
	if resp != "OK" {
		return fmt.Errorf("daemon rejected add-sync: %s", resp)
	}
	return nil
}
