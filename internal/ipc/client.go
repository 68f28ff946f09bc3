package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"time"
)

const clientTimeout = 5 * time.Second

// Send delivers cmd to the daemon listening on socketPath and returns its
// response. A response with Success=false is returned as-is, not as an error.
func Send(socketPath string, cmd Command) (Response, error) {
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		return Response{}, fmt.Errorf("connect to daemon socket %s: %w", socketPath, err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(clientTimeout))

	if err := json.NewEncoder(conn).Encode(cmd); err != nil {
		return Response{}, fmt.Errorf("send command %s: %w", cmd.Name, err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("read response to %s: %w", cmd.Name, err)
	}
	return resp, nil
}
