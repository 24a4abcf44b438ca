package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// StartDaemon requests the daemon to bring the pipeline up.
func (c *Client) StartDaemon() (*StartDaemonResponse, error) {
	var resp StartDaemonResponse
	if err := c.client.Call("Tabcap.StartDaemon", StartDaemonRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StopDaemon requests the daemon to tear the pipeline down.
func (c *Client) StopDaemon() (*StopDaemonResponse, error) {
	var resp StopDaemonResponse
	if err := c.client.Call("Tabcap.StopDaemon", StopDaemonRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Tabcap.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordStart starts recording the given tab.
func (c *Client) RecordStart(tabID int) (*RecordStartResponse, error) {
	var resp RecordStartResponse
	if err := c.client.Call("Tabcap.RecordStart", RecordStartRequest{TabID: tabID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordStop stops recording the given tab, upload included.
func (c *Client) RecordStop(tabID int) (*RecordStopResponse, error) {
	var resp RecordStopResponse
	if err := c.client.Call("Tabcap.RecordStop", RecordStopRequest{TabID: tabID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordReset force-clears recording state for the given tab.
func (c *Client) RecordReset(tabID int) (*RecordResetResponse, error) {
	var resp RecordResetResponse
	if err := c.client.Call("Tabcap.RecordReset", RecordResetRequest{TabID: tabID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MeetingInfo resolves the popup view for the given tab.
func (c *Client) MeetingInfo(tabID int) (*MeetingInfoResponse, error) {
	var resp MeetingInfoResponse
	if err := c.client.Call("Tabcap.MeetingInfo", MeetingInfoRequest{TabID: tabID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JournalList returns recent journal entries, newest first.
func (c *Client) JournalList(limit int) (*JournalListResponse, error) {
	var resp JournalListResponse
	if err := c.client.Call("Tabcap.JournalList", JournalListRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JournalClear removes all journal entries.
func (c *Client) JournalClear() (*JournalClearResponse, error) {
	var resp JournalClearResponse
	if err := c.client.Call("Tabcap.JournalClear", JournalClearRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("Tabcap.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
