package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"tabcap/internal/daemon"
	"tabcap/internal/logging"
	"tabcap/internal/logs"
	"tabcap/internal/protocol"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: ctx}
	if err := rpcServer.RegisterName("Tabcap", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun tabcap stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

// rpcError flattens err to its wire code so clients can recover the
// sentinel with protocol.FromCode.
func rpcError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(protocol.Code(err))
}

func (s *service) StartDaemon(_ StartDaemonRequest, resp *StartDaemonResponse) error {
	s.logger.Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	return nil
}

func (s *service) StopDaemon(_ StopDaemonRequest, resp *StopDaemonResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.LockPath = status.LockPath
	resp.JournalPath = status.JournalPath
	resp.Authenticated = status.Authenticated
	resp.DeviceMonitor = status.DeviceMonitor
	resp.Sessions = make([]SessionInfo, 0, len(status.Sessions))
	now := time.Now()
	for _, sess := range status.Sessions {
		resp.Sessions = append(resp.Sessions, SessionInfo{
			TabID:     sess.TabID,
			Title:     sess.Meta.Title,
			Platform:  string(sess.Meta.Platform),
			State:     string(sess.State),
			StartedAt: sess.StartedAt,
			Duration:  sess.Duration(now).Seconds(),
		})
	}
	if len(status.JournalStats) > 0 {
		resp.JournalStats = make(map[string]int, len(status.JournalStats))
		for outcome, count := range status.JournalStats {
			resp.JournalStats[string(outcome)] = count
		}
	}
	return nil
}

func (s *service) RecordStart(req RecordStartRequest, resp *RecordStartResponse) error {
	s.logger.Debug("record start requested", logging.Int(logging.FieldTab, req.TabID))
	if err := s.daemon.StartRecording(s.ctx, req.TabID); err != nil {
		return rpcError(err)
	}
	if meta, err := s.daemon.MeetingInfo(s.ctx, req.TabID); err == nil {
		resp.Title = meta.Title
		resp.Platform = string(meta.Platform)
	}
	return nil
}

func (s *service) RecordStop(req RecordStopRequest, resp *RecordStopResponse) error {
	s.logger.Debug("record stop requested", logging.Int(logging.FieldTab, req.TabID))
	if err := s.daemon.StopRecording(s.ctx, req.TabID); err != nil {
		return rpcError(err)
	}
	resp.Stopped = true
	return nil
}

func (s *service) RecordReset(req RecordResetRequest, resp *RecordResetResponse) error {
	s.logger.Debug("record reset requested", logging.Int(logging.FieldTab, req.TabID))
	s.daemon.ForceStop(req.TabID)
	resp.Reset = true
	return nil
}

func (s *service) MeetingInfo(req MeetingInfoRequest, resp *MeetingInfoResponse) error {
	view, err := s.daemon.Resolve(s.ctx, req.TabID)
	if err != nil {
		return rpcError(err)
	}
	resp.View = string(view.State)
	resp.Meta = view.Meta
	resp.Level = view.Level
	resp.Duration = view.Duration.Seconds()
	return nil
}

func (s *service) JournalList(req JournalListRequest, resp *JournalListResponse) error {
	entries, err := s.daemon.JournalList(s.ctx, req.Limit)
	if err != nil {
		return rpcError(err)
	}
	resp.Entries = make([]JournalEntry, 0, len(entries))
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, JournalEntry{
			ID:              entry.ID,
			TabID:           entry.TabID,
			Title:           entry.Title,
			Platform:        string(entry.Platform),
			MeetingURL:      entry.MeetingURL,
			DurationSeconds: entry.DurationSeconds,
			SizeBytes:       entry.SizeBytes,
			Outcome:         string(entry.Outcome),
			UploadID:        entry.UploadID,
			UploadError:     entry.UploadError,
			CreatedAt:       entry.CreatedAt,
		})
	}
	return nil
}

func (s *service) JournalClear(_ JournalClearRequest, resp *JournalClearResponse) error {
	removed, err := s.daemon.JournalClear(s.ctx)
	if err != nil {
		return rpcError(err)
	}
	resp.Removed = removed
	s.logger.Info("journal cleared",
		logging.String(logging.FieldEventType, "journal_clear"),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		resp.Offset = 0
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}
