package auth

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"tabcap/internal/logging"
	"tabcap/internal/protocol"
)

// Provider reads the bearer token the dashboard session wrote to disk and
// keeps it fresh. Token refresh happens out-of-band (the dashboard rewrites
// the file); the watcher picks up the change without a daemon restart.
type Provider struct {
	path   string
	logger *slog.Logger

	mu    sync.RWMutex
	token string

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewProvider constructs a provider for the given token file path and
// performs the initial load. A missing file is not an error at this stage;
// it just means not-authenticated until the file appears.
func NewProvider(path string, logger *slog.Logger) *Provider {
	p := &Provider{
		path:   path,
		logger: logging.NewComponentLogger(logger, "auth"),
		done:   make(chan struct{}),
	}
	p.reload()
	return p
}

// Token returns the current bearer token or ErrNotAuthenticated.
func (p *Provider) Token() (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.token == "" {
		return "", protocol.ErrNotAuthenticated
	}
	return p.token, nil
}

// Authenticated reports whether a token is currently loaded.
func (p *Provider) Authenticated() bool {
	_, err := p.Token()
	return err == nil
}

func (p *Provider) reload() {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			p.logger.Warn("failed to read token file",
				logging.String("path", p.path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "token_read_failed"),
				logging.String(logging.FieldImpact, "uploads will fail until the token is readable"),
				logging.String(logging.FieldErrorHint, "check token file permissions"))
		}
		p.mu.Lock()
		p.token = ""
		p.mu.Unlock()
		return
	}

	token := strings.TrimSpace(string(data))
	p.mu.Lock()
	changed := token != p.token
	p.token = token
	p.mu.Unlock()
	if changed {
		p.logger.Info("auth token loaded",
			logging.Bool("present", token != ""),
			logging.String(logging.FieldEventType, "token_loaded"))
	}
}

// Watch follows the token file for rewrites until ctx is done. The watch
// is on the parent directory because session refresh typically replaces
// the file rather than writing in place. Watch failure is non-fatal: the
// token still loads at startup, it just goes stale on refresh.
func (p *Provider) Watch(ctx context.Context) error {
	if p.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		p.logger.Warn("token watcher unavailable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "token_watch_failed"),
			logging.String(logging.FieldImpact, "token refresh requires a daemon restart"),
			logging.String(logging.FieldErrorHint, "check inotify limits"))
		return nil
	}

	dir := filepath.Dir(p.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		p.logger.Warn("token directory not watchable",
			logging.String("dir", dir),
			logging.Error(err),
			logging.String(logging.FieldEventType, "token_watch_failed"),
			logging.String(logging.FieldImpact, "token refresh requires a daemon restart"),
			logging.String(logging.FieldErrorHint, "create the directory and restart the daemon"))
		return nil
	}

	p.watcher = watcher
	go p.watchLoop(ctx)
	return nil
}

func (p *Provider) watchLoop(ctx context.Context) {
	defer close(p.done)
	defer p.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(p.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				p.reload()
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Debug("token watcher error", logging.Error(err))
		}
	}
}
