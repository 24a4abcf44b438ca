package msgbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"tabcap/internal/logging"
	"tabcap/internal/protocol"
)

const inboxCapacity = 64

// Handler processes one inbound message for a context. Handlers run on the
// context's single actor goroutine, so they never race with themselves.
// The returned message answers a Request; it is discarded for notifications.
type Handler func(ctx context.Context, from protocol.Context, msg any) (any, error)

type outcome struct {
	msg any
	err error
}

type envelope struct {
	id       string
	from     protocol.Context
	msg      any
	reply    chan outcome // nil for notifications
	deadline time.Time    // zero for notifications
}

// Bus routes typed messages between registered contexts. Each context gets
// one buffered inbox drained by one goroutine; delivery is the only way
// contexts interact and is never assumed to succeed.
type Bus struct {
	logger *slog.Logger

	mu      sync.RWMutex
	inboxes map[protocol.Context]chan envelope
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a bus whose actors stop when ctx is canceled or Close runs.
func New(ctx context.Context, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = logging.NewNop()
	}
	busCtx, cancel := context.WithCancel(ctx)
	return &Bus{
		logger:  logging.NewComponentLogger(logger, "msgbus"),
		inboxes: make(map[protocol.Context]chan envelope),
		ctx:     busCtx,
		cancel:  cancel,
	}
}

// Register attaches a handler as the named context and starts its actor
// goroutine. Registering the same name twice replaces nothing and fails.
func (b *Bus) Register(name protocol.Context, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New("msgbus: bus is closed")
	}
	if _, exists := b.inboxes[name]; exists {
		return fmt.Errorf("msgbus: context %q already registered", name)
	}
	inbox := make(chan envelope, inboxCapacity)
	b.inboxes[name] = inbox

	b.wg.Add(1)
	go b.runActor(name, inbox, handler)
	return nil
}

func (b *Bus) runActor(name protocol.Context, inbox chan envelope, handler Handler) {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case env := <-inbox:
			// The handler context carries the requester's deadline. A
			// handler that blocks past it gives up instead of wedging the
			// actor for every later message.
			handlerCtx := b.ctx
			var cancel context.CancelFunc
			if !env.deadline.IsZero() {
				handlerCtx, cancel = context.WithDeadline(b.ctx, env.deadline)
			}
			resp, err := handler(handlerCtx, env.from, env.msg)
			if cancel != nil {
				cancel()
			}
			if env.reply != nil {
				// Reply channels have capacity 1, so this never blocks the
				// actor even when the requester already timed out.
				select {
				case env.reply <- outcome{msg: resp, err: err}:
				default:
				}
			} else if err != nil {
				b.logger.Debug("notification handler failed",
					logging.String("context", string(name)),
					logging.Error(err))
			}
		}
	}
}

// Request sends msg to the named context and waits for its reply. It fails
// with ErrNoReceiver when the context is not registered and
// ErrRequestTimeout when no reply arrives within timeout; a receiver that
// is gone or wedged must produce a deterministic outcome for the caller.
func (b *Bus) Request(ctx context.Context, from, to protocol.Context, msg any, timeout time.Duration) (any, error) {
	inbox := b.inbox(to)
	if inbox == nil {
		return nil, protocol.Wrap(string(from), "request "+string(to), protocol.ErrNoReceiver)
	}

	env := envelope{
		id:       uuid.NewString(),
		from:     from,
		msg:      msg,
		reply:    make(chan outcome, 1),
		deadline: time.Now().Add(timeout),
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case inbox <- env:
	case <-timer.C:
		return nil, protocol.Wrap(string(from), "enqueue to "+string(to), protocol.ErrRequestTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.ctx.Done():
		return nil, protocol.Wrap(string(from), "request "+string(to), protocol.ErrNoReceiver)
	}

	select {
	case out := <-env.reply:
		return out.msg, out.err
	case <-timer.C:
		return nil, protocol.Wrap(string(from), "await "+string(to), protocol.ErrRequestTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.ctx.Done():
		return nil, protocol.Wrap(string(from), "await "+string(to), protocol.ErrNoReceiver)
	}
}

// Notify delivers msg best-effort without waiting for processing. The
// return value reports whether the message was enqueued; callers treating
// notifications as cosmetic are expected to ignore it.
func (b *Bus) Notify(from, to protocol.Context, msg any) bool {
	inbox := b.inbox(to)
	if inbox == nil {
		return false
	}
	env := envelope{id: uuid.NewString(), from: from, msg: msg}
	select {
	case inbox <- env:
		return true
	default:
		b.logger.Debug("notification dropped",
			logging.String("from", string(from)),
			logging.String("to", string(to)))
		return false
	}
}

func (b *Bus) inbox(name protocol.Context) chan envelope {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	return b.inboxes[name]
}

// Close stops all actors and waits for them to drain.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
}
