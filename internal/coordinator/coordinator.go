package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tabcap/internal/config"
	"tabcap/internal/journal"
	"tabcap/internal/logging"
	"tabcap/internal/meeting"
	"tabcap/internal/msgbus"
	"tabcap/internal/protocol"
	"tabcap/internal/session"
	"tabcap/internal/uploader"
)

// Coordinator is the process-wide authority for which tabs are recording.
// It owns the session registry, mediates every cross-context command, and
// performs the upload once a recording finishes.
type Coordinator struct {
	cfg      *config.Config
	logger   *slog.Logger
	bus      *msgbus.Bus
	registry *session.Registry
	uploads  uploader.Service
	journal  *journal.Store
	now      func() time.Time
}

// Option configures optional coordinator behavior.
type Option func(*Coordinator)

// WithClock overrides time acquisition, used in tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New constructs the coordinator. journalStore may be nil; recordings then
// finish without local history.
func New(cfg *config.Config, bus *msgbus.Bus, uploads uploader.Service, journalStore *journal.Store, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "coordinator"),
		bus:      bus,
		registry: session.NewRegistry(),
		uploads:  uploads,
		journal:  journalStore,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) commandTimeout() time.Duration {
	return time.Duration(c.cfg.Timeouts.Command) * time.Second
}

// StartRecording registers a session for the tab and commands the capture
// engine to begin. The session is only visible in the registry while the
// start is healthy: any failure removes it again, so a failed start never
// leaves a partially registered tab behind.
func (c *Coordinator) StartRecording(ctx context.Context, tabID int, streamID string, meta meeting.Metadata) error {
	log := c.logger.With(logging.Int(logging.FieldTab, tabID))

	sess := &session.Session{
		TabID:    tabID,
		StreamID: streamID,
		Meta:     meta,
		State:    session.StateStarting,
	}
	if err := c.registry.Register(sess); err != nil {
		log.Debug("start rejected; session already active")
		return err
	}

	_, err := c.bus.Request(ctx, protocol.ContextCoordinator, protocol.ContextCapture,
		protocol.StartRecording{TabID: tabID, StreamID: streamID, Meta: meta},
		c.commandTimeout())
	if err != nil {
		c.registry.Remove(tabID)
		log.Error("capture start failed", logging.Error(err))
		return err
	}

	if err := c.registry.MarkRecording(tabID, c.now()); err != nil {
		// A force-stop raced the start; make sure the engine lets go too.
		c.bus.Notify(protocol.ContextCoordinator, protocol.ContextCapture, protocol.DropSession{TabID: tabID})
		return err
	}

	c.bus.Notify(protocol.ContextCoordinator, protocol.ContextBridge, protocol.RecordingStarted{TabID: tabID})
	log.Info("recording session started",
		logging.String("title", meta.Title),
		logging.String("platform", string(meta.Platform)))
	return nil
}

// StopRecording finishes the tab's session, uploads the artifact, and
// removes the registry entry. Removal happens on every path; a failed
// upload must never leave a tab stuck in Recording.
func (c *Coordinator) StopRecording(ctx context.Context, tabID int) error {
	return c.finishRecording(ctx, tabID, false)
}

// DiscardRecording finishes the tab's session and drops the artifact
// without uploading.
func (c *Coordinator) DiscardRecording(ctx context.Context, tabID int) error {
	return c.finishRecording(ctx, tabID, true)
}

func (c *Coordinator) finishRecording(ctx context.Context, tabID int, discard bool) error {
	log := c.logger.With(logging.Int(logging.FieldTab, tabID))

	sess, err := c.registry.Get(tabID)
	if err != nil {
		return err
	}
	_ = c.registry.SetState(tabID, session.StateStopping)

	// The registry entry goes away no matter how the rest of this
	// function plays out.
	defer c.registry.Remove(tabID)
	defer c.bus.Notify(protocol.ContextCoordinator, protocol.ContextBridge, protocol.RecordingStopped{TabID: tabID})

	resp, err := c.bus.Request(ctx, protocol.ContextCoordinator, protocol.ContextCapture,
		protocol.StopRecording{TabID: tabID}, c.commandTimeout())
	if err != nil {
		log.Error("capture stop failed", logging.Error(err))
		return err
	}
	complete, ok := resp.(protocol.RecordingComplete)
	if !ok {
		return fmt.Errorf("coordinator: unexpected stop response %T", resp)
	}

	duration := sess.Duration(c.now()).Seconds()
	artifact := uploader.Artifact{
		Audio:           complete.Audio,
		MIMEType:        complete.MIMEType,
		Title:           sess.Meta.Title,
		Platform:        sess.Meta.Platform,
		MeetingURL:      sess.Meta.URL,
		DurationSeconds: duration,
	}

	if discard {
		c.record(ctx, sess, complete, duration, journal.OutcomeDiscarded, "", "")
		log.Info("recording discarded", logging.Float64("duration_s", duration))
		return nil
	}

	uploadID, uploadErr := c.uploads.Upload(ctx, artifact)
	switch {
	case uploadErr != nil:
		c.record(ctx, sess, complete, duration, journal.OutcomeFailed, "", uploadErr.Error())
		log.Error("upload failed; recording not persisted remotely",
			logging.Error(uploadErr),
			logging.String(logging.FieldEventType, "upload_failed"),
			logging.String(logging.FieldImpact, "this recording was not saved to the dashboard"),
			logging.String(logging.FieldErrorHint, "check network and authentication"))
		return fmt.Errorf("upload recording: %w", uploadErr)
	case uploadID == "":
		c.record(ctx, sess, complete, duration, journal.OutcomeLocalOnly, "", "")
		log.Info("recording finished without upload endpoint",
			logging.Float64("duration_s", duration))
	default:
		c.record(ctx, sess, complete, duration, journal.OutcomeUploaded, uploadID, "")
		log.Info("recording uploaded",
			logging.String("recording_id", uploadID),
			logging.Float64("duration_s", duration),
			logging.Int64("bytes", complete.Size))
	}
	return nil
}

func (c *Coordinator) record(ctx context.Context, sess *session.Session, complete protocol.RecordingComplete, duration float64, outcome journal.Outcome, uploadID, uploadErr string) {
	if c.journal == nil {
		return
	}
	_, err := c.journal.Record(ctx, journal.Entry{
		TabID:           sess.TabID,
		Title:           sess.Meta.Title,
		Platform:        sess.Meta.Platform,
		MeetingURL:      sess.Meta.URL,
		DurationSeconds: duration,
		SizeBytes:       complete.Size,
		MIMEType:        complete.MIMEType,
		Outcome:         outcome,
		UploadID:        uploadID,
		UploadError:     uploadErr,
	})
	if err != nil {
		c.logger.Warn("journal write failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "journal_write_failed"),
			logging.String(logging.FieldImpact, "recording history will be incomplete"),
			logging.String(logging.FieldErrorHint, "check journal database permissions"))
	}
}

// ForceStop unconditionally clears a tab: registry entry removed, capture
// state dropped, widget hidden. It never fails, even for tabs that were
// never recording: that is the recovery path working as intended.
func (c *Coordinator) ForceStop(tabID int) {
	c.registry.ForceRemove(tabID)
	c.bus.Notify(protocol.ContextCoordinator, protocol.ContextCapture, protocol.DropSession{TabID: tabID})
	c.bus.Notify(protocol.ContextCoordinator, protocol.ContextBridge, protocol.RecordingStopped{TabID: tabID})
	c.logger.Info("force stop", logging.Int(logging.FieldTab, tabID))
}

// Recording reports whether the tab currently has a session.
func (c *Coordinator) Recording(tabID int) bool {
	return c.registry.Exists(tabID)
}

// Sessions returns a snapshot of every active session.
func (c *Coordinator) Sessions() []session.Session {
	return c.registry.Active()
}

// Handler adapts the coordinator to the message bus. Stop-style commands
// include an upload, so they run off the actor goroutine; the actor stays
// responsive to level relays and further commands.
func (c *Coordinator) Handler() msgbus.Handler {
	return func(ctx context.Context, from protocol.Context, msg any) (any, error) {
		switch m := msg.(type) {
		case protocol.StartRecording:
			if err := c.StartRecording(ctx, m.TabID, m.StreamID, m.Meta); err != nil {
				return nil, err
			}
			return protocol.Ack{}, nil
		case protocol.StopRecording:
			if err := c.StopRecording(ctx, m.TabID); err != nil {
				return nil, err
			}
			return protocol.Ack{}, nil
		case protocol.StopRecordingRequest:
			// The ack answers the page; the finish outlives the request
			// and must not die with its deadline.
			finishCtx := context.WithoutCancel(ctx)
			go func() {
				if err := c.StopRecording(finishCtx, m.TabID); err != nil {
					c.logger.Warn("page-initiated stop failed",
						logging.Int(logging.FieldTab, m.TabID),
						logging.Error(err))
				}
			}()
			return protocol.Ack{}, nil
		case protocol.DiscardRecordingRequest:
			finishCtx := context.WithoutCancel(ctx)
			go func() {
				if err := c.DiscardRecording(finishCtx, m.TabID); err != nil {
					c.logger.Warn("page-initiated discard failed",
						logging.Int(logging.FieldTab, m.TabID),
						logging.Error(err))
				}
			}()
			return protocol.Ack{}, nil
		case protocol.AudioLevel:
			// Cosmetic relay: the popup may be closed, delivery failure
			// is ignored.
			c.bus.Notify(protocol.ContextCoordinator, protocol.ContextPopup, m)
			return protocol.Ack{}, nil
		default:
			return nil, fmt.Errorf("coordinator: unexpected message %T from %s", msg, from)
		}
	}
}
