package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ognjhunt/blueprintxr/internal/anchor"
	"github.com/ognjhunt/blueprintxr/internal/domain"
)

const (
	statusInitializing = "Starting AR session..."
	statusReady        = "AR session ready"
	statusArmed        = "Tap to place an anchor"
	statusPlaced       = "Anchor created"
	statusSaving       = "Saving anchor..."
	statusSaved        = "Anchor saved"
	statusDownloading  = "Downloading anchors..."
	statusUnpersisted  = "Anchor no longer persisted"
	statusRemoved      = "Anchor removed"
	statusPaused       = "AR session paused"
	statusResumed      = "AR session resumed"

	defaultAnchorName = "Anchor"
)

func (c *Coordinator) handleInit(cmd initCmd) {
	if c.state == domain.SessionReady {
		respond(cmd.reply, none{}, nil)
		return
	}
	c.initWaiters = append(c.initWaiters, cmd.reply)
	if c.initializing {
		return
	}

	c.initializing = true
	c.setState(domain.SessionInitializing, "")
	c.status = statusInitializing
	c.publish()

	c.worker(cmd.ctx, func(ctx context.Context) {
		err := c.session.Init(ctx)
		c.complete(func() { c.finishInit(ctx, err) }, nil)
	})
}

func (c *Coordinator) finishInit(ctx context.Context, err error) {
	c.initializing = false
	c.recorder.Operation("init", err)

	if err != nil {
		c.setState(domain.SessionError, err.Error())
		c.status = "AR unavailable: " + err.Error()
		c.logger.WarnContext(ctx, "AR session initialization failed", "error", err)
	} else {
		c.setState(domain.SessionReady, "")
		c.status = statusReady
		c.logger.InfoContext(ctx, "AR session ready")
	}

	for _, w := range c.initWaiters {
		respond(w, none{}, err)
	}
	c.initWaiters = nil
	c.publish()
}

func (c *Coordinator) handleToggle(cmd toggleCmd) {
	if c.state != domain.SessionReady {
		fail(cmd.reply, domain.ErrNotReady)
		return
	}

	if c.mode == domain.PlacementIdle {
		c.mode = domain.PlacementArmed
		c.status = statusArmed
	} else {
		c.mode = domain.PlacementIdle
		c.status = ""
	}
	c.publish()
	respond(cmd.reply, c.mode, nil)
}

// handlePlace runs on the actor: camera pose and anchor creation are short engine calls.
func (c *Coordinator) handlePlace(cmd placeCmd) {
	switch {
	case c.state != domain.SessionReady:
		fail(cmd.reply, domain.ErrNotReady)
		return
	case c.mode != domain.PlacementArmed:
		fail(cmd.reply, domain.ErrPlacementNotArmed)
		return
	}

	camera, err := c.session.CurrentPose()
	if err != nil {
		c.failOp(cmd.ctx, "place", "Could not read camera pose", err)
		fail(cmd.reply, err)
		return
	}
	h, err := c.gateway.Create(camera.Forward(c.cfg.PlacementDistance))
	if err != nil {
		c.failOp(cmd.ctx, "place", "Could not place anchor", err)
		fail(cmd.reply, err)
		return
	}

	localID := c.store.Register(h, cmd.containerID)
	c.mode = domain.PlacementIdle
	c.status = statusPlaced
	c.recorder.Operation("place", nil)
	c.logger.DebugContext(cmd.ctx, "Anchor placed", "local_id", localID, "container_id", cmd.containerID)
	c.publish()

	respond(cmd.reply, PlaceResult{LocalID: localID, AnchorData: h.Data()}, nil)
}

func (c *Coordinator) handlePersist(cmd persistCmd) {
	if c.state != domain.SessionReady {
		fail(cmd.reply, domain.ErrNotReady)
		return
	}
	info, ok := c.store.Get(cmd.localID)
	if !ok {
		err := fmt.Errorf("persist %s: %w", cmd.localID, domain.ErrAnchorNotFound)
		c.failOp(cmd.ctx, "persist", "Anchor not found", err)
		fail(cmd.reply, err)
		return
	}
	if cmd.containerID == "" {
		cmd.containerID = info.ContainerID
	}
	if cmd.name == "" {
		cmd.name = defaultAnchorName
	}

	c.status = statusSaving
	c.publish()

	// A persisted anchor keeps its id; only the record is written again.
	if info.IsPersisted && info.PersistentID != nil {
		c.persisted(cmd.ctx, cmd, *info.PersistentID, nil)
		return
	}

	c.worker(cmd.ctx, func(ctx context.Context) {
		pid, err := c.gateway.Persist(cmd.localID)
		c.complete(
			func() { c.persisted(ctx, cmd, pid, err) },
			func() { fail(cmd.reply, domain.ErrCoordinatorClosed) },
		)
	})
}

func (c *Coordinator) persisted(ctx context.Context, cmd persistCmd, pid uuid.UUID, err error) {
	if err == nil {
		err = c.store.MarkPersisted(cmd.localID, pid)
	}
	if err != nil {
		c.failOp(ctx, "persist", "Failed to persist anchor", err)
		fail(cmd.reply, err)
		return
	}
	c.recorder.Operation("persist", nil)

	pose, _ := c.store.Pose(cmd.localID)
	rec := domain.AnchorRecord{
		ID:          pid.String(),
		ContainerID: cmd.containerID,
		Name:        cmd.name,
		Position:    pose.Position,
		Rotation:    pose.Rotation,
		Scale:       domain.UnitScale(),
		CreatedBy:   c.cfg.CreatedBy,
		AnchorData:  pid.String(),
	}
	c.publish()

	c.worker(ctx, func(ctx context.Context) {
		rctx, cancel := context.WithTimeout(ctx, c.cfg.RemoteTimeout)
		defer cancel()
		err := c.repo.SaveAnchor(rctx, rec)
		c.complete(
			func() { c.saved(ctx, cmd, rec, err) },
			func() { fail(cmd.reply, domain.ErrCoordinatorClosed) },
		)
	})
}

func (c *Coordinator) saved(ctx context.Context, cmd persistCmd, rec domain.AnchorRecord, err error) {
	if err != nil {
		c.failOp(ctx, "save", "Anchor persisted but not saved", err)
		fail(cmd.reply, err)
		return
	}
	c.recorder.Operation("save", nil)
	c.status = statusSaved
	c.logger.DebugContext(ctx, "Anchor saved", "anchor_id", rec.ID, "container_id", rec.ContainerID)
	c.publish()
	respond(cmd.reply, rec, nil)
}

// resolvedAnchor is a record whose anchor was loaded by a worker. A zero handle
// means the persistent id was already bound locally.
type resolvedAnchor struct {
	recordID     string
	containerID  string
	persistentID uuid.UUID
	handle       anchor.Handle
}

func (c *Coordinator) handleDownload(cmd downloadCmd) {
	if c.state != domain.SessionReady {
		fail(cmd.reply, domain.ErrNotReady)
		return
	}

	c.downloads++
	c.status = statusDownloading
	c.publish()

	c.worker(cmd.ctx, func(ctx context.Context) { c.download(ctx, cmd) })
}

// download runs on a worker goroutine.
func (c *Coordinator) download(ctx context.Context, cmd downloadCmd) {
	rctx, cancel := context.WithTimeout(ctx, c.cfg.RemoteTimeout)
	defer cancel()

	closed := func() { fail(cmd.reply, domain.ErrCoordinatorClosed) }
	report := DownloadReport{Failed: []string{}}

	var records []domain.AnchorRecord
	if len(cmd.ids) == 0 {
		recs, err := c.repo.GetAnchorsForContainer(rctx, cmd.containerID)
		if err != nil {
			c.complete(func() { c.downloadFailed(ctx, cmd, err) }, closed)
			return
		}
		records = recs
		report.Requested = len(recs)
	} else {
		report.Requested = len(cmd.ids)
		for _, id := range cmd.ids {
			rec, err := c.repo.GetAnchor(rctx, id)
			if err != nil || rec == nil {
				c.logger.DebugContext(ctx, "Skipping anchor record", "anchor_id", id, "error", err)
				report.Failed = append(report.Failed, id)
				continue
			}
			records = append(records, *rec)
		}
	}

	var loaded []resolvedAnchor
	for _, rec := range records {
		if rec.AnchorData == "" {
			continue
		}
		containerID := rec.ContainerID
		if containerID == "" {
			containerID = cmd.containerID
		}

		pid, err := uuid.Parse(rec.AnchorData)
		if err != nil {
			c.logger.DebugContext(ctx, "Invalid anchor data", "anchor_id", rec.ID, "error", err)
			report.Failed = append(report.Failed, rec.ID)
			continue
		}
		if _, ok := c.store.LocalIDFor(pid); ok {
			loaded = append(loaded, resolvedAnchor{recordID: rec.ID, containerID: containerID, persistentID: pid})
			continue
		}
		h, err := c.gateway.Load(pid)
		if err != nil {
			c.logger.DebugContext(ctx, "Failed to resolve anchor", "anchor_id", rec.ID, "error", err)
			report.Failed = append(report.Failed, rec.ID)
			continue
		}
		loaded = append(loaded, resolvedAnchor{recordID: rec.ID, containerID: containerID, persistentID: pid, handle: h})
	}

	c.complete(
		func() { c.resolved(ctx, cmd, report, loaded) },
		func() {
			for _, l := range loaded {
				c.gateway.Discard(l.handle)
			}
			closed()
		},
	)
}

func (c *Coordinator) resolved(ctx context.Context, cmd downloadCmd, report DownloadReport, loaded []resolvedAnchor) {
	added := 0
	for _, l := range loaded {
		if l.handle.IsZero() {
			report.Resolved++
			continue
		}
		if _, ok := c.store.LocalIDFor(l.persistentID); ok {
			// Resolved by a concurrent download.
			c.gateway.Discard(l.handle)
			report.Resolved++
			continue
		}
		localID := c.store.Register(l.handle, l.containerID)
		if err := c.store.MarkPersisted(localID, l.persistentID); err != nil {
			c.store.Release(localID)
			report.Failed = append(report.Failed, l.recordID)
			continue
		}
		report.Resolved++
		added++
	}

	c.downloads--
	c.status = fmt.Sprintf("Downloaded %d anchors", report.Resolved)
	c.recorder.Operation("download", nil)
	c.recorder.AnchorsResolved(added)
	c.logger.InfoContext(ctx, "Anchors downloaded",
		"container_id", cmd.containerID,
		"requested", report.Requested,
		"resolved", report.Resolved,
		"failed", len(report.Failed),
	)
	c.publish()
	respond(cmd.reply, report, nil)
}

func (c *Coordinator) downloadFailed(ctx context.Context, cmd downloadCmd, err error) {
	c.downloads--
	c.failOp(ctx, "download", "Failed to download anchors", err)
	fail(cmd.reply, err)
}

func (c *Coordinator) handleUnpersist(cmd unpersistCmd) {
	if c.state != domain.SessionReady {
		fail(cmd.reply, domain.ErrNotReady)
		return
	}
	info, ok := c.store.Get(cmd.localID)
	if !ok {
		fail(cmd.reply, fmt.Errorf("unpersist %s: %w", cmd.localID, domain.ErrAnchorNotFound))
		return
	}
	if !info.IsPersisted || info.PersistentID == nil {
		fail(cmd.reply, fmt.Errorf("unpersist %s: %w", cmd.localID, domain.ErrNotPersisted))
		return
	}
	pid := *info.PersistentID

	c.worker(cmd.ctx, func(ctx context.Context) {
		err := c.gateway.Unpersist(pid)
		c.complete(
			func() { c.unpersisted(ctx, cmd, pid, err) },
			func() { fail(cmd.reply, domain.ErrCoordinatorClosed) },
		)
	})
}

func (c *Coordinator) unpersisted(ctx context.Context, cmd unpersistCmd, pid uuid.UUID, err error) {
	if err != nil {
		c.failOp(ctx, "unpersist", "Failed to unpersist anchor", err)
		fail(cmd.reply, err)
		return
	}
	c.store.UnmarkPersisted(pid)
	c.recorder.Operation("unpersist", nil)
	c.status = statusUnpersisted
	c.publish()
	respond(cmd.reply, none{}, nil)
}

func (c *Coordinator) handleRemove(cmd removeCmd) {
	if !c.store.Release(cmd.localID) {
		fail(cmd.reply, fmt.Errorf("remove %s: %w", cmd.localID, domain.ErrAnchorNotFound))
		return
	}
	c.recorder.Operation("remove", nil)
	c.status = statusRemoved
	c.publish()
	respond(cmd.reply, none{}, nil)
}

func (c *Coordinator) handleTracking(cmd trackingCmd) {
	if c.state != domain.SessionReady {
		fail(cmd.reply, domain.ErrNotReady)
		return
	}

	op, status, call := "resume", statusResumed, c.session.Resume
	if cmd.pause {
		op, status, call = "pause", statusPaused, c.session.Pause
	}
	if err := call(); err != nil {
		c.failOp(context.Background(), op, "Could not "+op+" AR session", err)
		fail(cmd.reply, err)
		return
	}

	c.store.UpdateTrackingStates()
	c.recorder.Operation(op, nil)
	c.status = status
	c.publish()
	respond(cmd.reply, none{}, nil)
}

// failOp reports a recoverable operation failure through the status line.
func (c *Coordinator) failOp(ctx context.Context, op, status string, err error) {
	c.recorder.Operation(op, err)
	c.status = fmt.Sprintf("%s: %v", status, err)
	c.logger.WarnContext(ctx, "Anchor operation failed", "op", op, "error", err)
	c.publish()
}

func (c *Coordinator) setState(state domain.SessionState, reason string) {
	if state != c.state {
		c.recorder.SessionTransition(state.String())
	}
	c.state = state
	c.reason = reason
	if state != domain.SessionReady {
		c.mode = domain.PlacementIdle
	}
}

func (c *Coordinator) publish() {
	c.version++
	snap := c.buildSnapshot()
	c.current.Store(snap)
	c.subs.publish(*snap)
}

func (c *Coordinator) buildSnapshot() *Snapshot {
	snap := &Snapshot{
		Version:     c.version,
		State:       c.state,
		Reason:      c.reason,
		Placement:   c.mode,
		Status:      c.status,
		Downloading: c.downloads > 0,
		Anchors:     c.store.Snapshot(),
	}
	if c.userPos != nil {
		pos := *c.userPos
		snap.UserPosition = &pos
	}
	return snap
}
