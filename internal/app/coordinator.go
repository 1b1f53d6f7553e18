package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/ognjhunt/blueprintxr/internal/anchor"
	"github.com/ognjhunt/blueprintxr/internal/domain"
	"github.com/ognjhunt/blueprintxr/internal/platform/correlation"
	"github.com/ognjhunt/blueprintxr/internal/tracking"
)

const (
	commandTimeout = 5 * time.Second  // Actor command timeout for state-only commands
	stopTimeout    = 10 * time.Second // Graceful shutdown timeout
	cmdBuffer      = 64
)

// Repository is the remote store of containers and anchor records.
type Repository interface {
	GetContainer(ctx context.Context, id string) (*domain.Container, error)
	GetAnchor(ctx context.Context, id string) (*domain.AnchorRecord, error)
	GetAnchorsForContainer(ctx context.Context, containerID string) ([]domain.AnchorRecord, error)
	SaveAnchor(ctx context.Context, rec domain.AnchorRecord) error
}

// Recorder receives operation outcomes for metrics. Implementations must be
// safe for concurrent use.
type Recorder interface {
	Operation(op string, err error)
	AnchorsResolved(n int)
	SessionTransition(state string)
}

type nopRecorder struct{}

func (nopRecorder) Operation(string, error)  {}
func (nopRecorder) AnchorsResolved(int)      {}
func (nopRecorder) SessionTransition(string) {}

type Config struct {
	PollInterval      time.Duration
	PlacementDistance float64
	RemoteTimeout     time.Duration
	// CreatedBy is written to the records this coordinator saves.
	CreatedBy string
}

func DefaultConfig() Config {
	return Config{
		PollInterval:      500 * time.Millisecond,
		PlacementDistance: 1.0,
		RemoteTimeout:     10 * time.Second,
	}
}

type Option func(*Coordinator)

func WithClock(clock clockwork.Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// Coordinator drives one screen's AR session. All fields below the command
// channel are owned by the run goroutine.
type Coordinator struct {
	cfg      Config
	clock    clockwork.Clock
	repo     Repository
	recorder Recorder
	logger   *slog.Logger

	session *tracking.Session
	store   *anchor.Store
	gateway *anchor.Gateway

	cmdCh    chan coordinatorCmd
	closing  chan struct{}
	// sendMu is held shared by senders and exclusively by shutdown, so no
	// command is enqueued after the final drain.
	sendMu   sync.RWMutex
	done     chan struct{}
	stopOnce sync.Once
	current  atomic.Pointer[Snapshot]
	workers  sync.WaitGroup

	// life is cancelled on shutdown; workers derive their contexts from it.
	life   context.Context
	cancel context.CancelFunc

	state        domain.SessionState
	reason       string
	mode         domain.PlacementMode
	status       string
	downloads    int
	userPos      *domain.Vec3
	version      uint64
	initializing bool
	initWaiters  []chan result[none]
	subs         *subscribers
	stopped      bool
}

// New starts a coordinator in the Initializing state. Call Init to open the AR session
// and Close to tear it down.
func New(engine domain.Engine, repo Repository, cfg Config, opts ...Option) *Coordinator {
	defaults := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.PlacementDistance <= 0 {
		cfg.PlacementDistance = defaults.PlacementDistance
	}
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = defaults.RemoteTimeout
	}

	session := tracking.New(engine)
	store := anchor.NewStore()
	c := &Coordinator{
		cfg:      cfg,
		clock:    clockwork.NewRealClock(),
		repo:     repo,
		recorder: nopRecorder{},
		logger:   slog.Default(),
		session:  session,
		store:    store,
		gateway:  anchor.NewGateway(session, store),
		cmdCh:    make(chan coordinatorCmd, cmdBuffer),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
		state:    domain.SessionInitializing,
		subs:     newSubscribers(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.life, c.cancel = context.WithCancel(context.Background())
	c.current.Store(c.buildSnapshot())

	go c.run()
	return c
}

// Init opens the AR session. It returns nil at once when the session is Ready and
// joins an initialization already in flight. A failure moves the coordinator to
// Error; calling Init again retries.
func (c *Coordinator) Init(ctx context.Context) error {
	ctx = correlation.Ensure(ctx)
	reply := newReply[none]()
	if err := c.send(initCmd{ctx: ctx, reply: reply}); err != nil {
		return err
	}
	_, err := await(ctx, c, reply)
	return err
}

// TogglePlacement flips placement mode. It fails with domain.ErrNotReady unless
// the session is Ready.
func (c *Coordinator) TogglePlacement(ctx context.Context) (domain.PlacementMode, error) {
	reply := newReply[domain.PlacementMode]()
	if err := c.send(toggleCmd{reply: reply}); err != nil {
		return domain.PlacementIdle, err
	}
	return awaitState(ctx, c, reply)
}

// PlaceAnchor creates an anchor in front of the camera and registers it with
// containerID. It requires a Ready session in Armed mode and returns to Idle on
// success. Failures leave state unchanged.
func (c *Coordinator) PlaceAnchor(ctx context.Context, containerID string) (PlaceResult, error) {
	ctx = correlation.Ensure(ctx)
	reply := newReply[PlaceResult]()
	if err := c.send(placeCmd{ctx: ctx, containerID: containerID, reply: reply}); err != nil {
		return PlaceResult{}, err
	}
	return await(ctx, c, reply)
}

// PersistAndSave persists a placed anchor in the engine and then saves its record
// remotely. An empty containerID uses the container the anchor was placed for.
// When the remote save fails the anchor stays persisted locally.
func (c *Coordinator) PersistAndSave(ctx context.Context, localID uuid.UUID, containerID, name string) (domain.AnchorRecord, error) {
	ctx = correlation.Ensure(ctx)
	reply := newReply[domain.AnchorRecord]()
	cmd := persistCmd{ctx: ctx, localID: localID, containerID: containerID, name: name, reply: reply}
	if err := c.send(cmd); err != nil {
		return domain.AnchorRecord{}, err
	}
	return await(ctx, c, reply)
}

// DownloadAndResolve fetches the records of containerID (or exactly ids, when given)
// and loads every persisted anchor among them. Individual failures are reported in
// the result and do not fail the call.
func (c *Coordinator) DownloadAndResolve(ctx context.Context, containerID string, ids []string) (DownloadReport, error) {
	ctx = correlation.Ensure(ctx)
	reply := newReply[DownloadReport]()
	cmd := downloadCmd{ctx: ctx, containerID: containerID, ids: append([]string(nil), ids...), reply: reply}
	if err := c.send(cmd); err != nil {
		return DownloadReport{}, err
	}
	return await(ctx, c, reply)
}

// UnpersistAnchor removes the engine's persisted copy of a local anchor. The remote
// record is left untouched.
func (c *Coordinator) UnpersistAnchor(ctx context.Context, localID uuid.UUID) error {
	ctx = correlation.Ensure(ctx)
	reply := newReply[none]()
	if err := c.send(unpersistCmd{ctx: ctx, localID: localID, reply: reply}); err != nil {
		return err
	}
	_, err := await(ctx, c, reply)
	return err
}

// RemoveAnchor releases one local anchor.
func (c *Coordinator) RemoveAnchor(ctx context.Context, localID uuid.UUID) error {
	reply := newReply[none]()
	if err := c.send(removeCmd{localID: localID, reply: reply}); err != nil {
		return err
	}
	_, err := awaitState(ctx, c, reply)
	return err
}

// ListPersisted returns the persistent ids known to the engine. It runs on the
// caller's goroutine.
func (c *Coordinator) ListPersisted(ctx context.Context) ([]uuid.UUID, error) {
	if c.isClosing() {
		return nil, domain.ErrCoordinatorClosed
	}
	ids, err := c.gateway.ListPersisted()
	c.recorder.Operation("list", err)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to list persisted anchors", "error", err)
		return nil, err
	}
	return ids, nil
}

func (c *Coordinator) Resume(ctx context.Context) error {
	reply := newReply[none]()
	if err := c.send(trackingCmd{reply: reply}); err != nil {
		return err
	}
	_, err := awaitState(ctx, c, reply)
	return err
}

func (c *Coordinator) Pause(ctx context.Context) error {
	reply := newReply[none]()
	if err := c.send(trackingCmd{pause: true, reply: reply}); err != nil {
		return err
	}
	_, err := awaitState(ctx, c, reply)
	return err
}

// Snapshot returns the most recently published state. The Anchors map is shared
// with other readers and must not be modified.
func (c *Coordinator) Snapshot() Snapshot {
	return *c.current.Load()
}

// UserPosition is the camera position from the latest poll.
func (c *Coordinator) UserPosition() (domain.Vec3, bool) {
	snap := c.Snapshot()
	if snap.UserPosition == nil {
		return domain.Vec3{}, false
	}
	return *snap.UserPosition, true
}

func (c *Coordinator) InMarkedArea(area domain.MarkedArea) bool {
	pos, ok := c.UserPosition()
	return ok && area.Contains(pos)
}

// CurrentArea returns the first marked area of the container that holds the user,
// or nil when none does or the position is not known yet.
func (c *Coordinator) CurrentArea(ctx context.Context, containerID string) (*domain.MarkedArea, error) {
	container, err := c.repo.GetContainer(ctx, containerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get container: %w", err)
	}
	if container == nil {
		return nil, fmt.Errorf("container %s: %w", containerID, domain.ErrDocumentNotFound)
	}
	pos, ok := c.UserPosition()
	if !ok {
		return nil, nil
	}
	for _, area := range container.MarkedAreas {
		if area.Contains(pos) {
			return &area, nil
		}
	}
	return nil, nil
}

// Subscribe streams snapshots, starting with the current one. Slow readers only
// see the latest snapshot. The channel is closed by cancel or by Close.
func (c *Coordinator) Subscribe(ctx context.Context) (<-chan Snapshot, func(), error) {
	reply := newReply[subscription]()
	if err := c.send(subscribeCmd{reply: reply}); err != nil {
		return nil, nil, err
	}
	sub, err := awaitState(ctx, c, reply)
	if err != nil {
		return nil, nil, err
	}
	var once sync.Once
	cancel := func() {
		once.Do(func() { _ = c.send(unsubscribeCmd{id: sub.id}) })
	}
	return sub.ch, cancel, nil
}

// Close stops the tracking poll, releases every anchor and closes the AR session.
// Worker results that arrive later are discarded. Close is idempotent.
func (c *Coordinator) Close() {
	c.stopOnce.Do(func() {
		select {
		case c.cmdCh <- stopCmd{}:
		case <-c.done:
			return
		}

		timeout := c.clock.NewTimer(stopTimeout)
		defer timeout.Stop()

		select {
		case <-c.done:
			c.logger.Debug("Coordinator stopped")
		case <-timeout.Chan():
			c.logger.Warn("Coordinator stop timeout exceeded", "timeout", stopTimeout)
		}
	})
}

// Done is closed once the coordinator has shut down.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

func (c *Coordinator) run() {
	ticker := c.clock.NewTicker(c.cfg.PollInterval)
	defer close(c.done)
	defer ticker.Stop()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Coordinator panic recovered", "panic", r)
			c.shutdown()
		}
	}()

	for {
		select {
		case <-ticker.Chan():
			c.poll()
		case cmd := <-c.cmdCh:
			if _, ok := cmd.(stopCmd); ok {
				c.shutdown()
				return
			}
			c.handle(cmd)
		}
	}
}

func (c *Coordinator) handle(cmd coordinatorCmd) {
	switch cmd := cmd.(type) {
	case initCmd:
		c.handleInit(cmd)
	case toggleCmd:
		c.handleToggle(cmd)
	case placeCmd:
		c.handlePlace(cmd)
	case persistCmd:
		c.handlePersist(cmd)
	case downloadCmd:
		c.handleDownload(cmd)
	case unpersistCmd:
		c.handleUnpersist(cmd)
	case removeCmd:
		c.handleRemove(cmd)
	case trackingCmd:
		c.handleTracking(cmd)
	case subscribeCmd:
		id, ch := c.subs.add(c.Snapshot())
		respond(cmd.reply, subscription{id: id, ch: ch}, nil)
	case unsubscribeCmd:
		c.subs.remove(cmd.id)
	case completionCmd:
		cmd.apply()
	default:
		c.logger.Warn("Unknown coordinator command", "type", fmt.Sprintf("%T", cmd))
	}
}

// poll refreshes anchor tracking states and the user position.
func (c *Coordinator) poll() {
	changed := c.store.UpdateTrackingStates() > 0

	if c.state == domain.SessionReady {
		if pose, err := c.session.CurrentPose(); err == nil {
			pos := pose.Position
			if c.userPos == nil || *c.userPos != pos {
				c.userPos = &pos
				changed = true
			}
		}
	}

	if changed {
		c.publish()
	}
}

func (c *Coordinator) shutdown() {
	if c.stopped {
		return
	}
	c.stopped = true
	close(c.closing)
	c.cancel()

	// Senders that passed the closing check before it was closed finish first.
	// Results already queued belong to a torn-down coordinator.
	c.sendMu.Lock()
drain:
	for {
		select {
		case cmd := <-c.cmdCh:
			if cc, ok := cmd.(completionCmd); ok && cc.discard != nil {
				cc.discard()
			}
		default:
			break drain
		}
	}
	c.sendMu.Unlock()

	for _, w := range c.initWaiters {
		fail(w, domain.ErrCoordinatorClosed)
	}
	c.initWaiters = nil

	released := c.store.ReleaseAll()
	if err := c.session.Close(); err != nil {
		c.logger.Warn("Failed to close AR session", "error", err)
	}
	c.subs.closeAll()
	c.logger.Info("Coordinator shut down", "released_anchors", released)
}

// send enqueues cmd unless the coordinator is shutting down.
func (c *Coordinator) send(cmd coordinatorCmd) error {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.isClosing() {
		return domain.ErrCoordinatorClosed
	}
	select {
	case c.cmdCh <- cmd:
		return nil
	case <-c.closing:
		return domain.ErrCoordinatorClosed
	}
}

func (c *Coordinator) isClosing() bool {
	select {
	case <-c.closing:
		return true
	default:
		return false
	}
}

// complete hands a worker result to the actor. If the coordinator is gone the
// result is discarded instead.
func (c *Coordinator) complete(apply, discard func()) {
	if err := c.send(completionCmd{apply: apply, discard: discard}); err != nil && discard != nil {
		discard()
	}
}

// worker runs fn off the actor goroutine with a context bound to the coordinator's
// lifetime and the caller's correlation id.
func (c *Coordinator) worker(ctx context.Context, fn func(ctx context.Context)) {
	wctx := c.life
	if id, ok := correlation.ID(ctx); ok {
		wctx = correlation.WithID(wctx, id)
	}
	c.workers.Go(func() { fn(wctx) })
}

// awaitState waits for commands that are answered by the actor itself.
func awaitState[T any](ctx context.Context, c *Coordinator, reply chan result[T]) (T, error) {
	timer := c.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case r := <-reply:
		return r.value, r.err
	case <-timer.Chan():
		var zero T
		return zero, fmt.Errorf("coordinator command timed out after %v", commandTimeout)
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-c.done:
		return drained(reply)
	}
}

func await[T any](ctx context.Context, c *Coordinator, reply chan result[T]) (T, error) {
	select {
	case r := <-reply:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-c.done:
		return drained(reply)
	}
}

// drained prefers a reply that raced shutdown over ErrCoordinatorClosed.
func drained[T any](reply chan result[T]) (T, error) {
	select {
	case r := <-reply:
		return r.value, r.err
	default:
		var zero T
		return zero, domain.ErrCoordinatorClosed
	}
}
