package simengine

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/ognjhunt/blueprintxr/internal/domain"
)

// Op names an engine call that can be made to fail with FailNext.
type Op string

const (
	OpCreateSession Op = "create_session"
	OpConfigure     Op = "configure"
	OpCameraPose    Op = "camera_pose"
	OpCreateAnchor  Op = "create_anchor"
	OpPersist       Op = "persist"
	OpLoad          Op = "load"
	OpUnpersist     Op = "unpersist"
)

// Features that DisableFeature understands.
const (
	FeatureAR                = "ar"
	FeatureAnchorPersistence = "anchor_persistence"
)

type Engine struct {
	descriptors DescriptorStore
	clock       clockwork.Clock

	mu          sync.Mutex
	camera      domain.Pose
	missing     []string
	unsupported map[string]bool
	failures    map[Op][]error
	holds       map[Op][]chan struct{}
	sessions    []*Session
}

type Option func(*Engine)

func WithClock(clock clockwork.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

func WithDescriptors(store DescriptorStore) Option {
	return func(e *Engine) { e.descriptors = store }
}

func New(opts ...Option) *Engine {
	e := &Engine{
		descriptors: NewMemoryDescriptors(),
		clock:       clockwork.NewRealClock(),
		camera:      domain.IdentityPose(),
		unsupported: make(map[string]bool),
		failures:    make(map[Op][]error),
		holds:       make(map[Op][]chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) CreateSession(ctx context.Context) (domain.EngineSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.takeFailure(OpCreateSession); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.missing) > 0 {
		return nil, &domain.PermissionsDeniedError{Missing: append([]string(nil), e.missing...)}
	}
	if e.unsupported[FeatureAR] {
		return nil, &domain.FeatureUnsupportedError{Feature: FeatureAR}
	}

	s := &Session{engine: e, anchors: make(map[*Anchor]struct{})}
	e.sessions = append(e.sessions, s)
	return s, nil
}

// SetCameraPose moves the device camera.
func (e *Engine) SetCameraPose(p domain.Pose) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.camera = p
}

// DenyPermissions makes session creation fail until cleared with no arguments.
func (e *Engine) DenyPermissions(perms ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.missing = perms
}

func (e *Engine) DisableFeature(feature string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unsupported[feature] = true
}

// FailNext queues err as the result of the next call of op.
func (e *Engine) FailNext(op Op, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[op] = append(e.failures[op], err)
}

// Sessions returns every session created so far, oldest first.
func (e *Engine) Sessions() []*Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Session(nil), e.sessions...)
}

// HoldNext blocks the next call of op until release is called.
func (e *Engine) HoldNext(op Op) (release func()) {
	gate := make(chan struct{})
	e.mu.Lock()
	e.holds[op] = append(e.holds[op], gate)
	e.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (e *Engine) takeFailure(op Op) error {
	e.mu.Lock()
	if gates := e.holds[op]; len(gates) > 0 {
		gate := gates[0]
		e.holds[op] = gates[1:]
		e.mu.Unlock()
		<-gate
		e.mu.Lock()
	}
	defer e.mu.Unlock()
	queue := e.failures[op]
	if len(queue) == 0 {
		return nil
	}
	e.failures[op] = queue[1:]
	return queue[0]
}

func (e *Engine) cameraPose() domain.Pose {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.camera
}

func (e *Engine) featureDisabled(feature string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unsupported[feature]
}

func rejected(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrEngineRejected, fmt.Sprintf(format, args...))
}
