// internal/app/system/authstate/observer.go

// Package authstate turns the identity client's auth state events into a
// read-only snapshot of {user, profile, loading, error} and applies the
// redirect policy for the current route.
package authstate

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dalemusser/venturecamp/internal/app/system/authclient"
	"github.com/dalemusser/venturecamp/internal/app/system/identity"
	"github.com/dalemusser/venturecamp/internal/app/system/routes"
	"github.com/dalemusser/venturecamp/internal/domain/models"
	"go.uber.org/zap"
)

// ProfileLoadError is the snapshot error when the profile cannot be read.
const ProfileLoadError = "Failed to load user data"

// Source emits auth state changes.
type Source interface {
	OnAuthStateChanged(fn authclient.Listener) func()
}

// ProfileFetcher loads a profile; (nil, nil) means none exists.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, uid string) (*models.Profile, error)
}

// Navigator exposes the current route and moves to another.
type Navigator interface {
	Path() string
	Push(path string)
}

// Snapshot is the observer's published state.
type Snapshot struct {
	User    *identity.User  `json:"user"`
	Profile *models.Profile `json:"profile"`
	Loading bool            `json:"loading"`
	Error   string          `json:"error,omitempty"`
}

// Config wires an Observer.
type Config struct {
	Source    Source
	Profiles  ProfileFetcher
	Navigator Navigator
	Routes    *routes.Table // nil means routes.Default()
	Log       *zap.Logger
}

// Observer is the only writer of its Snapshot.
type Observer struct {
	profiles ProfileFetcher
	nav      Navigator
	table    *routes.Table
	log      *zap.Logger

	gen atomic.Uint64

	mu   sync.RWMutex
	snap Snapshot

	wmu      sync.Mutex
	watchers []watcher
	nextID   int

	fmu         sync.Mutex
	fetchCancel context.CancelFunc

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	unsubscribe func()
	closeOnce   sync.Once
}

type watcher struct {
	id int
	fn func(Snapshot)
}

// New subscribes to cfg.Source. The source reports the current user right
// away, so the first transition happens before New returns.
func New(cfg Config) *Observer {
	o := &Observer{
		profiles: cfg.Profiles,
		nav:      cfg.Navigator,
		table:    cfg.Routes,
		log:      cfg.Log,
		snap:     Snapshot{Loading: true},
	}
	if o.table == nil {
		o.table = routes.Default()
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	o.ctx, o.cancel = context.WithCancel(context.Background())
	o.unsubscribe = cfg.Source.OnAuthStateChanged(o.handle)
	return o
}

// Snapshot returns a copy of the current state.
func (o *Observer) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.snap
}

// Watch calls fn after every snapshot change. The returned func cancels.
func (o *Observer) Watch(fn func(Snapshot)) func() {
	o.wmu.Lock()
	o.nextID++
	id := o.nextID
	o.watchers = append(o.watchers, watcher{id: id, fn: fn})
	o.wmu.Unlock()

	return func() {
		o.wmu.Lock()
		defer o.wmu.Unlock()
		for i, w := range o.watchers {
			if w.id == id {
				o.watchers = append(o.watchers[:i], o.watchers[i+1:]...)
				return
			}
		}
	}
}

// RequireAuth sends the user to the login page when loading has finished
// and nobody is signed in.
func (o *Observer) RequireAuth() (user *identity.User, loading bool) {
	s := o.Snapshot()
	if !s.Loading && s.User == nil {
		o.nav.Push(routes.LoginPath)
	}
	return s.User, s.Loading
}

// Wait blocks until in-flight profile fetches have finished.
func (o *Observer) Wait() {
	o.wg.Wait()
}

// Close unsubscribes and cancels any in-flight fetch.
func (o *Observer) Close() {
	o.closeOnce.Do(func() {
		o.unsubscribe()
		o.gen.Add(1)
		o.cancel()
		o.wg.Wait()
	})
}

func (o *Observer) handle(u *identity.User) {
	gen := o.gen.Add(1)
	o.swapFetch(nil)

	o.apply(gen, func(s *Snapshot) {
		s.Loading = true
		s.Error = ""
	})

	if u == nil {
		applied := o.apply(gen, func(s *Snapshot) {
			s.User = nil
			s.Profile = nil
			s.Loading = false
		})
		if applied && o.table.Classify(o.nav.Path()) == routes.Protected {
			o.nav.Push(routes.LoginPath)
		}
		return
	}

	o.apply(gen, func(s *Snapshot) { s.User = u })

	if o.ctx.Err() != nil {
		return
	}
	fctx, cancel := context.WithCancel(o.ctx)
	o.swapFetch(cancel)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()

		var (
			p   *models.Profile
			err error
		)
		if o.profiles != nil {
			p, err = o.profiles.FetchProfile(fctx, u.UID)
		}

		applied := o.apply(gen, func(s *Snapshot) {
			s.Profile = p
			if err != nil {
				s.Error = ProfileLoadError
			}
			s.Loading = false
		})
		if !applied {
			return
		}
		if err != nil {
			o.log.Warn("profile fetch failed", zap.String("uid", u.UID), zap.Error(err))
		}
		if o.table.Classify(o.nav.Path()) == routes.GuestOnly {
			o.nav.Push(routes.DefaultHome)
		}
	}()
}

// apply mutates the snapshot if gen is still the newest event, then notifies
// watchers. It reports whether the change was applied.
func (o *Observer) apply(gen uint64, fn func(*Snapshot)) bool {
	o.mu.Lock()
	if o.gen.Load() != gen {
		o.mu.Unlock()
		return false
	}
	fn(&o.snap)
	snap := o.snap
	o.mu.Unlock()

	o.wmu.Lock()
	fns := make([]func(Snapshot), len(o.watchers))
	for i, w := range o.watchers {
		fns[i] = w.fn
	}
	o.wmu.Unlock()

	for _, f := range fns {
		f(snap)
	}
	return true
}

// swapFetch cancels the previous fetch and records next.
func (o *Observer) swapFetch(next context.CancelFunc) {
	o.fmu.Lock()
	prev := o.fetchCancel
	o.fetchCancel = next
	o.fmu.Unlock()
	if prev != nil {
		prev()
	}
}
