package cluster

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seantiz/clusterwork/internal/dispatch"
	"github.com/seantiz/clusterwork/internal/model"
)

// Router defaults.
const (
	DefaultMaxRoutees      = 1000
	DefaultRefreshInterval = 5 * time.Second
)

// ErrNoRoutee is returned when no member carries the routing role.
var ErrNoRoutee = fmt.Errorf("%w: no routee available", dispatch.ErrRouting)

// RouterOptions configures a Router. Zero values select the defaults.
type RouterOptions struct {
	Role            string
	MaxRoutees      int
	RefreshInterval time.Duration
}

// Router is a round-robin group over the members carrying a role. It
// implements dispatch.Channel.
type Router struct {
	discoverer Discoverer
	caller     Caller
	role       string
	maxRoutees int
	refresh    time.Duration
	logger     *slog.Logger

	mu      sync.RWMutex
	routees []model.Member
	next    atomic.Uint64
}

// NewRouter creates a Router. Call Refresh (or Run) to load membership
// before routing.
func NewRouter(d Discoverer, caller Caller, opts RouterOptions, logger *slog.Logger) *Router {
	if opts.Role == "" {
		opts.Role = model.RoleCompute
	}
	if opts.MaxRoutees <= 0 {
		opts.MaxRoutees = DefaultMaxRoutees
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	return &Router{
		discoverer: d,
		caller:     caller,
		role:       opts.Role,
		maxRoutees: opts.MaxRoutees,
		refresh:    opts.RefreshInterval,
		logger:     logger,
	}
}

// Refresh reloads membership from the discoverer. On error the previous
// routees are kept.
func (r *Router) Refresh(ctx context.Context) error {
	members, err := r.discoverer.Members(ctx)
	if err != nil {
		return fmt.Errorf("discover members: %w", err)
	}

	routees := make([]model.Member, 0, len(members))
	for _, m := range members {
		if m.HasRole(r.role) {
			routees = append(routees, m)
		}
	}
	// Stable order keeps the rotation fair across refreshes.
	slices.SortFunc(routees, func(a, b model.Member) int {
		return cmp.Compare(a.ID, b.ID)
	})
	if len(routees) > r.maxRoutees {
		routees = routees[:r.maxRoutees]
	}

	r.mu.Lock()
	changed := !slices.EqualFunc(r.routees, routees, func(a, b model.Member) bool {
		return a.ID == b.ID && a.Addr == b.Addr
	})
	r.routees = routees
	r.mu.Unlock()

	routeesGauge.Set(float64(len(routees)))
	if changed {
		r.logger.Info("routees updated", "role", r.role, "count", len(routees))
	}
	return nil
}

// Run refreshes membership every refresh interval until ctx is done.
func (r *Router) Run(ctx context.Context) {
	ticker := time.NewTicker(r.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Warn("membership refresh failed", "error", err)
			}
		}
	}
}

// Members returns the current routees.
func (r *Router) Members() []model.Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.routees)
}

// Invoke sends task to the next routee. The returned Future is rejected
// with ErrNoRoutee when the group is empty.
func (r *Router) Invoke(ctx context.Context, task model.TaskDescriptor) *dispatch.Future {
	m, ok := r.pick()
	if !ok {
		routedCallsTotal.WithLabelValues("", resultNoRoutee).Inc()
		return dispatch.Rejected(ErrNoRoutee)
	}

	f := dispatch.NewFuture()
	go func() {
		result, err := r.caller.Call(ctx, m, task)
		if err != nil {
			routedCallsTotal.WithLabelValues(m.ID, resultError).Inc()
			f.Reject(err)
			return
		}
		routedCallsTotal.WithLabelValues(m.ID, resultOK).Inc()
		f.Resolve(result)
	}()
	return f
}

func (r *Router) pick() (model.Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.routees) == 0 {
		return model.Member{}, false
	}
	n := r.next.Add(1) - 1
	return r.routees[n%uint64(len(r.routees))], true
}
