package server

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/54b3r/paperqa-go/internal/agent"
)

// defaultMaxSessions is used when Config.MaxSessions is not positive.
const defaultMaxSessions = 32

// Eviction reasons recorded in paperqa_sessions_evicted_total. Explicit
// deletes and shutdown are not evictions and carry no reason.
const (
	evictIdle     = "idle"
	evictCapacity = "capacity"
)

// sessionEntry is one loaded document held by the registry.
type sessionEntry struct {
	// session is the immutable loaded document.
	session *agent.DocumentSession
	// name is the upload filename or source string shown to clients.
	name string
	// released is set once the entry has left the cache and its session
	// was closed.
	released atomic.Bool
}

// registry holds loaded sessions by ID in an expirable LRU: the least
// recently used session is dropped when the cache is full, and a session
// not touched for the TTL expires. Every session leaving the cache is
// closed so remote indexes are dropped.
type registry struct {
	// cache owns the entries and runs the expiry goroutine.
	cache *expirable.LRU[string, *sessionEntry]
	// capacity is the maximum number of entries.
	capacity int
	// metrics records active and evicted counts. May be nil in tests.
	metrics *serverMetrics
	// log receives eviction records.
	log *slog.Logger

	// addMu serialises add so the capacity victim can be labelled.
	addMu sync.Mutex
	// mu guards reasons.
	mu sync.Mutex
	// reasons labels IDs about to leave the cache for a known reason. An
	// empty reason means a delete that is not counted as an eviction.
	reasons map[string]string
	// closing is set by closeAll.
	closing atomic.Bool
}

// newRegistry creates a registry. A non-positive capacity selects
// defaultMaxSessions; a non-positive ttl disables idle expiry.
func newRegistry(capacity int, ttl time.Duration, m *serverMetrics, log *slog.Logger) *registry {
	if capacity <= 0 {
		capacity = defaultMaxSessions
	}
	if log == nil {
		log = slog.Default()
	}
	r := &registry{
		capacity: capacity,
		metrics:  m,
		log:      log,
		reasons:  make(map[string]string),
	}
	if ttl < 0 {
		ttl = 0
	}
	r.cache = expirable.NewLRU[string, *sessionEntry](capacity, r.onEvict, ttl)
	return r
}

// add stores s, evicting the least recently used entry when full.
func (r *registry) add(s *agent.DocumentSession, name string) {
	r.addMu.Lock()
	defer r.addMu.Unlock()

	var victim string
	if r.cache.Len() >= r.capacity {
		if keys := r.cache.Keys(); len(keys) > 0 {
			victim = keys[0]
			r.label(victim, evictCapacity)
		}
	}
	r.cache.Add(s.ID(), &sessionEntry{session: s, name: name})
	if victim != "" {
		r.unlabel(victim)
	}
	if r.metrics != nil {
		r.metrics.sessionsActive.Inc()
	}
}

// get returns the entry for id and restarts its idle timer.
func (r *registry) get(id string) (*sessionEntry, bool) {
	e, ok := r.cache.Get(id)
	if !ok {
		return nil, false
	}
	// Re-adding renews the expiry. If the entry expired in between, the
	// re-add inserted a released entry, which is taken out again.
	r.cache.Add(id, e)
	if e.released.Load() {
		r.label(id, "")
		r.cache.Remove(id)
		r.unlabel(id)
		return nil, false
	}
	return e, true
}

// remove deletes and closes the session for id.
func (r *registry) remove(id string) bool {
	r.label(id, "")
	defer r.unlabel(id)
	return r.cache.Remove(id)
}

// closeAll releases every session.
func (r *registry) closeAll() {
	r.closing.Store(true)
	defer r.closing.Store(false)
	r.cache.Purge()
}

func (r *registry) len() int {
	return r.cache.Len()
}

// onEvict runs under the cache lock for every entry leaving the cache. It
// must not call back into the cache.
func (r *registry) onEvict(id string, e *sessionEntry) {
	if e.released.Swap(true) {
		return
	}
	closeSession(r.log, e.session)
	if r.metrics != nil {
		r.metrics.sessionsActive.Dec()
	}
	if r.closing.Load() {
		return
	}

	r.mu.Lock()
	reason, labelled := r.reasons[id]
	r.mu.Unlock()
	if !labelled {
		reason = evictIdle
	}
	if reason == "" {
		return
	}
	r.log.Debug("server: session evicted", slog.String("session", id), slog.String("reason", reason))
	if r.metrics != nil {
		r.metrics.sessionsEvicted.WithLabelValues(reason).Inc()
	}
}

func (r *registry) label(id, reason string) {
	r.mu.Lock()
	r.reasons[id] = reason
	r.mu.Unlock()
}

func (r *registry) unlabel(id string) {
	r.mu.Lock()
	delete(r.reasons, id)
	r.mu.Unlock()
}

func closeSession(log *slog.Logger, s *agent.DocumentSession) {
	if err := s.Close(); err != nil {
		log.Warn("server: failed to release session index",
			slog.String("session", s.ID()),
			slog.Any("error", err),
		)
	}
}
