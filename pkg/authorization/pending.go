package authorization

import (
	"crypto/subtle"
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/tdeslauriers/portability/internal/util"
)

// PendingStore holds the anti-forgery token issued to each user whose consent is outstanding.
// Entries are in memory only and are lost on restart.
type PendingStore interface {
	// Put records token for userId, replacing any earlier entry.
	Put(userId, token string)

	// Take consumes the entry for userId if token matches it exactly.
	// A mismatch leaves the entry in place.
	Take(userId, token string) error

	// Len returns the number of unexpired entries.
	Len() int
}

// NewPendingStore returns an in-memory store whose entries expire after ttl.
// A ttl <= 0 keeps entries until they are taken or replaced.
func NewPendingStore(ttl time.Duration) PendingStore {

	expiry, cleanup := cache.NoExpiration, time.Duration(0)
	if ttl > 0 {
		expiry, cleanup = ttl, time.Minute
		if ttl < cleanup {
			cleanup = ttl
		}
	}

	return &pendingStore{
		cache: cache.New(expiry, cleanup),

		logger: slog.Default().
			With(slog.String(util.ComponentKey, util.ComponentPending)).
			With(slog.String(util.PackageKey, util.PackageAuthorization)).
			With(slog.String(util.ServiceKey, util.ServicePortability)),
	}
}

var _ PendingStore = (*pendingStore)(nil)

type pendingStore struct {
	// mu makes compare-then-delete atomic; the cache is only thread safe per call
	mu    sync.Mutex
	cache *cache.Cache

	logger *slog.Logger
}

func (p *pendingStore) Put(userId, token string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, found := p.cache.Get(userId); found {
		p.logger.Info("replacing outstanding authorization for user", slog.String("user_id", userId))
	}
	p.cache.SetDefault(userId, token)
}

func (p *pendingStore) Take(userId, token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	v, found := p.cache.Get(userId)
	if !found {
		return ErrUnknownUser
	}

	pending, ok := v.(string)
	if !ok || subtle.ConstantTimeCompare([]byte(pending), []byte(token)) != 1 {
		return ErrStateMismatch
	}

	p.cache.Delete(userId)
	return nil
}

// Len skips entries that have expired but not yet been swept by the janitor.
func (p *pendingStore) Len() int {
	return len(p.cache.Items())
}
