package auth

import (
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"alchemyst.ke/billing/internal/common"
)

// CronGuard checks the shared secret presented by the external scheduler.
// After maxFailures wrong keys within window every request is refused until
// the window slides past them.
type CronGuard struct {
	hash        string
	maxFailures int
	window      time.Duration
	now         func() time.Time

	mu       sync.Mutex
	failures []time.Time
}

// NewCronGuard creates a guard for an argon2id hash of the secret.
func NewCronGuard(hash string) *CronGuard {
	return &CronGuard{
		hash:        hash,
		maxFailures: 5,
		window:      time.Hour,
		now:         time.Now,
	}
}

// Check verifies the bearer token of r.
func (g *CronGuard) Check(r *http.Request) error {
	now := g.now()

	g.mu.Lock()
	g.prune(now)
	locked := len(g.failures) >= g.maxFailures
	g.mu.Unlock()
	if locked {
		return common.ErrInvalidCronKey
	}

	key, ok := BearerToken(r)
	if ok && VerifySecret(key, g.hash) {
		return nil
	}

	g.mu.Lock()
	g.failures = append(g.failures, now)
	g.mu.Unlock()
	log.WithField("remote", r.RemoteAddr).Warn("rejected cron request")
	return common.ErrInvalidCronKey
}

func (g *CronGuard) prune(now time.Time) {
	cutoff := now.Add(-g.window)
	i := 0
	for i < len(g.failures) && !g.failures[i].After(cutoff) {
		i++
	}
	g.failures = g.failures[i:]
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
