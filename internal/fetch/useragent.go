package fetch

import (
	"math/rand"
	"sync"
)

// defaultUserAgents are current desktop browser strings rotated across
// requests so successive fetches do not share a fingerprint.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
}

// UserAgentPool hands out user-agent strings in random order. Safe for
// concurrent use.
type UserAgentPool struct {
	mu     sync.Mutex
	agents []string
	rng    *rand.Rand
}

// NewUserAgentPool builds a pool over the given agents, falling back to the
// stock list when none are given. Pass a fixed seed in tests.
func NewUserAgentPool(agents []string, seed int64) *UserAgentPool {
	if len(agents) == 0 {
		agents = defaultUserAgents
	}
	return &UserAgentPool{
		agents: append([]string(nil), agents...),
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Next returns a random agent from the pool.
func (p *UserAgentPool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.agents[p.rng.Intn(len(p.agents))]
}
