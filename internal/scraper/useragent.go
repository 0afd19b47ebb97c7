package scraper

import "math/rand/v2"

// defaultUserAgents is the identity pool the client rotates through.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.1 Safari/605.1.15",
}

// userAgentPool hands out the current client identity and occasionally
// swaps it for another one from the pool.
type userAgentPool struct {
	agents  []string
	current int
	chance  float64
	roll    func() float64
	pick    func(n int) int
}

func newUserAgentPool(agents []string, chance float64) *userAgentPool {
	if len(agents) == 0 {
		agents = defaultUserAgents
	}
	return &userAgentPool{
		agents:  agents,
		current: rand.IntN(len(agents)),
		chance:  chance,
		roll:    rand.Float64,
		pick:    rand.IntN,
	}
}

// Current returns the identity in use.
func (p *userAgentPool) Current() string {
	return p.agents[p.current]
}

// MaybeRotate switches to a different identity with the configured
// probability and reports whether it did.
func (p *userAgentPool) MaybeRotate() bool {
	if len(p.agents) < 2 || p.roll() >= p.chance {
		return false
	}
	next := p.pick(len(p.agents) - 1)
	if next >= p.current {
		next++
	}
	p.current = next
	return true
}
