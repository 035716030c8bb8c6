// middleware/rate_limiter.go
package middleware

import (
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type endpointLimit struct {
	limit rate.Limit
	burst int
}

type RateLimiter struct {
	ips            map[string]*rate.Limiter
	blockedIPs     map[string]time.Time
	mu             *sync.RWMutex
	defaultLimit   rate.Limit
	defaultBurst   int
	blockDuration  time.Duration
	endpointLimits map[string]endpointLimit
}

func NewRateLimiter() *RateLimiter {
	limiter := &RateLimiter{
		ips:            make(map[string]*rate.Limiter),
		blockedIPs:     make(map[string]time.Time),
		mu:             &sync.RWMutex{},
		defaultLimit:   rate.Every(100 * time.Millisecond), // 10 requests per second
		defaultBurst:   20,
		blockDuration:  5 * time.Minute,
		endpointLimits: make(map[string]endpointLimit),
	}

	// Strict limits on credential endpoints to slow brute force attempts
	limiter.endpointLimits["/api/auth/login"] = endpointLimit{
		limit: rate.Every(2 * time.Second),
		burst: 5,
	}
	limiter.endpointLimits["/api/auth/signup"] = endpointLimit{
		limit: rate.Every(500 * time.Millisecond),
		burst: 5,
	}

	go limiter.cleanupLoop()

	return limiter
}

// cleanupLoop drops idle per-IP limiters and expired blocks.
func (rl *RateLimiter) cleanupLoop() {
	for {
		time.Sleep(10 * time.Minute)
		now := time.Now()
		rl.mu.Lock()
		for ip, until := range rl.blockedIPs {
			if now.After(until) {
				delete(rl.blockedIPs, ip)
			}
		}
		// Limiters refill over time; rebuilding the map keeps it bounded.
		rl.ips = make(map[string]*rate.Limiter)
		rl.mu.Unlock()
	}
}

func (rl *RateLimiter) getLimiter(ip, path string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	key := ip
	limit := rl.defaultLimit
	burst := rl.defaultBurst
	if el, ok := rl.endpointLimits[path]; ok {
		key = ip + ":" + path
		limit = el.limit
		burst = el.burst
	}

	limiter, exists := rl.ips[key]
	if !exists {
		limiter = rate.NewLimiter(limit, burst)
		rl.ips[key] = limiter
	}
	return limiter
}

// RateLimit returns the rate-limiting middleware.
func (rl *RateLimiter) RateLimit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()

			rl.mu.RLock()
			blockedUntil, blocked := rl.blockedIPs[ip]
			rl.mu.RUnlock()

			if blocked && time.Now().Before(blockedUntil) {
				return echo.NewHTTPError(429, "Too many requests, try again later")
			}

			path := c.Request().URL.Path
			// Normalize trailing slash so /api/auth/login/ hits the same bucket
			path = strings.TrimSuffix(path, "/")

			if !rl.getLimiter(ip, path).Allow() {
				rl.mu.Lock()
				rl.blockedIPs[ip] = time.Now().Add(rl.blockDuration)
				rl.mu.Unlock()
				return echo.NewHTTPError(429, "Too many requests, try again later")
			}

			return next(c)
		}
	}
}
