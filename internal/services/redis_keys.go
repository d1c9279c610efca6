package services

import "time"

const (
	KeyRateLimit = "ratelimit:%s:%s"

	DefaultRateLimitBets    = 30
	DefaultRateLimitResolve = 60
	DefaultRateLimitWindow  = time.Minute
)
