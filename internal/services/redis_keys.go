package services

import "time"

const (
	KeyUserSession = "terminal:session:%s:%s"
	KeyRateLimit   = "ratelimit:%s:%s"

	TTLUserSession = 24 * time.Hour

	RateWindow = time.Minute
)
