package constants

// Gateway defaults, overridable via config or environment.
const (
	DefaultAuthBaseURL = "https://wassup.p16n.org"
	DefaultAPIBaseURL  = "https://wassup.p16n.org/api/v1"
)

// Scheduler defaults. The refresh lookahead is deliberately larger than
// the poll interval so a token expiry cannot slip between two polls.
const (
	DefaultRefreshPollSec      = 60
	DefaultRefreshLookaheadSec = 300

	DefaultProberIntervalSec   = 300
	DefaultProberSampleSize    = 500
	DefaultProberStalenessDays = 7
)

// Server defaults.
const (
	DefaultServerPort      = 8084
	DefaultReadTimeoutSec  = 15
	DefaultWriteTimeoutSec = 15
	DefaultIdleTimeoutSec  = 60
)

// HTTP client defaults.
const (
	DefaultGatewayTimeoutSec    = 30
	DefaultMediaFetchTimeoutSec = 30
)

// Database startup retry.
const (
	DefaultDatabaseRetryAttempts = 5
)

// Graceful shutdown window for in-flight webhook requests.
const (
	DefaultGracefulShutdownSec = 30
)
