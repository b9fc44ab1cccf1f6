package constants

import "time"

const (
	FetchConcurrency      = 8
	FetchMaxRetries       = 2
	FetchBaseTimeout      = 2 * time.Second
	FetchRetryBackoff     = 500 * time.Millisecond
	ReconcileRetryDelay   = 1200 * time.Millisecond
	SessionRequestTimeout = 3 * time.Second
)

const (
	MatchPageSize        = 20
	PageCacheBucketLimit = 5
)

const (
	PartyOverlapThreshold = 2
)

const (
	ChampSelectPollInterval = 1 * time.Second
	InGamePollInterval      = 5 * time.Second
	IdlePollInterval        = 10 * time.Second
)

const (
	DatabaseTimeout   = 5 * time.Second
	DBMaxOpenConns    = 10
	DBMaxIdleConns    = 4
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	RenderQueueDepth = 64
)
