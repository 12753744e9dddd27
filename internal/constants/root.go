package constants

import "time"

// EntityType tags the kind of record a queued mutation targets
type EntityType string

// Method is the HTTP verb a queued mutation replays with
type Method string

// QueueStatus is the lifecycle state of a queued mutation
type QueueStatus string

// TimeframeUnit is the period a challenge target is measured over
type TimeframeUnit string

// Feeling is the optional mood attached to an entry
type Feeling string

const (
	AppName            = "tally"
	DefaultKeyringUser = "api-token"
	DefaultDBKeyUser   = "database-connection"
	DefaultConfigDir   = "~/.config/tally"
	DefaultConfigPath  = "~/.config/tally/config.yaml"
	DefaultDBPath      = "~/.config/tally/tally.db"
	DefaultAPIURL      = "https://api.tally.app"
	Version            = "v0.3.0"

	// DateFormat is the calendar date format used on the wire and in storage (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// LocalIDPrefix marks ids generated on this device that the server has not confirmed yet
	LocalIDPrefix = "local_"

	// Remote client defaults
	DefaultHTTPTimeout  = 30 * time.Second
	MaxResponseBytes    = 1 << 20
	DefaultUserAgent    = "tally-cli/" + Version
	DefaultMaxAttempts  = 10
	DrainLockfileName   = "tally-sync.lock"
	TokenEnvVar         = "TALLY_TOKEN"
	APIURLEnvVar        = "TALLY_API_URL"
	DatabaseEnvVar      = "TALLY_DATABASE"
	DebugEnvVar         = "TALLY_DEBUG"
	MetricsNamespace    = "tally"
	LogFileName         = "tally.log"
	LogDirName          = "logs"
	LogMaxSizeMB        = 10
	LogMaxBackups       = 3
	LogMaxAgeDays       = 28
	PostgresSchemaName  = AppName
	SQLiteBusyTimeoutMs = 5000

	// Backup constants
	MaxBackups       = 14
	BackupDirName    = "backups"
	BackupFilePrefix = "tally-"
	BackupFileSuffix = ".db"

	// Entity types
	EntityChallenge EntityType = "challenge"
	EntityEntry     EntityType = "entry"
	EntityFollowed  EntityType = "followed"

	// Methods
	MethodPost   Method = "POST"
	MethodPatch  Method = "PATCH"
	MethodDelete Method = "DELETE"

	// Queue statuses
	QueueStatusPending QueueStatus = "pending"
	QueueStatusDead    QueueStatus = "dead"

	// Timeframe units
	TimeframeYear   TimeframeUnit = "year"
	TimeframeMonth  TimeframeUnit = "month"
	TimeframeCustom TimeframeUnit = "custom"

	// Feelings (web/iOS set)
	FeelingGreat Feeling = "great"
	FeelingGood  Feeling = "good"
	FeelingOkay  Feeling = "okay"
	FeelingTough Feeling = "tough"

	// Feelings (effort set)
	FeelingVeryEasy Feeling = "very-easy"
	FeelingEasy     Feeling = "easy"
	FeelingModerate Feeling = "moderate"
	FeelingHard     Feeling = "hard"
	FeelingVeryHard Feeling = "very-hard"
)
