package domain

import "time"

// Recognized Config keys (spec §3 "Config"). Unknown keys round-trip
// through the Config Service (spec §4.2) but are never consulted by the
// engine.
const (
	ConfigMaxRetries   = "max_retries"
	ConfigBackoffBase  = "backoff_base"
	ConfigPollInterval = "poll_interval"
	ConfigJobTimeout   = "job_timeout"
)

// ConfigValueKind distinguishes how a recognized key's value is typed and
// validated by the Config Service.
type ConfigValueKind int

const (
	KindInt ConfigValueKind = iota
	KindFloat
)

// ConfigDefaults are the built-in values spec §3 specifies for each
// recognized key, used whenever a key has never been set.
var ConfigDefaults = map[string]string{
	ConfigMaxRetries:   "3",
	ConfigBackoffBase:  "2",
	ConfigPollInterval: "0.5",
	ConfigJobTimeout:   "120",
}

// ConfigKinds maps each recognized key to the type Set() must validate it
// against.
var ConfigKinds = map[string]ConfigValueKind{
	ConfigMaxRetries:   KindInt,
	ConfigBackoffBase:  KindInt,
	ConfigPollInterval: KindFloat,
	ConfigJobTimeout:   KindInt,
}

// RuntimeConfig is the typed snapshot a Worker Runtime or Scheduler reads
// once per poll cycle (spec §4.2).
type RuntimeConfig struct {
	MaxRetries   int
	BackoffBase  int
	PollInterval time.Duration
	JobTimeout   time.Duration
}
