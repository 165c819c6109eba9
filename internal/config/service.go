package config

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/domain"
)

// ConfigError is returned by Service.Set when value doesn't match the type
// a recognized key requires (spec §4.2).
type ConfigError struct {
	Key   string
	Value string
	Msg   string
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("config: %s=%q: %s", e.Key, e.Value, e.Msg)
}

// store is the storage dependency the Config Service is built on;
// satisfied by repository.ConfigStore.
type store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)
}

// Service is the Config Service (spec §4.2): a small set of named
// tunables, backed by the database, re-read by the Scheduler and Worker
// Runtime at least once per poll cycle.
type Service struct {
	store store
}

// New builds a Config Service over the given storage backend.
func New(store store) *Service {
	return &Service{store: store}
}

// Get returns every recognized key merged with defaults: stored values win,
// unset keys fall back to domain.ConfigDefaults. Stored unrecognized keys
// are returned as well.
func (s *Service) Get(ctx context.Context) (map[string]string, error) {
	stored, err := s.store.All(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(stored)+len(domain.ConfigDefaults))
	for key, v := range stored {
		out[key] = v
	}
	for key, def := range domain.ConfigDefaults {
		if _, ok := out[key]; !ok {
			out[key] = def
		}
	}
	return out, nil
}

// Set validates value against key's declared type (integer for
// max_retries/backoff_base/job_timeout, float for poll_interval;
// negatives rejected) and persists it. Unrecognized keys round-trip
// unvalidated.
func (s *Service) Set(ctx context.Context, key, value string) error {
	if kind, recognized := domain.ConfigKinds[key]; recognized {
		if err := validate(key, value, kind); err != nil {
			return err
		}
	}
	return s.store.Set(ctx, key, value)
}

func validate(key, value string, kind domain.ConfigValueKind) error {
	switch kind {
	case domain.KindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return ConfigError{Key: key, Value: value, Msg: "must be an integer"}
		}
		if n < 0 {
			return ConfigError{Key: key, Value: value, Msg: "must not be negative"}
		}
	case domain.KindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return ConfigError{Key: key, Value: value, Msg: "must be a number"}
		}
		if f < 0 {
			return ConfigError{Key: key, Value: value, Msg: "must not be negative"}
		}
	}
	return nil
}

// Runtime loads the typed snapshot a Worker Runtime or Scheduler reads once
// per poll cycle. A parse failure on a stored value falls back to
// domain.ConfigDefaults for that key rather than failing the poll cycle.
func (s *Service) Runtime(ctx context.Context) (domain.RuntimeConfig, error) {
	raw, err := s.Get(ctx)
	if err != nil {
		return domain.RuntimeConfig{}, err
	}

	maxRetries, err := strconv.Atoi(raw[domain.ConfigMaxRetries])
	if err != nil {
		maxRetries, _ = strconv.Atoi(domain.ConfigDefaults[domain.ConfigMaxRetries])
	}
	backoffBase, err := strconv.Atoi(raw[domain.ConfigBackoffBase])
	if err != nil {
		backoffBase, _ = strconv.Atoi(domain.ConfigDefaults[domain.ConfigBackoffBase])
	}
	pollSeconds, err := strconv.ParseFloat(raw[domain.ConfigPollInterval], 64)
	if err != nil {
		pollSeconds, _ = strconv.ParseFloat(domain.ConfigDefaults[domain.ConfigPollInterval], 64)
	}
	jobTimeoutSeconds, err := strconv.Atoi(raw[domain.ConfigJobTimeout])
	if err != nil {
		jobTimeoutSeconds, _ = strconv.Atoi(domain.ConfigDefaults[domain.ConfigJobTimeout])
	}

	return domain.RuntimeConfig{
		MaxRetries:   maxRetries,
		BackoffBase:  backoffBase,
		PollInterval: time.Duration(pollSeconds * float64(time.Second)),
		JobTimeout:   time.Duration(jobTimeoutSeconds) * time.Second,
	}, nil
}
