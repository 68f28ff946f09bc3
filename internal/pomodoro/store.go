package pomodoro

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"tomato/internal/storage"
)

// Keys of the durable records.
const (
	SettingsKey = "pomodoro.settings"
	CountKey    = "pomodoro.count"
)

// KV is the slice of storage.Storage the stores need.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// SettingsStore reads and writes the durable settings record.
type SettingsStore struct {
	kv       KV
	defaults Settings
}

// NewSettingsStore returns a store that substitutes fields of defaults for
// anything missing or invalid in the stored record. Invalid defaults are
// replaced by DefaultSettings.
func NewSettingsStore(kv KV, defaults Settings) *SettingsStore {
	if defaults.Validate() != nil {
		defaults = DefaultSettings()
	}
	return &SettingsStore{kv: kv, defaults: defaults}
}

// Defaults returns the settings used when nothing is stored.
func (s *SettingsStore) Defaults() Settings {
	return s.defaults
}

// Load always returns usable settings. The error, if any, lists what could
// not be read and was replaced by defaults.
func (s *SettingsStore) Load(ctx context.Context) (Settings, error) {
	settings := s.defaults
	raw, err := s.kv.Get(ctx, SettingsKey)
	if errors.Is(err, storage.ErrNotFound) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("read settings: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return settings, fmt.Errorf("parse settings record: %w", err)
	}

	var errs error
	positive := func(name string, dst *int, min int) {
		value, ok := fields[name]
		if !ok {
			return
		}
		var n int
		if err := json.Unmarshal(value, &n); err != nil || n < min {
			errs = multierr.Append(errs, fmt.Errorf("field %s: invalid value %s", name, strings.TrimSpace(string(value))))
			return
		}
		*dst = n
	}
	flag := func(name string, dst *bool) {
		value, ok := fields[name]
		if !ok {
			return
		}
		var b bool
		if err := json.Unmarshal(value, &b); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("field %s: invalid value %s", name, strings.TrimSpace(string(value))))
			return
		}
		*dst = b
	}

	positive("workDuration", &settings.WorkDuration, 1)
	positive("shortBreakDuration", &settings.ShortBreakDuration, 1)
	positive("longBreakDuration", &settings.LongBreakDuration, 1)
	positive("longBreakInterval", &settings.LongBreakInterval, 1)
	flag("autoStartBreaks", &settings.AutoStartBreaks)
	flag("autoStartPomodoros", &settings.AutoStartPomodoros)

	if errs != nil {
		return settings, fmt.Errorf("settings record: %w", errs)
	}
	return settings, nil
}

// Save writes the full settings record.
func (s *SettingsStore) Save(ctx context.Context, settings Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := s.kv.Put(ctx, SettingsKey, data); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// ProgressStore reads and writes the durable completed-pomodoro counter.
type ProgressStore struct {
	kv KV
}

func NewProgressStore(kv KV) *ProgressStore {
	return &ProgressStore{kv: kv}
}

// Load returns the stored count, or 0 with an error describing why the
// record could not be used.
func (s *ProgressStore) Load(ctx context.Context) (int, error) {
	raw, err := s.kv.Get(ctx, CountKey)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read pomodoro count: %w", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("parse pomodoro count %q: %w", raw, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("pomodoro count is negative: %d", n)
	}
	return n, nil
}

func (s *ProgressStore) Save(ctx context.Context, count int) error {
	if err := s.kv.Put(ctx, CountKey, []byte(strconv.Itoa(count))); err != nil {
		return fmt.Errorf("save pomodoro count: %w", err)
	}
	return nil
}
