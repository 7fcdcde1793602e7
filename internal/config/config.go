package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/rescale/xferengine/internal/constants"
)

// Config holds the transfer engine's tunable knobs: proxy settings (carried
// from the teacher's APIConfig, repointed at engine behavior instead of
// Rescale platform credentials) plus retry/concurrency/buffer sizing.
//
// INI format:
//
//	[proxy]
//	mode = system        ; no-proxy | system | ntlm | basic
//	host = proxy.corp.example
//	port = 8080
//	user = svc-account
//	password = secret
//	no_proxy = localhost,10.0.0.0/8
//
//	[transfer]
//	max_concurrency_block = 8
//	max_concurrency_form = 1
//	preferred_part_size = 10485760
//	min_part_size = 5242880
//	max_part_size = 5368709120
//	buffer_budget = 268435456
//
//	[retry]
//	max_count = 5
//	max_duration_seconds = 60
//	interval_ms = 100
//	retry_all_errors = false
type Config struct {
	ProxyMode     string
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string
	NoProxy       string

	MaxConcurrencyBlock int
	MaxConcurrencyForm  int
	PreferredPartSize   int64
	MinPartSize         int64
	MaxPartSize         int64
	BufferBudget        int64

	RetryMaxCount       int
	RetryMaxDurationSec int
	RetryIntervalMS     int
	RetryAllErrors      bool
}

// Default returns a Config populated with the engine's documented defaults.
func Default() *Config {
	return &Config{
		ProxyMode: "no-proxy",

		MaxConcurrencyBlock: constants.DefaultMaxConcurrencyBlock,
		MaxConcurrencyForm:  constants.DefaultMaxConcurrencyForm,
		PreferredPartSize:   constants.DefaultPreferredPartSize,
		MinPartSize:         constants.DefaultMinPartSize,
		MaxPartSize:         constants.DefaultMaxPartSize,
		BufferBudget:        constants.DefaultBufferBudget,

		RetryMaxCount:       constants.DefaultRetryMaxCount,
		RetryMaxDurationSec: int(constants.DefaultRetryMaxDuration.Seconds()),
		RetryIntervalMS:     int(constants.DefaultRetryInterval.Milliseconds()),
	}
}

// Load reads an engine config from an INI file. A missing file is not an
// error: Load returns the defaults unchanged, matching the teacher's
// LoadAPIConfig "defaults if absent" behavior.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to load %s: %w", path, err)
	}

	proxy := f.Section("proxy")
	cfg.ProxyMode = proxy.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(0)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.ProxyPassword = proxy.Key("password").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()

	xfer := f.Section("transfer")
	cfg.MaxConcurrencyBlock = xfer.Key("max_concurrency_block").MustInt(cfg.MaxConcurrencyBlock)
	cfg.MaxConcurrencyForm = xfer.Key("max_concurrency_form").MustInt(cfg.MaxConcurrencyForm)
	cfg.PreferredPartSize = xfer.Key("preferred_part_size").MustInt64(cfg.PreferredPartSize)
	cfg.MinPartSize = xfer.Key("min_part_size").MustInt64(cfg.MinPartSize)
	cfg.MaxPartSize = xfer.Key("max_part_size").MustInt64(cfg.MaxPartSize)
	cfg.BufferBudget = xfer.Key("buffer_budget").MustInt64(cfg.BufferBudget)

	retry := f.Section("retry")
	cfg.RetryMaxCount = retry.Key("max_count").MustInt(cfg.RetryMaxCount)
	cfg.RetryMaxDurationSec = retry.Key("max_duration_seconds").MustInt(cfg.RetryMaxDurationSec)
	cfg.RetryIntervalMS = retry.Key("interval_ms").MustInt(cfg.RetryIntervalMS)
	cfg.RetryAllErrors = retry.Key("retry_all_errors").MustBool(cfg.RetryAllErrors)

	return cfg, nil
}

// Save writes cfg to path as INI, creating parent directories as needed.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("config: failed to determine path: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: failed to create directory: %w", err)
	}

	f := ini.Empty()

	proxy, err := f.NewSection("proxy")
	if err != nil {
		return err
	}
	proxy.Key("mode").SetValue(cfg.ProxyMode)
	proxy.Key("host").SetValue(cfg.ProxyHost)
	proxy.Key("port").SetValue(fmt.Sprintf("%d", cfg.ProxyPort))
	proxy.Key("user").SetValue(cfg.ProxyUser)
	proxy.Key("password").SetValue(cfg.ProxyPassword)
	proxy.Key("no_proxy").SetValue(cfg.NoProxy)

	xfer, err := f.NewSection("transfer")
	if err != nil {
		return err
	}
	xfer.Key("max_concurrency_block").SetValue(fmt.Sprintf("%d", cfg.MaxConcurrencyBlock))
	xfer.Key("max_concurrency_form").SetValue(fmt.Sprintf("%d", cfg.MaxConcurrencyForm))
	xfer.Key("preferred_part_size").SetValue(fmt.Sprintf("%d", cfg.PreferredPartSize))
	xfer.Key("min_part_size").SetValue(fmt.Sprintf("%d", cfg.MinPartSize))
	xfer.Key("max_part_size").SetValue(fmt.Sprintf("%d", cfg.MaxPartSize))
	xfer.Key("buffer_budget").SetValue(fmt.Sprintf("%d", cfg.BufferBudget))

	retry, err := f.NewSection("retry")
	if err != nil {
		return err
	}
	retry.Key("max_count").SetValue(fmt.Sprintf("%d", cfg.RetryMaxCount))
	retry.Key("max_duration_seconds").SetValue(fmt.Sprintf("%d", cfg.RetryMaxDurationSec))
	retry.Key("interval_ms").SetValue(fmt.Sprintf("%d", cfg.RetryIntervalMS))
	retry.Key("retry_all_errors").SetValue(fmt.Sprintf("%t", cfg.RetryAllErrors))

	tmp := path + ".tmp"
	if err := f.SaveTo(tmp); err != nil {
		return fmt.Errorf("config: failed to write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("config: failed to save: %w", err)
	}
	return nil
}

// NeedsProxyPassword reports whether the configured proxy mode requires
// credentials that haven't been supplied.
func NeedsProxyPassword(cfg *Config) bool {
	mode := strings.ToLower(cfg.ProxyMode)
	if mode != "basic" && mode != "ntlm" {
		return false
	}
	return cfg.ProxyUser != "" && cfg.ProxyPassword == ""
}
