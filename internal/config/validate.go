package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validateArchive(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateExport() error {
	if c.Export.Threads < 0 {
		return errors.New("export.threads must be zero (encoder default) or positive")
	}
	if c.Export.ProbeConcurrency > 64 {
		return fmt.Errorf("export.probe_concurrency must be at most 64, got %d", c.Export.ProbeConcurrency)
	}
	return nil
}

func (c *Config) validateArchive() error {
	switch c.Archive.Compression {
	case CompressionNone, CompressionZstd:
		return nil
	default:
		return fmt.Errorf("archive.compression: unsupported value %q (use %q or %q)", c.Archive.Compression, CompressionNone, CompressionZstd)
	}
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	u, err := url.Parse(c.Notifications.NtfyTopic)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) topic URL, got %q", c.Notifications.NtfyTopic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
