package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateDenoise(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	return c.validateBridge()
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateUpload() error {
	endpoint := strings.TrimSpace(c.Upload.Endpoint)
	if endpoint == "" {
		return nil
	}
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("upload.endpoint %q is not a valid URL", endpoint)
	}
	if c.Upload.RequestTimeout <= 0 {
		return errors.New("upload.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateCapture() error {
	if c.Capture.ChunkIntervalMs <= 0 {
		return errors.New("capture.chunk_interval_ms must be positive")
	}
	if c.Capture.LevelIntervalMs <= 0 {
		return errors.New("capture.level_interval_ms must be positive")
	}
	return nil
}

func (c *Config) validateDenoise() error {
	if !c.Denoise.Enabled {
		return nil
	}
	if c.Denoise.FrameMs <= 0 {
		return errors.New("denoise.frame_ms must be positive when denoise is enabled")
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	if c.Timeouts.Start <= 0 {
		return errors.New("timeouts.start must be positive")
	}
	if c.Timeouts.Stop <= 0 {
		return errors.New("timeouts.stop must be positive")
	}
	if c.Timeouts.Command <= 0 {
		return errors.New("timeouts.command must be positive")
	}
	if c.Timeouts.Stop < c.Timeouts.Command {
		return errors.New("timeouts.stop must not be shorter than timeouts.command")
	}
	return nil
}

func (c *Config) validateBridge() error {
	bind := strings.TrimSpace(c.Bridge.PageBind)
	if bind == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(bind); err != nil {
		return fmt.Errorf("bridge.page_bind %q is not host:port", bind)
	}
	if origin := strings.TrimSpace(c.Bridge.PageOrigin); origin != "" {
		parsed, err := url.Parse(origin)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("bridge.page_origin %q is not a valid origin URL", origin)
		}
	}
	return nil
}
