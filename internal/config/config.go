// Package config provides configuration management for book-binder and
// the trim-size catalogue shared by all pipeline stages.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"book-binder/internal/logger"
	"book-binder/internal/types"
)

const (
	// DefaultConfigFileName is the default configuration file name
	DefaultConfigFileName = "book-binder-config.json"
	// EnvPackageServer overrides the configured book package server
	EnvPackageServer = "BOOKBINDER_PACKAGE_SERVER"
	// DefaultPackageServer is the default book package server
	DefaultPackageServer = "www.booki.cc"
	// DefaultToolTimeoutSecs bounds every external tool invocation
	DefaultToolTimeoutSecs = 300
	// DefaultWkhtmltopdf is the HTML renderer binary
	DefaultWkhtmltopdf = "wkhtmltopdf"
	// DefaultXvfb is the virtual display server binary
	DefaultXvfb = "Xvfb"
	// DefaultSoffice is the office converter binary
	DefaultSoffice = "soffice"
	// DefaultEbookConvert is the e-book converter binary
	DefaultEbookConvert = "ebook-convert"
)

// Manager loads and persists the application configuration.
type Manager struct {
	configPath string
	config     *types.Config
}

// NewManager creates a Manager for the given config path. An empty path
// falls back to the default location in the user's home directory.
func NewManager(configPath string) (*Manager, error) {
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			logger.Error("failed to get user home directory", err)
			return nil, types.NewAppError(types.ErrConfig, "failed to get user home directory", err)
		}
		configPath = filepath.Join(homeDir, ".config", "book-binder", DefaultConfigFileName)
	}

	logger.Info("config manager initialized", logger.String("configPath", configPath))
	return &Manager{
		configPath: configPath,
		config:     defaultConfig(),
	}, nil
}

func defaultConfig() *types.Config {
	return &types.Config{
		TmpRoot:         os.TempDir(),
		CacheDir:        "",
		PackageServer:   DefaultPackageServer,
		WkhtmltopdfPath: DefaultWkhtmltopdf,
		XvfbPath:        DefaultXvfb,
		SofficePath:     DefaultSoffice,
		EbookConvert:    DefaultEbookConvert,
		ToolTimeoutSecs: DefaultToolTimeoutSecs,
		DefaultPageSize: DefaultPageSize,
	}
}

// Load reads the configuration file. A missing file is not an error;
// defaults are used. Environment variables take precedence for the
// package server.
func (m *Manager) Load() error {
	logger.Debug("loading configuration", logger.String("path", m.configPath))

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("config file not found, using defaults", logger.String("path", m.configPath))
			m.config = defaultConfig()
		} else {
			logger.Error("failed to read config file", err, logger.String("path", m.configPath))
			return types.NewAppError(types.ErrConfig, "failed to read config file", err)
		}
	} else {
		cfg := &types.Config{}
		if err := json.Unmarshal(data, cfg); err != nil {
			logger.Warn("invalid config file format, using defaults",
				logger.String("path", m.configPath), logger.Err(err))
			m.config = defaultConfig()
		} else {
			m.config = cfg
		}
	}

	// Apply defaults for empty fields
	d := defaultConfig()
	if m.config.TmpRoot == "" {
		m.config.TmpRoot = d.TmpRoot
	}
	if m.config.PackageServer == "" {
		m.config.PackageServer = d.PackageServer
	}
	if m.config.WkhtmltopdfPath == "" {
		m.config.WkhtmltopdfPath = d.WkhtmltopdfPath
	}
	if m.config.XvfbPath == "" {
		m.config.XvfbPath = d.XvfbPath
	}
	if m.config.SofficePath == "" {
		m.config.SofficePath = d.SofficePath
	}
	if m.config.EbookConvert == "" {
		m.config.EbookConvert = d.EbookConvert
	}
	if m.config.ToolTimeoutSecs == 0 {
		m.config.ToolTimeoutSecs = d.ToolTimeoutSecs
	}
	if m.config.DefaultPageSize == "" {
		m.config.DefaultPageSize = d.DefaultPageSize
	}
	if m.config.CacheDir == "" {
		m.config.CacheDir = filepath.Join(filepath.Dir(m.configPath), "cache")
	}

	return nil
}

// Save persists the current configuration to the config file.
func (m *Manager) Save() error {
	logger.Debug("saving configuration", logger.String("path", m.configPath))

	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("failed to create config directory", err, logger.String("dir", dir))
		return types.NewAppError(types.ErrConfig, "failed to create config directory", err)
	}

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		logger.Error("failed to marshal config", err)
		return types.NewAppError(types.ErrConfig, "failed to marshal config", err)
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		logger.Error("failed to write config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to write config file", err)
	}

	return nil
}

// Get returns the current configuration.
func (m *Manager) Get() *types.Config {
	if m.config == nil {
		return defaultConfig()
	}
	return m.config
}

// Set replaces the entire configuration.
func (m *Manager) Set(cfg *types.Config) {
	m.config = cfg
}

// ConfigPath returns the path to the config file.
func (m *Manager) ConfigPath() string {
	return m.configPath
}

// PackageServer returns the book package server, preferring the
// environment variable over the config file value.
func (m *Manager) PackageServer() string {
	if env := os.Getenv(EnvPackageServer); env != "" {
		return env
	}
	if m.config != nil && m.config.PackageServer != "" {
		return m.config.PackageServer
	}
	return DefaultPackageServer
}
