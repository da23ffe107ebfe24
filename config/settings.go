package config

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server    ServerSettings   `json:"server"`
	NMJ       NMJSettings      `json:"nmj"`
	Providers []ProviderConfig `json:"providers"`
	Cache     CacheSettings    `json:"cache"`
	Log       LogConfig        `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// NMJSettings holds the saved Popcorn Hour connection. Database and Mount are
// normally filled in by probing the device.
type NMJSettings struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Database string `json:"database"`
	Mount    string `json:"mount"`
}

type ProviderConfig struct {
	Name        string `json:"name"`              // Must match a built-in provider name, e.g. "Nyaa"
	URL         string `json:"url,omitempty"`     // Overrides the provider's default base URL
	APIKey      string `json:"apiKey,omitempty"`  // Jackett only
	Enabled     bool   `json:"enabled"`
	MinSeeders  int    `json:"minSeeders"`
	MinLeechers int    `json:"minLeechers"`
}

type CacheSettings struct {
	Directory     string `json:"directory"`
	DatabasePath  string `json:"databasePath"`
	RecentTTLMins int    `json:"recentTtlMins"` // How long cached RSS results stay in memory
}

// LogConfig represents logging configuration
type LogConfig struct {
	File       string `json:"file"`
	Level      string `json:"level"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// DefaultSettings returns sane defaults for a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{Host: "0.0.0.0", Port: 8081},
		NMJ:    NMJSettings{Enabled: false},
		Providers: []ProviderConfig{
			{Name: "Nyaa", Enabled: true},
			{Name: "YTS", Enabled: true},
			{Name: "Jackett", Enabled: false, URL: "http://localhost:9117"},
		},
		Cache: CacheSettings{Directory: "cache", DatabasePath: "cache/providers.db", RecentTTLMins: 15},
		Log: LogConfig{
			File:       "cache/logs/medialib.log",
			Level:      "info",
			MaxSize:    20,   // 20 MB per file
			MaxBackups: 3,    // keep 3 old files
			MaxAge:     7,    // 7 days
			Compress:   true, // compress old files
		},
	}
}

// Manager loads and persists settings to a JSON file.
type Manager struct {
	fs   afero.Fs
	path string
}

// NewManager returns a manager backed by the OS file system.
func NewManager(configPath string) *Manager {
	return NewManagerWithFs(afero.NewOsFs(), configPath)
}

// NewManagerWithFs is used by tests to run against an in-memory file system.
func NewManagerWithFs(fs afero.Fs, configPath string) *Manager {
	return &Manager{fs: fs, path: configPath}
}

// Path returns the settings file location.
func (m *Manager) Path() string {
	return m.path
}

// EnsureDir ensures parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return m.fs.MkdirAll(dir, 0o755)
}

// Load reads settings.json from disk or creates defaults if missing.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	exists, err := afero.Exists(m.fs, m.path)
	if err != nil {
		return Settings{}, err
	}
	if !exists {
		// create with defaults
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}

	data, err := afero.ReadFile(m.fs, m.path)
	if err != nil {
		return Settings{}, err
	}

	// First, decode into a raw map to pick up the old flat NMJ keys
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Settings{}, err
	}
	migrated := migrateLegacyNMJ(raw)
	if migrated {
		if data, err = json.Marshal(raw); err != nil {
			return Settings{}, err
		}
	}

	s := DefaultSettings()
	s.Providers = nil
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, err
	}
	if s.Providers == nil {
		s.Providers = DefaultSettings().Providers
	}

	s.NMJ.Host = strings.TrimSpace(s.NMJ.Host)
	s.NMJ.Database = strings.TrimSpace(s.NMJ.Database)
	s.NMJ.Mount = strings.TrimSpace(s.NMJ.Mount)
	if s.Cache.DatabasePath == "" {
		s.Cache.DatabasePath = filepath.Join(s.Cache.Directory, "providers.db")
	}
	if s.Cache.RecentTTLMins <= 0 {
		s.Cache.RecentTTLMins = 15
	}

	if migrated {
		if err := m.Save(s); err != nil {
			return Settings{}, err
		}
	}
	return s, nil
}

// migrateLegacyNMJ moves top-level useNmj/nmjHost/nmjDatabase/nmjMount keys
// into the nmj section. Values already present in the section win.
func migrateLegacyNMJ(raw map[string]interface{}) bool {
	legacy := map[string]string{
		"useNmj":      "enabled",
		"nmjHost":     "host",
		"nmjDatabase": "database",
		"nmjMount":    "mount",
	}

	section, _ := raw["nmj"].(map[string]interface{})
	migrated := false
	for oldKey, newKey := range legacy {
		value, ok := raw[oldKey]
		if !ok {
			continue
		}
		if section == nil {
			section = map[string]interface{}{}
		}
		if _, exists := section[newKey]; !exists {
			section[newKey] = value
		}
		delete(raw, oldKey)
		migrated = true
	}
	if migrated {
		raw["nmj"] = section
	}
	return migrated
}

// UpdateNMJ loads the current settings, applies fn to the NMJ section and saves.
func (m *Manager) UpdateNMJ(fn func(*NMJSettings)) (Settings, error) {
	s, err := m.Load()
	if err != nil {
		return Settings{}, err
	}
	fn(&s.NMJ)
	if err := m.Save(s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Save writes the provided settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := m.fs.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = m.fs.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = m.fs.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = m.fs.Remove(tmp)
		return err
	}
	return m.fs.Rename(tmp, m.path)
}
