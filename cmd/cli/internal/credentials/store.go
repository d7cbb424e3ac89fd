package credentials

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	configFile = "config.yaml"

	// apiKeyPrefix matches the prefix the server puts on every issued key.
	apiKeyPrefix = "vi_"
)

var (
	// ErrProfileNotFound is returned when a profile doesn't exist.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrProfileExists is returned when trying to create a duplicate.
	ErrProfileExists = errors.New("profile already exists")

	// ErrNoDefaultProfile is returned when no default is set.
	ErrNoDefaultProfile = errors.New("no default profile set")

	// ErrInvalidAPIKey is returned for keys that were not issued by the server.
	ErrInvalidAPIKey = errors.New("invalid API key")
)

// Profile is a server URL and the API key used against it.
type Profile struct {
	Name        string    `yaml:"name"`
	ServerURL   string    `yaml:"server_url"`
	APIKey      string    `yaml:"api_key"`
	Fingerprint string    `yaml:"fingerprint"`
	CreatedAt   time.Time `yaml:"created_at"`
	UpdatedAt   time.Time `yaml:"updated_at"`
}

// Config represents the CLI configuration file.
type Config struct {
	Version        int                `yaml:"version"`
	DefaultProfile string             `yaml:"default_profile,omitempty"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// Store manages profiles in a YAML file on the local filesystem.
type Store struct {
	baseDir string
}

// NewStore creates a new profile store.
// If baseDir is empty, uses ~/.videoinsight/
func NewStore(baseDir string) (*Store, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".videoinsight")
	}

	// the file holds API keys
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	store := &Store{baseDir: baseDir}

	if err := store.ensureConfig(); err != nil {
		return nil, err
	}

	log.Debug().Str("baseDir", baseDir).Msg("profile store initialized")

	return store, nil
}

// Fingerprint identifies an API key in listings without revealing it.
func Fingerprint(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return base58.Encode(hash[:])[:12]
}

// Create stores a new profile. The first profile becomes the default.
func (s *Store) Create(name, serverURL, apiKey string) (*Profile, error) {
	if name == "" {
		return nil, errors.New("profile name is required")
	}
	if serverURL == "" {
		return nil, errors.New("server URL is required")
	}
	if !strings.HasPrefix(apiKey, apiKeyPrefix) {
		return nil, fmt.Errorf("%w: keys start with %q", ErrInvalidAPIKey, apiKeyPrefix)
	}

	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}
	if _, ok := cfg.Profiles[name]; ok {
		return nil, ErrProfileExists
	}

	now := time.Now().UTC()
	profile := Profile{
		Name:        name,
		ServerURL:   strings.TrimRight(serverURL, "/"),
		APIKey:      apiKey,
		Fingerprint: Fingerprint(apiKey),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	cfg.Profiles[name] = profile
	if cfg.DefaultProfile == "" {
		cfg.DefaultProfile = name
	}

	if err := s.saveConfig(cfg); err != nil {
		return nil, err
	}

	log.Info().
		Str("name", name).
		Str("fingerprint", profile.Fingerprint).
		Msg("profile created")

	return &profile, nil
}

// Get retrieves a profile by name.
func (s *Store) Get(name string) (*Profile, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	profile, ok := cfg.Profiles[name]
	if !ok {
		return nil, ErrProfileNotFound
	}

	return &profile, nil
}

// GetDefault retrieves the default profile.
// Returns ErrNoDefaultProfile if none is set.
func (s *Store) GetDefault() (*Profile, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	if cfg.DefaultProfile == "" {
		return nil, ErrNoDefaultProfile
	}

	return s.Get(cfg.DefaultProfile)
}

// Resolve returns the named profile, or the default when name is empty.
func (s *Store) Resolve(name string) (*Profile, error) {
	if name == "" {
		return s.GetDefault()
	}
	return s.Get(name)
}

// List returns all stored profiles sorted by name.
func (s *Store) List() ([]Profile, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	profiles := make([]Profile, 0, len(cfg.Profiles))
	for _, p := range cfg.Profiles {
		profiles = append(profiles, p)
	}
	slices.SortFunc(profiles, func(a, b Profile) int {
		return strings.Compare(a.Name, b.Name)
	})

	return profiles, nil
}

// Delete removes a profile.
func (s *Store) Delete(name string) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}

	if _, ok := cfg.Profiles[name]; !ok {
		return ErrProfileNotFound
	}

	delete(cfg.Profiles, name)

	if cfg.DefaultProfile == name {
		cfg.DefaultProfile = ""
	}

	if err := s.saveConfig(cfg); err != nil {
		return err
	}

	log.Info().Str("name", name).Msg("profile deleted")

	return nil
}

// SetDefault sets the default profile.
func (s *Store) SetDefault(name string) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}

	if _, ok := cfg.Profiles[name]; !ok {
		return ErrProfileNotFound
	}

	cfg.DefaultProfile = name

	if err := s.saveConfig(cfg); err != nil {
		return err
	}

	log.Info().Str("name", name).Msg("default profile set")

	return nil
}

func (s *Store) configPath() string {
	return filepath.Join(s.baseDir, configFile)
}

// ensureConfig creates an empty config if it doesn't exist.
func (s *Store) ensureConfig() error {
	if _, err := os.Stat(s.configPath()); err == nil {
		return nil
	}

	return s.saveConfig(&Config{
		Version:  1,
		Profiles: make(map[string]Profile),
	})
}

func (s *Store) loadConfig() (*Config, error) {
	data, err := os.ReadFile(s.configPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]Profile)
	}

	return &cfg, nil
}

// saveConfig writes the config file atomically.
func (s *Store) saveConfig(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpPath := s.configPath() + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if err := os.Rename(tmpPath, s.configPath()); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}
