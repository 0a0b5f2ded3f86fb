package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/dyluth/labdesk/pkg/board"
	"github.com/dyluth/labdesk/pkg/presence"
	"github.com/dyluth/labdesk/pkg/roster"
)

// Store backends
const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Defaults applied by Validate
const (
	DefaultFileName   = "labdesk.yml"
	DefaultRedisURL   = "redis://localhost:6379"
	DefaultSQLitePath = ".labdesk/sections.db"
	DefaultDraftsPath = ".labdesk/drafts"
	DefaultRedisImage = "redis:7-alpine"
	DefaultRedisPort  = 6379
	DefaultWorkspace  = "default"
	supportedVersion  = "1.0"
)

// Config represents the top-level labdesk.yml configuration
type Config struct {
	Version   string                   `yaml:"version"`
	Workspace string                   `yaml:"workspace"`
	Store     *StoreConfig             `yaml:"store,omitempty"`
	Members   []MemberConfig           `yaml:"members"`
	Sections  map[string]SectionConfig `yaml:"sections"`
	Presence  *PresenceConfig          `yaml:"presence,omitempty"`
	Drafts    *DraftsConfig            `yaml:"drafts,omitempty"`
	Services  *ServicesConfig          `yaml:"services,omitempty"`
}

// StoreConfig selects the Section Store backend
type StoreConfig struct {
	Backend    string `yaml:"backend"`               // "redis" (default) or "sqlite"
	RedisURL   string `yaml:"redis_url,omitempty"`   // e.g. redis://localhost:6379/0
	SQLitePath string `yaml:"sqlite_path,omitempty"` // Database file for the sqlite backend
}

// MemberConfig is one roster entry
type MemberConfig struct {
	Name string `yaml:"name"`
	Role string `yaml:"role,omitempty"` // "member" (default) or "admin"
}

// SectionConfig describes one board section
type SectionConfig struct {
	Kind    string   `yaml:"kind"`
	Columns []string `yaml:"columns"`
}

// PresenceConfig tunes typing signals
type PresenceConfig struct {
	TypingTTL      time.Duration `yaml:"typing_ttl,omitempty"`
	TypingDebounce time.Duration `yaml:"typing_debounce,omitempty"`
}

// DraftsConfig locates the on-disk draft cache
type DraftsConfig struct {
	Path string `yaml:"path,omitempty"`
}

// ServicesConfig specifies service-level overrides
type ServicesConfig struct {
	Redis *RedisService `yaml:"redis,omitempty"`
}

// RedisService configures the local Redis container started by `labdesk up`
type RedisService struct {
	Image string `yaml:"image,omitempty"`
	Port  int    `yaml:"port,omitempty"`
}

// Validate performs strict validation on the configuration and fills in
// defaults for omitted optional sections.
func (c *Config) Validate() error {
	if c.Version != supportedVersion {
		return fmt.Errorf("unsupported version: %s (expected: %s)", c.Version, supportedVersion)
	}

	if c.Workspace == "" {
		c.Workspace = DefaultWorkspace
	}

	if c.Store == nil {
		c.Store = &StoreConfig{}
	}
	if err := c.Store.validate(); err != nil {
		return err
	}

	if len(c.Members) == 0 {
		return fmt.Errorf("no members defined")
	}
	if _, err := c.Roster(); err != nil {
		return fmt.Errorf("members: %w", err)
	}

	for name, s := range c.Sections {
		if err := s.Validate(name); err != nil {
			return err
		}
	}

	if c.Presence == nil {
		c.Presence = &PresenceConfig{}
	}
	if c.Presence.TypingTTL < 0 || c.Presence.TypingDebounce < 0 {
		return fmt.Errorf("presence durations must be positive")
	}
	if c.Presence.TypingTTL == 0 {
		c.Presence.TypingTTL = presence.DefaultTypingTTL
	}
	if c.Presence.TypingDebounce == 0 {
		c.Presence.TypingDebounce = presence.DefaultTypingDebounce
	}
	if c.Presence.TypingDebounce >= c.Presence.TypingTTL {
		return fmt.Errorf("presence.typing_debounce (%s) must be shorter than presence.typing_ttl (%s)",
			c.Presence.TypingDebounce, c.Presence.TypingTTL)
	}

	if c.Drafts == nil {
		c.Drafts = &DraftsConfig{}
	}
	if c.Drafts.Path == "" {
		c.Drafts.Path = DefaultDraftsPath
	}

	if c.Services == nil {
		c.Services = &ServicesConfig{}
	}
	if c.Services.Redis == nil {
		c.Services.Redis = &RedisService{}
	}
	if c.Services.Redis.Image == "" {
		c.Services.Redis.Image = DefaultRedisImage
	}
	if c.Services.Redis.Port == 0 {
		c.Services.Redis.Port = DefaultRedisPort
	}
	if c.Services.Redis.Port < 1 || c.Services.Redis.Port > 65535 {
		return fmt.Errorf("services.redis.port out of range: %d", c.Services.Redis.Port)
	}

	return nil
}

func (s *StoreConfig) validate() error {
	if s.Backend == "" {
		s.Backend = BackendRedis
	}
	switch s.Backend {
	case BackendRedis:
		if s.RedisURL == "" {
			s.RedisURL = DefaultRedisURL
		}
		if _, err := redis.ParseURL(s.RedisURL); err != nil {
			return fmt.Errorf("store.redis_url: %w", err)
		}
	case BackendSQLite:
		if s.SQLitePath == "" {
			s.SQLitePath = DefaultSQLitePath
		}
	default:
		return fmt.Errorf("invalid store.backend: %s (must be 'redis' or 'sqlite')", s.Backend)
	}
	return nil
}

// Validate performs validation on a single section
func (s SectionConfig) Validate(name string) error {
	if name == "" {
		return fmt.Errorf("section name cannot be empty")
	}
	if err := board.Kind(s.Kind).Validate(); err != nil {
		return fmt.Errorf("section '%s': %w", name, err)
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("section '%s': at least one column is required", name)
	}
	seen := make(map[string]bool, len(s.Columns))
	for _, col := range s.Columns {
		if col == "" {
			return fmt.Errorf("section '%s': column names cannot be empty", name)
		}
		if seen[col] {
			return fmt.Errorf("section '%s': duplicate column '%s'", name, col)
		}
		seen[col] = true
	}
	return nil
}

// Roster builds the member roster.
func (c *Config) Roster() (*roster.Roster, error) {
	members := make([]roster.Member, 0, len(c.Members))
	for _, m := range c.Members {
		members = append(members, roster.Member{Name: m.Name, Role: roster.Role(m.Role)})
	}
	return roster.New(members...)
}

// SectionNames returns the configured section names in sorted order.
func (c *Config) SectionNames() []string {
	names := make([]string, 0, len(c.Sections))
	for name := range c.Sections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Section returns the named section.
func (c *Config) Section(name string) (SectionConfig, error) {
	s, ok := c.Sections[name]
	if !ok {
		return SectionConfig{}, fmt.Errorf("unknown section '%s' (configured: %v)", name, c.SectionNames())
	}
	return s, nil
}

// RedisOptions parses the configured Redis URL.
func (s *StoreConfig) RedisOptions() (*redis.Options, error) {
	url := s.RedisURL
	if url == "" {
		url = DefaultRedisURL
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return opts, nil
}

// Load reads labdesk.yml from path, applies environment overrides from the
// process and from a .env file beside it, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := LoadDotEnv(filepath.Dir(path)); err != nil {
		return nil, err
	}
	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Local state lives beside the config file, not the working directory.
	dir := filepath.Dir(path)
	config.Store.SQLitePath = resolvePath(dir, config.Store.SQLitePath)
	config.Drafts.Path = resolvePath(dir, config.Drafts.Path)

	return &config, nil
}

func resolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
