package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
)

// DefaultRestrictedURLs are the page URL patterns a fill pass refuses to
// touch: browser-internal pages and extension pages.
var DefaultRestrictedURLs = []string{
	"chrome://*",
	"chrome-extension://*",
	"edge://*",
	"about:*",
	"devtools://*",
}

type RuntimeConfig struct {
	Bind             string
	Port             string
	CdpURL           string
	Token            string
	StateDir         string
	Headless         bool
	ProfileDir       string
	ChromeBinary     string
	ChromeExtraFlags string
	MaxTabs          int
	StoreDriver      string
	PairsFile        string
	RestrictedURLs   []string
	Banner           bool
	Highlight        bool
	LogLevel         string
	BlurDelay        time.Duration
	HighlightHold    time.Duration
	HighlightFade    time.Duration
	ActionTimeout    time.Duration
	NavigateTimeout  time.Duration
	ShutdownTimeout  time.Duration
	PassLockTTL      time.Duration
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func envBoolOr(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// envMsOr reads a millisecond count.
func envMsOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return time.Duration(n) * time.Millisecond
}

func envListOr(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func homeDir() string {
	h, _ := os.UserHomeDir()
	return h
}

func (c *RuntimeConfig) ListenAddr() string {
	return c.Bind + ":" + c.Port
}

// StorePath returns the pairs file, derived from the state dir and store
// driver unless set explicitly.
func (c *RuntimeConfig) StorePath() string {
	if c.PairsFile != "" {
		return c.PairsFile
	}
	if c.StoreDriver == StoreSQLite {
		return filepath.Join(c.StateDir, "pairs.db")
	}
	return filepath.Join(c.StateDir, "pairs.json")
}

// SlogLevel maps LogLevel to a slog level; unknown names mean info.
func (c *RuntimeConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

type FileConfig struct {
	Port           string   `json:"port"`
	CdpURL         string   `json:"cdpUrl,omitempty"`
	Token          string   `json:"token,omitempty"`
	StateDir       string   `json:"stateDir"`
	ProfileDir     string   `json:"profileDir"`
	Headless       *bool    `json:"headless,omitempty"`
	MaxTabs        *int     `json:"maxTabs,omitempty"`
	Store          string   `json:"store,omitempty"`
	PairsFile      string   `json:"pairsFile,omitempty"`
	RestrictedURLs []string `json:"restrictedUrls,omitempty"`
	Banner         *bool    `json:"banner,omitempty"`
	Highlight      *bool    `json:"highlight,omitempty"`
	LogLevel       string   `json:"logLevel,omitempty"`
	TimeoutSec     int      `json:"timeoutSec,omitempty"`
	NavigateSec    int      `json:"navigateSec,omitempty"`
}

// Path returns the config file location.
func Path() string {
	return envOr("TYPELESS_CONFIG", filepath.Join(homeDir(), ".typeless", "config.json"))
}

func Load() *RuntimeConfig {
	cfg := &RuntimeConfig{
		Bind:             envOr("TYPELESS_BIND", "127.0.0.1"),
		Port:             envOr("TYPELESS_PORT", "9871"),
		CdpURL:           os.Getenv("CDP_URL"),
		Token:            os.Getenv("TYPELESS_TOKEN"),
		StateDir:         envOr("TYPELESS_STATE_DIR", filepath.Join(homeDir(), ".typeless")),
		Headless:         envBoolOr("TYPELESS_HEADLESS", false),
		ProfileDir:       envOr("TYPELESS_PROFILE", filepath.Join(homeDir(), ".typeless", "chrome-profile")),
		ChromeBinary:     os.Getenv("CHROME_BINARY"),
		ChromeExtraFlags: os.Getenv("CHROME_FLAGS"),
		MaxTabs:          envIntOr("TYPELESS_MAX_TABS", 20),
		StoreDriver:      strings.ToLower(envOr("TYPELESS_STORE", StoreJSON)),
		PairsFile:        os.Getenv("TYPELESS_PAIRS_FILE"),
		RestrictedURLs:   envListOr("TYPELESS_RESTRICTED_URLS", DefaultRestrictedURLs),
		Banner:           envBoolOr("TYPELESS_BANNER", true),
		Highlight:        envBoolOr("TYPELESS_HIGHLIGHT", true),
		LogLevel:         envOr("TYPELESS_LOG_LEVEL", "info"),
		BlurDelay:        envMsOr("TYPELESS_BLUR_DELAY_MS", 50*time.Millisecond),
		HighlightHold:    envMsOr("TYPELESS_HIGHLIGHT_MS", 1000*time.Millisecond),
		HighlightFade:    envMsOr("TYPELESS_FADE_MS", 300*time.Millisecond),
		ActionTimeout:    15 * time.Second,
		NavigateTimeout:  30 * time.Second,
		ShutdownTimeout:  10 * time.Second,
		PassLockTTL:      time.Minute,
	}

	data, err := os.ReadFile(Path())
	if err != nil {
		return cfg
	}

	var fc FileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		slog.Warn("ignoring malformed config file", "path", Path(), "err", err)
		return cfg
	}
	fc.apply(cfg)
	return cfg
}

// apply overlays file settings that no environment variable overrides.
func (fc FileConfig) apply(cfg *RuntimeConfig) {
	unset := func(key string) bool { return os.Getenv(key) == "" }

	if fc.Port != "" && unset("TYPELESS_PORT") {
		cfg.Port = fc.Port
	}
	if fc.CdpURL != "" && unset("CDP_URL") {
		cfg.CdpURL = fc.CdpURL
	}
	if fc.Token != "" && unset("TYPELESS_TOKEN") {
		cfg.Token = fc.Token
	}
	if fc.StateDir != "" && unset("TYPELESS_STATE_DIR") {
		cfg.StateDir = fc.StateDir
	}
	if fc.ProfileDir != "" && unset("TYPELESS_PROFILE") {
		cfg.ProfileDir = fc.ProfileDir
	}
	if fc.Headless != nil && unset("TYPELESS_HEADLESS") {
		cfg.Headless = *fc.Headless
	}
	if fc.MaxTabs != nil && unset("TYPELESS_MAX_TABS") {
		cfg.MaxTabs = *fc.MaxTabs
	}
	if fc.Store != "" && unset("TYPELESS_STORE") {
		cfg.StoreDriver = strings.ToLower(fc.Store)
	}
	if fc.PairsFile != "" && unset("TYPELESS_PAIRS_FILE") {
		cfg.PairsFile = fc.PairsFile
	}
	if len(fc.RestrictedURLs) > 0 && unset("TYPELESS_RESTRICTED_URLS") {
		cfg.RestrictedURLs = fc.RestrictedURLs
	}
	if fc.Banner != nil && unset("TYPELESS_BANNER") {
		cfg.Banner = *fc.Banner
	}
	if fc.Highlight != nil && unset("TYPELESS_HIGHLIGHT") {
		cfg.Highlight = *fc.Highlight
	}
	if fc.LogLevel != "" && unset("TYPELESS_LOG_LEVEL") {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.TimeoutSec > 0 && unset("TYPELESS_TIMEOUT") {
		cfg.ActionTimeout = time.Duration(fc.TimeoutSec) * time.Second
	}
	if fc.NavigateSec > 0 && unset("TYPELESS_NAV_TIMEOUT") {
		cfg.NavigateTimeout = time.Duration(fc.NavigateSec) * time.Second
	}
}

// Validate rejects settings the rest of the program cannot run with.
func (c *RuntimeConfig) Validate() error {
	switch c.StoreDriver {
	case StoreJSON, StoreSQLite:
	default:
		return fmt.Errorf("unknown store %q (want %s or %s)", c.StoreDriver, StoreJSON, StoreSQLite)
	}
	if c.Port == "" {
		return errors.New("port must not be empty")
	}
	return nil
}

func DefaultFileConfig() FileConfig {
	h := false
	banner := true
	return FileConfig{
		Port:           "9871",
		StateDir:       filepath.Join(homeDir(), ".typeless"),
		ProfileDir:     filepath.Join(homeDir(), ".typeless", "chrome-profile"),
		Headless:       &h,
		Store:          StoreJSON,
		RestrictedURLs: DefaultRestrictedURLs,
		Banner:         &banner,
		TimeoutSec:     15,
		NavigateSec:    30,
	}
}

// ErrConfigExists is returned by InitFile when the file is present and
// overwrite was not requested.
var ErrConfigExists = errors.New("config file already exists")

// InitFile writes the default config to path.
func InitFile(path string, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("%s: %w", path, ErrConfigExists)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(DefaultFileConfig(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Show prints the effective configuration with the token masked.
func Show(w io.Writer, cfg *RuntimeConfig) {
	fmt.Fprintln(w, "Current configuration:")
	fmt.Fprintf(w, "  Listen:      %s\n", cfg.ListenAddr())
	fmt.Fprintf(w, "  CDP URL:     %s\n", cfg.CdpURL)
	fmt.Fprintf(w, "  Token:       %s\n", MaskToken(cfg.Token))
	fmt.Fprintf(w, "  State Dir:   %s\n", cfg.StateDir)
	fmt.Fprintf(w, "  Store:       %s (%s)\n", cfg.StoreDriver, cfg.StorePath())
	fmt.Fprintf(w, "  Profile:     %s\n", cfg.ProfileDir)
	fmt.Fprintf(w, "  Headless:    %v\n", cfg.Headless)
	fmt.Fprintf(w, "  Max Tabs:    %d\n", cfg.MaxTabs)
	fmt.Fprintf(w, "  Banner:      %v\n", cfg.Banner)
	fmt.Fprintf(w, "  Highlight:   %v\n", cfg.Highlight)
	fmt.Fprintf(w, "  Restricted:  %s\n", strings.Join(cfg.RestrictedURLs, ", "))
	fmt.Fprintf(w, "  Timing:      blur=%v highlight=%v fade=%v\n", cfg.BlurDelay, cfg.HighlightHold, cfg.HighlightFade)
	fmt.Fprintf(w, "  Timeouts:    action=%v navigate=%v\n", cfg.ActionTimeout, cfg.NavigateTimeout)
	fmt.Fprintf(w, "  Log Level:   %s\n", cfg.LogLevel)
}

func MaskToken(t string) string {
	if t == "" {
		return "(none)"
	}
	if len(t) <= 8 {
		return "***"
	}
	return t[:4] + "..." + t[len(t)-4:]
}
