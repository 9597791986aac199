package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/forgemirror/internal/catalog"
	"github.com/danmuck/forgemirror/internal/mirror"
	"github.com/danmuck/forgemirror/internal/platform"
	"github.com/danmuck/forgemirror/internal/runlog"
	"github.com/rs/zerolog/log"
)

var ErrInvalid = errors.New("config: invalid")

// DefaultPath is where mirrorctl looks for its config file.
const DefaultPath = "mirrorctl.toml"

// Config is the resolved mirrorctl configuration.
type Config struct {
	Concurrency int
	WorkDir     string
	Org         string

	SearchURL  string
	SearchRows int

	ProjectURL        string
	OriginGitURL      string
	LegacyRef         string
	MirrorURL         string
	DescriptionSuffix string

	AllBranches   bool
	PushTags      bool
	LegacyImport  bool
	RegistryLimit int

	GitBin        string
	GHBin         string
	GHConfirmFlag string

	CommandTimeout  time.Duration
	FetchMaxElapsed time.Duration
	HTTPTimeout     time.Duration

	RunlogEnabled   bool
	RunlogDir       string
	MetricsTextfile string

	ServeListen   string
	ServeInterval time.Duration
	CORSOrigins   []string
}

// Default mirrors every Savannah project into the unofficial GNU mirror org
// using the parent of the current directory as the working dir.
func Default() Config {
	return Config{
		Concurrency:       mirror.ConcurrencyDefault,
		WorkDir:           "..",
		Org:               platform.DefaultOrg,
		SearchURL:         catalog.DefaultSearchURL,
		SearchRows:        catalog.DefaultRows,
		ProjectURL:        mirror.DefaultProjectURL,
		OriginGitURL:      mirror.DefaultOriginGitURL,
		LegacyRef:         mirror.DefaultLegacyRef,
		MirrorURL:         mirror.DefaultMirrorURL,
		DescriptionSuffix: mirror.DefaultSuffix,
		AllBranches:       true,
		PushTags:          false,
		LegacyImport:      true,
		RegistryLimit:     platform.DefaultListLimit,
		GitBin:            "git",
		GHBin:             platform.DefaultGHBinary,
		GHConfirmFlag:     platform.DefaultConfirmFlag,
		CommandTimeout:    0,
		FetchMaxElapsed:   2 * time.Minute,
		HTTPTimeout:       catalog.DefaultTimeout,
		RunlogEnabled:     true,
		ServeListen:       "127.0.0.1:9310",
		ServeInterval:     6 * time.Hour,
	}
}

type fileConfig struct {
	Concurrency       int      `toml:"concurrency"`
	WorkDir           string   `toml:"workdir"`
	Org               string   `toml:"org"`
	SearchURL         string   `toml:"search_url"`
	SearchRows        int      `toml:"search_rows"`
	ProjectURL        string   `toml:"project_url"`
	OriginGitURL      string   `toml:"origin_git_url"`
	LegacyRef         string   `toml:"legacy_ref"`
	MirrorURL         string   `toml:"mirror_url"`
	DescriptionSuffix string   `toml:"description_suffix"`
	AllBranches       bool     `toml:"all_branches"`
	PushTags          bool     `toml:"push_tags"`
	LegacyImport      bool     `toml:"legacy_import"`
	RegistryLimit     int      `toml:"registry_limit"`
	GitBin            string   `toml:"git_bin"`
	GHBin             string   `toml:"gh_bin"`
	GHConfirmFlag     string   `toml:"gh_confirm_flag"`
	CommandTimeout    string   `toml:"command_timeout"`
	FetchMaxElapsed   string   `toml:"fetch_max_elapsed"`
	HTTPTimeout       string   `toml:"http_timeout"`
	RunlogEnabled     bool     `toml:"runlog_enabled"`
	RunlogDir         string   `toml:"runlog_dir"`
	MetricsTextfile   string   `toml:"metrics_textfile"`
	ServeListen       string   `toml:"serve_listen"`
	ServeInterval     string   `toml:"serve_interval"`
	CORSOrigins       []string `toml:"cors_origins"`
}

// Load overlays the keys present in path onto Default and validates the
// result. Unknown keys are logged and ignored.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load mirrorctl config (%s): %w", path, err)
	}
	for _, key := range meta.Undecoded() {
		log.Warn().Str("key", key.String()).Str("path", path).Msg("unknown config key ignored")
	}

	if meta.IsDefined("concurrency") {
		cfg.Concurrency = raw.Concurrency
	}
	str := func(key string, dst *string, v string) {
		if meta.IsDefined(key) {
			*dst = strings.TrimSpace(v)
		}
	}
	str("workdir", &cfg.WorkDir, raw.WorkDir)
	str("org", &cfg.Org, raw.Org)
	str("search_url", &cfg.SearchURL, raw.SearchURL)
	str("project_url", &cfg.ProjectURL, raw.ProjectURL)
	str("origin_git_url", &cfg.OriginGitURL, raw.OriginGitURL)
	str("legacy_ref", &cfg.LegacyRef, raw.LegacyRef)
	str("mirror_url", &cfg.MirrorURL, raw.MirrorURL)
	str("git_bin", &cfg.GitBin, raw.GitBin)
	str("gh_bin", &cfg.GHBin, raw.GHBin)
	str("gh_confirm_flag", &cfg.GHConfirmFlag, raw.GHConfirmFlag)
	str("runlog_dir", &cfg.RunlogDir, raw.RunlogDir)
	str("metrics_textfile", &cfg.MetricsTextfile, raw.MetricsTextfile)
	str("serve_listen", &cfg.ServeListen, raw.ServeListen)

	// The suffix keeps its inner spacing; sanitizing happens at use.
	if meta.IsDefined("description_suffix") {
		cfg.DescriptionSuffix = raw.DescriptionSuffix
	}
	if meta.IsDefined("search_rows") {
		cfg.SearchRows = raw.SearchRows
	}
	if meta.IsDefined("registry_limit") {
		cfg.RegistryLimit = raw.RegistryLimit
	}
	if meta.IsDefined("all_branches") {
		cfg.AllBranches = raw.AllBranches
	}
	if meta.IsDefined("push_tags") {
		cfg.PushTags = raw.PushTags
	}
	if meta.IsDefined("legacy_import") {
		cfg.LegacyImport = raw.LegacyImport
	}
	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = normalizeList(raw.CORSOrigins)
	}
	if meta.IsDefined("runlog_enabled") {
		cfg.RunlogEnabled = raw.RunlogEnabled
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"command_timeout", raw.CommandTimeout, &cfg.CommandTimeout},
		{"fetch_max_elapsed", raw.FetchMaxElapsed, &cfg.FetchMaxElapsed},
		{"http_timeout", raw.HTTPTimeout, &cfg.HTTPTimeout},
		{"serve_interval", raw.ServeInterval, &cfg.ServeInterval},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the orchestrator cannot run with.
func (c Config) Validate() error {
	if _, err := mirror.ResolveWorkers(c.Concurrency); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if strings.TrimSpace(c.WorkDir) == "" {
		return fmt.Errorf("%w: workdir is required", ErrInvalid)
	}
	if strings.TrimSpace(c.Org) == "" || strings.ContainsAny(c.Org, "/ \t") {
		return fmt.Errorf("%w: org %q", ErrInvalid, c.Org)
	}
	if _, err := url.Parse(c.SearchURL); err != nil || strings.TrimSpace(c.SearchURL) == "" {
		return fmt.Errorf("%w: search_url %q", ErrInvalid, c.SearchURL)
	}
	templates := map[string]string{
		"project_url":    c.ProjectURL,
		"origin_git_url": c.OriginGitURL,
		"legacy_ref":     c.LegacyRef,
		"mirror_url":     c.MirrorURL,
	}
	for key, tmpl := range templates {
		if !strings.Contains(tmpl, mirror.PlaceholderProject) {
			return fmt.Errorf("%w: %s must contain %s", ErrInvalid, key, mirror.PlaceholderProject)
		}
	}
	if c.SearchRows < 0 || c.RegistryLimit < 0 {
		return fmt.Errorf("%w: search_rows and registry_limit must not be negative", ErrInvalid)
	}
	if c.CommandTimeout < 0 || c.FetchMaxElapsed < 0 || c.HTTPTimeout < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalid)
	}
	if c.ServeInterval <= 0 {
		return fmt.Errorf("%w: serve_interval must be positive", ErrInvalid)
	}
	if strings.TrimSpace(c.GitBin) == "" || strings.TrimSpace(c.GHBin) == "" {
		return fmt.Errorf("%w: git_bin and gh_bin are required", ErrInvalid)
	}
	return nil
}

// Layout resolves the per-project locations.
func (c Config) Layout() mirror.Layout {
	return mirror.Layout{
		WorkDir:           c.WorkDir,
		Org:               c.Org,
		ProjectURL:        c.ProjectURL,
		OriginGitURL:      c.OriginGitURL,
		LegacyRef:         c.LegacyRef,
		MirrorURL:         c.MirrorURL,
		DescriptionSuffix: c.DescriptionSuffix,
	}
}

// RunlogRoot is runlog_dir, or the default location under the working dir.
func (c Config) RunlogRoot() string {
	if strings.TrimSpace(c.RunlogDir) != "" {
		return c.RunlogDir
	}
	return filepath.Join(c.WorkDir, filepath.FromSlash(runlog.DefaultDir))
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
