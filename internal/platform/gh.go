package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/forgemirror/internal/tools"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

var (
	ErrRegistryUnavailable = errors.New("platform: registry unavailable")
	ErrCreateFailed        = errors.New("platform: create repository failed")
	ErrSettingsFailed      = errors.New("platform: settings update failed")
	ErrInvalidName         = errors.New("platform: invalid repository name")
)

const (
	DefaultGHBinary     = "gh"
	DefaultOrg          = "gnu-mirror-unofficial"
	DefaultListLimit    = 1000
	DefaultConfirmFlag  = "--confirm"
	settingsAPIEndpoint = "repos/%s/%s"
)

// Op names one platform operation.
type Op string

const (
	OpList     Op = "list"
	OpCreate   Op = "create"
	OpSettings Op = "settings"
)

// Result is the raw outcome of one gh invocation.
type Result struct {
	Op       Op
	ExitCode int32
	Output   string
}

// Settings selects repository features to switch off on a mirror.
type Settings struct {
	DisableIssues   bool
	DisableWiki     bool
	DisableProjects bool
}

// MirrorSettings disables every collaboration feature; mirrors are read-only.
func MirrorSettings() Settings {
	return Settings{DisableIssues: true, DisableWiki: true, DisableProjects: true}
}

// Gateway is the platform contract the mirror orchestrator depends on.
type Gateway interface {
	ListRepos(ctx context.Context) (*Registry, error)
	Create(ctx context.Context, name, homepage, description string) (Result, error)
	UpdateSettings(ctx context.Context, name string, settings Settings) (Result, error)
}

// GHConfig configures the gh-backed gateway.
type GHConfig struct {
	Binary string
	Org    string
	Limit  int
	// ConfirmFlag is appended to `repo create`; empty omits it (gh >= 2.20
	// no longer prompts and rejects the deprecated -y/--confirm on some builds).
	ConfirmFlag string
	Runner      tools.CommandRunner
}

// GH implements Gateway with the GitHub CLI.
type GH struct {
	binary      string
	org         string
	limit       int
	confirmFlag string
	runner      tools.CommandRunner
}

// NewGH returns a gh gateway with defaults applied to empty fields.
func NewGH(cfg GHConfig) *GH {
	binary := strings.TrimSpace(cfg.Binary)
	if binary == "" {
		binary = DefaultGHBinary
	}
	org := strings.TrimSpace(cfg.Org)
	if org == "" {
		org = DefaultOrg
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	runner := cfg.Runner
	if runner == nil {
		runner = tools.ExecRunner{}
	}
	return &GH{
		binary:      binary,
		org:         org,
		limit:       limit,
		confirmFlag: strings.TrimSpace(cfg.ConfirmFlag),
		runner:      runner,
	}
}

// Org returns the owner every repository operation targets.
func (g *GH) Org() string {
	return g.org
}

// ListRepos snapshots the names of all repositories under the org.
func (g *GH) ListRepos(ctx context.Context) (*Registry, error) {
	log.Info().Str("org", g.org).Int("limit", g.limit).Msg("fetching existing mirror repos")
	out, code, err := g.runner.Run(ctx, "", g.binary,
		"repo", "list", g.org, "--json", "name", "--limit", fmt.Sprint(g.limit))
	if err != nil || code != 0 {
		return nil, fmt.Errorf("%w: gh repo list exit=%d: %v: %s",
			ErrRegistryUnavailable, code, err, strings.TrimSpace(string(out)))
	}
	if !gjson.ValidBytes(out) || !gjson.ParseBytes(out).IsArray() {
		return nil, fmt.Errorf("%w: gh repo list returned non-array json", ErrRegistryUnavailable)
	}

	names := make([]string, 0)
	for _, n := range gjson.GetBytes(out, "#.name").Array() {
		if name := strings.TrimSpace(n.String()); name != "" {
			names = append(names, name)
		}
	}
	reg := NewRegistry(names...)
	reg.Limit = g.limit
	if len(names) >= g.limit {
		reg.Truncated = true
		log.Warn().Int("limit", g.limit).Msg("mirror listing hit its limit; existing repos beyond it will be treated as absent")
	}
	log.Info().Int("repos", reg.Len()).Msg("fetched existing mirror repos")
	return reg, nil
}

// Create makes a public repository under the org. Failures are returned for
// the caller to log; creation is best-effort.
func (g *GH) Create(ctx context.Context, name, homepage, description string) (Result, error) {
	if err := validateName(name); err != nil {
		return Result{Op: OpCreate, ExitCode: -1}, err
	}
	args := []string{
		"repo", "create", g.org + "/" + name,
		"--homepage", homepage,
		"--description", SanitizeDescription(description),
		"--public",
	}
	if g.confirmFlag != "" {
		args = append(args, g.confirmFlag)
	}
	return g.exec(ctx, OpCreate, ErrCreateFailed, args...)
}

// UpdateSettings patches repository features. Applying the same settings
// twice is harmless.
func (g *GH) UpdateSettings(ctx context.Context, name string, settings Settings) (Result, error) {
	if err := validateName(name); err != nil {
		return Result{Op: OpSettings, ExitCode: -1}, err
	}
	args := []string{"api", fmt.Sprintf(settingsAPIEndpoint, g.org, name), "--silent", "-X", "PATCH"}
	if settings.DisableIssues {
		args = append(args, "-F", "has_issues=false")
	}
	if settings.DisableProjects {
		args = append(args, "-F", "has_projects=false")
	}
	if settings.DisableWiki {
		args = append(args, "-F", "has_wiki=false")
	}
	return g.exec(ctx, OpSettings, ErrSettingsFailed, args...)
}

func (g *GH) exec(ctx context.Context, op Op, sentinel error, args ...string) (Result, error) {
	out, code, err := g.runner.Run(ctx, "", g.binary, args...)
	res := Result{Op: op, ExitCode: code, Output: string(out)}
	if err != nil || code != 0 {
		log.Warn().Str("op", string(op)).Int32("exit", code).Err(err).Msg("gh")
		if code == 0 {
			res.ExitCode = 1
		}
		return res, fmt.Errorf("%w: exit=%d: %v", sentinel, res.ExitCode, err)
	}
	log.Debug().Str("op", string(op)).Msg("gh ok")
	return res, nil
}

// SanitizeDescription folds a description onto one line. The platform
// rejects descriptions containing control characters such as newlines.
func SanitizeDescription(desc string) string {
	return strings.Join(strings.Fields(desc), " ")
}

func validateName(name string) error {
	n := strings.TrimSpace(name)
	if n == "" || n != name || n == "." || n == ".." || strings.ContainsAny(n, "/ \t\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
