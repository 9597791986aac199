package mirror

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/forgemirror/internal/catalog"
	"github.com/danmuck/forgemirror/internal/platform"
	"github.com/danmuck/forgemirror/internal/vcs"
)

type fakeGit struct {
	mu sync.Mutex

	calls        []string
	cloneCode    map[string]int32
	cloneOutput  map[string]string
	importCode   int32
	importOutput string
	importPanics int
	pullCode     int32
	pushCode     int32
	delay        time.Duration

	inflight      map[string]int
	active        int
	maxActive     int
	maxPerProject int
	treesTouched  map[string]string
}

func newFakeGit() *fakeGit {
	return &fakeGit{
		cloneCode:    make(map[string]int32),
		cloneOutput:  make(map[string]string),
		inflight:     make(map[string]int),
		treesTouched: make(map[string]string),
	}
}

func (g *fakeGit) enter(op vcs.Op, project, tree string) {
	g.mu.Lock()
	g.calls = append(g.calls, string(op)+":"+project)
	g.inflight[project]++
	if g.inflight[project] > g.maxPerProject {
		g.maxPerProject = g.inflight[project]
	}
	g.active++
	if g.active > g.maxActive {
		g.maxActive = g.active
	}
	if tree != "" {
		g.treesTouched[tree] = project
	}
	delay := g.delay
	g.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
}

func (g *fakeGit) exit(project string) {
	g.mu.Lock()
	g.inflight[project]--
	g.active--
	g.mu.Unlock()
}

func (g *fakeGit) Clone(_ context.Context, _ string, destDir string) vcs.Result {
	project := filepath.Base(destDir)
	g.enter(vcs.OpClone, project, destDir)
	defer g.exit(project)

	g.mu.Lock()
	code := g.cloneCode[project]
	out := g.cloneOutput[project]
	g.mu.Unlock()
	if code == 0 {
		_ = os.MkdirAll(destDir, 0o755)
	}
	return vcs.Result{Op: vcs.OpClone, ExitCode: code, Output: out}
}

func (g *fakeGit) Pull(_ context.Context, workTree string) vcs.Result {
	project := filepath.Base(workTree)
	g.enter(vcs.OpPull, project, workTree)
	defer g.exit(project)
	g.mu.Lock()
	defer g.mu.Unlock()
	return vcs.Result{Op: vcs.OpPull, ExitCode: g.pullCode}
}

func (g *fakeGit) Push(_ context.Context, workTree, _ string, _ bool) vcs.Result {
	project := filepath.Base(workTree)
	g.enter(vcs.OpPush, project, workTree)
	defer g.exit(project)
	g.mu.Lock()
	defer g.mu.Unlock()
	return vcs.Result{Op: vcs.OpPush, ExitCode: g.pushCode}
}

func (g *fakeGit) PushTags(_ context.Context, workTree, _ string) vcs.Result {
	project := filepath.Base(workTree)
	g.enter(vcs.OpPushTags, project, workTree)
	defer g.exit(project)
	return vcs.Result{Op: vcs.OpPushTags}
}

func (g *fakeGit) LegacyImport(_ context.Context, workDir, _ string, projectID string) vcs.Result {
	g.enter(vcs.OpLegacyImport, projectID, "")
	defer g.exit(projectID)
	g.mu.Lock()
	code := g.importCode
	out := g.importOutput
	explode := g.importPanics > 0
	if explode {
		g.importPanics--
	}
	g.mu.Unlock()
	if explode {
		panic("cvsimport crashed")
	}
	if code == 0 {
		_ = os.MkdirAll(filepath.Join(workDir, projectID), 0o755)
	}
	return vcs.Result{Op: vcs.OpLegacyImport, ExitCode: code, Output: out}
}

func (g *fakeGit) count(call string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (g *fakeGit) countOp(op vcs.Op) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	prefix := string(op) + ":"
	for _, c := range g.calls {
		if len(c) > len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

type createCall struct {
	name        string
	homepage    string
	description string
}

type fakePlatform struct {
	mu sync.Mutex

	repos        map[string]platform.Settings
	creates      []createCall
	settings     map[string]int
	order        []string
	createErr    error
	settingsErr  error
	listErr      error
	listFailures int
	listCalls    int
	limit        int
}

func newFakePlatform(existing ...string) *fakePlatform {
	p := &fakePlatform{repos: make(map[string]platform.Settings), settings: make(map[string]int)}
	for _, name := range existing {
		p.repos[name] = platform.Settings{}
	}
	return p
}

func (p *fakePlatform) ListRepos(_ context.Context) (*platform.Registry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listCalls++
	if p.listFailures > 0 {
		p.listFailures--
		return nil, platform.ErrRegistryUnavailable
	}
	if p.listErr != nil {
		return nil, p.listErr
	}
	names := make([]string, 0, len(p.repos))
	for n := range p.repos {
		names = append(names, n)
	}
	reg := platform.NewRegistry(names...)
	if p.limit > 0 && len(names) >= p.limit {
		reg.Limit = p.limit
		reg.Truncated = true
	}
	return reg, nil
}

func (p *fakePlatform) Create(_ context.Context, name, homepage, description string) (platform.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.order = append(p.order, "create:"+name)
	p.creates = append(p.creates, createCall{name: name, homepage: homepage, description: description})
	if p.createErr != nil {
		return platform.Result{Op: platform.OpCreate, ExitCode: 1}, p.createErr
	}
	p.repos[name] = platform.Settings{}
	return platform.Result{Op: platform.OpCreate}, nil
}

func (p *fakePlatform) UpdateSettings(_ context.Context, name string, settings platform.Settings) (platform.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.order = append(p.order, "settings:"+name)
	p.settings[name]++
	if p.settingsErr != nil {
		return platform.Result{Op: platform.OpSettings, ExitCode: 1}, p.settingsErr
	}
	if _, ok := p.repos[name]; ok {
		p.repos[name] = settings
	}
	return platform.Result{Op: platform.OpSettings}, nil
}

func (p *fakePlatform) createCount(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.creates {
		if c.name == name {
			n++
		}
	}
	return n
}

type fakeCatalog struct {
	mu       sync.Mutex
	cat      *catalog.Catalog
	err      error
	failures int
	calls    int
}

func (c *fakeCatalog) Fetch(_ context.Context) (*catalog.Catalog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.failures > 0 {
		c.failures--
		return nil, catalog.ErrCatalogUnavailable
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.cat, nil
}

func newWorkflow(t *testing.T, git *fakeGit, plat *fakePlatform, capability *LegacyImport) *Workflow {
	t.Helper()
	layout := DefaultLayout(t.TempDir())
	layout.Org = "mirrors"
	return &Workflow{
		Layout:      layout,
		Git:         git,
		Platform:    plat,
		Capability:  capability,
		Settings:    platform.MirrorSettings(),
		AllBranches: true,
	}
}
