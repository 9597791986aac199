package mirror

import (
	"path/filepath"
	"strings"

	"github.com/danmuck/forgemirror/internal/platform"
)

const (
	PlaceholderProject = "{project}"
	PlaceholderOrg     = "{org}"
)

const (
	DefaultProjectURL   = "https://savannah.gnu.org/projects/{project}"
	DefaultOriginGitURL = "https://git.savannah.gnu.org/git/{project}.git"
	DefaultLegacyRef    = ":pserver:anonymous@cvs.savannah.gnu.org:/web/{project}"
	DefaultMirrorURL    = "https://github.com/{org}/{project}"
	DefaultSuffix       = "Official repo link below. Please read this organisation's pinned readme for info."
)

// Layout resolves every per-project location from templates.
type Layout struct {
	WorkDir           string
	Org               string
	ProjectURL        string
	OriginGitURL      string
	LegacyRef         string
	MirrorURL         string
	DescriptionSuffix string
}

// DefaultLayout targets Savannah and the unofficial GNU mirror org.
func DefaultLayout(workDir string) Layout {
	return Layout{
		WorkDir:           workDir,
		Org:               platform.DefaultOrg,
		ProjectURL:        DefaultProjectURL,
		OriginGitURL:      DefaultOriginGitURL,
		LegacyRef:         DefaultLegacyRef,
		MirrorURL:         DefaultMirrorURL,
		DescriptionSuffix: DefaultSuffix,
	}
}

// WorkTree is the local clone location for project.
func (l Layout) WorkTree(project string) string {
	return filepath.Join(l.WorkDir, project)
}

func (l Layout) ProjectPage(project string) string {
	return l.expand(l.ProjectURL, project)
}

func (l Layout) OriginRemote(project string) string {
	return l.expand(l.OriginGitURL, project)
}

func (l Layout) LegacySource(project string) string {
	return l.expand(l.LegacyRef, project)
}

func (l Layout) MirrorRemote(project string) string {
	return l.expand(l.MirrorURL, project)
}

// MirrorDescription appends the pointer back to the origin. The result is a
// single line.
func (l Layout) MirrorDescription(original string) string {
	desc := platform.SanitizeDescription(original)
	suffix := platform.SanitizeDescription(l.DescriptionSuffix)
	switch {
	case suffix == "":
		return desc
	case desc == "":
		return suffix
	default:
		return desc + " - " + suffix
	}
}

func (l Layout) expand(tmpl, project string) string {
	return strings.NewReplacer(PlaceholderProject, project, PlaceholderOrg, l.Org).Replace(tmpl)
}
