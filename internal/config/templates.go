package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Template returns the annotated default config file.
func Template() string {
	return mirrorctlTemplate
}

// WriteTemplate writes the default config to path, refusing to replace an
// existing file unless overwrite is set.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(mirrorctlTemplate), 0o600)
}

const mirrorctlTemplate = `# mirrorctl configuration

# 0 runs projects one at a time, -1 picks a pool size from the CPU count,
# any positive number is the pool size.
concurrency = -1

# Parent directory of every local working tree.
workdir = ".."

org = "gnu-mirror-unofficial"

search_url = "https://savannah.gnu.org/search/?type_of_search=soft&words=*&type=1&max_rows={rows}"
search_rows = 1000

# {project} and {org} are substituted per project.
project_url = "https://savannah.gnu.org/projects/{project}"
origin_git_url = "https://git.savannah.gnu.org/git/{project}.git"
legacy_ref = ":pserver:anonymous@cvs.savannah.gnu.org:/web/{project}"
mirror_url = "https://github.com/{org}/{project}"
description_suffix = "Official repo link below. Please read this organisation's pinned readme for info."

all_branches = true
push_tags = false
legacy_import = true
registry_limit = 1000

git_bin = "git"
gh_bin = "gh"
# Set to "" for gh releases that no longer accept --confirm.
gh_confirm_flag = "--confirm"

# 0s disables the per-command timeout.
command_timeout = "0s"
fetch_max_elapsed = "2m"
http_timeout = "60s"

runlog_enabled = true
# Defaults to <workdir>/.forgemirror/runs when empty.
runlog_dir = ""
metrics_textfile = ""

serve_listen = "127.0.0.1:9310"
serve_interval = "6h"
# Origins allowed to read the status server from a browser.
# cors_origins = ["http://localhost:3000"]
`
