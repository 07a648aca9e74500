package domain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/skillspkg/spm/internal/port"
)

// CatalogEntry is a (name, relative_path, url, pinned_commit) tuple parsed
// from the catalog repository. Grounded on §3's "Catalog Entry".
type CatalogEntry struct {
	Name         string
	RelativePath string
	URL          string
	PinnedCommit string
}

// DefaultSkillGroup is a platform_tag → skill names mapping, per §3.
type DefaultSkillGroup struct {
	PlatformTag string
	SkillNames  []string
}

// Catalog is a local clone of the remote catalog repository, pinned to a
// configurable branch. Grounded on original_source/msm/skill_repo.py's
// SkillRepo.
type Catalog struct {
	git    port.GitRepository
	path   string
	url    string
	branch string
}

// NewCatalog constructs a Catalog bound to a local clone path, remote url
// and branch (default: a dated release branch, per §4.B).
func NewCatalog(git port.GitRepository, path, url, branch string) *Catalog {
	if branch == "" {
		branch = "24.02"
	}
	return &Catalog{git: git, path: path, url: url, branch: branch}
}

// Update ensures the catalog is cloned and synced to origin/<branch>.
// When that fails and the catalog path exists, it syncs a scratch copy
// once: if the scratch sync succeeds Update returns nil and the existing
// clone is left as it was (not refreshed); if it fails too, the first
// error is returned. When the catalog path does not exist, the first error
// is returned without a retry.
func (c *Catalog) Update(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return &GitError{Op: "mkdir", Err: err}
	}

	err := c.syncOnce(ctx, c.path)
	if err == nil {
		return nil
	}

	if _, statErr := os.Stat(c.path); statErr == nil {
		// A clone already exists: leave it intact, retry once into a scratch
		// path to check whether the failure is transient, and report success
		// only if that retry succeeds.
		scratch := c.path + ".retry"
		_ = os.RemoveAll(scratch)
		retryErr := c.syncOnce(ctx, scratch)
		_ = os.RemoveAll(scratch)
		if retryErr == nil {
			return nil
		}
		return err
	}

	return err
}

func (c *Catalog) syncOnce(ctx context.Context, path string) error {
	if err := c.git.CloneOrOpen(ctx, c.url, path); err != nil {
		return &GitError{Op: "clone", Err: err}
	}
	if err := c.git.SetRemoteURL(path, c.url); err != nil {
		return &GitError{Op: "set-remote-url", Err: err}
	}
	if err := c.git.Fetch(ctx, path); err != nil {
		return &GitError{Op: "fetch", Err: err}
	}
	if err := c.git.CheckoutBranch(ctx, path, c.branch); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidBranch, c.branch)
	}
	return nil
}

// SkillData parses the submodule index and commit pins, skipping malformed
// records with a warning rather than aborting. Grounded on skill_repo.py's
// get_skill_data/get_shas.
func (c *Catalog) SkillData(ctx context.Context, warn func(string)) ([]CatalogEntry, error) {
	submodules, err := c.git.Submodules(c.path)
	if err != nil {
		return nil, &GitError{Op: "parse-submodules", Err: err}
	}

	pins, err := c.git.CommitPins(ctx, c.path, c.branch)
	if err != nil {
		return nil, &GitError{Op: "ls-tree", Err: err}
	}

	entries := make([]CatalogEntry, 0, len(submodules))
	for _, sm := range submodules {
		if sm.Name == "" || sm.Path == "" || sm.URL == "" {
			if warn != nil {
				warn(fmt.Sprintf("skipping malformed submodule record: %+v", sm))
			}
			continue
		}
		entries = append(entries, CatalogEntry{
			Name:         sm.Name,
			RelativePath: sm.Path,
			URL:          sm.URL,
			PinnedCommit: pins[sm.Path],
		})
	}
	return entries, nil
}

// DefaultSkillGroups parses every DEFAULT-SKILLS[.tag] file in the catalog
// repo root. Grounded on skill_repo.py's get_default_skill_names.
func (c *Catalog) DefaultSkillGroups() ([]DefaultSkillGroup, error) {
	matches, err := filepath.Glob(filepath.Join(c.path, "DEFAULT-SKILLS*"))
	if err != nil {
		return nil, err
	}

	groups := make([]DefaultSkillGroup, 0, len(matches))
	for _, file := range matches {
		data, err := os.ReadFile(file)
		if err != nil {
			continue
		}

		var names []string
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			names = append(names, line)
		}

		tag := strings.TrimPrefix(filepath.Base(file), "DEFAULT-SKILLS")
		tag = strings.TrimPrefix(tag, ".")
		if tag == "" {
			tag = "default"
		}

		groups = append(groups, DefaultSkillGroup{PlatformTag: tag, SkillNames: names})
	}
	return groups, nil
}
