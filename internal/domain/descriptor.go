package domain

import (
	"os"
	"path/filepath"
	"strings"
)

// Descriptor is the identity of one skill, local and/or remote.
// Grounded on original_source/msm/skill_entry.py's SkillEntry constructor
// and derived-field helpers (extract_repo_name, _extract_author,
// extract_repo_id). A single type models both local and remote skills via
// IsLocal, per SPEC_FULL.md §9 ("Dynamic dispatch on descriptor variants").
type Descriptor struct {
	Name         string
	Author       string
	URL          string
	PinnedCommit string
	LocalPath    string
	IsLocal      bool

	// ContentHash is the post-install directory content hash (§5), set by
	// Lifecycle.Install/Update once the entry-point invariant has been
	// confirmed. Empty until an install/update has run.
	ContentHash string
}

// NewDescriptor builds a descriptor from a name, local path and optional
// remote url/pinned commit, deriving Author from the URL when present.
func NewDescriptor(name, path, url, pinnedCommit string) *Descriptor {
	url = strings.TrimRight(url, "/")
	d := &Descriptor{
		Name:         name,
		URL:          url,
		PinnedCommit: pinnedCommit,
		LocalPath:    path,
	}
	if url != "" {
		d.Author = extractAuthor(url)
	}
	if path != "" {
		_, err := os.Stat(path)
		d.IsLocal = err == nil
	}
	return d
}

// RepoName extracts the repository name from a git URL, stripping a
// trailing ".git" suffix.
func RepoName(url string) string {
	s := strings.TrimRight(url, "/")
	parts := strings.Split(s, "/")
	last := parts[len(parts)-1]
	return strings.TrimSuffix(last, ".git")
}

// extractAuthor extracts the author/owner segment from a git URL (the
// second-to-last path segment), stripping any scp-style "user@" prefix.
func extractAuthor(url string) string {
	s := strings.TrimRight(url, "/")
	parts := strings.Split(s, "/")
	if len(parts) < 2 {
		return ""
	}
	author := parts[len(parts)-2]
	if idx := strings.LastIndex(author, ":"); idx >= 0 {
		author = author[idx+1:]
	}
	return strings.ToLower(author)
}

// ExtractID computes the stable "author:repo" identity for a URL.
func ExtractID(url string) string {
	return strings.ToLower(extractAuthor(url) + ":" + RepoName(url))
}

// ID returns this descriptor's stable identity, derived from its URL when
// one is known, else falling back to its bare name.
func (d *Descriptor) ID() string {
	if d.URL == "" {
		return strings.ToLower(d.Name)
	}
	return ExtractID(d.URL)
}

// IsBeta reports whether this descriptor tracks the branch tip rather than
// a pinned commit.
func (d *Descriptor) IsBeta() bool {
	return d.PinnedCommit == "" || d.PinnedCommit == "HEAD"
}

// CreatePath derives the install path for a fresh skill under skillsDir:
// <skillsDir>/<lower(name or repo_name)>.<lower(author)>. The author suffix
// prevents collisions between same-named skills from different authors.
func CreatePath(skillsDir, url, name string) string {
	base := name
	if base == "" {
		base = RepoName(url)
	}
	return filepath.Join(skillsDir, strings.ToLower(base+"."+extractAuthor(url)))
}

// Attach copies identity fields from a matching remote descriptor onto a
// local one, without ever overwriting LocalPath or IsLocal.
// Grounded on skill_entry.py's attach().
func (d *Descriptor) Attach(remote *Descriptor) *Descriptor {
	d.Name = remote.Name
	d.URL = remote.URL
	d.PinnedCommit = remote.PinnedCommit
	d.Author = remote.Author
	return d
}

// EntryPointName is the file whose presence marks a directory as a skill.
const EntryPointName = "__init__.py"

// HasEntryPoint reports whether dir contains the skill entry-point file.
func HasEntryPoint(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, EntryPointName))
	return err == nil
}

// FromFolder builds an unattached local descriptor from an existing skill
// directory and its git remote URL (empty when it has none).
func FromFolder(path string, remoteURL string) *Descriptor {
	return NewDescriptor(filepath.Base(path), path, remoteURL, "")
}
