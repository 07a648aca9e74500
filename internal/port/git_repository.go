// Package port declares the interfaces the domain layer depends on for
// external collaborators (git, the shell, the host language-package
// installer, content hashing, cross-process locking).
package port

import "context"

// SubmoduleEntry is one (name, relative_path, url) triple parsed from the
// catalog repository's submodule index.
type SubmoduleEntry struct {
	Name string
	Path string
	URL  string
}

// GitRepository abstracts the git operations the Catalog and Lifecycle
// components need. Grounded on go-git/v5 usage in the teacher's
// internal/adapter/pkgmanager/git.go, generalized from one-shot clones to
// the catalog's persistent clone/fetch/reset/ls-tree cycle and the
// lifecycle's install/update operations on a per-skill clone.
type GitRepository interface {
	// CloneOrOpen ensures a working tree exists at path: opens it if present,
	// clones url into it otherwise.
	CloneOrOpen(ctx context.Context, url, path string) error

	// SetRemoteURL rewrites the "origin" remote's URL, for catalog URL changes.
	SetRemoteURL(path, url string) error

	// Fetch fetches from "origin".
	Fetch(ctx context.Context, path string) error

	// CheckoutBranch hard-resets the working tree at path to origin/<branch>.
	CheckoutBranch(ctx context.Context, path, branch string) error

	// Submodules parses the submodule index file (.gitmodules) in path's
	// working tree; a missing file yields no entries.
	Submodules(path string) ([]SubmoduleEntry, error)

	// CommitPins lists the commit-typed tree entries of origin/<branch>,
	// keyed by the submodule's relative path.
	CommitPins(ctx context.Context, path, branch string) (map[string]string, error)

	// LatestTag returns the highest semver release tag, preferring a
	// non-prerelease tag, or "" if the repository has no valid semver tags.
	LatestTag(path string) (string, error)

	// CloneSkill clones url into a fresh scratch directory and hard-resets it
	// to ref (a commit sha, or "" / "HEAD" for the branch tip).
	CloneSkill(ctx context.Context, url, scratchDir, ref string) error

	// HeadCommit returns the current HEAD commit sha at path.
	HeadCommit(path string) (string, error)

	// Status reports porcelain-style status lines for tracked, modified files
	// (untracked files are excluded), empty when the working tree is clean.
	Status(path string) (string, error)

	// RemoteURL returns the "origin" remote URL configured at path, or "" if
	// none is configured.
	RemoteURL(path string) string

	// CurrentBranch returns the short name of the branch currently checked
	// out at path.
	CurrentBranch(path string) (string, error)

	// BranchContaining returns the name of a branch (local preferred, then
	// remote-tracking with the remote prefix stripped) that contains sha.
	BranchContaining(path, sha string) (string, error)

	// FastForwardMerge merges ref into the current branch at path,
	// fast-forward only; returns an error if a fast-forward is not possible.
	FastForwardMerge(ctx context.Context, path, ref string) error
}
