// Package pkgmanager provides go-git-backed implementations of the
// port.GitRepository interface, used by both the Catalog and the Skill
// Lifecycle for clone/fetch/checkout/reset/submodule operations.
package pkgmanager

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"golang.org/x/mod/semver"

	"github.com/skillspkg/spm/internal/port"
)

// GitAdapter implements port.GitRepository using go-git/v5.
// Grounded on the teacher's Git adapter's clone/checkout/tag-resolution
// idiom, generalized from one-shot package downloads to the Catalog's
// persistent clone and the Lifecycle's install/update operations.
type GitAdapter struct{}

// NewGitAdapter creates a new GitAdapter instance.
func NewGitAdapter() *GitAdapter {
	return &GitAdapter{}
}

var _ port.GitRepository = (*GitAdapter)(nil)

func (a *GitAdapter) CloneOrOpen(ctx context.Context, url, path string) error {
	if _, err := os.Stat(path); err == nil {
		_, openErr := git.PlainOpen(path)
		return openErr
	}

	auth, err := buildAuthMethod(url)
	if err != nil {
		return err
	}

	_, err = git.PlainCloneContext(ctx, path, false, &git.CloneOptions{
		URL:  url,
		Auth: auth,
	})
	return err
}

func (a *GitAdapter) SetRemoteURL(path, url string) error {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return err
	}

	if err := repo.DeleteRemote("origin"); err != nil && err != git.ErrRemoteNotFound {
		return err
	}
	_, err = repo.CreateRemote(&gitconfig.RemoteConfig{Name: "origin", URLs: []string{url}})
	return err
}

func (a *GitAdapter) Fetch(ctx context.Context, path string) error {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return err
	}

	auth, err := buildAuthMethod(remoteURLOf(repo))
	if err != nil {
		return err
	}

	err = repo.FetchContext(ctx, &git.FetchOptions{RemoteName: "origin", Auth: auth, Force: true})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return err
	}
	return nil
}

func (a *GitAdapter) CheckoutBranch(ctx context.Context, path, branch string) error {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return err
	}

	ref, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		return err
	}

	return wt.Reset(&git.ResetOptions{Commit: ref.Hash(), Mode: git.HardReset})
}

func (a *GitAdapter) Submodules(path string) ([]port.SubmoduleEntry, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(wt.Filesystem.Join(wt.Filesystem.Root(), ".gitmodules"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	cfg := config.New()
	if err := config.NewDecoder(strings.NewReader(string(data))).Decode(cfg); err != nil {
		return nil, err
	}

	entries := make([]port.SubmoduleEntry, 0, len(cfg.Subsections))
	for _, sub := range cfg.Section("submodule").Subsections {
		entries = append(entries, port.SubmoduleEntry{
			Name: sub.Name,
			Path: sub.Option("path"),
			URL:  sub.Option("url"),
		})
	}
	return entries, nil
}

func (a *GitAdapter) CommitPins(ctx context.Context, path, branch string) (map[string]string, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, err
	}

	ref, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		return nil, err
	}

	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, err
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}

	pins := make(map[string]string)
	walkTree(tree, "", pins)
	return pins, nil
}

// walkTree recursively walks a git tree, recording the commit sha of every
// gitlink (submodule) entry keyed by its path relative to the tree root.
// This is the Go equivalent of `git ls-tree` filtered to commit-typed
// entries (the original's get_shas).
func walkTree(tree *object.Tree, prefix string, pins map[string]string) {
	for _, entry := range tree.Entries {
		full := entry.Name
		if prefix != "" {
			full = prefix + "/" + entry.Name
		}
		if entry.Mode == filemodeSubmodule {
			pins[full] = entry.Hash.String()
			continue
		}
		if !entry.Mode.IsFile() {
			sub, err := tree.Tree(entry.Name)
			if err == nil {
				walkTree(sub, full, pins)
			}
		}
	}
}

// filemodeSubmodule is the git tree entry mode for a gitlink (160000 octal).
const filemodeSubmodule = 0o160000

func (a *GitAdapter) LatestTag(path string) (string, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return "", err
	}

	tags, err := repo.Tags()
	if err != nil {
		return "", err
	}

	var latestRelease, latestPre string
	err = tags.ForEach(func(ref *plumbing.Reference) error {
		tagName := ref.Name().Short()
		if !semver.IsValid(tagName) {
			return nil
		}
		if semver.Prerelease(tagName) == "" {
			if semver.Compare(tagName, latestRelease) > 0 {
				latestRelease = tagName
			}
		} else if semver.Compare(tagName, latestPre) > 0 {
			latestPre = tagName
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if latestRelease != "" {
		return latestRelease, nil
	}
	return latestPre, nil
}

func (a *GitAdapter) CloneSkill(ctx context.Context, url, scratchDir, ref string) error {
	auth, err := buildAuthMethod(url)
	if err != nil {
		return err
	}

	repo, err := git.PlainCloneContext(ctx, scratchDir, false, &git.CloneOptions{URL: url, Auth: auth})
	if err != nil {
		return err
	}

	if ref == "" || ref == "HEAD" {
		return nil
	}

	wt, err := repo.Worktree()
	if err != nil {
		return err
	}

	return wt.Reset(&git.ResetOptions{Commit: plumbing.NewHash(ref), Mode: git.HardReset})
}

func (a *GitAdapter) HeadCommit(path string) (string, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", err
	}
	return head.Hash().String(), nil
}

func (a *GitAdapter) Status(path string) (string, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", err
	}
	status, err := wt.Status()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for file, s := range status {
		if s.Worktree == git.Untracked && s.Staging == git.Untracked {
			continue
		}
		fmt.Fprintf(&sb, "%c%c %s\n", s.Staging, s.Worktree, file)
	}
	return sb.String(), nil
}

func (a *GitAdapter) RemoteURL(path string) string {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return ""
	}
	return remoteURLOf(repo)
}

func remoteURLOf(repo *git.Repository) string {
	remote, err := repo.Remote("origin")
	if err != nil || len(remote.Config().URLs) == 0 {
		return ""
	}
	return remote.Config().URLs[0]
}

func (a *GitAdapter) CurrentBranch(path string) (string, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", err
	}
	if !head.Name().IsBranch() {
		return "", fmt.Errorf("HEAD is not on a branch")
	}
	return head.Name().Short(), nil
}

func (a *GitAdapter) BranchContaining(path, sha string) (string, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return "", err
	}

	target := plumbing.NewHash(sha)
	refs, err := repo.References()
	if err != nil {
		return "", err
	}

	var local, remote string
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if !ref.Name().IsBranch() && !ref.Name().IsRemote() {
			return nil
		}
		commit, err := repo.CommitObject(ref.Hash())
		if err != nil {
			return nil
		}
		contains, err := commitContains(commit, target)
		if err != nil || !contains {
			return nil
		}
		if ref.Name().IsBranch() && local == "" {
			local = ref.Name().Short()
		}
		if ref.Name().IsRemote() && remote == "" {
			remote = stripRemotePrefix(ref.Name().Short())
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if local != "" {
		return local, nil
	}
	return remote, nil
}

func stripRemotePrefix(name string) string {
	if idx := strings.Index(name, "/"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

func commitContains(commit *object.Commit, target plumbing.Hash) (bool, error) {
	if commit.Hash == target {
		return true, nil
	}
	iter := object.NewCommitIterBSF(commit, nil, nil)
	found := false
	err := iter.ForEach(func(c *object.Commit) error {
		if c.Hash == target {
			found = true
		}
		return nil
	})
	return found, err
}

func (a *GitAdapter) FastForwardMerge(ctx context.Context, path, ref string) error {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return err
	}

	var target plumbing.Hash
	if ref == "" || ref == "origin/HEAD" {
		head, err := repo.Reference(plumbing.NewRemoteHEADReferenceName("origin"), true)
		if err != nil {
			return err
		}
		target = head.Hash()
	} else {
		target = plumbing.NewHash(ref)
		if _, commitErr := repo.CommitObject(target); commitErr != nil {
			// Not a raw sha; try as a remote branch reference.
			remoteRef, refErr := repo.Reference(plumbing.NewRemoteReferenceName("origin", ref), true)
			if refErr != nil {
				return commitErr
			}
			target = remoteRef.Hash()
		}
	}

	head, err := repo.Head()
	if err != nil {
		return err
	}

	targetCommit, err := repo.CommitObject(target)
	if err != nil {
		return err
	}

	if head.Hash() != target {
		ok, err := commitContains(targetCommit, head.Hash())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("not a fast-forward: %s does not descend from current HEAD", target)
		}
	}

	wt, err := repo.Worktree()
	if err != nil {
		return err
	}

	return wt.Reset(&git.ResetOptions{Commit: target, Mode: git.HardReset})
}
