package domain

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/skillspkg/spm/internal/port"
)

// fakeGit is a configurable stub satisfying port.GitRepository for
// lifecycle tests; only the methods Lifecycle actually calls are wired
// per-test, the rest are harmless no-ops.
type fakeGit struct {
	cloneSkill       func(ctx context.Context, url, dir, ref string) error
	headCommit       func(path string) (string, error)
	status           func(path string) (string, error)
	fetch            func(ctx context.Context, path string) error
	currentBranch    func(path string) (string, error)
	branchContaining func(path, sha string) (string, error)
	checkoutBranch   func(ctx context.Context, path, branch string) error
	fastForwardMerge func(ctx context.Context, path, ref string) error
	submodules       func(path string) ([]port.SubmoduleEntry, error)
	commitPins       func(ctx context.Context, path, branch string) (map[string]string, error)
	cloneOrOpen      func(ctx context.Context, url, path string) error
	remoteURL        func(path string) string
}

func (f *fakeGit) CloneOrOpen(ctx context.Context, url, path string) error {
	if f.cloneOrOpen != nil {
		return f.cloneOrOpen(ctx, url, path)
	}
	return nil
}
func (f *fakeGit) SetRemoteURL(path, url string) error { return nil }
func (f *fakeGit) Fetch(ctx context.Context, path string) error {
	if f.fetch != nil {
		return f.fetch(ctx, path)
	}
	return nil
}
func (f *fakeGit) CheckoutBranch(ctx context.Context, path, branch string) error {
	if f.checkoutBranch != nil {
		return f.checkoutBranch(ctx, path, branch)
	}
	return nil
}
func (f *fakeGit) Submodules(path string) ([]port.SubmoduleEntry, error) {
	if f.submodules != nil {
		return f.submodules(path)
	}
	return nil, nil
}
func (f *fakeGit) CommitPins(ctx context.Context, path, branch string) (map[string]string, error) {
	if f.commitPins != nil {
		return f.commitPins(ctx, path, branch)
	}
	return nil, nil
}
func (f *fakeGit) LatestTag(path string) (string, error) { return "", nil }
func (f *fakeGit) CloneSkill(ctx context.Context, url, scratchDir, ref string) error {
	if f.cloneSkill != nil {
		return f.cloneSkill(ctx, url, scratchDir, ref)
	}
	return os.MkdirAll(scratchDir, 0o755)
}
func (f *fakeGit) HeadCommit(path string) (string, error) {
	if f.headCommit != nil {
		return f.headCommit(path)
	}
	return "sha1", nil
}
func (f *fakeGit) Status(path string) (string, error) {
	if f.status != nil {
		return f.status(path)
	}
	return "", nil
}
func (f *fakeGit) RemoteURL(path string) string {
	if f.remoteURL != nil {
		return f.remoteURL(path)
	}
	return ""
}
func (f *fakeGit) CurrentBranch(path string) (string, error) {
	if f.currentBranch != nil {
		return f.currentBranch(path)
	}
	return "master", nil
}
func (f *fakeGit) BranchContaining(path, sha string) (string, error) {
	if f.branchContaining != nil {
		return f.branchContaining(path, sha)
	}
	return "", nil
}
func (f *fakeGit) FastForwardMerge(ctx context.Context, path, ref string) error {
	if f.fastForwardMerge != nil {
		return f.fastForwardMerge(ctx, path, ref)
	}
	return nil
}

var _ port.GitRepository = (*fakeGit)(nil)

type fakeShell struct {
	code int
	err  error
}

func (f *fakeShell) RunScript(ctx context.Context, scriptPath, workDir string) (int, error) {
	return f.code, f.err
}

type fakeInstaller struct {
	result *port.InstallResult
	err    error
}

func (f *fakeInstaller) Install(ctx context.Context, requirementsFile, constraintsFile string) (*port.InstallResult, error) {
	return f.result, f.err
}

type fakeHash struct{}

func (fakeHash) CalculateHash(ctx context.Context, dirPath string) (*port.HashResult, error) {
	return &port.HashResult{Algorithm: "sha256", Value: "deadbeef"}, nil
}

func newTestLifecycle(git port.GitRepository) *Lifecycle {
	return NewLifecycle(git, &fakeShell{code: 0}, &fakeInstaller{result: &port.InstallResult{ExitCode: 0}}, fakeHash{}, &sync.Mutex{}, "", nil)
}

func TestLifecycle_Install_CreatesEntryPointAndHash(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "weather.acme")

	git := &fakeGit{
		cloneSkill: func(ctx context.Context, url, dir, ref string) error {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			return os.WriteFile(filepath.Join(dir, EntryPointName), []byte("# skill\n"), 0o644)
		},
	}
	lc := newTestLifecycle(git)

	d := NewDescriptor("weather", target, "https://github.com/acme/weather.git", "")
	if err := lc.Install(context.Background(), d); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if !d.IsLocal {
		t.Error("Install() should mark the descriptor local")
	}
	if !HasEntryPoint(d.LocalPath) {
		t.Error("Install() should leave the entry-point file in place")
	}
	if d.ContentHash == "" {
		t.Error("Install() should record a content hash")
	}
}

func TestLifecycle_Install_AlreadyInstalled(t *testing.T) {
	lc := newTestLifecycle(&fakeGit{})
	d := NewDescriptor("weather", t.TempDir(), "https://github.com/acme/weather.git", "")
	d.IsLocal = true

	if err := lc.Install(context.Background(), d); err != ErrAlreadyInstalled {
		t.Fatalf("Install() error = %v, want ErrAlreadyInstalled", err)
	}
}

func TestLifecycle_Update_NoChange(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, EntryPointName), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	git := &fakeGit{
		headCommit: func(path string) (string, error) { return "same-sha", nil },
	}
	lc := newTestLifecycle(git)

	d := NewDescriptor("weather", dir, "https://github.com/acme/weather.git", "")
	d.IsLocal = true

	changed, err := lc.Update(context.Background(), d)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if changed {
		t.Error("Update() should report no change when the head commit is unchanged")
	}
}

func TestLifecycle_Update_ModifiedTreeBlocks(t *testing.T) {
	dir := t.TempDir()
	git := &fakeGit{
		status: func(path string) (string, error) { return "M __init__.py", nil },
	}
	lc := newTestLifecycle(git)

	d := NewDescriptor("weather", dir, "https://github.com/acme/weather.git", "")
	d.IsLocal = true

	_, err := lc.Update(context.Background(), d)
	if err == nil {
		t.Fatal("Update() should fail on a modified tree")
	}
	if modErr, ok := asSkillModified(err); !ok {
		t.Fatalf("Update() error = %v (%T), want *SkillModifiedError", err, modErr)
	}
}

func asSkillModified(err error) (*SkillModifiedError, bool) {
	e, ok := err.(*SkillModifiedError)
	return e, ok
}

func TestLifecycle_Update_NotInstalled(t *testing.T) {
	lc := newTestLifecycle(&fakeGit{})
	d := NewDescriptor("weather", "", "https://github.com/acme/weather.git", "")

	_, err := lc.Update(context.Background(), d)
	if err != ErrNotInstalled {
		t.Fatalf("Update() error = %v, want ErrNotInstalled", err)
	}
}

func TestLifecycle_Remove_AlreadyRemoved(t *testing.T) {
	lc := newTestLifecycle(&fakeGit{})
	d := NewDescriptor("weather", "", "https://github.com/acme/weather.git", "")

	if err := lc.Remove(d); err != ErrAlreadyRemoved {
		t.Fatalf("Remove() error = %v, want ErrAlreadyRemoved", err)
	}
}

func TestLifecycle_Remove_DeletesDirectory(t *testing.T) {
	dir := t.TempDir()
	skillDir := filepath.Join(dir, "weather")
	if err := os.MkdirAll(skillDir, 0o755); err != nil {
		t.Fatal(err)
	}

	lc := newTestLifecycle(&fakeGit{})
	d := NewDescriptor("weather", skillDir, "https://github.com/acme/weather.git", "")
	d.IsLocal = true

	if err := lc.Remove(d); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(skillDir); !os.IsNotExist(err) {
		t.Error("Remove() should delete the skill directory")
	}
	if d.IsLocal {
		t.Error("Remove() should clear IsLocal")
	}
}
