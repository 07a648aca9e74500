package domain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skillspkg/spm/internal/port"
)

type fakeLock struct{}

func (fakeLock) Lock() error   { return nil }
func (fakeLock) Unlock() error { return nil }

func newTestManager(t *testing.T, git *fakeGit) *Manager {
	t.Helper()
	root := t.TempDir()
	skillsDir := filepath.Join(root, "skills")
	if err := os.MkdirAll(skillsDir, 0o755); err != nil {
		t.Fatal(err)
	}

	catalog := NewCatalog(git, filepath.Join(root, "catalog"), "https://example.com/catalog.git", "main")
	lifecycle := newTestLifecycle(git)
	manifestStore := NewManifestStore(filepath.Join(root, "manifest.json"))

	cfg := Config{
		Platform:  "default",
		SkillsDir: skillsDir,
		RepoCache: filepath.Join(root, "catalog"),
		CacheTTL:  time.Minute,
	}
	return NewManager(cfg, catalog, lifecycle, manifestStore, fakeLock{})
}

func TestManager_List_MergesCatalogAndLocal(t *testing.T) {
	git := &fakeGit{
		submodules: func(path string) ([]port.SubmoduleEntry, error) {
			return []port.SubmoduleEntry{
				{Name: "weather", Path: "skills/weather", URL: "https://github.com/acme/weather.git"},
			}, nil
		},
		commitPins: func(ctx context.Context, path, branch string) (map[string]string, error) {
			return map[string]string{"skills/weather": "deadbeef"}, nil
		},
	}
	m := newTestManager(t, git)

	all, err := m.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 1 || all[0].Name != "weather" {
		t.Fatalf("List() = %+v, want one remote weather descriptor", all)
	}
	if all[0].IsLocal {
		t.Error("List() should report a not-yet-installed skill as remote")
	}

	cachedAll, err := m.List(context.Background())
	if err != nil {
		t.Fatalf("List() (cached) error = %v", err)
	}
	if len(cachedAll) != len(all) {
		t.Fatalf("cached List() = %+v, want same result as first call", cachedAll)
	}
}

func TestManager_InstallThenRemove_RoundTrips(t *testing.T) {
	git := &fakeGit{
		cloneSkill: func(ctx context.Context, url, dir, ref string) error {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			return os.WriteFile(filepath.Join(dir, EntryPointName), []byte("# skill\n"), 0o644)
		},
		remoteURL: func(path string) string { return "https://github.com/acme/weather.git" },
		submodules: func(path string) ([]port.SubmoduleEntry, error) {
			return []port.SubmoduleEntry{
				{Name: "weather", Path: "skills/weather", URL: "https://github.com/acme/weather.git"},
			}, nil
		},
	}
	m := newTestManager(t, git)
	ctx := context.Background()

	if err := m.Install(ctx, "https://github.com/acme/weather.git", "", OriginCLI); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	local, err := m.LocalSkills(ctx)
	if err != nil {
		t.Fatalf("LocalSkills() error = %v", err)
	}
	if len(local) != 1 {
		t.Fatalf("LocalSkills() = %+v, want one installed skill", local)
	}

	man, err := m.manifestStore.Load()
	if err != nil {
		t.Fatalf("manifestStore.Load() error = %v", err)
	}
	entry := man.FindEntry(local[0].Name)
	if entry == nil || entry.Status != StatusActive {
		t.Fatalf("manifest entry after install = %+v, want an active entry", entry)
	}

	if err := m.Remove(ctx, "https://github.com/acme/weather.git", ""); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	local, err = m.LocalSkills(ctx)
	if err != nil {
		t.Fatalf("LocalSkills() after remove error = %v", err)
	}
	if len(local) != 0 {
		t.Fatalf("LocalSkills() after remove = %+v, want none", local)
	}
}

func TestManager_Install_FailurePreservedInManifest(t *testing.T) {
	boom := errors.New("clone failed")
	git := &fakeGit{
		cloneSkill: func(ctx context.Context, url, dir, ref string) error { return boom },
	}
	m := newTestManager(t, git)
	ctx := context.Background()

	err := m.Install(ctx, "https://github.com/acme/weather.git", "", OriginCLI)
	if err == nil {
		t.Fatal("Install() should surface the clone failure")
	}

	man, loadErr := m.manifestStore.Load()
	if loadErr != nil {
		t.Fatalf("manifestStore.Load() error = %v", loadErr)
	}
	entry := man.FindEntry("weather")
	if entry == nil || entry.Status != StatusError || entry.Installation != InstallationFailed {
		t.Fatalf("manifest entry after failed install = %+v, want a failed entry", entry)
	}
}

func TestManager_Apply_IsolatesPerSkillErrorsAndBoundsConcurrency(t *testing.T) {
	m := newTestManager(t, &fakeGit{})
	m.cfg.WorkerPoolSize = 2

	var inFlight, maxInFlight int32
	skills := make([]*Descriptor, 0, 5)
	for i := 0; i < 5; i++ {
		skills = append(skills, NewDescriptor("skill", "", "https://example.com/s.git", ""))
	}

	ok, err := m.Apply(context.Background(), skills, func(ctx context.Context, d *Descriptor) error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			cur := atomic.LoadInt32(&maxInFlight)
			if n <= cur || atomic.CompareAndSwapInt32(&maxInFlight, cur, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return errors.New("boom")
	})
	if err != nil {
		t.Fatalf("Apply() error = %v, want nil (per-skill errors are isolated)", err)
	}
	if ok {
		t.Error("Apply() ok = true, want false since every skill failed")
	}
	if maxInFlight > int32(m.cfg.WorkerPoolSize) {
		t.Errorf("Apply() ran %d concurrently, want at most %d", maxInFlight, m.cfg.WorkerPoolSize)
	}
}

func TestManager_InstallDefaults_SkipsBlacklisted(t *testing.T) {
	git := &fakeGit{
		submodules: func(path string) ([]port.SubmoduleEntry, error) {
			return []port.SubmoduleEntry{
				{Name: "weather", Path: "skills/weather", URL: "https://github.com/acme/weather.git"},
				{Name: "news", Path: "skills/news", URL: "https://github.com/acme/news.git"},
			}, nil
		},
		cloneSkill: func(ctx context.Context, url, dir, ref string) error {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			return os.WriteFile(filepath.Join(dir, EntryPointName), []byte("# skill\n"), 0o644)
		},
		remoteURL: func(path string) string { return "https://github.com/acme/weather.git" },
	}
	m := newTestManager(t, git)
	ctx := context.Background()

	if err := os.MkdirAll(m.catalog.path, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(m.catalog.path, "DEFAULT-SKILLS"), []byte("weather\nnews\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	man, err := m.manifestStore.Load()
	if err != nil {
		t.Fatal(err)
	}
	man.Blacklist = []string{"news"}
	if err := m.manifestStore.Write(man); err != nil {
		t.Fatal(err)
	}

	if ok, err := m.InstallDefaults(ctx); err != nil || !ok {
		t.Fatalf("InstallDefaults() = (%v, %v), want (true, nil)", ok, err)
	}

	local, err := m.LocalSkills(ctx)
	if err != nil {
		t.Fatalf("LocalSkills() error = %v", err)
	}
	installed := make(map[string]bool)
	for _, d := range local {
		installed[d.Name] = true
	}
	if installed["news"] {
		t.Error("InstallDefaults() should skip the blacklisted skill")
	}
	if !installed["weather"] {
		t.Error("InstallDefaults() should install the non-blacklisted default skill")
	}
}

func TestManager_List_CuratesManifest(t *testing.T) {
	git := &fakeGit{
		remoteURL: func(path string) string { return "" },
	}
	m := newTestManager(t, git)
	ctx := context.Background()

	// A local directory with no remote and no manifest entry: should gain a
	// non-msm entry.
	orphanDir := filepath.Join(m.cfg.SkillsDir, "hand-installed.local")
	if err := os.MkdirAll(orphanDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(orphanDir, EntryPointName), []byte("# skill\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	man, err := m.manifestStore.Load()
	if err != nil {
		t.Fatal(err)
	}
	// A stale entry claiming a skill is installed, but with no matching
	// local directory: should be pruned.
	man.Skills = append(man.Skills, NewManifestEntry("ghost", OriginCLI, false, "gid"))
	if err := m.manifestStore.Write(man); err != nil {
		t.Fatal(err)
	}

	if _, err := m.List(ctx); err != nil {
		t.Fatalf("List() error = %v", err)
	}

	man, err = m.manifestStore.Load()
	if err != nil {
		t.Fatal(err)
	}
	if man.FindEntry("ghost") != nil {
		t.Error("List() should have pruned the stale ghost entry")
	}
	entry := man.FindEntry("hand-installed.local")
	if entry == nil {
		t.Fatal("List() should have added an entry for the orphaned local directory")
	}
	if entry.Origin != OriginNonMSM {
		t.Errorf("curated entry origin = %q, want %q", entry.Origin, OriginNonMSM)
	}
}

func TestWithManifest_NestedCallsShareOneTransaction(t *testing.T) {
	m := newTestManager(t, &fakeGit{})
	ctx := context.Background()

	var outerMan, innerMan *Manifest
	err := m.withManifest(ctx, func(ctx context.Context, man *Manifest) error {
		outerMan = man
		return m.withManifest(ctx, func(ctx context.Context, inner *Manifest) error {
			innerMan = inner
			inner.Skills = append(inner.Skills, NewManifestEntry("weather", OriginCLI, false, "gid"))
			return nil
		})
	})
	if err != nil {
		t.Fatalf("withManifest() error = %v", err)
	}
	if outerMan != innerMan {
		t.Error("nested withManifest() calls should reuse the same in-memory manifest")
	}

	loaded, loadErr := m.manifestStore.Load()
	if loadErr != nil {
		t.Fatalf("manifestStore.Load() error = %v", loadErr)
	}
	if loaded.FindEntry("weather") == nil {
		t.Fatal("the nested call's write should have been persisted by the outermost transaction")
	}
}
