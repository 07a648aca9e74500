package domain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/skillspkg/spm/internal/port"
)

// platformGroups are the built-in default-skill platform tags, mirroring
// mycroft_skills_manager.py's SKILL_GROUPS.
var platformGroups = []string{"default", "mark_1", "picroft", "kde"}

type manifestTxKey struct{}

// manifestTx carries a Manager-level manifest transaction through a
// context.Context, so a withManifest call made with the ctx of an enclosing
// withManifest reuses its loaded manifest and only the outermost call writes
// it back to disk. Grounded on SPEC_FULL.md §4.F / §9's resolution of the
// goroutine-local-storage open question: Go has none, so the depth is
// threaded explicitly through a context.Context value instead.
// installDescriptor installs a skill's skill_requirements dependencies before
// it opens its own transaction, so each of those installs loads and writes
// the manifest on its own.
type manifestTx struct {
	manifest *Manifest
	depth    int
}

// Manager orchestrates the Catalog, Lifecycle and Manifest Store for batch
// operations. Grounded on
// original_source/msm/mycroft_skills_manager.py's MycroftSkillsManager.
type Manager struct {
	cfg           Config
	catalog       *Catalog
	lifecycle     *Lifecycle
	manifestStore *ManifestStore
	lock          port.FileLock

	allSkills     *ttlCache[[]*Descriptor]
	localSkills   *ttlCache[[]*Descriptor]
	defaultSkills *ttlCache[map[string][]*Descriptor]

	warn func(string)
}

// NewManager wires a Manager from its configuration and collaborators.
func NewManager(cfg Config, catalog *Catalog, lifecycle *Lifecycle, manifestStore *ManifestStore, lock port.FileLock) *Manager {
	cfg = cfg.WithDefaults()
	return &Manager{
		cfg:           cfg,
		catalog:       catalog,
		lifecycle:     lifecycle,
		manifestStore: manifestStore,
		lock:          lock,
		allSkills:     newTTLCache[[]*Descriptor](1, cfg.CacheTTL),
		localSkills:   newTTLCache[[]*Descriptor](1, cfg.CacheTTL),
		defaultSkills: newTTLCache[map[string][]*Descriptor](1, cfg.CacheTTL),
		warn:          func(string) {},
	}
}

// SetWarn installs the callback List uses to surface non-fatal catalog
// warnings (malformed submodule records, SPEC_FULL.md §4.B) to whatever
// reporting the caller has — the CLI wires this to its Logger.
func (m *Manager) SetWarn(fn func(string)) {
	if fn == nil {
		fn = func(string) {}
	}
	m.warn = fn
}

// invalidateCaches clears all three TTL caches, called after any
// install/update/remove per §4.F.
func (m *Manager) invalidateCaches() {
	m.allSkills.Purge()
	m.localSkills.Purge()
	m.defaultSkills.Purge()
}

// withManifest loads the device manifest, runs fn against it, and writes
// it back only if fn's changes altered its hash or Load() applied a schema
// migration — and only from the outermost call in a nested chain.
func (m *Manager) withManifest(ctx context.Context, fn func(ctx context.Context, man *Manifest) error) error {
	if tx, ok := ctx.Value(manifestTxKey{}).(*manifestTx); ok {
		tx.depth++
		return fn(ctx, tx.manifest)
	}

	if err := m.lock.Lock(); err != nil {
		return fmt.Errorf("acquiring manifest lock: %w", err)
	}
	defer func() { _ = m.lock.Unlock() }()

	man, err := m.manifestStore.Load()
	if err != nil {
		return err
	}
	before, _ := Hash(man)

	tx := &manifestTx{manifest: man}
	txCtx := context.WithValue(ctx, manifestTxKey{}, tx)

	fnErr := fn(txCtx, man)

	after, _ := Hash(man)
	if after != before || man.Upgraded() {
		if writeErr := m.manifestStore.Write(man); writeErr != nil && fnErr == nil {
			return writeErr
		}
	}
	return fnErr
}

// List loads every skill, local and remote, associating local directories
// with their catalog entry by id. Grounded on
// mycroft_skills_manager.py's list().
func (m *Manager) List(ctx context.Context) ([]*Descriptor, error) {
	if cached, ok := m.allSkills.Get("all"); ok {
		return cached, nil
	}

	if err := m.catalog.Update(ctx); err != nil {
		if _, statErr := os.Stat(m.cfg.RepoCache); statErr != nil {
			return nil, err
		}
		// A pre-existing clone survives a failed refresh; proceed with
		// whatever catalog data is already on disk.
	}

	entries, err := m.catalog.SkillData(ctx, m.warn)
	if err != nil {
		return nil, err
	}

	remoteByID := make(map[string]*Descriptor, len(entries))
	for _, e := range entries {
		pinned := e.PinnedCommit
		if m.cfg.Latest {
			pinned = ""
		}
		path := CreatePath(m.cfg.SkillsDir, e.URL, e.Name)
		d := NewDescriptor(e.Name, path, e.URL, pinned)
		remoteByID[d.ID()] = d
	}

	var all []*Descriptor
	matches, _ := filepath.Glob(filepath.Join(m.cfg.SkillsDir, "*", EntryPointName))
	for _, entryFile := range matches {
		dir := filepath.Dir(entryFile)
		local := FromFolder(dir, m.lifecycle.git.RemoteURL(dir))
		if remote, ok := remoteByID[local.ID()]; ok {
			local.Attach(remote)
			delete(remoteByID, local.ID())
		}
		all = append(all, local)
	}
	for _, remote := range remoteByID {
		all = append(all, remote)
	}

	if err := m.curateManifest(ctx, all); err != nil {
		return nil, err
	}

	m.allSkills.Set("all", all)
	return all, nil
}

// curateManifest reconciles the device manifest against the skills actually
// on disk, per §3 Invariants 1-2: drop entries for a directory that no
// longer exists, and add entries for a directory that was never recorded
// (a skill installed outside this tool, or whose entry was lost).
// Grounded on original_source/msm/mycroft_skills_manager.py's
// MycroftSkillsManager.load()'s reconciliation of skills_data against
// local_skills on every list.
func (m *Manager) curateManifest(ctx context.Context, all []*Descriptor) error {
	localNames := make(map[string]bool)
	for _, d := range all {
		if d.IsLocal {
			localNames[d.Name] = true
		}
	}

	defaultNames, err := m.defaultSkillNames(ctx)
	if err != nil {
		return err
	}

	return m.withManifest(ctx, func(ctx context.Context, man *Manifest) error {
		var stale []string
		for _, e := range man.Skills {
			if e.Installation == InstallationInstalled && !localNames[e.Name] {
				stale = append(stale, e.Name)
			}
		}
		for _, name := range stale {
			man.RemoveEntry(name)
		}

		for _, d := range all {
			if !d.IsLocal || man.FindEntry(d.Name) != nil {
				continue
			}
			origin := OriginNonMSM
			switch {
			case defaultNames[d.Name]:
				origin = OriginDefault
			case d.URL != "":
				origin = OriginCLI
			}
			man.Skills = append(man.Skills, NewManifestEntry(d.Name, origin, d.IsBeta(), uuid.NewString()))
		}
		return nil
	})
}

// defaultSkillNames flattens every platform group's skill names into a set,
// used by curateManifest to infer the "default" origin without going
// through DefaultSkills (which itself calls List).
func (m *Manager) defaultSkillNames(ctx context.Context) (map[string]bool, error) {
	rawGroups, err := m.catalog.DefaultSkillGroups()
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool)
	for _, g := range rawGroups {
		for _, name := range g.SkillNames {
			names[name] = true
		}
	}
	return names, nil
}

// LocalSkills returns every currently-installed skill.
func (m *Manager) LocalSkills(ctx context.Context) ([]*Descriptor, error) {
	if cached, ok := m.localSkills.Get("local"); ok {
		return cached, nil
	}

	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}

	var local []*Descriptor
	for _, d := range all {
		if d.IsLocal {
			local = append(local, d)
		}
	}

	m.localSkills.Set("local", local)
	return local, nil
}

// LatestTag reports the newest semver-valid tag on an installed skill's
// repository, for display by the `info` command when the skill tracks a
// branch tip rather than a catalog-pinned commit (§3 "Pinned commit").
// Returns "" if the skill has no tags or isn't local.
func (m *Manager) LatestTag(d *Descriptor) (string, error) {
	if !d.IsLocal {
		return "", nil
	}
	return m.lifecycle.git.LatestTag(d.LocalPath)
}

// FindSkill resolves param (a URL or fuzzy name, optional author) against
// the full skill set. A URL with no catalog match resolves to a fresh,
// not-yet-local descriptor; its install path is filled in here since
// Resolve has no notion of the skills directory.
func (m *Manager) FindSkill(ctx context.Context, param, author string) (*Descriptor, error) {
	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	d, err := Resolve(param, author, all)
	if err != nil {
		return nil, err
	}
	if d.URL != "" && d.LocalPath == "" {
		d.Name = RepoName(d.URL)
		d.LocalPath = CreatePath(m.cfg.SkillsDir, d.URL, d.Name)
	}
	return d, nil
}

// Install resolves param and installs it, recording its outcome in the
// device manifest under origin.
func (m *Manager) Install(ctx context.Context, param, author, origin string) error {
	d, err := m.FindSkill(ctx, param, author)
	if err != nil {
		return err
	}
	return m.installDescriptor(ctx, d, origin)
}

// InstallByName installs a skill resolved by bare name, for use as the
// SkillInstaller dependency a Lifecycle's recursive skill_requirements
// installs call back into. AlreadyInstalled is returned as-is so callers
// can swallow it per §4.D step 1.
func (m *Manager) InstallByName(ctx context.Context, name string) error {
	return m.Install(ctx, name, "", OriginNonMSM)
}

func (m *Manager) installDescriptor(ctx context.Context, d *Descriptor, origin string) error {
	if err := m.lifecycle.InstallDeps(ctx, d, m.InstallByName); err != nil {
		return err
	}

	installErr := m.lifecycle.Install(ctx, d)
	if errors.Is(installErr, ErrAlreadyInstalled) {
		// The skill's existing manifest entry is already correct; leave it
		// untouched rather than overwriting it with a synthetic failure.
		return installErr
	}

	manifestErr := m.withManifest(ctx, func(ctx context.Context, man *Manifest) error {
		entry := man.FindEntry(d.Name)
		if entry == nil {
			entry = NewManifestEntry(d.Name, origin, d.IsBeta(), uuid.NewString())
			man.Skills = append(man.Skills, entry)
		}
		if installErr != nil {
			entry.Status = StatusError
			entry.Installation = InstallationFailed
			entry.FailureMessage = installErr.Error()
		} else {
			entry.Status = StatusActive
			entry.Installation = InstallationInstalled
			entry.FailureMessage = ""
		}
		return nil
	})

	m.invalidateCaches()

	if installErr != nil {
		return installErr
	}
	return manifestErr
}

// Remove resolves param and deletes it, dropping its manifest entry.
func (m *Manager) Remove(ctx context.Context, param, author string) error {
	d, err := m.FindSkill(ctx, param, author)
	if err != nil {
		return err
	}

	removeErr := m.lifecycle.Remove(d)
	if errors.Is(removeErr, ErrAlreadyRemoved) {
		return removeErr
	}

	manifestErr := m.withManifest(ctx, func(ctx context.Context, man *Manifest) error {
		man.RemoveEntry(d.Name)
		return nil
	})

	m.invalidateCaches()

	if removeErr != nil {
		return removeErr
	}
	return manifestErr
}

// UpdateOne resolves param and updates it in place, returning whether
// anything changed.
func (m *Manager) UpdateOne(ctx context.Context, param, author string) (bool, error) {
	d, err := m.FindSkill(ctx, param, author)
	if err != nil {
		return false, err
	}
	changed, updateErr := m.lifecycle.Update(ctx, d)

	_ = m.withManifest(ctx, func(ctx context.Context, man *Manifest) error {
		entry := man.FindEntry(d.Name)
		if entry == nil {
			return nil
		}
		if updateErr != nil {
			entry.Status = StatusError
			entry.FailureMessage = updateErr.Error()
		} else {
			entry.Status = StatusActive
			entry.FailureMessage = ""
		}
		return nil
	})

	if changed {
		m.invalidateCaches()
	}
	return changed, updateErr
}

// UpdateAll updates every currently-installed skill, per-skill error
// isolation, in a bounded worker pool. The returned bool is false if any
// skill's update failed, mirroring the original's all([...]) aggregate
// rather than surfacing one arbitrary skill's error as the whole batch's.
func (m *Manager) UpdateAll(ctx context.Context) (bool, error) {
	local, err := m.LocalSkills(ctx)
	if err != nil {
		return false, err
	}
	return m.Apply(ctx, local, func(ctx context.Context, d *Descriptor) error {
		_, err := m.lifecycle.Update(ctx, d)
		return err
	})
}

// DefaultSkills returns the skills of the built-in "default" group followed
// by those named for m.cfg.Platform, each skill once, per
// list_all_defaults/list_defaults.
func (m *Manager) DefaultSkills(ctx context.Context) ([]*Descriptor, error) {
	groups, err := m.defaultGroups(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var result []*Descriptor
	for _, tag := range []string{"default", m.cfg.Platform} {
		for _, d := range groups[tag] {
			if !seen[d.ID()] {
				seen[d.ID()] = true
				result = append(result, d)
			}
		}
	}
	return result, nil
}

func (m *Manager) defaultGroups(ctx context.Context) (map[string][]*Descriptor, error) {
	if cached, ok := m.defaultSkills.Get("groups"); ok {
		return cached, nil
	}

	if err := m.catalog.Update(ctx); err != nil {
		return nil, err
	}

	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*Descriptor, len(all))
	for _, d := range all {
		byName[d.Name] = d
	}

	rawGroups, err := m.catalog.DefaultSkillGroups()
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]*Descriptor, len(platformGroups))
	for _, g := range rawGroups {
		for _, name := range g.SkillNames {
			if d, ok := byName[name]; ok {
				groups[g.PlatformTag] = append(groups[g.PlatformTag], d)
			}
		}
	}

	m.defaultSkills.Set("groups", groups)
	return groups, nil
}

// InstallDefaults installs every not-yet-local default skill and updates
// every already-installed one, skipping anything blacklisted in the
// device manifest. The returned bool is false if any skill's install or
// update failed.
func (m *Manager) InstallDefaults(ctx context.Context) (bool, error) {
	defaults, err := m.DefaultSkills(ctx)
	if err != nil {
		return false, err
	}

	var blacklist map[string]bool
	_ = m.withManifest(ctx, func(ctx context.Context, man *Manifest) error {
		blacklist = make(map[string]bool, len(man.Blacklist))
		for _, name := range man.Blacklist {
			blacklist[name] = true
		}
		return nil
	})

	var targets []*Descriptor
	for _, d := range defaults {
		if blacklist[d.Name] {
			continue
		}
		targets = append(targets, d)
	}

	return m.Apply(ctx, targets, func(ctx context.Context, d *Descriptor) error {
		if d.IsLocal {
			_, err := m.lifecycle.Update(ctx, d)
			return err
		}
		return m.installDescriptor(ctx, d, OriginDefault)
	})
}

// Apply runs fn over skills in a bounded worker pool (default 20,
// configurable via Config.WorkerPoolSize), isolating each skill's error so
// one failure doesn't cancel the others; every skill runs to completion
// regardless of any other skill's outcome. Returns an aggregate ok bool
// (false if any skill's fn returned an error, the Go analogue of the
// original's all([...]) over per-skill booleans) and a non-nil err only
// for a failure in Apply itself, never for an individual skill's error —
// that would misreport one arbitrary skill's structured error as the
// whole batch's per §6's exit-code table.
func (m *Manager) Apply(ctx context.Context, skills []*Descriptor, fn func(ctx context.Context, d *Descriptor) error) (bool, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.WorkerPoolSize)

	var mu sync.Mutex
	ok := true
	for _, d := range skills {
		d := d
		g.Go(func() error {
			if err := fn(gctx, d); err != nil {
				mu.Lock()
				ok = false
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	m.invalidateCaches()
	return ok, nil
}
