package domain

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/skillspkg/spm/internal/port"
)

// installDirMode is the permission used when a skill's final directory is
// created via the rename-from-scratch move.
const installDirMode = 0o755

// defaultSwitchableBranches lists the branches update() is allowed to switch
// away from when following a pinned commit onto a release branch, used when
// NewLifecycle is given a nil list.
var defaultSwitchableBranches = []string{"master"}

// Lifecycle installs, updates and removes a single skill. Grounded
// one-for-one on original_source/msm/skill_entry.py's
// install/update/remove methods.
type Lifecycle struct {
	git       port.GitRepository
	shell     port.ShellRunner
	installer port.LanguageInstaller
	hash      port.HashService

	// pipMu serializes language-requirement installs process-wide, mirroring
	// the original's reliance on a single pip invocation at a time.
	pipMu *sync.Mutex

	constraintsFile    string
	switchableBranches []string
}

// NewLifecycle builds a Lifecycle. constraintsFile may be empty.
// switchableBranches defaults to {"master"} when nil.
func NewLifecycle(git port.GitRepository, shell port.ShellRunner, installer port.LanguageInstaller, hash port.HashService, pipMu *sync.Mutex, constraintsFile string, switchableBranches []string) *Lifecycle {
	if switchableBranches == nil {
		switchableBranches = defaultSwitchableBranches
	}
	return &Lifecycle{
		git:                git,
		shell:              shell,
		installer:          installer,
		hash:               hash,
		pipMu:              pipMu,
		constraintsFile:    constraintsFile,
		switchableBranches: switchableBranches,
	}
}

// InstallDeps installs skill_requirements.txt dependencies for d, by
// delegating each name to installOne (normally Manager.InstallByName).
// AlreadyInstalled is swallowed; any other failure is wrapped in
// SkillRequirementsError.
func (l *Lifecycle) InstallDeps(ctx context.Context, d *Descriptor, installOne func(ctx context.Context, name string) error) error {
	reqs, err := readLines(filepath.Join(d.LocalPath, "skill_requirements.txt"))
	if err != nil {
		return nil
	}

	for _, dep := range reqs {
		if err := installOne(ctx, dep); err != nil {
			if err == ErrAlreadyInstalled {
				continue
			}
			return &SkillRequirementsError{Skill: d.Name, Err: err}
		}
	}
	return nil
}

// Install clones d into place and runs its system and language
// requirements. Preconditions: d.IsLocal must be false.
func (l *Lifecycle) Install(ctx context.Context, d *Descriptor) error {
	if d.IsLocal {
		return ErrAlreadyInstalled
	}

	scratch := d.LocalPath + ".download"
	_ = os.RemoveAll(scratch)

	if err := l.git.CloneSkill(ctx, d.URL, scratch, d.PinnedCommit); err != nil {
		_ = os.RemoveAll(scratch)
		return &CloneError{URL: d.URL, Err: err}
	}

	// Inhibit auto-load of the entry-point module while the move is in
	// flight by renaming it out of the way, restoring it once the move to
	// the final path completes.
	entryPoint := filepath.Join(scratch, EntryPointName)
	hidden := filepath.Join(scratch, "__entrypoint_hidden")
	hadEntryPoint := false
	if _, err := os.Stat(entryPoint); err == nil {
		_ = os.Rename(entryPoint, hidden)
		hadEntryPoint = true
	}

	if err := os.MkdirAll(filepath.Dir(d.LocalPath), installDirMode); err != nil {
		_ = os.RemoveAll(scratch)
		return &CloneError{URL: d.URL, Err: err}
	}
	if err := os.Rename(scratch, d.LocalPath); err != nil {
		_ = os.RemoveAll(scratch)
		return &CloneError{URL: d.URL, Err: err}
	}
	d.IsLocal = true

	if hadEntryPoint {
		_ = os.Rename(filepath.Join(d.LocalPath, "__entrypoint_hidden"), filepath.Join(d.LocalPath, EntryPointName))
	}

	if err := l.installDeps(ctx, d); err != nil {
		return err
	}

	return l.recordContentHash(ctx, d)
}

// recordContentHash confirms the entry-point invariant (§8 Invariant 1:
// an installed skill's directory always contains EntryPointName) and
// records its content hash on d. A missing entry point after install or
// update is not itself an install failure upstream callers surface, since
// some skills legitimately ship without one; the hash is simply left
// empty in that case.
func (l *Lifecycle) recordContentHash(ctx context.Context, d *Descriptor) error {
	if !HasEntryPoint(d.LocalPath) {
		return nil
	}
	result, err := l.hash.CalculateHash(ctx, d.LocalPath)
	if err != nil {
		return nil
	}
	d.ContentHash = result.Value
	return nil
}

// installDeps runs the system-requirements script then the language
// installer, the shared tail of Install and Update.
func (l *Lifecycle) installDeps(ctx context.Context, d *Descriptor) error {
	if err := l.runSystemRequirements(ctx, d); err != nil {
		return err
	}
	return l.runLanguageRequirements(ctx, d)
}

func (l *Lifecycle) runSystemRequirements(ctx context.Context, d *Descriptor) error {
	script := filepath.Join(d.LocalPath, "requirements.sh")
	if _, err := os.Stat(script); err != nil {
		return nil
	}

	code, err := l.shell.RunScript(ctx, script, d.LocalPath)
	if err != nil {
		return &SystemRequirementsError{Skill: d.Name, Code: -1}
	}
	if code != 0 {
		return &SystemRequirementsError{Skill: d.Name, Code: code}
	}
	return nil
}

func (l *Lifecycle) runLanguageRequirements(ctx context.Context, d *Descriptor) error {
	reqFile := filepath.Join(d.LocalPath, "requirements.txt")
	if _, err := os.Stat(reqFile); err != nil {
		return nil
	}

	l.pipMu.Lock()
	defer l.pipMu.Unlock()

	result, err := l.installer.Install(ctx, reqFile, l.constraintsFile)
	if err != nil {
		return &PipRequirementsError{Skill: d.Name, Code: -1, Stderr: err.Error()}
	}
	if result.ExitCode == 0 {
		return nil
	}
	return &PipRequirementsError{Skill: d.Name, Code: result.ExitCode, Stdout: result.Stdout, Stderr: result.Stderr}
}

// Update fetches and fast-forwards d to its pinned commit or origin/HEAD,
// re-running requirements if the commit changed. Returns whether anything
// changed. Preconditions: d.IsLocal must be true.
func (l *Lifecycle) Update(ctx context.Context, d *Descriptor) (bool, error) {
	if !d.IsLocal {
		return false, ErrNotInstalled
	}

	before, err := l.git.HeadCommit(d.LocalPath)
	if err != nil {
		return false, &GitError{Op: "rev-parse", Err: err}
	}

	status, err := l.git.Status(d.LocalPath)
	if err != nil {
		return false, &GitError{Op: "status", Err: err}
	}
	if status != "" {
		return false, &SkillModifiedError{Skill: d.Name, Status: status}
	}

	if err := l.git.Fetch(ctx, d.LocalPath); err != nil {
		return false, &GitError{Op: "fetch", Err: err}
	}

	if d.PinnedCommit != "" {
		branch, err := l.git.CurrentBranch(d.LocalPath)
		if err == nil && l.isSwitchable(branch) {
			target, err := l.git.BranchContaining(d.LocalPath, d.PinnedCommit)
			if err == nil && target != "" && target != branch {
				if err := l.git.CheckoutBranch(ctx, d.LocalPath, target); err != nil {
					return false, &GitError{Op: "checkout", Err: err}
				}
			}
		}
	}

	if err := l.git.FastForwardMerge(ctx, d.LocalPath, d.PinnedCommit); err != nil {
		return false, &GitError{Op: "merge", Err: err}
	}

	after, err := l.git.HeadCommit(d.LocalPath)
	if err != nil {
		return false, &GitError{Op: "rev-parse", Err: err}
	}

	if before == after {
		return false, nil
	}

	if err := l.installDeps(ctx, d); err != nil {
		return false, err
	}
	if err := l.recordContentHash(ctx, d); err != nil {
		return false, err
	}

	// Touch the entry point's mtime to trigger a reload by anything
	// watching the skill directory for changes.
	now := time.Now()
	_ = os.Chtimes(filepath.Join(d.LocalPath, EntryPointName), now, now)

	return true, nil
}

func (l *Lifecycle) isSwitchable(branch string) bool {
	for _, b := range l.switchableBranches {
		if b == branch {
			return true
		}
	}
	return false
}

// Remove deletes d's local directory. Preconditions: d.IsLocal must be true.
func (l *Lifecycle) Remove(d *Descriptor) error {
	if !d.IsLocal {
		return ErrAlreadyRemoved
	}
	if err := os.RemoveAll(d.LocalPath); err != nil {
		return &RemoveError{Skill: d.Name, Err: err}
	}
	d.IsLocal = false
	return nil
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, raw := range strings.Split(string(data), "\n") {
		if line := strings.TrimSpace(raw); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}
