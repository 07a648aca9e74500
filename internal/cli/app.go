package cli

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/skillspkg/spm/internal/adapter"
	"github.com/skillspkg/spm/internal/adapter/pkgmanager"
	"github.com/skillspkg/spm/internal/domain"
)

// ErrNoOp signals a command whose operation returned false rather than a
// structured error (e.g. search with zero matches, or an update/default
// batch in which some skill failed), mapped to exit code 1 by main's
// exit-code dispatch rather than the error-class byte-sum formula.
var ErrNoOp = errors.New("no matching result")

// Globals holds every flag shared across subcommands (hoisted onto the
// top-level kong.CLI struct and injected into each command's Run via
// kong.Bind, rather than the teacher's FieldByName reflection lookup).
type Globals struct {
	Platform   string `help:"Platform tag for default-skill selection." default:"default"`
	RepoURL    string `help:"Catalog repository URL." default:"https://github.com/MycroftAI/mycroft-skills.git"`
	RepoBranch string `help:"Catalog branch to track."`
	RepoCache  string `help:"Local catalog clone path."`
	SkillsDir  string `help:"Directory skills are installed under." default:"~/.skillspkg/skills"`
	Latest     bool   `help:"Track branch tips instead of catalog-pinned commits."`
	Raw        bool   `help:"Disable verbose-level logging (Info output is still printed)."`
}

// Logger builds the cli.Logger for these globals, --raw inverting the
// teacher's verbose-is-opt-in polarity: verbose-level logging is on by
// default and --raw turns it off. Info lines, which carry every command's
// output, are printed with or without --raw.
func (g *Globals) Logger() *Logger {
	return NewLogger(!g.Raw)
}

// NewManager wires a domain.Manager from the resolved globals, constructing
// every adapter (go-git, bash shell runner, pip installer, dirhash service,
// flock file lock) the same way for every subcommand.
func (g *Globals) NewManager() (*domain.Manager, error) {
	skillsDir, err := expandHome(g.SkillsDir)
	if err != nil {
		return nil, err
	}

	repoCache := g.RepoCache
	if repoCache == "" {
		repoCache = filepath.Join(skillsDir, ".catalog")
	}

	manifestPath := domain.DefaultManifestPath()
	lockPath := manifestPath + ".lock"

	git := pkgmanager.NewGitAdapter()
	catalog := domain.NewCatalog(git, repoCache, g.RepoURL, g.RepoBranch)

	lifecycle := domain.NewLifecycle(
		git,
		adapter.NewShellRunnerAdapter(),
		adapter.NewPipInstaller(""),
		adapter.NewDirhashService(),
		&sync.Mutex{},
		"",
		nil,
	)

	manifestStore := domain.NewManifestStore(manifestPath)
	lock := adapter.NewFlockLock(lockPath)

	cfg := domain.Config{
		Platform:  g.Platform,
		SkillsDir: skillsDir,

		RepoURL:    g.RepoURL,
		RepoBranch: g.RepoBranch,
		RepoCache:  repoCache,

		ManifestPath: manifestPath,
		LockPath:     lockPath,

		Latest: g.Latest,
	}

	manager := domain.NewManager(cfg, catalog, lifecycle, manifestStore, lock)
	log := g.Logger()
	manager.SetWarn(func(msg string) { log.Warn("%s", msg) })
	return manager, nil
}

// expandHome expands a leading "~" to the user's home directory, the Go
// idiomatic stand-in for the shell's own tilde expansion (flag values never
// pass through a shell).
func expandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if len(path) == 1 {
		return home, nil
	}
	return filepath.Join(home, path[1:]), nil
}
