// Package domain provides the core domain model: manifest store, catalog,
// skill descriptor, lifecycle, resolver and manager.
package domain

import "time"

// defaultWorkerPoolSize is the Manager's bounded worker pool size when
// Config.WorkerPoolSize is left at its zero value.
const defaultWorkerPoolSize = 20

// defaultCacheTTL is the Manager cache lifetime when Config.CacheTTL is
// left at its zero value.
const defaultCacheTTL = 24 * time.Hour

// Config carries every Manager dependency that isn't itself an adapter:
// no process-wide mutable singletons, no project-level config file —
// built by the CLI layer from flags/env and passed to NewManager.
type Config struct {
	Platform string
	// SkillsDir is the directory skills are installed under.
	SkillsDir string

	// RepoURL and RepoBranch locate and pin the catalog repository.
	RepoURL    string
	RepoBranch string
	// RepoCache is the local clone path for the catalog.
	RepoCache string

	// ManifestPath is the device manifest's fixed path.
	ManifestPath string
	// LockPath guards the manifest and catalog clone.
	LockPath string

	// Latest disables pinning: skills always track their branch tip.
	Latest bool

	// SwitchableBranches lists branches update() may switch away from
	// when following a pinned commit onto a release branch. NewManager does
	// not pass it on: the Lifecycle uses the list given to NewLifecycle.
	SwitchableBranches []string

	// ConstraintsFile names a constraints file for the language installer.
	// NewManager does not pass it on: the Lifecycle uses the constraints
	// file given to NewLifecycle.
	ConstraintsFile string

	WorkerPoolSize int
	CacheTTL       time.Duration
}

// WithDefaults returns a copy of c with zero-valued fields replaced by
// their defaults (worker pool size 20, cache TTL 24h).
func (c Config) WithDefaults() Config {
	if c.WorkerPoolSize <= 0 {
		c.WorkerPoolSize = defaultWorkerPoolSize
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = defaultCacheTTL
	}
	if c.SwitchableBranches == nil {
		c.SwitchableBranches = defaultSwitchableBranches
	}
	if c.ManifestPath == "" {
		c.ManifestPath = DefaultManifestPath()
	}
	return c
}
