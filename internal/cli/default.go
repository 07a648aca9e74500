package cli

import "context"

// DefaultCmd installs the platform's default skills that are not yet local
// and updates the default skills that already are.
type DefaultCmd struct{}

func (c *DefaultCmd) Run(g *Globals) error {
	log := g.Logger()

	manager, err := g.NewManager()
	if err != nil {
		log.Error("failed to initialize: %v", err)
		return err
	}

	ok, err := manager.InstallDefaults(context.Background())
	if err != nil {
		log.Error("default install failed: %v", err)
		return err
	}
	if !ok {
		log.Error("default install completed with failures")
		return ErrNoOp
	}

	log.Info("default skills installed")
	return nil
}
