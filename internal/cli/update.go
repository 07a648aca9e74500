package cli

import "context"

// UpdateCmd updates every locally-installed skill.
type UpdateCmd struct{}

func (c *UpdateCmd) Run(g *Globals) error {
	log := g.Logger()

	manager, err := g.NewManager()
	if err != nil {
		log.Error("failed to initialize: %v", err)
		return err
	}

	ok, err := manager.UpdateAll(context.Background())
	if err != nil {
		log.Error("update failed: %v", err)
		return err
	}
	if !ok {
		log.Error("update completed with failures")
		return ErrNoOp
	}

	log.Info("update complete")
	return nil
}
