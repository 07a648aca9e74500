package cli

import (
	"context"
	"errors"

	"github.com/skillspkg/spm/internal/domain"
)

// RemoveCmd removes one installed skill.
type RemoveCmd struct {
	Skill  string `arg:"" help:"Skill name or git URL."`
	Author string `arg:"" optional:"" help:"Disambiguating author/owner."`
}

func (c *RemoveCmd) Run(g *Globals) error {
	log := g.Logger()

	manager, err := g.NewManager()
	if err != nil {
		log.Error("failed to initialize: %v", err)
		return err
	}

	err = manager.Remove(context.Background(), c.Skill, c.Author)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyRemoved) {
			log.Info("%s is already removed", c.Skill)
			return err
		}
		log.Error("remove failed: %v", err)
		return err
	}

	log.Info("removed %s", c.Skill)
	return nil
}
