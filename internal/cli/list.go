package cli

import (
	"context"

	"github.com/skillspkg/spm/internal/domain"
)

// ListCmd lists the catalog, or just installed skills with --installed.
type ListCmd struct {
	Installed bool `help:"List only locally-installed skills."`
}

func (c *ListCmd) Run(g *Globals) error {
	log := g.Logger()

	manager, err := g.NewManager()
	if err != nil {
		log.Error("failed to initialize: %v", err)
		return err
	}

	ctx := context.Background()
	var skills []*domain.Descriptor
	if c.Installed {
		skills, err = manager.LocalSkills(ctx)
	} else {
		skills, err = manager.List(ctx)
	}
	if err != nil {
		log.Error("list failed: %v", err)
		return err
	}

	for _, s := range skills {
		log.Info("%s", s.Name)
	}
	return nil
}
