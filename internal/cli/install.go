package cli

import (
	"context"
	"errors"

	"github.com/skillspkg/spm/internal/domain"
)

// InstallCmd installs one skill by name or URL.
type InstallCmd struct {
	Skill  string `arg:"" help:"Skill name or git URL."`
	Author string `arg:"" optional:"" help:"Disambiguating author/owner."`
}

func (c *InstallCmd) Run(g *Globals) error {
	log := g.Logger()

	manager, err := g.NewManager()
	if err != nil {
		log.Error("failed to initialize: %v", err)
		return err
	}

	err = manager.Install(context.Background(), c.Skill, c.Author, domain.OriginCLI)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyInstalled) {
			log.Info("%s is already installed", c.Skill)
			return err
		}
		log.Error("install failed: %v", err)
		return err
	}

	log.Info("installed %s", c.Skill)
	return nil
}
