package cli

import "context"

// InfoCmd prints a single skill's name, author, url, and install path (or
// "Not installed").
type InfoCmd struct {
	Skill  string `arg:"" help:"Skill name or git URL."`
	Author string `arg:"" optional:"" help:"Disambiguating author/owner."`
}

func (c *InfoCmd) Run(g *Globals) error {
	log := g.Logger()

	manager, err := g.NewManager()
	if err != nil {
		log.Error("failed to initialize: %v", err)
		return err
	}

	d, err := manager.FindSkill(context.Background(), c.Skill, c.Author)
	if err != nil {
		log.Error("info failed: %v", err)
		return err
	}

	path := "Not installed"
	if d.IsLocal {
		path = d.LocalPath
	}

	log.Info("name: %s", d.Name)
	log.Info("author: %s", d.Author)
	log.Info("url: %s", d.URL)
	log.Info("path: %s", path)

	if d.IsLocal && d.IsBeta() {
		if tag, err := manager.LatestTag(d); err == nil && tag != "" {
			log.Info("latest tag: %s", tag)
		}
	}

	return nil
}
