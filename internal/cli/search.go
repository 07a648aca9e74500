package cli

import (
	"context"

	"github.com/skillspkg/spm/internal/domain"
)

// SearchCmd prints every skill name scoring at least 0.3 against query.
type SearchCmd struct {
	Query  string `arg:"" help:"Search query."`
	Author string `arg:"" optional:"" help:"Disambiguating author/owner."`
}

func (c *SearchCmd) Run(g *Globals) error {
	log := g.Logger()

	manager, err := g.NewManager()
	if err != nil {
		log.Error("failed to initialize: %v", err)
		return err
	}

	all, err := manager.List(context.Background())
	if err != nil {
		log.Error("search failed: %v", err)
		return err
	}

	matches := domain.Search(c.Query, c.Author, all)
	for _, d := range matches {
		log.Info("%s", d.Name)
	}
	if len(matches) == 0 {
		return ErrNoOp
	}
	return nil
}
