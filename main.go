package main

import (
	"errors"
	"os"

	"github.com/alecthomas/kong"

	"github.com/skillspkg/spm/internal/cli"
	"github.com/skillspkg/spm/internal/domain"
)

// CLI represents the command-line interface structure.
var CLI struct {
	cli.Globals

	Install cli.InstallCmd `cmd:"" help:"Install one skill by name or URL."`
	Remove  cli.RemoveCmd  `cmd:"" help:"Remove one installed skill."`
	Update  cli.UpdateCmd  `cmd:"" help:"Update all local skills."`
	Default cli.DefaultCmd `cmd:"" help:"Install the platform's default skill set."`
	List    cli.ListCmd    `cmd:"" help:"List the catalog, or installed skills with --installed."`
	Search  cli.SearchCmd  `cmd:"" help:"Search the catalog by name."`
	Info    cli.InfoCmd    `cmd:"" help:"Print one skill's identity and install path."`
}

// Version information (injected via ldflags at release build time).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("skillspkg"),
		kong.Description("Package manager for voice-assistant skills."),
		kong.UsageOnError(),
		kong.Bind(&CLI.Globals),
		kong.Vars{
			"version": version,
		},
	)

	err := kctx.Run()

	switch {
	case err == nil:
		os.Exit(domain.ExitCode(true, nil))
	case errors.Is(err, cli.ErrNoOp):
		os.Exit(domain.ExitCode(false, nil))
	default:
		os.Exit(domain.ExitCode(true, err))
	}
}
