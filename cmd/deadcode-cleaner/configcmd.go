package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration helpers",
		Subcommands: []*cli.Command{
			{
				Name:   "validate",
				Usage:  "Load the configuration and report problems",
				Action: runConfigValidate,
			},
		},
	}
}

func runConfigValidate(c *cli.Context) error {
	cfg, err := loadConfig(c, nil)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintln(w, "configuration OK")
	fmt.Fprintf(w, "  transport:         %s\n", cfg.Server.Transport)
	if cfg.Server.Transport == "http" {
		fmt.Fprintf(w, "  addr:              %s\n", cfg.Server.Addr)
	}
	fmt.Fprintf(w, "  chat model:        %s\n", cfg.OpenAI.Model)
	fmt.Fprintf(w, "  analysis provider: %s (%s)\n", cfg.Analysis.Provider, cfg.Analysis.Model)
	fmt.Fprintf(w, "  language:          %s\n", cfg.Analysis.Language)
	fmt.Fprintf(w, "  object storage:    %t\n", cfg.MinioEnabled())
	return nil
}
