package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	domain "github.com/bryanwahyu/deadcode-cleaner/internal/domain/cleaning"
)

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Print the findings for a file as JSON",
		ArgsUsage: "FILE (or - for stdin, or minio://KEY)",
		Action:    runAnalyze,
	}
}

func cleanCommand() *cli.Command {
	return &cli.Command{
		Name:      "clean",
		Usage:     "Print the cleaned version of a file",
		ArgsUsage: "FILE (or - for stdin, or minio://KEY)",
		Action:    runClean,
	}
}

func runAnalyze(c *cli.Context) error {
	d, code, err := setupWithCode(c)
	if err != nil {
		return err
	}

	res, aerr := d.svc.Analyze(c.Context, code)
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if aerr != nil {
		return cli.Exit(res.Error, 2)
	}
	return nil
}

func runClean(c *cli.Context) error {
	d, code, err := setupWithCode(c)
	if err != nil {
		return err
	}

	out, err := d.svc.Clean(c.Context, code)
	if err != nil {
		return cli.Exit(domain.Describe(err), 2)
	}
	_, err = fmt.Fprintln(c.App.Writer, out)
	return err
}

func setupWithCode(c *cli.Context) (*deps, string, error) {
	if c.NArg() < 1 {
		return nil, "", errors.New("missing required argument: FILE")
	}
	d, err := setup(c, nil)
	if err != nil {
		return nil, "", err
	}

	path := c.Args().First()
	if path == "-" {
		b, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return nil, "", fmt.Errorf("read stdin: %w", err)
		}
		return d, string(b), nil
	}
	code, err := d.svc.LoadCode(c.Context, path)
	if err != nil {
		return nil, "", fmt.Errorf("load %s: %w", path, err)
	}
	return d, code, nil
}
