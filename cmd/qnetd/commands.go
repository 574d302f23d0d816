package main

import (
	"os"

	"github.com/mitchellh/cli"

	"github.com/hashicorp/qnetd/command/agent"
)

// Version is the qnetd release string, reported by `qnetd version` and by
// the CLI's own version flag.
const Version = "0.1.0"

// Commands returns the CLI subcommand table, mirroring serf's own
// cmd/serf/commands.go shape: one entry per subcommand, built lazily so
// each gets a fresh cli.Ui wrapping stdout/stderr.
func Commands(shutdownCh <-chan struct{}) map[string]cli.CommandFactory {
	ui := &cli.BasicUi{Writer: os.Stdout, ErrorWriter: os.Stderr}

	return map[string]cli.CommandFactory{
		"agent": func() (cli.Command, error) {
			return &agent.Command{
				Ui:         ui,
				ShutdownCh: shutdownCh,
			}, nil
		},
		"version": func() (cli.Command, error) {
			return &versionCommand{Ui: ui}, nil
		},
	}
}

type versionCommand struct {
	Ui cli.Ui
}

func (c *versionCommand) Run(args []string) int {
	c.Ui.Output("qnetd v" + Version)
	return 0
}

func (c *versionCommand) Synopsis() string { return "Prints the qnetd version" }
func (c *versionCommand) Help() string     { return "Usage: qnetd version" }
