package main

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"os/signal"

	"github.com/mitchellh/cli"
)

func main() {
	log.SetOutput(ioutil.Discard)
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	shutdownCh := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt)
		<-sigCh
		close(shutdownCh)
	}()

	c := cli.NewCLI("qnetd", Version)
	c.Args = args
	c.Commands = Commands(shutdownCh)
	c.HelpFunc = cli.BasicHelpFunc("qnetd")

	exitCode, err := c.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error executing CLI: %v\n", err)
		return 1
	}
	return exitCode
}
