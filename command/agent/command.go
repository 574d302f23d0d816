package agent

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-syslog"
	"github.com/hashicorp/logutils"
	"github.com/mitchellh/cli"
)

// gracefulTimeout bounds how long shutdown waits for in-flight client
// sessions to drain before exiting anyway.
var gracefulTimeout = 3 * time.Second

// Command is a cli.Command implementation that runs a qnetd agent, the
// same role serf's own agent Command plays: parse flags, wire logging,
// start the instance, block until a signal or shutdown request arrives.
type Command struct {
	Ui         cli.Ui
	ShutdownCh <-chan struct{}
	args       []string
	logFilter  *logutils.LevelFilter
}

func (c *Command) readConfig() *Config {
	config := DefaultConfig()

	cmdFlags := flag.NewFlagSet("agent", flag.ContinueOnError)
	cmdFlags.Usage = func() { c.Ui.Output(c.Help()) }
	cmdFlags.StringVar(&config.BindAddr, "bind", "", "address to bind the client listener to")
	cmdFlags.IntVar(&config.Port, "port", config.Port, "port to bind the client listener to")
	cmdFlags.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")
	cmdFlags.StringVar(&config.NodeName, "node", "", "node name, defaults to hostname")
	cmdFlags.BoolVar(&config.Syslog, "syslog", false, "also log to syslog")
	cmdFlags.StringVar(&config.SyslogFac, "syslog-facility", config.SyslogFac, "syslog facility")
	cmdFlags.StringVar(&config.ControlSocket, "control-socket", config.ControlSocket, "path to the control socket")
	cmdFlags.Func("S", "advanced setting, opt=value[,opt2=value2,...]; may be repeated", config.ParseAdvanced)
	if err := cmdFlags.Parse(c.args); err != nil {
		return nil
	}

	if config.NodeName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			c.Ui.Error(fmt.Sprintf("Error determining hostname: %s", err))
			return nil
		}
		config.NodeName = hostname
	}

	return config
}

// setupLoggers wires the {gated writer, level filter, optional syslog}
// chain serf's agent command builds, so startup logging is held back
// until the banner has printed and every log line is level-filtered the
// same way whether it is headed for stderr or syslog.
func (c *Command) setupLoggers(config *Config) (*GatedWriter, io.Writer, error) {
	logGate := &GatedWriter{Writer: &cli.UiWriter{Ui: c.Ui}}

	filter, err := newLevelFilter(strings.ToUpper(config.LogLevel))
	if err != nil {
		return nil, nil, err
	}
	c.logFilter = filter
	c.logFilter.Writer = logGate

	var logOutput io.Writer = c.logFilter
	if config.Syslog {
		sink, err := gsyslog.NewLogger(gsyslog.LOG_NOTICE, config.SyslogFac, "qnetd")
		if err != nil {
			return nil, nil, fmt.Errorf("syslog setup failed: %w", err)
		}
		logOutput = io.MultiWriter(c.logFilter, &syslogWriter{sink})
	}
	return logGate, logOutput, nil
}

// syslogWriter adapts gsyslog.Syslogger to io.Writer, matching the small
// shim serf's own syslog integration uses.
type syslogWriter struct {
	sink gsyslog.Syslogger
}

func (w *syslogWriter) Write(p []byte) (int, error) {
	return len(p), w.sink.WriteLevel(gsyslog.LOG_NOTICE, p)
}

func (c *Command) Run(args []string) int {
	c.Ui = &cli.PrefixedUi{
		OutputPrefix: "==> ",
		InfoPrefix:   "    ",
		ErrorPrefix:  "==> ",
		Ui:           c.Ui,
	}
	c.args = args

	config := c.readConfig()
	if config == nil {
		return 1
	}

	logGate, logOutput, err := c.setupLoggers(config)
	if err != nil {
		c.Ui.Error(err.Error())
		return 1
	}

	settings, err := config.Settings()
	if err != nil {
		c.Ui.Error(fmt.Sprintf("Invalid advanced settings: %s", err))
		return 1
	}

	lock, err := AcquireLockFile(settings.LockFilePath)
	if err != nil {
		c.Ui.Error(err.Error())
		return 1
	}
	defer lock.Release()

	c.Ui.Output("Starting qnetd agent...")
	agent, err := Create(settings, logOutput)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("Failed to create qnetd agent: %s", err))
		return 1
	}
	if err := agent.Start(); err != nil {
		c.Ui.Error(fmt.Sprintf("Failed to start qnetd agent: %s", err))
		return 1
	}
	defer agent.Shutdown()

	control, err := NewControlSocket(settings.ControlSocketPath, settings.ControlSocketGID,
		os.FileMode(settings.ControlSocketMode), agent, nil)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("Failed to start control socket: %s", err))
		return 1
	}
	go control.Serve()
	defer control.Shutdown()

	c.Ui.Output("qnetd agent running!")
	c.Ui.Info(fmt.Sprintf("      Node name: '%s'", config.NodeName))
	c.Ui.Info(fmt.Sprintf("     Listen addr: '%s:%d'", settings.ListenAddr, settings.ListenPort))
	c.Ui.Info(fmt.Sprintf(" Control socket: '%s'", settings.ControlSocketPath))
	c.Ui.Info(fmt.Sprintf("       Max clients: %s", maxClientsString(settings.MaxClients)))

	c.Ui.Output("")
	c.Ui.Output("Log data will now stream in as it occurs:\n")
	logGate.Flush()

	return c.handleSignals(agent)
}

func maxClientsString(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return strconv.Itoa(n)
}

func (c *Command) handleSignals(agent *Agent) int {
	signalCh := make(chan os.Signal, 4)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-signalCh:
		c.Ui.Output(fmt.Sprintf("Caught signal: %v", sig))
	case <-c.ShutdownCh:
		c.Ui.Output("Shutdown requested")
	case err := <-agent.RunErrCh():
		if err != nil {
			c.Ui.Error(fmt.Sprintf("qnetd instance exited: %s", err))
			return 1
		}
		return 0
	case <-agent.ShutdownCh():
		return 0
	}

	shutdownCh := make(chan struct{})
	go func() {
		agent.Shutdown()
		close(shutdownCh)
	}()

	select {
	case <-shutdownCh:
		return 0
	case <-time.After(gracefulTimeout):
		c.Ui.Error("Timed out waiting for graceful shutdown")
		return 1
	}
}

func (c *Command) Synopsis() string {
	return "Runs a qnetd agent"
}

func (c *Command) Help() string {
	helpText := `
Usage: qnetd agent [options]

  Starts the qnetd arbiter agent and runs until an interrupt is received.
  The agent listens for cluster-membership client connections and casts
  tie-breaking votes per the configured decision algorithm.

Options:

  -bind=0.0.0.0              Address to bind the client listener to
  -port=5403                 Port to bind the client listener to
  -control-socket=path       Path to the control socket
  -log-level=info            Log level of the agent
  -node=hostname             Name of this node, shown in the startup banner
  -syslog                    Also log to syslog
  -syslog-facility=LOCAL0    Syslog facility to use
  -S opt=value,...           Advanced setting(s), overriding the built-in
                             defaults for things like heartbeat bounds,
                             send-queue caps, and the tie-breaker policy.
`
	return strings.TrimSpace(helpText)
}
