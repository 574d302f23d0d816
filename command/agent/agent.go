package agent

import (
	"io"
	"log"
	"os"

	"github.com/hashicorp/qnetd/qnetd"
)

// Agent starts and manages a qnetd Instance, the same thin wrapper role
// serf's Agent plays over serf.Serf: own the logger, own the one
// long-lived background goroutine, and expose Shutdown/ShutdownCh.
type Agent struct {
	inst   *qnetd.Instance
	logger *log.Logger
	errCh  chan error
}

// Create builds an Agent around settings but does not yet bind or start
// serving; call Start for that.
func Create(settings qnetd.Settings, logOutput io.Writer) (*Agent, error) {
	if logOutput == nil {
		logOutput = os.Stderr
	}
	inst, err := qnetd.NewInstance(settings, logOutput)
	if err != nil {
		return nil, err
	}
	return &Agent{
		inst:   inst,
		logger: log.New(logOutput, "", log.LstdFlags),
		errCh:  make(chan error, 1),
	}, nil
}

// Start binds the listener and begins pumping the readiness loop in a
// background goroutine.
func (a *Agent) Start() error {
	a.logger.Printf("[INFO] agent: qnetd instance starting")
	if err := a.inst.Start(); err != nil {
		return err
	}
	go func() {
		a.errCh <- a.inst.Run()
	}()
	return nil
}

// Shutdown tears down every client session and stops the listener.
func (a *Agent) Shutdown() error {
	a.logger.Println("[INFO] agent: requesting qnetd shutdown")
	return a.inst.Shutdown()
}

// ShutdownCh returns a channel closed once the instance has shut down.
func (a *Agent) ShutdownCh() <-chan struct{} {
	return a.inst.ShutdownCh()
}

// RunErrCh returns a channel that receives the readiness loop's terminal
// error (nil on a clean Shutdown-triggered exit) exactly once.
func (a *Agent) RunErrCh() <-chan error {
	return a.errCh
}

// Instance returns the underlying qnetd instance, for the control socket
// worker's status reporting.
func (a *Agent) Instance() *qnetd.Instance {
	return a.inst
}
