package agent

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"os"
	"strings"

	circbuf "github.com/armon/circbuf"
	"github.com/ryanuber/columnize"

	"github.com/hashicorp/qnetd/qnetd"
)

// controlHistorySize bounds how many status-command lines the control
// socket remembers for later `status verbose` replay (SPEC_FULL
// supplement 5/6): a fixed ring buffer rather than an unbounded log, the
// same bounded-by-construction shape circbuf gives serf's own log ring.
const controlHistorySize = 16 * 1024

// ControlSocket is the C9 control-socket worker: a unix-domain listener
// speaking a tiny newline-delimited line protocol (`status`,
// `status verbose`, `shutdown`), deliberately kept off the core
// single-threaded readiness loop since it is purely an operator
// interface, not part of the arbiter's wire protocol.
type ControlSocket struct {
	agent   *Agent
	ln      net.Listener
	logger  *log.Logger
	history *circbuf.Buffer
}

// NewControlSocket binds a unix socket at path with the given gid/mode,
// mirroring the {path, group, permission} triple spec §6 names for the
// control socket.
func NewControlSocket(path string, gid int, mode os.FileMode, agent *Agent, logOutput *log.Logger) (*ControlSocket, error) {
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("control socket listen: %w", err)
	}
	if err := os.Chmod(path, mode); err != nil {
		ln.Close()
		return nil, fmt.Errorf("control socket chmod: %w", err)
	}
	if gid >= 0 {
		_ = os.Chown(path, -1, gid)
	}
	hist, err := circbuf.NewBuffer(controlHistorySize)
	if err != nil {
		ln.Close()
		return nil, err
	}
	return &ControlSocket{agent: agent, ln: ln, logger: logOutput, history: hist}, nil
}

// Serve accepts connections until the listener is closed by Shutdown.
func (cs *ControlSocket) Serve() {
	for {
		conn, err := cs.ln.Accept()
		if err != nil {
			return
		}
		go cs.handle(conn)
	}
}

// Shutdown closes the listener, ending Serve's accept loop.
func (cs *ControlSocket) Shutdown() error {
	return cs.ln.Close()
}

func (cs *ControlSocket) handle(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		reply := cs.dispatch(line)
		fmt.Fprintln(conn, reply)
		if line == "shutdown" {
			return
		}
	}
}

// dispatch renders the reply to a single line per spec §6's control-socket
// wire format: "OK\n<body>" on success, "Error\n<reason>" on failure.
func (cs *ControlSocket) dispatch(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "Error\nunknown command"
	}
	cmd := fields[0]

	switch cmd {
	case "status":
		verbose := len(fields) > 1 && fields[1] == "verbose"
		out := cs.status(verbose)
		cs.record(line)
		return "OK\n" + out
	case "shutdown":
		cs.record(line)
		if err := cs.agent.Shutdown(); err != nil {
			return "Error\n" + err.Error()
		}
		return "OK"
	default:
		return "Error\nunknown command: " + cmd
	}
}

func (cs *ControlSocket) record(line string) {
	cs.history.Write([]byte(line + "\n"))
}

// status renders the `status`/`status verbose` reply: a one-line summary,
// or, when verbose is requested, that summary plus a columnized per-session
// table (cluster, node id, algorithm, state, heartbeat, peer address) and
// the recorded command history (SPEC_FULL supplement 5's control-socket
// field list).
func (cs *ControlSocket) status(verbose bool) string {
	inst := cs.agent.Instance()
	summary := fmt.Sprintf("Cluster count: %d\nClient count: %d", inst.Clusters.Len(), inst.ClientCount())
	if !verbose {
		return summary
	}

	rows := []string{"Cluster | Node ID | Algorithm | State | Heartbeat(ms) | Address"}
	for _, c := range inst.ClientsSnapshot() {
		rows = append(rows, fmt.Sprintf("%s | %d | %s | %s | %d | %s",
			clusterOrPending(c), c.NodeID, c.PreferredAlgorithm, stateString(c),
			c.Heartbeat.Milliseconds(), c.Addr))
	}
	return summary + "\n\n" + columnize.SimpleFormat(rows) + "\n\nRecent commands:\n" + cs.history.String()
}

func clusterOrPending(c *qnetd.Client) string {
	if c.ClusterName == "" {
		return "(pending)"
	}
	return c.ClusterName
}

func stateString(c *qnetd.Client) string {
	return fmt.Sprintf("%v", c.State)
}
