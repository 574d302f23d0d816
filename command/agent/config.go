package agent

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/hashicorp/qnetd/qnetd"
)

// Config is the agent-level configuration: the flag-parsed fields plus
// whatever `-S key=value,...` advanced settings the operator supplied,
// decoded the same way serf's agent IPC decodes generic command payloads
// — via mapstructure rather than hand-rolled field-by-field parsing.
type Config struct {
	BindAddr   string
	Port       int
	LogLevel   string
	NodeName   string
	Syslog     bool
	SyslogFac  string
	ControlSocket string

	// Advanced holds the raw `-S opt=value` pairs, merged onto
	// qnetd.DefaultSettings() by Settings().
	Advanced map[string]string
}

// DefaultConfig mirrors the qnetd defaults plus the command-line surface's
// own defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:          5403,
		LogLevel:      "INFO",
		SyslogFac:     "LOCAL0",
		ControlSocket: "/var/run/qnetd/qnetd.sock",
		Advanced:      make(map[string]string),
	}
}

// ParseAdvanced parses a `-S opt=value,opt2=value2` flag value into the
// Config's Advanced map, accumulating across repeated flag uses.
func (c *Config) ParseAdvanced(raw string) error {
	for _, kv := range strings.Split(raw, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid -S option %q, expected opt=value", kv)
		}
		c.Advanced[parts[0]] = parts[1]
	}
	return nil
}

// Settings builds a qnetd.Settings from qnetd.DefaultSettings(), the
// flag-parsed bind address/port, and the decoded Advanced map — the same
// "defaults, then decode overrides via mapstructure" shape serf's IPC
// layer uses for every generic command payload.
func (c *Config) Settings() (qnetd.Settings, error) {
	s := qnetd.DefaultSettings()
	s.ListenAddr = c.BindAddr
	if c.Port != 0 {
		s.ListenPort = c.Port
	}
	if c.ControlSocket != "" {
		s.ControlSocketPath = c.ControlSocket
	}

	if len(c.Advanced) == 0 {
		return s, nil
	}

	raw, err := decodeAdvanced(c.Advanced)
	if err != nil {
		return s, err
	}
	if err := mapstructure.Decode(raw, &s); err != nil {
		return s, fmt.Errorf("decoding advanced settings: %w", err)
	}
	return s, nil
}

// decodeAdvanced type-converts string values from the -S flag into the
// types mapstructure will need to land them on qnetd.Settings's typed
// fields (durations, ints, bools), since the wire format is always
// key=stringvalue.
func decodeAdvanced(raw map[string]string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		switch k {
		case "ListenBacklog", "MaxClients", "MaxSendQueueFrames", "MaxSendQueueBytes",
			"ControlSocketGID", "AddressFamily", "TLSMode", "ClientCertRequired":
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("option %s: %w", k, err)
			}
			out[k] = n
		case "DPDEnabled":
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("option %s: %w", k, err)
			}
			out[k] = b
		case "DPDCoefficient":
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("option %s: %w", k, err)
			}
			out[k] = f
		case "HeartbeatMin", "HeartbeatMax":
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("option %s: %w", k, err)
			}
			out[k] = d
		default:
			out[k] = v
		}
	}
	return out, nil
}
