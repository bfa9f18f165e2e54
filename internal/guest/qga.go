package guest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"doze/internal/clock"
	"doze/internal/config"
	"doze/internal/hypervisor"
	"doze/internal/logging"
)

// statusPollInterval is how often a running guest-exec is re-checked.
const statusPollInterval = 250 * time.Millisecond

// QGAChannel talks to the QEMU guest agent through libvirt. Commands
// are wrapped in a shell via guest-exec and their completion polled via
// guest-exec-status.
type QGAChannel struct {
	ctrl           hypervisor.Controller
	clk            clock.Clock
	logger         *logging.Logger
	timeoutSeconds int
}

// NewQGAChannel returns a channel backed by the domain's guest agent.
func NewQGAChannel(cfg config.GuestConfig, ctrl hypervisor.Controller, clk clock.Clock, logger *logging.Logger) *QGAChannel {
	return &QGAChannel{
		ctrl:           ctrl,
		clk:            clk,
		logger:         logger,
		timeoutSeconds: cfg.ExecTimeoutSeconds,
	}
}

func (c *QGAChannel) Name() string { return "qga" }

// Ping issues guest-ping. Any valid response means the agent is up.
func (c *QGAChannel) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.command("guest-ping", nil)
	return err
}

type qgaExecArgs struct {
	Path          string   `json:"path"`
	Arg           []string `json:"arg,omitempty"`
	CaptureOutput bool     `json:"capture-output"`
}

type qgaExecReturn struct {
	Return struct {
		PID int `json:"pid"`
	} `json:"return"`
}

type qgaStatusArgs struct {
	PID int `json:"pid"`
}

type qgaStatusReturn struct {
	Return struct {
		Exited   bool   `json:"exited"`
		ExitCode int    `json:"exitcode"`
		Signal   int    `json:"signal"`
		OutData  string `json:"out-data"`
		ErrData  string `json:"err-data"`
	} `json:"return"`
}

// Exec wraps the command in /bin/sh -c, starts it through guest-exec
// and polls guest-exec-status until it exits or ctx is cancelled.
func (c *QGAChannel) Exec(ctx context.Context, command string) (ExecResult, error) {
	var result ExecResult

	resp, err := c.command("guest-exec", qgaExecArgs{
		Path:          "/bin/sh",
		Arg:           []string{"-c", command},
		CaptureOutput: true,
	})
	if err != nil {
		return result, err
	}

	var execResp qgaExecReturn
	if err := json.Unmarshal([]byte(resp), &execResp); err != nil {
		return result, fmt.Errorf("parse guest-exec response: %w", err)
	}
	pid := execResp.Return.PID

	for {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("guest-exec pid %d: %w", pid, err)
		}

		resp, err := c.command("guest-exec-status", qgaStatusArgs{PID: pid})
		if err != nil {
			return result, err
		}

		var status qgaStatusReturn
		if err := json.Unmarshal([]byte(resp), &status); err != nil {
			return result, fmt.Errorf("parse guest-exec-status response: %w", err)
		}

		if status.Return.Exited {
			result.ExitCode = status.Return.ExitCode
			if status.Return.Signal != 0 {
				result.ExitCode = 128 + status.Return.Signal
			}
			result.Stdout, err = decodeData(status.Return.OutData)
			if err != nil {
				return result, fmt.Errorf("decode stdout: %w", err)
			}
			result.Stderr, err = decodeData(status.Return.ErrData)
			if err != nil {
				return result, fmt.Errorf("decode stderr: %w", err)
			}
			return result, nil
		}

		c.clk.Sleep(statusPollInterval)
	}
}

// command marshals and sends one agent command.
func (c *QGAChannel) command(execute string, args interface{}) (string, error) {
	req := struct {
		Execute   string      `json:"execute"`
		Arguments interface{} `json:"arguments,omitempty"`
	}{Execute: execute, Arguments: args}

	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", execute, err)
	}

	resp, err := c.ctrl.AgentCommand(string(payload), c.timeoutSeconds)
	if err != nil {
		return "", fmt.Errorf("%s: %w", execute, err)
	}
	return resp, nil
}

func decodeData(data string) (string, error) {
	if data == "" {
		return "", nil
	}
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
