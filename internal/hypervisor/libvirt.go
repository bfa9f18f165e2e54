package hypervisor

import (
	"fmt"
	"sync"

	"github.com/digitalocean/go-libvirt"
	"github.com/digitalocean/go-libvirt/socket/dialers"

	"doze/internal/logging"
)

// LibvirtController drives one libvirt domain over the local libvirtd
// socket. The connection is established lazily and re-dialed after an
// RPC failure, so a libvirtd restart does not wedge the agent.
type LibvirtController struct {
	socket string
	domain string
	logger *logging.Logger

	mu        sync.Mutex
	conn      *libvirt.Libvirt
	dom       libvirt.Domain
	domValid  bool
	connected bool
}

// NewLibvirtController returns a controller for the named domain. No
// connection is made until the first call.
func NewLibvirtController(socket, domain string, logger *logging.Logger) *LibvirtController {
	return &LibvirtController{
		socket: socket,
		domain: domain,
		logger: logger,
	}
}

// ensure dials libvirtd and resolves the domain handle if needed.
// Callers must hold c.mu.
func (c *LibvirtController) ensure() error {
	if c.connected && c.domValid {
		return nil
	}

	if !c.connected {
		conn := libvirt.NewWithDialer(dialers.NewLocal(dialers.WithSocket(c.socket)))
		if err := conn.Connect(); err != nil {
			return fmt.Errorf("connect libvirt at %s: %w", c.socket, err)
		}
		c.conn = conn
		c.connected = true
		c.logger.Debug("hypervisor.connected", "Connected to libvirt", map[string]interface{}{
			"socket": c.socket,
		})
	}

	dom, err := c.conn.DomainLookupByName(c.domain)
	if err != nil {
		c.drop()
		return fmt.Errorf("lookup domain %q: %w", c.domain, err)
	}
	c.dom = dom
	c.domValid = true
	return nil
}

// drop discards the connection so the next call re-dials.
// Callers must hold c.mu.
func (c *LibvirtController) drop() {
	if c.conn != nil {
		_ = c.conn.Disconnect()
	}
	c.conn = nil
	c.connected = false
	c.domValid = false
}

// fail records an RPC error and forces a reconnect on the next call.
// Callers must hold c.mu.
func (c *LibvirtController) fail(op string, err error) error {
	c.drop()
	return fmt.Errorf("%s %q: %w", op, c.domain, err)
}

func (c *LibvirtController) State() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensure(); err != nil {
		return StateOther, err
	}

	state, _, err := c.conn.DomainGetState(c.dom, 0)
	if err != nil {
		return StateOther, c.fail("get state of", err)
	}
	return simplifyState(state), nil
}

func (c *LibvirtController) Info() (Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensure(); err != nil {
		return Info{State: StateOther}, err
	}

	state, _, memory, vcpus, cpuTime, err := c.conn.DomainGetInfo(c.dom)
	if err != nil {
		return Info{State: StateOther}, c.fail("get info of", err)
	}

	return Info{
		State:        simplifyState(int32(state)),
		VCPUs:        uint(vcpus),
		CPUTimeNanos: cpuTime,
		MemoryKB:     memory,
	}, nil
}

func (c *LibvirtController) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensure(); err != nil {
		return err
	}

	if err := c.conn.DomainCreate(c.dom); err != nil {
		return c.fail("start", err)
	}
	return nil
}

func (c *LibvirtController) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensure(); err != nil {
		return err
	}

	if err := c.conn.DomainShutdown(c.dom); err != nil {
		return c.fail("shutdown", err)
	}
	return nil
}

func (c *LibvirtController) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensure(); err != nil {
		return err
	}

	if err := c.conn.DomainDestroy(c.dom); err != nil {
		return c.fail("destroy", err)
	}
	return nil
}

func (c *LibvirtController) AgentCommand(cmd string, timeoutSeconds int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensure(); err != nil {
		return "", err
	}

	resp, err := c.conn.QEMUDomainAgentCommand(c.dom, cmd, int32(timeoutSeconds), 0)
	if err != nil {
		// Agent errors do not invalidate the libvirt connection; the
		// guest agent going away mid-hibernate is expected.
		c.domValid = false
		return "", fmt.Errorf("agent command on %q: %w", c.domain, err)
	}
	if len(resp) == 0 {
		return "", fmt.Errorf("agent command on %q: empty response", c.domain)
	}
	return resp[0], nil
}

func (c *LibvirtController) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Disconnect()
	c.conn = nil
	c.connected = false
	c.domValid = false
	return err
}
