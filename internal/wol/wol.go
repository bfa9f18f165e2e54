// Package wol keeps a sleeping doze host reachable. A host that
// suspends on idle is only useful if something can wake it again, so
// the agent checks Wake-on-LAN readiness at startup and can arm the
// NIC; the Sender builds and transmits magic packets for waking peer
// hosts.
package wol

import (
	"bytes"
	"fmt"
	"net"
	"regexp"
	"strings"

	"doze/internal/logging"
)

var macPattern = regexp.MustCompile("^[0-9A-Fa-f]{12}$")

// NormalizeMAC canonicalizes a MAC address to AA:BB:CC:DD:EE:FF.
// Colon- and dash-separated inputs are accepted.
func NormalizeMAC(mac string) (string, error) {
	cleaned := strings.ReplaceAll(mac, ":", "")
	cleaned = strings.ReplaceAll(cleaned, "-", "")
	cleaned = strings.ToUpper(cleaned)

	if len(cleaned) != 12 {
		return "", fmt.Errorf("invalid MAC address %q: want 12 hex digits, got %d", mac, len(cleaned))
	}
	if !macPattern.MatchString(cleaned) {
		return "", fmt.Errorf("invalid MAC address %q: non-hex characters", mac)
	}

	parts := make([]string, 0, 6)
	for i := 0; i < 12; i += 2 {
		parts = append(parts, cleaned[i:i+2])
	}
	return strings.Join(parts, ":"), nil
}

// ParseMAC parses a MAC address in any accepted format.
func ParseMAC(mac string) (net.HardwareAddr, error) {
	normalized, err := NormalizeMAC(mac)
	if err != nil {
		return nil, err
	}
	return net.ParseMAC(normalized)
}

// BuildMagicPacket constructs the 102-byte Wake-on-LAN payload: six
// 0xFF bytes followed by the target MAC repeated sixteen times.
func BuildMagicPacket(mac net.HardwareAddr) ([]byte, error) {
	if len(mac) != 6 {
		return nil, fmt.Errorf("invalid MAC address length: want 6 bytes, got %d", len(mac))
	}

	var buf bytes.Buffer
	buf.Write(bytes.Repeat([]byte{0xFF}, 6))
	for i := 0; i < 16; i++ {
		buf.Write(mac)
	}
	return buf.Bytes(), nil
}

// ValidateMagicPacket checks that a payload is a well-formed magic
// packet.
func ValidateMagicPacket(packet []byte) error {
	if len(packet) != 102 {
		return fmt.Errorf("invalid packet length: want 102 bytes, got %d", len(packet))
	}
	for i := 0; i < 6; i++ {
		if packet[i] != 0xFF {
			return fmt.Errorf("invalid packet header: byte %d is 0x%02X, want 0xFF", i, packet[i])
		}
	}

	mac := packet[6:12]
	for i := 1; i < 16; i++ {
		start := 6 + i*6
		if !bytes.Equal(packet[start:start+6], mac) {
			return fmt.Errorf("MAC repetition %d does not match", i)
		}
	}
	return nil
}

// BroadcastAddr computes the IPv4 broadcast address of an interface.
func BroadcastAddr(iface string) (string, error) {
	netIface, err := net.InterfaceByName(iface)
	if err != nil {
		return "", fmt.Errorf("interface %s: %w", iface, err)
	}
	addrs, err := netIface.Addrs()
	if err != nil {
		return "", fmt.Errorf("addresses of %s: %w", iface, err)
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipNet.IP.To4()
		if ip4 == nil {
			continue
		}
		broadcast := make(net.IP, 4)
		for i := 0; i < 4; i++ {
			broadcast[i] = ip4[i] | ^ipNet.Mask[i]
		}
		return broadcast.String(), nil
	}
	return "", fmt.Errorf("no IPv4 address on interface %s", iface)
}

// Sender transmits Wake-on-LAN magic packets.
type Sender struct {
	logger *logging.Logger
}

// NewSender creates a magic packet sender.
func NewSender(logger *logging.Logger) *Sender {
	return &Sender{logger: logger}
}

// Send wakes the host owning targetMAC. The packet goes to both
// conventional WoL ports, since firmware differs on which one it
// listens to; delivery on either counts as success.
func (s *Sender) Send(targetMAC, broadcastAddr string) error {
	hwAddr, err := ParseMAC(targetMAC)
	if err != nil {
		return err
	}
	packet, err := BuildMagicPacket(hwAddr)
	if err != nil {
		return err
	}
	if broadcastAddr == "" {
		broadcastAddr = "255.255.255.255"
	}

	var lastErr error
	sent := false
	for _, port := range []int{7, 9} {
		addr := fmt.Sprintf("%s:%d", broadcastAddr, port)
		if err := s.sendUDP(addr, packet); err != nil {
			s.logger.Warn("wol.send.port_failed", "Could not send magic packet", map[string]interface{}{
				"port":      port,
				"broadcast": broadcastAddr,
				"error":     err.Error(),
			})
			lastErr = err
			continue
		}
		sent = true
		s.logger.Info("wol.send.issued", "Magic packet sent", map[string]interface{}{
			"mac":       targetMAC,
			"broadcast": broadcastAddr,
			"port":      port,
		})
	}

	if !sent {
		return fmt.Errorf("send magic packet: %w", lastErr)
	}
	return nil
}

func (s *Sender) sendUDP(addr string, packet []byte) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	n, err := conn.Write(packet)
	if err != nil {
		return fmt.Errorf("write packet: %w", err)
	}
	if n != len(packet) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(packet))
	}
	return nil
}
