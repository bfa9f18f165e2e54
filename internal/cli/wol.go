package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"doze/internal/wol"
)

func init() {
	wolSendCmd.Flags().StringVar(&wolBroadcast, "broadcast", "", "Broadcast address to send to (default 255.255.255.255)")
	wolCmd.AddCommand(wolStatusCmd)
	wolCmd.AddCommand(wolArmCmd)
	wolCmd.AddCommand(wolSendCmd)
	rootCmd.AddCommand(wolCmd)
}

var wolBroadcast string

var wolCmd = &cobra.Command{
	Use:   "wol",
	Short: "Wake-on-LAN readiness and wake packets",
	Long: `Inspect and arm the NIC's wake capability, and send magic packets. A
host that suspends without Wake-on-LAN armed can only be woken at the
physical power button, so check this before relying on automatic
suspend.`,
}

var wolStatusCmd = &cobra.Command{
	Use:   "status [interface]",
	Short: "Show the interface's wake capability",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWolStatus,
}

var wolArmCmd = &cobra.Command{
	Use:   "arm [interface]",
	Short: "Enable magic packet wake on the interface",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWolArm,
}

var wolSendCmd = &cobra.Command{
	Use:   "send MAC",
	Short: "Send a magic packet to wake a host",
	Long: `Send a Wake-on-LAN magic packet to the given MAC address. Run this from
another machine to wake a suspended doze host.`,
	Args: cobra.ExactArgs(1),
	RunE: runWolSend,
}

func runWolStatus(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger := newInteractiveLogger()
	detector := wol.NewDetector(logger)

	iface, err := resolveWolInterface(args, cfg.WoL.Interface, detector)
	if err != nil {
		return err
	}

	status := detector.Detect(iface)
	if status.ErrorMessage != "" {
		return errors.New(status.ErrorMessage)
	}

	fmt.Printf("Interface: %s\n", status.Interface)
	fmt.Printf("  MAC:       %s\n", status.MAC)
	fmt.Printf("  Supported: %t (modes: %s)\n", status.Supported, strings.Join(status.Modes, " "))
	fmt.Printf("  Armed:     %t (current mode: %s)\n", status.Enabled, status.CurrentMode)

	if !status.Enabled {
		fmt.Println()
		fmt.Printf("Magic packet wake is OFF. Run `doze wol arm %s` before suspending.\n", iface)
	}
	return nil
}

func runWolArm(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger := newInteractiveLogger()
	detector := wol.NewDetector(logger)

	iface, err := resolveWolInterface(args, cfg.WoL.Interface, detector)
	if err != nil {
		return err
	}

	if err := detector.Arm(iface); err != nil {
		return err
	}

	fmt.Printf("Wake-on-LAN armed on %s (mode g).\n", iface)
	fmt.Println("Note: most NICs reset this on reboot; set wol.arm_on_start to re-arm automatically.")
	return nil
}

func runWolSend(cmd *cobra.Command, args []string) error {
	logger := newInteractiveLogger()
	sender := wol.NewSender(logger)

	mac, err := wol.NormalizeMAC(args[0])
	if err != nil {
		return err
	}

	if err := sender.Send(mac, wolBroadcast); err != nil {
		return err
	}

	fmt.Printf("Magic packet sent to %s.\n", mac)
	return nil
}

// resolveWolInterface picks the interface from the argument, the
// configuration, or auto-detection, in that order.
func resolveWolInterface(args []string, configured string, detector *wol.Detector) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if configured != "" {
		return configured, nil
	}
	return detector.DefaultInterface()
}
