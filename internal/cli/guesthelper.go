package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"doze/internal/guesthelper"
)

func init() {
	guestHelperCmd.AddCommand(guestHelperInstallCmd)
	guestHelperCmd.AddCommand(guestHelperUninstallCmd)
	rootCmd.AddCommand(guestHelperCmd)
}

var guestHelperCmd = &cobra.Command{
	Use:   "guest-helper",
	Short: "Manage the in-guest input-idle probe",
	Long: `Install or remove the small probe script inside the guest that the
guest-input signal calls. The script is pushed over the configured guest
channel; no shared filesystem or installer inside the guest is needed.`,
}

var guestHelperInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Push the probe script into the guest",
	Args:  cobra.NoArgs,
	RunE:  runGuestHelperInstall,
}

var guestHelperUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the probe script from the guest",
	Args:  cobra.NoArgs,
	RunE:  runGuestHelperUninstall,
}

func runGuestHelperInstall(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger := newInteractiveLogger()

	ctrl, ch, err := connectWorkload(cfg, logger)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	installer := guesthelper.NewInstaller(cfg.Guest, ch, logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Guest.ExecTimeoutSeconds)*3*time.Second)
	defer cancel()

	if err := installer.Install(ctx); err != nil {
		return err
	}

	fmt.Printf("Installed %s (%s flavor) into guest %q.\n",
		cfg.Guest.Helper.Path, cfg.Guest.Helper.OS, cfg.Workload.Name)
	return nil
}

func runGuestHelperUninstall(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger := newInteractiveLogger()

	ctrl, ch, err := connectWorkload(cfg, logger)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	installer := guesthelper.NewInstaller(cfg.Guest, ch, logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Guest.ExecTimeoutSeconds)*time.Second)
	defer cancel()

	if err := installer.Uninstall(ctx); err != nil {
		return err
	}

	fmt.Printf("Removed %s from guest %q.\n", cfg.Guest.Helper.Path, cfg.Workload.Name)
	return nil
}
