// Command displayswitchd is the CLI and tray front end for the
// settings-transaction engine: apply, revert, reset-persistence,
// enumerate, and an optional system tray icon for interactive use.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"displayswitchd/internal/audio"
	"displayswitchd/internal/config"
	"displayswitchd/internal/device"
	"displayswitchd/internal/persistence"
	"displayswitchd/internal/settings"
	"displayswitchd/internal/trayui"
	"displayswitchd/internal/types"
)

var (
	deviceID    string
	devicePrep  string
	width       uint32
	height      uint32
	refreshRate float64
	hdrFlag     string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "displayswitchd",
		Short: "Windows display configuration switcher",
	}
	root.AddCommand(newApplyCmd(), newRevertCmd(), newResetCmd(), newEnumerateCmd(), newTrayCmd())
	return root
}

func buildManager() (*settings.Manager, *zap.SugaredLogger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	if _, err := config.EnsureSettingsDirectory(); err != nil {
		return nil, nil, fmt.Errorf("failed to create settings directory: %w", err)
	}

	store := persistence.NewFileSettingsPersistence(cfg.SettingsPath)
	state, err := persistence.New(store, log, false)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load persistent state: %w", err)
	}

	driver := device.NewWinDriver(log)
	return settings.New(driver, state, audio.Noop{}, cfg.Workarounds(), log), log, nil
}

func newLogger(level string) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.Sugar(), nil
}

func newApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a single-display configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, _, err := buildManager()
			if err != nil {
				return err
			}

			request := types.SingleDisplayConfiguration{
				DeviceId:   types.DeviceId(deviceID),
				DevicePrep: types.DevicePrep(devicePrep),
			}
			if width != 0 && height != 0 {
				request.Resolution = &types.Resolution{Width: width, Height: height}
			}
			if refreshRate != 0 {
				rr := types.RefreshRateRequest(types.RationalFromFloat(refreshRate))
				request.RefreshRate = &rr
			}
			switch hdrFlag {
			case "on":
				state := types.HdrStateEnabled
				request.HdrState = &state
			case "off":
				state := types.HdrStateDisabled
				request.HdrState = &state
			}

			result := manager.Apply(request)
			fmt.Println(result.String())
			if result != types.ApplyOk {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&deviceID, "device-id", "", "device id to configure (default: current primary)")
	cmd.Flags().StringVar(&devicePrep, "device-prep", string(types.DevicePrepEnsureActive), "VerifyOnly|EnsureActive|EnsurePrimary|EnsureOnlyDisplay")
	cmd.Flags().Uint32Var(&width, "width", 0, "requested resolution width")
	cmd.Flags().Uint32Var(&height, "height", 0, "requested resolution height")
	cmd.Flags().Float64Var(&refreshRate, "refresh-rate", 0, "requested refresh rate in Hz")
	cmd.Flags().StringVar(&hdrFlag, "hdr", "", "on|off")
	return cmd
}

func newRevertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revert",
		Short: "Restore the configuration from before the first apply",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, _, err := buildManager()
			if err != nil {
				return err
			}
			result := manager.Revert()
			fmt.Println(result.String())
			if result != types.RevertOk {
				os.Exit(1)
			}
			return nil
		},
	}
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-persistence",
		Short: "Force-clear saved state, reverting what can be reverted",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, _, err := buildManager()
			if err != nil {
				return err
			}
			result := manager.ResetPersistence()
			fmt.Println(result.String())
			return nil
		},
	}
}

func newEnumerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enumerate",
		Short: "List known displays as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, _, err := buildManager()
			if err != nil {
				return err
			}
			devices, err := manager.EnumerateDevices()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(devices)
		},
	}
}

func newTrayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tray",
		Short: "Run the system tray icon",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, log, err := buildManager()
			if err != nil {
				return err
			}
			trayui.New(manager, log).Run()
			return nil
		},
	}
}
