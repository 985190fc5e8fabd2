package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/droidpilot/droidpilot/internal/config"
	"github.com/droidpilot/droidpilot/internal/conversation"
	"github.com/droidpilot/droidpilot/internal/device"
	"github.com/droidpilot/droidpilot/internal/executor"
	"github.com/droidpilot/droidpilot/internal/gateway"
	"github.com/droidpilot/droidpilot/internal/log"
	"github.com/droidpilot/droidpilot/internal/message"
	"github.com/droidpilot/droidpilot/internal/perception"
	"github.com/droidpilot/droidpilot/internal/session"
)

var version = "0.1.0"

func init() {
	// Load .env file if it exists (silent fail if not found)
	_ = godotenv.Load()

	// Initialize logging (enabled via DROID_DEBUG=1)
	_ = log.Init()
}

func main() {
	defer log.Sync()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		serialFlag string
		resumeFlag string
		titleFlag  string
	)

	cmd := &cobra.Command{
		Use:   "droidpilot \"task\"",
		Short: "Droidpilot - drive an Android device with a language model",
		Long: `Droidpilot runs a task against a connected Android device: it
captures the screen, asks the model for the next action, performs it,
and repeats until the task is done.

  droidpilot "open settings and enable dark mode"
  droidpilot --resume <id> "continue where we left off"`,
		Version: version,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTask(cmd, args[0], serialFlag, resumeFlag, titleFlag)
		},
	}

	cmd.Flags().StringVarP(&serialFlag, "device", "d", "", "device serial (defaults to the configured device)")
	cmd.Flags().StringVarP(&resumeFlag, "resume", "r", "", "resume an existing conversation by id")
	cmd.Flags().StringVarP(&titleFlag, "title", "t", "", "title for the new conversation")

	cmd.AddCommand(newConvosCmd())
	cmd.AddCommand(newDoctorCmd())
	return cmd
}

func loadSettings(serialFlag string) (*config.Settings, *config.Loader, error) {
	loader := config.NewLoader()
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	if serialFlag != "" {
		cfg.DeviceSerial = serialFlag
	}
	return cfg, loader, nil
}

func runTask(cmd *cobra.Command, task, serialFlag, resumeID, title string) error {
	cfg, loader, err := loadSettings(serialFlag)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := conversation.NewStore()
	if err != nil {
		return err
	}

	var conv *conversation.Conversation
	if resumeID != "" {
		if conv = store.Get(resumeID); conv == nil {
			return fmt.Errorf("conversation %s not found", resumeID)
		}
		if err := store.SwitchActive(resumeID); err != nil {
			return err
		}
	} else {
		if conv, err = store.CreateWithTitle(title); err != nil {
			return err
		}
	}

	if err := store.AppendMessages(conv.ID, message.UserMessage(task)); err != nil {
		return err
	}

	dev := device.NewADB(cfg.DeviceSerial)
	profiles, err := device.LoadProfiles(loader.DevicesPath())
	if err != nil {
		return err
	}
	profile := device.ProfileFor(profiles, dev.Serial())

	runner := session.NewRunner(
		dev,
		perception.New(dev),
		executor.New(dev, profile, cfg.InputMode),
		gateway.New(cfg),
		store,
		cfg,
	)
	updates := runner.Subscribe()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render("droidpilot")+" "+dimStyle.Render(conv.Title))

	if err := runner.Start(conv.ID); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-sigCh:
			fmt.Fprintln(out, warnStyle.Render("interrupted, stopping"))
			runner.Stop()
		case st := <-updates:
			renderStatus(out, st)
			if st.Phase == session.PhaseStopped {
				runner.Ack()
				return nil
			}
		}
	}
}
