package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/shehryarbajwa/cloudbrowser/internal/logging"
	"github.com/shehryarbajwa/cloudbrowser/pkg/cloudbrowser"
	"github.com/shehryarbajwa/cloudbrowser/pkg/config"
)

// commandOptions holds the persistent flags shared by all commands
type commandOptions struct {
	ConfigFile string
	Verbose    bool
	JSONOutput bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "cloudbrowser",
		Short:         "Acquire and manage remote browser sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().Bool("json", false, "Output in JSON format")
	root.PersistentFlags().StringP("config", "c", "", "Path to a cloudbrowser.yml config file")

	root.AddCommand(
		newAcquireCommand(),
		newRunCommand(),
		newStatusCommand(),
		newCloseCommand(),
		newBalanceCommand(),
		newRegionsCommand(),
		newUsageCommand(),
	)
	return root
}

func getOptions(cmd *cobra.Command) commandOptions {
	configFile, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	return commandOptions{
		ConfigFile: configFile,
		Verbose:    verbose,
		JSONOutput: jsonOutput,
	}
}

// loadConfig reads configuration honouring --config and --verbose
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	opts := getOptions(cmd)
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// newClient builds a client for commands that talk to the control plane
func newClient(cmd *cobra.Command) (*cloudbrowser.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	client, err := cloudbrowser.New(cfg)
	if err != nil {
		return nil, err
	}
	if getOptions(cmd).Verbose {
		logging.SetLevel(logrus.DebugLevel)
	}
	return client, nil
}
