package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vietdv277/gpuws/internal/aws"
	"github.com/vietdv277/gpuws/internal/config"
	"github.com/vietdv277/gpuws/internal/logger"
)

// ErrInvalidAction is returned for an action keyword a command does not know
var ErrInvalidAction = errors.New("invalid action")

// newClient builds the AWS client used by every resource command. Tests
// replace it with one backed by an in-memory EC2.
var newClient = func(ctx context.Context, ws config.Workspace) (*aws.Client, error) {
	return aws.NewClient(ctx,
		aws.WithProfile(ws.Profile),
		aws.WithRegion(ws.Region),
		aws.WithWorkspace(ws),
	)
}

// globals holds the persistent flags and the viper instance they feed
type globals struct {
	v          *viper.Viper
	configFile string
	logLevel   string
}

// NewRootCmd builds the gpuws command tree
func NewRootCmd() *cobra.Command {
	g := &globals{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "gpuws",
		Short: "GPU workspace - provision a single-instance GPU workspace on AWS",
		Long: `gpuws provisions and tears down a GPU workspace on AWS EC2: a VPC with
its security group and internet gateway, a public subnet with its route
table, one GPU instance and the SSH key pair used to reach it.

Resources are found by their Name tag, so every command can be re-run
from any machine with the same profile, region and names.

Typical session:
  gpuws key-pair create            # Register a key pair, save workspace.pem
  gpuws vpc create                 # VPC, security group, internet gateway
  gpuws subnet create              # Subnet and route table
  gpuws instance run               # Launch the GPU instance
  gpuws instance describe          # State and ssh command
  gpuws instance stop              # Stop paying for compute

Teardown runs in reverse:
  gpuws instance terminate
  gpuws subnet delete
  gpuws vpc delete
  gpuws key-pair delete`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := g.logLevel
			if level == "" {
				level = os.Getenv(config.EnvPrefix + "_LOG_LEVEL")
			}
			return logger.Configure(level)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("profile", "p", "", "AWS profile to use")
	flags.StringP("region", "r", config.DefaultRegion, "AWS region to use")
	flags.StringVar(&g.configFile, "config", "", "config file (default ~/.gpuws/config.yaml)")
	flags.StringVar(&g.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	_ = g.v.BindPFlag("profile", flags.Lookup("profile"))
	_ = g.v.BindPFlag("region", flags.Lookup("region"))

	rootCmd.AddCommand(
		newVPCCmd(g),
		newSubnetCmd(g),
		newInstanceCmd(g),
		newKeyPairCmd(g),
		newStatusCmd(g),
		newProfileCmd(g),
		newConfigCmd(g),
		newVersionCmd(),
	)

	return rootCmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// workspace binds the command's own flags to their config keys and loads
// the workspace.
func (g *globals) workspace(cmd *cobra.Command, bindings map[string]string) (config.Workspace, error) {
	for flag, key := range bindings {
		if err := g.v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return config.Workspace{}, fmt.Errorf("failed to bind --%s: %w", flag, err)
		}
	}
	ws, err := config.Load(g.v, g.configFile)
	if err != nil {
		return config.Workspace{}, err
	}
	logger.Debugf("using workspace %q in region %s", ws.VPCName, ws.Region)
	return ws, nil
}

// client loads the workspace and connects to EC2
func (g *globals) client(ctx context.Context, cmd *cobra.Command, bindings map[string]string) (*aws.Client, config.Workspace, error) {
	ws, err := g.workspace(cmd, bindings)
	if err != nil {
		return nil, config.Workspace{}, err
	}

	client, err := newClient(ctx, ws)
	if err != nil {
		return nil, config.Workspace{}, fmt.Errorf("failed to create AWS client: %w", err)
	}
	return client, ws, nil
}

// action is one keyword a resource command accepts
type action struct {
	name string
	run  func(ctx context.Context, cmd *cobra.Command, c *aws.Client, ws config.Workspace) error
}

// lookupAction matches name case-insensitively
func lookupAction(actions []action, name string) (action, error) {
	names := make([]string, 0, len(actions))
	for _, a := range actions {
		if strings.EqualFold(a.name, name) {
			return a, nil
		}
		names = append(names, a.name)
	}
	return action{}, fmt.Errorf("%w '%s': must be one of %s", ErrInvalidAction, name, strings.Join(names, ", "))
}

func actionNames(actions []action) []string {
	names := make([]string, 0, len(actions))
	for _, a := range actions {
		names = append(names, a.name)
	}
	return names
}

// newResourceCmd builds a "<resource> <action>" command. The action is
// checked before any config is loaded or AWS is contacted.
func newResourceCmd(g *globals, use, short, long string, actions []action, bindings map[string]string) *cobra.Command {
	return &cobra.Command{
		Use:       use + " <action>",
		Short:     short,
		Long:      long,
		Args:      cobra.ExactArgs(1),
		ValidArgs: actionNames(actions),
		RunE: func(cmd *cobra.Command, args []string) error {
			act, err := lookupAction(actions, args[0])
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			client, ws, err := g.client(ctx, cmd, bindings)
			if err != nil {
				return err
			}
			return act.run(ctx, cmd, client, ws)
		},
	}
}

// configPath is the file "profile set" and "config init" write to
func (g *globals) configPath() string {
	if g.configFile != "" {
		return g.configFile
	}
	return config.GetConfigPath()
}
