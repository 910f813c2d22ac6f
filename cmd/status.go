package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietdv277/gpuws/internal/aws"
	"github.com/vietdv277/gpuws/internal/ui"
)

// callerIdentity is swapped out in tests
var callerIdentity = aws.GetCallerIdentity

func newStatusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active profile, region and authentication status",
		Long: `Display the AWS profile and region gpuws will use and verify that the
credentials behind them are valid.

Examples:
  gpuws status
  gpuws status --profile lab`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := g.workspace(cmd, nil); err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			out := cmd.OutOrStdout()
			profile := g.activeProfile()
			region := g.v.GetString("region")

			fmt.Fprintln(out, "Current Status")
			fmt.Fprintln(out, ui.Rule(33))
			fmt.Fprintln(out)

			if profile == "" {
				fmt.Fprintf(out, "Profile:  %s\n", ui.MutedStyle.Render("(SDK default)"))
			} else {
				fmt.Fprintf(out, "Profile:  %s\n", ui.AWSStyle.Render(profile))
			}
			fmt.Fprintf(out, "Region:   %s\n", region)
			fmt.Fprintln(out)

			identity, err := callerIdentity(ctx, g.v.GetString("profile"), region)
			printAuth(out, identity, err, profile)
			return nil
		},
	}
}

func printAuth(out io.Writer, identity *aws.CallerIdentity, err error, profile string) {
	fmt.Fprint(out, "Auth:     ")
	if err != nil {
		fmt.Fprintln(out, ui.FailedStyle.Render("✗ Not authenticated"))
		fmt.Fprintf(out, "          %s\n", ui.MutedStyle.Render(err.Error()))
		fmt.Fprintln(out)
		fmt.Fprintln(out, "To authenticate:")
		if profile == "" {
			fmt.Fprintln(out, "  aws configure")
		} else {
			fmt.Fprintf(out, "  aws sso login --profile %s\n", profile)
		}
		return
	}

	fmt.Fprintln(out, ui.RunningStyle.Render("✓ Authenticated"))
	fmt.Fprintf(out, "Account:  %s\n", identity.Account)
	fmt.Fprintf(out, "User:     %s\n", identity.UserID)
	if identity.Arn != "" {
		fmt.Fprintf(out, "ARN:      %s\n", ui.MutedStyle.Render(identity.Arn))
	}
}

// activeProfile returns the profile the SDK will end up using.
// Priority: --profile flag > GPUWS_PROFILE > config file > AWS_PROFILE.
func (g *globals) activeProfile() string {
	if p := g.v.GetString("profile"); p != "" {
		return p
	}
	return os.Getenv("AWS_PROFILE")
}
