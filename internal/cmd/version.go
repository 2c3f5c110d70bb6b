package cmd

import (
	"fmt"
	"github.com/jsiebens/tether/internal/version"
	"github.com/muesli/coral"
)

func versionCommand() *coral.Command {
	var command = &coral.Command{
		Use:          "version",
		Short:        "Display version information",
		Args:         coral.NoArgs,
		SilenceUsage: true,
	}

	command.Run = func(cmd *coral.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Get())
	}

	return command
}
