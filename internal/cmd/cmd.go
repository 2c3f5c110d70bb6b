package cmd

import (
	"context"
	"fmt"
	"strconv"
)

const DefaultPort uint16 = 22

func Execute() error {
	return ExecuteContext(context.Background())
}

func ExecuteContext(ctx context.Context) error {
	rootCmd := rootCommand()
	rootCmd.AddCommand(versionCommand())
	return rootCmd.ExecuteContext(ctx)
}

// Target is the endpoint given on the command line.
type Target struct {
	Host string
	Port uint16
}

// ArgumentError is a problem with the positional arguments, reported before
// any network activity.
type ArgumentError struct {
	Arg    string
	Reason string
}

func (e *ArgumentError) Error() string {
	if e.Arg == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Arg, e.Reason)
}

func parseTarget(args []string) (*Target, error) {
	if len(args) == 0 || args[0] == "" {
		return nil, &ArgumentError{Reason: "missing host argument"}
	}
	if len(args) > 2 {
		return nil, &ArgumentError{Reason: fmt.Sprintf("expected <host> [port], got %d arguments", len(args))}
	}

	target := &Target{Host: args[0], Port: DefaultPort}
	if len(args) == 2 {
		port, err := strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			return nil, &ArgumentError{Arg: "port", Reason: fmt.Sprintf("%q is not a valid port", args[1])}
		}
		target.Port = uint16(port)
	}
	return target, nil
}
