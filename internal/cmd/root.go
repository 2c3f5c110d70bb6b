package cmd

import (
	"context"
	"github.com/hashicorp/go-multierror"
	"github.com/jsiebens/tether/internal/dial"
	"github.com/jsiebens/tether/internal/relay"
	"github.com/jsiebens/tether/internal/splice"
	"github.com/jsiebens/tether/internal/tty"
	"github.com/muesli/coral"
	"github.com/sirupsen/logrus"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"
)

type options struct {
	copy           bool
	raw            bool
	debug          bool
	retryInterval  time.Duration
	connectTimeout time.Duration
}

func rootCommand() *coral.Command {
	command := &coral.Command{
		Use:          "tether <host> [port]",
		Short:        "Wait until a TCP endpoint is reachable, then relay standard input and output to it.",
		Args:         coral.ArbitraryArgs,
		SilenceUsage: true,
	}

	defaults := dial.DefaultOptions()
	var opts options

	command.Flags().BoolVar(&opts.copy, "copy", false, "Copy data through a user-space buffer instead of splicing it in the kernel.")
	command.Flags().BoolVar(&opts.raw, "raw", false, "Put the local terminal in raw mode while relaying.")
	command.Flags().BoolVar(&opts.debug, "debug", false, "Print relay events to the controlling terminal.")
	command.Flags().DurationVar(&opts.retryInterval, "retry-interval", defaults.RetryInterval, "Delay between resolve or connect attempts.")
	command.Flags().DurationVar(&opts.connectTimeout, "connect-timeout", defaults.ConnectTimeout, "Timeout of a single connect attempt.")

	command.RunE = func(cmd *coral.Command, args []string) error {
		target, err := parseTarget(args)
		if err != nil {
			return err
		}
		return run(cmd.Context(), target, opts)
	}

	return command
}

func run(ctx context.Context, target *Target, opts options) (err error) {
	var teardown []func() error
	defer func() {
		var result *multierror.Error
		for i := len(teardown) - 1; i >= 0; i-- {
			if cerr := teardown[i](); cerr != nil {
				result = multierror.Append(result, cerr)
			}
		}
		if err == nil {
			err = result.ErrorOrNil()
		}
	}()

	terminal, err := tty.Open()
	if err != nil {
		return err
	}
	teardown = append(teardown, terminal.Close)

	configureLogging(opts.debug, terminal.Writer())
	logrus.WithField("target", dial.JoinHostPort(target.Host, target.Port)).Debug("Connecting")

	connector := dial.NewConnector(terminal, dial.Options{
		RetryInterval:  opts.retryInterval,
		ConnectTimeout: opts.connectTimeout,
	})

	// Interrupts only need catching while waiting; once connected the
	// default signal behaviour applies again.
	connectCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	conn, err := connector.Connect(connectCtx, target.Host, target.Port)
	stop()
	if err != nil {
		_ = terminal.Clear()
		return err
	}
	teardown = append(teardown, conn.Close)

	connFile, err := relay.ConnFile(conn)
	if err != nil {
		return err
	}
	teardown = append(teardown, connFile.Close)

	transfer, err := splice.New(opts.copy)
	if err != nil {
		return err
	}
	teardown = append(teardown, transfer.Close)

	input, output := int(os.Stdin.Fd()), int(os.Stdout.Fd())

	if opts.raw {
		rawMode, err := tty.MakeRaw(input)
		if err != nil {
			return err
		}
		teardown = append(teardown, rawMode.Restore)
	}

	return relay.New(transfer, input, output, int(connFile.Fd()), relay.DefaultOptions()).Run()
}

func configureLogging(debug bool, w io.Writer) {
	if !debug {
		logrus.SetOutput(io.Discard)
		return
	}
	logrus.SetOutput(w)
	logrus.SetLevel(logrus.TraceLevel)
}
