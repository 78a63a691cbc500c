package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/telemyapp/instance-launcher/internal/config"
	"github.com/telemyapp/instance-launcher/internal/launch"
	"github.com/telemyapp/instance-launcher/internal/logger"
	"github.com/telemyapp/instance-launcher/internal/model"
)

type launcherFactory func(context.Context, config.Config) (launch.Launcher, error)

func main() {
	_ = godotenv.Load()

	factory := func(ctx context.Context, cfg config.Config) (launch.Launcher, error) {
		return launch.FromConfig(ctx, cfg, logger.New(cfg.LogVerbose))
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newLaunchCmd(factory).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLaunchCmd runs a single create-instance call outside the HTTP server. The body is
// read from --payload ("-" for stdin) or assembled from --ami-id and --instance-name.
func newLaunchCmd(factory launcherFactory) *cobra.Command {
	v := config.NewViper()
	var payload, amiID, instanceName string
	cmd := &cobra.Command{
		Use:           "launcher",
		Short:         "Launch one cloud instance and print its identifier",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			body, err := requestBody(cmd.InOrStdin(), payload, amiID, instanceName, cmd.Flags().Changed("instance-name"))
			if err != nil {
				return err
			}
			in, err := model.DecodeInstanceRequest(body, cfg.RequireInstanceName)
			if err != nil {
				return err
			}
			l, err := factory(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("init %s launcher: %w", cfg.Provider, err)
			}

			ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), cfg.ProviderTimeout)
			defer cancel()
			res, err := l.Launch(ctx, launch.RequestFor(in, cfg.TagEnabled))
			if err != nil {
				return fmt.Errorf("instance launch failed (%s): %w", launch.KindOf(err), err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), res.InstanceID)
			return err
		},
	}
	if err := config.BindFlags(cmd.Flags(), v); err != nil {
		panic(err)
	}
	cmd.Flags().StringVar(&payload, "payload", "", `JSON body, or "-" to read it from stdin`)
	cmd.Flags().StringVar(&amiID, "ami-id", "", "image to launch when --payload is not given")
	cmd.Flags().StringVar(&instanceName, "instance-name", "", "Name tag when --payload is not given")
	return cmd
}

func requestBody(stdin io.Reader, payload, amiID, instanceName string, nameSet bool) (io.Reader, error) {
	switch {
	case payload == "-":
		return stdin, nil
	case payload != "":
		return strings.NewReader(payload), nil
	case amiID != "":
		body := map[string]string{"ami_id": amiID}
		if nameSet {
			body["instance_name"] = instanceName
		}
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		return strings.NewReader(string(raw)), nil
	default:
		return nil, fmt.Errorf("one of --payload or --ami-id is required")
	}
}
