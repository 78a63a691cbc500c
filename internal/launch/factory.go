package launch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/telemyapp/instance-launcher/internal/config"
)

// FromConfig builds the launcher selected by cfg.Provider. Provider clients are created
// once here and shared by all requests.
func FromConfig(ctx context.Context, cfg config.Config, log *slog.Logger) (Launcher, error) {
	opts := Options{InstanceType: cfg.InstanceType, KeyName: cfg.KeyPairName}
	switch cfg.Provider {
	case config.ProviderAWS:
		return NewAWSLauncher(ctx, cfg.AWSRegion, opts, log)
	case config.ProviderHCloud:
		return NewHCloudLauncher(HCloudOptions{Token: cfg.HCloudToken, Location: cfg.HCloudLocation, Options: opts}, log)
	case config.ProviderScaleway:
		return NewScalewayLauncher(cfg.ScalewayZone, opts, log)
	case config.ProviderFake:
		return NewFakeLauncher(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
