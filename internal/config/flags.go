package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BindFlags registers one flag per config key on fs and binds it onto v. Flags that are
// not set on the command line fall through to env, config file and defaults.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	fs.String("config", "", "optional config file (yaml, json or toml)")
	fs.String("listen-addr", "", "HTTP listen address")
	fs.String("provider", "", "launch backend: aws|hcloud|scaleway|fake")
	fs.String("instance-type", "", "instance type or server type for every launch")
	fs.String("key-pair-name", "", "SSH key pair attached to every launch")
	fs.Bool("tag-enabled", true, "send the Name tag when instance_name is given")
	fs.Bool("require-instance-name", false, "reject requests without instance_name")
	fs.String("response-mode", "", "success body: instance_id|confirmation")
	fs.String("allowed-origins", "", "comma separated CORS origins, or *")
	fs.String("allowed-headers", "", "comma separated CORS request headers")
	fs.String("allowed-methods", "", "comma separated CORS methods (POST only)")
	fs.String("provider-timeout", "", "provider call timeout (duration or seconds)")
	fs.Int64("max-body-bytes", 0, "maximum request body size")
	fs.String("aws-region", "", "AWS region; empty uses the SDK chain then us-east-1")
	fs.String("hcloud-token", "", "Hetzner Cloud API token")
	fs.String("hcloud-location", "", "Hetzner Cloud location")
	fs.String("scaleway-zone", "", "Scaleway zone")
	fs.Bool("log-verbose", false, "enable debug logging")

	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
			bindErr = fmt.Errorf("bind flag %s: %w", f.Name, err)
		}
	})
	return bindErr
}
