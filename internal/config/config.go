package config

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "LAUNCHER"

type ResponseMode string

const (
	ResponseInstanceID   ResponseMode = "instance_id"
	ResponseConfirmation ResponseMode = "confirmation"
)

const (
	ProviderAWS      = "aws"
	ProviderHCloud   = "hcloud"
	ProviderScaleway = "scaleway"
	ProviderFake     = "fake"
)

// Headers every deployment must allow for browser callers.
var requiredHeaders = []string{"User-Agent", "Content-Type"}

type Config struct {
	ListenAddr          string
	Provider            string
	InstanceType        string
	KeyPairName         string
	TagEnabled          bool
	RequireInstanceName bool
	ResponseMode        ResponseMode
	AllowedOrigins      []string
	AllowedHeaders      []string
	AllowedMethods      []string
	ProviderTimeout     time.Duration
	MaxBodyBytes        int64
	AWSRegion           string
	HCloudToken         string
	HCloudLocation      string
	ScalewayZone        string
	LogVerbose          bool
}

// NewViper returns a viper instance with defaults and LAUNCHER_* environment binding.
// Callers may bind cobra flags onto it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("provider", ProviderAWS)
	v.SetDefault("instance_type", "t4g.large")
	v.SetDefault("key_pair_name", "")
	v.SetDefault("tag_enabled", true)
	v.SetDefault("require_instance_name", false)
	v.SetDefault("response_mode", string(ResponseInstanceID))
	v.SetDefault("allowed_origins", "*")
	v.SetDefault("allowed_headers", strings.Join(requiredHeaders, ","))
	v.SetDefault("allowed_methods", http.MethodPost)
	v.SetDefault("provider_timeout", "30s")
	v.SetDefault("max_body_bytes", 64<<10)
	v.SetDefault("aws_region", "")
	v.SetDefault("hcloud_location", "")
	v.SetDefault("scaleway_zone", "")
	v.SetDefault("log_verbose", false)
	v.SetDefault("config", "")

	_ = v.BindEnv("hcloud_token", EnvPrefix+"_HCLOUD_TOKEN", "HCLOUD_TOKEN")
	return v
}

func LoadFromEnv() (Config, error) {
	return Load(NewViper())
}

func Load(v *viper.Viper) (Config, error) {
	if path := strings.TrimSpace(v.GetString("config")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	timeout, err := parseDuration(v.GetString("provider_timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("provider_timeout: %w", err)
	}

	cfg := Config{
		ListenAddr:          strings.TrimSpace(v.GetString("listen_addr")),
		Provider:            strings.ToLower(strings.TrimSpace(v.GetString("provider"))),
		InstanceType:        strings.TrimSpace(v.GetString("instance_type")),
		KeyPairName:         strings.TrimSpace(v.GetString("key_pair_name")),
		TagEnabled:          v.GetBool("tag_enabled"),
		RequireInstanceName: v.GetBool("require_instance_name"),
		ResponseMode:        ResponseMode(strings.ToLower(strings.TrimSpace(v.GetString("response_mode")))),
		AllowedOrigins:      stringList(v, "allowed_origins"),
		AllowedHeaders:      withRequiredHeaders(stringList(v, "allowed_headers")),
		AllowedMethods:      stringList(v, "allowed_methods"),
		ProviderTimeout:     timeout,
		MaxBodyBytes:        v.GetInt64("max_body_bytes"),
		AWSRegion:           strings.TrimSpace(v.GetString("aws_region")),
		HCloudToken:         strings.TrimSpace(v.GetString("hcloud_token")),
		HCloudLocation:      strings.TrimSpace(v.GetString("hcloud_location")),
		ScalewayZone:        strings.TrimSpace(v.GetString("scaleway_zone")),
		LogVerbose:          v.GetBool("log_verbose"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	switch c.Provider {
	case ProviderAWS, ProviderHCloud, ProviderScaleway, ProviderFake:
	default:
		return fmt.Errorf("provider must be one of aws|hcloud|scaleway|fake")
	}
	if c.InstanceType == "" {
		return fmt.Errorf("instance_type is required")
	}
	if c.ResponseMode != ResponseInstanceID && c.ResponseMode != ResponseConfirmation {
		return fmt.Errorf("response_mode must be one of instance_id|confirmation")
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("provider_timeout must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive")
	}
	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("allowed_origins must list origins or be *")
	}
	if len(c.AllowedMethods) == 0 {
		return fmt.Errorf("allowed_methods must contain POST")
	}
	for _, m := range c.AllowedMethods {
		if !strings.EqualFold(m, http.MethodPost) {
			return fmt.Errorf("allowed_methods supports only POST, got %q", m)
		}
	}
	if c.Provider == ProviderHCloud && c.HCloudToken == "" {
		return fmt.Errorf("HCLOUD_TOKEN is required for hcloud provider")
	}
	return nil
}

// AllowAnyOrigin reports whether the CORS allow-list is the wildcard.
func (c Config) AllowAnyOrigin() bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

// stringList accepts either a comma separated string (env, flags) or a list (config file).
func stringList(v *viper.Viper, key string) []string {
	if raw, ok := v.Get(key).(string); ok {
		return splitCSV(raw)
	}
	out := make([]string, 0)
	for _, s := range v.GetStringSlice(key) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func withRequiredHeaders(headers []string) []string {
	out := append([]string(nil), headers...)
	for _, req := range requiredHeaders {
		found := false
		for _, h := range out {
			if strings.EqualFold(h, req) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, req)
		}
	}
	return out
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parseDuration treats a bare integer as seconds.
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(raw)
}
