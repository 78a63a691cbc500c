package launch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

const providerHCloud = "hcloud"

type HCloudOptions struct {
	Token    string
	Location string
	// Endpoint overrides the API URL; empty uses the public endpoint.
	Endpoint string
	Options
}

type HCloudLauncher struct {
	client     *hcloud.Client
	location   string
	serverType string
	sshKey     string
	log        *slog.Logger
}

func NewHCloudLauncher(opts HCloudOptions, log *slog.Logger) (*HCloudLauncher, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, fmt.Errorf("missing required hcloud token")
	}
	clientOpts := []hcloud.ClientOption{
		hcloud.WithToken(token),
		hcloud.WithApplication("instance-launcher", ""),
	}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, hcloud.WithEndpoint(opts.Endpoint))
	}
	return &HCloudLauncher{
		client:     hcloud.NewClient(clientOpts...),
		location:   strings.TrimSpace(opts.Location),
		serverType: strings.TrimSpace(opts.InstanceType),
		sshKey:     strings.TrimSpace(opts.KeyName),
		log:        log,
	}, nil
}

func (l *HCloudLauncher) Provider() string {
	return providerHCloud
}

// Launch creates one server. Hetzner requires a server name, so an unnamed request gets a
// generated one; the Name label is only set when the request is tagged.
func (l *HCloudLauncher) Launch(ctx context.Context, req Request) (Result, error) {
	createOpts := hcloud.ServerCreateOpts{
		Name:             serverName(req.InstanceName),
		ServerType:       &hcloud.ServerType{Name: l.serverType},
		Image:            &hcloud.Image{Name: req.ImageID},
		StartAfterCreate: hcloud.Ptr(true),
		Labels:           map[string]string{"managed-by": "instance-launcher"},
	}
	if req.Tagged {
		createOpts.Labels["Name"] = req.InstanceName
	}
	if l.location != "" {
		createOpts.Location = &hcloud.Location{Name: l.location}
	}

	if l.sshKey != "" {
		start := time.Now()
		key, _, err := l.client.SSHKey.Get(ctx, l.sshKey)
		if err != nil {
			lerr := classify(providerHCloud, "get_ssh_key", err, hcloudAPIError)
			observeOperation(providerHCloud, "get_ssh_key", string(lerr.Kind), start)
			return Result{}, lerr
		}
		if key == nil {
			observeOperation(providerHCloud, "get_ssh_key", string(KindRejected), start)
			return Result{}, &Error{Kind: KindRejected, Provider: providerHCloud, Op: "get_ssh_key", Code: "not_found",
				Err: fmt.Errorf("ssh key %q not found", l.sshKey)}
		}
		observeOperation(providerHCloud, "get_ssh_key", "ok", start)
		createOpts.SSHKeys = []*hcloud.SSHKey{key}
	}

	l.log.Debug("create server", "event", "provider_call", "provider", providerHCloud,
		"name", createOpts.Name, "image", req.ImageID, "server_type", l.serverType, "location", l.location)

	start := time.Now()
	result, _, err := l.client.Server.Create(ctx, createOpts)
	if err != nil {
		lerr := classify(providerHCloud, "create_server", err, hcloudAPIError)
		observeOperation(providerHCloud, "create_server", string(lerr.Kind), start)
		return Result{}, lerr
	}
	observeOperation(providerHCloud, "create_server", "ok", start)

	if result.Server == nil || result.Server.ID == 0 {
		return Result{}, emptyResult(providerHCloud, "create_server")
	}
	return Result{InstanceID: strconv.FormatInt(result.Server.ID, 10), Provider: providerHCloud}, nil
}

func serverName(name string) string {
	if name != "" {
		return name
	}
	return "instance-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func hcloudAPIError(err error) (string, bool, bool) {
	var apiErr hcloud.Error
	if !errors.As(err, &apiErr) {
		return "", false, false
	}
	code := string(apiErr.Code)
	switch code {
	case "service_error", "server_error", "unavailable", "maintenance", "timeout", "rate_limit_exceeded", "locked":
		return code, true, true
	}
	return code, false, true
}
