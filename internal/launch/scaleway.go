package launch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/scaleway/scaleway-sdk-go/api/instance/v1"
	"github.com/scaleway/scaleway-sdk-go/scw"
)

const providerScaleway = "scaleway"

type scalewayInstanceAPI interface {
	CreateServer(req *instance.CreateServerRequest, opts ...scw.RequestOption) (*instance.CreateServerResponse, error)
	ServerAction(req *instance.ServerActionRequest, opts ...scw.RequestOption) (*instance.ServerActionResponse, error)
}

type ScalewayLauncher struct {
	api            scalewayInstanceAPI
	zone           scw.Zone
	commercialType string
	log            *slog.Logger
}

// NewScalewayLauncher builds a client from the active scw profile overlaid with SCW_*
// environment variables. zone, when set, overrides both.
func NewScalewayLauncher(zone string, opts Options, log *slog.Logger) (*ScalewayLauncher, error) {
	var clientOpts []scw.ClientOption
	if cfg, err := scw.LoadConfig(); err == nil {
		if profile, err := cfg.GetActiveProfile(); err == nil {
			clientOpts = append(clientOpts, scw.WithProfile(profile))
		}
	}
	clientOpts = append(clientOpts, scw.WithEnv())

	var z scw.Zone
	if zone = strings.TrimSpace(zone); zone != "" {
		parsed, err := scw.ParseZone(zone)
		if err != nil {
			return nil, fmt.Errorf("scaleway zone: %w", err)
		}
		z = parsed
		clientOpts = append(clientOpts, scw.WithDefaultZone(parsed))
	}

	client, err := scw.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("scaleway client: %w", err)
	}
	if z == "" {
		if def, ok := client.GetDefaultZone(); ok {
			z = def
		}
	}
	if z == "" {
		return nil, fmt.Errorf("scaleway zone is required (scaleway_zone or SCW_DEFAULT_ZONE)")
	}
	if strings.TrimSpace(opts.KeyName) != "" {
		log.Warn("key pair name ignored: scaleway injects project ssh keys", "event", "config_ignored", "provider", providerScaleway)
	}
	return newScalewayLauncherWithAPI(instance.NewAPI(client), z, opts, log), nil
}

func newScalewayLauncherWithAPI(api scalewayInstanceAPI, zone scw.Zone, opts Options, log *slog.Logger) *ScalewayLauncher {
	return &ScalewayLauncher{
		api:            api,
		zone:           zone,
		commercialType: strings.TrimSpace(opts.InstanceType),
		log:            log,
	}
}

func (l *ScalewayLauncher) Provider() string {
	return providerScaleway
}

// Launch creates one server and powers it on. A failed power-on fails the request; the
// stopped server is left in place.
func (l *ScalewayLauncher) Launch(ctx context.Context, req Request) (Result, error) {
	createReq := &instance.CreateServerRequest{
		Zone:           l.zone,
		Name:           req.InstanceName,
		CommercialType: l.commercialType,
		Image:          scw.StringPtr(req.ImageID),
	}
	if req.Tagged {
		createReq.Tags = []string{"Name=" + req.InstanceName}
	}

	l.log.Debug("create server", "event", "provider_call", "provider", providerScaleway,
		"zone", l.zone, "image", req.ImageID, "commercial_type", l.commercialType)

	start := time.Now()
	resp, err := l.api.CreateServer(createReq, scw.WithContext(ctx))
	if err != nil {
		lerr := classify(providerScaleway, "create_server", err, scalewayAPIError)
		observeOperation(providerScaleway, "create_server", string(lerr.Kind), start)
		return Result{}, lerr
	}
	observeOperation(providerScaleway, "create_server", "ok", start)

	if resp == nil || resp.Server == nil || strings.TrimSpace(resp.Server.ID) == "" {
		return Result{}, emptyResult(providerScaleway, "create_server")
	}
	serverID := resp.Server.ID

	start = time.Now()
	_, err = l.api.ServerAction(&instance.ServerActionRequest{
		Zone:     resp.Server.Zone,
		ServerID: serverID,
		Action:   instance.ServerActionPoweron,
	}, scw.WithContext(ctx))
	if err != nil {
		lerr := classify(providerScaleway, "poweron_server", err, scalewayAPIError)
		observeOperation(providerScaleway, "poweron_server", string(lerr.Kind), start)
		l.log.Error("server created but power on failed", "event", "poweron_failed", "provider", providerScaleway, "server_id", serverID, "err", err)
		return Result{}, lerr
	}
	observeOperation(providerScaleway, "poweron_server", "ok", start)

	return Result{InstanceID: serverID, Provider: providerScaleway}, nil
}

func scalewayAPIError(err error) (string, bool, bool) {
	var respErr *scw.ResponseError
	if errors.As(err, &respErr) {
		return strconv.Itoa(respErr.StatusCode), respErr.StatusCode >= 500, true
	}
	var invalidArgs *scw.InvalidArgumentsError
	if errors.As(err, &invalidArgs) {
		return "invalid_arguments", false, true
	}
	var quota *scw.QuotasExceededError
	if errors.As(err, &quota) {
		return "quotas_exceeded", false, true
	}
	var notFound *scw.ResourceNotFoundError
	if errors.As(err, &notFound) {
		return "not_found", false, true
	}
	var outOfStock *scw.OutOfStockError
	if errors.As(err, &outOfStock) {
		return "out_of_stock", true, true
	}
	return "", false, false
}
