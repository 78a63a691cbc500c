package launch

import (
	"context"
	"time"

	"github.com/telemyapp/instance-launcher/internal/metrics"
	"github.com/telemyapp/instance-launcher/internal/model"
)

// Request is one create-instance call. Tagged is set when a Name tag is sent; the value
// may be empty.
type Request struct {
	ImageID      string
	InstanceName string
	Tagged       bool
}

type Result struct {
	InstanceID string
	Provider   string
}

// Options are deployment constants shared by every call.
type Options struct {
	InstanceType string
	KeyName      string
}

// Launcher creates exactly one instance per call. Implementations are safe for
// concurrent use.
type Launcher interface {
	Launch(ctx context.Context, req Request) (Result, error)
	Provider() string
}

// RequestFor maps a decoded body onto a launch request. The name is dropped when
// tagging is disabled for the deployment.
func RequestFor(in model.InstanceRequest, tagEnabled bool) Request {
	req := Request{ImageID: in.AMIID}
	if tagEnabled && in.HasName {
		req.InstanceName = in.InstanceName
		req.Tagged = true
	}
	return req
}

func observeOperation(provider, op, status string, start time.Time) {
	labels := map[string]string{"provider": provider, "op": op, "status": status}
	metrics.Default().IncCounter("launcher_provider_operations_total", labels)
	metrics.Default().ObserveHistogram("launcher_provider_operation_latency_ms", float64(time.Since(start).Milliseconds()), labels)
}
