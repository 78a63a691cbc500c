package api

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/telemyapp/instance-launcher/internal/config"
	"github.com/telemyapp/instance-launcher/internal/launch"
	"github.com/telemyapp/instance-launcher/internal/metrics"
	"github.com/telemyapp/instance-launcher/internal/model"
)

// ConfirmationMessage is the success body in confirmation response mode.
const ConfirmationMessage = "Instance created successfully"

const (
	outcomeSuccess          = "success"
	outcomeMalformedRequest = "malformed_request"
)

func (s *Server) handleCreateInstance(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r.Header.Get("Content-Type")) {
		s.countOutcome(outcomeMalformedRequest)
		writeAPIError(w, r, http.StatusUnsupportedMediaType, "unsupported_media_type", "content type must be application/json")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	in, err := model.DecodeInstanceRequest(r.Body, s.cfg.RequireInstanceName)
	if err != nil {
		s.countOutcome(outcomeMalformedRequest)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeAPIError(w, r, http.StatusRequestEntityTooLarge, "invalid_request", "request body too large")
			return
		}
		s.log.Debug("rejected create_instance body", "event", "malformed_request",
			"request_id", middleware.GetReqID(r.Context()), "err", err)
		writeAPIError(w, r, http.StatusBadRequest, "invalid_request", invalidRequestMessage(s.cfg.RequireInstanceName))
		return
	}

	// The launch outlives a disconnected client: once the provider call starts it runs to
	// completion or to the configured timeout.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.cfg.ProviderTimeout)
	defer cancel()

	provider := s.launcher.Provider()
	start := time.Now()
	res, err := s.launcher.Launch(ctx, launch.RequestFor(in, s.cfg.TagEnabled))
	durMS := time.Since(start).Milliseconds()
	labels := map[string]string{"provider": provider}
	if err != nil {
		kind := launch.KindOf(err)
		labels["status"] = "error"
		metrics.Default().IncCounter("launcher_launch_total", labels)
		metrics.Default().ObserveHistogram("launcher_launch_latency_ms", float64(durMS), labels)
		s.countOutcome(string(kind))
		s.log.Error("create instance failed",
			"event", "launch_failed",
			"request_id", middleware.GetReqID(r.Context()),
			"provider", provider,
			"image_id", in.AMIID,
			"kind", string(kind),
			"duration_ms", durMS,
			"err", err,
		)
		writeAPIError(w, r, statusForKind(kind), string(kind), "instance launch failed")
		return
	}
	labels["status"] = "ok"
	metrics.Default().IncCounter("launcher_launch_total", labels)
	metrics.Default().ObserveHistogram("launcher_launch_latency_ms", float64(durMS), labels)
	s.countOutcome(outcomeSuccess)
	s.log.Info("instance created",
		"event", "launch_ok",
		"request_id", middleware.GetReqID(r.Context()),
		"provider", provider,
		"image_id", in.AMIID,
		"instance_id", res.InstanceID,
		"duration_ms", durMS,
	)

	body := res.InstanceID
	if s.cfg.ResponseMode == config.ResponseConfirmation {
		body = ConfirmationMessage
	}
	writeText(w, http.StatusOK, body)
}

func (s *Server) countOutcome(outcome string) {
	metrics.Default().IncCounter("launcher_requests_total", map[string]string{"outcome": outcome})
}

// statusForKind maps provider failures onto gateway statuses. Provider detail never
// reaches the response body.
func statusForKind(kind launch.Kind) int {
	switch kind {
	case launch.KindTimeout:
		return http.StatusGatewayTimeout
	case launch.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// A missing Content-Type is accepted; anything else must be JSON.
func isJSONContentType(v string) bool {
	if strings.TrimSpace(v) == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

func invalidRequestMessage(requireName bool) string {
	if requireName {
		return "body must be JSON with string fields ami_id and instance_name"
	}
	return "body must be JSON with a string field ami_id"
}
