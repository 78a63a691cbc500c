package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var ErrMalformedRequest = errors.New("malformed request")

// InstanceRequest is the body of POST /create_instance.
// HasName is set when instance_name was supplied, including as an empty string.
type InstanceRequest struct {
	AMIID        string
	InstanceName string
	HasName      bool
}

type wireInstanceRequest struct {
	AMIID        *string `json:"ami_id"`
	InstanceName *string `json:"instance_name"`
}

// DecodeInstanceRequest reads exactly one JSON object from r. Unknown fields are ignored;
// trailing data after the object is rejected. All failures wrap ErrMalformedRequest.
func DecodeInstanceRequest(r io.Reader, requireName bool) (InstanceRequest, error) {
	dec := json.NewDecoder(r)
	var wire wireInstanceRequest
	if err := dec.Decode(&wire); err != nil {
		return InstanceRequest{}, fmt.Errorf("%w: decode json: %w", ErrMalformedRequest, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return InstanceRequest{}, fmt.Errorf("%w: trailing data after json body", ErrMalformedRequest)
		}
		return InstanceRequest{}, fmt.Errorf("%w: trailing data after json body: %w", ErrMalformedRequest, err)
	}

	if wire.AMIID == nil || *wire.AMIID == "" {
		return InstanceRequest{}, fmt.Errorf("%w: ami_id is required", ErrMalformedRequest)
	}
	out := InstanceRequest{AMIID: *wire.AMIID}
	if wire.InstanceName != nil {
		out.InstanceName = *wire.InstanceName
		out.HasName = true
	}
	if requireName && !out.HasName {
		return InstanceRequest{}, fmt.Errorf("%w: instance_name is required", ErrMalformedRequest)
	}
	return out, nil
}
