package model

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDecodeInstanceRequest(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		requireName bool
		want        InstanceRequest
		wantErr     bool
	}{
		{name: "ami only", body: `{"ami_id":"ami-123"}`, want: InstanceRequest{AMIID: "ami-123"}},
		{name: "ami and name", body: `{"ami_id":"ami-123","instance_name":"web-1"}`, want: InstanceRequest{AMIID: "ami-123", InstanceName: "web-1", HasName: true}},
		{name: "unknown fields ignored", body: `{"ami_id":"ami-123","extra":true}`, want: InstanceRequest{AMIID: "ami-123"}},
		{name: "ami passed through unmodified", body: `{"ami_id":" ami-odd "}`, want: InstanceRequest{AMIID: " ami-odd "}},
		{name: "name required and present", body: `{"ami_id":"ami-1","instance_name":"n"}`, requireName: true, want: InstanceRequest{AMIID: "ami-1", InstanceName: "n", HasName: true}},
		{name: "whitespace ami passed through", body: `{"ami_id":"  "}`, want: InstanceRequest{AMIID: "  "}},
		{name: "empty name is still supplied", body: `{"ami_id":"ami-1","instance_name":""}`, want: InstanceRequest{AMIID: "ami-1", HasName: true}},
		{name: "empty name satisfies required", body: `{"ami_id":"ami-1","instance_name":""}`, requireName: true, want: InstanceRequest{AMIID: "ami-1", HasName: true}},
		{name: "null name is absent", body: `{"ami_id":"ami-1","instance_name":null}`, want: InstanceRequest{AMIID: "ami-1"}},
		{name: "missing ami", body: `{"instance_name":"web-1"}`, wantErr: true},
		{name: "empty ami", body: `{"ami_id":""}`, wantErr: true},
		{name: "numeric ami", body: `{"ami_id":123}`, wantErr: true},
		{name: "null ami", body: `{"ami_id":null}`, wantErr: true},
		{name: "numeric name", body: `{"ami_id":"ami-1","instance_name":5}`, wantErr: true},
		{name: "not json", body: `ami_id=ami-1`, wantErr: true},
		{name: "empty body", body: ``, wantErr: true},
		{name: "json array", body: `["ami-1"]`, wantErr: true},
		{name: "json null", body: `null`, wantErr: true},
		{name: "trailing data", body: `{"ami_id":"ami-1"} {"ami_id":"ami-2"}`, wantErr: true},
		{name: "name required but missing", body: `{"ami_id":"ami-1"}`, requireName: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeInstanceRequest(strings.NewReader(tt.body), tt.requireName)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				if !errors.Is(err, ErrMalformedRequest) {
					t.Fatalf("expected ErrMalformedRequest, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeInstanceRequest_OversizedTrailingDataKeepsLimitError(t *testing.T) {
	body := `{"ami_id":"ami-1"} ["` + strings.Repeat("a", 64)
	limited := http.MaxBytesReader(httptest.NewRecorder(), io.NopCloser(strings.NewReader(body)), 24)

	_, err := DecodeInstanceRequest(limited, false)
	if !errors.Is(err, ErrMalformedRequest) {
		t.Fatalf("expected ErrMalformedRequest, got %v", err)
	}
	var tooLarge *http.MaxBytesError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected wrapped MaxBytesError, got %v", err)
	}
}
