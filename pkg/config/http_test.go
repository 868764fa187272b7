// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/telekom/sandpiper/internal/helper"
	"github.com/telekom/sandpiper/pkg/monitor"
	"github.com/telekom/sandpiper/pkg/session"
)

const testConfigURL = "https://config.example.com/runtime.yaml"

const testConfigBody = `
paths:
  - target: quality.example.com
    interval: 1s
`

func testHttpConfig() *Config {
	return &Config{
		Loader: LoaderConfig{
			Type:     "http",
			Interval: 1 * time.Second,
			Http: HttpLoaderConfig{
				Url:     testConfigURL,
				Timeout: 1 * time.Second,
				RetryCfg: helper.RetryConfig{
					Count: 0,
					Delay: time.Millisecond,
				},
			},
		},
	}
}

func TestHttpLoader_getRuntimeConfig(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	tests := []struct {
		name      string
		responder httpmock.Responder
		want      monitor.Config
		wantErr   bool
	}{
		{
			name:      "parses the remote configuration",
			responder: httpmock.NewStringResponder(http.StatusOK, testConfigBody),
			want: monitor.Config{
				Paths: []session.Config{
					{Target: "quality.example.com", Interval: 1 * time.Second},
				},
			},
			wantErr: false,
		},
		{
			name:      "rejects a non-200 response",
			responder: httpmock.NewStringResponder(http.StatusInternalServerError, "boom"),
			wantErr:   true,
		},
		{
			name:      "rejects malformed yaml",
			responder: httpmock.NewStringResponder(http.StatusOK, "this is not a valid yaml content"),
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpmock.RegisterResponder(http.MethodGet, testConfigURL, tt.responder)

			h := NewHttpLoader(testHttpConfig(), make(chan monitor.Config, 1))
			got, err := h.getRuntimeConfig(t.Context())
			if (err != nil) != tt.wantErr {
				t.Fatalf("getRuntimeConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got.Paths) != len(tt.want.Paths) {
				t.Fatalf("Expected %d paths, got %d", len(tt.want.Paths), len(got.Paths))
			}
			if got.Paths[0] != tt.want.Paths[0] {
				t.Errorf("Expected config to be %v, got %v", tt.want.Paths[0], got.Paths[0])
			}
		})
	}
}

func TestHttpLoader_getRuntimeConfig_sendsBearerToken(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, testConfigURL, func(req *http.Request) (*http.Response, error) {
		if req.Header.Get("Authorization") != "Bearer test-token" {
			return httpmock.NewStringResponse(http.StatusUnauthorized, "missing token"), nil
		}
		return httpmock.NewStringResponse(http.StatusOK, testConfigBody), nil
	})

	cfg := testHttpConfig()
	cfg.Loader.Http.Token = "test-token"
	h := NewHttpLoader(cfg, make(chan monitor.Config, 1))

	if _, err := h.getRuntimeConfig(t.Context()); err != nil {
		t.Fatalf("getRuntimeConfig() error = %v", err)
	}
}

func TestHttpLoader_Run(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodGet, testConfigURL, httpmock.NewStringResponder(http.StatusOK, testConfigBody))

	t.Run("single fetch with continuous loading disabled", func(t *testing.T) {
		cfg := testHttpConfig()
		cfg.Loader.Interval = 0
		result := make(chan monitor.Config, 1)
		h := NewHttpLoader(cfg, result)

		if err := h.Run(t.Context()); err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		got := <-result
		if len(got.Paths) != 1 || got.Paths[0].Target != "quality.example.com" {
			t.Errorf("Expected the remote config on the channel, got %v", got)
		}
	})

	t.Run("continuous loading delivers until shutdown", func(t *testing.T) {
		cfg := testHttpConfig()
		cfg.Loader.Interval = 5 * time.Millisecond
		result := make(chan monitor.Config, 1)
		h := NewHttpLoader(cfg, result)

		done := make(chan error, 1)
		go func() { done <- h.Run(t.Context()) }()

		for range 2 {
			select {
			case got := <-result:
				if len(got.Paths) != 1 {
					t.Errorf("Expected 1 path, got %d", len(got.Paths))
				}
			case <-time.After(5 * time.Second):
				t.Fatal("timed out waiting for a config delivery")
			}
		}

		h.Shutdown(t.Context())
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run() error = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Run() did not return after shutdown")
		}
	})
}

func TestHttpLoader_Run_failedFetchSkipsDelivery(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodGet, testConfigURL, httpmock.NewStringResponder(http.StatusBadGateway, "bad gateway"))

	cfg := testHttpConfig()
	cfg.Loader.Interval = 0
	result := make(chan monitor.Config, 1)
	h := NewHttpLoader(cfg, result)

	if err := h.Run(t.Context()); err == nil {
		t.Fatal("Run() expected an error for a failing single fetch")
	}
	select {
	case got := <-result:
		t.Errorf("Expected no config delivery, got %v", got)
	default:
	}
}
