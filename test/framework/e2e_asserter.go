// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package framework

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/stretchr/testify/assert"

	"github.com/telekom/sandpiper/pkg/session"
)

// e2eTimeMargin defines the acceptable timestamp age for end-to-end tests.
const e2eTimeMargin = 5 * time.Minute

// e2eHttpAsserter is an HTTP asserter for end-to-end tests.
type e2eHttpAsserter struct {
	e2e      *E2E
	url      string
	response *e2eResponseAsserter
	schema   *openapi3.T
	router   routers.Router
}

// e2eResponseAsserter validates the response body.
type e2eResponseAsserter struct {
	asserter func(r *http.Response) error
}

// HttpAssertion creates a new HTTP assertion for the given URL.
func (e *E2E) HttpAssertion(u string) *e2eHttpAsserter {
	return &e2eHttpAsserter{e2e: e, url: u}
}

// Assert asserts the status code and then runs the schema and body validations.
func (a *e2eHttpAsserter) Assert(status int) {
	a.e2e.t.Helper()
	if !a.e2e.isRunning() {
		a.e2e.t.Fatal("e2eHttpAsserter.Assert must be called after E2E.Run")
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, a.url, http.NoBody)
	if err != nil {
		a.e2e.t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		a.e2e.t.Errorf("Failed to get %s: %v", a.url, err)
		return
	}
	defer resp.Body.Close()

	assert.Equal(a.e2e.t, status, resp.StatusCode, "Unexpected status code for %s", a.url)
	a.e2e.t.Logf("Got status code %d for %s", resp.StatusCode, a.url)

	if resp.StatusCode == http.StatusOK {
		if a.schema != nil && a.router != nil {
			if err = a.assertSchema(req, resp); err != nil {
				a.e2e.t.Errorf("Response from %q does not match schema: %v", a.url, err)
			}
		}

		if a.response != nil {
			if err = a.response.asserter(resp); err != nil {
				a.e2e.t.Errorf("Failed to assert response: %v", err)
			}
		}
	}
}

// WithSchema fetches the OpenAPI schema and creates a router for response validation.
func (a *e2eHttpAsserter) WithSchema() *e2eHttpAsserter {
	a.e2e.t.Helper()
	schema, err := a.fetchSchema()
	if err != nil {
		a.e2e.t.Fatalf("Failed to fetch OpenAPI schema: %v", err)
	}

	router, err := gorillamux.NewRouter(schema)
	if err != nil {
		a.e2e.t.Fatalf("Failed to create router from OpenAPI schema: %v", err)
	}

	a.schema = schema
	a.router = router
	return a
}

// WithSnapshot expects the response to be the snapshot of the given
// target and verifies its structural invariants.
func (a *e2eHttpAsserter) WithSnapshot(target string) *e2eHttpAsserter {
	a.e2e.t.Helper()
	a.response = &e2eResponseAsserter{
		asserter: func(resp *http.Response) error {
			var got session.Snapshot
			if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
				return fmt.Errorf("failed to decode snapshot: %w", err)
			}
			assertSnapshot(a.e2e.t, target, got)
			return nil
		},
	}
	return a
}

// WithSnapshotList expects the response to list exactly the given
// targets, ordered by target.
func (a *e2eHttpAsserter) WithSnapshotList(targets ...string) *e2eHttpAsserter {
	a.e2e.t.Helper()
	if targets == nil {
		targets = []string{}
	}
	a.response = &e2eResponseAsserter{
		asserter: func(resp *http.Response) error {
			var got []session.Snapshot
			if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
				return fmt.Errorf("failed to decode snapshot list: %w", err)
			}

			listed := make([]string, 0, len(got))
			for _, snap := range got {
				listed = append(listed, snap.Target)
			}
			assert.Equal(a.e2e.t, targets, listed, "Unexpected monitored targets")
			return nil
		},
	}
	return a
}

// fetchSchema retrieves the OpenAPI schema from the server.
func (a *e2eHttpAsserter) fetchSchema() (*openapi3.T, error) {
	ctx := context.Background()
	u, err := url.Parse(a.url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	u.Path = "/openapi.yaml"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to GET OpenAPI schema: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read OpenAPI schema: %w", err)
	}

	loader := openapi3.NewLoader()
	schema, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI schema: %w", err)
	}

	if err = schema.Validate(ctx); err != nil {
		return nil, fmt.Errorf("OpenAPI schema validation error: %w", err)
	}

	return schema, nil
}

// assertSchema validates the response body against the OpenAPI schema.
func (a *e2eHttpAsserter) assertSchema(req *http.Request, resp *http.Response) error {
	route, _, err := a.router.FindRoute(req)
	if err != nil {
		return fmt.Errorf("failed to find route: %w", err)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	// Reset resp.Body so that further reading is possible.
	resp.Body = io.NopCloser(bytes.NewReader(data))

	responseRef := route.Operation.Responses.Status(resp.StatusCode)
	if responseRef == nil || responseRef.Value == nil {
		return fmt.Errorf("no response defined in OpenAPI schema for status code %d", resp.StatusCode)
	}

	mediaType := responseRef.Value.Content.Get("application/json")
	if mediaType == nil {
		return errors.New("no media type defined in OpenAPI schema for Content-Type 'application/json'")
	}

	var body any
	if err = json.Unmarshal(data, &body); err != nil {
		return fmt.Errorf("failed to unmarshal response body: %w", err)
	}

	// Validate the response body against the schema.
	if err = mediaType.Schema.Value.VisitJSON(body); err != nil {
		return fmt.Errorf("response body does not match schema: %w", err)
	}

	return nil
}

// assertSnapshot verifies the invariants every served snapshot holds,
// regardless of what the probes measured.
func assertSnapshot(t *testing.T, target string, got session.Snapshot) {
	t.Helper()
	assert.Equal(t, target, got.Target, "Snapshot target differs")
	assert.Equal(t, session.StateRunning, got.State, "Session is not running")
	assert.NotZero(t, got.Cycles, "No measurement cycle finished")
	assert.NotEmpty(t, got.Hops, "No hops measured")
	assert.WithinDuration(t, time.Now(), got.Timestamp, e2eTimeMargin, "Snapshot timestamp is not recent")

	last := 0
	for _, hop := range got.Hops {
		assert.Greater(t, hop.Distance, last, "Hops are not ordered by distance")
		last = hop.Distance
		assert.NotZero(t, hop.Stats.Sent, "Hop %d got no probes", hop.Distance)
		assert.LessOrEqual(t, hop.Stats.Received, hop.Stats.Sent, "Hop %d received more answers than probes", hop.Distance)
		assert.GreaterOrEqual(t, hop.Stats.Loss, 0.0, "Hop %d loss is below 0", hop.Distance)
		assert.LessOrEqual(t, hop.Stats.Loss, 100.0, "Hop %d loss is above 100", hop.Distance)
		assert.NotEmpty(t, hop.Grade, "Hop %d has no grade", hop.Distance)
	}
}
