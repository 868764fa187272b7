// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3gen"

	"github.com/telekom/sandpiper/pkg/session"
)

// openAPIDocument describes the path endpoints. The snapshot schema is
// generated from the session types, so the documentation cannot drift
// from what the handlers actually serve.
func openAPIDocument() (*openapi3.T, error) {
	snapshot, err := openapi3gen.NewSchemaRefForValue(session.Snapshot{}, openapi3.Schemas{})
	if err != nil {
		return nil, ErrCreateOpenapiSchema{name: "snapshot", err: err}
	}

	doc := &openapi3.T{
		OpenAPI: "3.0.0",
		Info: &openapi3.Info{
			Title:       "Sandpiper Path API",
			Description: "Serves the continuously measured path quality of the configured targets",
			Version:     "v1",
		},
		Paths: openapi3.NewPaths(),
	}

	targetParam := &openapi3.ParameterRef{
		Value: openapi3.NewPathParameter("target").
			WithDescription("The monitored target").
			WithSchema(openapi3.NewStringSchema()),
	}
	notFound := &openapi3.ResponseRef{
		Value: openapi3.NewResponse().WithDescription("The target is not monitored"),
	}

	list := &openapi3.SchemaRef{Value: openapi3.NewArraySchema().WithItems(snapshot.Value)}
	doc.Paths.Set("/v1/paths", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "listPaths",
			Description: "Snapshots of all monitored paths, ordered by target",
			Responses: openapi3.NewResponses(
				openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{
					Value: openapi3.NewResponse().
						WithDescription("Snapshots of all monitored paths").
						WithJSONSchemaRef(list),
				}),
			),
		},
	})

	doc.Paths.Set("/v1/paths/{target}", &openapi3.PathItem{
		Parameters: openapi3.Parameters{targetParam},
		Get: &openapi3.Operation{
			OperationID: "getPath",
			Description: "Snapshot of a single monitored path",
			Responses: openapi3.NewResponses(
				openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{
					Value: openapi3.NewResponse().
						WithDescription("Snapshot of the monitored path").
						WithJSONSchemaRef(snapshot),
				}),
				openapi3.WithStatus(http.StatusNotFound, notFound),
			),
		},
	})

	htmlReport := openapi3.NewResponse().WithDescription("Self-contained HTML report of the monitored path")
	htmlReport.Content = openapi3.NewContentWithSchema(openapi3.NewStringSchema(), []string{"text/html"})
	doc.Paths.Set("/v1/paths/{target}/report", &openapi3.PathItem{
		Parameters: openapi3.Parameters{targetParam},
		Get: &openapi3.Operation{
			OperationID: "getPathReport",
			Description: "HTML report of a single monitored path",
			Responses: openapi3.NewResponses(
				openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{Value: htmlReport}),
				openapi3.WithStatus(http.StatusNotFound, notFound),
			),
		},
	})

	return doc, nil
}
