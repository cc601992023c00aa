// Package api embeds the OpenAPI description of the storefront HTTP API.
package api

import _ "embed"

//go:embed openapi.yaml
var OpenAPI []byte
