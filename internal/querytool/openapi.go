package querytool

import _ "embed"

// OpenAPISchema is the API schema the agent's action group is created
// with. Its descriptions are what the agent reads to decide which
// operation to call.
//
//go:embed openapi.json
var OpenAPISchema []byte
