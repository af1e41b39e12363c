package assets

import _ "embed"

// ModelsData holds the raw JSON catalog of providers and models, including
// per-model fallback chains.
//
//go:embed models.json
var ModelsData []byte

// TemplatesData holds the raw JSON catalog of built-in project templates.
//
//go:embed templates.json
var TemplatesData []byte
