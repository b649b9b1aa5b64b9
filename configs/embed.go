// Package configs embeds the configuration template written by
// `archivesearch config init`.
package configs

import _ "embed"

// ConfigTemplate is the commented example configuration.
//
//go:embed archivesearch.example.yaml
var ConfigTemplate string
