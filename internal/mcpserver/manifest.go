package mcpserver

import (
	"encoding/json"
)

const manifestSchema = "https://static.modelcontextprotocol.io/schemas/2025-10-17/server.schema.json"

// Manifest is the registry description of the server (server.json).
type Manifest struct {
	Schema      string      `json:"$schema"`
	Name        string      `json:"name"`
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description"`
	Version     string      `json:"version"`
	Repository  *Repository `json:"repository,omitempty"`
	Packages    []Package   `json:"packages,omitempty"`
}

// Repository locates the server's source.
type Repository struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

// Package describes one way to install and launch the server.
type Package struct {
	RegistryType     string     `json:"registryType"`
	Identifier       string     `json:"identifier"`
	Version          string     `json:"version,omitempty"`
	PackageArguments []Argument `json:"packageArguments,omitempty"`
	Transport        Transport  `json:"transport"`
}

// Argument is a command-line argument passed to the package.
type Argument struct {
	Type        string `json:"type"`
	Name        string `json:"name,omitempty"`
	Value       string `json:"value,omitempty"`
	Description string `json:"description,omitempty"`
	IsRequired  bool   `json:"isRequired,omitempty"`
}

// Transport names the communication channel.
type Transport struct {
	Type string `json:"type"`
}

// GenerateManifest renders the server.json for version.
func GenerateManifest(version string) ([]byte, error) {
	if version == "" || version == "dev" {
		version = "0.0.0"
	}

	args := []Argument{
		{Type: "positional", Value: "mcp"},
		{
			Type:        "named",
			Name:        "--config",
			Description: "Path to a c3ms configuration file (toml, yaml or json)",
		},
	}

	manifest := Manifest{
		Schema:      manifestSchema,
		Name:        "io.github.panbanda/c3ms",
		Title:       "c3ms",
		Description: "Halstead, cyclomatic and maintainability metrics for C and C++ code",
		Version:     version,
		Repository: &Repository{
			URL:    "https://github.com/panbanda/c3ms",
			Source: "github",
		},
		Packages: []Package{
			{
				RegistryType:     "oci",
				Identifier:       "ghcr.io/panbanda/c3ms:" + version,
				PackageArguments: args,
				Transport:        Transport{Type: "stdio"},
			},
			{
				RegistryType:     "go",
				Identifier:       "github.com/panbanda/c3ms/cmd/c3ms",
				Version:          version,
				PackageArguments: args,
				Transport:        Transport{Type: "stdio"},
			},
		},
	}

	return json.MarshalIndent(manifest, "", "  ")
}
