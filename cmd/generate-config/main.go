package main

import (
	"fmt"
	"os"

	"github.com/debemdeboas/micropub/internal/config"
	"gopkg.in/yaml.v3"
)

func main() {
	// Create a config with defaults applied
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	cfg.DefaultProfile = "blog"
	cfg.Profiles = map[string]config.ProfileConfig{
		"blog": {
			Domain:           "example.com",
			MicropubEndpoint: "https://example.com/micropub",
			MediaEndpoint:    "https://example.com/micropub/media",
			TokenEndpoint:    "https://example.com/token",
		},
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Example config is invalid: %v\n", err)
		os.Exit(1)
	}

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating YAML: %v\n", err)
		os.Exit(1)
	}

	header := "# micropub configuration example\n" +
		"# Copy this file to ~/.config/micropub/config.yaml and customize as needed.\n" +
		"# Store a token for each profile with: micropub token <profile>\n\n"
	output := header + string(yamlData)

	outputFile := "config.example.yaml"
	if len(os.Args) > 1 {
		outputFile = os.Args[1]
	}

	if outputFile == "-" {
		fmt.Print(output)
	} else {
		err = os.WriteFile(outputFile, []byte(output), 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Generated example config: %s\n", outputFile)
	}
}
