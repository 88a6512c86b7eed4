// Command generate-schema emits the pathsync configuration schema and an
// annotated sample config for deployment tooling.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/karstio/pathsync/pkg/config"
)

func main() {
	sample := flag.Bool("sample", false, "Write a sample YAML config with defaults instead of a JSON schema")
	flag.Parse()

	if *sample {
		writeSample()
		return
	}

	// Generate JSON schema from Config struct
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true, // Inline all definitions for simplicity
	}

	schema := reflector.Reflect(&config.Config{})
	schema.Title = "pathsync Configuration"
	schema.Description = "Configuration schema for the pathsync authority daemon"
	schema.Version = "1.0.0"

	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling schema: %v\n", err)
		os.Exit(1)
	}

	outputFile := "config.schema.json"
	if flag.NArg() > 0 {
		outputFile = flag.Arg(0)
	}

	if err := os.WriteFile(outputFile, schemaJSON, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing schema file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("JSON schema written to %s\n", outputFile)
}

// writeSample prints a config populated with every default to stdout.
func writeSample() {
	var cfg config.Config
	config.ApplyDefaults(&cfg)

	out, err := yaml.Marshal(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling sample config: %v\n", err)
		os.Exit(1)
	}
	os.Stdout.Write(out)
}
