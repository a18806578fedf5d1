// Command schema-generator writes the editor-facing JSON Schema of bnb.yml,
// reflected from the config types.
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/grovetools/bnb/config"
)

func main() {
	out := flag.String("out", "schema/definitions/bnb.schema.json", "output path")
	flag.Parse()

	schemaBytes, err := config.GenerateSchema()
	if err != nil {
		log.Fatalf("Error generating schema: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		log.Fatalf("Error creating schema directory: %v", err)
	}
	if err := os.WriteFile(*out, append(schemaBytes, '\n'), 0o644); err != nil {
		log.Fatalf("Error writing schema file: %v", err)
	}
	log.Printf("Wrote bnb.yml schema to %s", *out)
}
