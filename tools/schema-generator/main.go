package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/grovetools/socratic/config"
	"github.com/grovetools/socratic/internal/qa"
)

func main() {
	outputDir := "schema/definitions"
	if len(os.Args) > 1 {
		outputDir = os.Args[1]
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		log.Fatalf("Error creating schema directory: %v", err)
	}

	schemas := []struct {
		file     string
		generate func() ([]byte, error)
	}{
		{"socratic.schema.json", config.GenerateSchema},
		{"plan.schema.json", qa.PlanSchema},
	}

	for _, s := range schemas {
		data, err := s.generate()
		if err != nil {
			log.Fatalf("Error generating %s: %v", s.file, err)
		}
		outputPath := filepath.Join(outputDir, s.file)
		if err := os.WriteFile(outputPath, append(data, '\n'), 0o644); err != nil {
			log.Fatalf("Error writing schema file: %v", err)
		}
		log.Printf("Successfully generated schema at %s", outputPath)
	}
}
