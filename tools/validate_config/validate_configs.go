package main

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/akamensky/argparse"
	"github.com/xeipuuv/gojsonschema"
	"sigs.k8s.io/yaml"
)

//go:embed imposter-protocol-config-schema.json
var schema string

func loadConfigFiles(configDir string) ([]string, error) {
	var configFiles []string
	err := filepath.Walk(configDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && (strings.Contains(info.Name(), "-config.y") || strings.HasSuffix(info.Name(), "-config.json")) {
			configFiles = append(configFiles, path)
		}
		return nil
	})
	return configFiles, err
}

// validateConfig checks every config file under configDir against the schema
// and returns the number of valid files.
func validateConfig(configDir string) (int, error) {
	fmt.Println("Validating config files")
	configFiles, err := loadConfigFiles(configDir)
	if err != nil {
		return 0, err
	}

	schemaLoader := gojsonschema.NewStringLoader(schema)
	var validFiles int
	for _, configFile := range configFiles {
		docYaml, err := os.ReadFile(configFile)
		if err != nil {
			return validFiles, err
		}
		docJSON, err := yaml.YAMLToJSON(docYaml)
		if err != nil {
			fmt.Printf("✗ %s - Invalid YAML: %v\n", configFile, err)
			continue
		}

		result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(docJSON))
		if err != nil {
			return validFiles, fmt.Errorf("failed to validate %s: %w", configFile, err)
		}

		if result.Valid() {
			fmt.Printf("✓ %s - Valid\n", configFile)
			validFiles++
		} else {
			fmt.Printf("✗ %s - Invalid:\n", configFile)
			for _, desc := range result.Errors() {
				fmt.Printf("\t - %s\n", desc)
			}
		}
	}
	return validFiles, nil
}

func main() {
	parser := argparse.NewParser("validate_configs", "Validates your imposter-protocol configs against the config schema.")
	c := parser.String("c", "configs", &argparse.Options{Required: true, Help: "Location of config files"})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(2)
	}

	valid, err := validateConfig(*c)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Successfully validated %d files.\n", valid)
}
