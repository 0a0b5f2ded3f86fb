package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dyluth/labdesk/internal/config"
)

//go:embed templates/*
var templatesFS embed.FS

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

// CreatedFiles lists what Initialize writes, relative to the project dir.
var CreatedFiles = []string{config.DefaultFileName, ".env"}

// CheckExisting returns an error naming the files Initialize would overwrite.
func CheckExisting(dir string) error {
	var existing []string
	for _, name := range CreatedFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			existing = append(existing, name)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return fmt.Errorf("project already initialized (found %s)\n\nUse 'labdesk init --force' to overwrite the existing configuration",
		strings.Join(existing, ", "))
}

// Initialize writes labdesk.yml and .env into dir. Existing files are only
// overwritten when force is true.
func Initialize(dir string, force bool) error {
	if !force {
		if err := CheckExisting(dir); err != nil {
			return err
		}
	}

	files, err := getTemplateFiles()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Join(dir, ".labdesk"), 0755); err != nil {
		return fmt.Errorf("failed to create .labdesk directory: %w", err)
	}

	for _, file := range files {
		path := filepath.Join(dir, file.Path)
		if err := os.WriteFile(path, file.Content, file.Permissions); err != nil {
			return fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
	}

	// the template must stay loadable as the config evolves
	if _, err := config.Load(filepath.Join(dir, config.DefaultFileName)); err != nil {
		return fmt.Errorf("created %s is invalid: %w", config.DefaultFileName, err)
	}
	return nil
}

// getTemplateFiles reads all template files
func getTemplateFiles() ([]FileInfo, error) {
	cfg, err := templatesFS.ReadFile("templates/labdesk.yml.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read labdesk.yml template: %w", err)
	}
	env, err := templatesFS.ReadFile("templates/env.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read .env template: %w", err)
	}

	return []FileInfo{
		{Path: config.DefaultFileName, Content: cfg, Permissions: 0644},
		{Path: ".env", Content: env, Permissions: 0600},
	}, nil
}

// PrintSuccess prints the success message with created files
func PrintSuccess() {
	fmt.Println("\n✅ Successfully initialized labdesk workspace!")
	fmt.Println("\nCreated:")
	for _, name := range CreatedFiles {
		fmt.Printf("  ✓ %s\n", name)
	}
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Add '.labdesk/' and '.env' to your .gitignore file")
	fmt.Println("  2. Edit labdesk.yml to list your members and sections")
	fmt.Println("  3. Run 'labdesk up' to start a local Redis, or set store.backend to sqlite")
}
