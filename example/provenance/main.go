// Command provenance walks through layered loading, the provenance audit and
// editing a value back into the file it came from.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/lixenwraith/settings"
	"github.com/lixenwraith/settings/editor"
)

// AppConfig is decoded from the merged layers.
type AppConfig struct {
	Server struct {
		Host     string `toml:"host"`
		Port     int64  `toml:"port"`
		LogLevel string `toml:"log_level"`
	} `toml:"server"`
	Database struct {
		URL      string `toml:"url"`
		Password string `toml:"password"`
	} `toml:"database"`
}

const baseTOML = `# Base settings shared by every environment
[server]
host = "localhost"
port = 8080 # default HTTP port
log_level = "info"

[database]
url = "postgres://localhost/app"
`

const localYAML = `server:
  port: 9090 # local override
`

const secretsEnv = `DATABASE__PASSWORD=s3cret
`

func main() {
	dir, err := os.MkdirTemp("", "provenance-example-")
	if err != nil {
		log.Fatalf("❌ Failed to create working directory: %v", err)
	}
	defer os.RemoveAll(dir)

	// =========================================================================
	// PART 1: LAYER FILES
	// =========================================================================
	log.Println("---")
	log.Println("➡️  PART 1: Writing layer files...")

	basePath := filepath.Join(dir, "base.toml")
	localPath := filepath.Join(dir, "local.yaml")
	secretsPath := filepath.Join(dir, "secrets.env")
	for path, content := range map[string]string{
		basePath:    baseTOML,
		localPath:   localYAML,
		secretsPath: secretsEnv,
	} {
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			log.Fatalf("❌ Failed to write %s: %v", path, err)
		}
	}

	os.Setenv("APP__SERVER__LOG_LEVEL", "debug")
	defer os.Unsetenv("APP__SERVER__LOG_LEVEL")
	log.Println("   (Set environment variable APP__SERVER__LOG_LEVEL=debug)")

	// =========================================================================
	// PART 2: BUILD WITH PROVENANCE
	// =========================================================================
	log.Println("---")
	log.Println("➡️  PART 2: Merging layers...")

	cfg, sources, err := settings.NewLayerBuilder().
		WithPath(basePath).
		WithPath(localPath).
		WithSecrets(secretsPath).
		WithEnvVars("APP", "__").
		BuildWithProvenance()
	if err != nil {
		log.Fatalf("❌ Build failed: %v", err)
	}

	var app AppConfig
	if err := cfg.Scan("", &app); err != nil {
		log.Fatalf("❌ Scan failed: %v", err)
	}
	log.Printf("✅ server = %s:%d (log level %s)", app.Server.Host, app.Server.Port, app.Server.LogLevel)

	fmt.Println()
	fmt.Print(sources.AuditReport())
	fmt.Println()

	// =========================================================================
	// PART 3: EDIT IN PLACE
	// =========================================================================
	log.Println("---")
	log.Println("➡️  PART 3: Editing values in their source files...")

	ce := editor.NewConfigEditor(sources)
	ce.SetDefaultTarget(filepath.Join(dir, "user.toml"))

	// server.port came from local.yaml, server.host from base.toml
	if err := ce.Set("server.port", 9191); err != nil {
		log.Fatalf("❌ Set failed: %v", err)
	}
	if err := ce.Set("server.host", "0.0.0.0"); err != nil {
		log.Fatalf("❌ Set failed: %v", err)
	}
	// Unknown keys go to the default target
	if err := ce.Set("ui.theme", "dark"); err != nil {
		log.Fatalf("❌ Set failed: %v", err)
	}
	// Environment values cannot be edited in place
	if err := ce.Set("server.log_level", "warn"); err != nil {
		log.Printf("   (expected) %v", err)
	}

	log.Printf("   dirty files: %v", ce.DirtyFiles())
	if err := ce.Save(); err != nil {
		log.Fatalf("❌ Save failed: %v", err)
	}

	updated, err := os.ReadFile(basePath)
	if err != nil {
		log.Fatalf("❌ Read failed: %v", err)
	}
	log.Println("✅ base.toml after save, comments intact:")
	fmt.Println(string(updated))
}
