package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/medforge/ability"
	"github.com/medforge/ability/stores"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "validate":
		handleValidate()
	case "convert":
		handleConvert()
	case "stats":
		handleStats()
	case "can":
		handleCan()
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("ability-check - catalog tooling for the ability engine")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ability-check validate <file>                          - Validate a catalog config")
	fmt.Println("  ability-check convert <input> <output>                 - Convert between YAML and JSON")
	fmt.Println("  ability-check stats <file>                             - Show catalog statistics")
	fmt.Println("  ability-check can <file> <user> <action> <subject> [context.json] [instance.json]")
	fmt.Println("                                                         - Answer one authorization query")
	fmt.Println()
	fmt.Println("Supported formats: .yaml, .yml, .json")
}

func handleValidate() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: ability-check validate <file>")
		os.Exit(1)
	}
	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Configuration is valid")
}

func handleConvert() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: ability-check convert <input> <output>")
		os.Exit(1)
	}
	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := saveConfig(cfg, os.Args[3]); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Converted %s -> %s\n", os.Args[2], os.Args[3])
}

func handleStats() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: ability-check stats <file>")
		os.Exit(1)
	}
	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	perms := 0
	conditional := 0
	for _, r := range cfg.Roles {
		perms += len(r.Permissions)
		for _, p := range r.Permissions {
			if p.Condition != nil {
				conditional++
			}
		}
	}
	fmt.Printf("Roles:        %d\n", len(cfg.Roles))
	fmt.Printf("Permissions:  %d (%d conditional)\n", perms, conditional)
	fmt.Printf("Assignments:  %d\n", len(cfg.Assignments))
	fmt.Printf("User grants:  %d\n", len(cfg.Grants))
}

func handleCan() {
	if len(os.Args) < 6 {
		fmt.Println("Usage: ability-check can <file> <user> <action> <subject> [context.json] [instance.json]")
		os.Exit(1)
	}
	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	userID := os.Args[3]
	action, ok := ability.ParseAction(os.Args[4])
	if !ok {
		fmt.Printf("Unknown action: %s\n", os.Args[4])
		os.Exit(1)
	}
	subject, ok := ability.ParseSubjectType(os.Args[5])
	if !ok {
		fmt.Printf("Unknown subject: %s\n", os.Args[5])
		os.Exit(1)
	}

	reqCtx := ability.Context{"user": map[string]any{"id": userID}}
	if len(os.Args) > 6 {
		if err := loadJSONFile(os.Args[6], &reqCtx); err != nil {
			fmt.Printf("Error loading context: %v\n", err)
			os.Exit(1)
		}
	}
	var instance map[string]any
	if len(os.Args) > 7 {
		if err := loadJSONFile(os.Args[7], &instance); err != nil {
			fmt.Printf("Error loading instance: %v\n", err)
			os.Exit(1)
		}
	}

	ctx := context.Background()
	roles := stores.NewMemoryRoleStore()
	memberships := stores.NewMemoryRoleMembershipStore()
	grants := stores.NewMemoryUserGrantStore()
	if err := ability.ApplyConfig(ctx, cfg, roles, memberships, grants); err != nil {
		fmt.Printf("Error applying config: %v\n", err)
		os.Exit(1)
	}

	engine, err := ability.NewEngine(ability.NewCompositeCatalog(roles, memberships, grants))
	if err != nil {
		fmt.Printf("Error creating engine: %v\n", err)
		os.Exit(1)
	}

	decision, err := engine.Explain(ctx, ability.AuthorizeRequest{
		UserID:   userID,
		Action:   action,
		Subject:  subject,
		Instance: instance,
		Context:  reqCtx,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if decision.Allowed {
		fmt.Printf("ALLOW (%s)\n", decision.Reason)
	} else {
		fmt.Printf("DENY (%s)\n", decision.Reason)
	}
	for _, line := range decision.Trace {
		fmt.Println("  " + line)
	}
	if !decision.Allowed {
		os.Exit(2)
	}
}

func loadConfig(path string) (*ability.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	loader := ability.NewConfigLoader()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return loader.LoadYAML(data)
	case ".json":
		return loader.LoadJSON(data)
	default:
		return nil, fmt.Errorf("unsupported format: %s", filepath.Ext(path))
	}
}

func saveConfig(cfg *ability.Config, path string) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = cfg.ToYAML()
	case ".json":
		data, err = cfg.ToJSON()
	default:
		return fmt.Errorf("unsupported format: %s", filepath.Ext(path))
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func loadJSONFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
