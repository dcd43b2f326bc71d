package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"statbench/adapters/postgres"
	"statbench/domain/core"
	"statbench/internal/expr"
	"statbench/internal/migration"
	"statbench/ports"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate <database_url> [rulesets_dir]")
	}

	databaseURL := os.Args[1]

	// Connect to database
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	runner := migration.NewRunner()
	if err := runner.Run(ctx, db); err != nil {
		log.Fatalf("Schema migration failed: %v", err)
	}
	log.Printf("Schema at version %s", runner.Version())

	if len(os.Args) < 3 {
		return
	}
	rulesDir := os.Args[2]
	log.Printf("Importing rule sets from %s", rulesDir)

	repo := postgres.NewRuleSetRepository(db)

	files, err := findRuleSetFiles(rulesDir)
	if err != nil {
		log.Fatalf("Failed to find rule set files: %v", err)
	}
	log.Printf("Found %d rule set files to import", len(files))

	imported := 0
	skipped := 0

	for _, file := range files {
		record, err := loadRuleSetFromFile(file)
		if err != nil {
			log.Printf("Skipping %s: %v", filepath.Base(file), err)
			skipped++
			continue
		}

		if err := repo.Save(ctx, *record); err != nil {
			log.Printf("Failed to save rule set %s: %v", record.DatasetID, err)
			skipped++
			continue
		}

		imported++
		log.Printf("Imported rule set %s from %s", record.DatasetID, filepath.Base(file))
	}

	log.Printf("Import complete: %d imported, %d skipped", imported, skipped)
}

func findRuleSetFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && strings.HasSuffix(path, ".json") {
			files = append(files, path)
		}

		return nil
	})

	return files, err
}

// loadRuleSetFromFile reads and checks one exported rule set. Files without a
// dataset id get a deterministic one derived from their path.
func loadRuleSetFromFile(filePath string) (*ports.RuleSetRecord, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var record ports.RuleSetRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}

	if record.DatasetID.IsEmpty() {
		record.DatasetID = core.DatasetID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(filePath)).String())
	} else if _, err := core.ParseDatasetID(record.DatasetID.String()); err != nil {
		return nil, fmt.Errorf("invalid dataset id: %w", err)
	}

	if err := record.Rules.Validate(); err != nil {
		return nil, err
	}
	if record.Rules.FilterExpression != "" {
		if err := expr.Validate(record.Rules.FilterExpression, nil); err != nil {
			return nil, err
		}
	}
	for _, cc := range record.Rules.ComputedColumns {
		if err := expr.Validate(cc.Expression, nil); err != nil {
			return nil, fmt.Errorf("computed column %q: %w", cc.Name, err)
		}
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = core.Now()
	}

	return &record, nil
}
