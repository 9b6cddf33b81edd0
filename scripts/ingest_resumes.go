package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"resuchain/resume-pipeline/internal/app"
	"resuchain/resume-pipeline/internal/config"
	"resuchain/resume-pipeline/internal/models"
	"resuchain/resume-pipeline/internal/services"
)

// collector holds dispatched ids so they can be processed inline.
type collector struct {
	ids []uuid.UUID
}

func (c *collector) Enqueue(resumeID uuid.UUID) bool {
	c.ids = append(c.ids, resumeID)
	return true
}

func main() {
	if len(os.Args) != 3 {
		log.Fatalf("usage: go run scripts/ingest_resumes.go <owner-id> <directory>")
	}
	ownerID, dir := os.Args[1], os.Args[2]

	log.Println("🚀 Starting resume ingestion...")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	db, err := config.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	ctx := context.Background()

	components, err := app.Build(ctx, cfg, db)
	if err != nil {
		log.Fatalf("❌ Failed to initialize services: %v", err)
	}
	defer components.Close()

	dispatched := &collector{}
	components.ResumeService.SetDispatcher(dispatched)

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Fatalf("❌ Failed to read %s: %v", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	successCount := 0
	failCount := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		log.Printf("\n📄 Processing: %s", entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("   ❌ Failed to read file: %v", err)
			failCount++
			continue
		}

		resume, err := components.ResumeService.Upload(ctx, ownerID, entry.Name(), data)
		if err != nil {
			log.Printf("   ❌ Upload failed: %v", err)
			failCount++
			continue
		}
		log.Printf("   ✅ Uploaded as %s (%d characters)", resume.ID, len(resume.RawText))

		if err := process(ctx, components.ResumeService, dispatched, ownerID); err != nil {
			log.Printf("   ❌ Parsing failed: %v", err)
			failCount++
			continue
		}

		log.Printf("   ✅ Successfully ingested %s", entry.Name())
		successCount++
	}

	// Summary
	log.Println("\n" + strings.Repeat("=", 60))
	log.Printf("📊 Ingestion Summary:")
	log.Printf("   ✅ Successful: %d resumes", successCount)
	log.Printf("   ❌ Failed: %d resumes", failCount)
	log.Println(strings.Repeat("=", 60))

	if failCount > 0 {
		log.Println("⚠️  Some resumes failed to ingest. Please check the logs above.")
		os.Exit(1)
	}

	log.Println("✅ All resumes ingested successfully!")
}

// process runs every collected id inline and fails on the first record
// that does not reach COMPLETED.
func process(ctx context.Context, svc services.ResumeService, dispatched *collector, ownerID string) error {
	ids := dispatched.ids
	dispatched.ids = nil

	for _, id := range ids {
		if err := svc.Process(ctx, id); err != nil {
			return err
		}
		resume, err := svc.GetOne(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if resume.ProcessingStatus != models.StatusCompleted {
			return fmt.Errorf("resume %s ended in status %s", id, resume.ProcessingStatus)
		}
	}
	return nil
}
