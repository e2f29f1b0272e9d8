package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"brickscan/internal/config"
	"brickscan/internal/model"
	"brickscan/internal/repository/sqlite"
	"brickscan/internal/service/storage"
)

// migrate indexes scan files that are on disk but missing from the database,
// e.g. after restoring a backup of the scan directory.
func main() {
	cfg := config.Load()
	scansDir := flag.String("scans", cfg.ImageDirectory, "Directory containing scan images")
	dbPath := flag.String("db", cfg.DatabasePath, "Database path")
	flag.Parse()

	fmt.Printf("Indexing scans from %s into database %s\n", *scansDir, *dbPath)

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	scanRepo := sqlite.NewScanRepository(db)
	predictionRepo := sqlite.NewPredictionRepository(db)

	files, err := os.ReadDir(*scansDir)
	if err != nil {
		log.Fatalf("Failed to read scans directory: %v", err)
	}

	inserted, existing, skipped := 0, 0, 0
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".jpg" {
			continue
		}

		if scan, err := scanRepo.GetByFilename(file.Name()); err == nil && scan != nil {
			existing++
			continue
		}

		timestamp, label, err := storage.ParseFilename(file.Name())
		if err != nil {
			log.Printf("Skipping %s: %v", file.Name(), err)
			skipped++
			continue
		}

		info, err := file.Info()
		if err != nil {
			log.Printf("Failed to get info for %s: %v", file.Name(), err)
			skipped++
			continue
		}

		scanID, err := scanRepo.Insert(&model.Scan{
			Filename:  file.Name(),
			Timestamp: timestamp,
			FilePath:  filepath.Join(*scansDir, file.Name()),
			FileSize:  info.Size(),
		})
		if err != nil {
			log.Printf("Failed to insert %s: %v", file.Name(), err)
			skipped++
			continue
		}

		// only the best label survives in the file name, its score is lost
		if label != "" {
			if _, err := predictionRepo.Insert(&model.Prediction{ScanID: scanID, Label: label}); err != nil {
				log.Printf("Failed to insert label for %s: %v", file.Name(), err)
			}
		}
		inserted++
	}

	fmt.Printf("Indexed %d scans (%d already present)\n", inserted, existing)
	if skipped > 0 {
		fmt.Printf("Skipped %d files (invalid name or errors)\n", skipped)
	}

	total, err := scanRepo.GetTotalCount(nil)
	if err != nil {
		return
	}
	size, _ := scanRepo.GetTotalSize()
	labels, _ := predictionRepo.GetAllLabels()

	fmt.Printf("\nDatabase statistics:\n")
	fmt.Printf("   Total scans: %d\n", total)
	fmt.Printf("   Total size: %d bytes\n", size)
	fmt.Printf("   Distinct labels: %d\n", len(labels))
}
