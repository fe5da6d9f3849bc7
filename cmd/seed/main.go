package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/lib/pq"

	"whatsdrip/internal/config"
	"whatsdrip/internal/models"
)

// ANSI color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

// Command-line flags
var (
	companyID  = flag.String("company", "0123", "Company that owns the seeded templates")
	templates  = flag.Int("templates", 2, "Number of templates to create")
	stepsCount = flag.Int("steps", 5, "Number of steps per template")
	clearData  = flag.Bool("clear", false, "Clear existing seed data before inserting")
	showHelp   = flag.Bool("help", false, "Show usage information")
)

const seedPrefix = "seed-drip-"

func main() {
	flag.Parse()

	if *showHelp {
		printUsage()
		os.Exit(0)
	}

	// Load .env file (ignore error if not present)
	_ = godotenv.Load()

	printInfo("=== Whatsdrip Template Seeder ===\n")

	cfg, err := config.Load()
	if err != nil {
		printError(fmt.Sprintf("Failed to load configuration: %v", err))
		os.Exit(1)
	}

	printInfo("Connecting to database...")
	db, err := sql.Open("postgres", cfg.GetDatabaseDSN())
	if err != nil {
		printError(fmt.Sprintf("Failed to open database connection: %v", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		printError(fmt.Sprintf("Failed to ping database: %v", err))
		os.Exit(1)
	}
	printSuccess("✓ Connected to database\n")

	if *clearData {
		if err := clearSeedData(db, *companyID); err != nil {
			printError(fmt.Sprintf("Failed to clear seed data: %v", err))
			os.Exit(1)
		}
	}

	created := 0
	for i := 1; i <= *templates; i++ {
		tmpl := buildTemplate(*companyID, fmt.Sprintf("%s%d", seedPrefix, i), *stepsCount)
		ok, err := seedTemplate(db, tmpl)
		if err != nil {
			printError(fmt.Sprintf("Failed to seed template %s: %v", tmpl.ID, err))
			os.Exit(1)
		}
		if ok {
			created++
		}
	}

	printInfo("\n=== Seeding Summary ===")
	printSuccess(fmt.Sprintf("✓ Templates created: %d (skipped %d existing)", created, *templates-created))
	printInfo("\nSeeding completed successfully!")
}

// buildTemplate generates a drip that cycles through every content type and
// timing mode: relative minutes, instantaneous, hours, and a 09:00 clock step
// opening each new day.
func buildTemplate(companyID, templateID string, count int) *models.Template {
	tmpl := &models.Template{
		CompanyID: companyID,
		ID:        templateID,
		Name:      fmt.Sprintf("Seeded Drip %s", templateID[len(seedPrefix):]),
		Status:    models.TemplateStatusActive,
	}

	tag := "drip-" + templateID
	for i := 0; i < count; i++ {
		day := i/3 + 1
		step := models.Step{
			CompanyID:  companyID,
			TemplateID: templateID,
			DayNumber:  day,
			Sequence:   i%3 + 1,
			Status:     "active",
		}

		switch i % 4 {
		case 0:
			step.ContentType = models.ContentText
			step.Message = fmt.Sprintf("Hi {first_name}, message %d of %d", i+1, count)
		case 1:
			step.ContentType = models.ContentImage
			step.Message = "A picture for you"
			step.MediaURL = fmt.Sprintf("https://cdn.example.com/seed/%d.png", i+1)
			step.MimeType = "image/png"
		case 2:
			step.ContentType = models.ContentDocument
			step.Message = "Your brochure, {first_name}"
			step.MediaURL = "https://cdn.example.com/seed/brochure.pdf"
			step.FileName = "brochure.pdf"
			step.MimeType = "application/pdf"
		case 3:
			step.ContentType = models.ContentVideo
			step.Message = "Watch this"
			step.MediaURL = "https://cdn.example.com/seed/intro.mp4"
			step.MimeType = "video/mp4"
		}

		switch {
		case step.Sequence == 1 && day > 1:
			step.UseClockTime = true
			step.ClockHour = 9
		case i%3 == 1:
			step.DelayAfter = `{"isInstantaneous":true}`
		case i%3 == 2:
			step.DelayAfter = `{"value":2,"unit":"hours"}`
		default:
			step.DelayAfter = `{"value":1,"unit":"minute"}`
		}

		if i == 0 {
			step.AddTags = []string{tag}
		}
		if i == count-1 {
			step.RemoveTags = []string{tag}
		}

		tmpl.Steps = append(tmpl.Steps, step)
	}

	return tmpl
}

// seedTemplate inserts a template and its steps; existing templates are skipped
func seedTemplate(db *sql.DB, tmpl *models.Template) (bool, error) {
	tx, err := db.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO followup_templates (company_id, template_id, name, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (company_id, template_id) DO NOTHING
	`, tmpl.CompanyID, tmpl.ID, tmpl.Name, tmpl.Status)
	if err != nil {
		return false, fmt.Errorf("failed to insert template: %w", err)
	}

	if rowsAffected, _ := result.RowsAffected(); rowsAffected == 0 {
		return false, nil
	}

	for _, step := range tmpl.Steps {
		_, err := tx.Exec(`
			INSERT INTO followup_steps
				(company_id, template_id, day_number, sequence, message_type, message, media_url, file_name, mime_type,
				 use_clock_time, clock_hour, clock_minute, delay_after, add_tags, remove_tags, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		`,
			step.CompanyID, step.TemplateID, step.DayNumber, step.Sequence, step.ContentType, step.Message,
			nullable(step.MediaURL), nullable(step.FileName), nullable(step.MimeType),
			step.UseClockTime, step.ClockHour, step.ClockMinute, nullable(step.DelayAfter),
			pq.Array(nonNil(step.AddTags)), pq.Array(nonNil(step.RemoveTags)), step.Status,
		)
		if err != nil {
			return false, fmt.Errorf("failed to insert step %d/%d: %w", step.DayNumber, step.Sequence, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	printSuccess(fmt.Sprintf("✓ Seeded %s with %d steps", tmpl.ID, len(tmpl.Steps)))
	return true, nil
}

// clearSeedData removes templates created by this seeder. Steps cascade.
func clearSeedData(db *sql.DB, companyID string) error {
	printWarning("Clearing existing seed data...")

	_, err := db.Exec(
		"DELETE FROM followup_templates WHERE company_id = $1 AND template_id LIKE $2",
		companyID, seedPrefix+"%",
	)
	if err != nil {
		return fmt.Errorf("failed to delete templates: %w", err)
	}

	printSuccess("✓ Seed data cleared\n")
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// printSuccess prints a success message in green
func printSuccess(msg string) {
	fmt.Printf("%s%s%s\n", colorGreen, msg, colorReset)
}

// printError prints an error message in red
func printError(msg string) {
	fmt.Fprintf(os.Stderr, "%s%s%s\n", colorRed, msg, colorReset)
}

// printInfo prints an info message in cyan
func printInfo(msg string) {
	fmt.Printf("%s%s%s\n", colorCyan, msg, colorReset)
}

// printWarning prints a warning message in yellow
func printWarning(msg string) {
	fmt.Printf("%s%s%s\n", colorYellow, msg, colorReset)
}

func printUsage() {
	printInfo("=== Whatsdrip Template Seeder ===\n")
	fmt.Println("Usage: go run ./cmd/seed [flags]")
	fmt.Println("\nFlags:")
	flag.PrintDefaults()
	fmt.Println("\nExamples:")
	fmt.Println("  go run ./cmd/seed")
	fmt.Println("  go run ./cmd/seed -company=0456 -templates=3 -steps=8")
	fmt.Println("  go run ./cmd/seed -clear")
	fmt.Println("\nNotes:")
	fmt.Println("  - Seeded template ids use the prefix " + seedPrefix)
	fmt.Println("  - Existing templates are skipped, so reruns are safe")
}
