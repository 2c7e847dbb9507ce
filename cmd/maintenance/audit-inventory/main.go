package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation/internal/config"
	"github.com/smarttransit/seat-reservation/internal/database"
	"github.com/smarttransit/seat-reservation/internal/models"
	"github.com/smarttransit/seat-reservation/internal/services"
	"github.com/spf13/pflag"
)

func main() {
	var (
		dbURLFlag string
		busID     string
		date      string
	)
	flagSet := pflag.NewFlagSet("audit-inventory", pflag.ExitOnError)
	flagSet.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flagSet.StringVar(&busID, "bus", "", "only audit this bus")
	flagSet.StringVar(&date, "date", "", "only audit this travel date (YYYY-MM-DD)")
	_ = flagSet.Parse(os.Args[1:])

	// Try loading .env from current working directory (optional)
	_ = godotenv.Load()

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set and --database-url was not provided")
	}

	var filter models.BookingFilter
	if busID != "" {
		filter.BusID = &busID
	}
	if date != "" {
		d, err := models.ParseTravelDate(date)
		if err != nil {
			log.Fatalf("invalid --date: %v", err)
		}
		filter.TravelDate = &d
	}

	// Build minimal database config without loading full app config
	db, err := database.NewConnection(config.DatabaseConfig{
		URL:                dbURL,
		MaxConnections:     2,
		MaxIdleConnections: 1,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stderr)

	auditor := services.NewAuditService(
		database.NewBookingRepository(db.DB),
		database.NewCatalogRepository(db.DB),
		logger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	report, err := auditor.Run(ctx, filter)
	if err != nil {
		log.Fatalf("audit failed: %v", err)
	}

	out := json.NewEncoder(os.Stdout)
	out.SetIndent("", "  ")
	if err := out.Encode(report); err != nil {
		log.Fatalf("failed to write report: %v", err)
	}

	if len(report.Findings) > 0 {
		fmt.Fprintf(os.Stderr, "%d inconsistent seat inventories found\n", len(report.Findings))
		os.Exit(1)
	}
}
