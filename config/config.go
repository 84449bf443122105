package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadENV loads variables from .env unless GO_ENV says we are deployed.
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil {
			return err
		}
	}

	return nil
}

type EnviornmentVariable struct {
	// All variables
	GO_ENV       string
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	PORT         int
	// Redis Configuration
	REDIS_URL string
	// Failure report retention in the cache, minutes
	REPORT_TTL_MINUTES int
	// Import job retention before the cron purge, days
	IMPORT_RETENTION_DAYS int
	// Object storage (upload/report archive) Configuration
	ARCHIVE_ACCESS_KEY string
	ARCHIVE_SECRET_KEY string
	ARCHIVE_BUCKET     string
	ARCHIVE_REGION     string
	ARCHIVE_ENDPOINT   string
}

func Get() (*EnviornmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	// Database defaults
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}

	reportTTL, err := strconv.Atoi(os.Getenv("REPORT_TTL_MINUTES"))
	if err != nil || reportTTL <= 0 {
		reportTTL = 30
	}

	retention, err := strconv.Atoi(os.Getenv("IMPORT_RETENTION_DAYS"))
	if err != nil || retention <= 0 {
		retention = 90
	}

	envVariables := &EnviornmentVariable{
		GO_ENV:       os.Getenv("GO_ENV"),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      dbHost,
		DB_PORT:      dbPort,
		DB_SSL_MODE:  os.Getenv("DB_SSL_MODE"),
		PORT:         port,
		// Redis
		REDIS_URL:          os.Getenv("REDIS_URL"),
		REPORT_TTL_MINUTES: reportTTL,
		// Import jobs
		IMPORT_RETENTION_DAYS: retention,
		// Archive
		ARCHIVE_ACCESS_KEY: os.Getenv("ARCHIVE_ACCESS_KEY"),
		ARCHIVE_SECRET_KEY: os.Getenv("ARCHIVE_SECRET_KEY"),
		ARCHIVE_BUCKET:     os.Getenv("ARCHIVE_BUCKET"),
		ARCHIVE_REGION:     os.Getenv("ARCHIVE_REGION"),
		ARCHIVE_ENDPOINT:   os.Getenv("ARCHIVE_ENDPOINT"),
	}

	return envVariables, nil
}
