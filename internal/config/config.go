// internal/config/config.go
package config

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"clubbackend/internal/logger"
)

// Variables available everywhere
var (
	baseDir          string
	dataDirectory    string
	uploadsDirectory string
	logsDirectory    string

	// Exported settings
	AllowedOrigins    []string
	AdminPassword     string
	AdminPasswordHash string
	InstagramToken    string
	InstagramUserID   string
	LogFileFormat     string
	SessionCookieName = "club_session"
	DatabaseFile      string
	StockFile         string
	BorrowLogFile     string
	MajorFile         string
	TeaserEntriesFile string
)

// defaultOrigins are used when ALLOWED_ORIGINS is not set.
var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://localhost:5174",
}

// LoadEnv reads the .env file
func LoadEnv() {
	wd, err := os.Getwd()
	if err != nil {
		log.Printf("Could not determine working directory: %v", err)
	}

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file found in %s. Using system environment variables.", wd)
	} else {
		log.Printf("Loaded environment variables from .env file in %s", wd)
	}

	AdminPassword = os.Getenv("ADMIN_PASSWORD")
	AdminPasswordHash = os.Getenv("ADMIN_PASSWORD_HASH")
	InstagramToken = os.Getenv("INSTAGRAM_ACCESS_TOKEN")
	InstagramUserID = os.Getenv("INSTAGRAM_USER_ID")
}

// LoggerConfig returns a logger.Config struct populated from environment
func LoggerConfig() logger.Config {
	logDir := os.Getenv("LOGS_DIRECTORY")
	if logDir == "" {
		logDir = "./logs"
	}

	logFormat := os.Getenv("LOG_FILE_FORMAT")
	if logFormat == "" {
		logFormat = "server_%s.log"
	}

	timezone := os.Getenv("TIME_ZONE")
	if timezone == "" {
		timezone = "Asia/Seoul"
	}

	return logger.Config{
		LogsDirectory: logDir,
		LogFileFormat: logFormat,
		TimeZone:      timezone,
	}
}

// ConfigurePaths sets up folders and derived file paths
func ConfigurePaths() {
	wd, err := os.Getwd()
	if err != nil {
		logger.LogFatal("Failed to get working directory: %v", err)
	}
	baseDir = wd

	dataDirectory = os.Getenv("DATA_DIRECTORY")
	if dataDirectory == "" {
		dataDirectory = filepath.Join(baseDir, "data")
	}

	uploadsDirectory = os.Getenv("UPLOADS_DIRECTORY")
	if uploadsDirectory == "" {
		uploadsDirectory = filepath.Join(baseDir, "uploads")
	}

	logsDirectory = os.Getenv("LOGS_DIRECTORY")
	if logsDirectory == "" {
		logsDirectory = filepath.Join(baseDir, "logs")
	}

	for _, dir := range []string{dataDirectory, uploadsDirectory, logsDirectory} {
		if err := os.MkdirAll(dir, 0775); err != nil {
			logger.LogFatal("Failed to create directory %s: %v", dir, err)
		}
	}

	DatabaseFile = filepath.Join(dataDirectory, "database.db")
	StockFile = filepath.Join(dataDirectory, "stock.csv")
	BorrowLogFile = filepath.Join(dataDirectory, "borrow_log.csv")
	MajorFile = filepath.Join(dataDirectory, "major.csv")
	TeaserEntriesFile = filepath.Join(dataDirectory, "teaser_entries.csv")
	LogFileFormat = filepath.Join(logsDirectory, "server_%s.log")
}

// LoadCORSConfig loads the allowed-origin list
func LoadCORSConfig() {
	raw := os.Getenv("ALLOWED_ORIGINS")
	if raw == "" {
		AllowedOrigins = defaultOrigins
		logger.LogWarn("ALLOWED_ORIGINS not set, allowing local development origins only")
		return
	}

	AllowedOrigins = nil
	for _, origin := range strings.Split(raw, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			AllowedOrigins = append(AllowedOrigins, origin)
		}
	}
	logger.LogInfo("Allowed origins: %s", strings.Join(AllowedOrigins, ", "))
}

// CheckAdminConfig warns when no admin credential exists at all
func CheckAdminConfig() {
	if AdminPassword == "" && AdminPasswordHash == "" {
		logger.LogWarn("Neither ADMIN_PASSWORD nor ADMIN_PASSWORD_HASH is set; admin login is disabled")
	}
}

//
// --- Getters (exported) ---
//

func DataDirectory() string {
	return dataDirectory
}

func UploadsDirectory() string {
	return uploadsDirectory
}

func LogsDirectory() string {
	return logsDirectory
}
