package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr          string
	DBDSN             string
	JWTSecret         string
	BaseURL           string
	CORSOrigins       []string
	AllowRegistration bool
}

// Load reads .env (when present) and the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found")
	}

	return Config{
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		DBDSN:             os.Getenv("DB_DSN"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		BaseURL:           getenv("BASE_URL", "http://localhost:8080"),
		CORSOrigins:       splitCSV(getenv("CORS_ORIGINS", "http://localhost:5173")),
		AllowRegistration: os.Getenv("ALLOW_REGISTRATION") == "true",
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
