package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port             int
	StorageRoot      string
	JWTSecret        string
	Resolutions      []int
	SegmentSeconds   int
	Workers          int
	TranscodeTimeout time.Duration
	MaxUploadSizeMB  int
	LogLevel         string
}

func Load() (*Config, error) {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("PORT", "8000"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	segmentSeconds, err := strconv.Atoi(getEnv("SEGMENT_SECONDS", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid SEGMENT_SECONDS: %w", err)
	}

	workers, err := strconv.Atoi(getEnv("WORKERS", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKERS: %w", err)
	}

	maxUploadSizeMB, err := strconv.Atoi(getEnv("MAX_UPLOAD_SIZE_MB", "500"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_SIZE_MB: %w", err)
	}

	timeout, err := time.ParseDuration(getEnv("TRANSCODE_TIMEOUT", "2h"))
	if err != nil {
		return nil, fmt.Errorf("invalid TRANSCODE_TIMEOUT: %w", err)
	}

	resolutions, err := parseResolutions(getEnv("RESOLUTIONS", "360,480,720,1080"))
	if err != nil {
		return nil, err
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return &Config{
		Port:             port,
		StorageRoot:      getEnv("STORAGE_ROOT", "/data"),
		JWTSecret:        jwtSecret,
		Resolutions:      resolutions,
		SegmentSeconds:   segmentSeconds,
		Workers:          workers,
		TranscodeTimeout: timeout,
		MaxUploadSizeMB:  maxUploadSizeMB,
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}, nil
}

func parseResolutions(raw string) ([]int, error) {
	var heights []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		h, err := strconv.Atoi(part)
		if err != nil || h <= 0 {
			return nil, fmt.Errorf("invalid RESOLUTIONS entry %q", part)
		}
		heights = append(heights, h)
	}
	if len(heights) == 0 {
		return nil, fmt.Errorf("RESOLUTIONS must list at least one height")
	}
	return heights, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
