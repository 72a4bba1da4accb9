package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string

	// Kakao Local API
	KakaoRESTAPIKey  string
	KakaoAPIBaseURL  string
	GeocodeTimeout   time.Duration
	GeocodeRateLimit float64 // requests per second, 0 disables limiting

	// Device geolocation
	GeolocationTimeout time.Duration
	MQTTBrokerURL      string // empty disables the device watch feed
	MQTTTopicPrefix    string
	MQTTClientID       string

	// Reports
	SubmitDelay time.Duration // simulated submit latency
	FallbackLat float64       // municipality centroid
	FallbackLng float64
	SeedReports bool

	AllowedOrigins []string
}

// Load loads environment variables and returns a Config struct
func Load() *Config {
	_ = godotenv.Load()

	allowedOrigins := strings.Split(
		getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		",",
	)
	for i := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(allowedOrigins[i])
	}

	return &Config{
		Port:               getEnv("APP_PORT", "8780"),
		Environment:        getEnv("ENVIRONMENT", "development"),
		KakaoRESTAPIKey:    getEnv("KAKAO_REST_API_KEY", ""),
		KakaoAPIBaseURL:    getEnv("KAKAO_API_BASE_URL", "https://dapi.kakao.com"),
		GeocodeTimeout:     time.Duration(getEnvAsInt("GEOCODE_TIMEOUT_SECONDS", 5)) * time.Second,
		GeocodeRateLimit:   getEnvAsFloat("GEOCODE_RATE_PER_SECOND", 10),
		GeolocationTimeout: time.Duration(getEnvAsInt("GEOLOCATION_TIMEOUT_SECONDS", 10)) * time.Second,
		MQTTBrokerURL:      getEnv("MQTT_BROKER_URL", ""),
		MQTTTopicPrefix:    getEnv("MQTT_TOPIC_PREFIX", "devices"),
		MQTTClientID:       getEnv("MQTT_CLIENT_ID", "civic-reports"),
		SubmitDelay:        time.Duration(getEnvAsInt("SUBMIT_DELAY_MS", 1000)) * time.Millisecond,
		FallbackLat:        getEnvAsFloat("FALLBACK_LAT", 36.3527),
		FallbackLng:        getEnvAsFloat("FALLBACK_LNG", 128.6972),
		SeedReports:        getEnvAsBool("SEED_REPORTS", false),
		AllowedOrigins:     allowedOrigins,
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return fallback
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		log.Printf("invalid int for %s, defaulting to %v\n", key, fallback)
		return fallback
	}
	return val
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valStr := os.Getenv(key)
	if valStr == "" {
		return fallback
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil {
		log.Printf("invalid float for %s, defaulting to %v\n", key, fallback)
		return fallback
	}
	return val
}

func getEnvAsBool(key string, fallback bool) bool {
	valStr := os.Getenv(key)
	if valStr == "" {
		return fallback
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("invalid bool for %s, defaulting to %v\n", key, fallback)
		return fallback
	}
	return val
}
