package config

import (
	"os"      // For environment variables
	"strconv" // For string to number conversion

	"github.com/joho/godotenv" // For loading .env files
)

// Config holds the application configuration
type Config struct {
	AppPort        string  // Application port
	DBUser         string  // Database user
	DBPassword     string  // Database password
	DBHost         string  // Database host
	DBPort         string  // Database port
	DBName         string  // Database name
	JWTSecret      string  // JWT secret key
	RedisAddr      string  // Redis server address
	RedisPass      string  // Redis password
	RedisDB        int     // Redis database number
	RazorpaySecret string  // Payment gateway HMAC secret
	ReferralBonus  float64 // Bonus credited to a referrer per signup, 0 disables
	IsProd         bool    // Is production environment
}

// getEnv returns an environment variable or a default value
func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	bonus, _ := strconv.ParseFloat(getEnv("REFERRAL_BONUS", "0"), 64)
	return &Config{
		AppPort:        getEnv("APP_PORT", "8080"),
		DBUser:         os.Getenv("DB_USER"),
		DBPassword:     os.Getenv("DB_PASSWORD"),
		DBHost:         getEnv("DB_HOST", "127.0.0.1"),
		DBPort:         getEnv("DB_PORT", "3306"),
		DBName:         os.Getenv("DB_NAME"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		RedisAddr:      getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPass:      os.Getenv("REDIS_PASS"),
		RedisDB:        redisDB,
		RazorpaySecret: os.Getenv("RAZORPAY_KEY_SECRET"),
		ReferralBonus:  bonus,
		IsProd:         os.Getenv("IS_PROD") == "true",
	}
}
