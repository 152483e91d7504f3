package config

import (
	"os"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	OAuth      OAuthConfig
	Cloudinary CloudinaryConfig
	Firebase   FirebaseConfig
	Stripe     StripeConfig
	VideoRoom  VideoRoomConfig
	Ledger     LedgerConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	Issuer        string
}

type OAuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

type FirebaseConfig struct {
	ServiceAccountPath string
}

// StripeConfig covers both charge (purchase) and transfer (payout) flows.
type StripeConfig struct {
	APIKey                string
	PurchaseWebhookSecret string
	TransferWebhookSecret string
}

// VideoRoomConfig for the Daily-style room provisioning API.
type VideoRoomConfig struct {
	BaseURL string
	APIKey  string
}

// LedgerConfig holds money-movement policy knobs.
type LedgerConfig struct {
	MinWithdrawalCents int64         // withdrawal requests below this are rejected
	EarningsHold       time.Duration // pending -> available delay
	BookingGrace       time.Duration // join window after scheduled start
	PaymentExpiry      time.Duration // unconfirmed purchases expire after this
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         envOr("PORT", "8080"),
			Env:          envOr("APP_ENV", "development"),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             envOr("DATABASE_DSN", "lynxx:lynxx@tcp(localhost:3306)/lynxx?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			AccessSecret:  envOr("JWT_ACCESS_SECRET", "change-me-in-production"),
			RefreshSecret: envOr("JWT_REFRESH_SECRET", "change-me-refresh"),
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 168 * time.Hour,
			Issuer:        "lynxx",
		},
		OAuth: OAuthConfig{
			GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			GoogleRedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
			APIKey:    os.Getenv("CLOUDINARY_API_KEY"),
			APISecret: os.Getenv("CLOUDINARY_API_SECRET"),
		},
		Firebase: FirebaseConfig{
			ServiceAccountPath: os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH"),
		},
		Stripe: StripeConfig{
			APIKey:                os.Getenv("STRIPE_API_KEY"),
			PurchaseWebhookSecret: os.Getenv("STRIPE_PURCHASE_WEBHOOK_SECRET"),
			TransferWebhookSecret: os.Getenv("STRIPE_TRANSFER_WEBHOOK_SECRET"),
		},
		VideoRoom: VideoRoomConfig{
			BaseURL: envOr("VIDEO_ROOM_BASE_URL", "https://api.daily.co/v1"),
			APIKey:  os.Getenv("VIDEO_ROOM_API_KEY"),
		},
		Ledger: LedgerConfig{
			MinWithdrawalCents: 2500,
			EarningsHold:       48 * time.Hour,
			BookingGrace:       5 * time.Minute,
			PaymentExpiry:      30 * time.Minute,
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
