package config

import (
	"crypto/rsa"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const defaultJWTSecret = "change-me-in-production"

type Config struct {
	AppName       string
	AppVersion    string
	Port          string
	Debug         bool
	SchoolName    string
	SchoolAddress string

	StoreDriver   string // mongo | postgres | memory
	MongoURL      string
	MongoDBName   string
	DatabaseURL   string
	RedisAddress  string
	RedisPassword string

	JWTSecret          string
	JWTPrivateKey      *rsa.PrivateKey
	JWTPublicKey       *rsa.PublicKey
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	S3Endpoint         string
	S3BucketPhotos     string
	S3BucketReceipts   string
	LocalStorageDir    string
	PublicBaseURL      string

	FirebaseCredentialsPath string
	RabbitMQURL             string
	PushQueueName           string

	SchoolHoursStart      string
	SchoolHoursEnd        string
	CORSOrigins           []string
	CORSAllowedHeaders    []string
	AllowEditDefaultRoles bool

	// Seeded at startup when both are set and the account does not exist.
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// Load reads the environment, after an optional .env file. Invalid required
// values panic at startup.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("config: could not read .env file")
	}

	cfg := &Config{
		AppName:       getEnv("APP_NAME", "School Service"),
		AppVersion:    getEnv("APP_VERSION", "unknown"),
		Port:          getEnv("PORT", "8080"),
		Debug:         getBool("DEBUG", false),
		SchoolName:    os.Getenv("SCHOOL_NAME"),
		SchoolAddress: os.Getenv("SCHOOL_ADDRESS"),

		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", "mongo")),
		MongoURL:      getEnv("MONGODB_URL", "mongodb://localhost:27017"),
		MongoDBName:   getEnv("MONGODB_DB_NAME", "school"),
		DatabaseURL:   os.Getenv("DB_CONNECTION_STRING"),
		RedisAddress:  os.Getenv("REDIS_ADDRESS"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		JWTSecret:          getEnv("JWT_SECRET_KEY", defaultJWTSecret),
		AccessTokenExpiry:  time.Duration(getInt("JWT_ACCESS_TOKEN_EXPIRE_MINUTES", 60)) * time.Minute,
		RefreshTokenExpiry: time.Duration(getInt("JWT_REFRESH_TOKEN_EXPIRE_DAYS", 30)) * 24 * time.Hour,

		AWSRegion:          getEnv("AWS_REGION", "ap-south-1"),
		AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		S3Endpoint:         os.Getenv("S3_ENDPOINT"),
		S3BucketPhotos:     os.Getenv("S3_BUCKET_PHOTOS"),
		S3BucketReceipts:   os.Getenv("S3_BUCKET_RECEIPTS"),
		LocalStorageDir:    getEnv("LOCAL_STORAGE_DIR", "./uploads"),
		PublicBaseURL:      getEnv("PUBLIC_BASE_URL", "http://localhost:8080/files"),

		FirebaseCredentialsPath: os.Getenv("FIREBASE_CREDENTIALS_PATH"),
		RabbitMQURL:             os.Getenv("RABBITMQ_URL"),
		PushQueueName:           getEnv("PUSH_QUEUE_NAME", "push_notifications"),

		SchoolHoursStart:      getEnv("SCHOOL_HOURS_START", "08:00"),
		SchoolHoursEnd:        getEnv("SCHOOL_HOURS_END", "18:00"),
		CORSOrigins:           splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		CORSAllowedHeaders:    splitList(os.Getenv("CORS_ALLOWED_HEADERS")),
		AllowEditDefaultRoles: getBool("ALLOW_EDIT_DEFAULT_ROLES", false),

		BootstrapAdminEmail:    os.Getenv("ADMIN_EMAIL"),
		BootstrapAdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}

	switch cfg.StoreDriver {
	case "mongo", "memory":
	case "postgres":
		if cfg.DatabaseURL == "" {
			panic("DB_CONNECTION_STRING environment variable is required for STORE_DRIVER=postgres")
		}
	default:
		panic("unsupported STORE_DRIVER: " + cfg.StoreDriver)
	}

	if privateKeyPath := os.Getenv("PRIVATE_KEY_PATH"); privateKeyPath != "" {
		privateKey, err := loadPrivateKey(privateKeyPath)
		if err != nil {
			panic("Failed to load private key: " + err.Error())
		}
		publicKey, err := loadPublicKey(getEnv("PUBLIC_KEY_PATH", "/etc/certs/public.pem"))
		if err != nil {
			panic("Failed to load public key: " + err.Error())
		}
		cfg.JWTPrivateKey = privateKey
		cfg.JWTPublicKey = publicKey
	} else if cfg.JWTSecret == defaultJWTSecret && !cfg.Debug {
		panic("JWT_SECRET_KEY must be set outside DEBUG mode")
	}

	return cfg
}

// NotifierConfig holds what the push notifier needs.
type NotifierConfig struct {
	RabbitMQURL             string
	PushQueueName           string
	FirebaseCredentialsPath string
	HealthPort              string
	Debug                   bool
}

func LoadNotifierConfig() *NotifierConfig {
	_ = godotenv.Load()

	rabbitURL := os.Getenv("RABBITMQ_URL")
	if rabbitURL == "" {
		panic("RABBITMQ_URL environment variable is required")
	}

	return &NotifierConfig{
		RabbitMQURL:             rabbitURL,
		PushQueueName:           getEnv("PUSH_QUEUE_NAME", "push_notifications"),
		FirebaseCredentialsPath: os.Getenv("FIREBASE_CREDENTIALS_PATH"),
		HealthPort:              getEnv("NOTIFIER_HEALTH_PORT", "8090"),
		Debug:                   getBool("DEBUG", false),
	}
}

// NewLogger builds the process logger: JSON in production, text in debug.
func NewLogger(debug bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if debug {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		panic(key + " must be a boolean: " + err.Error())
	}
	return b
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		panic(key + " must be a positive integer")
	}
	return n
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(keyData)
	if err != nil {
		return nil, err
	}
	return privateKey, nil
}

func loadPublicKey(path string) (*rsa.PublicKey, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(keyData)
	if err != nil {
		return nil, err
	}
	return publicKey, nil
}
