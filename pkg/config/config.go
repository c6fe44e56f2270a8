package config

import (
	"fmt"
	"log"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DBDriver   string `env:"DB_DRIVER" envDefault:"postgres"`
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName     string `env:"DB_NAME" envDefault:"edu"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"edu.db"`

	Secret      string   `env:"SECRET" envDefault:"secret"`
	ServerAddr  string   `env:"SERVER_ADDR" envDefault:":8080"`
	PublicURL   string   `env:"PUBLIC_URL" envDefault:"http://localhost:8080"`
	CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"http://localhost:5176" envSeparator:","`
	LogMode     string   `env:"LOG_MODE" envDefault:"dev"`

	RedisURL      string `env:"REDIS_URL" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	ESAddress  string `env:"ES"`
	ESUser     string `env:"ES_USER" envDefault:"elastic"`
	ESPassword string `env:"PASS_ES"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"course_events"`
	KafkaGroup   string   `env:"KAFKA_GROUP" envDefault:"course-events-consumer-group"`

	SMTPHost   string `env:"SMTP"`
	SMTPAddr   string `env:"SMTP_ADDR"`
	Email      string `env:"EMAIL"`
	EmailPass  string `env:"EMAILPASS"`
	PathToHTML string `env:"PATH_TO_HTML" envDefault:"templates/"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, using process environment")
	}
	return Parse()
}

func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}
