package initial

import (
	"crypto/tls"
	"edu-go/pkg/config"
	"edu-go/pkg/models"
	"fmt"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"net/http"
)

// ConDB opens the database selected by DB_DRIVER.
func ConDB(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres", "":
		dialector = postgres.Open(cfg.PostgresDSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}
	return db, nil
}

func SyncDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Course{},
		&models.CourseSection{},
		&models.Lesson{},
		&models.LessonCompletion{},
		&models.CourseMaterial{},
		&models.Enrollment{},
		&models.CourseReview{},
		&models.ReviewVote{},
	)
}

// InitES returns nil when no address is configured; search is then disabled.
func InitES(cfg *config.Config) (*elasticsearch.Client, error) {
	if cfg.ESAddress == "" {
		return nil, nil
	}
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.ESAddress},
		Username:  cfg.ESUser,
		Password:  cfg.ESPassword,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	})
}

func InitRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})
}
