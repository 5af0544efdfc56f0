package database

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"trade-closeout/internal/models"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Init подключается к postgres с экспоненциальными повторами (до connectTimeout),
// затем выполняет миграции и создаёт учётные записи по умолчанию.
func Init(ctx context.Context, dsn string, connectTimeout time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = connectTimeout

	attempt := 0
	var db *gorm.DB
	err := backoff.Retry(func() error {
		attempt++
		slog.Info("connecting to DB", "attempt", attempt)

		conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
		if err != nil {
			slog.Warn("failed to connect to DB", "attempt", attempt, "error", err)
			return err
		}
		db = conn
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return fmt.Errorf("connect to db after %d attempts: %w", attempt, err)
	}
	slog.Info("connected to DB successfully")

	return Setup(db)
}

// Setup делает db глобальной, мигрирует схему и заводит пользователей.
// Используется и тестами (sqlite в памяти).
func Setup(db *gorm.DB) error {
	DB = db

	// миграции
	err := DB.AutoMigrate(
		&models.User{},
		&models.Trade{},
		&models.Acceptance{},
		&models.Defect{},
		&models.Task{},
		&models.Invoice{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	createDefaultAdmin()
	seedDefaultUsers()
	return nil
}

// админ только из кода/конфига
func createDefaultAdmin() {
	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = "admin@trade.local"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "Admin123!"
	}

	var count int64
	if err := DB.Model(&models.User{}).
		Where("role = ?", models.RoleAdmin).
		Count(&count).Error; err != nil {
		slog.Error("failed to check admin user", "error", err)
		return
	}
	if count > 0 {
		return
	}

	if err := createUser(username, password, models.RoleAdmin); err != nil {
		slog.Error("failed to create default admin", "error", err)
		return
	}
	slog.Info("created default admin user", "username", username)
}

// SeedUser — учётная запись для демо.
type SeedUser struct {
	Username string
	Password string
	Role     models.UserRole
}

// DefaultUsers — заказчик и подрядчик для демо и сквозных тестов.
var DefaultUsers = []SeedUser{
	{Username: "client@trade.local", Password: "Client123!", Role: models.RoleClient},
	{Username: "contractor@trade.local", Password: "Contractor123!", Role: models.RoleContractor},
}

func seedDefaultUsers() {
	for _, u := range DefaultUsers {
		var count int64
		if err := DB.Model(&models.User{}).
			Where("username = ?", u.Username).
			Count(&count).Error; err != nil {
			slog.Error("failed to check seed user", "username", u.Username, "error", err)
			continue
		}
		if count > 0 {
			// уже есть — пропускаем
			continue
		}

		if err := createUser(u.Username, u.Password, u.Role); err != nil {
			slog.Error("failed to create seed user", "username", u.Username, "error", err)
			continue
		}
		slog.Info("created seed user", "username", u.Username, "role", u.Role)
	}
}

func createUser(username, password string, role models.UserRole) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return DB.Create(&models.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
	}).Error
}
