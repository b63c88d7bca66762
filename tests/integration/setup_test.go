package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/adhamel/storefront/internal/cache"
	"github.com/adhamel/storefront/internal/config"
	"github.com/adhamel/storefront/internal/models"
	"github.com/adhamel/storefront/internal/store"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	if err := runMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
		if err := postgres.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

func setupTestCache(t *testing.T) (*cache.Cache, func()) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(60 * time.Second),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start redis container: %v", err)
	}

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	c := cache.New(&config.RedisConfig{
		Addr:     fmt.Sprintf("%s:%s", host, port.Port()),
		CacheTTL: time.Minute,
	})
	if c == nil {
		t.Fatal("Failed to connect to redis")
	}

	cleanup := func() {
		if err := c.Close(); err != nil {
			t.Logf("Failed to close cache: %v", err)
		}
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return c, cleanup
}

func runMigrations(db *sql.DB) error {
	migrationDir := "../../migrations"
	files, err := os.ReadDir(migrationDir)
	if err != nil {
		return fmt.Errorf("read migration directory: %w", err)
	}

	var migrationFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".up.sql") {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}

	sort.Strings(migrationFiles)

	for _, filename := range migrationFiles {
		filePath := filepath.Join(migrationDir, filename)
		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("read migration file %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", filename, err)
		}
	}

	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Approval: config.ApprovalConfig{DownloadTTL: 7 * 24 * time.Hour},
		Storage:  config.StorageConfig{DownloadBaseURL: "https://assets.test.local/downloads"},
	}
}

func createTestUser(t *testing.T, db *sql.DB, email string) *models.User {
	t.Helper()
	user, err := store.CreateUser(context.Background(), db, email, "Test User", "testpassword1")
	if err != nil {
		t.Fatalf("Create user %s: %v", email, err)
	}
	return user
}

// createTestAdmin bootstraps the first admin directly in SQL; in production
// role changes go through AssignRole, which needs an existing admin.
func createTestAdmin(t *testing.T, db *sql.DB, email string) *models.User {
	t.Helper()
	user := createTestUser(t, db, email)
	_, err := db.Exec(`UPDATE user_roles SET role = 'admin' WHERE user_id = $1`, user.ID)
	if err != nil {
		t.Fatalf("Promote admin %s: %v", email, err)
	}
	return user
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("Parse decimal %q: %v", s, err)
	}
	return d
}

func createTestProduct(t *testing.T, db *sql.DB, adminID uuid.UUID, title, price string) *models.Product {
	t.Helper()
	product, err := store.CreateProduct(context.Background(), db, nil, adminID, store.ProductInput{
		Title:    title,
		Price:    mustDecimal(t, price),
		IsActive: true,
		AssetURL: "https://assets.test.local/files/" + title,
	})
	if err != nil {
		t.Fatalf("Create product %s: %v", title, err)
	}
	return product
}
