package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Database holds the database connection pool
type Database struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// NewDatabase creates a new database connection with retry logic
func NewDatabase() (*Database, error) {
	return NewDatabaseWithRetry(5, time.Second)
}

// NewDatabaseWithRetry creates a new database connection with configurable retry logic
func NewDatabaseWithRetry(maxRetries int, initialDelay time.Duration) (*Database, error) {
	// Prefer DATABASE_URL if provided (single DSN)
	var poolConfig *pgxpool.Config
	var err error
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		poolConfig, err = pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
	} else {
		config := getConfigFromEnv()

		// Build connection string
		var connStr string
		if config.Password == "" {
			connStr = fmt.Sprintf(
				"host=%s port=%d user=%s dbname=%s sslmode=%s",
				config.Host,
				config.Port,
				config.User,
				config.DBName,
				config.SSLMode,
			)
		} else {
			connStr = fmt.Sprintf(
				"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
				config.Host,
				config.Port,
				config.User,
				config.Password,
				config.DBName,
				config.SSLMode,
			)
		}

		poolConfig, err = pgxpool.ParseConfig(connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse database config: %w", err)
		}
	}

	// Set pool settings
	poolConfig.MaxConns = 30
	poolConfig.MinConns = 0
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Attempt to connect with retry logic for serverless databases
	var pool *pgxpool.Pool
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		log.Printf("[ORDER-DB] Connection attempt %d/%d to database %s@%s:%d",
			attempt, maxRetries, poolConfig.ConnConfig.User, poolConfig.ConnConfig.Host, poolConfig.ConnConfig.Port)

		pool, err = pgxpool.NewWithConfig(context.Background(), poolConfig)
		if err != nil {
			lastErr = fmt.Errorf("failed to create connection pool: %w", err)
			log.Printf("[ORDER-DB] Failed to create pool (attempt %d): %v", attempt, err)
			if attempt < maxRetries {
				delay := time.Duration(attempt-1) * initialDelay
				log.Printf("[ORDER-DB] Retrying in %v...", delay)
				time.Sleep(delay)
			}
			continue
		}

		// Test the connection with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = pool.Ping(ctx)
		cancel()

		if err == nil {
			log.Printf("[ORDER-DB] Successfully connected to database on attempt %d", attempt)
			break
		}

		lastErr = fmt.Errorf("failed to ping database: %w", err)
		log.Printf("[ORDER-DB] Connection failed (attempt %d): %v", attempt, err)
		pool.Close()
		pool = nil

		if attempt < maxRetries {
			// Exponential backoff: 1s, 2s, 4s, 8s, 16s
			delay := initialDelay * time.Duration(1<<(attempt-1))
			log.Printf("[ORDER-DB] Retrying in %v...", delay)
			time.Sleep(delay)
		}
	}

	if pool == nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, lastErr)
	}

	db := &Database{Pool: pool}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.InitSchema(ctx); err != nil {
		log.Printf("[ORDER-DB] Warning: Failed to initialize database schema: %v", err)
		// Don't fail here - schema might be initialized later
	}

	log.Println("[ORDER-DB] Database connection established successfully")
	return db, nil
}

// Close closes the database connection pool
func (db *Database) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Println("Order service database connection pool closed")
	}
}

// Health checks if the database is healthy
func (db *Database) Health(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// InitSchema creates the order-service relations if missing and verifies the
// collaborator tables it only reads from.
func (db *Database) InitSchema(ctx context.Context) error {
	// The address book is owned by another subsystem; this service only
	// references it. Warn instead of failing so local bring-up order does
	// not matter.
	var hasAddresses bool
	if err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = 'addresses'
		);
	`).Scan(&hasAddresses); err != nil {
		return fmt.Errorf("failed to check addresses table: %w", err)
	}
	if !hasAddresses {
		log.Println("[ORDER-DB] Warning: addresses table not found; order shipping references will be unconstrained")
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id SERIAL PRIMARY KEY,
			name VARCHAR(80) NOT NULL,
			description VARCHAR(500) NOT NULL,
			category VARCHAR(20) NOT NULL,
			image TEXT NOT NULL DEFAULT 'https://example.com/default_image.jpg'
		);`,
		`CREATE TABLE IF NOT EXISTS portions (
			id SERIAL PRIMARY KEY,
			product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			size VARCHAR(10) NOT NULL,
			optimal_stock INTEGER NOT NULL DEFAULT 10,
			stock INTEGER NOT NULL,
			price NUMERIC(5,2) NOT NULL,
			CONSTRAINT non_negative_stock CHECK (stock >= 0),
			CONSTRAINT non_negative_price CHECK (price >= 0),
			CONSTRAINT uq_portions_product_size UNIQUE (product_id, size)
		);`,
		`CREATE TABLE IF NOT EXISTS orders (
			id SERIAL PRIMARY KEY,
			user_id INTEGER NOT NULL,
			total_price NUMERIC(10,2) NOT NULL,
			date TIMESTAMP NOT NULL,
			status VARCHAR(20) NOT NULL,
			stripe_session_id TEXT,
			stripe_payment_id TEXT,
			delivery_method VARCHAR(20) NOT NULL,
			payment_status VARCHAR(20) NOT NULL,
			shipping_address_id INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS cart_items (
			id SERIAL PRIMARY KEY,
			user_id INTEGER NOT NULL,
			product_id INTEGER NOT NULL REFERENCES products(id),
			portion_id INTEGER NOT NULL REFERENCES portions(id),
			quantity INTEGER NOT NULL,
			price NUMERIC(5,2) NOT NULL,
			ordered BOOLEAN NOT NULL DEFAULT FALSE,
			order_id INTEGER REFERENCES orders(id),
			CONSTRAINT non_negative_quantity CHECK (quantity >= 1),
			CONSTRAINT cart_item_order_association_check CHECK (
				(ordered = TRUE AND order_id IS NOT NULL) OR
				(ordered = FALSE AND order_id IS NULL)
			)
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id SERIAL PRIMARY KEY,
			admin_id INTEGER,
			order_id INTEGER NOT NULL UNIQUE REFERENCES orders(id) ON DELETE CASCADE,
			assigned_at TIMESTAMP,
			completed_at TIMESTAMP,
			CONSTRAINT task_assignment_pair_check CHECK (
				(admin_id IS NULL AND assigned_at IS NULL) OR
				(admin_id IS NOT NULL AND assigned_at IS NOT NULL)
			)
		);`,
		// The idempotency arbiter: at most one order per external checkout session
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_stripe_session
			ON orders(stripe_session_id) WHERE stripe_session_id IS NOT NULL;`,
		`CREATE INDEX IF NOT EXISTS idx_cart_items_user_unordered
			ON cart_items(user_id) WHERE ordered = FALSE;`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status_date ON orders(status, date);`,
	}

	for _, stmt := range statements {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	// Best-effort FK to the externally owned addresses table
	if hasAddresses {
		if _, err := db.Pool.Exec(ctx, `
			DO $$ BEGIN
				ALTER TABLE public.orders ADD CONSTRAINT orders_shipping_address_id_fkey
				FOREIGN KEY (shipping_address_id) REFERENCES public.addresses(id) ON DELETE RESTRICT;
			EXCEPTION WHEN others THEN
				NULL;
			END $$;
		`); err != nil {
			return fmt.Errorf("failed to add shipping address constraint: %w", err)
		}
	}

	log.Println("Order service database schema verified successfully")
	return nil
}

// getConfigFromEnv reads database configuration from environment variables
func getConfigFromEnv() Config {
	config := Config{
		Host:     getEnv("DB_HOST", "localhost"),
		User:     getEnv("DB_USER", "bakery_admin"),
		Password: getEnv("DB_PASSWORD", ""),
		DBName:   getEnv("DB_NAME", "bakery_db"),
		SSLMode:  getEnv("DB_SSLMODE", "prefer"),
	}

	// Parse port
	portStr := getEnv("DB_PORT", "5432")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Printf("Invalid DB_PORT value: %s, using default 5432", portStr)
		port = 5432
	}
	config.Port = port

	return config
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
