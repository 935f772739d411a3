package testsuite

import (
	"context"
	"log"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/config"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/db"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/identity"
)

// BaseSuite runs a throwaway PostgreSQL container with the service schema
// applied. Embed it in integration suites.
type BaseSuite struct {
	suite.Suite
	PgContainer *postgres.PostgresContainer
	Postgres    *db.Postgres
	DbPool      *pgxpool.Pool
	Ctx         context.Context
}

func migrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}

func (s *BaseSuite) SetupInfrastructure() {
	s.Ctx = context.Background()

	var err error
	s.PgContainer, err = postgres.Run(
		s.Ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)

	host, err := s.PgContainer.Host(s.Ctx)
	s.Require().NoError(err)
	port, err := s.PgContainer.MappedPort(s.Ctx, "5432/tcp")
	s.Require().NoError(err)

	absPath, err := filepath.Abs(migrationsPath())
	s.Require().NoError(err)

	cfg := config.PostgresConfig{
		Host:            host,
		Port:            strconv.Itoa(port.Int()),
		User:            "test_user",
		Password:        "test_password",
		DBName:          "test_db",
		SSLMode:         "disable",
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MigrationsPath:  absPath,
	}

	s.Postgres, err = db.New(s.Ctx, cfg)
	s.Require().NoError(err)
	s.Require().NoError(db.ApplyMigrations(s.Postgres, cfg))

	s.DbPool = s.Postgres.Pool
}

func (s *BaseSuite) TearDownInfrastructure() {
	if s.Postgres != nil {
		s.Postgres.Close()
	}
	if s.PgContainer != nil {
		if err := s.PgContainer.Terminate(s.Ctx); err != nil {
			log.Printf("Failed to terminate postgres container: %v", err)
		}
	}
}

func (s *BaseSuite) TruncateTables() {
	_, err := s.DbPool.Exec(s.Ctx, "TRUNCATE reviews, order_items, orders, products, users CASCADE")
	s.Require().NoError(err)
}

func (s *BaseSuite) SeedUser(name string, role identity.Role) *identity.User {
	u := &identity.User{
		ID:    uuid.Must(uuid.NewV4()),
		Name:  name,
		Email: uuid.Must(uuid.NewV4()).String() + "@example.com",
		Role:  role,
		Address: identity.Address{
			FullName: name,
			Line1:    "1 Main St",
			City:     "Springfield",
			Zip:      "12345",
		},
		Payment: identity.PaymentMethod{
			CardHolderName:   name,
			MaskedCardNumber: "**** **** **** 4242",
			Brand:            "visa",
			Expiry:           "12/29",
		},
	}

	_, err := s.DbPool.Exec(s.Ctx,
		`INSERT INTO users (id, name, email, role, address, payment_method) VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Name, u.Email, string(u.Role), u.Address, u.Payment,
	)
	s.Require().NoError(err)
	return u
}

func (s *BaseSuite) SeedProduct(name, manufacturer, price string) uuid.UUID {
	id := uuid.Must(uuid.NewV4())
	var mfr *string
	if manufacturer != "" {
		mfr = &manufacturer
	}

	_, err := s.DbPool.Exec(s.Ctx,
		`INSERT INTO products (id, name, manufacturer, category, price) VALUES ($1, $2, $3, 'general', $4)`,
		id, name, mfr, decimal.RequireFromString(price),
	)
	s.Require().NoError(err)
	return id
}

func (s *BaseSuite) SetProductPrice(id uuid.UUID, price string) {
	_, err := s.DbPool.Exec(s.Ctx, `UPDATE products SET price = $1 WHERE id = $2`, decimal.RequireFromString(price), id)
	s.Require().NoError(err)
}
