// Package warehouse executes SQL against Snowflake. Connection management,
// retries, and statement splitting live here; callers hand in finished SQL.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/snowflakedb/gosnowflake"

	"martflow/internal/log"
	"martflow/pkg/errors"
)

// Executor is the narrow interface the runner needs. *Service implements it;
// tests substitute a sqlmock-backed service.
type Executor interface {
	Exec(ctx context.Context, statement string) error
	QueryCount(ctx context.Context, query string) (int64, error)
}

// Config holds Snowflake connection configuration
type Config struct {
	Account    string
	Username   string
	Password   string
	Database   string
	Schema     string
	Warehouse  string
	Role       string
	Timeout    time.Duration
	MaxRetries int // connection attempts beyond the first; 0 uses the default
}

// Service provides warehouse operations over database/sql
type Service struct {
	db        *sql.DB
	config    Config
	connected bool
	breaker   *errors.CircuitBreaker
	logger    *log.Logger
}

// NewService creates a new warehouse service
func NewService(config Config) *Service {
	return &Service{
		config:  config,
		breaker: errors.NewCircuitBreaker("warehouse", 5, 30*time.Second),
		logger:  log.Default().WithField("component", "warehouse"),
	}
}

// NewServiceWithDB wraps an existing database handle. Used by tests.
func NewServiceWithDB(db *sql.DB, config Config) *Service {
	s := NewService(config)
	s.db = db
	s.connected = true
	return s
}

// ValidateConfig validates the warehouse configuration
func ValidateConfig(config Config) error {
	if config.Account == "" {
		return fmt.Errorf("account is required")
	}
	if config.Username == "" {
		return fmt.Errorf("username is required")
	}
	if config.Password == "" {
		return fmt.Errorf("password is required")
	}
	if config.Warehouse == "" {
		return fmt.Errorf("warehouse is required")
	}
	if config.Role == "" {
		return fmt.Errorf("role is required")
	}
	return nil
}

// Connect establishes a connection to the warehouse
func (s *Service) Connect(ctx context.Context) error {
	if s.connected {
		return nil
	}

	retryCfg := errors.DefaultRetryConfig()
	if s.config.MaxRetries > 0 {
		retryCfg.MaxRetries = s.config.MaxRetries
	}

	return s.breaker.Execute(ctx, func() error {
		return errors.Retry(ctx, retryCfg, func(ctx context.Context) error {
			dsn := fmt.Sprintf("%s:%s@%s/%s/%s?warehouse=%s&role=%s",
				s.config.Username,
				s.config.Password,
				s.config.Account,
				s.config.Database,
				s.config.Schema,
				s.config.Warehouse,
				s.config.Role,
			)

			db, err := sql.Open("snowflake", dsn)
			if err != nil {
				return errors.ConnectionError("Failed to open warehouse connection", err).
					WithContext("account", s.config.Account).
					WithContext("warehouse", s.config.Warehouse)
			}

			db.SetMaxOpenConns(10)
			db.SetMaxIdleConns(5)
			db.SetConnMaxLifetime(10 * time.Minute)

			pingCtx, cancel := s.timeoutContext(ctx)
			defer cancel()

			if err := db.PingContext(pingCtx); err != nil {
				db.Close()

				if strings.Contains(err.Error(), "authentication") {
					return errors.New(errors.ErrCodeAuthenticationFailed, "Authentication failed").
						WithContext("user", s.config.Username).
						WithSuggestions(
							"Verify your username and password",
							"Check if your account is locked",
							"Ensure MFA is properly configured if required",
						)
				}

				return errors.ConnectionError("Failed to connect to warehouse", err).
					WithContext("account", s.config.Account).
					AsRecoverable()
			}

			s.db = db
			s.connected = true
			s.logger.InfoWithFields("connected", map[string]interface{}{
				"account":   s.config.Account,
				"warehouse": s.config.Warehouse,
			})
			return nil
		})
	})
}

// Close closes the database connection
func (s *Service) Close() error {
	if !s.connected {
		return nil
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}

	s.connected = false
	return nil
}

// Exec executes one or more SQL statements separated by semicolons.
func (s *Service) Exec(ctx context.Context, statement string) error {
	if !s.connected {
		return errors.New(errors.ErrCodeConnectionFailed, "Not connected to warehouse").
			WithSuggestions("Call Connect() before executing SQL")
	}

	execCtx, cancel := s.timeoutContext(ctx)
	defer cancel()

	statements := splitStatements(statement)
	for i, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}

		if _, err := s.db.ExecContext(execCtx, stmt); err != nil {
			sqlErr := errors.SQLError(
				fmt.Sprintf("Failed to execute statement %d", i+1),
				stmt,
				err,
			).WithContext("statement_index", i+1).
				WithContext("total_statements", len(statements))

			errStr := err.Error()
			if strings.Contains(errStr, "does not exist") || strings.Contains(errStr, "not found") {
				sqlErr.Code = errors.ErrCodeSQLObjectNotFound
				sqlErr.WithSuggestions(
					"Verify the object exists in the target database/schema",
					"Check for renamed or dropped source columns",
					"Ensure you have the correct permissions",
				)
			} else if strings.Contains(errStr, "syntax error") {
				sqlErr.Code = errors.ErrCodeSQLSyntax
				sqlErr.WithSuggestions(
					"Check SQL syntax near the error location",
					"Inspect the compiled SQL with 'martflow compile'",
				)
			}

			return sqlErr
		}
	}

	return nil
}

// QueryCount runs a query expected to return a single integer value.
func (s *Service) QueryCount(ctx context.Context, query string) (int64, error) {
	if !s.connected {
		return 0, errors.New(errors.ErrCodeConnectionFailed, "Not connected to warehouse")
	}

	queryCtx, cancel := s.timeoutContext(ctx)
	defer cancel()

	var count int64
	if err := s.db.QueryRowContext(queryCtx, query).Scan(&count); err != nil {
		return 0, errors.SQLError("Failed to execute count query", query, err)
	}

	return count, nil
}

func (s *Service) timeoutContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// splitStatements splits SQL on semicolons not within string literals.
func splitStatements(script string) []string {
	var statements []string
	var current strings.Builder
	inString := false
	stringChar := rune(0)

	for i, char := range script {
		if !inString {
			if char == '\'' || char == '"' {
				inString = true
				stringChar = char
			} else if char == ';' {
				if i == 0 || script[i-1] != '\\' {
					statements = append(statements, current.String())
					current.Reset()
					continue
				}
			}
		} else {
			if char == stringChar && (i == 0 || script[i-1] != '\\') {
				inString = false
			}
		}
		current.WriteRune(char)
	}

	if current.Len() > 0 {
		statements = append(statements, current.String())
	}

	return statements
}
