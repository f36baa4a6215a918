package authcore_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/veridian/authcore"
)

const (
	testAccessSecret  = "test-access-secret"
	testRefreshSecret = "test-refresh-secret"
	// 32 bytes of zeros, hex encoded
	testEncryptionKey = "0000000000000000000000000000000000000000000000000000000000000000"
)

func testConfig() authcore.Config {
	return authcore.Config{
		AccessTokenSecret:  testAccessSecret,
		RefreshTokenSecret: testRefreshSecret,
		EncryptionKey:      testEncryptionKey,
		HashSalt:           "test-salt",
		// Low cost keeps the suite fast; production uses the default.
		BcryptCost: 4,
	}
}

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	// a single connection keeps the in-memory database alive for the test
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = db.NewCreateTable().
		Model((*authcore.Account)(nil)).
		IfNotExists().
		Exec(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func setupRepoManager(t *testing.T) authcore.RepositoryManager {
	t.Helper()
	repo := authcore.NewRepositoryManager(setupTestDB(t))
	repo.MustValidate()
	return repo
}

func validRegistration() authcore.RegisterAccountMessage {
	return authcore.RegisterAccountMessage{
		Email:     "a@b.com",
		Password:  "Str0ng!Pass",
		Username:  "user1",
		FirstName: "Ada",
		LastName:  "Byron",
	}
}

// recordingNotifier captures verification sends.
type recordingNotifier struct {
	mu     sync.Mutex
	sends  []sentVerification
	sendFn func(ctx context.Context, email, token string) error
}

type sentVerification struct {
	Email string
	Token string
}

func (n *recordingNotifier) SendVerification(ctx context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sendFn != nil {
		if err := n.sendFn(ctx, email, token); err != nil {
			return err
		}
	}
	n.sends = append(n.sends, sentVerification{Email: email, Token: token})
	return nil
}

func (n *recordingNotifier) sent() []sentVerification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]sentVerification, len(n.sends))
	copy(out, n.sends)
	return out
}

// recordingSink captures activity events.
type recordingSink struct {
	mu     sync.Mutex
	events []authcore.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event authcore.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) byType(eventType authcore.ActivityEventType) []authcore.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []authcore.ActivityEvent
	for _, e := range s.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// MockLogger implements authcore.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Info(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Warn(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Error(format string, args ...any) {
	m.Called(format, args)
}

// nopLogger silences log output in tests that do not assert on it.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
