package testutil

import (
	"context"
	"regexp"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

// MockDB pairs an sqlx handle with its sqlmock controller.
//
//	mockDB := testutil.NewMockDB(t)
//	mockDB.ExpectSnapshotRead(
//	    testutil.TableRows{Table: "medicines", Rows: testutil.MockRows("medicine_id", "name")},
//	)
//	loader := repository.NewPostgresLoader(database.Wrap(mockDB.DB, log))
type MockDB struct {
	DB   *sqlx.DB
	Mock sqlmock.Sqlmock
}

// NewMockDB creates a mock database that is closed when the test ends.
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	m := &MockDB{DB: sqlx.NewDb(db, "postgres"), Mock: mock}
	t.Cleanup(func() { m.DB.Close() })
	return m
}

// TableRows is the result one inventory table returns inside a snapshot read.
type TableRows struct {
	Table string
	Rows  *sqlmock.Rows
	Err   error
}

// ExpectTableQuery expects a query reading from table.
func (m *MockDB) ExpectTableQuery(table string) *sqlmock.ExpectedQuery {
	return m.Mock.ExpectQuery(regexp.QuoteMeta("FROM " + table))
}

// ExpectSnapshotRead expects one read transaction over the given tables, in
// order. The transaction commits unless a table returns an error, in which
// case later tables are not queried and the transaction rolls back.
func (m *MockDB) ExpectSnapshotRead(tables ...TableRows) {
	m.Mock.ExpectBegin()
	for _, tr := range tables {
		q := m.ExpectTableQuery(tr.Table)
		if tr.Err != nil {
			q.WillReturnError(tr.Err)
			m.Mock.ExpectRollback()
			return
		}
		q.WillReturnRows(tr.Rows)
	}
	m.Mock.ExpectCommit()
}

// ExpectationsWereMet verifies all expectations were met
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	if err := m.Mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}

// MockRows creates a new mock rows object
func MockRows(columns ...string) *sqlmock.Rows {
	return sqlmock.NewRows(columns)
}

// MockPublisher records published events. It is safe for concurrent use.
type MockPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent
	// Err, when set, is returned from every Publish call.
	Err error
}

// PublishedEvent represents an event that was published
type PublishedEvent struct {
	Type    string
	Payload interface{}
}

// NewMockPublisher creates a new mock publisher
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// Publish records an event for later verification
func (m *MockPublisher) Publish(_ context.Context, eventType string, payload interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.events = append(m.events, PublishedEvent{Type: eventType, Payload: payload})
	return nil
}

// EventsOfType returns the published events with the given type
func (m *MockPublisher) EventsOfType(eventType string) []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PublishedEvent
	for _, e := range m.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// AssertNoEventsPublished checks that no events were published
func (m *MockPublisher) AssertNoEventsPublished(t *testing.T) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) > 0 {
		t.Errorf("expected no events, but got %d: %+v", len(m.events), m.events)
	}
}
