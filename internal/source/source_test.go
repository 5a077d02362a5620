package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "records.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileSourceArray(t *testing.T) {
	path := writeFile(t, `[{"id":"c1","status":"completed"},{"id":"c2","status":"cancelled"}]`)
	src, err := New("file", map[string]interface{}{"path": path})
	require.NoError(t, err)

	records, err := src.Load(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "c2", records[1].ID)

	users, err := src.Users(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{DefaultUser}, users)
}

func TestFileSourceByUser(t *testing.T) {
	path := writeFile(t, `{"bob":[{"id":"b1"}],"alice":[{"id":"a1"},{"id":"a2"}]}`)
	src, err := New("file", map[string]interface{}{"path": path})
	require.NoError(t, err)

	records, err := src.Load(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, records, 2)
	records, err = src.Load(context.Background(), "carol")
	require.NoError(t, err)
	require.Empty(t, records)

	users, err := src.Users(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob"}, users)
}

func TestFileSourceErrors(t *testing.T) {
	_, err := New("file", map[string]interface{}{})
	require.Error(t, err)
	_, err = New("ldap", map[string]interface{}{})
	require.Error(t, err)

	src, err := New("file", map[string]interface{}{"path": writeFile(t, "{broken")})
	require.NoError(t, err)
	_, err = src.Load(context.Background(), "alice")
	require.Error(t, err)
}

func newMockSource(t *testing.T, maxRecords int) (*postgresSource, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	src, err := newPostgresSource(sqlx.NewDb(db, "sqlmock"), "", maxRecords)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })
	return src, mock
}

func TestPostgresSourceLoad(t *testing.T) {
	src, mock := newMockSource(t, 0)
	at := time.Date(2024, 12, 24, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(consultationColumns).
		AddRow("c1", []byte(`[{"name":"Dr. Lee","role":"doctor"}]`), at, "completed",
			"cough", "flu", nil, nil, nil, 45.0, "USD", "https://video/1", at).
		AddRow("c2", nil, at.Add(time.Hour), "cancelled",
			nil, nil, nil, nil, "patient sick", nil, nil, nil, at)
	mock.ExpectQuery("SELECT " + strings.Join(consultationColumns, ", ") +
		" FROM consultations WHERE user_id = $1 ORDER BY scheduled_at ASC").
		WithArgs("alice").
		WillReturnRows(rows)

	records, err := src.Load(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "Dr. Lee", records[0].Participants[0].Name)
	require.NotNil(t, records[0].Fee)
	require.Equal(t, 45.0, records[0].Fee.Amount)
	require.Equal(t, "https://video/1", records[0].VideoCallURL)
	require.Nil(t, records[1].Fee)
	require.Equal(t, "patient sick", records[1].CancellationReason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSourceLoadWithLimit(t *testing.T) {
	src, mock := newMockSource(t, 50)
	mock.ExpectQuery("SELECT " + strings.Join(consultationColumns, ", ") +
		" FROM consultations WHERE user_id = $1 ORDER BY scheduled_at ASC LIMIT $2 OFFSET $3").
		WithArgs("alice", 50, 0).
		WillReturnRows(sqlmock.NewRows(consultationColumns))

	records, err := src.Load(context.Background(), "alice")
	require.NoError(t, err)
	require.Empty(t, records)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSourceUsers(t *testing.T) {
	src, mock := newMockSource(t, 0)
	mock.ExpectQuery("SELECT DISTINCT user_id FROM consultations ORDER BY user_id").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("alice").AddRow("bob"))

	users, err := src.Users(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob"}, users)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSourceRejectsBadTable(t *testing.T) {
	_, err := newPostgresSource(nil, "consultations; DROP TABLE x", 0)
	require.Error(t, err)
}
