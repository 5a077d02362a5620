package source

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/xxxsen/consultrag/internal/model"
	"github.com/xxxsen/consultrag/internal/pkg/dbutil"
)

const defaultTable = "consultations"

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

var consultationColumns = []string{
	"id", "participants", "scheduled_at", "status", "symptoms", "diagnosis",
	"prescription", "notes", "cancellation_reason", "fee_amount", "fee_currency",
	"video_call_url", "updated_at",
}

type postgresConfig struct {
	DSN        string `json:"dsn"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	User       string `json:"user"`
	Password   string `json:"password"`
	DBName     string `json:"dbname"`
	SSLMode    string `json:"sslmode"`
	Table      string `json:"table"`
	MaxRecords int    `json:"max_records"`
}

type consultationRow struct {
	ID                 string          `db:"id"`
	Participants       []byte          `db:"participants"`
	ScheduledAt        time.Time       `db:"scheduled_at"`
	Status             string          `db:"status"`
	Symptoms           sql.NullString  `db:"symptoms"`
	Diagnosis          sql.NullString  `db:"diagnosis"`
	Prescription       sql.NullString  `db:"prescription"`
	Notes              sql.NullString  `db:"notes"`
	CancellationReason sql.NullString  `db:"cancellation_reason"`
	FeeAmount          sql.NullFloat64 `db:"fee_amount"`
	FeeCurrency        sql.NullString  `db:"fee_currency"`
	VideoCallURL       sql.NullString  `db:"video_call_url"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

type postgresSource struct {
	db         *sqlx.DB
	table      string
	maxRecords int
}

func init() {
	Register("postgres", createPostgresSource)
}

func createPostgresSource(args interface{}) (Source, error) {
	cfg := &postgresConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	dsn := cfg.DSN
	if dsn == "" {
		if cfg.Host == "" || cfg.DBName == "" {
			return nil, fmt.Errorf("postgres source requires dsn or host/dbname")
		}
		sslmode := cfg.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		port := cfg.Port
		if port == 0 {
			port = 5432
		}
		dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, port, cfg.User, cfg.Password, cfg.DBName, sslmode)
	}
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	src, err := newPostgresSource(db, cfg.Table, cfg.MaxRecords)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return src, nil
}

func newPostgresSource(db *sqlx.DB, table string, maxRecords int) (*postgresSource, error) {
	if table == "" {
		table = defaultTable
	}
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid source table name: %s", table)
	}
	return &postgresSource{db: db, table: table, maxRecords: maxRecords}, nil
}

func (s *postgresSource) Load(ctx context.Context, userID string) ([]model.ConsultationRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE user_id = ? ORDER BY scheduled_at ASC",
		strings.Join(consultationColumns, ", "), s.table)
	args := []interface{}{userID}
	if s.maxRecords > 0 {
		query += " LIMIT ?, ?"
		args = append(args, 0, s.maxRecords)
	}
	query, args = dbutil.Finalize(query, args)

	var rows []consultationRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("load consultations: %w", err)
	}
	records := make([]model.ConsultationRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *postgresSource) Users(ctx context.Context) ([]string, error) {
	query, _ := dbutil.Finalize(fmt.Sprintf("SELECT DISTINCT user_id FROM %s ORDER BY user_id", s.table), nil)
	var users []string
	if err := s.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("list source users: %w", err)
	}
	return users, nil
}

func (s *postgresSource) Close() error {
	return s.db.Close()
}

func (r *consultationRow) toRecord() (model.ConsultationRecord, error) {
	rec := model.ConsultationRecord{
		ID:                 r.ID,
		ScheduledAt:        r.ScheduledAt,
		Status:             r.Status,
		Symptoms:           r.Symptoms.String,
		Diagnosis:          r.Diagnosis.String,
		Prescription:       r.Prescription.String,
		Notes:              r.Notes.String,
		CancellationReason: r.CancellationReason.String,
		VideoCallURL:       r.VideoCallURL.String,
		UpdatedAt:          r.UpdatedAt,
	}
	if len(r.Participants) > 0 {
		if err := json.Unmarshal(r.Participants, &rec.Participants); err != nil {
			return rec, fmt.Errorf("decode participants of %s: %w", r.ID, err)
		}
	}
	if r.FeeAmount.Valid {
		rec.Fee = &model.Money{Amount: r.FeeAmount.Float64, Currency: r.FeeCurrency.String}
	}
	return rec, nil
}
