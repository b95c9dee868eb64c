package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const sinkTimeout = 5 * time.Second

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresSink appends events to the audit_log table.
type PostgresSink struct {
	db execer
}

// NewPostgresSink builds a sink over a pgx pool or connection.
func NewPostgresSink(db execer) *PostgresSink {
	return &PostgresSink{db: db}
}

// Append inserts e. Details are stored as JSON.
func (s *PostgresSink) Append(ctx context.Context, e Event) error {
	ctx, cancel := context.WithTimeout(ctx, sinkTimeout)
	defer cancel()

	var details []byte
	if len(e.Details) > 0 {
		var err error
		details, err = json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
	}

	query := `
INSERT INTO audit_log (user_id, category, action, target_type, target_id, ip_address, user_agent, status, details)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`

	_, err := s.db.Exec(ctx, query,
		e.UserID,
		e.Category,
		e.Action,
		nullable(e.TargetType),
		nullable(e.TargetID),
		nullable(e.IPAddress),
		nullable(e.UserAgent),
		string(e.Status),
		details,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
