package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// ActivityLog is a persisted audit entry.
type ActivityLog struct {
	bun.BaseModel `bun:"table:activity_logs,alias:al"`

	ID        string    `bun:"id,pk"`
	Action    string    `bun:"action,notnull"`
	TableName string    `bun:"table_name,nullzero"`
	Details   string    `bun:"details,nullzero"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
