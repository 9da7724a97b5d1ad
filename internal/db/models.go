// internal/db/models.go
package db

import "time"

// Run status values.
const (
	StatusRunning = 0
	StatusDone    = 1
	StatusError   = 2
)

// sync_runs
type SyncRun struct {
	RunID      string `gorm:"primaryKey;size:36"`
	Deposit    string `gorm:"index;size:128"`
	TempSheet  string `gorm:"size:160"`
	Sheet      string `gorm:"size:160"` // final sheet name
	Store      string `gorm:"size:32"`
	Location   string `gorm:"size:255"`
	Resumed    bool
	Total      int
	Processed  int
	Failed     int
	Flushes    int
	Status     int       `gorm:"index"` // 0=running, 1=done, 2=error
	LastError  string    `gorm:"type:text"`
	StartedAt  time.Time `gorm:"index"`
	FinishedAt *time.Time
}

// item_failures
type ItemFailure struct {
	ID        uint      `gorm:"primaryKey"`
	RunID     string    `gorm:"index;size:36"`
	ItemID    string    `gorm:"index;size:32"`
	Reason    string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// kv backs the sql cache. A nil ExpiresAt never expires.
type KV struct {
	K         string `gorm:"primaryKey;size:191"`
	V         []byte
	ExpiresAt *time.Time `gorm:"index"`
}
