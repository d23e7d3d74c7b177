package gorm

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JSONIntArray is an int slice stored as a JSON text column.
type JSONIntArray []int

// Value implements driver.Valuer.
func (a JSONIntArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]int(a))
	return string(b), err
}

// Scan implements sql.Scanner.
func (a *JSONIntArray) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan JSONIntArray: unsupported type %T", value)
	}
	return json.Unmarshal(data, (*[]int)(a))
}

// JSONFloatArray is a float64 slice stored as a JSON text column.
type JSONFloatArray []float64

// Value implements driver.Valuer.
func (a JSONFloatArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]float64(a))
	return string(b), err
}

// Scan implements sql.Scanner.
func (a *JSONFloatArray) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan JSONFloatArray: unsupported type %T", value)
	}
	return json.Unmarshal(data, (*[]float64)(a))
}

// Run is one clustering invocation.
type Run struct {
	ID               string         `gorm:"primaryKey;type:text"`
	Input            string         `gorm:"index;not null"`
	Sequences        int            `gorm:"not null"`
	Unique           int            `gorm:"not null"`
	MaxClade         int            `gorm:"not null"`
	Thresholds       JSONFloatArray `gorm:"type:text"`
	Distance         string         `gorm:"type:text;not null"`
	Seed             uint64
	Clusters         int
	Unresolved       int
	Status           string `gorm:"type:text;check:status IN ('completed', 'failed');default:'completed';index"`
	Error            string `gorm:"type:text"`
	DurationMs       int64
	StartedAt        string `gorm:"not null"`
	StartedAtEpoch   int64  `gorm:"index:idx_runs_started,sort:desc;not null"`
	CompletedAtEpoch int64
}

func (Run) TableName() string { return "runs" }

// BeforeCreate assigns an id and the start timestamps when unset.
func (r *Run) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.StartedAtEpoch == 0 {
		r.StartedAtEpoch = time.Now().UnixMilli()
	}
	if r.StartedAt == "" {
		r.StartedAt = time.UnixMilli(r.StartedAtEpoch).Format(time.RFC3339)
	}
	return nil
}

// Cluster is one emitted cluster tree of a run.
type Cluster struct {
	ID         int64        `gorm:"primaryKey;autoIncrement"`
	RunID      string       `gorm:"index;not null"`
	Run        Run          `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
	Name       string       `gorm:"not null"`
	Size       int          `gorm:"not null"`
	Threshold  float64      `gorm:"not null"`
	Unresolved bool         `gorm:"default:false"`
	Members    JSONIntArray `gorm:"type:text"`
	Tree       string       `gorm:"type:text;not null"`
}

func (Cluster) TableName() string { return "clusters" }
