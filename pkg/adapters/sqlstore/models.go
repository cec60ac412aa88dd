package sqlstore

import (
	"time"

	"github.com/aretw0/funnel/pkg/domain"
)

type sessionRow struct {
	ID            string    `gorm:"primaryKey;size:64"`
	VisitorID     string    `gorm:"size:191;not null;index:idx_sessions_pair"`
	FunnelID      string    `gorm:"size:191;not null;index:idx_sessions_pair"`
	ActiveKey     *string   `gorm:"size:400;uniqueIndex"` // set only while ACTIVE
	CurrentNodeID string    `gorm:"size:191"`
	Status        string    `gorm:"size:32;not null"`
	StartedAt     time.Time `gorm:"not null"`
	CompletedAt   *time.Time
	PaidAmount    *int64
	PaidAt        *time.Time
	PaymentRef    string    `gorm:"size:191"`
	Version       int64     `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null;autoUpdateTime:false"` // the engine's clock, not gorm's
}

func (sessionRow) TableName() string {
	return "visitor_sessions"
}

func (r sessionRow) toDomain() *domain.VisitorSession {
	return &domain.VisitorSession{
		ID:            r.ID,
		VisitorID:     r.VisitorID,
		FunnelID:      r.FunnelID,
		CurrentNodeID: r.CurrentNodeID,
		Status:        domain.SessionStatus(r.Status),
		StartedAt:     r.StartedAt,
		CompletedAt:   r.CompletedAt,
		PaidAmount:    r.PaidAmount,
		PaidAt:        r.PaidAt,
		PaymentRef:    r.PaymentRef,
		Version:       r.Version,
		UpdatedAt:     r.UpdatedAt,
	}
}

func sessionRowFromDomain(s *domain.VisitorSession) sessionRow {
	row := sessionRow{
		ID:            s.ID,
		VisitorID:     s.VisitorID,
		FunnelID:      s.FunnelID,
		CurrentNodeID: s.CurrentNodeID,
		Status:        string(s.Status),
		StartedAt:     s.StartedAt,
		CompletedAt:   s.CompletedAt,
		PaidAmount:    s.PaidAmount,
		PaidAt:        s.PaidAt,
		PaymentRef:    s.PaymentRef,
		Version:       s.Version,
		UpdatedAt:     s.UpdatedAt,
	}
	if s.Status == domain.SessionActive {
		key := domain.SessionKey(s.VisitorID, s.FunnelID)
		row.ActiveKey = &key
	}
	return row
}

type timerRow struct {
	ID        string    `gorm:"primaryKey;size:64"`
	SessionID string    `gorm:"size:64;not null;index"`
	VisitorID string    `gorm:"size:191;not null"`
	FunnelID  string    `gorm:"size:191;not null"`
	NodeID    string    `gorm:"size:191;not null"`
	DueAt     time.Time `gorm:"not null;index"`
}

func (timerRow) TableName() string {
	return "funnel_timers"
}

func (r timerRow) toDomain() domain.Timer {
	return domain.Timer{
		ID:        r.ID,
		SessionID: r.SessionID,
		VisitorID: r.VisitorID,
		FunnelID:  r.FunnelID,
		NodeID:    r.NodeID,
		DueAt:     r.DueAt,
	}
}

type funnelRow struct {
	ID        string `gorm:"primaryKey;size:191"`
	Name      string `gorm:"size:191"`
	Status    string `gorm:"size:32;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (funnelRow) TableName() string {
	return "funnels"
}

type nodeRow struct {
	FunnelID string `gorm:"primaryKey;size:191"`
	ID       string `gorm:"primaryKey;size:191"`
	Type     string `gorm:"size:32;not null"`
	Position int    `gorm:"not null"`
	Content  string `gorm:"type:text"` // JSON object, decoded by the compiler
}

func (nodeRow) TableName() string {
	return "funnel_nodes"
}
