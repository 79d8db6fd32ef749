package storage

// AnalysisRun is one scored analysis of an event
type AnalysisRun struct {
	ID             int64   `gorm:"primaryKey;autoIncrement"`
	Slug           string  `gorm:"size:255;not null;index:idx_runs_slug_created,priority:1"`
	EventID        int64   `gorm:"not null;index"`
	Title          string  `gorm:"size:512"`
	Score          float64 `gorm:"type:decimal(7,3);not null"`
	Label          string  `gorm:"size:16;not null;index"`
	TradeCount     int     `gorm:"not null"`
	LookbackSec    int64   `gorm:"not null"`
	LastTradeTS    *int64  `gorm:"default:null"`
	RefreshMode    string  `gorm:"size:16;not null"`
	Rationale      string  `gorm:"type:text"`
	ProfileName    string  `gorm:"size:64"`
	DurationMillis int64   `gorm:"not null;default:0"`
	CreatedTS      int64   `gorm:"not null;index:idx_runs_slug_created,priority:2"`
}

func (AnalysisRun) TableName() string {
	return "analysis_runs"
}

// OutcomeScore is the per-outcome part of a run
type OutcomeScore struct {
	ID           int64   `gorm:"primaryKey;autoIncrement"`
	RunID        int64   `gorm:"not null;index"`
	ConditionID  string  `gorm:"size:128;not null"`
	OutcomeIndex *int    `gorm:"default:null"`
	Label        string  `gorm:"size:512;not null"`
	Score        float64 `gorm:"type:decimal(7,3);not null"`
	Verdict      string  `gorm:"size:16;not null"`
	TradeCount   int     `gorm:"not null"`
}

func (OutcomeScore) TableName() string {
	return "outcome_scores"
}

// DetectorResult is one detector's output within a run. OutcomeScoreID is
// nil for whole-sample results.
type DetectorResult struct {
	ID             int64   `gorm:"primaryKey;autoIncrement"`
	RunID          int64   `gorm:"not null;index"`
	OutcomeScoreID *int64  `gorm:"index"`
	Name           string  `gorm:"size:32;not null;index"`
	Triggered      bool    `gorm:"not null"`
	Intensity      float64 `gorm:"type:decimal(7,6);not null"`
	Summary        string  `gorm:"size:512"`
}

func (DetectorResult) TableName() string {
	return "detector_results"
}

// Alert stores delivered alerts
type Alert struct {
	ID        int64   `gorm:"primaryKey;autoIncrement"`
	RunID     int64   `gorm:"not null;index"`
	Slug      string  `gorm:"size:255;not null;index"`
	Label     string  `gorm:"size:16;not null"`
	Score     float64 `gorm:"type:decimal(7,3);not null"`
	Channels  string  `gorm:"size:128"`
	CreatedTS int64   `gorm:"not null;index"`
}

func (Alert) TableName() string {
	return "alerts"
}
