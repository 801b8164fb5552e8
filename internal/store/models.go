package store

import (
	"encoding/json"
	"time"
)

// Category classifies content items; weights and styles are keyed by it.
type Category string

const (
	CategoryTournament  Category = "tournament"
	CategoryGame        Category = "game"
	CategoryAnalysis    Category = "analysis"
	CategoryNews        Category = "news"
	CategoryEducational Category = "educational"
)

// Categories lists categories in precedence order.
func Categories() []Category {
	return []Category{CategoryTournament, CategoryGame, CategoryAnalysis, CategoryNews, CategoryEducational}
}

// ParseCategory maps a string to a known category.
func ParseCategory(value string) (Category, bool) {
	for _, c := range Categories() {
		if string(c) == value {
			return c, true
		}
	}
	return "", false
}

// SourceRef identifies the source an item was fetched from.
type SourceRef struct {
	Name        string
	Kind        string
	TrustWeight float64
}

// Payload is an optional structured attachment such as a chess game score.
type Payload struct {
	Kind   string `json:"kind"`
	Moves  string `json:"moves,omitempty"`
	Result string `json:"result,omitempty"`
	Raw    string `json:"raw,omitempty"`
}

// ContentItem is one deduplicated, scored unit of input. Immutable once stored.
type ContentItem struct {
	ID             int64
	Title          string
	Body           string
	Source         SourceRef
	CanonicalURL   string
	Payload        *Payload
	PublishDate    time.Time
	ContentHash    string
	RelevanceScore float64
	Category       Category
	Tags           []string
	Event          string
	Entities       []string
	CreatedAt      time.Time
}

// StageName identifies a pipeline stage.
type StageName string

const (
	StageNarrative StageName = "narrative"
	StageSynthesis StageName = "synthesis"
	StageRender    StageName = "render"
	StageMetadata  StageName = "metadata"
)

// Stages returns the pipeline stages in execution order.
func Stages() []StageName {
	return []StageName{StageNarrative, StageSynthesis, StageRender, StageMetadata}
}

// ArtifactStatus tracks a stage artifact.
type ArtifactStatus string

const (
	ArtifactPending    ArtifactStatus = "pending"
	ArtifactProcessing ArtifactStatus = "processing"
	ArtifactCompleted  ArtifactStatus = "completed"
	ArtifactFailed     ArtifactStatus = "failed"
)

// IsTerminal reports whether the artifact can no longer change.
func (s ArtifactStatus) IsTerminal() bool {
	return s == ArtifactCompleted || s == ArtifactFailed
}

// StageArtifact is the output of one stage attempt. ParentID points at the
// predecessor stage's artifact (zero for the first stage).
type StageArtifact struct {
	ID              int64
	ItemID          int64
	Stage           StageName
	ParentID        int64
	PayloadRef      string
	Data            string
	DurationSeconds float64
	SizeBytes       int64
	Status          ArtifactStatus
	ErrorKind       string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DecodeData unmarshals the artifact's JSON data column into dst.
func (a *StageArtifact) DecodeData(dst any) error {
	if a == nil || a.Data == "" {
		return nil
	}
	return json.Unmarshal([]byte(a.Data), dst)
}

// LogStatus is the ContentLog state.
type LogStatus string

const (
	LogProcessing LogStatus = "processing"
	LogCompleted  LogStatus = "completed"
	LogFailed     LogStatus = "failed"
)

// IsTerminal reports whether the log can no longer change.
func (s LogStatus) IsTerminal() bool {
	return s == LogCompleted || s == LogFailed
}

// ContentLog tracks one item's journey through the stages.
type ContentLog struct {
	ID             int64
	ItemID         int64
	ArtifactIDs    map[StageName]int64
	Status         LogStatus
	ErrorKind      string
	ErrorMessage   string
	ProcessingTime time.Duration
	RunID          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ArtifactID returns the recorded artifact for a stage, or zero.
func (l *ContentLog) ArtifactID(stage StageName) int64 {
	if l == nil || l.ArtifactIDs == nil {
		return 0
	}
	return l.ArtifactIDs[stage]
}

// UnitStatus tracks a scheduled unit.
type UnitStatus string

const (
	UnitScheduled UnitStatus = "scheduled"
	UnitPublished UnitStatus = "published"
	UnitFailed    UnitStatus = "failed"
)

// UnitMetadata is the platform-adapted payload shape recorded at fan-out time.
type UnitMetadata struct {
	Title                   string   `json:"title"`
	Description             string   `json:"description"`
	Tags                    []string `json:"tags,omitempty"`
	Text                    string   `json:"text,omitempty"`
	VideoURL                string   `json:"video_url,omitempty"`
	ThumbnailURL            string   `json:"thumbnail_url,omitempty"`
	SourceDurationSeconds   float64  `json:"source_duration_seconds,omitempty"`
	PlatformDurationSeconds float64  `json:"platform_duration_seconds,omitempty"`
	Aspect                  string   `json:"aspect,omitempty"`
	Format                  string   `json:"format,omitempty"`
	TextOnly                bool     `json:"text_only,omitempty"`
	Conversion              string   `json:"conversion,omitempty"`
	ContentHash             string   `json:"content_hash,omitempty"`
}

// ScheduledUnit is one platform-targeted publication job.
type ScheduledUnit struct {
	ID                 int64
	ItemID             int64
	RenderArtifactID   int64
	MetadataArtifactID int64
	Platform           string
	ScheduledTime      time.Time
	Status             UnitStatus
	PayloadURL         string
	Metadata           UnitMetadata
	ExternalID         string
	PublishedURL       string
	ErrorKind          string
	ErrorMessage       string
	RequeuedFrom       int64
	PublishedAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Sentiment is the keyword classification of a comment.
type Sentiment string

const (
	SentimentPositive   Sentiment = "positive"
	SentimentQuestion   Sentiment = "question"
	SentimentThoughtful Sentiment = "thoughtful"
	SentimentNegative   Sentiment = "negative"
	SentimentNeutral    Sentiment = "neutral"
)

// ReplyStatus records what happened to the reply for an interaction.
type ReplyStatus string

const (
	ReplyPending        ReplyStatus = "pending"
	ReplySent           ReplyStatus = "sent"
	ReplySuppressed     ReplyStatus = "suppressed"
	ReplyQuotaExhausted ReplyStatus = "quota_exhausted"
	ReplyFailed         ReplyStatus = "failed"
)

// InteractionRecord is one external comment, recorded once.
type InteractionRecord struct {
	ID                 int64
	Platform           string
	UnitID             int64
	ExternalPostID     string
	ExternalCommentID  string
	Author             string
	Text               string
	Sentiment          Sentiment
	ReplyStatus        ReplyStatus
	GeneratedResponse  string
	ResponseExternalID string
	ErrorMessage       string
	RepliedAt          *time.Time
	CreatedAt          time.Time
}

// Activity is one row of the postmortem trail.
type Activity struct {
	ID         int64
	Operation  string
	Subject    string
	Outcome    string
	ErrorKind  string
	Message    string
	DurationMS int64
	CreatedAt  time.Time
}

// Stats aggregates pipeline counters for the status surface.
type Stats struct {
	Items        int
	Logs         map[LogStatus]int
	Units        map[UnitStatus]int
	Interactions int
	Replies      int
}
