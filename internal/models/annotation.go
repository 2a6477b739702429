package models

// Downstream annotation entities. The transcription core does not expose
// CRUD for these; they exist so cue deletion semantics are real. Annotations
// reference cue ids and are cascaded away when a retried segment reissues
// its cues.

// Highlight marks a cue a listener wants to find again.
type Highlight struct {
	BaseModel

	EpisodeID ULID `gorm:"not null;type:varchar(26);index" json:"episode_id"`

	CueID ULID `gorm:"not null;type:varchar(26);index" json:"cue_id"`

	// Cue backs the foreign key so cue deletion cascades here.
	Cue *TranscriptCue `gorm:"foreignKey:CueID;constraint:OnDelete:CASCADE" json:"-"`

	Color string `gorm:"size:20" json:"color,omitempty"`
}

// TableName returns the table name for Highlight.
func (Highlight) TableName() string {
	return "highlights"
}

// Note is free-form text attached to an episode, optionally anchored to a cue.
type Note struct {
	BaseModel

	EpisodeID ULID `gorm:"not null;type:varchar(26);index" json:"episode_id"`

	CueID *ULID `gorm:"type:varchar(26);index" json:"cue_id,omitempty"`

	Cue *TranscriptCue `gorm:"foreignKey:CueID;constraint:OnDelete:CASCADE" json:"-"`

	Content string `gorm:"not null" json:"content"`
}

// TableName returns the table name for Note.
func (Note) TableName() string {
	return "notes"
}

// AIQueryRecord stores an AI lookup made against a cue span.
type AIQueryRecord struct {
	BaseModel

	EpisodeID ULID `gorm:"not null;type:varchar(26);index" json:"episode_id"`

	CueID ULID `gorm:"not null;type:varchar(26);index" json:"cue_id"`

	Cue *TranscriptCue `gorm:"foreignKey:CueID;constraint:OnDelete:CASCADE" json:"-"`

	Query string `gorm:"not null" json:"query"`

	Response string `json:"response,omitempty"`
}

// TableName returns the table name for AIQueryRecord.
func (AIQueryRecord) TableName() string {
	return "ai_query_records"
}
