package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Node kinds.
const (
	KindAssertion = "assertion"
	KindTopic     = "topic"
)

// Source is one ingested document.
type Source struct {
	ID            string  `gorm:"column:id;primaryKey" json:"id"`
	FileName      string  `gorm:"column:file_name" json:"file_name"`
	Format        string  `gorm:"column:format" json:"format"`
	Domain        string  `gorm:"column:domain;index" json:"domain,omitempty"`
	Qualification string  `gorm:"column:qualification" json:"qualification,omitempty"`
	DocumentType  string  `gorm:"column:document_type" json:"document_type"`
	Confidence    float64 `gorm:"column:confidence" json:"confidence"`
	LastRunID     string  `gorm:"column:last_run_id" json:"last_run_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Source) TableName() string { return "sources" }

// KnowledgeNode holds both extracted assertions and the topic nodes the
// pyramid engine creates above them.
type KnowledgeNode struct {
	ID       uuid.UUID `gorm:"type:text;primaryKey" json:"id"`
	SourceID string    `gorm:"column:source_id;not null;index:idx_node_source_hash,priority:1" json:"source_id"`
	RunID    string    `gorm:"column:run_id;index" json:"run_id,omitempty"`
	Kind     string    `gorm:"column:kind;not null;index" json:"kind"`

	EngineCreated bool       `gorm:"column:engine_created;not null;default:false;index" json:"engine_created"`
	ParentID      *uuid.UUID `gorm:"type:text;column:parent_id;index" json:"parent_id,omitempty"`
	Depth         int        `gorm:"column:depth;not null;default:0" json:"depth"`
	SortOrder     int        `gorm:"column:sort_order;not null;default:0" json:"sort_order"`

	Text            string         `gorm:"column:text;type:text;not null" json:"text"`
	Slug            string         `gorm:"column:slug" json:"slug,omitempty"`
	Category        string         `gorm:"column:category;index" json:"category,omitempty"`
	Chapter         string         `gorm:"column:chapter" json:"chapter,omitempty"`
	Section         string         `gorm:"column:section" json:"section,omitempty"`
	Tags            datatypes.JSON `gorm:"column:tags" json:"tags,omitempty"`
	ValidFrom       string         `gorm:"column:valid_from" json:"valid_from,omitempty"`
	ValidUntil      string         `gorm:"column:valid_until" json:"valid_until,omitempty"`
	ExamRelevance   float64        `gorm:"column:exam_relevance" json:"exam_relevance"`
	LearningOutcome string         `gorm:"column:learning_outcome" json:"learning_outcome,omitempty"`
	FigureRefs      datatypes.JSON `gorm:"column:figure_refs" json:"figure_refs,omitempty"`
	ContentHash     string         `gorm:"column:content_hash;index:idx_node_source_hash,priority:2" json:"content_hash,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (KnowledgeNode) TableName() string { return "knowledge_nodes" }

func (n *KnowledgeNode) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

type Question struct {
	ID              uuid.UUID      `gorm:"type:text;primaryKey" json:"id"`
	SourceID        string         `gorm:"column:source_id;not null;index:idx_question_source_hash,priority:1" json:"source_id"`
	RunID           string         `gorm:"column:run_id;index" json:"run_id,omitempty"`
	Text            string         `gorm:"column:text;type:text;not null" json:"text"`
	Type            string         `gorm:"column:type;not null" json:"type"`
	Options         datatypes.JSON `gorm:"column:options" json:"options,omitempty"`
	CorrectAnswer   string         `gorm:"column:correct_answer" json:"correct_answer,omitempty"`
	Explanation     string         `gorm:"column:explanation;type:text" json:"explanation,omitempty"`
	MarkScheme      string         `gorm:"column:mark_scheme;type:text" json:"mark_scheme,omitempty"`
	LearningOutcome string         `gorm:"column:learning_outcome" json:"learning_outcome,omitempty"`
	Difficulty      int            `gorm:"column:difficulty;not null;default:3" json:"difficulty"`
	ContentHash     string         `gorm:"column:content_hash;index:idx_question_source_hash,priority:2" json:"content_hash"`

	CreatedAt time.Time `json:"created_at"`
}

func (Question) TableName() string { return "questions" }

func (q *Question) BeforeCreate(*gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

type VocabularyTerm struct {
	ID           uuid.UUID `gorm:"type:text;primaryKey" json:"id"`
	SourceID     string    `gorm:"column:source_id;not null;index:idx_vocab_source_term,priority:1" json:"source_id"`
	RunID        string    `gorm:"column:run_id;index" json:"run_id,omitempty"`
	Term         string    `gorm:"column:term;not null" json:"term"`
	TermKey      string    `gorm:"column:term_key;not null;index:idx_vocab_source_term,priority:2" json:"-"`
	Definition   string    `gorm:"column:definition;type:text" json:"definition"`
	PartOfSpeech string    `gorm:"column:part_of_speech" json:"part_of_speech,omitempty"`
	Example      string    `gorm:"column:example;type:text" json:"example,omitempty"`
	Topic        string    `gorm:"column:topic" json:"topic,omitempty"`
	ContentHash  string    `gorm:"column:content_hash" json:"content_hash"`

	CreatedAt time.Time `json:"created_at"`
}

func (VocabularyTerm) TableName() string { return "vocabulary" }

func (v *VocabularyTerm) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// AICall is one completion attempt.
type AICall struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	CallPoint      string    `gorm:"column:call_point;index" json:"call_point"`
	Model          string    `gorm:"column:model" json:"model"`
	Attempt        int       `gorm:"column:attempt" json:"attempt"`
	LatencyMs      int64     `gorm:"column:latency_ms" json:"latency_ms"`
	Success        bool      `gorm:"column:success" json:"success"`
	Error          string    `gorm:"column:error;type:text" json:"error,omitempty"`
	PromptTokens   int       `gorm:"column:prompt_tokens" json:"prompt_tokens"`
	ResponseTokens int       `gorm:"column:response_tokens" json:"response_tokens"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

func (AICall) TableName() string { return "ai_call_log" }

// Correction is a human fix to a classification.
type Correction struct {
	ID            uuid.UUID `gorm:"type:text;primaryKey" json:"id"`
	Domain        string    `gorm:"column:domain;index" json:"domain,omitempty"`
	SourceID      string    `gorm:"column:source_id" json:"source_id,omitempty"`
	FileName      string    `gorm:"column:file_name" json:"file_name"`
	Sample        string    `gorm:"column:sample;type:text" json:"sample"`
	OriginalType  string    `gorm:"column:original_type" json:"original_type"`
	CorrectedType string    `gorm:"column:corrected_type;not null" json:"corrected_type"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

func (Correction) TableName() string { return "classification_corrections" }

func (c *Correction) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
