package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// ID is a compact identifier for graph entities (chunks and entities).
// It is generated using content-based hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// NewID returns a fresh opaque identifier for topics, content items and tasks.
func NewID() string {
	return uuid.NewString()
}

// ContentType identifies the kind of study material a content item came from.
// Task kinds share the same enumeration.
type ContentType string

const (
	ContentTypeDocument ContentType = "document"
	ContentTypeWebpage  ContentType = "webpage"
	ContentTypeYouTube  ContentType = "youtube"
	ContentTypeImage    ContentType = "image"
	ContentTypeText     ContentType = "text"
)

// ContentTypes lists every supported content type.
var ContentTypes = []ContentType{
	ContentTypeDocument,
	ContentTypeWebpage,
	ContentTypeYouTube,
	ContentTypeImage,
	ContentTypeText,
}

// TaskKind identifies the ingestion path a task runs.
type TaskKind = ContentType

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusFailed     TaskStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusDone || s == TaskStatusFailed
}

// QueryMode selects a graph retrieval strategy.
type QueryMode string

const (
	QueryModeNaive  QueryMode = "naive"
	QueryModeLocal  QueryMode = "local"
	QueryModeGlobal QueryMode = "global"
	QueryModeHybrid QueryMode = "hybrid"
)

// DefaultQueryMode is used when a caller leaves the mode empty.
const DefaultQueryMode = QueryModeHybrid

// Topic is an isolated study subject.
type Topic struct {
	ID                 string
	Name               string
	Description        string
	UseKnowledgeGraph  bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Summary            string     // Cached digest, empty until generated
	SummaryGeneratedAt *time.Time // Nil when no summary is cached
	Mindmap            string     // Cached mermaid mindmap source
	MindmapGeneratedAt *time.Time
	ContentCount       int // Populated by listing queries only
}

// TopicUpdate carries a partial topic update. Nil fields are left unchanged.
type TopicUpdate struct {
	Name              *string
	Description       *string
	UseKnowledgeGraph *bool
}

// Empty reports whether the update changes nothing.
func (u TopicUpdate) Empty() bool {
	return u.Name == nil && u.Description == nil && u.UseKnowledgeGraph == nil
}

// ContentItem is one piece of ingested, text-extracted material.
type ContentItem struct {
	ID            string
	TopicID       string
	Type          ContentType
	Title         string
	Text          string
	SourceURL     string // Set for web content; exclusive with FilePath
	FilePath      string // Set for uploaded files; exclusive with SourceURL
	Metadata      map[string]any
	ContentLength int
	TokenCount    int
	CreatedAt     time.Time
}

// Payload is the kind-specific input of an ingestion task.
type Payload struct {
	FilePath    string         `json:"file_path,omitempty"`
	URL         string         `json:"url,omitempty"`
	Text        string         `json:"text,omitempty"`
	Title       string         `json:"title,omitempty"`
	Prompt      string         `json:"prompt,omitempty"` // Image interpretation prompt
	Metadata    map[string]any `json:"metadata,omitempty"`
	CallbackURL string         `json:"callback_url,omitempty"`
}

// TaskResult is the success payload of a finished task.
type TaskResult struct {
	ContentID string `json:"content_id"`
}

// TaskError is the structured failure recorded on a failed task.
type TaskError struct {
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable,omitempty"`
}

// Task is a tracked unit of asynchronous ingestion work.
type Task struct {
	ID        string
	Kind      TaskKind
	Status    TaskStatus
	TopicID   string
	Payload   Payload
	Result    *TaskResult
	Error     *TaskError
	CreatedAt time.Time
	UpdatedAt time.Time
}
