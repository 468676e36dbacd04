package mcpserver

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/poiesic/studyforge/core"
)

const defaultListLimit = 50

// ListStudiesInput is the input schema for list_all_studies.
type ListStudiesInput struct {
	Limit  int `json:"limit,omitempty" jsonschema:"maximum number of topics to return (default 50)"`
	Offset int `json:"offset,omitempty" jsonschema:"number of topics to skip"`
}

// Study describes one topic.
type Study struct {
	TopicID           string    `json:"topic_id"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	UseKnowledgeGraph bool      `json:"use_knowledge_graph"`
	ContentCount      int       `json:"content_count"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ListStudiesOutput is the JSON result of list_all_studies.
type ListStudiesOutput struct {
	Studies []Study `json:"studies"`
	Count   int     `json:"count"`
}

// GetContentInput is the input schema for get_content_from_study.
type GetContentInput struct {
	TopicID     string `json:"topic_id" jsonschema:"id of the study topic"`
	Limit       int    `json:"limit,omitempty" jsonschema:"maximum number of items to return (default all)"`
	Offset      int    `json:"offset,omitempty" jsonschema:"number of items to skip"`
	IncludeText bool   `json:"include_text,omitempty" jsonschema:"include each item's extracted text"`
}

// ContentSummary describes one content item.
type ContentSummary struct {
	ContentID     string    `json:"content_id"`
	Type          string    `json:"type"`
	Title         string    `json:"title"`
	SourceURL     string    `json:"source_url,omitempty"`
	FilePath      string    `json:"file_path,omitempty"`
	ContentLength int       `json:"content_length"`
	TokenCount    int       `json:"token_count"`
	CreatedAt     time.Time `json:"created_at"`
	Text          string    `json:"text,omitempty"`
}

// GetContentOutput is the JSON result of get_content_from_study.
type GetContentOutput struct {
	TopicID     string           `json:"topic_id"`
	TopicName   string           `json:"topic_name"`
	Items       []ContentSummary `json:"items"`
	TotalItems  int              `json:"total_items"`
	TotalTokens int              `json:"total_tokens"`
}

// QueryInput is the input schema for query_study.
type QueryInput struct {
	TopicID  string `json:"topic_id" jsonschema:"id of the study topic"`
	Question string `json:"question" jsonschema:"the question to answer from the topic's materials"`
	Mode     string `json:"mode,omitempty" jsonschema:"graph retrieval mode: naive, local, global or hybrid (default hybrid)"`
}

// SubmitTextInput is the input schema for submit_text.
type SubmitTextInput struct {
	TopicID     string `json:"topic_id" jsonschema:"id of the study topic"`
	Text        string `json:"text" jsonschema:"the study material"`
	Title       string `json:"title,omitempty" jsonschema:"title for the material (default first line)"`
	CallbackURL string `json:"callback_url,omitempty" jsonschema:"URL notified with a POST when the task finishes"`
}

// SubmitOutput is the JSON result of submit_text.
type SubmitOutput struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// TaskStatusInput is the input schema for task_status.
type TaskStatusInput struct {
	TaskID string `json:"task_id" jsonschema:"id returned when the task was submitted"`
}

// TaskStatusOutput is the JSON result of task_status.
type TaskStatusOutput struct {
	TaskID    string          `json:"task_id"`
	Kind      string          `json:"kind"`
	Status    string          `json:"status"`
	TopicID   string          `json:"topic_id"`
	ContentID string          `json:"content_id,omitempty"`
	Error     *core.TaskError `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SummaryInput is the input schema for topic_summary.
type SummaryInput struct {
	TopicID string `json:"topic_id" jsonschema:"id of the study topic"`
	Refresh bool   `json:"refresh,omitempty" jsonschema:"regenerate even if a summary is cached"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_all_studies",
		Description: "List study topics, newest first, with how much material each holds",
	}, s.handleListStudies)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_content_from_study",
		Description: "List the materials of a study topic with per-item and total token counts",
	}, s.handleGetContent)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query_study",
		Description: "Answer a question using only the materials of one study topic",
	}, s.handleQuery)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "submit_text",
		Description: "Add plain text material to a study topic. Ingestion runs in the background; poll task_status",
	}, s.handleSubmitText)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "task_status",
		Description: "Report the status of an ingestion task",
	}, s.handleTaskStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "topic_summary",
		Description: "Summarize all materials of a study topic",
	}, s.handleSummary)
}

func (s *Server) handleListStudies(ctx context.Context, _ *mcp.CallToolRequest, input ListStudiesInput) (*mcp.CallToolResult, any, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	topics, err := s.backend.ListTopics(ctx, limit, max(input.Offset, 0))
	if err != nil {
		return errorResult(err), nil, nil
	}
	out := ListStudiesOutput{Studies: make([]Study, len(topics)), Count: len(topics)}
	for i, t := range topics {
		out.Studies[i] = Study{
			TopicID:           t.ID,
			Name:              t.Name,
			Description:       t.Description,
			UseKnowledgeGraph: t.UseKnowledgeGraph,
			ContentCount:      t.ContentCount,
			CreatedAt:         t.CreatedAt,
			UpdatedAt:         t.UpdatedAt,
		}
	}
	return jsonResult(out)
}

func (s *Server) handleGetContent(ctx context.Context, _ *mcp.CallToolRequest, input GetContentInput) (*mcp.CallToolResult, any, error) {
	topic, err := s.backend.Topic(ctx, input.TopicID)
	if err != nil {
		return errorResult(err), nil, nil
	}
	items, err := s.backend.ListContent(ctx, topic.ID, max(input.Limit, 0), max(input.Offset, 0))
	if err != nil {
		return errorResult(err), nil, nil
	}

	out := GetContentOutput{
		TopicID:    topic.ID,
		TopicName:  topic.Name,
		Items:      make([]ContentSummary, len(items)),
		TotalItems: len(items),
	}
	for i, item := range items {
		out.Items[i] = ContentSummary{
			ContentID:     item.ID,
			Type:          string(item.Type),
			Title:         item.Title,
			SourceURL:     item.SourceURL,
			FilePath:      item.FilePath,
			ContentLength: item.ContentLength,
			TokenCount:    item.TokenCount,
			CreatedAt:     item.CreatedAt,
		}
		if input.IncludeText {
			out.Items[i].Text = item.Text
		}
		out.TotalTokens += item.TokenCount
	}
	return jsonResult(out)
}

func (s *Server) handleQuery(ctx context.Context, _ *mcp.CallToolRequest, input QueryInput) (*mcp.CallToolResult, any, error) {
	env, err := s.backend.Ask(ctx, input.TopicID, input.Question, input.Mode)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return jsonResult(env)
}

func (s *Server) handleSubmitText(ctx context.Context, _ *mcp.CallToolRequest, input SubmitTextInput) (*mcp.CallToolResult, any, error) {
	id, err := s.backend.Submit(ctx, core.ContentTypeText, input.TopicID, core.Payload{
		Text:        input.Text,
		Title:       input.Title,
		CallbackURL: input.CallbackURL,
	})
	if err != nil {
		return errorResult(err), nil, nil
	}
	return jsonResult(SubmitOutput{TaskID: id, Status: string(core.TaskStatusPending)})
}

func (s *Server) handleTaskStatus(ctx context.Context, _ *mcp.CallToolRequest, input TaskStatusInput) (*mcp.CallToolResult, any, error) {
	task, err := s.backend.Task(ctx, input.TaskID)
	if err != nil {
		return errorResult(err), nil, nil
	}
	out := TaskStatusOutput{
		TaskID:    task.ID,
		Kind:      string(task.Kind),
		Status:    string(task.Status),
		TopicID:   task.TopicID,
		Error:     task.Error,
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.UpdatedAt,
	}
	if task.Result != nil {
		out.ContentID = task.Result.ContentID
	}
	return jsonResult(out)
}

func (s *Server) handleSummary(ctx context.Context, _ *mcp.CallToolRequest, input SummaryInput) (*mcp.CallToolResult, any, error) {
	d, err := s.backend.Summary(ctx, input.TopicID, input.Refresh)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return jsonResult(d)
}
