// Package mcpserver exposes study topics to MCP clients.
//
// Tools:
//   - list_all_studies: topics newest first with content counts
//   - get_content_from_study: a topic's items with per-item token counts
//   - query_study: answer a question from one topic
//   - submit_text: queue plain text for ingestion
//   - task_status: poll an ingestion task
//   - topic_summary: the topic's cached or freshly generated summary
//
// The server runs over stdio or streamable HTTP.
package mcpserver
