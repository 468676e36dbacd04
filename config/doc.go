// Package config loads process configuration and sets up logging.
//
// Values are layered: built-in defaults, then an optional TOML file, then
// STUDYFORGE_* environment variables. Command-line flags are applied by the
// caller on top of the loaded Config before Validate is called.
//
// Example file:
//
//	data_dir = "/var/lib/studyforge"
//	workers = 4
//	task_retention = "720h"
//	log_level = "info"
//
//	[ai]
//	host = "https://api.openai.com/v1"
//	completion_model = "gpt-4o-mini"
//	embedding_model = "text-embedding-3-small"
//
//	[server]
//	transport = "http"
//	addr = ":8080"
package config
