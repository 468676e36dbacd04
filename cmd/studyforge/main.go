// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "studyforge",
		Usage:   "Study material store with question answering over MCP",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML config file",
				EnvVars: []string{"STUDYFORGE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Directory holding the database, graphs and uploads",
			},
		},
		Before: loadConfig,
		After:  closeLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the study tools over MCP",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "transport",
						Usage: "MCP transport (stdio, http)",
					},
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address for the http transport",
					},
				},
			},
			{
				Name:  "topic",
				Usage: "Manage study topics",
				Subcommands: []*cli.Command{
					{
						Name:      "create",
						Usage:     "Create a topic",
						ArgsUsage: "NAME",
						Action:    topicCreateCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Topic description"},
							&cli.BoolFlag{Name: "graph", Usage: "Answer questions through a knowledge graph (--graph=false for full-context answers)", Value: true},
						},
					},
					{
						Name:   "list",
						Usage:  "List topics, newest first",
						Action: topicListCommand,
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "limit", Usage: "Maximum number of topics", Value: 50},
							&cli.IntFlag{Name: "offset", Usage: "Number of topics to skip"},
						},
					},
					{
						Name:      "update",
						Usage:     "Rename, redescribe or switch a topic's query method",
						ArgsUsage: "TOPIC_ID",
						Action:    topicUpdateCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "name", Usage: "New name"},
							&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "New description"},
							&cli.BoolFlag{Name: "graph", Usage: "Enable or disable the knowledge graph"},
						},
					},
					{
						Name:      "delete",
						Usage:     "Delete a topic with its content and graph",
						ArgsUsage: "TOPIC_ID",
						Action:    topicDeleteCommand,
					},
					{
						Name:      "reindex",
						Usage:     "Rebuild a topic's knowledge graph from its stored content",
						ArgsUsage: "TOPIC_ID",
						Action:    topicReindexCommand,
					},
				},
			},
			{
				Name:  "content",
				Usage: "Inspect and remove ingested material",
				Subcommands: []*cli.Command{
					{
						Name:      "list",
						Usage:     "List a topic's content items, newest first",
						ArgsUsage: "TOPIC_ID",
						Action:    contentListCommand,
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "limit", Usage: "Maximum number of items (0 for all)"},
							&cli.IntFlag{Name: "offset", Usage: "Number of items to skip"},
						},
					},
					{
						Name:      "delete",
						Usage:     "Delete a content item",
						ArgsUsage: "CONTENT_ID",
						Action:    contentDeleteCommand,
					},
				},
			},
			{
				Name:      "ingest",
				Usage:     "Add material to a topic",
				ArgsUsage: "TOPIC_ID",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "text", Usage: "Plain text material"},
					&cli.StringFlag{Name: "url", Usage: "Web page to fetch"},
					&cli.StringFlag{Name: "youtube", Usage: "YouTube video to transcribe"},
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Document or image file to copy in"},
					&cli.StringFlag{Name: "title", Usage: "Title for the material"},
					&cli.StringFlag{Name: "prompt", Usage: "Interpretation prompt for images"},
					&cli.StringFlag{Name: "callback-url", Usage: "URL notified when the task finishes"},
					&cli.DurationFlag{
						Name:  "wait",
						Usage: "How long to wait for the task to finish",
						Value: 10 * time.Minute,
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from a topic's material",
				ArgsUsage: "TOPIC_ID QUESTION...",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Graph retrieval mode (naive, local, global, hybrid)",
						Value: "hybrid",
					},
				},
			},
			{
				Name:      "status",
				Usage:     "Show an ingestion task",
				ArgsUsage: "TASK_ID",
				Action:    statusCommand,
			},
			{
				Name:      "summary",
				Usage:     "Summarize a topic",
				ArgsUsage: "TOPIC_ID",
				Action:    digestCommand(digestSummary),
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "refresh", Usage: "Regenerate instead of using the cached summary"},
				},
			},
			{
				Name:      "mindmap",
				Usage:     "Render a topic as a mermaid mindmap",
				ArgsUsage: "TOPIC_ID",
				Action:    digestCommand(digestMindmap),
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "refresh", Usage: "Regenerate instead of using the cached mindmap"},
				},
			},
		},
	}
}
