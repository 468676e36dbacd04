package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/studyforge"
	"github.com/poiesic/studyforge/config"
	"github.com/poiesic/studyforge/core"
	"github.com/poiesic/studyforge/mcpserver"
)

func serveCommand(c *cli.Context) error {
	cfg, err := configFrom(c)
	if err != nil {
		return err
	}
	if c.IsSet("transport") {
		cfg.Server.Transport = c.String("transport")
	}
	if c.IsSet("addr") {
		cfg.Server.Addr = c.String("addr")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withService(c, func(svc *studyforge.Service) error {
		server, err := mcpserver.New(svc, version)
		if err != nil {
			return err
		}
		if cfg.Server.Transport == config.TransportHTTP {
			return server.RunHTTP(ctx, cfg.Server.Addr)
		}
		return server.Run(ctx)
	})
}

func requireArg(c *cli.Context, name string) (string, error) {
	arg := strings.TrimSpace(c.Args().First())
	if arg == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return arg, nil
}

func topicCreateCommand(c *cli.Context) error {
	name := strings.Join(c.Args().Slice(), " ")
	return withService(c, func(svc *studyforge.Service) error {
		topic, err := svc.CreateTopic(c.Context, name, c.String("description"), c.Bool("graph"))
		if err != nil {
			return err
		}
		return printJSON(c, topic)
	})
}

func topicListCommand(c *cli.Context) error {
	return withService(c, func(svc *studyforge.Service) error {
		topics, err := svc.ListTopics(c.Context, c.Int("limit"), c.Int("offset"))
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tMETHOD\tITEMS\tUPDATED")
		for _, t := range topics {
			method := "context"
			if t.UseKnowledgeGraph {
				method = "graph"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", t.ID, t.Name, method, t.ContentCount, t.UpdatedAt.Format(time.DateTime))
		}
		return w.Flush()
	})
}

func topicUpdateCommand(c *cli.Context) error {
	id, err := requireArg(c, "topic id")
	if err != nil {
		return err
	}
	var update core.TopicUpdate
	if c.IsSet("name") {
		name := c.String("name")
		update.Name = &name
	}
	if c.IsSet("description") {
		desc := c.String("description")
		update.Description = &desc
	}
	if c.IsSet("graph") {
		graph := c.Bool("graph")
		update.UseKnowledgeGraph = &graph
	}
	return withService(c, func(svc *studyforge.Service) error {
		topic, err := svc.UpdateTopic(c.Context, id, update)
		if err != nil {
			return err
		}
		return printJSON(c, topic)
	})
}

func topicDeleteCommand(c *cli.Context) error {
	id, err := requireArg(c, "topic id")
	if err != nil {
		return err
	}
	return withService(c, func(svc *studyforge.Service) error {
		if err := svc.DeleteTopic(c.Context, id); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "deleted topic %s\n", id)
		return nil
	})
}

func topicReindexCommand(c *cli.Context) error {
	id, err := requireArg(c, "topic id")
	if err != nil {
		return err
	}
	return withService(c, func(svc *studyforge.Service) error {
		report, err := svc.Reindex(c.Context, id)
		if err != nil {
			return fmt.Errorf("reindex failed: %w", err)
		}
		return printJSON(c, report)
	})
}

func contentListCommand(c *cli.Context) error {
	id, err := requireArg(c, "topic id")
	if err != nil {
		return err
	}
	return withService(c, func(svc *studyforge.Service) error {
		items, err := svc.ListContent(c.Context, id, c.Int("limit"), c.Int("offset"))
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tTOKENS\tTITLE")
		for _, item := range items {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", item.ID, item.Type, item.TokenCount, item.Title)
		}
		return w.Flush()
	})
}

func contentDeleteCommand(c *cli.Context) error {
	id, err := requireArg(c, "content id")
	if err != nil {
		return err
	}
	return withService(c, func(svc *studyforge.Service) error {
		if err := svc.DeleteContent(c.Context, id); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "deleted content %s\n", id)
		return nil
	})
}

// ingestSource picks the task kind from the source flags. Exactly one of
// --text, --url, --youtube or --file must be given. For files the returned
// path still has to be copied into the upload directory.
func ingestSource(c *cli.Context) (core.TaskKind, core.Payload, string, error) {
	payload := core.Payload{
		Title:       c.String("title"),
		CallbackURL: c.String("callback-url"),
	}
	var kinds []core.TaskKind
	var file string
	if c.IsSet("text") {
		kinds = append(kinds, core.ContentTypeText)
		payload.Text = c.String("text")
	}
	if c.IsSet("url") {
		kinds = append(kinds, core.ContentTypeWebpage)
		payload.URL = c.String("url")
	}
	if c.IsSet("youtube") {
		kinds = append(kinds, core.ContentTypeYouTube)
		payload.URL = c.String("youtube")
	}
	if c.IsSet("file") {
		file = c.String("file")
		switch strings.ToLower(filepath.Ext(file)) {
		case ".png", ".jpg", ".jpeg":
			kinds = append(kinds, core.ContentTypeImage)
			payload.Prompt = c.String("prompt")
		default:
			kinds = append(kinds, core.ContentTypeDocument)
		}
	}
	if len(kinds) != 1 {
		return "", core.Payload{}, "", errors.New("exactly one of --text, --url, --youtube or --file is required")
	}
	return kinds[0], payload, file, nil
}

func ingestCommand(c *cli.Context) error {
	topicID, err := requireArg(c, "topic id")
	if err != nil {
		return err
	}
	kind, payload, file, err := ingestSource(c)
	if err != nil {
		return err
	}

	return withService(c, func(svc *studyforge.Service) error {
		if file != "" {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			payload.FilePath, err = svc.SaveUpload(c.Context, topicID, filepath.Base(file), f)
			f.Close()
			if err != nil {
				return err
			}
		}

		taskID, err := svc.Submit(c.Context, kind, topicID, payload)
		if err != nil {
			return err
		}

		// The task manager lives in this process, so leaving early would
		// interrupt the task.
		ctx, cancel := context.WithTimeout(c.Context, c.Duration("wait"))
		defer cancel()
		task, err := svc.WaitTask(ctx, taskID, 200*time.Millisecond)
		if err != nil {
			return fmt.Errorf("waiting for task %s: %w", taskID, err)
		}
		if err := printJSON(c, task); err != nil {
			return err
		}
		if task.Status != core.TaskStatusDone {
			return fmt.Errorf("task %s %s", task.ID, task.Status)
		}
		return nil
	})
}

func askCommand(c *cli.Context) error {
	topicID, err := requireArg(c, "topic id")
	if err != nil {
		return err
	}
	question := strings.Join(c.Args().Tail(), " ")
	return withService(c, func(svc *studyforge.Service) error {
		env, err := svc.Ask(c.Context, topicID, question, c.String("mode"))
		if err != nil {
			return err
		}
		return printJSON(c, env)
	})
}

func statusCommand(c *cli.Context) error {
	id, err := requireArg(c, "task id")
	if err != nil {
		return err
	}
	return withService(c, func(svc *studyforge.Service) error {
		task, err := svc.Task(c.Context, id)
		if err != nil {
			return err
		}
		return printJSON(c, task)
	})
}

type digestKind int

const (
	digestSummary digestKind = iota
	digestMindmap
)

func digestCommand(kind digestKind) cli.ActionFunc {
	return func(c *cli.Context) error {
		id, err := requireArg(c, "topic id")
		if err != nil {
			return err
		}
		return withService(c, func(svc *studyforge.Service) error {
			get := svc.Summary
			if kind == digestMindmap {
				get = svc.Mindmap
			}
			d, err := get(c.Context, id, c.Bool("refresh"))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, d.Text)
			return nil
		})
	}
}
