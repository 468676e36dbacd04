package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/studyforge"
	"github.com/poiesic/studyforge/config"
	"github.com/poiesic/studyforge/core"
)

var facts = []string{
	"The cell is the basic structural and functional unit of all living organisms.",
	"Prokaryotic cells lack a membrane-bound nucleus; eukaryotic cells have one.",
	"The plasma membrane is a phospholipid bilayer with embedded proteins.",
	"Mitochondria produce most of the cell's ATP through oxidative phosphorylation.",
	"Mitochondria carry their own circular DNA, inherited maternally in humans.",
	"Chloroplasts capture light energy and convert it to chemical energy during photosynthesis.",
	"The light reactions of photosynthesis take place in the thylakoid membranes.",
	"The Calvin cycle fixes carbon dioxide into sugars in the chloroplast stroma.",
	"Ribosomes translate messenger RNA into polypeptide chains.",
	"The rough endoplasmic reticulum is studded with ribosomes and folds secreted proteins.",
	"The smooth endoplasmic reticulum synthesizes lipids and detoxifies drugs.",
	"The Golgi apparatus modifies, sorts and packages proteins for transport.",
	"Lysosomes contain hydrolytic enzymes that break down macromolecules.",
	"The cytoskeleton is built from microtubules, actin filaments and intermediate filaments.",
	"DNA is a double helix of two antiparallel strands joined by base pairs.",
	"Adenine pairs with thymine and guanine pairs with cytosine in DNA.",
	"In RNA, uracil replaces thymine and pairs with adenine.",
	"DNA replication is semiconservative: each new helix keeps one parental strand.",
	"DNA polymerase synthesizes new strands only in the 5' to 3' direction.",
	"Okazaki fragments are short DNA pieces made on the lagging strand.",
	"Transcription copies a gene's DNA sequence into messenger RNA.",
	"RNA polymerase binds a promoter to start transcription.",
	"Introns are spliced out of eukaryotic pre-mRNA before translation.",
	"A codon is a sequence of three nucleotides that specifies an amino acid.",
	"AUG is the start codon and codes for methionine.",
	"Mitosis produces two genetically identical daughter cells.",
	"The phases of mitosis are prophase, metaphase, anaphase and telophase.",
	"Meiosis produces four haploid gametes from one diploid cell.",
	"Crossing over during prophase I exchanges segments between homologous chromosomes.",
	"Nondisjunction during meiosis can cause aneuploidy such as trisomy 21.",
	"Enzymes lower the activation energy of chemical reactions.",
	"Competitive inhibitors bind an enzyme's active site and block the substrate.",
	"Glycolysis splits glucose into two pyruvate molecules in the cytoplasm.",
	"The citric acid cycle runs in the mitochondrial matrix.",
	"The electron transport chain pumps protons to drive ATP synthase.",
	"Fermentation regenerates NAD+ when oxygen is unavailable.",
	"Osmosis is the diffusion of water across a selectively permeable membrane.",
	"Active transport moves substances against their gradient using ATP.",
	"The sodium-potassium pump moves three sodium ions out for every two potassium ions in.",
	"Signal transduction relays an external signal to a cellular response.",
}

var (
	seedFileName = flag.String("src", "", "file of seed data, one fact per line")
	configPath   = flag.String("config", "", "path to a TOML config file")
	topicName    = flag.String("topic", "Cell Biology Demo", "name of the topic to create")
	useGraph     = flag.Bool("graph", false, "answer questions through a knowledge graph")
	batchSize    = flag.Int("batch", 5, "facts per content item")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// linesFromFile returns an iterator over the non-blank lines in a file.
func linesFromFile(filename string) (iter.Seq[string], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if !yield(line) {
				return
			}
		}
	}, nil
}

// linesFromSlice returns an iterator over a slice of strings.
func linesFromSlice(lines []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, line := range lines {
			if !yield(line) {
				return
			}
		}
	}
}

// ingestBatched submits one text item per batch of lines and waits for each.
func ingestBatched(ctx context.Context, svc *studyforge.Service, topicID string, source iter.Seq[string], size int) (int, error) {
	batch := make([]string, 0, size)
	items := 0

	flush := func() error {
		items++
		taskID, err := svc.Submit(ctx, core.ContentTypeText, topicID, core.Payload{
			Title: fmt.Sprintf("Facts part %d", items),
			Text:  strings.Join(batch, "\n"),
		})
		if err != nil {
			return err
		}
		task, err := svc.WaitTask(ctx, taskID, 100*time.Millisecond)
		if err != nil {
			return err
		}
		if task.Status != core.TaskStatusDone {
			return fmt.Errorf("task %s %s: %v", task.ID, task.Status, task.Error)
		}
		slog.Info("ingested", "task_id", task.ID, "content_id", task.Result.ContentID, "facts", len(batch))
		batch = batch[:0]
		return nil
	}

	for line := range source {
		batch = append(batch, line)
		if len(batch) == size {
			if err := flush(); err != nil {
				return items, err
			}
		}
	}

	// Process any remaining lines
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return items, err
		}
	}
	return items, nil
}

func main() {
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	ctx := context.Background()
	svc, err := studyforge.Open(ctx, cfg.DatabasePath,
		studyforge.WithAIConfig(cfg.AIConfig()),
		studyforge.WithRAGDir(cfg.RAGDir),
		studyforge.WithUploadDir(cfg.UploadDir),
	)
	if err != nil {
		panic(err)
	}
	defer svc.Close()

	topic, err := svc.CreateTopic(ctx, *topicName, "Sample facts for trying out studyforge", *useGraph)
	if err != nil {
		panic(err)
	}

	// Determine source of seed data
	var source iter.Seq[string]
	if *seedFileName != "" {
		source, err = linesFromFile(*seedFileName)
		if err != nil {
			panic(err)
		}
	} else {
		source = linesFromSlice(facts)
	}

	items, err := ingestBatched(ctx, svc, topic.ID, source, max(*batchSize, 1))
	if err != nil {
		panic(err)
	}
	slog.Info("seeded topic", "topic_id", topic.ID, "name", topic.Name, "items", items)
}
