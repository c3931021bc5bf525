package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/assemble"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/filtergroup"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/gate"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/logging"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/orchestrator"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/program"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/sample"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/store"
)

const samplesPerTemplate = 5

// generateCmd grounds templates into question files
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a question dataset from templates",
	Long: `Instantiates every selected template file against the scene corpus and
its filter-group index, writing one {prefix}_{split}_{class}.json file per
template class. Val runs avoid questions already in the matching train file.

Each file gets its own random stream derived from the seed and its class, so
output does not depend on --workers.`,
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&cfgOverride.scenes, "scenes", "", "Scene corpus file")
	f.StringVar(&cfgOverride.grouped, "grouped-scenes", "", "Grouped-scenes file")
	f.StringVar(&cfgOverride.metadata, "metadata", "", "Metadata file")
	f.StringVar(&cfgOverride.templateDir, "template-dir", "", "Template directory")
	f.StringVar(&cfgOverride.outputDir, "output-dir", "", "Output directory for question files")
	f.StringVar(&cfgOverride.prefix, "prefix", "", "Output filename prefix")
	f.StringVar(&cfgOverride.maxTime, "max-time", "", "Time budget per template, e.g. 30s (empty for none)")
	f.Uint64Var(&cfgOverride.seed, "seed", 0, "Random seed")
	f.IntVar(&cfgOverride.instances, "instances-per-template", 0, "Questions kept per template")
	f.IntVar(&cfgOverride.maxTries, "max-tries", 0, "Attempts per template (0 for unlimited)")
	f.IntVar(&cfgOverride.workers, "workers", 0, "Template files processed in parallel")
	f.StringSliceVar(&cfgOverride.templates, "templates", nil, "Template classes to run, or all")
	f.BoolVar(&cfgOverride.noBoolean, "no-boolean", false, "Skip templates with boolean answers")
}

// #region environment
// genEnv is the read-only state shared by all workers.
type genEnv struct {
	meta    *scene.Metadata
	corpus  *scene.Corpus
	index   *filtergroup.Index
	st      *store.Store
	memory  *orchestrator.OutcomeMemory
	runID   string
	split   string
	outDir  string
	logger  *zap.Logger
	options generateOptions
}

type generateOptions struct {
	seed      uint64
	instances int
	maxTries  int
	maxTime   time.Duration
	prefix    string
	noBoolean bool
	gate      gate.GateConfig
}

// #endregion environment

func runGenerate(cmd *cobra.Command, args []string) (err error) {
	if err := applyOverrides(cmd); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	meta, err := scene.LoadMetadata(cfg.Paths.Metadata)
	if err != nil {
		return err
	}
	corpus, err := scene.LoadCorpus(cfg.Paths.Scenes)
	if err != nil {
		return err
	}
	index, err := filtergroup.LoadForCorpus(cfg.Paths.GroupedScenes, corpus)
	if err != nil {
		return err
	}
	files, err := program.LoadTemplateDir(cfg.Paths.TemplateDir, cfg.Generation.Templates)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Paths.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	st, err := store.NewStore(cfg.Paths.Database)
	if err != nil {
		return err
	}
	defer st.Close()
	memory, err := orchestrator.NewOutcomeMemory(st.DB())
	if err != nil {
		return fmt.Errorf("outcome memory: %w", err)
	}

	classes := make([]string, len(files))
	for i, tf := range files {
		classes[i] = tf.Class
	}
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	split := corpus.Info.Get("split")
	run, err := st.StartRun(split, cfg.Generation.Seed, classes, string(cfgJSON))
	if err != nil {
		return err
	}
	defer func() {
		if ferr := st.FinishRun(run.RunID, err); ferr != nil && err == nil {
			err = ferr
		}
	}()

	env := &genEnv{
		meta:   meta,
		corpus: corpus,
		index:  index,
		st:     st,
		memory: memory,
		runID:  run.RunID,
		split:  split,
		outDir: cfg.Paths.OutputDir,
		logger: logger.With(zap.String("run_id", run.RunID), zap.String("split", split)),
		options: generateOptions{
			seed:      cfg.Generation.Seed,
			instances: cfg.Generation.InstancesPerTemplate,
			maxTries:  cfg.Generation.MaxTries,
			maxTime:   cfg.GetGenerationMaxTime(),
			prefix:    cfg.Generation.Prefix,
			noBoolean: cfg.Generation.NoBoolean,
			gate:      gate.GateConfig{MinDistinctAnswers: cfg.Generation.MinDistinctAnswers},
		},
	}
	env.logger.Info("generation started",
		zap.Int("template_files", len(files)),
		zap.Int("scenes", corpus.Len()),
		zap.Int("groups", index.Len()),
		zap.Int("workers", cfg.Generation.Workers))

	var total, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Generation.Workers)
	for _, tf := range files {
		g.Go(func() error {
			n, ferr := env.generateFile(gctx, tf)
			total.Add(int64(n))
			if ferr == nil {
				return nil
			}
			if isCancellation(ferr) {
				return ferr
			}
			// Structural problems stop this file only.
			failed.Add(1)
			env.logger.Error("template file failed", zap.String("class", tf.Class), zap.Error(ferr))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d questions in %d files (%d failed)\n",
		run.RunID, total.Load(), len(files), failed.Load())
	if failed.Load() > 0 {
		return fmt.Errorf("%d of %d template files failed", failed.Load(), len(files))
	}
	return nil
}

// #region generate-file
// generateFile instantiates every template of one class and writes its
// question file. The returned count is the number of questions written.
func (e *genEnv) generateFile(ctx context.Context, tf program.TemplateFile) (int, error) {
	log := e.logger.With(zap.String("class", tf.Class))
	path := filepath.Join(e.outDir, assemble.OutputFilename(e.options.prefix, e.split, tf.Class))
	rec := store.RunFile{RunID: e.runID, Class: tf.Class, Path: path}

	n, err := e.writeClass(ctx, log, tf, path)
	rec.Questions = n
	if err != nil {
		rec.Failed = true
		rec.Error = err.Error()
	}
	if rerr := e.st.RecordFile(rec); rerr != nil {
		log.Warn("record file failed", zap.Error(rerr))
	}
	return n, err
}

func (e *genEnv) writeClass(ctx context.Context, log *zap.Logger, tf program.TemplateFile, path string) (int, error) {
	heldOut, err := assemble.HeldOutTexts(e.outDir, e.options.prefix, e.split, tf.Class)
	if err != nil {
		return 0, err
	}
	rng := sample.New(e.options.seed, tf.Class)
	orch := orchestrator.NewOrchestrator(e.meta, e.corpus, e.index, rng, log).
		WithGate(e.options.gate).
		WithMemory(e.memory, e.runID)

	templates := tf.Indexed()
	if e.options.noBoolean {
		templates = tf.WithoutBoolean(e.meta)
	}

	var questions []assemble.GroundedQuestion
	var cancelled error
	for _, it := range templates {
		ref := orchestrator.TemplateRef{Class: tf.Class, Index: it.Index}
		budget := orchestrator.NewBudget(e.options.maxTries, e.options.maxTime, time.Now())
		res, err := orch.InstantiateMany(ctx, ref, it.Template, e.options.instances, budget, heldOut)
		if err != nil && !isCancellation(err) {
			return 0, fmt.Errorf("template %s: %w", ref, err)
		}
		if err != nil {
			// Keep what was accepted before cancellation.
			cancelled = fmt.Errorf("template %s: %w", ref, err)
		}

		qs, err := assemble.Postprocess(res.Candidates, e.split, tf.Class, it.Index)
		if err != nil {
			return 0, err
		}
		qs = assemble.Cap(qs, e.options.instances)
		log.Info("template done",
			zap.Int("template_index", it.Index),
			zap.Int("attempts", res.Attempts),
			zap.Int("accepted", res.Accepted),
			zap.Int("kept", len(qs)),
			zap.Bool("exhausted", res.Exhausted))

		texts := make([]string, len(qs))
		for i, q := range qs {
			texts[i] = q.Question
			e.logProvenance(log, res.Candidates[i], q)
		}
		logging.LogSample(log, rng, "sample question", texts, samplesPerTemplate)
		questions = append(questions, qs...)
		if cancelled != nil {
			break
		}
	}

	assemble.AssignIndexes(questions)
	if err := assemble.WriteQuestionFile(path, e.corpus.Info, questions); err != nil {
		return 0, err
	}
	if cancelled != nil {
		log.Warn("wrote partial questions", zap.String("path", path), zap.Int("questions", len(questions)), zap.Error(cancelled))
		return len(questions), cancelled
	}
	log.Info("wrote questions", zap.String("path", path), zap.Int("questions", len(questions)))
	return len(questions), nil
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (e *genEnv) logProvenance(log *zap.Logger, c orchestrator.Candidate, q assemble.GroundedQuestion) {
	answers, err := json.Marshal(q.Answers)
	if err != nil {
		log.Warn("marshal answers failed", zap.Error(err))
		return
	}
	entry := logging.ProvenanceEntry{
		RunID:         e.runID,
		TemplateClass: q.TemplateFilename,
		TemplateIndex: q.TemplateIndex,
		GroupType:     string(c.GroupType),
		GroupIndex:    c.GroupIndex,
		Question:      q.Question,
		AnswersJSON:   string(answers),
		Decision:      "accept",
	}
	if err := logging.LogQuestion(e.st.DB(), entry); err != nil {
		log.Warn("provenance log failed", zap.Error(err))
	}
}

// #endregion generate-file
