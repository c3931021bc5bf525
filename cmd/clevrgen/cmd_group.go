package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/filtergroup"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/program"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/sample"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/store"
)

var groupNoCache bool

// groupCmd builds the filter-group index
var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Build the filter-group index for a scene corpus",
	Long: `Scans the scene corpus with the grouping templates and writes the
grouped-scenes file used by generate. Indexes are cached in the database,
keyed by corpus, grouping templates and build settings.`,
	RunE: runGroup,
}

func init() {
	groupCmd.Flags().StringVar(&cfgOverride.scenes, "scenes", "", "Scene corpus file")
	groupCmd.Flags().StringVar(&cfgOverride.grouped, "grouped-scenes", "", "Grouped-scenes output file")
	groupCmd.Flags().StringVar(&cfgOverride.groupingTemplates, "grouping-templates", "", "Grouping template file")
	groupCmd.Flags().Uint64Var(&cfgOverride.seed, "seed", 0, "Random seed")
	groupCmd.Flags().BoolVar(&groupNoCache, "no-cache", false, "Rebuild even if the database holds a cached index")
}

func runGroup(cmd *cobra.Command, args []string) error {
	if err := applyOverrides(cmd); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	corpus, err := scene.LoadCorpus(cfg.Paths.Scenes)
	if err != nil {
		return err
	}
	templates, err := filtergroup.LoadGroupingTemplates(cfg.Grouping.Templates)
	if err != nil {
		return err
	}

	st, err := store.NewStore(cfg.Paths.Database)
	if err != nil {
		return err
	}
	defer st.Close()
	cache, err := filtergroup.NewGroupStore(st.DB())
	if err != nil {
		return err
	}

	buildCfg := filtergroup.BuildConfig{
		InstancesPerTemplate: cfg.Grouping.InstancesPerTemplate,
		ScenesPerGroup:       cfg.Grouping.ScenesPerGroup,
		MaxTime:              cfg.GetGroupingMaxTime(),
	}
	seed := cfg.Generation.Seed
	fp, err := filtergroup.Fingerprint(corpus.Info, corpus.Len(), templates, buildCfg, seed)
	if err != nil {
		return err
	}
	log := logger.With(zap.String("fingerprint", fp), zap.Int("scenes", corpus.Len()))

	var ix *filtergroup.Index
	if !groupNoCache {
		cached, ok, err := cache.Load(fp)
		if err != nil {
			return err
		}
		if ok {
			if err := cached.Verify(corpus); err != nil {
				log.Warn("cached index failed verification, rebuilding", zap.Error(err))
			} else {
				log.Info("using cached index", zap.Int("groups", cached.Len()))
				ix = cached
			}
		}
	}
	if ix == nil {
		ix, err = filtergroup.NewBuilder(buildCfg, sample.New(seed, "group"), log).Build(ctx, corpus, templates)
		if err != nil {
			return err
		}
		if err := cache.Save(fp, ix); err != nil {
			return err
		}
	}

	if err := filtergroup.WriteFile(cfg.Paths.GroupedScenes, corpus.Info, ix); err != nil {
		return err
	}
	log.Info("wrote grouped scenes",
		zap.String("path", cfg.Paths.GroupedScenes),
		zap.Int("unique", len(ix.Keys(program.GroupUnique))),
		zap.Int("multiple", len(ix.Keys(program.GroupMultiple))))
	fmt.Fprintf(cmd.OutOrStdout(), "%d groups -> %s\n", ix.Len(), cfg.Paths.GroupedScenes)
	return nil
}
