package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/codec"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/filtergroup"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/sample"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene"
)

// serveCmd exposes the engine over gRPC
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve Execute and Instantiate over gRPC",
	Long: `Loads the scene corpus, metadata and grouped scenes, then serves the
clevrgen.v1.Generator service until interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&cfgOverride.addr, "addr", "", "Listen address")
	serveCmd.Flags().StringVar(&cfgOverride.scenes, "scenes", "", "Scene corpus file")
	serveCmd.Flags().StringVar(&cfgOverride.grouped, "grouped-scenes", "", "Grouped-scenes file")
	serveCmd.Flags().StringVar(&cfgOverride.metadata, "metadata", "", "Metadata file")
	serveCmd.Flags().Uint64Var(&cfgOverride.seed, "seed", 0, "Random seed")
}

func runServe(cmd *cobra.Command, args []string) error {
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

	srv := codec.NewServer(meta, corpus, index, sample.New(cfg.Generation.Seed, "serve"), logger)
	return codec.Serve(ctx, cfg.Server.Addr, srv, logger)
}
