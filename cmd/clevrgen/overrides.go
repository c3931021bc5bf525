package main

import "github.com/spf13/cobra"

// cfgOverride holds subcommand flags that override config values. A flag
// only applies when set on the command line; the result is re-validated.
var cfgOverride struct {
	scenes            string
	grouped           string
	groupingTemplates string
	metadata          string
	templateDir       string
	outputDir         string
	prefix            string
	maxTime           string
	addr              string
	seed              uint64
	instances         int
	maxTries          int
	workers           int
	templates         []string
	noBoolean         bool
}

func applyOverrides(cmd *cobra.Command) error {
	f := cmd.Flags()
	set := map[string]func(){
		"scenes":                 func() { cfg.Paths.Scenes = cfgOverride.scenes },
		"grouped-scenes":         func() { cfg.Paths.GroupedScenes = cfgOverride.grouped },
		"grouping-templates":     func() { cfg.Grouping.Templates = cfgOverride.groupingTemplates },
		"metadata":               func() { cfg.Paths.Metadata = cfgOverride.metadata },
		"template-dir":           func() { cfg.Paths.TemplateDir = cfgOverride.templateDir },
		"output-dir":             func() { cfg.Paths.OutputDir = cfgOverride.outputDir },
		"prefix":                 func() { cfg.Generation.Prefix = cfgOverride.prefix },
		"max-time":               func() { cfg.Generation.MaxTime = cfgOverride.maxTime },
		"addr":                   func() { cfg.Server.Addr = cfgOverride.addr },
		"seed":                   func() { cfg.Generation.Seed = cfgOverride.seed },
		"instances-per-template": func() { cfg.Generation.InstancesPerTemplate = cfgOverride.instances },
		"max-tries":              func() { cfg.Generation.MaxTries = cfgOverride.maxTries },
		"workers":                func() { cfg.Generation.Workers = cfgOverride.workers },
		"templates":              func() { cfg.Generation.Templates = cfgOverride.templates },
		"no-boolean":             func() { cfg.Generation.NoBoolean = cfgOverride.noBoolean },
	}
	for name, apply := range set {
		if f.Lookup(name) != nil && f.Changed(name) {
			apply()
		}
	}
	return cfg.Validate()
}
