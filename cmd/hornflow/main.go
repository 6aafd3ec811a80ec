// Command hornflow runs the cone-of-influence argument filter and/or the
// rule exploder over a Horn-clause rule set read from a Mangle source
// file, writing the transformed rule set back out. The analyze pass skips
// the transforms and dumps both abstract domains' fixpoints instead.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"hornflow/internal/applog"
	"hornflow/internal/argreach"
	"hornflow/internal/config"
	"hornflow/internal/dataflow"
	"hornflow/internal/mangleio"
	"hornflow/internal/model"
	"hornflow/internal/rule"
	"hornflow/internal/symbol"
	"hornflow/internal/term"
	"hornflow/internal/transform/coifilter"
	"hornflow/internal/transform/exploder"
	"hornflow/internal/tupleset"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "hornflow:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("hornflow", flag.ContinueOnError)
	rulesPath := fs.String("rules", "", "path to a Mangle rule-set source file (falls back to output.schema_path)")
	pass := fs.String("pass", "coi", "pass to run: coi | explode | both | analyze")
	outputs := fs.String("outputs", "", "comma-separated list of output predicate names")
	cutoff := fs.Int("cutoff", 0, "tuple-set cutoff (0 uses config/default)")
	threshold := fs.Int("threshold", 0, "rule-exploder threshold (0 uses config/default)")
	dumpFormat := fs.String("dump", "", `output format: "text" or "mangle" (empty uses config/default)`)
	modelPath := fs.String("model", "", "Mangle fact file holding a solution over the coi-filtered predicates; lifted back to the source vocabulary (requires -pass coi)")
	logLevel := fs.String("log-level", "", "log level: trace|debug|info|warn|error (empty uses config/default)")
	configPath := fs.String("config", "", "explicit config file, overrides workspace discovery")
	noWorkspace := fs.Bool("no-workspace", false, "disable .hornflow workspace discovery")
	workspaceDir := fs.String("workspace-dir", "", "explicit workspace root (skip walk-up discovery)")
	initWorkspace := fs.Bool("init-workspace", false, "create a .hornflow/ template in the current directory and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Handle -init-workspace early exit
	if *initWorkspace {
		root := "."
		if *workspaceDir != "" {
			root = *workspaceDir
		}
		if err := config.InitWorkspace(root); err != nil {
			return fmt.Errorf("initializing workspace: %w", err)
		}
		fmt.Fprintf(os.Stderr, "created %s workspace in %s\n", config.WorkspaceDirName, root)
		return nil
	}

	cfg, _, err := config.LoadWithWorkspace(*configPath, config.WorkspaceOptions{
		Disable:     *noWorkspace,
		ExplicitDir: *workspaceDir,
	})
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *cutoff > 0 {
		cfg.TupleSet.Cutoff = *cutoff
	}
	if *threshold > 0 {
		cfg.Exploder.Threshold = *threshold
	}
	if *dumpFormat != "" {
		cfg.Output.Format = *dumpFormat
	}
	if *logLevel != "" {
		cfg.Dataflow.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if *rulesPath == "" {
		*rulesPath = cfg.Output.SchemaPath
	}
	if *rulesPath == "" {
		return fmt.Errorf("-rules is required (or set output.schema_path in the config)")
	}
	if *modelPath != "" && *pass != "coi" {
		return fmt.Errorf("-model only applies to -pass coi (the coi filter is the pass that records a model converter)")
	}

	log := applog.New(cfg.Dataflow.LogLevel)
	log.Info("starting", "version", cfg.Server.Version, "rules", *rulesPath, "pass", *pass, "run_id", log.RunID)

	var outputNames []string
	if *outputs != "" {
		outputNames = strings.Split(*outputs, ",")
	}

	prog, err := mangleio.LoadFile(*rulesPath)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}
	if len(outputNames) > 0 {
		want := make(map[string]bool, len(outputNames))
		for _, o := range outputNames {
			want[strings.TrimSpace(o)] = true
		}
		for _, sym := range prog.Rules.Predicates() {
			if want[sym.Name] {
				prog.Rules.AddOutput(sym)
			}
		}
	}
	prog.Rules.Close()

	rs := prog.Rules
	switch *pass {
	case "analyze":
		log.Debug("running fixpoint analyses", "cutoff", cfg.TupleSet.Cutoff)
		analyze(rs, cfg.TupleSet.Cutoff)
		log.Info("done", "rule_count", len(rs.Rules()))
		return nil
	case "coi":
		log.Debug("running cone-of-influence filter")
		var conv model.Converter
		rs, conv = coifilter.Filter(rs, prog.Symbols)
		if *modelPath != "" {
			if err := liftModel(*modelPath, rs, conv); err != nil {
				return err
			}
		}
	case "explode":
		log.Debug("running rule exploder", "threshold", cfg.Exploder.Threshold)
		rs, _ = exploder.Explode(rs, prog.Symbols, exploder.Config{Threshold: cfg.Exploder.Threshold})
	case "both":
		log.Debug("running cone-of-influence filter")
		rs, _ = coifilter.Filter(rs, prog.Symbols)
		log.Debug("running rule exploder", "threshold", cfg.Exploder.Threshold)
		rs, _ = exploder.Explode(rs, prog.Symbols, exploder.Config{Threshold: cfg.Exploder.Threshold})
	default:
		return fmt.Errorf("unknown -pass %q (want coi, explode, both, or analyze)", *pass)
	}

	switch cfg.Output.Format {
	case "mangle":
		mangleio.WriteRuleSet(os.Stdout, rs)
	default:
		mangleio.WriteRuleSetText(os.Stdout, rs)
	}

	log.Info("done", "rule_count", len(rs.Rules()))
	return nil
}

// analyze runs both abstract domains to fixpoint (bottom-up intersected
// with top-down, the same combination the transforms use) and writes the
// per-predicate fact dumps to stdout.
func analyze(rs *rule.RuleSet, cutoff int) {
	order := rs.Predicates()
	sort.Slice(order, func(i, j int) bool { return lessSym(order[i], order[j]) })

	arUp := dataflow.New(&argreach.Ctx{}, rs, argreach.NewEngineFact, argreach.BottomUpDomain{}, nil)
	arUp.RunBottomUp()
	arDown := dataflow.New(&argreach.Ctx{BottomUp: arUp}, rs, argreach.NewEngineFact, nil, argreach.TopDownDomain{})
	arDown.RunTopDown()
	arUp.Intersect(arDown)
	fmt.Println("argument reachability:")
	arUp.Dump(os.Stdout, order)

	tsUp := dataflow.New(&tupleset.Ctx{Cutoff: cutoff}, rs, tupleset.NewEngineFact, tupleset.BottomUpDomain{}, nil)
	tsUp.RunBottomUp()
	tsDown := dataflow.New(&tupleset.Ctx{Cutoff: cutoff, BottomUp: tsUp}, rs, tupleset.NewEngineFact, nil, tupleset.TopDownDomain{})
	tsDown.RunTopDown()
	tsUp.Intersect(tsDown)
	fmt.Println("tuple sets:")
	tsUp.Dump(os.Stdout, order)
}

func lessSym(a, b *symbol.Sym) bool {
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.Arity < b.Arity
}

// liftModel reads a Mangle fact file holding a solution over the
// coi-filtered predicates (one ground fact per tuple the solver found),
// lifts it back onto the source vocabulary through conv, and writes the
// result to stdout via mangleio.WriteModel. Facts are matched against the
// transformed rule set's predicates by name and arity, since the model
// file is parsed with its own symbol table.
func liftModel(path string, rs *rule.RuleSet, conv model.Converter) error {
	prog, err := mangleio.LoadFile(path)
	if err != nil {
		return fmt.Errorf("loading model: %w", err)
	}

	byName := make(map[string]*symbol.Sym)
	for _, sym := range rs.Predicates() {
		byName[fmt.Sprintf("%s/%d", sym.Name, sym.Arity)] = sym
	}

	truth := &term.Const{Value: term.BoolValue(true)}
	m := model.NewModel()
	for _, r := range prog.Rules.Rules() {
		if r.UninterpretedTailSize() > 0 || len(r.Interp) > 0 {
			return fmt.Errorf("model file %s: %s is a rule, not a ground fact", path, r.Head.Pred)
		}
		key := fmt.Sprintf("%s/%d", r.Head.Pred.Name, r.Head.Pred.Arity)
		sym, ok := byName[key]
		if !ok {
			return fmt.Errorf("model file %s: %s names no predicate of the transformed rule set", path, key)
		}
		fi := m.Funcs[sym]
		if fi == nil {
			fi = &model.FuncInterp{}
			m.Funcs[sym] = fi
		}
		fi.Entries = append(fi.Entries, model.Entry{Args: r.Head.Args, Value: truth})
	}

	mangleio.WriteModel(os.Stdout, conv.Convert(m))
	return nil
}
