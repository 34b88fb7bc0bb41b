// Command nodeflow runs serialized workflows and manages the workflow store.
//
// Usage:
//
//	nodeflow run --file workflow.json            # execute a workflow file
//	nodeflow run --id wf-1                       # execute a stored workflow
//	nodeflow save --file workflow.json           # persist a workflow file
//	nodeflow list                                # list stored workflows
//	nodeflow validate --file workflow.json       # validate without running
//	nodeflow version
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/nodeflow/config"
	"github.com/BaSui01/nodeflow/metrics"
	_ "github.com/BaSui01/nodeflow/nodes"
	"github.com/BaSui01/nodeflow/store"
	"github.com/BaSui01/nodeflow/workflow"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runRun(os.Args[2:])
	case "save":
		runSave(os.Args[2:])
	case "list":
		runList(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "version":
		fmt.Printf("nodeflow %s (built %s)\n", Version, BuildTime)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`nodeflow - workflow automation engine

Commands:
  run       Execute a workflow from a file or the store
  save      Persist a workflow file into the store
  list      List stored workflows
  validate  Validate a workflow file without running it
  version   Show version information

Run 'nodeflow <command> -h' for command flags.`)
}

func runRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	file := fs.String("file", "", "Workflow definition file (json or yaml)")
	id := fs.String("id", "", "Stored workflow id")
	record := fs.Bool("record", false, "Record the run result in redis")
	fs.Parse(args)

	cfg := mustLoadConfig(*configPath)
	logger := buildLogger(cfg.Log)
	defer logger.Sync()

	var def *workflow.Definition
	switch {
	case *file != "":
		def = mustReadDefinition(*file)
	case *id != "":
		repo := mustOpenRepository(cfg, logger)
		loaded, err := repo.Get(context.Background(), *id)
		if err != nil {
			fatal("load workflow: %v", err)
		}
		def = loaded
	default:
		fatal("run needs --file or --id")
	}

	wf, err := workflow.FromDefinition(def, workflow.DefaultRegistry())
	if err != nil {
		fatal("build workflow: %v", err)
	}

	collector := metrics.NewCollector("nodeflow", nil, logger)
	engine := workflow.NewEngine(
		workflow.WithLogger(logger),
		workflow.WithMetrics(collector),
		workflow.WithNodeTimeout(cfg.Engine.NodeTimeout),
		workflow.WithRetry(cfg.Engine.MaxRetries, cfg.Engine.RetryBackoff),
	)

	run, err := engine.Run(context.Background(), wf)
	if err != nil {
		fatal("run workflow: %v", err)
	}

	if *record {
		runStore, err := store.NewRunStore(store.RunStoreConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       cfg.Redis.RunTTL,
		}, logger)
		if err != nil {
			fatal("connect run store: %v", err)
		}
		defer runStore.Close()
		if err := runStore.SaveRun(context.Background(), run); err != nil {
			fatal("record run: %v", err)
		}
	}

	out, _ := json.MarshalIndent(run, "", "  ")
	fmt.Println(string(out))
	if run.Status != workflow.RunCompleted {
		os.Exit(1)
	}
}

func runSave(args []string) {
	fs := flag.NewFlagSet("save", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	file := fs.String("file", "", "Workflow definition file (json or yaml)")
	fs.Parse(args)

	if *file == "" {
		fatal("save needs --file")
	}
	cfg := mustLoadConfig(*configPath)
	logger := buildLogger(cfg.Log)
	defer logger.Sync()

	def := mustReadDefinition(*file)
	if issues := workflow.Validate(def, workflow.DefaultRegistry()); len(issues) > 0 {
		for _, issue := range issues {
			fmt.Fprintln(os.Stderr, issue.String())
		}
		os.Exit(1)
	}

	repo := mustOpenRepository(cfg, logger)
	if err := repo.Save(context.Background(), def); err != nil {
		fatal("save workflow: %v", err)
	}
	fmt.Printf("saved workflow %s\n", def.Config.ID)
}

func runList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg := mustLoadConfig(*configPath)
	logger := buildLogger(cfg.Log)
	defer logger.Sync()

	repo := mustOpenRepository(cfg, logger)
	records, err := repo.List(context.Background())
	if err != nil {
		fatal("list workflows: %v", err)
	}
	for _, record := range records {
		fmt.Printf("%s\t%s\t%s\n", record.ID, record.Name, record.UpdatedAt.Format(time.RFC3339))
	}
}

func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	file := fs.String("file", "", "Workflow definition file (json or yaml)")
	fs.Parse(args)

	if *file == "" {
		fatal("validate needs --file")
	}
	def := mustReadDefinition(*file)
	issues := workflow.Validate(def, workflow.DefaultRegistry())
	if len(issues) == 0 {
		fmt.Println("ok")
		return
	}
	for _, issue := range issues {
		fmt.Fprintln(os.Stderr, issue.String())
	}
	os.Exit(1)
}

func mustLoadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fatal("load config: %v", err)
	}
	return cfg
}

func mustReadDefinition(path string) *workflow.Definition {
	data, err := os.ReadFile(path)
	if err != nil {
		fatal("read workflow file: %v", err)
	}
	var def *workflow.Definition
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		def, err = workflow.DefinitionFromYAML(data)
	default:
		def, err = workflow.DefinitionFromJSON(data)
	}
	if err != nil {
		fatal("parse workflow file: %v", err)
	}
	return def
}

func mustOpenRepository(cfg *config.Config, logger *zap.Logger) *store.WorkflowRepository {
	db, err := store.OpenDatabase(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		fatal("open database: %v", err)
	}
	repo, err := store.NewWorkflowRepository(db, logger)
	if err != nil {
		fatal("init repository: %v", err)
	}
	return repo
}

func buildLogger(logCfg config.LogConfig) *zap.Logger {
	zapConfig := zap.NewProductionConfig()
	if level, err := zapcore.ParseLevel(logCfg.Level); err == nil {
		zapConfig.Level = zap.NewAtomicLevelAt(level)
	}
	if logCfg.Format == "console" {
		zapConfig.Encoding = "console"
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	logger, err := zapConfig.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
