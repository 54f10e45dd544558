package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ldi/tasker/internal/db"
	"github.com/ldi/tasker/internal/manager"
	"github.com/ldi/tasker/internal/mcp"
	"github.com/ldi/tasker/internal/ui"
)

var (
	dbPath     string
	configPath string
	verbose    bool
)

func main() {
	flag.StringVar(&dbPath, "db-path", defaultDBPath, "Path to database file")
	flag.StringVar(&configPath, "config", defaultConfigPath, "Path to YAML config file")
	flag.BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	flag.Usage = usage
	flag.Parse()

	var command string
	var args []string

	if flag.NArg() == 0 {
		selected, err := ui.RunMenu()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error running menu: %v\n", err)
			os.Exit(1)
		}
		if selected == "" {
			os.Exit(0)
		}
		command = selected
		args = []string{}
	} else {
		command = flag.Arg(0)
		args = flag.Args()[1:]
	}

	var err error
	switch command {
	case "init":
		err = runInit(args)
	case "add":
		err = runAdd(args)
	case "list":
		err = runList(args)
	case "get":
		err = runGet(args)
	case "update":
		err = runUpdate(args)
	case "complete":
		err = runComplete(args)
	case "delete":
		err = runDelete(args)
	case "search":
		err = runSearch(args)
	case "stats":
		err = runStats(args)
	case "suggest":
		err = runSuggest(args)
	case "history":
		err = runHistory(args)
	case "export":
		err = runExport(args)
	case "import":
		err = runImport(args)
	case "mcp":
		err = runMCP(args)
	case "help":
		usage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: tasker [flags] <command> [arguments]

Commands:
  init [dir]          Create .tasker/ with a database and config
  add                 Add a task (interactive without -title)
  list                List tasks (-status, -category)
  get <id>            Show one task
  update <id>         Change task fields
  complete <id>       Mark a task completed (-actual hours)
  delete <id>         Delete a task
  search <keyword>    Find tasks by text
  stats               Task statistics
  suggest             Suggest a priority (-category, -hours, -deadline)
  history             List completion records
  export <file>       Export tasks as JSON or CSV
  import <file>       Import tasks from a JSON export
  mcp                 Serve MCP tools over stdio

Flags:
`)
	flag.PrintDefaults()
}

func logf(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[tasker] "+format+"\n", args...)
	}
}

// app bundles what a command needs. close releases the database.
type app struct {
	db      *db.DB
	manager *manager.Manager
	cfg     Config
}

func (a *app) close() {
	a.db.Close()
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logf("config: %s (default category %q, relog %v)", configPath, cfg.DefaultCategory, cfg.RelogCompletion)

	database, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := database.Init(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	logf("database: %s", dbPath)

	if cfg.AutoSnapshot {
		database.EnableAutoSnapshot(cfg.SnapshotPath, func(err error) {
			fmt.Fprintf(os.Stderr, "Error exporting snapshot: %v\n", err)
		})
		logf("auto snapshot: %s", cfg.SnapshotPath)
	}

	m := manager.New(database, manager.Options{
		DefaultCategory: cfg.DefaultCategory,
		RelogCompletion: cfg.RelogCompletion,
	})
	return &app{db: database, manager: m, cfg: cfg}, nil
}

func runInit(args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	taskerDir := filepath.Join(targetDir, ".tasker")
	if err := os.MkdirAll(taskerDir, 0755); err != nil {
		return fmt.Errorf("failed to create .tasker directory: %w", err)
	}
	fmt.Println("✓ Created .tasker/ directory")

	gitignorePath := filepath.Join(taskerDir, ".gitignore")
	if err := os.WriteFile(gitignorePath, []byte("tasker.db*\nsnapshot.json\n"), 0644); err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}
	fmt.Println("✓ Created .tasker/.gitignore")

	finalDBPath := dbPath
	if dbPath == defaultDBPath {
		finalDBPath = filepath.Join(taskerDir, "tasker.db")
	}
	finalConfigPath := configPath
	if configPath == defaultConfigPath {
		finalConfigPath = filepath.Join(taskerDir, "config.yaml")
	}

	database, err := db.Open(finalDBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Init(context.Background()); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	fmt.Printf("✓ Initialized database at %s\n", finalDBPath)

	written, err := writeDefaultConfig(finalConfigPath, filepath.Join(taskerDir, "snapshot.json"))
	if err != nil {
		return err
	}
	if written {
		fmt.Printf("✓ Wrote default config to %s\n", finalConfigPath)
	} else {
		logf("keeping existing config %s", finalConfigPath)
	}

	fmt.Println("✓ Tasker initialized successfully")
	return nil
}

func runMCP(args []string) error {
	a, err := openApp(context.Background())
	if err != nil {
		return err
	}
	defer a.close()

	s := mcp.NewServer(a.manager)
	return mcp.Serve(s)
}

func now() time.Time {
	return time.Now().UTC()
}
