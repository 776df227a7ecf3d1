// Command kestrel-sync runs the thread-synchronization pass over a kernel
// file and prints the rewritten kernel. It is the standalone driver used
// for inspecting barrier placement outside the full pipeline.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/kestrel-lang/kestrel/internal/kir"
	"github.com/kestrel-lang/kestrel/internal/kirtext"
	"github.com/kestrel-lang/kestrel/internal/threadsync"
)

var (
	version = "0.1.0"
)

// config is the optional YAML driver configuration; flags override it.
type config struct {
	Scopes []string `yaml:"scopes"`
	Quiet  bool     `yaml:"quiet"`
}

func main() {
	var (
		showVersion = flag.Bool("version", false, "show version information")
		scopeList   = flag.String("scopes", "", "comma-separated storage scopes to enforce (default shared,global)")
		configPath  = flag.String("config", "", "YAML config file")
		watch       = flag.Bool("watch", false, "re-run the pass whenever the input file changes")
		quiet       = flag.Bool("quiet", false, "suppress the rewritten kernel dump")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("kestrel-sync v%s\n", version)
		return
	}

	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: kestrel-sync [options] <kernel.yaml>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	input := args[0]

	cfg := config{Scopes: []string{"shared", "global"}}
	if *configPath != "" {
		if err := loadConfig(*configPath, &cfg); err != nil {
			log.Fatalf("config: %v", err)
		}
	}
	if *scopeList != "" {
		cfg.Scopes = strings.Split(*scopeList, ",")
	}
	if *quiet {
		cfg.Quiet = true
	}

	if err := run(input, cfg); err != nil {
		log.Fatalf("kestrel-sync: %v", err)
	}
	if *watch {
		if err := watchLoop(input, cfg); err != nil {
			log.Fatalf("watch: %v", err)
		}
	}
}

func loadConfig(path string, cfg *config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func run(input string, cfg config) error {
	m, err := kirtext.LoadFile(input)
	if err != nil {
		return err
	}
	before := m.NumStmts()
	for _, scope := range cfg.Scopes {
		if err := threadsync.Apply(m, strings.TrimSpace(scope)); err != nil {
			return fmt.Errorf("scope %s: %w", scope, err)
		}
	}
	log.Printf("%s: %d statements, %d synthesized", input, before, m.NumStmts()-before)
	if !cfg.Quiet {
		fmt.Print(kir.Format(m.Body))
	}
	return nil
}

// watchLoop re-runs the pass on every write to the input file. Pass
// failures are reported and watching continues; only watcher failures end
// the loop.
func watchLoop(input string, cfg config) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	// Watch the directory: editors typically replace the file, which drops
	// a watch registered on the file itself.
	if err := w.Add(filepath.Dir(input)); err != nil {
		return err
	}
	log.Printf("watching %s", input)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(input) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := run(input, cfg); err != nil {
				log.Printf("kestrel-sync: %v", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
