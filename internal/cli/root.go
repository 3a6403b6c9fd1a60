// Package cli implements the studymap CLI commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/studymap/internal/apperr"
	"github.com/rcliao/studymap/internal/config"
	"github.com/rcliao/studymap/internal/genai"
	"github.com/rcliao/studymap/internal/logger"
	"github.com/rcliao/studymap/internal/session"
	"github.com/rcliao/studymap/internal/store"
	"github.com/rcliao/studymap/internal/study"
	"github.com/rcliao/studymap/internal/syllabus"
)

var (
	dbPath     string
	configPath string
	formatFlag string
	verbose    bool
	ephemeral  bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "studymap",
	Short: "Turn a syllabus into a mind map and study from it",
	Long: "Upload a syllabus (PDF or text) to get a mind map of its topics, then quiz yourself, " +
		"flip flashcards, plan your revision and ask a tutor that answers from the syllabus.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $STUDYMAP_DB or ~/.studymap/studymap.db)")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ~/.studymap/config.toml)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "text", "Output format: json or text")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging on stderr")
	RootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "Keep everything in memory; nothing survives the process")
}

// newGenerator builds the content generator. Tests replace it.
var newGenerator = func(cfg config.Config, log *logger.Logger) (genai.Generator, error) {
	c, err := genai.NewOpenAIClient(cfg.GenAI(), log)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func loadConfig() config.Config {
	if err := config.LoadDotEnv(); err != nil {
		exitErr("load .env", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		exitErr("load config", err)
	}
	if dbPath != "" {
		cfg.Store.Backend = config.BackendSQLite
		cfg.Store.Path = dbPath
	}
	if ephemeral {
		cfg.Store.Backend = config.BackendMemory
	}
	return cfg
}

func newLogger(cfg config.Config) *logger.Logger {
	log, err := logger.New(cfg.Log.Mode, verbose)
	if err != nil {
		return logger.Nop()
	}
	return log
}

// app is what most commands need: settings, storage and the session.
type app struct {
	cfg    config.Config
	log    *logger.Logger
	st     store.Store
	holder *session.Holder
}

func openApp(ctx context.Context) *app {
	cfg := loadConfig()
	log := newLogger(cfg)
	st, err := cfg.Store.OpenStore(ctx)
	if err != nil {
		exitErr("open store", err)
	}
	a := &app{cfg: cfg, log: log, st: st, holder: session.NewHolder(st, syllabus.WithLogger(log))}
	if err := a.holder.Restore(ctx); err != nil {
		exitErr("restore session", err)
	}
	return a
}

func (a *app) Close() {
	_ = a.st.Close()
	a.log.Sync()
}

// repo returns the logged-in repository or exits.
func (a *app) repo() *syllabus.Repository {
	repo, err := a.holder.Repository()
	if err != nil {
		exitErr("session", fmt.Errorf("%w (run: studymap login <name>)", err))
	}
	return repo
}

func (a *app) generator() genai.Generator {
	gen, err := newGenerator(a.cfg, a.log)
	if err != nil {
		exitErr("content generator", err)
	}
	return gen
}

func (a *app) activeSource(ctx context.Context) study.Source {
	src, err := study.ActiveSource(ctx, a.repo())
	if err != nil {
		exitErr("active syllabus", err)
	}
	return src
}

func jsonOutput() bool { return formatFlag == "json" }

func printJSON(w io.Writer, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %s\n", msg, describe(err))
	os.Exit(1)
}

// describe keeps the friendly message for generator failures and the full
// chain for everything else.
func describe(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindUnavailable, apperr.KindMalformed:
		return study.Describe(err)
	}
	return err.Error()
}
