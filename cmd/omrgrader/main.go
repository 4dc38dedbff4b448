package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/omrgrader/internal/grading"
	"github.com/pavelanni/omrgrader/internal/handler"
	appI18n "github.com/pavelanni/omrgrader/internal/i18n"
	"github.com/pavelanni/omrgrader/internal/keyfile"
	"github.com/pavelanni/omrgrader/internal/llm"
	"github.com/pavelanni/omrgrader/internal/llm/prompts"
	"github.com/pavelanni/omrgrader/internal/model"
	"github.com/pavelanni/omrgrader/internal/report"
	"github.com/pavelanni/omrgrader/internal/review"
	"github.com/pavelanni/omrgrader/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "omrgrader",
		Short: "Grade OMR answer sheets against an answer key and review the results",
	}

	serve := serveCmd()
	root.AddCommand(serve, gradeCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `omrgrader --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// addGradingFlags registers the options shared by every command that scores sheets.
func addGradingFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("alphabet", "A,B,C,D", "Default option alphabet for keys that declare none")
	f.String("grade-bands", grading.DefaultGradeScale.String(), "Grade scale as label:min-percent pairs")
	f.Float64("target", grading.DefaultTargetPercent, "Score percentage at or above which the verdict is excellent")
	f.StringP("lang", "l", "en", "Report language (en, ru)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP review server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "omrgrader.db", "SQLite database path")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /omr)")
	f.String("llm-url", "", "OpenAI-compatible API base URL (empty disables insights)")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("insights-style", string(prompts.VariantBrief), "Study insights prompt style (brief, detailed)")
	addGradingFlags(cmd)
	return cmd
}

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade one response file against an answer key",
		Example: `  omrgrader grade --key key.yaml --responses sheet.csv
  omrgrader grade -k key.json -r sheet.json --status incorrect
  omrgrader grade -k key.yaml -r sheet.csv --override 12=C --override 14=- --db omrgrader.db`,
		RunE: runGrade,
	}
	f := cmd.Flags()
	f.StringP("key", "k", "", "Answer key file (json, yaml, csv, txt)")
	f.StringP("responses", "r", "", "Response file (json, yaml, csv, txt)")
	f.StringP("search", "s", "", "Only show questions whose number or topic contains this term")
	f.String("status", "all", "Only show questions with this status (all, correct, incorrect, unanswered)")
	f.StringArray("override", nil, "Replace a mark as question=option; use - for unanswered (repeatable)")
	f.String("reviewer", "", "Reviewer name recorded with overrides")
	f.StringP("format", "f", "text", "Output format (text, json, xlsx)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.Bool("no-color", false, "Disable colored terminal output")
	f.String("db", "", "SQLite database path to keep the session for review (empty keeps it in memory)")
	addGradingFlags(cmd)

	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("responses")

	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export reviewed sessions as JSON or XLSX",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "omrgrader.db", "SQLite database path")
	f.String("session", "", "Session ID to export (empty exports all sessions)")
	f.StringP("format", "f", "json", "Output format (json, xlsx)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addGradingFlags(cmd)
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("OMRGRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("omrgrader")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/omrgrader")
	v.AddConfigPath("/etc/omrgrader")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// reviewConfig builds the grading parameters from flags, environment and config file.
func reviewConfig(v *viper.Viper) (model.ReviewConfig, error) {
	alphabet, err := grading.ParseAlphabet(v.GetString("alphabet"))
	if err != nil {
		return model.ReviewConfig{}, fmt.Errorf("parse alphabet: %w", err)
	}
	scale, err := grading.ParseGradeScale(v.GetString("grade-bands"))
	if err != nil {
		return model.ReviewConfig{}, fmt.Errorf("parse grade bands: %w", err)
	}
	return model.ReviewConfig{
		Alphabet:      alphabet,
		GradeScale:    scale,
		TargetPercent: v.GetFloat64("target"),
		Lang:          v.GetString("lang"),
	}, nil
}

// openReview opens the store and a review manager over it.
func openReview(v *viper.Viper, dbPath string) (*store.Store, *review.Manager, error) {
	cfg, err := reviewConfig(v)
	if err != nil {
		return nil, nil, err
	}
	if err := appI18n.Init(cfg.Lang); err != nil {
		return nil, nil, fmt.Errorf("init i18n: %w", err)
	}
	db, err := store.New(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	m, err := review.NewManager(db, cfg)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("create review manager: %w", err)
	}
	return db, m, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, reviews, err := openReview(v, v.GetString("db"))
	if err != nil {
		return err
	}
	defer db.Close()

	var llmClient *llm.Client
	if llmURL := v.GetString("llm-url"); llmURL != "" {
		style := strings.ToLower(strings.TrimSpace(v.GetString("insights-style")))
		if !prompts.IsValidVariant(style) {
			slog.Warn("invalid insights-style, using brief", "style", style)
			style = string(prompts.VariantBrief)
		}
		llmClient = llm.New(llmURL, v.GetString("llm-key"), v.GetString("llm-model"), style)
		if err := llmClient.Ping(context.Background()); err != nil {
			return fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", llmURL, "model", v.GetString("llm-model"))
	} else {
		slog.Info("study insights disabled: no LLM URL configured")
	}

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	h := handler.New(reviews, llmClient)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware())

	if basePath != "" {
		r.Route(basePath, h.Routes)
	} else {
		h.Routes(r)
	}

	count, err := db.SessionCount()
	if err != nil {
		return fmt.Errorf("count sessions: %w", err)
	}
	cfg := reviews.Config()
	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"db", v.GetString("db"),
		"sessions", count,
		"alphabet", strings.Join(cfg.Alphabet.Strings(), ","),
		"grade_bands", cfg.GradeScale.String(),
		"target", cfg.TargetPercent,
		"lang", cfg.Lang,
		"insights", llmClient != nil,
		"base_path", basePath,
	)
	return http.ListenAndServe(addr, r)
}

// gradeReport is the JSON form of the grade command's output.
type gradeReport struct {
	Session model.ReviewSession    `json:"session"`
	Query   grading.Query          `json:"query"`
	Summary grading.Summary        `json:"summary"`
	Scoped  grading.Summary        `json:"scoped_summary"`
	Answers []grading.AnswerRecord `json:"answers"`
}

func runGrade(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	format := strings.ToLower(v.GetString("format"))
	if format != "text" && format != "json" && format != "xlsx" {
		return fmt.Errorf("unknown output format %q", format)
	}
	status, err := grading.ParseStatusFilter(v.GetString("status"))
	if err != nil {
		return fmt.Errorf("status %q: %w", v.GetString("status"), err)
	}
	pairs, err := cmd.Flags().GetStringArray("override")
	if err != nil {
		return err
	}
	overrides, err := parseOverrides(pairs)
	if err != nil {
		return err
	}

	kf, err := keyfile.LoadKey(v.GetString("key"))
	if err != nil {
		return err
	}
	rf, err := keyfile.LoadResponses(v.GetString("responses"))
	if err != nil {
		return err
	}
	req, err := createRequest(kf, rf)
	if err != nil {
		return err
	}

	dbPath := v.GetString("db")
	if dbPath == "" {
		dbPath = ":memory:"
	}
	db, reviews, err := openReview(v, dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	view, err := reviews.Create(req)
	if err != nil {
		return fmt.Errorf("grade %s: %w", v.GetString("responses"), err)
	}
	id := view.Session.ID
	for _, o := range overrides {
		o.Reviewer = v.GetString("reviewer")
		if _, err := reviews.Override(id, o); err != nil {
			return fmt.Errorf("override question %d: %w", o.QuestionNumber, err)
		}
	}

	q := grading.Query{Term: v.GetString("search"), Status: status}
	snap, err := reviews.Query(id, q)
	if err != nil {
		return err
	}

	w, closeOut, err := openOutput(v.GetString("output"))
	if err != nil {
		return err
	}
	defer closeOut()

	ctx := appI18n.WithLang(context.Background(), v.GetString("lang"))
	switch format {
	case "json":
		err := writeJSON(w, gradeReport{Session: snap.Session, Query: q, Summary: snap.Summary, Scoped: snap.Scoped, Answers: snap.Answers})
		if err != nil {
			return err
		}
	case "xlsx":
		exp, err := reviews.Export(id)
		if err != nil {
			return err
		}
		if err := report.WriteXLSX(ctx, w, exp); err != nil {
			return fmt.Errorf("write xlsx: %w", err)
		}
	default:
		noColor := v.GetBool("no-color") || w != io.Writer(os.Stdout)
		if err := report.NewTerminal(noColor).Write(ctx, w, snap.Session.Info, snap.Summary, snap.Answers); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	if v.GetString("db") != "" {
		slog.Info("session stored for review", "session_id", id, "db", dbPath)
	}
	return nil
}

// createRequest joins a loaded key and response file into a review request.
func createRequest(kf keyfile.KeyFile, rf keyfile.ResponseFile) (review.CreateRequest, error) {
	key, err := kf.Entries()
	if err != nil {
		return review.CreateRequest{}, fmt.Errorf("answer key: %w", err)
	}
	alphabet, err := kf.OptionAlphabet()
	if err != nil {
		return review.CreateRequest{}, fmt.Errorf("answer key: %w", err)
	}
	responses, err := rf.Selections()
	if err != nil {
		return review.CreateRequest{}, fmt.Errorf("responses: %w", err)
	}
	info := kf.Exam
	if rf.Candidate != "" {
		info.Candidate = rf.Candidate
	}
	return review.CreateRequest{Info: info, Alphabet: alphabet, Key: key, Responses: responses}, nil
}

// parseOverrides parses question=option pairs. An empty option, "-" or "none" clears the mark.
func parseOverrides(pairs []string) ([]model.OverrideRequest, error) {
	out := make([]model.OverrideRequest, 0, len(pairs))
	for _, p := range pairs {
		q, opt, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("override %q: want question=option", p)
		}
		n, err := strconv.Atoi(strings.TrimSpace(q))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("override %q: invalid question number", p)
		}
		out = append(out, model.OverrideRequest{QuestionNumber: n, Selection: grading.ParseOption(opt)})
	}
	return out, nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	format := strings.ToLower(v.GetString("format"))
	if format != "json" && format != "xlsx" {
		return fmt.Errorf("unknown export format %q", format)
	}

	db, reviews, err := openReview(v, v.GetString("db"))
	if err != nil {
		return err
	}
	defer db.Close()

	var exports []model.SessionExport
	if id := v.GetString("session"); id != "" {
		exp, err := reviews.Export(id)
		if err != nil {
			return fmt.Errorf("export session %s: %w", id, err)
		}
		exports = append(exports, exp)
	} else {
		exports, err = reviews.ExportAll()
		if err != nil {
			return fmt.Errorf("export sessions: %w", err)
		}
	}

	w, closeOut, err := openOutput(v.GetString("output"))
	if err != nil {
		return err
	}
	defer closeOut()

	if format == "xlsx" {
		ctx := appI18n.WithLang(context.Background(), v.GetString("lang"))
		if err := report.WriteXLSX(ctx, w, exports...); err != nil {
			return fmt.Errorf("write xlsx: %w", err)
		}
	} else if err := writeJSON(w, exports); err != nil {
		return err
	}
	slog.Info("exported sessions", "count", len(exports), "format", format)
	return nil
}

// openOutput returns stdout for "" or "-", otherwise a created file.
func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, func() {
		if err := f.Close(); err != nil {
			slog.Error("close output file", "path", path, "error", err)
		}
	}, nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}
