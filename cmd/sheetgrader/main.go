package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/sheetgrader/internal/engine"
	"github.com/pavelanni/sheetgrader/internal/extract"
	"github.com/pavelanni/sheetgrader/internal/handler"
	appI18n "github.com/pavelanni/sheetgrader/internal/i18n"
	"github.com/pavelanni/sheetgrader/internal/model"
	"github.com/pavelanni/sheetgrader/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sheetgrader",
		Short: "Automated grading for scanned exam answer sheets",
	}

	serve := serveCmd()
	root.AddCommand(serve, gradeCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `sheetgrader --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP grading server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "sheetgrader.db", "SQLite database path")
	f.StringSliceP("keys", "k", nil, "Paths to answer key JSON files to import (repeatable)")
	f.String("format", string(model.FormatMultipleChoice), "Question format for imported papers (multiple_choice, fill_blanks)")
	f.StringP("mode", "m", string(model.ModeAuto), "Evaluation mode (auto, manual, omr)")
	f.Bool("proportional-partial", false, "Legacy proportional partial credit with penalty for multi-answer questions")
	f.String("vision-url", "", "OpenAI-compatible vision API base URL (empty disables page extraction)")
	f.String("vision-key", "ollama", "API key for the vision endpoint")
	f.String("vision-model", "llama3.2-vision", "Vision model name")
	f.StringP("lang", "l", "en", "Report language (en, ru)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /grading)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("admin-password", "", "Initial admin password (or set SHEETGRADER_ADMIN_PASSWORD)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade one submission offline from key and answer files",
		RunE:  runGrade,
	}
	f := cmd.Flags()
	f.StringP("keys", "k", "", "Path to answer key JSON file (required)")
	f.String("answers", "", "Path to extracted answers JSON file (required)")
	f.String("format", string(model.FormatMultipleChoice), "Question format (multiple_choice, fill_blanks)")
	f.StringP("mode", "m", string(model.ModeAuto), "Evaluation mode (auto, manual, omr)")
	f.Bool("proportional-partial", false, "Legacy proportional partial credit with penalty for multi-answer questions")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("keys")
	_ = cmd.MarkFlagRequired("answers")

	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a paper's grading results as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "sheetgrader.db", "SQLite database path")
	f.Int64("paper", 0, "Paper ID to export (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("paper")

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

	v.SetEnvPrefix("SHEETGRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("sheetgrader")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/sheetgrader")
	v.AddConfigPath("/etc/sheetgrader")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Seed default admin user if no users exist.
	if err := seedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	format := model.QuestionFormat(v.GetString("format"))
	mode := model.EvalMode(v.GetString("mode"))

	if err := importKeyFiles(db, v.GetStringSlice("keys"), format, mode); err != nil {
		return fmt.Errorf("import answer keys: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	// Create the vision client only when an endpoint is configured;
	// submissions can still be fed pre-extracted answers without one.
	var extractor *extract.Client
	if url := v.GetString("vision-url"); url != "" {
		extractor = extract.New(url, v.GetString("vision-key"), v.GetString("vision-model"))
		if err := extractor.Ping(context.Background()); err != nil {
			return fmt.Errorf("vision health check: %w", err)
		}
		slog.Info("vision endpoint OK", "url", url, "model", v.GetString("vision-model"))
	}

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	cfg := model.ServiceConfig{
		Mode:                mode,
		ProportionalPartial: v.GetBool("proportional-partial"),
		BasePath:            basePath,
		SecureCookies:       v.GetBool("secure-cookies"),
		Lang:                lang,
	}

	eng := engine.New(engine.WithProportionalPartial(cfg.ProportionalPartial))
	h := handler.New(db, extractor, eng, cfg)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"mode", mode,
		"format", format,
		"vision_url", v.GetString("vision-url"),
		"lang", lang,
		"base_path", basePath,
	)
	return http.ListenAndServe(addr, r)
}

func runGrade(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	keyData, err := os.ReadFile(v.GetString("keys"))
	if err != nil {
		return fmt.Errorf("read keys: %w", err)
	}
	keys, err := model.ParseQuestionKeys(keyData)
	if err != nil {
		return fmt.Errorf("parse keys: %w", err)
	}

	answerData, err := os.ReadFile(v.GetString("answers"))
	if err != nil {
		return fmt.Errorf("read answers: %w", err)
	}
	answers, err := model.ParseExtractedAnswers(answerData)
	if err != nil {
		return fmt.Errorf("parse answers: %w", err)
	}

	eng := engine.New(engine.WithProportionalPartial(v.GetBool("proportional-partial")))
	result := eng.Evaluate(keys, answers,
		model.QuestionFormat(v.GetString("format")),
		model.EvalMode(v.GetString("mode")))

	return writeJSON(v.GetString("output"), result)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportPaper(v.GetInt64("paper"))
	if err != nil {
		return fmt.Errorf("export paper: %w", err)
	}

	return writeJSON(v.GetString("output"), export)
}

func writeJSON(outPath string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}

// importKeyFiles imports each answer key file as a paper, skipping
// files already imported with the same content. A changed file is
// skipped with a warning so it cannot invalidate graded submissions.
func importKeyFiles(db *store.Store, paths []string, format model.QuestionFormat, mode model.EvalMode) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}

		if storedHash == hash {
			slog.Info("key file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Warn("key file changed since last import, skipping to avoid breaking graded submissions",
				"path", path)
			continue
		}

		keys, err := model.ParseQuestionKeys(data)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		paperID, err := db.CreatePaper(model.Paper{
			Name:   name,
			Format: format,
			Mode:   mode,
		})
		if err != nil {
			return fmt.Errorf("create paper from %s: %w", path, err)
		}
		if err := db.InsertQuestionKeys(paperID, keys); err != nil {
			return fmt.Errorf("insert keys from %s: %w", path, err)
		}

		if err := db.SetImportedFileHash(path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported answer keys", "path", path, "paper", paperID, "questions", len(keys))
	}

	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func seedAdmin(db *store.Store, password string) error {
	count, err := db.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or SHEETGRADER_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}
