package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mrab/sscprep/internal/handler"
	"github.com/mrab/sscprep/internal/history"
	appI18n "github.com/mrab/sscprep/internal/i18n"
	"github.com/mrab/sscprep/internal/oracle"
	"github.com/mrab/sscprep/internal/session"
	"github.com/mrab/sscprep/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sscprep",
		Short: "SSC exam practice engine with oracle-generated questions",
	}

	serve := serveCmd()
	root.AddCommand(serve)

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the exam practice HTTP server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "sscprep.db", "SQLite database path")
	f.String("oracle-url", "", "OpenAI-compatible API base URL (empty for default)")
	f.String("oracle-key", "", "API key for the generation/grading oracle")
	f.String("oracle-model", "gpt-4o-mini", "Oracle model name")
	f.StringP("lang", "l", "bn", "Default UI language (bn, en)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
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

	v.SetEnvPrefix("SSCPREP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("sscprep")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/sscprep")
	v.AddConfigPath("/etc/sscprep")
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

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	oracleClient, err := oracle.New(
		v.GetString("oracle-url"),
		v.GetString("oracle-key"),
		v.GetString("oracle-model"),
	)
	if err != nil {
		return fmt.Errorf("create oracle client: %w", err)
	}
	if err := oracleClient.Ping(context.Background()); err != nil {
		return fmt.Errorf("oracle health check: %w", err)
	}
	slog.Info("oracle endpoint OK", "url", v.GetString("oracle-url"), "model", v.GetString("oracle-model"))

	entries, err := db.LoadHistory()
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	hist := history.New(entries, db.SaveHistory)
	slog.Info("history loaded", "sessions", len(entries))

	engine := session.New(oracleClient, hist)

	h, err := handler.New(engine, hist, db)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"model", v.GetString("oracle-model"),
		"oracle_url", v.GetString("oracle-url"),
		"lang", lang,
	)
	return http.ListenAndServe(addr, r)
}
