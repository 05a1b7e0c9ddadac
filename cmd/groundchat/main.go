// Package main is the groundchat CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/groundchat/internal/cli"
	"github.com/hyperjump/groundchat/internal/config"
	"github.com/hyperjump/groundchat/internal/models"
	"github.com/hyperjump/groundchat/internal/server"
	"github.com/hyperjump/groundchat/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/groundchat/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory takes precedence so that "groundchat server" run from a project
// directory uses the project's config. Returns the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "chat":
		runChat()
	case "history":
		runHistory()
	case "threads":
		runThreads()
	case "seed":
		runSeed()
	case "status":
		runStatus()
	case "init":
		runInit()
	case "version", "--version", "-v":
		fmt.Printf("groundchat version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.String("retrieval_backend", cfg.Retrieval.Backend),
		zap.String("web_searcher", cfg.Web.Searcher),
	)

	components, err := initializeComponents(cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	srv := server.NewServer(
		components.Service,
		components.History,
		components.Store,
		components.DocCount(),
		prometheus.DefaultGatherer,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
	saveVectors(components, cfg, logger)
}

func saveVectors(c *Components, cfg *config.Config, logger *zap.Logger) {
	if c.Local == nil || cfg.Storage.VectorIndexPath == "" {
		return
	}
	if err := c.Local.Save(cfg.Storage.VectorIndexPath); err != nil {
		logger.Warn("vector index save failed", zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(err))
	}
}

// buildMessage joins positional args so multi-word messages work with or without quotes.
func buildMessage(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves flags that appear after positional arguments to the front so
// that flag.Parse sees them; the flag package stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	userID := fs.String("user", os.Getenv("USER"), "user id")
	threadID := fs.String("thread", "", "thread id (empty starts a new thread)")
	mode := fs.String("mode", "", "interaction mode: data, doc, gpts, web (empty = plain chat)")
	tier := fs.String("tier", "", "model tier, e.g. GPT-3 for the fast model")
	scope := fs.String("scope", "", `domain scope for document modes; "all" disables the domain filter`)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: groundchat chat [flags] <message>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))

	message := buildMessage(fs.Args())
	if message == "" {
		fs.Usage()
		os.Exit(1)
	}
	req := models.ChatRequest{
		ThreadID:  *threadID,
		UserID:    *userID,
		Mode:      *mode,
		Message:   message,
		ModelTier: *tier,
		Scope:     *scope,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := chatViaHTTP(ctx, *serverURL, &req, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Chat failed: %v\n", err)
		os.Exit(1)
	}
}

// chatViaHTTP posts req and prints streamed deltas to out. The thread id of the
// answer is reported on status so that follow-ups can pass it with -thread.
func chatViaHTTP(ctx context.Context, serverURL string, req *models.ChatRequest, out, status io.Writer) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/api/v1/chat", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var streamErr error
	err = cli.ReadEvents(resp.Body, func(ev cli.Event) error {
		switch ev.Name {
		case "delta":
			var d struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal([]byte(ev.Data), &d); err != nil {
				return fmt.Errorf("decode delta: %w", err)
			}
			_, err := io.WriteString(out, d.Text)
			return err
		case "done":
			var d struct {
				ThreadID string `json:"thread_id"`
				Strategy string `json:"strategy"`
				Grounded bool   `json:"grounded"`
			}
			if err := json.Unmarshal([]byte(ev.Data), &d); err != nil {
				return fmt.Errorf("decode done: %w", err)
			}
			fmt.Fprintln(out)
			fmt.Fprintf(status, "thread: %s  strategy: %s  grounded: %t\n", d.ThreadID, d.Strategy, d.Grounded)
		case "error":
			var d struct {
				Error string `json:"error"`
				Kind  string `json:"kind"`
			}
			_ = json.Unmarshal([]byte(ev.Data), &d)
			streamErr = fmt.Errorf("%s: %s", d.Kind, d.Error)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return streamErr
}

func runHistory() {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	userID := fs.String("user", os.Getenv("USER"), "user id")
	limit := fs.Int("limit", 50, "maximum number of turns")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: groundchat history [flags] <thread-id>")
		os.Exit(1)
	}
	format, err := parseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	threadID := fs.Arg(0)
	q := url.Values{"user_id": {*userID}, "limit": {strconv.Itoa(*limit)}}
	var out struct {
		ThreadID string        `json:"thread_id"`
		Turns    []models.Turn `json:"turns"`
	}
	if err := getJSON(*serverURL+"/api/v1/threads/"+url.PathEscape(threadID)+"/turns?"+q.Encode(), &out); err != nil {
		fmt.Fprintf(os.Stderr, "History failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteTurns(os.Stdout, threadID, out.Turns, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runThreads() {
	fs := flag.NewFlagSet("threads", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	userID := fs.String("user", os.Getenv("USER"), "user id")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := parseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	var out struct {
		Threads []models.Thread `json:"threads"`
	}
	if err := getJSON(*serverURL+"/api/v1/threads?"+url.Values{"user_id": {*userID}}.Encode(), &out); err != nil {
		fmt.Fprintf(os.Stderr, "Threads failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteThreads(os.Stdout, out.Threads, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func parseFormat(s string) (cli.OutputFormat, error) {
	switch s {
	case "text":
		return cli.OutputText, nil
	case "json":
		return cli.OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func getJSON(u string, v any) error {
	resp, err := http.Get(u)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusResponse is the shape of the GET /api/v1/status response.
type statusResponse struct {
	Threads        int64          `json:"threads"`
	Documents      *uint64        `json:"documents,omitempty"`
	DiskUsageBytes *int64         `json:"disk_usage_bytes,omitempty"`
	Config         map[string]any `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if err := getJSON(*serverURL+"/api/v1/status", &status); err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		writeStatusText(os.Stdout, &status)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func writeStatusText(w io.Writer, s *statusResponse) {
	fmt.Fprintf(w, "threads:            %d   # conversation threads in history\n", s.Threads)
	if s.Documents != nil {
		fmt.Fprintf(w, "documents:          %d   # documents in the local retrieval index\n", *s.Documents)
	}
	if s.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # history + indices on disk\n", *s.DiskUsageBytes)
	}
	if len(s.Config) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# configuration")
	for _, k := range []string{"llm_provider", "default_model", "fast_model", "retrieval_backend", "web_searcher", "web_fetcher", "database_path"} {
		if v, ok := s.Config[k]; ok && v != "" {
			fmt.Fprintf(w, "%-19s %v\n", k+":", v)
		}
	}
}

// runSeed loads pre-tagged documents into the local retrieval index. It opens the
// index directly, so the server must not be running.
func runSeed() {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: groundchat seed [flags] <documents.yaml>")
		os.Exit(1)
	}
	docs, err := readSeedFile(fs.Arg(0))
	if err != nil {
		fmt.Printf("Failed to read documents: %v\n", err)
		os.Exit(1)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Retrieval.Backend != "local" {
		fmt.Printf("seed requires the local retrieval backend (configured: %s)\n", cfg.Retrieval.Backend)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, prometheus.NewRegistry())
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	if err := components.Local.Add(context.Background(), docs); err != nil {
		fmt.Printf("Seeding failed: %v\n", err)
		os.Exit(1)
	}
	saveVectors(components, cfg, logger)
	fmt.Printf("Indexed %d document(s)\n", len(docs))
}

// readSeedFile parses a YAML (or JSON) list of documents. Documents without an id
// or content are rejected.
func readSeedFile(path string) ([]models.DocumentInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var docs []models.DocumentInput
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, d := range docs {
		if strings.TrimSpace(d.ID) == "" || strings.TrimSpace(d.Content) == "" {
			return nil, fmt.Errorf("document %d: id and content are required", i)
		}
	}
	return docs, nil
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path of the config file to write")
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(os.Args[2:])

	if _, err := os.Stat(*configPath); err == nil && !*force {
		fmt.Printf("%s already exists; use -force to overwrite\n", *configPath)
		os.Exit(1)
	}
	var cfg config.Config
	config.ApplyDefaults(&cfg)
	if err := config.Save(*configPath, &cfg); err != nil {
		fmt.Printf("Failed to write config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *configPath)
}

func printUsage() {
	fmt.Println(`groundchat - Retrieval-augmented chat backend

Usage:
  groundchat server [flags]              Start the HTTP server
  groundchat chat [flags] <message>      Send a message and stream the answer
  groundchat history [flags] <thread>    Print a thread's turns
  groundchat threads [flags]             List a user's threads
  groundchat seed [flags] <file>         Load documents into the local index
  groundchat status [flags]              Show server status
  groundchat init [flags]                Write a starter config
  groundchat version                     Show version
  groundchat help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/groundchat/config.yaml)
  --debug            Enable debug logging

Chat Flags:
  --server string    Server URL (default: http://localhost:8080)
  --user string      User id (default: $USER)
  --thread string    Continue an existing thread
  --mode string      data, doc, gpts or web (default: plain chat)
  --tier string      Model tier, e.g. GPT-3
  --scope string     Domain scope for doc/gpts; "all" searches every domain

History/Threads Flags:
  --server string    Server URL
  --user string      User id
  --limit int        Maximum turns (history only, default: 50)
  --output string    text or json (default: text)

Examples:
  groundchat server
  groundchat chat "what is the leave policy?"
  groundchat chat --mode web "latest Go release"
  groundchat chat --thread 5b0c... --mode doc "and for contractors?"
  groundchat history --output json 5b0c...
  groundchat seed docs.yaml`)
}
