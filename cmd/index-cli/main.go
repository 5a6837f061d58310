// Package main provides a CLI tool for managing the unidrive index.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/unidrive/unidrive/internal/index"
	"github.com/unidrive/unidrive/internal/logging"
	"github.com/unidrive/unidrive/internal/remote"
	"github.com/unidrive/unidrive/internal/store"
)

func main() {
	dataDir := flag.String("data", "/tmp/unidrive", "Data directory for the file store")
	dbURL := flag.String("db", os.Getenv("DATABASE_URL"), "PostgreSQL URL (optional)")
	depth := flag.Int("depth", 0, "Max traversal depth (0 = unlimited)")
	mode := flag.String("mode", "append", "Merge mode for rebuild: replace or append")
	limit := flag.Int("limit", 10, "Max search results")
	logLevel := flag.String("log", "error", "Log level")

	flag.Parse()

	logging.Init(logging.Config{Level: *logLevel, Format: "console"})
	defer logging.Sync()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	mgr, err := newManager(*dataDir, *dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := mgr.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading snapshot: %v\n", err)
		os.Exit(1)
	}

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "rebuild":
		cmdRebuild(ctx, mgr, cmdArgs, *depth, *mode)
	case "search":
		cmdSearch(mgr, cmdArgs, *limit)
	case "ls":
		cmdLs(mgr, cmdArgs)
	case "stats":
		cmdStats(mgr)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func newManager(dataDir, dbURL string) (*index.Manager, error) {
	fileStore, err := store.NewFile(dataDir)
	if err != nil {
		return nil, err
	}
	var primary store.Store
	if dbURL != "" {
		if pg, err := store.NewPostgres(dbURL); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: database unavailable (%v), using file store\n", err)
		} else {
			primary = pg
		}
	}

	tokens := &remote.ClientCredentials{
		TokenURL:     os.Getenv("TOKEN_URL"),
		ClientID:     os.Getenv("CLIENT_ID"),
		ClientSecret: os.Getenv("CLIENT_SECRET"),
	}
	client := remote.New(remote.Config{
		BaseURL:     envOr("REMOTE_BASE_URL", "https://graph.microsoft.com/v1.0"),
		DriveUserID: os.Getenv("DRIVE_USER_ID"),
		Tokens:      tokens,
	})

	builder := index.NewBuilder(client, 4)
	scorer := index.NewScorer(index.DefaultWeights(), nil)
	return index.NewManager(builder, store.NewFallback(primary, fileStore), scorer, time.Hour), nil
}

func cmdRebuild(ctx context.Context, mgr *index.Manager, args []string, depth int, modeStr string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: index-cli rebuild <root-folder>")
		os.Exit(1)
	}
	mode, err := index.ParseMode(modeStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	start := time.Now()
	if err := mgr.Rebuild(ctx, args[0], depth, mode); err != nil {
		fmt.Fprintf(os.Stderr, "Rebuild failed: %v\n", err)
		os.Exit(1)
	}

	st := mgr.Stats()
	fmt.Printf("Rebuilt %q in %s: %d folders, %d files, %s\n",
		args[0], time.Since(start).Round(time.Millisecond),
		st.Folders, st.Files, formatSize(st.TotalSize))
}

func cmdSearch(mgr *index.Manager, args []string, limit int) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: index-cli search <query>")
		os.Exit(1)
	}
	query := strings.Join(args, " ")

	results := mgr.Search(query, limit)
	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tNAME\tSIZE\tPATH")
	for _, r := range results {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
			r.Score, r.Entry.Name, formatSize(r.Entry.Size),
			strings.Join(r.Entry.Path, "/"))
	}
	w.Flush()
}

func cmdLs(mgr *index.Manager, args []string) {
	var path []string
	if len(args) > 0 {
		path = strings.Split(strings.Trim(args[0], "/"), "/")
	}

	if len(path) == 0 {
		for _, name := range mgr.Roots() {
			fmt.Printf("%s/\n", name)
		}
		return
	}

	entries := mgr.ListFolder(path)
	if entries == nil {
		fmt.Fprintf(os.Stderr, "Folder not found: %s\n", strings.Join(path, "/"))
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		if e.IsFolder() {
			fmt.Fprintf(w, "%s/\t\t%s\n", e.Name, e.ModTime.Format("2006-01-02 15:04"))
		} else {
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.Name, formatSize(e.Size), e.ModTime.Format("2006-01-02 15:04"))
		}
	}
	w.Flush()
}

func cmdStats(mgr *index.Manager) {
	st := mgr.Stats()
	fmt.Printf("Roots:      %s\n", strings.Join(st.Roots, ", "))
	fmt.Printf("Folders:    %d\n", st.Folders)
	fmt.Printf("Files:      %d\n", st.Files)
	fmt.Printf("Total size: %s\n", formatSize(st.TotalSize))
	if st.BuiltAt.IsZero() {
		fmt.Println("Built at:   never")
	} else {
		fmt.Printf("Built at:   %s (%s ago)\n",
			st.BuiltAt.Format(time.RFC3339), time.Since(st.BuiltAt).Round(time.Second))
	}
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.2f GB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printUsage() {
	fmt.Println(`unidrive Index CLI

Usage: index-cli [flags] <command> [args]

Flags:
  -data <dir>    Data directory for the file store (default: /tmp/unidrive)
  -db <url>      PostgreSQL URL (default: $DATABASE_URL)
  -depth <n>     Max traversal depth for rebuild, 0 = unlimited
  -mode <mode>   Merge mode for rebuild: replace or append (default: append)
  -limit <n>     Max search results (default: 10)

Commands:
  rebuild <root>   Walk the remote drive and rebuild the named root
  search <query>   Search indexed files
  ls [path]        List a folder (e.g. "University/Semester 1")
  stats            Show index statistics
  help             Show this help`)
}
