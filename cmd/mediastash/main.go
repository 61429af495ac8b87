package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mediastash/mediastash/internal/config"
	"github.com/mediastash/mediastash/internal/db"
	"github.com/mediastash/mediastash/internal/parser"
	"github.com/mediastash/mediastash/internal/server"
	"github.com/mediastash/mediastash/internal/store"
	"github.com/mediastash/mediastash/internal/watch"
)

var (
	version    = "dev"
	commit     = "none"
	buildDate  = "unknown"
	jsonOutput bool
	verbose    bool
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "mediastash",
		Short: "Chat export media browser",
		Long: `Mediastash ingests Facebook and Messenger chat export archives
into a local SQLite store and lets you browse the embedded photos,
videos and GIFs with their surrounding conversation context.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	rootCmd.AddCommand(
		versionCmd(),
		statusCmd(),
		importCmd(),
		addCmd(),
		removeCmd(),
		sourcesCmd(),
		detectCmd(),
		conversationsCmd(),
		sendersCmd(),
		mediaCmd(),
		contextCmd(),
		timelineCmd(),
		storageCmd(),
		clearCmd(),
		serveCmd(),
		watchCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger().Level(level)
}

func openStore(log zerolog.Logger) (*store.Store, error) {
	dataDir, err := config.GetDataDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	path, err := db.DefaultPath()
	if err != nil {
		return nil, err
	}
	return store.Open(log, path)
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

func contextWindow(flagValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	cfg, err := config.Load()
	if err != nil {
		return config.DefaultContextWindow
	}
	return cfg.ContextWindow
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				printJSON(map[string]string{"version": version, "commit": commit, "date": buildDate})
			} else {
				fmt.Printf("mediastash %s (%s, %s)\n", version, commit, buildDate)
			}
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show import status",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(newLogger())
			if err != nil {
				return err
			}
			defer st.Close()

			status, err := st.Status(context.Background())
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(status)
			} else {
				fmt.Printf("Media: %d\nConversations: %d\n", status.MediaCount, status.ConversationCount)
			}
			return nil
		},
	}
}

func importCmd() *cobra.Command {
	var window int
	cmd := &cobra.Command{
		Use:   "import <path> [path...]",
		Short: "Import one or more export directories, replacing those sources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			st, err := openStore(log)
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := st.ImportSources(context.Background(), args, contextWindow(window))
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(stats)
			} else {
				fmt.Printf("Imported %d conversations, %d media, %d senders\n",
					stats.Conversations, stats.Media, stats.Senders)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&window, "window", "w", 0, "Context window size (messages on each side)")
	return cmd
}

func addCmd() *cobra.Command {
	var window int
	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Add a single export directory without touching other sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			st, err := openStore(log)
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := st.AddSource(context.Background(), args[0], contextWindow(window))
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(stats)
			} else {
				fmt.Printf("Added %d conversations, %d media (%d senders total)\n",
					stats.Conversations, stats.Media, stats.Senders)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&window, "window", "w", 0, "Context window size (messages on each side)")
	return cmd
}

func removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <path>",
		Short: "Remove an imported source and all its data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(newLogger())
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.RemoveSource(context.Background(), args[0]); err != nil {
				return err
			}
			if !jsonOutput {
				fmt.Printf("Removed source %s\n", args[0])
			}
			return nil
		},
	}
}

func sourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List imported sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(newLogger())
			if err != nil {
				return err
			}
			defer st.Close()

			sources, err := st.Sources(context.Background())
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(sources)
				return nil
			}
			for _, src := range sources {
				fmt.Printf("%-10s %s (%d conversations, %d media)\n",
					src.SourceType, src.SourcePath, src.Conversations, src.MediaCount)
			}
			return nil
		},
	}
}

func detectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <path>",
		Short: "Detect the export format of a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				return fmt.Errorf("path does not exist: %s", args[0])
			}
			format, err := parser.Detect(args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(map[string]string{"format": string(format)})
			} else {
				fmt.Println(string(format))
			}
			return nil
		},
	}
}

func conversationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conversations",
		Short: "List conversations with media counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(newLogger())
			if err != nil {
				return err
			}
			defer st.Close()

			conversations, err := st.Conversations(context.Background())
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(conversations)
				return nil
			}
			for _, conv := range conversations {
				fmt.Printf("%6d  %-5s  %4d media  %s\n", conv.ID, conv.ChatType, conv.MediaCount, conv.Title)
			}
			return nil
		},
	}
}

func sendersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "senders",
		Short: "List senders with media counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(newLogger())
			if err != nil {
				return err
			}
			defer st.Close()

			senders, err := st.Senders(context.Background())
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(senders)
				return nil
			}
			for _, sender := range senders {
				fmt.Printf("%6d  %4d media  %s\n", sender.ID, sender.MediaCount, sender.Name)
			}
			return nil
		},
	}
}

func mediaCmd() *cobra.Command {
	var filters store.MediaFilters
	cmd := &cobra.Command{
		Use:   "media",
		Short: "List media items with optional filters",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(newLogger())
			if err != nil {
				return err
			}
			defer st.Close()

			items, err := st.Media(context.Background(), filters)
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(items)
				return nil
			}
			for _, item := range items {
				ts := time.UnixMilli(item.TimestampMs).Format("2006-01-02 15:04")
				fmt.Printf("%6d  %-5s  %s  %-20s  %s\n", item.ID, item.FileType, ts, item.SenderName, item.FilePath)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&filters.ConversationID, "conversation", 0, "Filter by conversation id")
	cmd.Flags().Int64Var(&filters.SenderID, "sender", 0, "Filter by sender id")
	cmd.Flags().StringVar(&filters.FileType, "type", "", "Filter by file type (image, video, gif)")
	cmd.Flags().StringVar(&filters.Month, "month", "", "Filter by month (YYYY-MM)")
	cmd.Flags().StringVar(&filters.Search, "search", "", "Search term")
	cmd.Flags().StringVar(&filters.Sort, "sort", "", "Sort order (date-asc, date-desc, sender)")
	cmd.Flags().Int64Var(&filters.Limit, "limit", 0, "Maximum rows (default 500)")
	cmd.Flags().Int64Var(&filters.Offset, "offset", 0, "Row offset")
	return cmd
}

func contextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "context <media-id>",
		Short: "Show the conversation context around a media item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid media id: %s", args[0])
			}

			st, err := openStore(newLogger())
			if err != nil {
				return err
			}
			defer st.Close()

			mediaCtx, err := st.Context(context.Background(), id)
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(mediaCtx)
				return nil
			}
			for _, msg := range mediaCtx.ContextBefore {
				fmt.Printf("  %s: %s\n", msg.SenderName, msg.Content)
			}
			fmt.Printf("> %s: [%s] %s\n", mediaCtx.Media.SenderName, mediaCtx.Media.FileType, mediaCtx.Media.FilePath)
			for _, msg := range mediaCtx.ContextAfter {
				fmt.Printf("  %s: %s\n", msg.SenderName, msg.Content)
			}
			return nil
		},
	}
}

func timelineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timeline",
		Short: "Show media counts per month",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(newLogger())
			if err != nil {
				return err
			}
			defer st.Close()

			timeline, err := st.Timeline(context.Background())
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(timeline)
				return nil
			}
			for _, entry := range timeline {
				fmt.Printf("%-10s %d\n", entry.Label, entry.Count)
			}
			return nil
		},
	}
}

func storageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "storage",
		Short: "Show database storage usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(newLogger())
			if err != nil {
				return err
			}
			defer st.Close()

			info, err := st.Storage()
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(info)
			} else {
				fmt.Printf("Database size: %d bytes\n", info.DBSizeBytes)
			}
			return nil
		},
	}
}

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all imported data and reclaim disk space",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(newLogger())
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.ClearAll(context.Background()); err != nil {
				return err
			}
			if !jsonOutput {
				fmt.Println("Cleared all data")
			}
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local media and API endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			st, err := openStore(log)
			if err != nil {
				return err
			}
			defer st.Close()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Serve.Addr = addr
			}
			return server.ListenAndServe(log, st, cfg.Serve)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}

func watchCmd() *cobra.Command {
	var window int
	var debounceSec int
	cmd := &cobra.Command{
		Use:   "watch <path> [path...]",
		Short: "Watch export directories and re-import them on change",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			st, err := openStore(log)
			if err != nil {
				return err
			}
			defer st.Close()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if debounceSec <= 0 {
				debounceSec = cfg.Watch.DebounceSeconds
			}

			return watch.Run(cmd.Context(), log, st, args, watch.Options{
				Debounce: time.Duration(debounceSec) * time.Second,
				Window:   contextWindow(window),
			})
		},
	}
	cmd.Flags().IntVarP(&window, "window", "w", 0, "Context window size (messages on each side)")
	cmd.Flags().IntVar(&debounceSec, "debounce", 0, "Seconds of quiet before re-importing")
	return cmd
}
