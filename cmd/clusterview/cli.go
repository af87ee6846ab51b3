package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/doc-clustering/clusterview/internal/api"
	"github.com/doc-clustering/clusterview/internal/backend"
	"github.com/doc-clustering/clusterview/internal/config"
	"github.com/doc-clustering/clusterview/internal/models"
	"github.com/doc-clustering/clusterview/internal/session"
	"github.com/doc-clustering/clusterview/internal/upload"
	"github.com/dustin/go-humanize"
	"github.com/labstack/gommon/log"
	"github.com/urfave/cli/v2"
)

const defaultConfigPath = "clusterview.yaml"

// newCLIApp creates the CLI application with all commands.
func newCLIApp() *cli.App {
	app := &cli.App{
		Name:    "clusterview",
		Usage:   "Web client for a document clustering service",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: defaultConfigPath, Usage: "Path to the YAML config file", EnvVars: []string{"CLUSTERVIEW_CONFIG"}},
			&cli.StringFlag{Name: "backend", Aliases: []string{"b"}, Usage: "Clustering backend base URL (overrides config)"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Log progress to stderr"},
		},
		Before: func(c *cli.Context) error {
			log.SetOutput(c.App.ErrWriter)
			if c.Bool("verbose") {
				log.SetLevel(log.DEBUG)
			} else {
				log.SetLevel(log.WARN)
			}
			return nil
		},
		Commands: []*cli.Command{
			serveCmd(),
			uploadCmd(),
			clustersCmd(),
			summarizeCmd(),
			catCmd(),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// loadConfig reads the config file named by --config and applies --backend.
func loadConfig(c *cli.Context) (*config.AppConfig, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if b := c.String("backend"); b != "" {
		cfg.Backend.BaseURL = b
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func newBackendClient(cfg *config.AppConfig) *backend.Client {
	return backend.NewClient(backend.Config{
		BaseURL:       cfg.Backend.BaseURL,
		Timeout:       cfg.BackendTimeout(),
		UploadTimeout: cfg.UploadTimeout(),
	})
}

func pollConfig(cfg *config.AppConfig) session.PollConfig {
	return session.PollConfig{
		Interval:     cfg.PollInterval(),
		MaxAttempts:  cfg.Polling.MaxAttempts,
		RetryOnError: cfg.Polling.RetryOnError,
	}
}

// serveCmd creates the serve command.
func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web client",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Listen port (overrides config)"},
			&cli.StringFlag{Name: "bind", Usage: "Bind address (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if c.IsSet("port") {
				cfg.Server.Port = c.Int("port")
			}
			if c.IsSet("bind") {
				cfg.Server.BindAddress = c.String("bind")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServer(c.Context, cfg, c.String("config"), c.App.Writer)
		},
	}
}

// uploadCmd creates the upload command.
func uploadCmd() *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "Upload every file under a directory for clustering",
		ArgsUsage: "<dir>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "wait", Aliases: []string{"w"}, Usage: "Poll until clusters are available and print them"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("upload requires exactly one directory argument")
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			client := newBackendClient(cfg)

			sel, err := upload.FromDirectory(c.Args().First())
			if err != nil {
				return err
			}
			defer sel.Close()

			w := c.App.Writer
			fmt.Fprintf(w, "Uploading %s (%s) to %s\n", countFiles(sel.Len()), humanize.Bytes(uint64(sel.TotalSize())), client.BaseURL())

			if _, err := upload.NewManager(client).Submit(c.Context, sel); err != nil {
				return fmt.Errorf("%s (%w)", upload.FailureMessage(err), err)
			}
			fmt.Fprintln(w, upload.MsgUploaded)

			if c.Bool("wait") {
				return waitForClusters(c, cfg, client, w, false)
			}
			return nil
		},
	}
}

// clustersCmd creates the clusters command.
func clustersCmd() *cli.Command {
	return &cli.Command{
		Name:  "clusters",
		Usage: "List the current clusters",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "wait", Aliases: []string{"w"}, Usage: "Poll until clusters are available"},
			&cli.BoolFlag{Name: "json", Usage: "Print the listing as JSON"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			client := newBackendClient(cfg)
			w := c.App.Writer

			if c.Bool("wait") {
				return waitForClusters(c, cfg, client, w, c.Bool("json"))
			}

			set, err := client.ListClusters(c.Context)
			if err != nil {
				return fmt.Errorf("%s (%w)", session.MsgLoadFailed, err)
			}
			return printClusters(w, set, c.Bool("json"))
		},
	}
}

// summarizeCmd creates the summarize command.
func summarizeCmd() *cli.Command {
	return &cli.Command{
		Name:      "summarize",
		Usage:     "Generate similarity and difference summaries for a category",
		ArgsUsage: "<category>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("summarize requires exactly one category argument")
			}
			category := c.Args().First()

			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			client := newBackendClient(cfg)
			w := c.App.Writer

			if err := client.Summarize(c.Context, category); err != nil {
				return fmt.Errorf("%s (%w)", session.MsgSummarizeFailed, err)
			}
			fmt.Fprintln(w, session.MsgSummarized)

			set, err := client.ListClusters(c.Context)
			if err != nil {
				return fmt.Errorf("%s (%w)", session.MsgLoadFailed, err)
			}
			if cluster, ok := set[category]; ok {
				return printClusters(w, models.ClusterSet{category: cluster}, false)
			}
			return nil
		},
	}
}

// catCmd creates the cat command.
func catCmd() *cli.Command {
	return &cli.Command{
		Name:      "cat",
		Usage:     "Print a file of a category",
		ArgsUsage: "<category> <filename>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return errors.New("cat requires a category and a filename")
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			f, err := newBackendClient(cfg).FetchFile(c.Context, c.Args().Get(0), c.Args().Get(1))
			if err != nil {
				return fmt.Errorf("%s (%w)", api.MsgTextLoadFailed, err)
			}
			_, err = c.App.Writer.Write(f.Data)
			return err
		},
	}
}

// waitForClusters runs the same bounded poll as the clusters screen.
func waitForClusters(c *cli.Context, cfg *config.AppConfig, client *backend.Client, w io.Writer, asJSON bool) error {
	pc := pollConfig(cfg)
	result, err := session.Poll(c.Context, pc, client.ListClusters, func(attempt int) {
		log.Debugf("[Poll] Attempt %d/%d", attempt, pc.MaxAttempts)
	})
	if err != nil {
		return err
	}
	if result.Status != models.ScreenStatusSuccess {
		if result.Err != nil {
			return fmt.Errorf("%s (%w)", result.Message(), result.Err)
		}
		return errors.New(result.Message())
	}
	return printClusters(w, result.Clusters, asJSON)
}

func printClusters(w io.Writer, set models.ClusterSet, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(models.ClusterListing{Clusters: set})
	}

	if set.Empty() {
		fmt.Fprintln(w, "No clusters yet.")
		return nil
	}
	for _, category := range set.Categories() {
		files := set[category].Files
		fmt.Fprintf(w, "%s (%s)\n", category, countFiles(len(files)))
		for _, f := range files {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}
	return nil
}

func countFiles(n int) string {
	if n == 1 {
		return "1 file"
	}
	return humanize.Comma(int64(n)) + " files"
}

// parseLogLevel maps a config log level name to a gommon level.
func parseLogLevel(name string) log.Lvl {
	switch strings.ToLower(name) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	default:
		return log.INFO
	}
}
