package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ajitpratap0/caudal/internal/pipeline"
	"github.com/ajitpratap0/caudal/pkg/config"
	"github.com/ajitpratap0/caudal/pkg/logger"
	"github.com/ajitpratap0/caudal/pkg/observability"
	"github.com/ajitpratap0/caudal/pkg/paths"
	"github.com/ajitpratap0/caudal/pkg/remote"
)

var version = "0.1.0"

const serviceName = "caudal"

// cli holds the flags shared by every command
type cli struct {
	root     string
	logLevel string
	out      io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:   "caudal [config-file]",
		Short: "Caudal - river flow data pipeline",
		Long: `Caudal loads river flow (caudal) measurements from the raw archive in the
data directory, or from a warehouse, using the settings in configs/.

The optional argument names the configuration file inside configs/; it
defaults to ` + config.DefaultFileName + `.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			loadDotenv()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			fileName := config.DefaultFileName
			if len(args) == 1 {
				fileName = args[0]
			}
			return c.run(cmd.Context(), fileName)
		},
	}
	root.PersistentFlags().StringVar(&c.root, "root", "", "Repository root; discovered from the working directory when empty")
	root.Flags().StringVar(&c.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	root.AddCommand(c.versionCmd(), c.initCmd(), c.fetchCmd())
	return root
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(c.out, "Caudal v%s\n", version)
			fmt.Fprintf(c.out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(c.out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func (c *cli) initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			layout, err := c.layout()
			if err != nil {
				return err
			}
			path := filepath.Join(layout.Config, config.DefaultFileName)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}
			if err := config.Default().Save(path); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")
	return cmd
}

func (c *cli) fetchCmd() *cobra.Command {
	var configFile, dest string
	cmd := &cobra.Command{
		Use:   "fetch <object-key>",
		Short: "Download a raw archive from object storage into data/raw",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			layout, err := c.layout()
			if err != nil {
				return err
			}
			cfg, err := config.Load(layout.Config, configFile, nil)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			f, err := remote.New(cmd.Context(), cfg.Remote)
			if err != nil {
				return err
			}
			if closer, ok := f.(io.Closer); ok {
				defer closer.Close()
			}

			if dest == "" {
				dest = filepath.Base(args[0])
			}
			path := filepath.Join(layout.DataRaw, dest)
			n, err := remote.Download(cmd.Context(), f, args[0], path)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Downloaded %d bytes to %s\n", n, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&configFile, "config", config.DefaultFileName, "Configuration file inside configs/")
	cmd.Flags().StringVar(&dest, "dest", "", "File name under data/raw; defaults to the object's base name")
	return cmd
}

func (c *cli) run(ctx context.Context, fileName string) error {
	layout, err := c.layout()
	if err != nil {
		return err
	}

	cfg, err := config.Read(layout.Config, fileName, nil)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Logging.Level,
		Dir:        "",
		File:       cfg.Logging.File,
		RunFile:    cfg.Logging.RunFile,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Console:    os.Stderr,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Get().Sync() //nolint:errcheck
	cfg.LogSource(logger.Get())

	if cfg.Observability.TraceFile != "" {
		shutdown, err := startTracing(layout, cfg.Observability.TraceFile)
		if err != nil {
			return err
		}
		defer shutdown(context.WithoutCancel(ctx)) //nolint:errcheck
	}

	_, err = pipeline.Run(ctx, pipeline.Deps{Configs: cfg, Layout: layout})
	return err
}

func (c *cli) layout() (*paths.Layout, error) {
	if c.root != "" {
		return paths.NewLayout(c.root)
	}
	return paths.Discover(paths.RootName())
}

// startTracing exports spans to file, relative paths resolved against the
// repository root.
func startTracing(layout *paths.Layout, file string) (func(context.Context) error, error) {
	if !filepath.IsAbs(file) {
		file = filepath.Join(layout.Root, file)
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create trace directory: %w", err)
	}
	f, err := os.Create(file) //nolint:gosec // G304: path comes from the configuration
	if err != nil {
		return nil, fmt.Errorf("failed to create trace file: %w", err)
	}

	shutdown, err := observability.InitTracing(f, serviceName, version)
	if err != nil {
		f.Close()
		return nil, err
	}
	return func(ctx context.Context) error {
		return errors.Join(shutdown(ctx), f.Close())
	}, nil
}

// loadDotenv loads the nearest .env file above the working directory.
// Variables already set in the environment win.
func loadDotenv() {
	wd, err := os.Getwd()
	if err != nil {
		return
	}
	if path, err := paths.FindUp(wd, ".env"); err == nil {
		_ = godotenv.Load(path)
	}
}
