package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xgbproject/xconn"
	"github.com/xgbproject/xconn/internal/config"
	"github.com/xgbproject/xconn/xproto"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

type globalFlags struct {
	configFile string
	display    string
	authFile   string
	logLevel   string
	metrics    string
}

func main() {
	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:   "xconn",
		Short: "Talk to an X server",
		Long: `xconn opens a connection to an X server and runs a few requests
against it. It is a small test bed for the xconn library.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configFile, "config", "c", "", "TOML configuration file")
	pf.StringVarP(&flags.display, "display", "d", "", "display name (default $DISPLAY)")
	pf.StringVar(&flags.authFile, "auth", "", "Xauthority file (default $XAUTHORITY or ~/.Xauthority)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flags.metrics, "metrics", "", "serve Prometheus metrics on this address")

	rootCmd.AddCommand(
		infoCmd(flags),
		atomCmd(flags),
		propCmd(flags),
		extCmd(flags),
		eventsCmd(flags),
		seqwrapCmd(flags),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("xconn %s (%s)\n", version, commit)
		},
	}
}

// session is an open connection plus what is needed to shut it down.
type session struct {
	conn   *xconn.Conn
	logger *zap.Logger
	server *http.Server
}

func (s *session) Close() {
	s.conn.Close()
	if s.server != nil {
		s.server.Close()
	}
	s.logger.Sync()
}

// loadConfig merges the configuration file with the command line.
func (f *globalFlags) loadConfig() (*config.Custom, error) {
	cfg := config.Default()
	if f.configFile != "" {
		var err error
		if cfg, err = config.Initialize(f.configFile); err != nil {
			return nil, err
		}
	}
	if f.display != "" {
		cfg.Display.Name = f.display
	}
	if f.authFile != "" {
		cfg.Display.AuthorityFile = f.authFile
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.metrics != "" {
		cfg.Metrics.Listen = f.metrics
	}
	return cfg, nil
}

func (f *globalFlags) open(ctx context.Context) (*session, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := cfg.Logger()
	if err != nil {
		return nil, err
	}
	s := &session{logger: logger}

	opts := []xconn.Option{
		xconn.WithLogger(logger),
		xconn.WithCodec(xproto.NewCodec()),
		xconn.WithAuthorityFile(cfg.Display.AuthorityFile),
	}
	if cfg.Metrics.Listen != "" {
		reg := prometheus.NewRegistry()
		m, err := xconn.NewMetrics(reg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, xconn.WithMetrics(m))

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		s.server = &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
		go func() {
			if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		logger.Info("serving metrics", zap.String("addr", cfg.Metrics.Listen))
	}

	dialCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Display.Timeout)*time.Second)
	defer cancel()
	s.conn, err = xconn.NewConnDisplay(dialCtx, cfg.Display.Name, opts...)
	if err != nil {
		if s.server != nil {
			s.server.Close()
		}
		return nil, err
	}
	return s, nil
}
