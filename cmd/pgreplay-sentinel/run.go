package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/strahe/pgreplay-sentinel/capture"
	"github.com/strahe/pgreplay-sentinel/config"
	"github.com/strahe/pgreplay-sentinel/pgerr"
	"github.com/strahe/pgreplay-sentinel/pkg/log"
	"github.com/strahe/pgreplay-sentinel/sink"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
)

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "Connect to a replication slot and stream events to the configured sink",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "path to an optional TOML config file, used when the environment does not yield a valid config",
		},
	},
	Action: func(ctx context.Context, c *cli.Command) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		cfg, err := loadConfig(c.String("config"))
		if err != nil {
			return err
		}

		log.SetFormat(cfg.LogFormat)
		if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
			log.SetGlobalLevel(level)
		}
		logger := log.NewLogger("pgreplay-sentinel", os.Stdout)

		s, err := setupSink(cfg, logger)
		if err != nil {
			return fmt.Errorf("setup sink: %w", err)
		}

		session := capture.NewSession(capture.Config{
			DatabaseURL:      cfg.DatabaseURL,
			SlotName:         cfg.SlotName,
			PubName:          cfg.PubName,
			FeedbackInterval: cfg.FeedbackInterval,
		}, logger)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		runErr := make(chan error, 1)
		go func() {
			runErr <- session.Run(ctx, s)
		}()

		select {
		case err := <-runErr:
			if err != nil {
				logger.Errorf("session ended with error: %v", err)
				os.Exit(pgerr.ExitCode(err))
			}
			logger.Infof("session ended cleanly")
			return nil
		case sig := <-sigChan:
			logger.Infof("received signal %s, shutting down", sig.String())
			cancel()
			err := <-runErr
			if err != nil {
				logger.Warnf("session ended with error during shutdown: %v", err)
			}
			return nil
		}
	},
}

// loadConfig reads configuration from the environment and, with
// --config, from a TOML file. The two sources are not merged: when
// LoadFromEnv succeeds its result is used and the file's values are
// ignored; when it fails and the file sets database_url, the file's
// configuration is used with no environment overrides. When no
// --config is given, the environment is the sole source and
// DATABASE_URL is required.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadFromEnv()
	}

	fileCfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}

	envCfg, err := config.LoadFromEnv()
	if err != nil {
		if fileCfg.DatabaseURL == "" {
			return nil, err
		}
		return fileCfg, nil
	}
	return envCfg, nil
}

func setupSink(cfg *config.Config, logger *log.ZeroLogger) (sink.Sink, error) {
	var notifier sink.Notifier
	if cfg.Email.SMTPHost != "" {
		notifier = sink.NewSMTPNotifier(sink.EmailConfig{
			SMTPHost:     cfg.Email.SMTPHost,
			SMTPPort:     cfg.Email.SMTPPort,
			SMTPUsername: cfg.Email.SMTPUsername,
			SMTPPassword: cfg.Email.SMTPPassword,
			From:         cfg.Email.From,
			To:           cfg.Email.To,
		})
	}

	switch cfg.EventSink {
	case "", "stdout":
		return sink.NewStdoutSink(sink.WithPrettyPrint(true), sink.WithLogger(logger)), nil
	case "http":
		return sink.NewHTTPSink(cfg.HTTPEndpointURL, notifier, logger), nil
	case "hook0":
		return sink.NewHook0Sink(cfg.Hook0APIURL, cfg.Hook0ApplicationID, cfg.Hook0APIToken, notifier, logger), nil
	default:
		return nil, fmt.Errorf("unsupported EVENT_SINK: %s", cfg.EventSink)
	}
}
