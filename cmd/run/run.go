package run

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ocrwatch/frigate-ocr/internal/buildinfo"
	"github.com/ocrwatch/frigate-ocr/internal/conf"
	"github.com/ocrwatch/frigate-ocr/internal/datastore"
	"github.com/ocrwatch/frigate-ocr/internal/errors"
	"github.com/ocrwatch/frigate-ocr/internal/frigate"
	"github.com/ocrwatch/frigate-ocr/internal/httpclient"
	"github.com/ocrwatch/frigate-ocr/internal/logger"
	"github.com/ocrwatch/frigate-ocr/internal/mqtt"
	"github.com/ocrwatch/frigate-ocr/internal/observability"
	"github.com/ocrwatch/frigate-ocr/internal/ocr"
	"github.com/ocrwatch/frigate-ocr/internal/processor"
	"github.com/ocrwatch/frigate-ocr/internal/snapshot"
	"github.com/ocrwatch/frigate-ocr/internal/supervisor"
)

const (
	frigateRequestTimeout = 30 * time.Second
	sentryFlushTimeout    = 2 * time.Second
)

// Command creates the command that runs the recognition service.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Recognize license plates in Frigate events",
		Long:  "Subscribes to Frigate events over MQTT, recognizes plates in event snapshots and reports them back.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), settings, build)
		},
	}

	cmd.Flags().Bool("telemetry", false, "Enable the metrics and health endpoint")
	cmd.Flags().String("listen", conf.DefaultTelemetryListen, "Listen address of the metrics and health endpoint")
	_ = viper.BindPFlag("telemetry.enabled", cmd.Flags().Lookup("telemetry"))
	_ = viper.BindPFlag("telemetry.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

// Run wires every component and blocks until SIGINT or SIGTERM.
func Run(ctx context.Context, settings *conf.Settings, build *buildinfo.Context) error {
	log := GetLogger()
	defer closeLogging()
	defer errors.FlushSentry(sentryFlushTimeout)

	printBanner(build, settings)

	m, err := observability.NewMetrics(settings.OCR.Backend)
	if err != nil {
		return err
	}

	store := datastore.New(settings, m.Datastore)
	if err := store.Open(); err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("closing datastore failed", logger.Error(err))
		}
	}()

	frigateClient := frigate.NewClient(frigate.Config{
		BaseURL: settings.Frigate.FrigateURL,
		HTTP:    httpclient.New(&httpclient.Config{DefaultTimeout: frigateRequestTimeout, UserAgent: userAgent(build)}),
		Metrics: m.Frigate,
	})

	recognizer, err := newRecognizer(settings, build, m)
	if err != nil {
		return err
	}

	saver := snapshot.NewSaver(settings.Snapshots.Path)
	if settings.Frigate.SaveCleanSnapshots {
		if err := saver.EnsureDir(); err != nil {
			return err
		}
	}

	mqttClient, err := mqtt.NewClient(mqtt.ConfigFromSettings(settings, time.Now()), m.MQTT)
	if err != nil {
		return err
	}

	pipeline := processor.NewPipeline(processor.Deps{
		Settings:   settings,
		Store:      store,
		Frigate:    frigateClient,
		Recognizer: recognizer,
		Publisher:  mqttClient,
		Snapshots:  saver,
		Metrics:    m.Pipeline,
	})
	proc := processor.New(pipeline, settings.Frigate.QueueSize, settings.Frigate.EventTTL, m.Pipeline)

	tree := supervisor.NewTree(supervisor.DefaultTreeConfig())
	tree.AddPipelineService(proc)
	tree.AddPipelineService(supervisor.NewIngestService(mqttClient, settings.EventsTopic(), proc.HandleMessage))

	if settings.Telemetry.Enabled {
		endpoint, err := observability.NewEndpoint(settings, m, store)
		if err != nil {
			return err
		}
		endpoint.AddHealthCheck("database", store.Ping)
		endpoint.AddHealthCheck("mqtt", func(context.Context) error {
			if !mqttClient.IsConnected() {
				return errors.NewStd("not connected to broker")
			}
			return nil
		})
		tree.AddAPIService(endpoint)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go rotateOnHangup(ctx)

	err = tree.Serve(ctx)
	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		log.Warn("services did not stop in time", logger.Int("count", len(report)))
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutdown complete")
	return nil
}

// newRecognizer returns nil when OCR is switched off, which makes every
// admitted event fail at the recognize stage.
func newRecognizer(settings *conf.Settings, build *buildinfo.Context, m *observability.Metrics) (ocr.Recognizer, error) {
	client := httpclient.New(&httpclient.Config{
		DefaultTimeout: settings.OCR.Timeout,
		UserAgent:      userAgent(build),
	})
	r, err := ocr.New(&settings.OCR, client)
	if err != nil || r == nil {
		return nil, err
	}
	return ocr.NewWorker(r, m.OCR), nil
}

// rotateOnHangup reopens log files on SIGHUP, for logrotate.
func rotateOnHangup(ctx context.Context) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := logger.Global().Rotate(); err != nil {
				GetLogger().Error("log rotation failed", logger.Error(err))
				continue
			}
			GetLogger().Info("log files rotated")
		}
	}
}

func closeLogging() {
	if err := logger.Global().Close(); err != nil {
		fmt.Fprintf(os.Stderr, "closing log files: %v\n", err)
	}
}

func userAgent(build *buildinfo.Context) string {
	return "frigate-ocr/" + build.Version()
}

func printBanner(build *buildinfo.Context, settings *conf.Settings) {
	watched := "none"
	if len(settings.Frigate.WatchedOCR) > 0 {
		watched = strings.Join(settings.Frigate.WatchedOCR, ", ")
	}
	GetLogger().Info("starting "+build.String(),
		logger.String("frigate_url", settings.Frigate.FrigateURL),
		logger.String("broker", settings.BrokerURL()),
		logger.String("events_topic", settings.EventsTopic()),
		logger.String("result_topic", settings.ResultTopic()),
		logger.String("ocr_backend", settings.OCR.Backend),
		logger.String("database", settings.Database.Type),
		logger.String("watched", watched))
}

// GetLogger returns the run command logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("main")
}
