// Command gpsingest-server runs the multi-protocol GPS tracker ingest
// server: one TCP listener per enabled device protocol, normalizing
// decoded frames and publishing them to a Kafka-compatible bus.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/quikmile/gpsingest/internal/bus"
	"github.com/quikmile/gpsingest/internal/config"
	"github.com/quikmile/gpsingest/internal/logging"
	"github.com/quikmile/gpsingest/internal/metrics"
	"github.com/quikmile/gpsingest/internal/session"
	"github.com/quikmile/gpsingest/pkg/gpsingest/protocol"
	"github.com/quikmile/gpsingest/pkg/gpsingest/protocol/et300"
	"github.com/quikmile/gpsingest/pkg/gpsingest/protocol/gt02"
	"github.com/quikmile/gpsingest/pkg/gpsingest/protocol/gt06"
	"github.com/quikmile/gpsingest/pkg/gpsingest/protocol/mt05"
	"github.com/quikmile/gpsingest/pkg/gpsingest/protocol/tk103"
	"github.com/quikmile/gpsingest/pkg/gpsingest/protocol/wetrack"
)

var allProtocols = []string{"et300", "gt06", "wetrack", "mt05", "gt02", "tk103"}

func main() {
	cmd := &cli.Command{
		Name:  "gpsingest-server",
		Usage: "multi-protocol TCP ingest server for GPS tracker devices",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "protocols",
				Usage: "device protocols to enable",
				Value: allProtocols,
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "address to serve /metrics on",
				Value: ":9090",
			},
			&cli.StringFlag{
				Name:  "kafka-broker",
				Usage: "Kafka broker address (overrides KAFKA_BROKER)",
			},
			&cli.BoolFlag{
				Name:  "log-pretty",
				Usage: "human-readable console logging, instead of JSON",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	log := logging.New(cmd.Bool("log-pretty"))
	cfg := config.Load()

	broker := cfg.KafkaBroker
	if v := cmd.String("kafka-broker"); v != "" {
		broker = v
	}

	reg := protocol.NewRegistry()
	reg.MustRegister(et300.New())
	reg.MustRegister(gt06.New())
	reg.MustRegister(wetrack.New())
	reg.MustRegister(mt05.New())
	reg.MustRegister(gt02.New())
	reg.MustRegister(tk103.New())

	m := metrics.New()
	publisher := bus.New(broker, m, log)
	defer publisher.Close()

	metricsAddr := cmd.String("metrics-addr")
	go func() {
		log.Info().Str("addr", metricsAddr).Msg("serving /metrics")
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	protocols := cmd.StringSlice("protocols")
	log.Info().Str("protocols", strings.Join(protocols, ",")).Str("broker", broker).Msg("starting gpsingest-server")

	supervisor := session.NewSupervisor(reg, publisher, m, log)
	supervisor.Run(protocols)
	return nil
}
