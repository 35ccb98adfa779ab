package cli

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bookledger-io/equity-ledger/internal/clients/chainclient"
	"github.com/bookledger-io/equity-ledger/internal/clients/kycclient"
	"github.com/bookledger-io/equity-ledger/internal/clients/paymentclient"
	"github.com/bookledger-io/equity-ledger/internal/config"
	"github.com/bookledger-io/equity-ledger/internal/db"
	"github.com/bookledger-io/equity-ledger/internal/observability/metrics"
	"github.com/bookledger-io/equity-ledger/internal/queue"
	"github.com/bookledger-io/equity-ledger/internal/services"
)

func StartServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start-server",
		Short: "Starts the equity ledger server",
		Args:  cobra.ExactArgs(0),
		RunE:  startServer,
	}

	return cmd
}

func startServer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := log.Ctx(ctx)

	// load config
	cfgPath := GetConfigPath()
	cfg, err := config.New(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg(fmt.Sprintf("error while loading config file: %s", cfgPath))
	}

	// create new db client
	var dbClient db.DbInterface
	dbClient, err = db.New(ctx, cfg.Db)
	if err != nil {
		log.Fatal().Err(err).Msg("error while creating db client")
	}
	dbClient = db.NewDbWithMetrics(dbClient)

	qm, err := queue.NewQueueManager(&cfg.Queue)
	if err != nil {
		log.Fatal().Err(err).Msg("error while creating queue manager")
	}
	defer qm.Shutdown()

	chainClient := chainclient.NewChainClient(&cfg.Chain)
	paymentClient := paymentclient.NewClient(&cfg.Payment)
	kycClient := kycclient.NewClient(&cfg.Kyc)

	service := services.NewService(cfg, dbClient, chainClient, paymentClient, kycClient, qm)

	// initialize metrics with the metrics port from config
	metricsPort := cfg.Metrics.GetMetricsPort()
	metrics.Init(metricsPort)

	service.StartBackgroundPollers(ctx)
	return nil
}
