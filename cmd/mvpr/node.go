package main

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calehh/mvpr-app/app"
	"github.com/calehh/mvpr-app/config"
	"github.com/calehh/mvpr-app/indexer"
	"github.com/calehh/mvpr-app/metrics"
	cmtconfig "github.com/cometbft/cometbft/config"
	cmtflags "github.com/cometbft/cometbft/libs/cli/flags"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	nm "github.com/cometbft/cometbft/node"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/cometbft/cometbft/proxy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var homeDir string

var mvprCmd = &cobra.Command{
	Use:   "mvpr",
	Short: "MVPR is a reputation-weighted governance chain",
	Long: `A CometBFT application where members stake reputation
on proposals and accepted internal proposals retune governance.`,
	Run: func(cmd *cobra.Command, args []string) {
		run(cmd, args)
	},
}

func init() {
	mvprCmd.Flags().StringVarP(&homeDir, "homedir", "d", "", "home directory")
}

func run(cmd *cobra.Command, args []string) {
	if homeDir == "" {
		homeDir = os.ExpandEnv(config.DefaultHomeDir)
	}

	appConfig, err := config.Load(homeDir)
	if err != nil {
		log.Fatalf("Loading config: %v", err)
	}

	pv := privval.LoadFilePV(
		appConfig.PrivValidatorKeyFile(),
		appConfig.PrivValidatorStateFile(),
	)

	nodeKey, err := p2p.LoadNodeKey(appConfig.NodeKeyFile())
	if err != nil {
		log.Fatalf("failed to load node's key: %v", err)
	}

	logger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout))
	logger, err = cmtflags.ParseLogLevel(appConfig.LogLevel, logger, cmtconfig.DefaultLogLevel)
	if err != nil {
		log.Fatalf("failed to parse log level: %v", err)
	}

	var m *metrics.Metrics
	if appConfig.App.MetricsEnable {
		m = metrics.New(prometheus.NewRegistry())
	}

	app, err := app.NewMVPRApp(appConfig.App, logger, m)
	if err != nil {
		log.Fatalf("new App err:%v", err)
	}

	node, err := nm.NewNode(
		appConfig.Config,
		pv,
		nodeKey,
		proxy.NewLocalClientCreator(app),
		nm.DefaultGenesisDocProviderFunc(appConfig.Config),
		cmtconfig.DefaultDBProvider,
		nm.DefaultMetricsProvider(appConfig.Instrumentation),
		logger,
	)
	if err != nil {
		log.Fatalf("Creating node: %v", err)
	}

	app.Start(node.BlockStore())
	err = node.Start()
	if err != nil {
		log.Fatalf("start comet node err %s", err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	startIndexer(ctx, appConfig, logger, m)

	defer func() {
		log.Println("shut done...")
		done := make(chan struct{})
		go func() {
			defer close(done)
			err = node.Stop()
			if err != nil {
				log.Fatalf("stop comet node err %s", err.Error())
			}
			node.Wait()
			app.Stop()
		}()
		timer := time.NewTimer(time.Second * 10)
		select {
		case <-timer.C:
			os.Exit(1)
		case <-done:
			return
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}

// startIndexer runs the chain indexer and its query service against the
// local rpc endpoint. With the indexer off, metrics are still served.
func startIndexer(ctx context.Context, appConfig *config.Config, logger cmtlog.Logger, m *metrics.Metrics) {
	listen := appConfig.App.IndexerListen
	if !appConfig.App.IndexerEnable {
		if m != nil {
			go func() {
				if err := http.ListenAndServe(listen, m.Handler()); err != nil {
					logger.Error("metrics server stopped", "err", err)
				}
			}()
		}
		return
	}
	rpcUrl, err := url.Parse(appConfig.RPC.ListenAddress)
	if err != nil {
		log.Fatalf("new parse url err %s", err.Error())
	}
	rpcUrl.Scheme = "http"
	idx, err := indexer.NewChainIndexer(logger, appConfig.App.IndexerDBPath(), rpcUrl.String(), m)
	if err != nil {
		log.Fatalf("new chain indexer err %s", err.Error())
	}
	go func() {
		idx.Start(ctx, appConfig.App.IndexerPollInterval)
		idx.Close()
	}()
	svc := indexer.NewService(listen, idx, m)
	go func() {
		if err := svc.Start(); err != nil {
			logger.Error("indexer service stopped", "err", err)
		}
	}()
}
