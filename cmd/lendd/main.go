package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"nftlend/config"
	"nftlend/core/events"
	"nftlend/native/asset"
	"nftlend/native/loan"
	"nftlend/native/token"
	"nftlend/observability"
	"nftlend/observability/logging"
	"nftlend/rpc"
	"nftlend/storage"
)

// custodyAddress derives the deterministic module account that holds
// collateral and receives token allowances.
func custodyAddress() common.Address {
	return common.BytesToAddress(ethcrypto.Keccak256([]byte("nftlend/loan-module"))[12:])
}

func main() {
	configPath := flag.String("config", "lendd.toml", "path to the daemon configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.Setup("lendd", cfg.Env, cfg.LogFile)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ledger := storage.NewLedger(db)
	tokens := token.NewLedger(ledger)
	assets := asset.NewRegistry(ledger)

	custody := custodyAddress()
	engine := loan.NewEngine(custody)
	engine.SetState(ledger)
	engine.SetTokenLedger(tokens)
	engine.SetAssetRegistry(assets)
	assets.RegisterReceiver(custody, engine)

	metrics := observability.NewLoanMetrics()
	engine.SetEmitter(events.Fanout{metrics})

	params, err := cfg.LoanParams()
	if err != nil {
		logger.Error("invalid genesis parameters", "error", err)
		os.Exit(1)
	}
	if err := engine.InitParams(params); err != nil {
		logger.Error("failed to seed parameters", "error", err)
		os.Exit(1)
	}
	for _, collection := range cfg.GenesisCollections() {
		whitelisted, err := engine.IsWhitelisted(collection)
		if err != nil {
			logger.Error("failed to read whitelist", "error", err)
			os.Exit(1)
		}
		if !whitelisted {
			if err := engine.SetWhitelisted(collection, true); err != nil {
				logger.Error("failed to whitelist collection", "collection", collection.Hex(), "error", err)
				os.Exit(1)
			}
		}
	}

	server := rpc.NewServer(engine, logger)
	server.SetMetricsHandler(metrics.Handler())

	httpSrv := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("rpc server listening", "address", cfg.RPCAddress)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("rpc server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}
