package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nftlend/config"
	"nftlend/native/custody"
	"nftlend/native/lending"
	"nftlend/native/multisig"
	"nftlend/native/params"
	"nftlend/observability/logging"
	"nftlend/observability/metrics"
	"nftlend/state"
	"nftlend/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the daemon configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.Setup("lendd", cfg.NetworkName, cfg.LogPath)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)
	paramStore := params.NewStore(manager)

	authority, err := config.ParseAddress(cfg.Genesis.Authority)
	if err != nil {
		logger.Error("parse authority", "err", err)
		os.Exit(1)
	}
	vault, err := config.ParseAddress(cfg.Genesis.Vault)
	if err != nil {
		logger.Error("parse vault", "err", err)
		os.Exit(1)
	}
	ledger := custody.NewLedger(vault)

	emitter := metrics.NewEmitter(nil)

	govEngine := multisig.NewEngine()
	govEngine.SetState(manager)
	govEngine.SetParams(paramStore)
	govEngine.SetEmitter(emitter)

	lendEngine := lending.NewEngine(authority)
	lendEngine.SetState(manager)
	lendEngine.SetCustody(ledger)
	lendEngine.SetParams(paramStore)
	lendEngine.SetOwnerSource(govEngine)
	lendEngine.SetEmitter(emitter)

	if err := bootstrap(cfg, govEngine, paramStore); err != nil {
		logger.Error("genesis bootstrap", "err", err)
		os.Exit(1)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/v1/loans/{id}", loanHandler(lendEngine))
	router.Get("/v1/requests/{id}", requestHandler(lendEngine))
	router.Get("/v1/multisig", multisigHandler(govEngine))

	server := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", cfg.ListenAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown", "err", err)
	}
	logger.Info("stopped")
}

// bootstrap initializes the governance root and the platform parameters on
// first start. A store that already holds the multisig record is left alone.
func bootstrap(cfg *config.Config, gov *multisig.Engine, store *params.Store) error {
	if _, err := gov.Multisig(); err == nil {
		return nil
	}
	owners, err := cfg.GenesisOwners()
	if err != nil {
		return err
	}
	if _, err := gov.Initialize(owners, cfg.Genesis.Threshold); err != nil {
		return err
	}
	return store.SetPlatform(params.PlatformParams{
		FeePercentage: cfg.Genesis.FeePercentage,
		InterestRate:  cfg.Genesis.InterestRate,
		LoanToValue:   cfg.Genesis.LoanToValue,
	})
}

func loanHandler(engine *lending.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseRecordID(chi.URLParam(r, "id"))
		if err != nil {
			metrics.Lending().ObserveRequestError("loans")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		loan, err := engine.Loan(id)
		if err != nil {
			metrics.Lending().ObserveRequestError("loans")
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, loan)
	}
}

func requestHandler(engine *lending.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseRecordID(chi.URLParam(r, "id"))
		if err != nil {
			metrics.Lending().ObserveRequestError("requests")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		req, err := engine.Request(id)
		if err != nil {
			metrics.Lending().ObserveRequestError("requests")
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, req)
	}
}

func multisigHandler(engine *multisig.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ms, err := engine.Multisig()
		if err != nil {
			metrics.Lending().ObserveRequestError("multisig")
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, ms)
	}
}

func parseRecordID(raw string) (lending.RecordID, error) {
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return lending.RecordID{}, err
	}
	var id lending.RecordID
	if len(decoded) != len(id) {
		return lending.RecordID{}, errors.New("record id must be 32 bytes")
	}
	copy(id[:], decoded)
	return id, nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
