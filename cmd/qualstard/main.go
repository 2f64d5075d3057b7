// qualstard is the tape library control daemon: it loads the
// TapeLibrary configuration, constructs the Library Control Engine,
// and serves the `/library` HTTP surface until asked to shut down.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/creatorflow-io/QualstarLibrary/internal/config"
	"github.com/creatorflow-io/QualstarLibrary/internal/engine"
	"github.com/creatorflow-io/QualstarLibrary/internal/httpapi"
	"github.com/creatorflow-io/QualstarLibrary/internal/lock"
	"github.com/creatorflow-io/QualstarLibrary/internal/logutil"
	"github.com/creatorflow-io/QualstarLibrary/internal/procexec"
	"github.com/creatorflow-io/QualstarLibrary/internal/repo"
)

func main() {
	configFile := flag.String("config", config.DefaultConfigFile, "TOML file describing the tape library")
	flag.Parse()

	cfg, err := config.ParseConfig(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "loading configuration:", err)
		os.Exit(1)
	}

	logger := logutil.NewLogger(cfg.LogFile)

	var operationRepo repo.OperationRepository = repo.NoopRepository{}
	if cfg.OperationsDBFile != "" {
		sqliteRepo, err := repo.NewSQLiteRepository(cfg.OperationsDBFile)
		if err != nil {
			logger.Fatal("opening operations database: ", err)
		}
		defer sqliteRepo.Close()
		operationRepo = sqliteRepo
	}

	var ltfs engine.LTFSProcedures
	if runtime.GOOS == "windows" {
		ltfs = engine.NewWindowsProcedures()
	} else {
		ltfs = engine.NewLinuxProcedures()
	}

	eng := engine.New(cfg, logger, procexec.NewExecRunner(), lock.NewInProcessLocker(), operationRepo, ltfs)

	server := &http.Server{
		Addr:    cfg.ListenAddress,
		Handler: httpapi.NewRouter(eng, os.Stdout),
	}

	go func() {
		logger.Event("listening on ", cfg.ListenAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server: ", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Event("shutdown requested, releasing all drives")
	releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	op := eng.Release(releaseCtx)
	logger.Event("release finished: ", op.Status, " ", op.Message)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Event("http server shutdown error: ", err)
	}
}
