package main

import (
	"fmt"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/axiom-kit/storage"
	"github.com/axiomesh/axiom-kit/storage/leveldb"
	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	govern "github.com/civitas-labs/govern"
	"github.com/civitas-labs/govern/api"
	"github.com/civitas-labs/govern/core"
	"github.com/civitas-labs/govern/repo"
)

func start(ctx *cli.Context) error {
	p, err := getRootPath(ctx)
	if err != nil {
		return err
	}
	r, err := repo.Load(p)
	if err != nil {
		return err
	}

	err = log.Initialize(
		log.WithReportCaller(r.Config.Log.ReportCaller),
		log.WithPersist(true),
		log.WithFilePath(filepath.Join(r.Config.RepoRoot, repo.LogsDirName)),
		log.WithFileName(r.Config.Log.Filename),
		log.WithMaxAge(r.Config.Log.MaxAge),
		log.WithRotationTime(r.Config.Log.RotationTime),
	)
	if err != nil {
		return fmt.Errorf("log initialize: %w", err)
	}

	printVersion()

	if !common.IsHexAddress(r.Config.Owner) {
		return fmt.Errorf("invalid owner address in config: %q", r.Config.Owner)
	}

	// a previous instance may still hold the leveldb lock during restart
	var db storage.Storage
	openDB := func(attempt uint) error {
		db, err = leveldb.New(filepath.Join(r.Config.RepoRoot, repo.StoreDirName))
		return err
	}
	if err := retry.Retry(openDB, strategy.Limit(5), strategy.Backoff(backoff.Fibonacci(time.Second))); err != nil {
		return fmt.Errorf("open ledger store: %w", err)
	}

	limits := core.Limits{
		MaxOptions:    r.Config.Governance.MaxOptions,
		MaxTitle:      r.Config.Governance.MaxTitle,
		MaxDesc:       r.Config.Governance.MaxDesc,
		MaxOptionName: r.Config.Governance.MaxOptionName,
	}
	ledger, err := core.NewLedger(common.HexToAddress(r.Config.Owner), db, limits)
	if err != nil {
		return fmt.Errorf("new ledger error: %w", err)
	}
	ledger.SetLogLevel(r.Config.Log.Level)

	server := api.NewServer(ledger, r.Config.API.Listen)

	var wg sync.WaitGroup
	wg.Add(1)
	handleShutdown(server, &wg)

	if err := server.Start(); err != nil {
		return fmt.Errorf("start api server failed: %w", err)
	}

	fmt.Println("=============Govern is ready=============")

	wg.Wait()

	return nil
}

func printVersion() {
	fmt.Printf("Govern version: %s-%s-%s\n", govern.CurrentVersion, govern.CurrentBranch, govern.CurrentCommit)
	fmt.Printf("App build date: %s\n", govern.BuildDate)
	fmt.Printf("System version: %s\n", govern.Platform)
	fmt.Printf("Golang version: %s\n", govern.GoVersion)
	fmt.Println()
}

func handleShutdown(server *api.Server, wg *sync.WaitGroup) {
	var stop = make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGTERM)
	signal.Notify(stop, syscall.SIGINT)

	go func() {
		<-stop
		fmt.Println("received interrupt signal, shutting down...")
		if err := server.Stop(); err != nil {
			panic(err)
		}
		wg.Done()
		os.Exit(0)
	}()
}
