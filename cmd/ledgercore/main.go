// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/inconshreveable/log15"
	"gopkg.in/urfave/cli.v1"

	"github.com/ledgerlattice/corenode/cmd/ledgercore/node"
	"github.com/ledgerlattice/corenode/config"
	"github.com/ledgerlattice/corenode/genesis"
)

var log = log15.New("pkg", "main")

var (
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "path to the node's YAML config file",
	}
	dataDirFlag = cli.StringFlag{
		Name:  "data-dir",
		Usage: "overrides config's data_dir",
	}
	devnetFlag = cli.BoolFlag{
		Name:  "devnet",
		Usage: "run an in-memory store seeded with the devnet genesis",
	}
	batchSizeFlag = cli.IntFlag{
		Name:  "batch-size",
		Usage: "overrides config's batch_size (blocks committed per write transaction)",
	}
	disableLegacyBootstrapFlag = cli.BoolFlag{
		Name:  "disable-legacy-bootstrap",
		Usage: "disable the fraction-of-online-stake gap cache threshold",
	}
	disableLazyBootstrapFlag = cli.BoolFlag{
		Name:  "disable-lazy-bootstrap",
		Usage: "disable the flat online-weight-minimum gap cache threshold",
	}
	disableBackupFlag = cli.BoolFlag{
		Name:  "disable-backup",
		Usage: "disable periodic store backups",
	}
	disableBootstrapListenerFlag = cli.BoolFlag{
		Name:  "disable-bootstrap-listener",
		Usage: "refuse inbound bootstrap requests from peers",
	}
	disableUncheckedCleanupFlag = cli.BoolFlag{
		Name:  "disable-unchecked-cleanup",
		Usage: "disable periodic eviction of aged unchecked entries",
	}
	disableUncheckedDropFlag = cli.BoolFlag{
		Name:  "disable-unchecked-drop",
		Usage: "never drop unchecked entries for any reason",
	}
	fastBootstrapFlag = cli.BoolFlag{
		Name:  "fast-bootstrap",
		Usage: "prioritize bootstrap completion over steady-state fairness",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "ledgercore"
	app.Usage = "block-lattice ledger node"
	app.Flags = []cli.Flag{
		configFlag, dataDirFlag, devnetFlag, batchSizeFlag,
		disableLegacyBootstrapFlag, disableLazyBootstrapFlag, disableBackupFlag,
		disableBootstrapListenerFlag, disableUncheckedCleanupFlag, disableUncheckedDropFlag,
		fastBootstrapFlag,
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Crit("exit", "err", err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	n, err := node.New(cfg, node.Collaborators{})
	if err != nil {
		return fmt.Errorf("build node: %w", err)
	}

	if ctx.Bool(devnetFlag.Name) {
		if err := n.Genesis(genesis.NewDevnet()); err != nil {
			return fmt.Errorf("build genesis: %w", err)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n.Start(runCtx)
	defer n.Stop()

	server := &http.Server{Addr: cfg.MetricsAddr, Handler: n.Router()}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server stopped", "err", err)
		}
	}()
	defer server.Close()

	log.Info("ledgercore running", "metrics_addr", cfg.MetricsAddr, "data_dir", cfg.DataDir)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
	return nil
}

func loadConfig(ctx *cli.Context) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path := ctx.String(configFlag.Name); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg = config.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dir := ctx.String(dataDirFlag.Name); dir != "" {
		cfg.DataDir = dir
	}
	if ctx.Bool(devnetFlag.Name) {
		cfg.DataDir = ":memory:"
	}
	if n := ctx.Int(batchSizeFlag.Name); n > 0 {
		cfg.BatchSize = n
	}
	if ctx.Bool(disableLegacyBootstrapFlag.Name) {
		cfg.GapCache.DisableLegacyBootstrap = true
	}
	if ctx.Bool(disableLazyBootstrapFlag.Name) {
		cfg.GapCache.DisableLazyBootstrap = true
	}
	if ctx.Bool(disableBackupFlag.Name) {
		cfg.Bootstrap.DisableBackup = true
	}
	if ctx.Bool(disableBootstrapListenerFlag.Name) {
		cfg.Bootstrap.DisableBootstrapListener = true
	}
	if ctx.Bool(disableUncheckedCleanupFlag.Name) {
		cfg.Bootstrap.DisableUncheckedCleanup = true
	}
	if ctx.Bool(disableUncheckedDropFlag.Name) {
		cfg.Bootstrap.DisableUncheckedDrop = true
	}
	if ctx.Bool(fastBootstrapFlag.Name) {
		cfg.Bootstrap.FastBootstrap = true
	}
	return cfg, nil
}
