package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/TualatinX/utxo-ledger/ledger"
	"github.com/TualatinX/utxo-ledger/wallet"
	"github.com/btcsuite/btcutil"
	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/vrecan/death/v3"
	"golang.org/x/term"
)

var spewConfig = spew.ConfigState{
	Indent:                  "  ",
	DisableMethods:          true,
	DisablePointerAddresses: true,
}

type CommandLine struct {
	cfg *configFlags
	log zerolog.Logger
	out io.Writer
}

// Run parses args (without the program name) and executes the chosen command.
func (cli *CommandLine) Run(args []string) error {
	subCommand, cfg, config, err := parseCommandLine(args)
	if err != nil || subCommand == "" {
		return err
	}
	cli.cfg = cfg
	if cli.out == nil {
		cli.out = os.Stdout
	}

	logger, closeLog, err := initLog(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer closeLog()
	cli.log = logger

	switch conf := config.(type) {
	case *createWalletConfig:
		return cli.createWallet()
	case *listAddressesConfig:
		return cli.listAddresses()
	case *genesisConfig:
		return cli.genesis(conf)
	case *getBalanceConfig:
		return cli.getBalance(conf)
	case *sendConfig:
		return cli.send(conf)
	case *handleBatchConfig:
		return cli.handleBatch(conf)
	case *printUTXOConfig:
		return cli.printUTXO()
	case *inspectBatchConfig:
		return cli.inspectBatch(conf)
	case *reindexConfig:
		return cli.reindex()
	}
	return errors.Errorf("unknown command %s", subCommand)
}

func (cli *CommandLine) password() []byte {
	if cli.cfg.Password != "" {
		return []byte(cli.cfg.Password)
	}
	fmt.Fprint(os.Stderr, "Password: ")
	p, _ := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprint(os.Stderr, "\n")
	return p
}

func (cli *CommandLine) openWallets() (*wallet.Wallets, error) {
	return wallet.CreateWallets(cli.cfg.WalletFile, cli.password())
}

// openStore opens the UTXO store and makes sure it is closed when the
// process is interrupted. The returned func closes the store and stops
// watching for signals.
func (cli *CommandLine) openStore() (*ledger.UTXOStore, func(), error) {
	store, err := ledger.OpenUTXOStore(cli.cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}

	var once sync.Once
	done := make(chan struct{})
	closeStore := func() {
		once.Do(func() {
			close(done)
			if err := store.Close(); err != nil {
				cli.log.Error().Err(err).Msg("Closing UTXO store")
			}
		})
	}

	d := death.NewDeath(syscall.SIGINT, syscall.SIGTERM, os.Interrupt).SetLogger(deathLogger{cli.log})
	go d.WaitForDeathWithFunc(func() {
		select {
		case <-done:
			return
		default:
		}
		defer os.Exit(1)
		closeStore()
	})

	return store, func() {
		closeStore()
		d.FallOnSword()
	}, nil
}

// openExistingStore refuses to create a store: only genesis does that.
func (cli *CommandLine) openExistingStore() (*ledger.UTXOStore, func(), error) {
	if !ledger.StoreExists(cli.cfg.DataDir) {
		return nil, nil, errors.Errorf("no UTXO set in %s, run %s first", cli.cfg.DataDir, genesisSubCmd)
	}
	return cli.openStore()
}

type deathLogger struct {
	log zerolog.Logger
}

func (l deathLogger) Error(v ...interface{}) { l.log.Error().Msg(fmt.Sprint(v...)) }
func (l deathLogger) Debug(v ...interface{}) { l.log.Debug().Msg(fmt.Sprint(v...)) }

// Info is demoted: death reports a shutdown every time a store is closed.
func (l deathLogger) Info(v ...interface{}) { l.log.Debug().Msg(fmt.Sprint(v...)) }

// createWallet will create a wallet in the wallets file
func (cli *CommandLine) createWallet() error {
	wallets, err := cli.openWallets()
	if err != nil {
		return err
	}
	address, err := wallets.AddWallet()
	if err != nil {
		return err
	}
	if err := wallets.SaveFile(); err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "New address is: %s\n", address)
	return nil
}

// listAddresses will list all addresses in the wallets file
func (cli *CommandLine) listAddresses() error {
	wallets, err := cli.openWallets()
	if err != nil {
		return err
	}
	for _, address := range wallets.GetAllAddresses() {
		fmt.Fprintln(cli.out, address)
	}
	return nil
}

func (cli *CommandLine) genesis(conf *genesisConfig) error {
	pubKey, err := wallet.AddressToPubKey(conf.Address)
	if err != nil {
		return err
	}
	amount, err := parseAmount(conf.Amount)
	if err != nil {
		return err
	}

	store, closeStore, err := cli.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	count, err := store.CountUTXOs()
	if err != nil {
		return err
	}
	if count > 0 {
		return errors.Errorf("UTXO set in %s already holds %d outputs", cli.cfg.DataDir, count)
	}

	coinbase := ledger.CoinbaseTx(pubKey, amount, conf.Data)
	if err := store.Update([]*ledger.Transaction{coinbase}); err != nil {
		return err
	}
	cli.log.Info().Str("tx", coinbase.ID.String()).Str("address", conf.Address).
		Str("amount", amount.String()).Msg("Genesis output created")

	fmt.Fprintln(cli.out, "Finished creating UTXO set")
	return nil
}

func (cli *CommandLine) getBalance(conf *getBalanceConfig) error {
	pubKey, err := wallet.AddressToPubKey(conf.Address)
	if err != nil {
		return err
	}

	store, closeStore, err := cli.openExistingStore()
	if err != nil {
		return err
	}
	defer closeStore()

	outs, err := store.FindUnspentOutputs(pubKey)
	if err != nil {
		return err
	}
	var balance btcutil.Amount
	for _, out := range outs {
		balance += out.Value
	}

	fmt.Fprintf(cli.out, "Balance of %s: %s\n", conf.Address, balance)
	return nil
}

// send builds the transfer against the UTXO set as it will be once the
// pending batch is handled, so several sends can be chained in one batch.
func (cli *CommandLine) send(conf *sendConfig) error {
	toPubKey, err := wallet.AddressToPubKey(conf.To)
	if err != nil {
		return err
	}
	amount, err := parseAmount(conf.Amount)
	if err != nil {
		return err
	}
	wallets, err := cli.openWallets()
	if err != nil {
		return err
	}
	from, err := wallets.GetWallet(conf.From)
	if err != nil {
		return err
	}

	store, closeStore, err := cli.openExistingStore()
	if err != nil {
		return err
	}
	defer closeStore()

	pool, err := store.Load()
	if err != nil {
		return err
	}
	batch, err := readBatch(conf.Batch)
	if err != nil {
		return err
	}
	pending := ledger.NewTxHandler(pool, wallet.ECDSAVerifier{})
	pending.HandleTxs(batch)

	tx, err := ledger.NewTransferTx(pending.UTXOPool(), from, from.PublicKey, toPubKey, amount)
	if err != nil {
		return err
	}
	if err := writeBatch(conf.Batch, append(batch, tx)); err != nil {
		return err
	}
	cli.log.Info().Str("tx", tx.ID.String()).Str("from", conf.From).Str("to", conf.To).
		Str("amount", amount.String()).Int("batchSize", len(batch)+1).Msg("Transfer added to batch")

	fmt.Fprintf(cli.out, "Transaction %s added to %s\n", tx.ID, conf.Batch)
	return nil
}

func (cli *CommandLine) handleBatch(conf *handleBatchConfig) error {
	batch, err := readBatch(conf.Batch)
	if err != nil {
		return err
	}

	store, closeStore, err := cli.openExistingStore()
	if err != nil {
		return err
	}
	defer closeStore()

	pool, err := store.Load()
	if err != nil {
		return err
	}

	handler := ledger.NewTxHandler(pool, wallet.ECDSAVerifier{})
	result := handler.HandleBatch(batch)
	if err := store.Update(result.Accepted); err != nil {
		return err
	}

	rejected := make([]*ledger.Transaction, 0, len(result.Rejected))
	for _, rejection := range result.Rejected {
		rejected = append(rejected, rejection.Tx)
		fmt.Fprintf(cli.out, "Rejected %d: %s\n", rejection.Index, rejection.Err)
	}
	if err := writeBatch(conf.Batch, rejected); err != nil {
		return err
	}

	for _, tx := range result.Accepted {
		fmt.Fprintf(cli.out, "Accepted %s\n", tx.ID)
	}
	cli.log.Info().Int("candidates", len(batch)).Int("accepted", len(result.Accepted)).
		Int("rejected", len(result.Rejected)).Msg("Batch handled")
	return nil
}

func (cli *CommandLine) printUTXO() error {
	store, closeStore, err := cli.openExistingStore()
	if err != nil {
		return err
	}
	defer closeStore()

	pool, err := store.Load()
	if err != nil {
		return err
	}
	for _, ut := range pool.AllUTXOs() {
		out, _ := pool.GetTxOutput(ut)
		fmt.Fprintf(cli.out, "%s %s %s\n", ut, out.Value, wallet.PubKeyToAddress(out.PubKey))
	}
	fmt.Fprintf(cli.out, "%d UTXOs worth %s\n", pool.Len(), pool.TotalValue())
	return nil
}

func (cli *CommandLine) inspectBatch(conf *inspectBatchConfig) error {
	batch, err := readBatch(conf.Batch)
	if err != nil {
		return err
	}
	for _, tx := range batch {
		fmt.Fprintln(cli.out, tx)
		spewConfig.Fdump(cli.out, tx)
	}
	return nil
}

func (cli *CommandLine) reindex() error {
	store, closeStore, err := cli.openExistingStore()
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.ReIndex(); err != nil {
		return err
	}
	count, err := store.CountUTXOs()
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Done! There are %d outputs in the UTXO set.\n", count)
	return nil
}

func parseAmount(coins float64) (btcutil.Amount, error) {
	amount, err := btcutil.NewAmount(coins)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid amount %f", coins)
	}
	if amount <= 0 {
		return 0, errors.Errorf("amount must be positive, got %s", amount)
	}
	return amount, nil
}

// readBatch returns an empty batch when the file does not exist.
func readBatch(path string) ([]*ledger.Transaction, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return ledger.DeserializeBatch(data)
}

func writeBatch(path string, txs []*ledger.Transaction) error {
	var data []byte
	if len(txs) > 0 {
		var err error
		if data, err = ledger.SerializeBatch(txs); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.Wrapf(err, "creating directory of %s", path)
	}
	return errors.Wrapf(os.WriteFile(path, data, 0600), "writing %s", path)
}
