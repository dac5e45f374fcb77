package cli

import (
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

const (
	createWalletSubCmd  = "createwallet"
	listAddressesSubCmd = "listaddresses"
	genesisSubCmd       = "genesis"
	getBalanceSubCmd    = "getbalance"
	sendSubCmd          = "send"
	handleBatchSubCmd   = "handlebatch"
	printUTXOSubCmd     = "printutxo"
	inspectBatchSubCmd  = "inspectbatch"
	reindexSubCmd       = "reindex"
)

type configFlags struct {
	DataDir    string `long:"datadir" short:"b" description:"Directory of the UTXO store" default:"./tmp/utxo" env:"LEDGER_DATADIR"`
	WalletFile string `long:"walletfile" short:"w" description:"Path of the wallets file" default:"./tmp/wallets.json" env:"LEDGER_WALLETFILE"`
	LogFile    string `long:"logfile" description:"Rotated log file, empty to log to stderr only" default:"./tmp/logs/ledger.log" env:"LEDGER_LOGFILE"`
	LogLevel   string `long:"loglevel" short:"d" description:"Logging level {trace, debug, info, warn, error}" default:"info" env:"LEDGER_LOGLEVEL"`
	Password   string `long:"password" short:"p" description:"Password of the wallets file, prompted for when empty" env:"LEDGER_PASSWORD"`
}

type createWalletConfig struct{}

type listAddressesConfig struct{}

type genesisConfig struct {
	Address string  `long:"address" short:"a" description:"The address to send the genesis output to" required:"true"`
	Amount  float64 `long:"amount" short:"v" description:"Value of the genesis output in coins (e.g. 1234.12345678)" required:"true"`
	Data    string  `long:"data" description:"Arbitrary data to distinguish the genesis transaction"`
}

type getBalanceConfig struct {
	Address string `long:"address" short:"a" description:"The address to get balance for" required:"true"`
}

type sendConfig struct {
	From   string  `long:"from" short:"f" description:"Source wallet address" required:"true"`
	To     string  `long:"to" short:"t" description:"Destination address" required:"true"`
	Amount float64 `long:"amount" short:"v" description:"Amount to send in coins (e.g. 1234.12345678)" required:"true"`
	Batch  string  `long:"batch" short:"x" description:"Batch file the signed transaction is appended to" default:"./tmp/batch.gob"`
}

type handleBatchConfig struct {
	Batch string `long:"batch" short:"x" description:"Batch file of candidate transactions" default:"./tmp/batch.gob"`
}

type printUTXOConfig struct{}

type reindexConfig struct{}

type inspectBatchConfig struct {
	Batch string `long:"batch" short:"x" description:"Batch file of candidate transactions" default:"./tmp/batch.gob"`
}

// parseCommandLine returns the active sub command and its options. A nil
// error with an empty sub command means help was printed.
func parseCommandLine(args []string) (subCommand string, cfg *configFlags, config interface{}, err error) {
	cfg = &configFlags{}
	parser := flags.NewParser(cfg, flags.PrintErrors|flags.HelpFlag)

	createWalletConf := &createWalletConfig{}
	parser.AddCommand(createWalletSubCmd, "Creates a new wallet",
		"Creates a key pair and stores it in the wallets file", createWalletConf)

	listAddressesConf := &listAddressesConfig{}
	parser.AddCommand(listAddressesSubCmd, "Lists the addresses in the wallets file",
		"Lists the addresses in the wallets file", listAddressesConf)

	genesisConf := &genesisConfig{}
	parser.AddCommand(genesisSubCmd, "Initializes the UTXO set",
		"Creates the UTXO store with a single output paying the given address", genesisConf)

	getBalanceConf := &getBalanceConfig{}
	parser.AddCommand(getBalanceSubCmd, "Shows the balance of an address",
		"Sums the unspent outputs owned by an address", getBalanceConf)

	sendConf := &sendConfig{}
	parser.AddCommand(sendSubCmd, "Creates a signed transfer",
		"Builds a transfer on top of the pending batch, signs it and appends it to the batch file", sendConf)

	handleBatchConf := &handleBatchConfig{}
	parser.AddCommand(handleBatchSubCmd, "Applies a batch of transactions",
		"Commits a mutually valid subset of the batch to the UTXO set; rejected transactions stay in the batch file",
		handleBatchConf)

	printUTXOConf := &printUTXOConfig{}
	parser.AddCommand(printUTXOSubCmd, "Prints the UTXO set",
		"Prints every unspent output in the store", printUTXOConf)

	inspectBatchConf := &inspectBatchConfig{}
	parser.AddCommand(inspectBatchSubCmd, "Dumps a batch file",
		"Dumps every transaction in a batch file", inspectBatchConf)

	reindexConf := &reindexConfig{}
	parser.AddCommand(reindexSubCmd, "Rebuilds the UTXO set",
		"Drops the stored UTXO set and rebuilds it from the transaction history", reindexConf)

	_, err = parser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if ok := errors.As(err, &flagsErr); ok && flagsErr.Type == flags.ErrHelp {
			return "", nil, nil, nil
		}
		return "", nil, nil, err
	}

	switch parser.Command.Active.Name {
	case createWalletSubCmd:
		config = createWalletConf
	case listAddressesSubCmd:
		config = listAddressesConf
	case genesisSubCmd:
		config = genesisConf
	case getBalanceSubCmd:
		config = getBalanceConf
	case sendSubCmd:
		config = sendConf
	case handleBatchSubCmd:
		config = handleBatchConf
	case printUTXOSubCmd:
		config = printUTXOConf
	case inspectBatchSubCmd:
		config = inspectBatchConf
	case reindexSubCmd:
		config = reindexConf
	}

	return parser.Command.Active.Name, cfg, config, nil
}
