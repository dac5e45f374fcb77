package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	t       *testing.T
	globals []string
	batch   string
}

func newTestEnv(t *testing.T) *testEnv {
	dir := t.TempDir()
	return &testEnv{
		t: t,
		globals: []string{
			"--datadir", filepath.Join(dir, "utxo"),
			"--walletfile", filepath.Join(dir, "wallets.json"),
			"--logfile", filepath.Join(dir, "logs", "ledger.log"),
			"--loglevel", "warn",
			"--password", "secret",
		},
		batch: filepath.Join(dir, "batch.gob"),
	}
}

func (e *testEnv) run(args ...string) (string, error) {
	var out bytes.Buffer
	cmd := &CommandLine{out: &out}
	err := cmd.Run(append(append([]string(nil), e.globals...), args...))
	return out.String(), err
}

func (e *testEnv) mustRun(args ...string) string {
	out, err := e.run(args...)
	require.NoError(e.t, err)
	return out
}

func (e *testEnv) newAddress() string {
	out := e.mustRun(createWalletSubCmd)
	require.True(e.t, strings.HasPrefix(out, "New address is: "))
	return strings.TrimSpace(strings.TrimPrefix(out, "New address is: "))
}

func TestSendAndHandleBatch(t *testing.T) {
	e := newTestEnv(t)
	alice := e.newAddress()
	bob := e.newAddress()

	addresses := strings.Fields(e.mustRun(listAddressesSubCmd))
	require.ElementsMatch(t, []string{alice, bob}, addresses)

	e.mustRun(genesisSubCmd, "--address", alice, "--amount", "10")
	_, err := e.run(genesisSubCmd, "--address", alice, "--amount", "10")
	require.Error(t, err, "genesis on an initialized store")

	require.Contains(t, e.mustRun(getBalanceSubCmd, "--address", alice), "10 BTC")

	e.mustRun(sendSubCmd, "--from", alice, "--to", bob, "--amount", "4", "--batch", e.batch)
	// Spends the change of the pending transfer.
	e.mustRun(sendSubCmd, "--from", alice, "--to", bob, "--amount", "3.5", "--batch", e.batch)
	_, err = e.run(sendSubCmd, "--from", alice, "--to", bob, "--amount", "3", "--batch", e.batch)
	require.Error(t, err, "only 2.5 left after the pending transfers")

	dump := e.mustRun(inspectBatchSubCmd, "--batch", e.batch)
	require.Equal(t, 2, strings.Count(dump, "--- Transaction"))
	require.Equal(t, 2, strings.Count(dump, "Inputs: ([]ledger.TxInput)"))

	handled := e.mustRun(handleBatchSubCmd, "--batch", e.batch)
	require.Equal(t, 2, strings.Count(handled, "Accepted "))
	require.NotContains(t, handled, "Rejected")

	require.Contains(t, e.mustRun(getBalanceSubCmd, "--address", bob), "7.5 BTC")
	require.Contains(t, e.mustRun(getBalanceSubCmd, "--address", alice), "2.5 BTC")

	utxos := e.mustRun(printUTXOSubCmd)
	require.Contains(t, utxos, "3 UTXOs worth 10 BTC")

	info, err := os.Stat(e.batch)
	require.NoError(t, err)
	require.Zero(t, info.Size(), "accepted transactions leave the batch file")

	require.Contains(t, e.mustRun(reindexSubCmd), "There are 3 outputs")
	require.Equal(t, utxos, e.mustRun(printUTXOSubCmd), "replaying the history gives the same set")
}

func TestHandleBatchKeepsRejected(t *testing.T) {
	e := newTestEnv(t)
	alice := e.newAddress()
	bob := e.newAddress()
	e.mustRun(genesisSubCmd, "--address", alice, "--amount", "10")

	e.mustRun(sendSubCmd, "--from", alice, "--to", bob, "--amount", "10", "--batch", e.batch)
	conflicting := filepath.Join(filepath.Dir(e.batch), "conflicting.gob")
	e.mustRun(sendSubCmd, "--from", alice, "--to", alice, "--amount", "10", "--batch", conflicting)

	e.mustRun(handleBatchSubCmd, "--batch", e.batch)
	handled := e.mustRun(handleBatchSubCmd, "--batch", conflicting)
	require.NotContains(t, handled, "Accepted")
	require.Contains(t, handled, "Rejected 0: ")
	require.Contains(t, handled, "ErrMissingInput")

	dump := e.mustRun(inspectBatchSubCmd, "--batch", conflicting)
	require.Equal(t, 1, strings.Count(dump, "--- Transaction"))

	require.Contains(t, e.mustRun(getBalanceSubCmd, "--address", bob), "10 BTC")
}

func TestCommandErrors(t *testing.T) {
	e := newTestEnv(t)
	alice := e.newAddress()

	_, err := e.run(genesisSubCmd, "--address", "not-an-address", "--amount", "1")
	require.Error(t, err)

	_, err = e.run(genesisSubCmd, "--address", alice, "--amount", "-1")
	require.Error(t, err)

	for _, args := range [][]string{
		{sendSubCmd, "--from", alice, "--to", alice, "--amount", "1", "--batch", e.batch},
		{getBalanceSubCmd, "--address", alice},
		{handleBatchSubCmd, "--batch", e.batch},
		{printUTXOSubCmd},
		{reindexSubCmd},
	} {
		_, err = e.run(args...)
		require.Error(t, err, args[0])
		require.Contains(t, err.Error(), "run genesis first", args[0])
	}
	_, err = os.Stat(filepath.Join(filepath.Dir(e.batch), "utxo"))
	require.True(t, os.IsNotExist(err), "commands other than genesis do not create the store")

	e.mustRun(genesisSubCmd, "--address", alice, "--amount", "1")
	_, err = e.run(sendSubCmd, "--from", alice, "--to", alice, "--amount", "2", "--batch", e.batch)
	require.Error(t, err, "not enough to spend")

	_, err = e.run(getBalanceSubCmd)
	require.Error(t, err, "missing required flag")

	_, err = e.run("nosuchcommand")
	require.Error(t, err)

	var out bytes.Buffer
	cmd := &CommandLine{out: &out}
	err = cmd.Run([]string{"--loglevel", "loud", "--password", "x", printUTXOSubCmd})
	require.Error(t, err)
}

func TestOpenStoreCloseTwice(t *testing.T) {
	cmd := &CommandLine{cfg: &configFlags{DataDir: t.TempDir()}, log: zerolog.Nop()}

	store, closeStore, err := cmd.openStore()
	require.NoError(t, err)
	count, err := store.CountUTXOs()
	require.NoError(t, err)
	require.Zero(t, count)
	closeStore()
	closeStore()

	_, closeStore, err = cmd.openStore()
	require.NoError(t, err, "the store was released")
	closeStore()
}
