package wallet

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const saltLength = 16

type encryptedKeyJSON struct {
	Cipher string `json:"cipher"`
	Salt   string `json:"salt"`
}

type walletsFileJSON struct {
	Keys map[string]*encryptedKeyJSON `json:"keys"`
}

// Wallets is a password protected collection of wallets keyed by address.
type Wallets struct {
	Wallets map[string]*Wallet

	path     string
	password []byte
}

// CreateWallets loads the wallets file at path, or starts an empty
// collection when the file does not exist yet.
func CreateWallets(path string, password []byte) (*Wallets, error) {
	wallets := &Wallets{
		Wallets:  make(map[string]*Wallet),
		path:     path,
		password: password,
	}
	err := wallets.LoadFile()
	if os.IsNotExist(errors.Cause(err)) {
		return wallets, nil
	}
	return wallets, err
}

func (ws *Wallets) AddWallet() (string, error) {
	wallet, err := MakeWallet()
	if err != nil {
		return "", err
	}
	address := wallet.Address()
	ws.Wallets[address] = wallet
	return address, nil
}

func (ws *Wallets) GetAllAddresses() []string {
	addresses := make([]string, 0, len(ws.Wallets))
	for address := range ws.Wallets {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)
	return addresses
}

func (ws *Wallets) GetWallet(address string) (*Wallet, error) {
	wallet, ok := ws.Wallets[address]
	if !ok {
		return nil, errors.Errorf("no wallet for address %s in %s", address, ws.path)
	}
	return wallet, nil
}

func (ws *Wallets) LoadFile() error {
	content, err := os.ReadFile(ws.path)
	if err != nil {
		return errors.WithStack(err)
	}

	var fileJSON walletsFileJSON
	if err := json.Unmarshal(content, &fileJSON); err != nil {
		return errors.Wrapf(err, "parsing %s", ws.path)
	}

	for address, encrypted := range fileJSON.Keys {
		scalar, err := decryptKey(encrypted, ws.password)
		if err != nil {
			return errors.Wrapf(err, "decrypting key of %s", address)
		}
		wallet, err := walletFromScalar(scalar)
		if err != nil {
			return errors.Wrapf(err, "key of %s", address)
		}
		if wallet.Address() != address {
			return errors.Errorf("key stored under %s belongs to %s", address, wallet.Address())
		}
		ws.Wallets[address] = wallet
	}
	return nil
}

func (ws *Wallets) SaveFile() error {
	fileJSON := walletsFileJSON{Keys: make(map[string]*encryptedKeyJSON, len(ws.Wallets))}
	for address, wallet := range ws.Wallets {
		encrypted, err := encryptKey(wallet.PrivateKey.D.Bytes(), ws.password)
		if err != nil {
			return err
		}
		fileJSON.Keys[address] = encrypted
	}

	content, err := json.MarshalIndent(fileJSON, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	if dir := filepath.Dir(ws.path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return errors.Wrapf(err, "creating %s", dir)
		}
	}
	return errors.Wrapf(os.WriteFile(ws.path, content, 0600), "writing %s", ws.path)
}

func getAEAD(password, salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey(password, salt, 1, 64*1024, uint8(runtime.NumCPU()), 32)
	return chacha20poly1305.NewX(key)
}

func encryptKey(scalar, password []byte) (*encryptedKeyJSON, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.WithStack(err)
	}
	aead, err := getAEAD(password, salt)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(scalar)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.WithStack(err)
	}
	sealed := aead.Seal(nonce, nonce, scalar, nil)

	return &encryptedKeyJSON{
		Cipher: hex.EncodeToString(sealed),
		Salt:   hex.EncodeToString(salt),
	}, nil
}

func decryptKey(encrypted *encryptedKeyJSON, password []byte) ([]byte, error) {
	sealed, err := hex.DecodeString(encrypted.Cipher)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	salt, err := hex.DecodeString(encrypted.Salt)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	aead, err := getAEAD(password, salt)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if len(sealed) < aead.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	// Split nonce and ciphertext.
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]

	// Decrypt the key and check it wasn't tampered with.
	scalar, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.Wrap(err, "wrong password or corrupted wallets file")
	}
	return scalar, nil
}
