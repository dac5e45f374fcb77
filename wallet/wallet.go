package wallet

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"math/big"

	"github.com/TualatinX/utxo-ledger/ledger"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

const (
	checksumLength = 4

	//hexadecimal representation of 0
	version = byte(0x00)

	coordinateLength = 32
	pubKeyLength     = 2 * coordinateLength
	addressLength    = 1 + pubKeyLength + checksumLength
)

var curve = elliptic.P256()

type Wallet struct {
	//ecdsa = elliptic curve digital signature algorithm
	PrivateKey ecdsa.PrivateKey

	// PublicKey is X||Y, each coordinate left-padded to 32 bytes. Outputs
	// are locked to these bytes.
	PublicKey []byte
}

func NewKeyPair() (ecdsa.PrivateKey, []byte, error) {
	private, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return ecdsa.PrivateKey{}, nil, errors.Wrap(err, "generating key")
	}
	return *private, PublicKeyBytes(&private.PublicKey), nil
}

func MakeWallet() (*Wallet, error) {
	private, public, err := NewKeyPair()
	if err != nil {
		return nil, err
	}
	return &Wallet{PrivateKey: private, PublicKey: public}, nil
}

// walletFromScalar rebuilds a wallet from the private scalar D.
func walletFromScalar(d []byte) (*Wallet, error) {
	k := new(big.Int).SetBytes(d)
	if k.Sign() == 0 || k.Cmp(curve.Params().N) >= 0 {
		return nil, errors.New("private key out of range")
	}
	private := ecdsa.PrivateKey{D: k}
	private.PublicKey.Curve = curve
	private.PublicKey.X, private.PublicKey.Y = curve.ScalarBaseMult(k.Bytes())
	return &Wallet{PrivateKey: private, PublicKey: PublicKeyBytes(&private.PublicKey)}, nil
}

// PublicKeyBytes encodes pub in the fixed X||Y layout used by outputs.
func PublicKeyBytes(pub *ecdsa.PublicKey) []byte {
	b := make([]byte, pubKeyLength)
	pub.X.FillBytes(b[:coordinateLength])
	pub.Y.FillBytes(b[coordinateLength:])
	return b
}

// ParsePublicKey decodes X||Y bytes and checks the point is on the curve.
func ParsePublicKey(b []byte) (*ecdsa.PublicKey, error) {
	if len(b) != pubKeyLength {
		return nil, errors.Errorf("public key has length %d, expected %d", len(b), pubKeyLength)
	}
	x := new(big.Int).SetBytes(b[:coordinateLength])
	y := new(big.Int).SetBytes(b[coordinateLength:])
	if !curve.IsOnCurve(x, y) {
		return nil, errors.New("public key is not on the curve")
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

// Sign returns an ASN.1 ECDSA signature over the sha256 of message.
func (w *Wallet) Sign(message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	signature, err := ecdsa.SignASN1(rand.Reader, &w.PrivateKey, digest[:])
	if err != nil {
		return nil, errors.Wrap(err, "signing")
	}
	return signature, nil
}

func (w *Wallet) Address() string {
	return PubKeyToAddress(w.PublicKey)
}

// PubKeyToAddress encodes version, public key and checksum in base58.
func PubKeyToAddress(pubKey []byte) string {
	versionedKey := append([]byte{version}, pubKey...)
	fullPayload := append(versionedKey, Checksum(versionedKey)...)
	return base58.Encode(fullPayload)
}

// AddressToPubKey returns the public key an address stands for.
func AddressToPubKey(address string) ([]byte, error) {
	fullPayload, err := base58.Decode(address)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding address %q", address)
	}
	if len(fullPayload) != addressLength {
		return nil, errors.Errorf("address %q has length %d, expected %d", address, len(fullPayload), addressLength)
	}
	if fullPayload[0] != version {
		return nil, errors.Errorf("address %q has unknown version %d", address, fullPayload[0])
	}
	versionedKey := fullPayload[:len(fullPayload)-checksumLength]
	actualChecksum := fullPayload[len(fullPayload)-checksumLength:]
	if !bytes.Equal(actualChecksum, Checksum(versionedKey)) {
		return nil, errors.Errorf("address %q has a bad checksum", address)
	}
	pubKey := versionedKey[1:]
	if _, err := ParsePublicKey(pubKey); err != nil {
		return nil, err
	}
	return pubKey, nil
}

func ValidateAddress(address string) bool {
	_, err := AddressToPubKey(address)
	return err == nil
}

func Checksum(payload []byte) []byte {
	firstHash := sha256.Sum256(payload)
	secondHash := sha256.Sum256(firstHash[:])
	return secondHash[:checksumLength]
}

// ECDSAVerifier checks signatures made by Wallet.Sign.
type ECDSAVerifier struct{}

var _ ledger.Verifier = ECDSAVerifier{}
var _ ledger.Signer = (*Wallet)(nil)

func (ECDSAVerifier) Verify(pubKey, message, signature []byte) bool {
	pub, err := ParsePublicKey(pubKey)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(message)
	return ecdsa.VerifyASN1(pub, digest[:], signature)
}
