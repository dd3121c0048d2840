package keyring

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Keyring wraps the wallet's HD master key. Every wallet endpoint is an
// hardened child account of the master key and every slice deposited to an
// endpoint uses a one-time key derived at the slice's position. The keyring
// is passed explicitly to whoever needs key material, there are no
// package-level key helpers.
type Keyring struct {
	master *hdkeychain.ExtendedKey
}

// NewFromSeed returns a keyring for the given master seed.
func NewFromSeed(seed []byte) (*Keyring, error) {
	if len(seed) < hdkeychain.MinSeedBytes {
		return nil, ErrInvalidSeed
	}
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	return &Keyring{master: master}, nil
}

// EndpointPublicKey returns the neutered extended key of the endpoint
// account in base58 format. This is the key root shared with counterparties
// so they can derive one-time deposit keys without seeing any private key.
func (k *Keyring) EndpointPublicKey(account uint32) (string, error) {
	xprv, err := k.endpointKey(account)
	if err != nil {
		return "", err
	}
	xpub, err := xprv.Neuter()
	if err != nil {
		return "", err
	}
	return xpub.String(), nil
}

// OneTimePrivateKey derives the private key owning the slice at the given
// endpoint account and position.
func (k *Keyring) OneTimePrivateKey(account, position uint32) (*btcec.PrivateKey, error) {
	xprv, err := k.endpointKey(account)
	if err != nil {
		return nil, err
	}
	child, err := xprv.Derive(position)
	if err != nil {
		return nil, err
	}
	return child.ECPrivKey()
}

// Sign signs the sha256d digest of the given payload with the provided
// one-time key and returns the DER encoded signature.
func (k *Keyring) Sign(priv *btcec.PrivateKey, payload []byte) []byte {
	return ecdsa.Sign(priv, chainhash.DoubleHashB(payload)).Serialize()
}

func (k *Keyring) endpointKey(account uint32) (*hdkeychain.ExtendedKey, error) {
	if account >= hdkeychain.HardenedKeyStart {
		return nil, ErrOutOfRangeAccount
	}
	return k.master.Derive(hdkeychain.HardenedKeyStart + account)
}

// OneTimePublicKey derives the public key for the given position from an
// endpoint's public key root. Counterparties use this to address deposits.
func OneTimePublicKey(endpointPublicKey string, position uint32) ([]byte, error) {
	xpub, err := hdkeychain.NewKeyFromString(endpointPublicKey)
	if err != nil {
		return nil, err
	}
	child, err := xpub.Derive(position)
	if err != nil {
		return nil, err
	}
	pub, err := child.ECPubKey()
	if err != nil {
		return nil, err
	}
	return pub.SerializeCompressed(), nil
}

// VerifySignature checks a DER encoded signature over the sha256d digest of
// the payload against a compressed public key.
func VerifySignature(pubKey, payload, signature []byte) bool {
	pub, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return false
	}
	return sig.Verify(chainhash.DoubleHashB(payload), pub)
}
