package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix identifies the human-readable bech32 prefix used when
// rendering an Address as a string.
type AddressPrefix string

// DCAPrefix is the sole address namespace used by the engine: token
// contracts and position owners share one address space.
const DCAPrefix AddressPrefix = "dca"

// AddressLength is the raw byte width of every address.
const AddressLength = 20

// Address is a 20-byte account or token identifier. The zero value is the
// null address. Addresses are comparable and safe to use as map keys.
type Address struct {
	prefix AddressPrefix
	bytes  [AddressLength]byte
}

// NewAddress wraps 20 raw bytes with a bech32 prefix.
func NewAddress(prefix AddressPrefix, b []byte) Address {
	if len(b) != AddressLength {
		panic("address must be 20 bytes long")
	}
	a := Address{prefix: prefix}
	copy(a.bytes[:], b)
	return a
}

// ZeroAddress reports whether a is the all-zero (null) address.
func ZeroAddress(a Address) bool {
	return a.bytes == [AddressLength]byte{}
}

func (a Address) String() string {
	if a.prefix == "" {
		return ""
	}
	conv, err := bech32.ConvertBits(a.bytes[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Bytes returns a copy of the raw 20-byte address.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a.bytes[:])
	return out
}

// Prefix returns the human-readable bech32 prefix associated with a.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

// Equal reports whether a and b identify the same 20 bytes, ignoring prefix.
func (a Address) Equal(b Address) bool {
	return a.bytes == b.bytes
}

// DecodeAddress parses a bech32-encoded address string.
func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != AddressLength {
		return Address{}, fmt.Errorf("address must be %d bytes long", AddressLength)
	}
	return NewAddress(AddressPrefix(prefix), conv), nil
}

// --- Key material, used only by test fixtures and CLI key generation; the
// engine itself never verifies a signature (signed-approval flows are an
// external collaborator) ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

func (k *PublicKey) Address() Address {
	addrBytes := crypto.PubkeyToAddress(*k.PublicKey).Bytes()
	return NewAddress(DCAPrefix, addrBytes)
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}
