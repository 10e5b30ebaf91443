// Package crypto provides EIP-712 typed-data fingerprinting, signing and
// signer recovery for trade quotes, plus encrypted key storage for the
// quote-signing service.
package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/veritasmkt/veritas/internal/domain"
)

// Domain constants for the quote typed-data scheme. The fingerprint binds
// protocol name, version, chain identity and the verifying party so a quote
// signed for one deployment can never be replayed against another.
const (
	DomainName    = "Veritas"
	DomainVersion = "1"

	// amountScale converts decimal amounts to the uint256 base units used
	// in the signed payload (1e6, six fractional digits).
	amountScale = 6
)

var (
	// EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)
	eip712DomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"),
	)

	// TradeQuote(address trader,bytes32 market,uint8 outcome,uint256 amount,uint256 cost,uint256 deadline,uint256 nonce,bool isSell,uint256 minAmountOut,uint256 minReturn)
	tradeQuoteTypeHash = ethcrypto.Keccak256(
		[]byte("TradeQuote(address trader,bytes32 market,uint8 outcome,uint256 amount,uint256 cost,uint256 deadline,uint256 nonce,bool isSell,uint256 minAmountOut,uint256 minReturn)"),
	)
)

// MarketHash returns the bytes32 encoding of a market ID used in the signed
// payload.
func MarketHash(marketID string) []byte {
	return ethcrypto.Keccak256([]byte(marketID))
}

// DomainSeparator computes the EIP-712 domain separator for the given chain
// and verifying party.
func DomainSeparator(chainID int64, verifying common.Address) []byte {
	return ethcrypto.Keccak256(
		concatBytes(
			eip712DomainTypeHash,
			ethcrypto.Keccak256([]byte(DomainName)),
			ethcrypto.Keccak256([]byte(DomainVersion)),
			bigIntTo32Bytes(big.NewInt(chainID)),
			common.LeftPadBytes(verifying.Bytes(), 32),
		),
	)
}

// QuoteDigest recomputes the canonical structured-data fingerprint of a
// trade quote under the given domain. Both the off-ledger signing service
// and the on-engine verifier call this, so the two can never drift.
func QuoteDigest(chainID int64, verifying common.Address, q domain.TradeQuote) ([]byte, error) {
	structHash, err := quoteStructHash(q)
	if err != nil {
		return nil, err
	}
	return ethcrypto.Keccak256(
		concatBytes(
			[]byte{0x19, 0x01},
			DomainSeparator(chainID, verifying),
			structHash,
		),
	), nil
}

// Signer signs trade quotes with a secp256k1 key under a fixed domain.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    int64
	verifying  common.Address
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key, the
// chain identity and the verifying-party address of the target engine.
func NewSigner(privateKeyHex string, chainID int64, verifying common.Address) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid private key: %w", err)
	}

	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
		chainID:    chainID,
		verifying:  verifying,
	}, nil
}

// Address returns the account address derived from the signer's key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignQuote signs the quote's EIP-712 digest and returns a hex-encoded
// 65-byte signature (r || s || v with v in {27, 28}).
func (s *Signer) SignQuote(q domain.TradeQuote) (string, error) {
	digest, err := QuoteDigest(s.chainID, s.verifying, q)
	if err != nil {
		return "", err
	}

	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto: signing quote: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return "0x" + hex.EncodeToString(sig), nil
}

// RecoverSigner recovers the account that produced the given hex signature
// over the digest. It returns domain.ErrInvalidSignature for malformed or
// unrecoverable signatures.
func RecoverSigner(digest []byte, signatureHex string) (common.Address, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(signatureHex, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	if len(raw) != 65 {
		return common.Address{}, fmt.Errorf("%w: expected 65 bytes, got %d", domain.ErrInvalidSignature, len(raw))
	}

	// Normalise v from {27,28} back to the {0,1} recovery id.
	sig := make([]byte, 65)
	copy(sig, raw)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// quoteStructHash encodes and hashes a TradeQuote per EIP-712, in the wire
// field order.
func quoteStructHash(q domain.TradeQuote) ([]byte, error) {
	amount, err := toBaseUnits(q.Amount)
	if err != nil {
		return nil, fmt.Errorf("crypto: quote amount: %w", err)
	}
	cost, err := toBaseUnits(q.Cost)
	if err != nil {
		return nil, fmt.Errorf("crypto: quote cost: %w", err)
	}
	minOut, err := toBaseUnits(q.MinAmountOut)
	if err != nil {
		return nil, fmt.Errorf("crypto: quote minAmountOut: %w", err)
	}
	minReturn, err := toBaseUnits(q.MinReturn)
	if err != nil {
		return nil, fmt.Errorf("crypto: quote minReturn: %w", err)
	}

	isSell := big.NewInt(0)
	if q.IsSell {
		isSell = big.NewInt(1)
	}

	trader := common.HexToAddress(q.Trader)

	return ethcrypto.Keccak256(
		concatBytes(
			tradeQuoteTypeHash,
			common.LeftPadBytes(trader.Bytes(), 32),
			MarketHash(q.Market),
			bigIntTo32Bytes(big.NewInt(int64(q.Outcome))),
			bigIntTo32Bytes(amount),
			bigIntTo32Bytes(cost),
			bigIntTo32Bytes(big.NewInt(q.Deadline.Unix())),
			bigIntTo32Bytes(new(big.Int).SetUint64(q.Nonce)),
			bigIntTo32Bytes(isSell),
			bigIntTo32Bytes(minOut),
			bigIntTo32Bytes(minReturn),
		),
	), nil
}

// toBaseUnits converts a decimal amount to integer 1e6 base units. Amounts
// carrying more than six fractional digits cannot be represented in the
// signed payload and are rejected.
func toBaseUnits(d decimal.Decimal) (*big.Int, error) {
	shifted := d.Shift(amountScale)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %s exceeds %d decimal places", d, amountScale)
	}
	if shifted.Sign() < 0 {
		return nil, fmt.Errorf("amount %s is negative", d)
	}
	return shifted.BigInt(), nil
}

// bigIntTo32Bytes returns a 32-byte big-endian representation of n.
func bigIntTo32Bytes(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) >= 32 {
		return b[:32]
	}
	padded := make([]byte, 32)
	copy(padded[32-len(b):], b)
	return padded
}

// concatBytes concatenates multiple byte slices into one.
func concatBytes(slices ...[]byte) []byte {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for _, s := range slices {
		buf = append(buf, s...)
	}
	return buf
}
