package auth

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/jonwraymond/satauth/identity"
	"github.com/jonwraymond/satauth/user"
)

// DefaultEthereumStatement is signed when EthereumOptions sets none.
const DefaultEthereumStatement = "Sign in to this application with your Ethereum account."

// SignerRejectedCode is the EIP-1193 code of a request rejected by the user.
const SignerRejectedCode = 4001

// ErrSignerRejected is matched by signer errors carrying SignerRejectedCode.
var ErrSignerRejected = errors.New("auth: signer rejected the request")

// SignerError is an error reported by a wallet.
type SignerError struct {
	Code    int
	Message string
}

func (e *SignerError) Error() string {
	return fmt.Sprintf("auth: signer error %d: %s", e.Code, e.Message)
}

// Is matches ErrSignerRejected for user rejections.
func (e *SignerError) Is(target error) bool {
	return target == ErrSignerRejected && e.Code == SignerRejectedCode
}

// TypedDataDomain scopes a typed-data signature to an application.
type TypedDataDomain struct {
	Name    string
	Version string
	ChainID int64
}

// TypedData is the sign-in statement a wallet signs. It holds no nonce or
// timestamp: the same wallet must yield the same signature, and so the same
// identity, on every sign-in.
type TypedData struct {
	Domain    TypedDataDomain
	Statement string
	Wallet    string
}

var (
	domainTypeHash = keccak([]byte("EIP712Domain(string name,string version,uint256 chainId)"))
	signInTypeHash = keccak([]byte("SignIn(string statement,address wallet)"))
)

// Hash returns the typed-data digest the wallet signs.
func (t TypedData) Hash() ([]byte, error) {
	wallet, err := parseAddress(t.Wallet)
	if err != nil {
		return nil, err
	}

	var chainID [32]byte
	binary.BigEndian.PutUint64(chainID[24:], uint64(t.Domain.ChainID))
	domain := keccak(domainTypeHash, keccak([]byte(t.Domain.Name)), keccak([]byte(t.Domain.Version)), chainID[:])

	var paddedWallet [32]byte
	copy(paddedWallet[12:], wallet)
	message := keccak(signInTypeHash, keccak([]byte(t.Statement)), paddedWallet[:])

	return keccak([]byte{0x19, 0x01}, domain, message), nil
}

func keccak(parts ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

func parseAddress(s string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
	if err != nil || len(raw) != 20 {
		return nil, fmt.Errorf("%w: invalid ethereum address %q", ErrSignIn, s)
	}
	return raw, nil
}

// EthereumSigner is a wallet.
//
// Contract:
//   - Context: requests wait on the user and must honor cancellation.
//   - Errors: a user rejection must match ErrSignerRejected, e.g. a
//     *SignerError with SignerRejectedCode.
type EthereumSigner interface {
	RequestAddress(ctx context.Context) (string, error)
	SignTypedData(ctx context.Context, address string, data TypedData) ([]byte, error)
}

// EthereumProvider derives a root identity from a wallet signature.
type EthereumProvider struct {
	opts EthereumOptions
}

// ID returns user.Ethereum.
func (p *EthereumProvider) ID() user.Provider { return user.Ethereum }

// SignIn asks the wallet for its address and a signature over the sign-in
// statement, then signs in with the identity seeded by SHA-256 of the
// signature.
func (p *EthereumProvider) SignIn(ctx context.Context, deps *Deps, _ SignInContext) error {
	return localSignIn(ctx, deps, user.Ethereum, p.opts.MaxTimeToLive, func(ctx context.Context) (identity.Identity, map[string]any, error) {
		if deps.Signer == nil {
			return nil, nil, fmt.Errorf("%w: ethereum signer", ErrMissingDependency)
		}
		address, err := deps.Signer.RequestAddress(ctx)
		if err != nil {
			return nil, nil, interrupted(err)
		}

		data := p.typedData(address, deps.Env)
		if _, err := data.Hash(); err != nil {
			return nil, nil, err
		}
		sig, err := deps.Signer.SignTypedData(ctx, address, data)
		if err != nil {
			return nil, nil, interrupted(err)
		}
		if len(sig) == 0 {
			return nil, nil, fmt.Errorf("%w: empty signature", ErrSignIn)
		}

		root, err := identity.Ed25519FromSeed(sha256.Sum256(sig))
		if err != nil {
			return nil, nil, err
		}
		return root, map[string]any{"address": strings.ToLower(address)}, nil
	})
}

func (p *EthereumProvider) typedData(address string, env Environment) TypedData {
	statement := p.opts.Statement
	if statement == "" {
		statement = DefaultEthereumStatement
	}
	name := firstNonEmpty(p.opts.Domain, env.AppName, "satauth")
	chainID := p.opts.ChainID
	if chainID == 0 {
		chainID = 1
	}
	return TypedData{
		Domain:    TypedDataDomain{Name: name, Version: "1", ChainID: chainID},
		Statement: statement,
		Wallet:    address,
	}
}

// Ensure EthereumProvider implements Provider
var _ Provider = (*EthereumProvider)(nil)
