package asset

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	errNilState = errors.New("asset registry: state not configured")

	// ErrTokenNotFound signals a lookup for a token that was never minted.
	ErrTokenNotFound = errors.New("asset registry: token not found")
	// ErrTokenExists rejects minting an identifier twice within a collection.
	ErrTokenExists = errors.New("asset registry: token already exists")
	// ErrNotOwner rejects transfers initiated from a non-owner.
	ErrNotOwner = errors.New("asset registry: from is not the owner")
	// ErrReceiverRejected signals a recipient hook that did not return the
	// expected acknowledgment value.
	ErrReceiverRejected = errors.New("asset registry: receiver rejected transfer")
)

// ReceivedAck is the acknowledgment value a Receiver must return to accept
// custody, mirroring the ERC-721 onERC721Received selector.
var ReceivedAck = [4]byte{0x15, 0x0b, 0x7a, 0x02}

// Receiver is implemented by components that take custody of assets and want
// to acknowledge safe transfers. The hook runs after ownership has been
// recorded, so implementations must not assume they can veto by mutating
// state.
type Receiver interface {
	OnAssetReceived(operator, from common.Address, tokenID uint64, data []byte) [4]byte
}

// assetState persists per-collection token ownership. A zero owner address
// means the token was never minted.
type assetState interface {
	AssetOwner(collection common.Address, tokenID uint64) (common.Address, error)
	SetAssetOwner(collection common.Address, tokenID uint64, owner common.Address) error
}

// Registry implements the non-fungible asset collaborator: ownership lookups
// and the safe-transfer convention with receipt acknowledgment.
type Registry struct {
	state     assetState
	receivers map[common.Address]Receiver
}

// NewRegistry constructs a registry over the given ownership state.
func NewRegistry(state assetState) *Registry {
	return &Registry{state: state, receivers: make(map[common.Address]Receiver)}
}

// RegisterReceiver associates a receipt hook with a custody address. Safe
// transfers into that address will invoke the hook and require the fixed
// acknowledgment value.
func (r *Registry) RegisterReceiver(addr common.Address, receiver Receiver) {
	if r == nil || receiver == nil {
		return
	}
	r.receivers[addr] = receiver
}

// Mint records first ownership of a token within a collection.
func (r *Registry) Mint(collection common.Address, tokenID uint64, owner common.Address) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	current, err := r.state.AssetOwner(collection, tokenID)
	if err != nil {
		return err
	}
	if current != (common.Address{}) {
		return fmt.Errorf("%w: %s/%d", ErrTokenExists, collection.Hex(), tokenID)
	}
	return r.state.SetAssetOwner(collection, tokenID, owner)
}

// OwnerOf returns the current owner of the token.
func (r *Registry) OwnerOf(collection common.Address, tokenID uint64) (common.Address, error) {
	if r == nil || r.state == nil {
		return common.Address{}, errNilState
	}
	owner, err := r.state.AssetOwner(collection, tokenID)
	if err != nil {
		return common.Address{}, err
	}
	if owner == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: %s/%d", ErrTokenNotFound, collection.Hex(), tokenID)
	}
	return owner, nil
}

// SafeTransferFrom moves the token to a new owner. Ownership is written
// before any receiver hook runs; when the recipient has a registered Receiver
// the hook must return the fixed acknowledgment or the transfer fails.
func (r *Registry) SafeTransferFrom(collection common.Address, from, to common.Address, tokenID uint64, data []byte) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	owner, err := r.OwnerOf(collection, tokenID)
	if err != nil {
		return err
	}
	if owner != from {
		return fmt.Errorf("%w: owner %s, from %s", ErrNotOwner, owner.Hex(), from.Hex())
	}
	if err := r.state.SetAssetOwner(collection, tokenID, to); err != nil {
		return err
	}
	if receiver, ok := r.receivers[to]; ok {
		if ack := receiver.OnAssetReceived(from, from, tokenID, data); ack != ReceivedAck {
			return ErrReceiverRejected
		}
	}
	return nil
}
