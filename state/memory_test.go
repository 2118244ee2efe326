package state

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/pinges/incubator-tuweni/evm"
	"github.com/pinges/incubator-tuweni/tracing"
)

var (
	addr1 = common.HexToAddress("0x1111111111111111111111111111111111111111")
	addr2 = common.HexToAddress("0x2222222222222222222222222222222222222222")
	key1  = common.HexToHash("0x01")
	val1  = common.HexToHash("0xaa")
)

func TestMemoryZeroValuesForAbsentAccount(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	exists, err := repo.AccountExists(ctx, addr1)
	require.NoError(t, err)
	require.False(t, exists)

	bal, err := repo.GetBalance(ctx, addr1)
	require.NoError(t, err)
	require.True(t, bal.IsZero())

	nonce, err := repo.GetNonce(ctx, addr1)
	require.NoError(t, err)
	require.Zero(t, nonce)

	code, err := repo.GetCode(ctx, addr1)
	require.NoError(t, err)
	require.Empty(t, code)

	hash, err := repo.GetCodeHash(ctx, addr1)
	require.NoError(t, err)
	require.Equal(t, common.Hash{}, hash)

	slot, err := repo.GetStorage(ctx, addr1, key1)
	require.NoError(t, err)
	require.Equal(t, common.Hash{}, slot)
}

func TestMemoryFixtureRoundTrip(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	repo.SetBalance(addr1, uint256.NewInt(42))
	repo.SetNonce(addr1, 7)
	repo.SetCode(addr1, []byte{0xc0})
	repo.SetStorage(addr1, key1, val1)
	repo.SetBlockHash(5, val1)

	bal, err := repo.GetBalance(ctx, addr1)
	require.NoError(t, err)
	require.Equal(t, uint64(42), bal.Uint64())

	nonce, err := repo.GetNonce(ctx, addr1)
	require.NoError(t, err)
	require.Equal(t, uint64(7), nonce)

	hash, err := repo.GetCodeHash(ctx, addr1)
	require.NoError(t, err)
	require.Equal(t, crypto.Keccak256Hash([]byte{0xc0}), hash)

	slot, err := repo.GetStorage(ctx, addr1, key1)
	require.NoError(t, err)
	require.Equal(t, val1, slot)

	bh, err := repo.GetBlockHash(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, val1, bh)
}

func TestMemoryCodelessAccountHash(t *testing.T) {
	repo := NewMemoryRepository()
	repo.SetNonce(addr1, 1)
	hash, err := repo.GetCodeHash(context.Background(), addr1)
	require.NoError(t, err)
	require.Equal(t, emptyCodeHash, hash)
}

func TestMemoryApplyChanges(t *testing.T) {
	repo := NewMemoryRepository()
	repo.SetBalance(addr2, uint256.NewInt(5))
	repo.SetStorage(addr2, key1, val1)
	ctx := context.Background()

	repo.ApplyChanges(&evm.ChangeSet{
		Balances: map[common.Address]evm.BalanceChange{
			addr1: {Balance: uint256.NewInt(100), Reason: tracing.BalanceChangeCallTransfer},
		},
		Nonces: map[common.Address]evm.NonceChange{
			addr1: {Nonce: 3, Reason: tracing.NonceChangeNewContract},
		},
		Code: map[common.Address][]byte{
			addr1: {0xde, 0xad},
		},
		Storage: map[common.Address]map[common.Hash]common.Hash{
			addr1: {key1: val1},
		},
		Destructs: []common.Address{addr2},
	})

	bal, err := repo.GetBalance(ctx, addr1)
	require.NoError(t, err)
	require.Equal(t, uint64(100), bal.Uint64())

	nonce, err := repo.GetNonce(ctx, addr1)
	require.NoError(t, err)
	require.Equal(t, uint64(3), nonce)

	code, err := repo.GetCode(ctx, addr1)
	require.NoError(t, err)
	require.Equal(t, []byte{0xde, 0xad}, code)

	// The destructed account vanished, storage included.
	exists, err := repo.AccountExists(ctx, addr2)
	require.NoError(t, err)
	require.False(t, exists)
	slot, err := repo.GetStorage(ctx, addr2, key1)
	require.NoError(t, err)
	require.Equal(t, common.Hash{}, slot)
}

func TestMemoryApplyChangesZeroValueClearsSlot(t *testing.T) {
	repo := NewMemoryRepository()
	repo.SetStorage(addr1, key1, val1)

	repo.ApplyChanges(&evm.ChangeSet{
		Storage: map[common.Address]map[common.Hash]common.Hash{
			addr1: {key1: {}},
		},
	})

	slot, err := repo.GetStorage(context.Background(), addr1, key1)
	require.NoError(t, err)
	require.Equal(t, common.Hash{}, slot)
	require.Empty(t, repo.storage[addr1])
}

func TestMemoryCopyIsIndependent(t *testing.T) {
	repo := NewMemoryRepository()
	repo.SetBalance(addr1, uint256.NewInt(1))
	repo.SetStorage(addr1, key1, val1)

	cp := repo.Copy()
	cp.SetBalance(addr1, uint256.NewInt(99))
	cp.SetStorage(addr1, key1, common.HexToHash("0xbb"))

	ctx := context.Background()
	bal, err := repo.GetBalance(ctx, addr1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), bal.Uint64())

	slot, err := repo.GetStorage(ctx, addr1, key1)
	require.NoError(t, err)
	require.Equal(t, val1, slot)
}
