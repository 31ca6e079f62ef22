// Package reputation keeps the membership set and the non-transferable
// reputation balance of every principal.
package reputation

import (
	"fmt"
	"math"
	"sort"

	"github.com/calehh/mvpr-app/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleMinter Role = "minter"
	RoleBurner Role = "burner"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleMinter, RoleBurner:
		return Role(s), nil
	}
	return "", fmt.Errorf("%w: unknown role %q", types.ErrInvalidArgument, s)
}

type Account struct {
	Address common.Address `json:"address"`
	Member  bool           `json:"member"`
	Balance uint64         `json:"balance"`
}

type Ledger struct {
	logger cmtlog.Logger

	owner   common.Address
	minters map[common.Address]bool
	burners map[common.Address]bool
	acnts   map[common.Address]*Account
	supply  uint64
}

func New(owner, minter, burner common.Address) *Ledger {
	return &Ledger{
		logger:  cmtlog.NewNopLogger(),
		owner:   owner,
		minters: map[common.Address]bool{minter: true},
		burners: map[common.Address]bool{burner: true},
		acnts:   make(map[common.Address]*Account),
	}
}

func (l *Ledger) SetLogger(logger cmtlog.Logger) {
	l.logger = logger.With("module", "reputation")
}

func (l *Ledger) Owner() common.Address {
	return l.owner
}

func (l *Ledger) IsMember(addr common.Address) bool {
	a, ok := l.acnts[addr]
	return ok && a.Member
}

func (l *Ledger) BalanceOf(addr common.Address) uint64 {
	if a, ok := l.acnts[addr]; ok {
		return a.Balance
	}
	return 0
}

func (l *Ledger) TotalSupply() uint64 {
	return l.supply
}

func (l *Ledger) HasRole(role Role, addr common.Address) bool {
	switch role {
	case RoleOwner:
		return addr == l.owner
	case RoleMinter:
		return addr == l.owner || l.minters[addr]
	case RoleBurner:
		return addr == l.owner || l.burners[addr]
	}
	return false
}

func (l *Ledger) Account(addr common.Address) (Account, bool) {
	a, ok := l.acnts[addr]
	if !ok {
		return Account{Address: addr}, false
	}
	return *a, true
}

func (l *Ledger) account(addr common.Address) *Account {
	a, ok := l.acnts[addr]
	if !ok {
		a = &Account{Address: addr}
		l.acnts[addr] = a
	}
	return a
}

// AddMember is idempotent.
func (l *Ledger) AddMember(caller, addr common.Address) error {
	if !l.HasRole(RoleOwner, caller) {
		return fmt.Errorf("%w: %v may not add members", types.ErrUnauthorized, caller.Hex())
	}
	l.account(addr).Member = true
	l.logger.Debug("member added", "address", addr.Hex())
	return nil
}

func (l *Ledger) RemoveMember(caller, addr common.Address) error {
	if !l.HasRole(RoleOwner, caller) {
		return fmt.Errorf("%w: %v may not remove members", types.ErrUnauthorized, caller.Hex())
	}
	if a, ok := l.acnts[addr]; ok {
		a.Member = false
	}
	l.logger.Debug("member removed", "address", addr.Hex())
	return nil
}

func (l *Ledger) Mint(caller, addr common.Address, amount uint64) error {
	if !l.HasRole(RoleMinter, caller) {
		return fmt.Errorf("%w: %v may not mint", types.ErrUnauthorized, caller.Hex())
	}
	if amount == 0 {
		return fmt.Errorf("%w: zero mint amount", types.ErrInvalidArgument)
	}
	if l.BalanceOf(addr) > math.MaxUint64-amount || l.supply > math.MaxUint64-amount {
		return fmt.Errorf("%w: mint overflows balance", types.ErrInvalidArgument)
	}
	a := l.account(addr)
	a.Balance += amount
	l.supply += amount
	l.logger.Debug("reputation minted", "address", addr.Hex(), "amount", amount, "balance", a.Balance)
	return nil
}

// Burn fails rather than clamping when amount exceeds the balance.
func (l *Ledger) Burn(caller, addr common.Address, amount uint64) error {
	if !l.HasRole(RoleBurner, caller) {
		return fmt.Errorf("%w: %v may not burn", types.ErrUnauthorized, caller.Hex())
	}
	if amount == 0 {
		return fmt.Errorf("%w: zero burn amount", types.ErrInvalidArgument)
	}
	bal := l.BalanceOf(addr)
	if amount > bal {
		return fmt.Errorf("%w: burn %d exceeds balance %d", types.ErrInsufficientBalance, amount, bal)
	}
	a := l.account(addr)
	a.Balance -= amount
	l.supply -= amount
	l.logger.Debug("reputation burned", "address", addr.Hex(), "amount", amount, "balance", a.Balance)
	return nil
}

func (l *Ledger) Grant(caller common.Address, role Role, addr common.Address) error {
	set, err := l.roleSet(caller, role)
	if err != nil {
		return err
	}
	set[addr] = true
	l.logger.Info("authority granted", "role", role, "address", addr.Hex())
	return nil
}

func (l *Ledger) Revoke(caller common.Address, role Role, addr common.Address) error {
	set, err := l.roleSet(caller, role)
	if err != nil {
		return err
	}
	delete(set, addr)
	l.logger.Info("authority revoked", "role", role, "address", addr.Hex())
	return nil
}

func (l *Ledger) roleSet(caller common.Address, role Role) (map[common.Address]bool, error) {
	if !l.HasRole(RoleOwner, caller) {
		return nil, fmt.Errorf("%w: only the owner manages authorities", types.ErrUnauthorized)
	}
	switch role {
	case RoleMinter:
		return l.minters, nil
	case RoleBurner:
		return l.burners, nil
	}
	return nil, fmt.Errorf("%w: unknown role %q", types.ErrInvalidArgument, role)
}

// Snapshot is the persisted form of the ledger. Slices are sorted by address.
type Snapshot struct {
	Owner    common.Address   `json:"owner"`
	Minters  []common.Address `json:"minters"`
	Burners  []common.Address `json:"burners"`
	Accounts []Account        `json:"accounts"`
}

func (l *Ledger) Snapshot() Snapshot {
	snap := Snapshot{
		Owner:    l.owner,
		Minters:  sortedAddrs(l.minters),
		Burners:  sortedAddrs(l.burners),
		Accounts: make([]Account, 0, len(l.acnts)),
	}
	for _, a := range l.acnts {
		snap.Accounts = append(snap.Accounts, *a)
	}
	sort.Slice(snap.Accounts, func(i, j int) bool {
		return snap.Accounts[i].Address.Cmp(snap.Accounts[j].Address) < 0
	})
	return snap
}

func Restore(snap Snapshot) *Ledger {
	l := &Ledger{
		logger:  cmtlog.NewNopLogger(),
		owner:   snap.Owner,
		minters: make(map[common.Address]bool, len(snap.Minters)),
		burners: make(map[common.Address]bool, len(snap.Burners)),
		acnts:   make(map[common.Address]*Account, len(snap.Accounts)),
	}
	for _, m := range snap.Minters {
		l.minters[m] = true
	}
	for _, b := range snap.Burners {
		l.burners[b] = true
	}
	for i := range snap.Accounts {
		a := snap.Accounts[i]
		l.acnts[a.Address] = &a
		l.supply += a.Balance
	}
	return l
}

func sortedAddrs(set map[common.Address]bool) []common.Address {
	res := make([]common.Address, 0, len(set))
	for a := range set {
		res = append(res, a)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Cmp(res[j]) < 0
	})
	return res
}
