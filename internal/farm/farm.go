package farm

import (
	"sort"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	fpmath "VaultLedger/internal/math"
	"VaultLedger/internal/types"
)

// accPrecision scales accRewardPerShare.
var accPrecision = sdkmath.NewInt(1_000_000_000_000)

type stake struct {
	amount     sdkmath.Int
	rewardDebt sdkmath.Int
	owed       sdkmath.Int
}

type pool struct {
	lpToken           types.TokenID
	rewardPerBlock    sdkmath.Int
	accRewardPerShare sdkmath.Int
	totalStaked       sdkmath.Int
	stakers           map[types.Address]stake
}

// PoolInfo is the public view of one farm pool.
type PoolInfo struct {
	ID                uint64        `json:"id"`
	LPToken           types.TokenID `json:"lp_token"`
	RewardPerBlock    sdkmath.Int   `json:"reward_per_block"`
	AccRewardPerShare sdkmath.Int   `json:"acc_reward_per_share"`
	TotalStaked       sdkmath.Int   `json:"total_staked"`
}

// Farm is a block-emission staking contract: each pool emits
// rewardPerBlock of the reward token, shared by stake weight. Staked LP
// and unclaimed rewards are custodied at the farm's address.
type Farm struct {
	bank        types.Bank
	address     types.Address
	rewardToken types.TokenID
	block       uint64
	pools       []*pool
}

func New(bank types.Bank, address types.Address, rewardToken types.TokenID) *Farm {
	return &Farm{
		bank:        bank,
		address:     address,
		rewardToken: rewardToken,
	}
}

func (f *Farm) Address() types.Address { return f.address }
func (f *Farm) RewardToken() types.TokenID { return f.rewardToken }
func (f *Farm) Block() uint64 { return f.block }
func (f *Farm) PoolLength() uint64 { return uint64(len(f.pools)) }

// AddPool registers a pool for lpToken and returns its id.
func (f *Farm) AddPool(lpToken types.TokenID, rewardPerBlock sdkmath.Int) (uint64, error) {
	rewardPerBlock = types.OrZero(rewardPerBlock)
	if lpToken == "" || rewardPerBlock.IsNegative() {
		return 0, errorsmod.Wrapf(types.ErrInvalidArgument, "pool %q reward %s", lpToken, rewardPerBlock)
	}
	for id, p := range f.pools {
		if p.lpToken == lpToken {
			return 0, errorsmod.Wrapf(types.ErrInvalidArgument, "lp token %s already has pool %d", lpToken, id)
		}
	}
	f.pools = append(f.pools, &pool{
		lpToken:           lpToken,
		rewardPerBlock:    rewardPerBlock,
		accRewardPerShare: sdkmath.ZeroInt(),
		totalStaked:       sdkmath.ZeroInt(),
		stakers:           make(map[types.Address]stake),
	})
	return uint64(len(f.pools) - 1), nil
}

func (f *Farm) pool(id uint64) (*pool, error) {
	if id >= uint64(len(f.pools)) {
		return nil, errorsmod.Wrapf(types.ErrPoolNotFound, "farm pool %d", id)
	}
	return f.pools[id], nil
}

// Advance moves the farm forward by blocks, minting emissions into every
// pool that has stake. Pools with no stake emit nothing.
func (f *Farm) Advance(blocks uint64) (sdkmath.Int, error) {
	total := sdkmath.ZeroInt()
	if blocks == 0 {
		return total, nil
	}
	n := sdkmath.NewIntFromUint64(blocks)
	for _, p := range f.pools {
		if !p.totalStaked.IsPositive() || !p.rewardPerBlock.IsPositive() {
			continue
		}
		reward := p.rewardPerBlock.Mul(n)
		if err := f.bank.Mint(f.address, f.rewardToken, reward); err != nil {
			return sdkmath.Int{}, err
		}
		p.accRewardPerShare = p.accRewardPerShare.Add(fpmath.MulDiv(reward, accPrecision, p.totalStaked))
		total = total.Add(reward)
	}
	f.block += blocks
	return total, nil
}

func (p *pool) accrued(s stake) sdkmath.Int {
	return fpmath.MulDiv(s.amount, p.accRewardPerShare, accPrecision)
}

func (p *pool) staker(who types.Address) stake {
	s, ok := p.stakers[who]
	if !ok {
		return stake{amount: sdkmath.ZeroInt(), rewardDebt: sdkmath.ZeroInt(), owed: sdkmath.ZeroInt()}
	}
	return s
}

// settle folds accrued reward into owed and resets the debt for amount.
func (p *pool) settle(s stake, amount sdkmath.Int) stake {
	s.owed = s.owed.Add(p.accrued(s).Sub(s.rewardDebt))
	s.amount = amount
	s.rewardDebt = fpmath.MulDiv(amount, p.accRewardPerShare, accPrecision)
	return s
}

// PendingReward is what ClaimReward would pay who right now.
func (f *Farm) PendingReward(poolID uint64, who types.Address) (sdkmath.Int, error) {
	p, err := f.pool(poolID)
	if err != nil {
		return sdkmath.Int{}, err
	}
	s := p.staker(who)
	return s.owed.Add(p.accrued(s).Sub(s.rewardDebt)), nil
}

// StakedBalance is who's stake in a pool.
func (f *Farm) StakedBalance(poolID uint64, who types.Address) (sdkmath.Int, error) {
	p, err := f.pool(poolID)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return p.staker(who).amount, nil
}

// Stake moves amount of the pool's LP token from caller into the farm.
func (f *Farm) Stake(caller types.Address, poolID uint64, amount sdkmath.Int) error {
	p, err := f.pool(poolID)
	if err != nil {
		return err
	}
	amount = types.OrZero(amount)
	if !amount.IsPositive() {
		return errorsmod.Wrap(types.ErrInvalidArgument, "stake amount must be positive")
	}
	if err := f.bank.Transfer(caller, f.address, p.lpToken, amount); err != nil {
		return err
	}
	s := p.staker(caller)
	p.stakers[caller] = p.settle(s, s.amount.Add(amount))
	p.totalStaked = p.totalStaked.Add(amount)
	return nil
}

// Unstake returns amount of staked LP to caller. Accrued reward stays
// claimable.
func (f *Farm) Unstake(caller types.Address, poolID uint64, amount sdkmath.Int) (sdkmath.Int, error) {
	p, err := f.pool(poolID)
	if err != nil {
		return sdkmath.Int{}, err
	}
	amount = types.OrZero(amount)
	s := p.staker(caller)
	if !amount.IsPositive() || amount.GT(s.amount) {
		return sdkmath.Int{}, errorsmod.Wrapf(types.ErrInsufficientFunds,
			"unstake %s of %s staked", amount, s.amount)
	}
	if err := f.bank.Transfer(f.address, caller, p.lpToken, amount); err != nil {
		return sdkmath.Int{}, err
	}
	p.stakers[caller] = p.settle(s, s.amount.Sub(amount))
	p.totalStaked = p.totalStaked.Sub(amount)
	return amount, nil
}

// ClaimReward pays caller everything it has accrued in a pool.
func (f *Farm) ClaimReward(caller types.Address, poolID uint64) (sdkmath.Int, error) {
	p, err := f.pool(poolID)
	if err != nil {
		return sdkmath.Int{}, err
	}
	s := p.settle(p.staker(caller), p.staker(caller).amount)
	// Per-settle flooring can leave the farm a unit short; pay what it holds.
	reward := fpmath.MinInt(s.owed, f.bank.BalanceOf(f.address, f.rewardToken))
	s.owed = sdkmath.ZeroInt()
	if err := f.bank.Transfer(f.address, caller, f.rewardToken, reward); err != nil {
		return sdkmath.Int{}, err
	}
	p.stakers[caller] = s
	return reward, nil
}

// Pools lists every pool in id order.
func (f *Farm) Pools() []PoolInfo {
	out := make([]PoolInfo, 0, len(f.pools))
	for id, p := range f.pools {
		out = append(out, PoolInfo{
			ID:                uint64(id),
			LPToken:           p.lpToken,
			RewardPerBlock:    p.rewardPerBlock,
			AccRewardPerShare: p.accRewardPerShare,
			TotalStaked:       p.totalStaked,
		})
	}
	return out
}

// Stakers lists the addresses with a stake record in a pool, sorted.
func (f *Farm) Stakers(poolID uint64) []types.Address {
	p, err := f.pool(poolID)
	if err != nil {
		return nil
	}
	out := make([]types.Address, 0, len(p.stakers))
	for a := range p.stakers {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Checkpoint captures every pool. The returned function restores them.
func (f *Farm) Checkpoint() (restore func()) {
	block := f.block
	saved := make([]pool, len(f.pools))
	for i, p := range f.pools {
		saved[i] = *p
		saved[i].stakers = make(map[types.Address]stake, len(p.stakers))
		for a, s := range p.stakers {
			saved[i].stakers[a] = s
		}
	}
	return func() {
		f.block = block
		f.pools = make([]*pool, len(saved))
		for i := range saved {
			p := saved[i]
			f.pools[i] = &p
		}
	}
}
