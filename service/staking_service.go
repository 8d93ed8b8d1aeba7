package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/stakesuite/nft-stakepool-server/constdef"
	"github.com/stakesuite/nft-stakepool-server/custodyclient"
	"github.com/stakesuite/nft-stakepool-server/dal"
	"github.com/stakesuite/nft-stakepool-server/model"
	"github.com/stakesuite/nft-stakepool-server/poolmgr"
	"github.com/stakesuite/nft-stakepool-server/rewardmgr"
	"github.com/stakesuite/nft-stakepool-server/stakejson"
	"github.com/stakesuite/nft-stakepool-server/stakemgr"
	"github.com/stakesuite/nft-stakepool-server/utils"
	"github.com/stakesuite/nft-stakepool-server/walletclient"
)

// NotificationType represents the type of a notification message.
type NotificationType int

// NotificationCallback is used for a caller to provide a callback for
// notifications about various events.
type NotificationCallback func(*Notification)

const (
	NTPoolsConfigured NotificationType = iota
	NTPoolLiquidated
)

// notificationTypeStrings is a map of notification types back to their
// constant names for pretty printing.
var notificationTypeStrings = map[NotificationType]string{
	NTPoolsConfigured: "NTPoolsConfigured",
	NTPoolLiquidated:  "NTPoolLiquidated",
}

// String returns the NotificationType in human-readable form.
func (n NotificationType) String() string {
	if s, ok := notificationTypeStrings[n]; ok {
		return s
	}
	return fmt.Sprintf("Unknown Notification Type (%d)", int(n))
}

// Notification defines a notification that is sent to subscribers via the
// callback registered with Subscribe.
type Notification struct {
	Type NotificationType
	Data interface{}
}

// PoolsConfiguredData accompanies NTPoolsConfigured.
type PoolsConfiguredData struct {
	AssetRefs []string
	PoolIDs   []uint64
}

// PoolLiquidatedData accompanies NTPoolLiquidated.
type PoolLiquidatedData struct {
	AssetRef string
	Flag     bool
}

// StakingService is the single entry point of the staking engine.  Every
// externally visible operation goes through it; it owns the ordering of
// collaborator calls against in-memory commits.
type StakingService interface {
	BatchUpdateAsset(ctx context.Context, assetRefs []string, rewardRates []int64, thirtyBonuses []int64, sixtyBonuses []int64, yearlyBonuses []int64) ([]uint64, error)
	LiquidateAsset(ctx context.Context, assetRef string, flag bool) error
	Stake(ctx context.Context, assetRef string, userRef string, itemIDs []uint64) error
	Unstake(ctx context.Context, assetRef string, userRef string, itemID uint64) error
	WithdrawReward(ctx context.Context, assetRef string, userRef string, amount int64) (settled int64, remainder int64, err error)
	CalculateReward(ctx context.Context, assetRef string, userRef string) (reward int64, at int64, err error)
	GetAssetData(ctx context.Context, assetRef string) (*model.Pool, error)
	GetUserInfo(ctx context.Context, assetRef string, userRef string) (*model.UserStakeInfo, error)
	Status(ctx context.Context) (*model.EngineStatus, error)
	Subscribe(callback NotificationCallback)
}

// StakingServiceImpl wires the registry, ledger and reward engine to the
// custody and value transfer collaborators.  A single operation mutex
// serializes mutating operations so a collaborator round trip can never
// interleave with another commit.
type StakingServiceImpl struct {
	registry  *poolmgr.PoolManager
	ledger    *stakemgr.StakeManager
	rewards   *rewardmgr.RewardManager
	custodian custodyclient.Custodian
	wallet    walletclient.ValueTransferor
	records   RecordService
	clock     utils.Clock

	tierDurations [constdef.TierNum]int64

	opMtx sync.Mutex

	notificationsLock sync.RWMutex
	notifications     []NotificationCallback
}

var _ StakingService = (*StakingServiceImpl)(nil)

// StakingServiceConfig carries the collaborators of a staking service.
type StakingServiceConfig struct {
	Custodian custodyclient.Custodian
	Wallet    walletclient.ValueTransferor
	Clock     utils.Clock

	// TierDurations overrides the default tier thresholds, mainly for
	// tests.  Zero value means the defaults.
	TierDurations [constdef.TierNum]int64
}

func NewStakingService(cfg *StakingServiceConfig) *StakingServiceImpl {
	registry := poolmgr.NewPoolManager()
	ledger := stakemgr.NewStakeManager(registry)

	s := &StakingServiceImpl{
		registry:  registry,
		ledger:    ledger,
		rewards:   rewardmgr.NewRewardManager(registry, ledger),
		custodian: cfg.Custodian,
		wallet:    cfg.Wallet,
		records:   GetRecordServiceImpl(),
		clock:     cfg.Clock,
	}
	if s.clock == nil {
		s.clock = utils.RealClock{}
	}
	s.tierDurations = cfg.TierDurations
	if s.tierDurations == ([constdef.TierNum]int64{}) {
		s.tierDurations = model.DefaultTierDurations()
	}
	return s
}

// LoadFromDB warm starts the in-memory state from the database.  Must be
// called before the server begins serving requests.
func (s *StakingServiceImpl) LoadFromDB(ctx context.Context) error {
	db := dal.GetDB(ctx)
	if db == nil {
		return nil
	}

	pools, err := s.records.LoadPools(ctx, db)
	if err != nil {
		return err
	}
	s.registry.Load(pools)

	stakeRecords, err := s.records.LoadRecords(ctx, db)
	if err != nil {
		return err
	}
	s.ledger.Load(stakeRecords)

	log.Infof("Warm start: restored %v pool(s) and %v stake record(s)", len(pools), len(stakeRecords))
	return nil
}

// BatchUpdateAsset configures the pools of every referenced asset in one
// atomic batch.  The four parallel rate arrays must match the asset array
// in length.  Returns the pool ids in submission order.
func (s *StakingServiceImpl) BatchUpdateAsset(ctx context.Context, assetRefs []string, rewardRates []int64, thirtyBonuses []int64, sixtyBonuses []int64, yearlyBonuses []int64) ([]uint64, error) {
	n := len(assetRefs)
	if len(rewardRates) != n || len(thirtyBonuses) != n || len(sixtyBonuses) != n || len(yearlyBonuses) != n {
		return nil, stakejson.ErrLengthMismatch
	}

	configs := make([]*model.PoolConfig, 0, n)
	for i, assetRef := range assetRefs {
		if !utils.CheckAssetRefValidity(assetRef) {
			return nil, stakejson.ErrInvalidConfig
		}
		configs = append(configs, &model.PoolConfig{
			AssetRef:      assetRef,
			RewardRate:    rewardRates[i],
			TierDurations: s.tierDurations,
			TierBonuses:   [constdef.TierNum]int64{thirtyBonuses[i], sixtyBonuses[i], yearlyBonuses[i]},
		})
	}

	s.opMtx.Lock()
	defer s.opMtx.Unlock()

	ids, err := s.registry.ConfigurePools(ctx, configs, s.custodian)
	if err != nil {
		return nil, err
	}

	if db := dal.GetDB(ctx); db != nil {
		for _, assetRef := range assetRefs {
			pool, err := s.registry.GetPool(assetRef)
			if err != nil {
				continue
			}
			if err := s.records.SavePool(ctx, db, pool); err != nil {
				log.Errorf("Unable to persist pool config for asset %v: %v", assetRef, err)
			}
		}
	}

	s.sendNotification(NTPoolsConfigured, &PoolsConfiguredData{
		AssetRefs: assetRefs,
		PoolIDs:   ids,
	})
	return ids, nil
}

// LiquidateAsset toggles the liquidation flag of one pool.  The toggle is
// idempotent and never touches staked items or pending balances.
func (s *StakingServiceImpl) LiquidateAsset(ctx context.Context, assetRef string, flag bool) error {
	s.opMtx.Lock()
	defer s.opMtx.Unlock()

	if err := s.registry.SetLiquidated(assetRef, flag); err != nil {
		return err
	}
	if db := dal.GetDB(ctx); db != nil {
		if err := s.records.SetPoolLiquidated(ctx, db, assetRef, flag); err != nil {
			log.Errorf("Unable to persist liquidated flag of asset %v: %v", assetRef, err)
		}
	}
	s.sendNotification(NTPoolLiquidated, &PoolLiquidatedData{
		AssetRef: assetRef,
		Flag:     flag,
	})
	return nil
}

// Stake deposits a batch of the holder's items into the pool of assetRef.
// The whole batch is validated before custody is touched; if any custody
// transfer fails, the transfers already made are reversed and no item is
// recorded, so the ledger and custody never disagree.
func (s *StakingServiceImpl) Stake(ctx context.Context, assetRef string, userRef string, itemIDs []uint64) error {
	if !utils.CheckUserRefValidity(userRef) || !utils.CheckAssetRefValidity(assetRef) {
		return stakejson.ErrInvalidRequestParams
	}

	s.opMtx.Lock()
	defer s.opMtx.Unlock()

	if err := s.ledger.CheckDeposit(assetRef, userRef, itemIDs); err != nil {
		return err
	}

	transferred := make([]uint64, 0, len(itemIDs))
	for _, itemID := range itemIDs {
		if err := s.custodian.TransferIn(ctx, assetRef, userRef, itemID); err != nil {
			log.Errorf("Custody transfer of item %v (asset %v) failed, reversing %v prior transfer(s): %v",
				itemID, assetRef, len(transferred), err)
			for _, doneID := range transferred {
				if rbErr := s.custodian.TransferOut(ctx, assetRef, userRef, doneID); rbErr != nil {
					log.Errorf("Unable to reverse custody transfer of item %v (asset %v): %v", doneID, assetRef, rbErr)
				}
			}
			return err
		}
		transferred = append(transferred, itemID)
	}

	now := s.clock.NowUnix()
	if err := s.ledger.RecordDeposit(assetRef, userRef, itemIDs, now); err != nil {
		// Validation passed under the same operation lock, so this is
		// unreachable in practice; reverse custody anyway.
		for _, doneID := range transferred {
			if rbErr := s.custodian.TransferOut(ctx, assetRef, userRef, doneID); rbErr != nil {
				log.Errorf("Unable to reverse custody transfer of item %v (asset %v): %v", doneID, assetRef, rbErr)
			}
		}
		return err
	}

	if db := dal.GetDB(ctx); db != nil {
		items := make([]*model.StakedItem, 0, len(itemIDs))
		for _, itemID := range itemIDs {
			items = append(items, &model.StakedItem{ItemID: itemID, StakeTime: now, Checkpoint: now})
		}
		if err := s.records.SaveDeposit(ctx, db, assetRef, userRef, items); err != nil {
			log.Errorf("Unable to persist deposit of %v item(s) for user %v: %v", len(itemIDs), userRef, err)
		}
	}

	log.Infof("User %v staked %v item(s) into pool %v", userRef, len(itemIDs), assetRef)
	return nil
}

// Unstake releases one of the holder's items back from custody.  Accrued
// reward up to the moment of withdrawal is settled into the pending balance
// before the item leaves the record, so no accrual is lost.
func (s *StakingServiceImpl) Unstake(ctx context.Context, assetRef string, userRef string, itemID uint64) error {
	if !utils.CheckUserRefValidity(userRef) || !utils.CheckAssetRefValidity(assetRef) {
		return stakejson.ErrInvalidRequestParams
	}

	s.opMtx.Lock()
	defer s.opMtx.Unlock()

	if err := s.ledger.CheckWithdrawal(assetRef, userRef, itemID); err != nil {
		return err
	}

	if err := s.custodian.TransferOut(ctx, assetRef, userRef, itemID); err != nil {
		log.Errorf("Custody release of item %v (asset %v) failed: %v", itemID, assetRef, err)
		return err
	}

	now := s.clock.NowUnix()
	settled, err := s.rewards.Settle(assetRef, userRef, now)
	if err != nil {
		return err
	}
	if err := s.ledger.RecordWithdrawal(assetRef, userRef, itemID); err != nil {
		return err
	}

	if db := dal.GetDB(ctx); db != nil {
		if err := s.records.SaveWithdrawal(ctx, db, assetRef, userRef, itemID); err != nil {
			log.Errorf("Unable to persist withdrawal of item %v for user %v: %v", itemID, userRef, err)
		}
		if record, ok := s.ledger.Record(assetRef, userRef); ok {
			if err := s.records.SaveSettlement(ctx, db, record, now, settled, 0); err != nil {
				log.Errorf("Unable to persist settlement for user %v in pool %v: %v", userRef, assetRef, err)
			}
		}
	}

	log.Infof("User %v unstaked item %v from pool %v (settled %v)", userRef, itemID, assetRef, settled)
	return nil
}

// WithdrawReward pays out amount reward units to the holder through the
// value transfer collaborator.  The full claimable reward is settled; the
// requested amount is debited and any excess stays pending.  Nothing is
// settled or debited if the claimable total is insufficient or the credit
// fails.
func (s *StakingServiceImpl) WithdrawReward(ctx context.Context, assetRef string, userRef string, amount int64) (int64, int64, error) {
	if amount <= 0 || !utils.CheckUserRefValidity(userRef) || !utils.CheckAssetRefValidity(assetRef) {
		return 0, 0, stakejson.ErrInvalidRequestParams
	}

	s.opMtx.Lock()
	defer s.opMtx.Unlock()

	now := s.clock.NowUnix()
	total, err := s.rewards.CalculateReward(assetRef, userRef, now)
	if err != nil {
		return 0, 0, err
	}
	if total < amount {
		return 0, 0, stakejson.ErrInsufficientReward
	}

	if err := s.wallet.Credit(ctx, userRef, amount); err != nil {
		log.Errorf("Wallet credit of %v to user %v failed: %v", amount, userRef, err)
		return 0, 0, err
	}

	settled, err := s.rewards.Settle(assetRef, userRef, now)
	if err != nil {
		// The credit already happened; the pending balance must still be
		// debited below, so this failure mode would leak reward.  It is
		// unreachable because CalculateReward succeeded under the same
		// lock.
		return 0, 0, err
	}
	if err := s.ledger.DebitPending(assetRef, userRef, amount); err != nil {
		return 0, 0, err
	}
	remainder := total - amount

	if db := dal.GetDB(ctx); db != nil {
		if record, ok := s.ledger.Record(assetRef, userRef); ok {
			if err := s.records.SaveSettlement(ctx, db, record, now, settled, amount); err != nil {
				log.Errorf("Unable to persist settlement for user %v in pool %v: %v", userRef, assetRef, err)
			}
		}
	}

	log.Infof("User %v withdrew %v reward unit(s) from pool %v (settled %v, remainder %v)",
		userRef, amount, assetRef, settled, remainder)
	return settled, remainder, nil
}

// CalculateReward returns the holder's total claimable reward at the
// current server time without settling anything.
func (s *StakingServiceImpl) CalculateReward(ctx context.Context, assetRef string, userRef string) (int64, int64, error) {
	at := s.clock.NowUnix()
	reward, err := s.rewards.CalculateReward(assetRef, userRef, at)
	if err != nil {
		return 0, 0, err
	}
	return reward, at, nil
}

// GetAssetData returns a copy of the pool configured for assetRef.
func (s *StakingServiceImpl) GetAssetData(ctx context.Context, assetRef string) (*model.Pool, error) {
	return s.registry.GetPool(assetRef)
}

// GetUserInfo returns the holder's stake summary for one pool.  Unknown
// pairs yield an empty summary rather than an error.
func (s *StakingServiceImpl) GetUserInfo(ctx context.Context, assetRef string, userRef string) (*model.UserStakeInfo, error) {
	return s.ledger.GetUserInfo(assetRef, userRef), nil
}

// Status summarizes the engine for operators.
func (s *StakingServiceImpl) Status(ctx context.Context) (*model.EngineStatus, error) {
	return &model.EngineStatus{
		PoolNum:         s.registry.PoolNum(),
		LiquidatedNum:   s.registry.LiquidatedNum(),
		StakedItemNum:   s.ledger.StakedItemNum(),
		ActiveRecordNum: s.ledger.ActiveRecordNum(),
		ServerTime:      s.clock.NowUnix(),
	}, nil
}

// Subscribe registers a callback to be executed when various events take
// place.
func (s *StakingServiceImpl) Subscribe(callback NotificationCallback) {
	s.notificationsLock.Lock()
	s.notifications = append(s.notifications, callback)
	s.notificationsLock.Unlock()
}

// sendNotification sends a notification with the passed type and data to
// every subscriber.
func (s *StakingServiceImpl) sendNotification(typ NotificationType, data interface{}) {
	n := Notification{Type: typ, Data: data}
	s.notificationsLock.RLock()
	for _, callback := range s.notifications {
		callback(&n)
	}
	s.notificationsLock.RUnlock()
}
