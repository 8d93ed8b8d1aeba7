package main

import (
	"context"
	"time"

	"github.com/stakesuite/nft-stakepool-server/constdef"
	"github.com/stakesuite/nft-stakepool-server/custodyclient"
	"github.com/stakesuite/nft-stakepool-server/service"
	"github.com/stakesuite/nft-stakepool-server/stakeserver"
	"github.com/stakesuite/nft-stakepool-server/utils"
	"github.com/stakesuite/nft-stakepool-server/walletclient"
)

type server struct {
	stakeRPCServer *stakeserver.StakeServer
	stakingService service.StakingService
}

func newServer(custodian custodyclient.Custodian, wallet walletclient.ValueTransferor) (*server, error) {
	var tierDurations [constdef.TierNum]int64
	if len(cfg.TierDurations) == constdef.TierNum {
		copy(tierDurations[:], cfg.TierDurations)
	}

	stakingService := service.NewStakingService(&service.StakingServiceConfig{
		Custodian:     custodian,
		Wallet:        wallet,
		Clock:         utils.RealClock{},
		TierDurations: tierDurations,
	})

	// Restore pools and stake records from a previous run before serving
	// any requests.
	err := stakingService.LoadFromDB(context.Background())
	if err != nil {
		return nil, err
	}

	stakeSvr, err := stakeserver.NewStakeServer(&stakeserver.ConfigStakeServer{
		DisableTLS:           cfg.DisableTLS,
		ListenersString:      cfg.Listeners,
		StartupTime:          time.Now().Unix(),
		RPCUser:              cfg.PoolUser,
		RPCPass:              cfg.PoolPass,
		RPCLimitUser:         cfg.PoolLimitUser,
		RPCLimitPass:         cfg.PoolLimitPass,
		RPCMaxClients:        cfg.RPCMaxClients,
		RPCMaxWebsockets:     cfg.RPCMaxWebsockets,
		RPCMaxConcurrentReqs: cfg.RPCMaxConcurrentReqs,
		RPCCert:              cfg.PoolCert,
		RPCKey:               cfg.PoolKey,
		ExternalIPs:          cfg.ExternalIPs,
	})
	if err != nil {
		return nil, err
	}
	stakeSvr.SetStakingService(stakingService)

	// Broadcast pool lifecycle events to connected websocket clients.
	stakingService.Subscribe(stakeSvr.HandleServiceNotification)

	ret := &server{
		stakeRPCServer: stakeSvr,
		stakingService: stakingService,
	}
	return ret, nil
}

func (s *server) Start() {
	if s.stakeRPCServer != nil {
		s.stakeRPCServer.Start()
	}
}

func (s *server) Stop() {
	if s.stakeRPCServer != nil {
		s.stakeRPCServer.Stop()
	}
}
