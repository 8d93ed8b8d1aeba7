package main

import (
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/stakesuite/nft-stakepool-server/custodyclient"
	"github.com/stakesuite/nft-stakepool-server/dal"
	"github.com/stakesuite/nft-stakepool-server/walletclient"
)

var (
	cfg *config
)

func startProfileServer() {
	listenAddr := net.JoinHostPort("localhost", cfg.ProfilePort)
	srvrLog.Infof("Profile server listening on %s", listenAddr)
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	srvrLog.Errorf("%v", http.ListenAndServe(listenAddr, mux))
}

func stakePoolMain() error {
	// Load configuration and parse command line. This function also
	// initializes logging and configures it accordingly.
	tcfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	cfg = tcfg

	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	defer srvrLog.Info("Shutdown complete")

	// Enable http profiling server if requested.
	if cfg.ProfilePort != "" {
		go func() {
			startProfileServer()
		}()
	}

	// initiate database
	if !cfg.DisableDB {
		err = dal.InitDB(&dal.DBConfig{
			Username:     cfg.DbUsername,
			Password:     cfg.DbPassword,
			Address:      cfg.DbAddress,
			DatabaseName: cfg.DbName,
		}, !cfg.DisableAutoCreateDB)
		if err != nil {
			return err
		}
	}

	// Create the clients for the item custody and value transfer backends.
	// On simnet both collaborators are run in-process.
	var custodian custodyclient.Custodian
	var wallet walletclient.ValueTransferor
	if cfg.SimNet {
		srvrLog.Infof("Using in-process custody and wallet backends (simnet)")
		custodian = custodyclient.NewMockCustodian()
		wallet = walletclient.NewMockTransferor()
	} else {
		srvrLog.Infof("Item custody RPC server: %v", cfg.CustodyRPCConnect)
		custodian = custodyclient.NewRPCClient(&custodyclient.ConnConfig{
			Host: cfg.CustodyRPCConnect,
			User: cfg.CustodyRPCUser,
			Pass: cfg.CustodyRPCPass,
		})
		srvrLog.Infof("Value transfer RPC server: %v", cfg.WalletRPCConnect)
		wallet = walletclient.NewRPCClient(&walletclient.ConnConfig{
			Host: cfg.WalletRPCConnect,
			User: cfg.WalletRPCUser,
			Pass: cfg.WalletRPCPass,
		})
	}

	// create and start server, including the staking service and its RPC
	// front end
	svr, err := newServer(custodian, wallet)
	if err != nil {
		return err
	}

	svr.Start()

	addInterruptHandler(func() {
		svr.Stop()
	})

	// Shutdown requests from the RPC server are handled the same way as an
	// OS interrupt.
	go func() {
		<-svr.stakeRPCServer.RequestedProcessShutdown()
		simulateInterrupt()
	}()

	// Wait until the interrupt signal is received from an OS signal or
	// shutdown is requested through one of the subsystems such as the RPC
	// server.
	<-interruptHandlersDone
	return nil
}

func main() {
	// Use all processor cores.
	runtime.GOMAXPROCS(runtime.NumCPU())

	// Request processing can cause bursty allocations.  This limits the
	// garbage collector from excessively overallocating during bursts.
	debug.SetGCPercent(10)

	if err := stakePoolMain(); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
}
