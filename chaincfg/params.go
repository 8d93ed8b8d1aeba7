package chaincfg

// Params is used to group parameters for the various environments the
// staking server can run against, such as the production network and test
// networks.
type Params struct {
	Name                 string
	DefaultPort          string
	CustodyRPCClientPort string
	WalletRPCClientPort  string
}

// MainNetParams contains parameters for the production environment.
var MainNetParams = Params{
	Name:                 "mainnet",
	DefaultPort:          "28777",
	CustodyRPCClientPort: "28667",
	WalletRPCClientPort:  "28665",
}

// TestNetParams contains parameters for the test environment.
var TestNetParams = Params{
	Name:                 "testnet",
	DefaultPort:          "38777",
	CustodyRPCClientPort: "38667",
	WalletRPCClientPort:  "38665",
}

// SimNetParams contains parameters specific to the simulation environment,
// where the custody and value transfer collaborators are run in-process as
// mocks.
var SimNetParams = Params{
	Name:        "simnet",
	DefaultPort: "18777",
}

var ActiveNetParams = &MainNetParams

var CustodyBackendVersion = "unknown"
var WalletBackendVersion = "unknown"

var StakePoolBackendVersion = "unknown"
