package main

import (
	"errors"
	"fmt"
	"io/ioutil"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/stakesuite/nft-stakepool-server/chaincfg"
	"github.com/stakesuite/nft-stakepool-server/constdef"
	"github.com/stakesuite/nft-stakepool-server/utils"

	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename       = "stakepool-server.conf"
	defaultLogDirname           = "logs"
	defaultLogFilename          = "nft-stakepool-server.log"
	defaultDbType               = "mysql"
	defaultLogLevel             = "info"
	defaultPoolLimitUser        = "holder"
	defaultPoolLimitPass        = "holder"
	defaultMaxRPCClients        = 10000
	defaultMaxRPCWebsockets     = 10000
	defaultMaxRPCConcurrentReqs = 200
	defaultDbAddress            = "127.0.0.1:3306"
	defaultDatabaseName         = "nft_stake_pool"
)

var (
	defaultHomeDir    = utils.AppDataDir("nft-stakepool-server", false)
	localConfigFile   = defaultConfigFilename
	knownDbTypes      = []string{"mysql"}
	localPoolKeyFile  = "stakepool.key"
	localPoolCertFile = "stakepool.cert"
	defaultLogDir     = filepath.Join(defaultHomeDir, defaultLogDirname)
	netParams         = &chaincfg.MainNetParams
)

// config defines the configuration options for the staking server.
//
// See loadConfig for details on the configuration load process.
type config struct {
	AppDataDir           *utils.ExplicitString `short:"A" long:"appdata" description:"Application data directory for staking server config and logs"`
	ConfigFile           string                `short:"C" long:"configfile" description:"Path to configuration file"`
	DbType               string                `long:"dbtype" description:"Database backend to use for the data"`
	DbUsername           string                `long:"dbusername" description:"username which is used to connect with database"`
	DbPassword           string                `long:"dbpassword" description:"password which is used to connect with database"`
	DbAddress            string                `long:"dbaddress" description:"ip address and port of database (default: 127.0.0.1:3306)"`
	DbName               string                `long:"dbname" description:"name of server database (default: nft_stake_pool)"`
	DisableAutoCreateDB  bool                  `long:"noautocreatedb" description:"Disable creating database and table automatically"`
	DisableDB            bool                  `long:"nodb" description:"Run with in-memory state only, without database persistence"`
	DisableTLS           bool                  `long:"notls" description:"Disable TLS for the websocket RPC server -- NOTE: This is only allowed if the RPC server is bound to localhost"`
	DebugLevel           string                `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	ExternalIPs          []string              `long:"externalip" description:"Add an ip to the list of local addresses we claim to listen on to clients"`
	Listeners            []string              `long:"listen" description:"Add an interface/port to listen for connections (HTTP/ws)"`
	ListenerPort         string                `long:"listenerport" description:"listenerport is the port that HTTP/ws server listen on (default: 28777)"`
	LogDir               string                `long:"logdir" description:"Directory to log output."`
	RPCMaxClients        int                   `long:"rpcmaxclients" description:"Max number of rpc clients (holders and admin)"`
	RPCMaxConcurrentReqs int                   `long:"rpcmaxconcurrentreqs" description:"Max number of concurrent RPC requests that may be processed concurrently"`
	RPCMaxWebsockets     int                   `long:"rpcmaxwebsockets" description:"Max number of websocket connections (holders)"`
	PoolUser             string                `long:"pooluser" description:"RPC username for pool admin, this is used to control the staking server"`
	PoolPass             string                `long:"poolpass" description:"RPC password for pool admin, this is used to control the staking server"`
	PoolLimitUser        string                `long:"poollimituser" description:"RPC username for individual holder, this is used for holders to establish RPC websocket connection with the staking server"`
	PoolLimitPass        string                `long:"poollimitpass" description:"RPC password for individual holder, this is used for holders to establish RPC websocket connection with the staking server"`
	PoolCert             string                `long:"poolcert" description:"File containing the certificate file for users to connect with the staking server"`
	PoolKey              string                `long:"poolkey" description:"File containing the certificate key for users to connect with the staking server"`
	ProfilePort          string                `long:"profileport" description:"Enable HTTP profiling on given port -- NOTE port must be between 1024 and 65536"`
	ShowVersion          bool                  `short:"V" long:"version" description:"Display version information and exit"`
	SimNet               bool                  `long:"simnet" description:"Use the simulation environment with in-process custody and wallet backends"`
	TestNet              bool                  `long:"testnet" description:"Use the test environment"`
	TierDurations        []int64               `long:"tierduration" description:"Override an accrual tier duration threshold in seconds, specify once per tier in ascending order"`
	WorkingDir           string                `long:"workingdir" description:"Working directory"`

	CustodyRPCConnect string `long:"custodyrpcconnect" description:"Hostname/IP and port of the item custody RPC server to connect to"`
	CustodyRPCUser    string `long:"custodyrpcuser" description:"Username for RPC connections with the item custody backend"`
	CustodyRPCPass    string `long:"custodyrpcpass" default-mask:"-" description:"Password for RPC connections with the item custody backend"`
	WalletRPCConnect  string `long:"walletrpcconnect" description:"Hostname/IP and port of the value transfer RPC server to connect to"`
	WalletRPCUser     string `long:"walletrpcuser" description:"Username for RPC connections with the value transfer backend"`
	WalletRPCPass     string `long:"walletrpcpass" default-mask:"-" description:"Password for RPC connections with the value transfer backend"`
}

// newConfigParser returns a new command line flags parser.
func newConfigParser(cfg *config, options flags.Options) *flags.Parser {
	parser := flags.NewParser(cfg, options)
	return parser
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(defaultHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// supportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func supportedSubsystems() []string {
	// Convert the subsystemLoggers map keys to a slice.
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}

	// Sort the subsystems for stable display.
	sort.Strings(subsystems)
	return subsystems
}

// filesExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace":
		fallthrough
	case "debug":
		fallthrough
	case "info":
		fallthrough
	case "warn":
		fallthrough
	case "error":
		fallthrough
	case "critical":
		return true
	}
	return false
}

// validDbType returns whether or not dbType is a supported database type.
func validDbType(dbType string) bool {
	for _, knownType := range knownDbTypes {
		if dbType == knownType {
			return true
		}
	}

	return false
}

// parseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly.  An appropriate error is returned if anything is
// invalid.
func parseAndSetDebugLevels(debugLevel string) error {
	// When the specified string doesn't have any delimters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		// Validate debug log level.
		if !validLogLevel(debugLevel) {
			str := "The specified debug level [%v] is invalid"
			return fmt.Errorf(str, debugLevel)
		}

		// Change the logging level for all subsystems.
		setLogLevels(debugLevel)

		return nil
	}

	// Split the specified string into subsystem/level pairs while detecting
	// issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			str := "The specified debug level contains an invalid " +
				"subsystem/level pair [%v]"
			return fmt.Errorf(str, logLevelPair)
		}

		// Extract the specified subsystem and log level.
		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		// Validate subsystem.
		if _, exists := subsystemLoggers[subsysID]; !exists {
			str := "The specified subsystem [%v] is invalid -- " +
				"supported subsytems %v"
			return fmt.Errorf(str, subsysID, supportedSubsystems())
		}

		// Validate log level.
		if !validLogLevel(logLevel) {
			str := "The specified debug level [%v] is invalid"
			return fmt.Errorf(str, logLevel)
		}

		setLogLevel(subsysID, logLevel)
	}

	return nil
}

// removeDuplicateAddresses returns a new slice with all duplicate entries in
// addrs removed.
func removeDuplicateAddresses(addrs []string) []string {
	result := make([]string, 0, len(addrs))
	seen := map[string]struct{}{}
	for _, val := range addrs {
		if _, ok := seen[val]; !ok {
			result = append(result, val)
			seen[val] = struct{}{}
		}
	}
	return result
}

// normalizeAddress returns addr with the passed default port appended if
// there is not already a port specified.
func normalizeAddress(addr, defaultPort string) string {
	_, _, err := net.SplitHostPort(addr)
	if err != nil {
		return net.JoinHostPort(addr, defaultPort)
	}
	return addr
}

// genCertPair generates a key/cert pair to the paths provided.
func genCertPair(certFile string, keyFile string, externalIPs []string) error {
	srvrLog.Infof("Generating TLS certificates of staking server...")

	org := "nft stake pool autogenerated cert"
	validUntil := time.Now().Add(10 * 365 * 24 * time.Hour)

	cert, key, err := utils.NewTLSCertPair(org, validUntil, externalIPs)
	if err != nil {
		return err
	}

	// Write cert and key files.
	if err = ioutil.WriteFile(certFile, cert, 0666); err != nil {
		return err
	}
	if err = ioutil.WriteFile(keyFile, key, 0600); err != nil {
		os.Remove(certFile)
		return err
	}

	srvrLog.Infof("Done generating TLS certificates")
	return nil
}

// normalizeAddresses returns a new slice with all the passed peer addresses
// normalized with the given default port, and all duplicates removed.
func normalizeAddresses(addrs []string, defaultPort string) []string {
	for i, addr := range addrs {
		addrs[i] = normalizeAddress(addr, defaultPort)
	}

	return removeDuplicateAddresses(addrs)
}

func loadConfig() (*config, []string, error) {
	cfg := config{
		ConfigFile:           localConfigFile,
		AppDataDir:           utils.NewExplicitString(defaultHomeDir),
		DebugLevel:           defaultLogLevel,
		LogDir:               defaultLogDir,
		RPCMaxClients:        defaultMaxRPCClients,
		RPCMaxConcurrentReqs: defaultMaxRPCConcurrentReqs,
		RPCMaxWebsockets:     defaultMaxRPCWebsockets,
		DbType:               defaultDbType,
		PoolKey:              localPoolKeyFile,
		PoolCert:             localPoolCertFile,
		DbName:               defaultDatabaseName,
	}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.  Any errors aside from the
	// help message error can be ignored here since they will be caught by
	// the final parse below.
	preCfg := cfg
	preParser := newConfigParser(&preCfg, flags.HelpFlag)
	_, err := preParser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			return nil, nil, err
		}
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version())
		os.Exit(0)
	}

	if preCfg.WorkingDir != "" {
		err := os.Chdir(preCfg.WorkingDir)
		if err != nil {
			return nil, nil, err
		}
	}

	fmt.Printf("Use config file: %v\n", preCfg.ConfigFile)

	// Load additional config from file.
	var configFileError error
	parser := newConfigParser(&cfg, flags.Default)
	if _, err := os.Stat(preCfg.ConfigFile); !os.IsNotExist(err) {
		err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
		if err != nil {
			if _, ok := err.(*os.PathError); !ok {
				fmt.Fprintf(os.Stderr, "Error parsing config "+
					"file: %v\n", err)
				fmt.Fprintln(os.Stderr, usageMessage)
				return nil, nil, err
			}
			configFileError = err
		}
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			fmt.Fprintln(os.Stderr, usageMessage)
		}
		return nil, nil, err
	}

	// Create the home directory if it doesn't already exist.
	funcName := "loadConfig"
	err = os.MkdirAll(defaultHomeDir, 0700)
	if err != nil {
		// Show a nicer error message if it's because a symlink is
		// linked to a directory that does not exist (probably because
		// it's not mounted).
		if e, ok := err.(*os.PathError); ok && os.IsExist(err) {
			if link, lerr := os.Readlink(e.Path); lerr == nil {
				str := "is symlink %s -> %s mounted?"
				err = fmt.Errorf(str, e.Path, link)
			}
		}

		str := "%s: Failed to create home directory: %v"
		err := fmt.Errorf(str, funcName, err)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	// Expand the log directory
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	// Initialize log rotation. After log rotation has been initialized, the
	// logger variables may be used.
	initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))

	// Parse, validate, and set debug log level(s).
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		err := fmt.Errorf("%s: %v", funcName, err.Error())
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	// Show version at startup.
	srvrLog.Infof("Version %s", version())

	// Validate database type.
	if !validDbType(cfg.DbType) {
		str := "%s: The specified database type [%v] is invalid -- " +
			"supported types %v"
		err := fmt.Errorf(str, funcName, cfg.DbType, knownDbTypes)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	// Multiple networks can't be selected simultaneously.
	numNets := 0
	// Count number of network flags passed; assign active network params
	// while we're at it
	if cfg.TestNet {
		numNets++
		netParams = &chaincfg.TestNetParams
		cfg.DbName = cfg.DbName + "_" + netParams.Name
	}
	if cfg.SimNet {
		numNets++
		netParams = &chaincfg.SimNetParams
		cfg.DbName = cfg.DbName + "_" + netParams.Name
	}
	if numNets > 1 {
		str := "%s: The testnet and simnet params " +
			"can't be used together -- choose one of the two"
		err := fmt.Errorf(str, funcName)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	chaincfg.ActiveNetParams = netParams

	if cfg.ListenerPort == "" {
		cfg.ListenerPort = netParams.DefaultPort
	}
	// Add the default listener if none were specified. The default
	// listener is all addresses on the listen port for the network
	// we are to connect to.
	if len(cfg.Listeners) == 0 {
		cfg.Listeners = []string{
			net.JoinHostPort("", cfg.ListenerPort),
		}
	}

	// Add default port to all listener addresses if needed and remove
	// duplicate addresses.
	cfg.Listeners = normalizeAddresses(cfg.Listeners, cfg.ListenerPort)

	// Admin credentials must always be configured explicitly.
	if cfg.PoolUser == "" || cfg.PoolPass == "" {
		return nil, nil, errors.New("pooluser and poolpass should be configured to control the staking server")
	}

	// Add default username and password for individual holder
	if cfg.PoolLimitUser == "" || cfg.PoolLimitPass == "" {
		cfg.PoolLimitUser = defaultPoolLimitUser
		cfg.PoolLimitPass = defaultPoolLimitPass
	}
	if cfg.PoolUser == cfg.PoolLimitUser {
		return nil, nil, errors.New("pooluser and poollimituser must not be the same")
	}

	// On simnet the custody and wallet backends are run in-process, so no
	// RPC connection info is needed for them.
	if !cfg.SimNet {
		if cfg.CustodyRPCUser == "" || cfg.CustodyRPCPass == "" {
			return nil, nil, errors.New("custodyrpcuser and custodyrpcpass should be configured to connect with the item custody backend")
		}
		if cfg.CustodyRPCConnect == "" {
			cfg.CustodyRPCConnect = net.JoinHostPort("localhost", netParams.CustodyRPCClientPort)
		}
		cfg.CustodyRPCConnect = normalizeAddress(cfg.CustodyRPCConnect, netParams.CustodyRPCClientPort)

		if cfg.WalletRPCUser == "" || cfg.WalletRPCPass == "" {
			return nil, nil, errors.New("walletrpcuser and walletrpcpass should be configured to connect with the value transfer backend")
		}
		if cfg.WalletRPCConnect == "" {
			cfg.WalletRPCConnect = net.JoinHostPort("localhost", netParams.WalletRPCClientPort)
		}
		cfg.WalletRPCConnect = normalizeAddress(cfg.WalletRPCConnect, netParams.WalletRPCClientPort)
	}

	if !cfg.DisableDB {
		if cfg.DbUsername == "" || cfg.DbPassword == "" {
			return nil, nil, errors.New("database username or password not configured, please add them in configuration file or " +
				"specify them using --dbusername and --dbpassword, or run with --nodb")
		}

		if cfg.DbAddress == "" {
			srvrLog.Infof("Use default database address: %v", defaultDbAddress)
			cfg.DbAddress = defaultDbAddress
		}

		if cfg.DbName == "" {
			return nil, nil, fmt.Errorf("nil dbname")
		}
	} else {
		srvrLog.Infof("Database persistence is disabled, running with in-memory state only")
	}

	// Validate tier duration overrides.
	if len(cfg.TierDurations) != 0 {
		if len(cfg.TierDurations) != constdef.TierNum {
			return nil, nil, fmt.Errorf("%v tier durations should be specified, got %v",
				constdef.TierNum, len(cfg.TierDurations))
		}
		prev := int64(0)
		for i, d := range cfg.TierDurations {
			if d <= prev {
				return nil, nil, fmt.Errorf("tier durations must be positive and strictly ascending, "+
					"%v-th duration is %v", i, d)
			}
			prev = d
		}
		srvrLog.Infof("Tier duration thresholds overridden: %v", cfg.TierDurations)
	}

	// Warn about missing config file only after all other configuration is
	// done.  This prevents the warning on help messages and invalid
	// options.  Note this should go directly before the return.
	if configFileError != nil {
		srvrLog.Warnf("%v", configFileError)
	}

	// Generate the TLS cert and key file if both don't already
	// exist.
	if !cfg.DisableTLS {
		if !fileExists(cfg.PoolCert) && !fileExists(cfg.PoolKey) {
			err := genCertPair(cfg.PoolCert, cfg.PoolKey, cfg.ExternalIPs)
			if err != nil {
				return nil, nil, err
			}
		}
	} else {
		srvrLog.Infof("TLS certificate for websocket RPC server is disabled")
	}

	// Validate profile port number
	if cfg.ProfilePort != "" {
		profilePort, err := strconv.Atoi(cfg.ProfilePort)
		if err != nil || profilePort < 1024 || profilePort > 65535 {
			str := "%s: The profile port must be between 1024 and 65535"
			err := fmt.Errorf(str, funcName)
			return nil, nil, err
		}
	}

	chaincfg.StakePoolBackendVersion = version()

	return &cfg, remainingArgs, nil
}
