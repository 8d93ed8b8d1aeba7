package main

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/stakesuite/nft-stakepool-server/utils"
	"github.com/jessevdk/go-flags"
)

var (
	stakectlHomeDir    = utils.AppDataDir("stakectl", false)
	defaultConfigFile  = "stakectl.conf"
	defaultRPCServer   = "localhost"
	defaultRPCCertFile = "stakepool.cert"
)

// config defines the configuration options for stakectl.
//
// See loadConfig for details on the configuration load process.
type config struct {
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	NoTLS       bool   `long:"notls" description:"Disable TLS"`
	PoolAddress string `short:"s" long:"pooladdress" description:"RPC server to connect to"`
	PoolCert    string `short:"c" long:"poolcert" description:"RPC server certificate chain for validation"`
	RPCPassword string `short:"P" long:"rpcpass" default-mask:"-" description:"RPC password"`
	RPCUser     string `short:"u" long:"rpcuser" description:"RPC username"`
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	WorkingDir  string `long:"workingdir" description:"Working directory"`
}

// cleanAndExpandPath expands environement variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(stakectlHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but they variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// normalizeAddress returns addr with the passed default port appended if
// there is not already a port specified.
func normalizeAddress(addr string) (string, error) {
	_, _, err := net.SplitHostPort(addr)
	if err != nil {
		defaultPort := "28777"

		return net.JoinHostPort(addr, defaultPort), nil
	}
	return addr, nil
}

func loadConfig() (*config, []string, error) {
	// Default config.
	cfg := config{
		ConfigFile:  defaultConfigFile,
		PoolAddress: defaultRPCServer,
		PoolCert:    defaultRPCCertFile,
	}

	// Pre-parse the command line options to see if an alternative config
	// file, the version flag, or the list commands flag was specified.  Any
	// errors aside from the help message error can be ignored here since
	// they will be caught by the final parse below.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
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
	usageMessage := fmt.Sprintf("Use %s -h to show options", appName)
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

	// Load additional config from file.
	parser := flags.NewParser(&cfg, flags.Default)
	err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		if _, ok := err.(*os.PathError); !ok {
			fmt.Fprintf(os.Stderr, "Error parsing config file: %v\n",
				err)
			fmt.Fprintln(os.Stderr, usageMessage)
			return nil, nil, err
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

	// Handle environment variable expansion in the RPC certificate path.
	cfg.PoolCert = cleanAndExpandPath(cfg.PoolCert)

	// Add default port to RPC server if needed.
	cfg.PoolAddress, err = normalizeAddress(cfg.PoolAddress)
	if err != nil {
		return nil, nil, err
	}

	return &cfg, remainingArgs, nil
}
