package main

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/stakesuite/nft-stakepool-server/stakejson"
)

const (
	showHelpMessage = "Specify -h to show available options"
	listCmdMessage  = "Specify -l to list available commands"
)

// commandUsage display the usage for a specific command.
func commandUsage(method string) {
	fmt.Fprintf(os.Stderr, "Usage:\n  %s\n", methodUsage(method))
}

// methodUsage returns the single-line usage for the given method.
func methodUsage(method string) string {
	switch method {
	case "batchupdateasset":
		return method + ` '["assetref",...]' '[rewardrate,...]' '[thirtydaybonus,...]' '[sixtydaybonus,...]' '[yearlybonus,...]'`
	case "liquidateasset":
		return method + " assetref flag"
	case "stake":
		return method + ` assetref userref '[itemid,...]'`
	case "unstake":
		return method + " assetref userref itemid"
	case "withdrawreward":
		return method + " assetref userref amount"
	case "getassetdata":
		return method + " assetref"
	case "getuserinfo", "calculatereward":
		return method + " assetref userref"
	case "version", "getpoolnum", "getstatus":
		return method
	}
	return method
}

// usage displays the general usage when the help flag is not displayed and
// and an invalid command was specified.  The commandUsage function is used
// instead when a valid command was specified.
func usage(errorMessage string) {
	appName := strings.TrimSuffix(os.Args[0], ".exe")
	fmt.Fprintln(os.Stderr, errorMessage)
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintf(os.Stderr, "  %s [OPTIONS] <command> <args...>\n\n",
		appName)
	fmt.Fprintln(os.Stderr, showHelpMessage)
	fmt.Fprintln(os.Stderr, listCmdMessage)
}

// listCommands prints the commands the server accepts, split between those
// available to limited users and those requiring admin credentials.
func listCommands() {
	methods := stakejson.RegisteredCmdMethods()
	sort.Strings(methods)
	for _, method := range methods {
		fmt.Println(methodUsage(method))
	}
}

func checkArgNum(method string, args []string, want int) error {
	if len(args) != want {
		commandUsage(method)
		return fmt.Errorf("%v requires %v arguments, got %v", method,
			want, len(args))
	}
	return nil
}

func parseInt64Array(arg string) ([]int64, error) {
	var vals []int64
	err := json.Unmarshal([]byte(arg), &vals)
	return vals, err
}

// makeCmd builds the concrete command struct for the given method from
// string arguments.
func makeCmd(method string, args []string) (interface{}, error) {
	switch method {
	case "version":
		if err := checkArgNum(method, args, 0); err != nil {
			return nil, err
		}
		return stakejson.NewVersionCmd(), nil

	case "batchupdateasset":
		if err := checkArgNum(method, args, 5); err != nil {
			return nil, err
		}
		var assetRefs []string
		if err := json.Unmarshal([]byte(args[0]), &assetRefs); err != nil {
			return nil, err
		}
		rates, err := parseInt64Array(args[1])
		if err != nil {
			return nil, err
		}
		thirty, err := parseInt64Array(args[2])
		if err != nil {
			return nil, err
		}
		sixty, err := parseInt64Array(args[3])
		if err != nil {
			return nil, err
		}
		yearly, err := parseInt64Array(args[4])
		if err != nil {
			return nil, err
		}
		return stakejson.NewBatchUpdateAssetCmd(assetRefs, rates, thirty, sixty, yearly), nil

	case "liquidateasset":
		if err := checkArgNum(method, args, 2); err != nil {
			return nil, err
		}
		flag, err := strconv.ParseBool(args[1])
		if err != nil {
			return nil, err
		}
		return stakejson.NewLiquidateAssetCmd(args[0], flag), nil

	case "stake":
		if err := checkArgNum(method, args, 3); err != nil {
			return nil, err
		}
		var itemIDs []uint64
		if err := json.Unmarshal([]byte(args[2]), &itemIDs); err != nil {
			return nil, err
		}
		return stakejson.NewStakeCmd(args[0], args[1], itemIDs), nil

	case "unstake":
		if err := checkArgNum(method, args, 3); err != nil {
			return nil, err
		}
		itemID, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil {
			return nil, err
		}
		return stakejson.NewUnstakeCmd(args[0], args[1], itemID), nil

	case "withdrawreward":
		if err := checkArgNum(method, args, 3); err != nil {
			return nil, err
		}
		amount, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return nil, err
		}
		return stakejson.NewWithdrawRewardCmd(args[0], args[1], amount), nil

	case "getassetdata":
		if err := checkArgNum(method, args, 1); err != nil {
			return nil, err
		}
		return stakejson.NewGetAssetDataCmd(args[0]), nil

	case "getuserinfo":
		if err := checkArgNum(method, args, 2); err != nil {
			return nil, err
		}
		return stakejson.NewGetUserInfoCmd(args[0], args[1]), nil

	case "calculatereward":
		if err := checkArgNum(method, args, 2); err != nil {
			return nil, err
		}
		return stakejson.NewCalculateRewardCmd(args[0], args[1]), nil

	case "getpoolnum":
		if err := checkArgNum(method, args, 0); err != nil {
			return nil, err
		}
		return stakejson.NewGetPoolNumCmd(), nil

	case "getstatus":
		if err := checkArgNum(method, args, 0); err != nil {
			return nil, err
		}
		return stakejson.NewGetStatusCmd(), nil
	}

	return nil, fmt.Errorf("unrecognized command %q", method)
}

// newHTTPClient returns a new HTTP client that is configured according to the
// TLS settings in the associated connection configuration.
func newHTTPClient(cfg *config) (*http.Client, error) {
	// Configure TLS if needed.
	var tlsConfig *tls.Config
	if !cfg.NoTLS && cfg.PoolCert != "" {
		pem, err := ioutil.ReadFile(cfg.PoolCert)
		if err != nil {
			return nil, err
		}

		pool := x509.NewCertPool()
		pool.AppendCertsFromPEM(pem)
		tlsConfig = &tls.Config{
			RootCAs: pool,
		}
	}

	client := http.Client{
		Transport: &http.Transport{
			TLSClientConfig: tlsConfig,
		},
	}

	return &client, nil
}

// sendPostRequest sends the marshalled JSON-RPC command using HTTP-POST mode
// to the server described in the passed config struct.  It also attempts to
// unmarshal the response as a JSON-RPC response and returns either the result
// field or the error field depending on whether or not there is an error.
func sendPostRequest(marshalledJSON []byte, cfg *config) ([]byte, error) {
	// Generate a request to the configured RPC server.
	protocol := "http"
	if !cfg.NoTLS {
		protocol = "https"
	}
	url := protocol + "://" + cfg.PoolAddress
	bodyReader := bytes.NewReader(marshalledJSON)
	httpRequest, err := http.NewRequest("POST", url, bodyReader)
	if err != nil {
		return nil, err
	}
	httpRequest.Close = true
	httpRequest.Header.Set("Content-Type", "application/json")

	// Configure basic access authorization.
	httpRequest.SetBasicAuth(cfg.RPCUser, cfg.RPCPassword)

	// Create the new HTTP client that is configured according to the user-
	// specified options and submit the request.
	httpClient, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	httpResponse, err := httpClient.Do(httpRequest)
	if err != nil {
		return nil, err
	}

	// Read the raw bytes and close the response.
	respBytes, err := ioutil.ReadAll(httpResponse.Body)
	httpResponse.Body.Close()
	if err != nil {
		err = fmt.Errorf("error reading json reply: %v", err)
		return nil, err
	}

	// Handle unsuccessful HTTP responses
	if httpResponse.StatusCode < 200 || httpResponse.StatusCode >= 300 {
		// Generate a standard error to return if the server body is
		// empty.  This should not happen very often, but it's better
		// than showing nothing in case the target server has a poor
		// implementation.
		if len(respBytes) == 0 {
			return nil, fmt.Errorf("%d %s", httpResponse.StatusCode,
				http.StatusText(httpResponse.StatusCode))
		}
		return nil, fmt.Errorf("%s", respBytes)
	}

	// Unmarshal the response.
	var resp stakejson.Response
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, err
	}

	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}

func main() {
	cfg, args, err := loadConfig()
	if err != nil {
		os.Exit(1)
	}
	if len(args) < 1 {
		usage("No command specified")
		os.Exit(1)
	}

	method := args[0]
	if method == "-l" || method == "listcommands" {
		listCommands()
		return
	}

	cmd, err := makeCmd(method, args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Marshal the command into a JSON-RPC byte slice in preparation for
	// sending it to the RPC server.
	marshalledJSON, err := stakejson.MarshalCmd(1, method, cmd)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Send the JSON-RPC request to the server using the user-specified
	// connection configuration.
	result, err := sendPostRequest(marshalledJSON, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Choose how to display the result based on its type.
	strResult := string(result)
	if strings.HasPrefix(strResult, "{") || strings.HasPrefix(strResult, "[") {
		var dst bytes.Buffer
		if err := json.Indent(&dst, result, "", "  "); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to format result: %v",
				err)
			os.Exit(1)
		}
		fmt.Println(dst.String())
	} else if strings.HasPrefix(strResult, `"`) {
		var str string
		if err := json.Unmarshal(result, &str); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to unmarshal result: %v",
				err)
			os.Exit(1)
		}
		fmt.Println(str)
	} else if strResult != "null" {
		fmt.Println(strResult)
	}
}
