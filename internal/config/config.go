package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/spf13/viper"
)

const (
	// DatadirKey is the local data directory to store the internal state of
	// the daemon
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// NetworkKey is the Bitcoin network the daemon operates on, one of
	// mainnet, testnet, regtest
	NetworkKey = "NETWORK"
	// PeerIdKey is the identity this daemon joins the peer network with
	PeerIdKey = "PEER_ID"
	// WalletSeedKey is the hex-encoded seed the trading wallet is derived
	// from
	WalletSeedKey = "WALLET_SEED"
	// PeerTimeoutKey is the duration in seconds a suspended protocol step
	// waits for the counterparty's reply
	PeerTimeoutKey = "PEER_TIMEOUT"
	// DepositConfirmationsKey is the number of ledger confirmations after
	// which the fund-lock transaction counts as irreversible
	DepositConfirmationsKey = "DEPOSIT_CONFIRMATIONS"
	// WatchIntervalKey defines the interval in seconds between ledger polls
	WatchIntervalKey = "WATCH_INTERVAL"
	// StatsIntervalKey defines the interval in seconds for printing basic
	// daemon statistics
	StatsIntervalKey = "STATS_INTERVAL"
	// EnableProfilerKey enables the profiler that can be used to investigate
	// performance issues
	EnableProfilerKey = "ENABLE_PROFILER"
	// DBTypeKey is used to switch database type between those supported
	DBTypeKey = "DB_TYPE"

	// DBBadger is the durable on-disk database type
	DBBadger = "badger"
	// DBInMemory is the volatile database type, useful for tests
	DBInMemory = "inmemory"

	DbLocation       = "db"
	ProfilerLocation = "stats"
)

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("escrowd", false)

var supportedNetworks = map[string]*chaincfg.Params{
	"mainnet": &chaincfg.MainNetParams,
	"testnet": &chaincfg.TestNet3Params,
	"regtest": &chaincfg.RegressionNetParams,
}

func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("ESCROWD")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(NetworkKey, "regtest")
	vip.SetDefault(PeerTimeoutKey, 120)
	vip.SetDefault(DepositConfirmationsKey, 1)
	vip.SetDefault(WatchIntervalKey, 1)
	vip.SetDefault(StatsIntervalKey, 600)
	vip.SetDefault(EnableProfilerKey, false)
	vip.SetDefault(DBTypeKey, DBBadger)

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}

	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

// GetSeconds returns the value of a seconds-denominated key as a duration.
func GetSeconds(key string) time.Duration {
	return time.Duration(vip.GetInt(key)) * time.Second
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

// GetNetwork returns the chain parameters of the configured network.
func GetNetwork() *chaincfg.Params {
	return supportedNetworks[GetString(NetworkKey)]
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	if _, ok := supportedNetworks[GetString(NetworkKey)]; !ok {
		return fmt.Errorf(
			"%s must be one of mainnet, testnet, regtest", NetworkKey,
		)
	}

	if !vip.IsSet(PeerIdKey) || len(GetString(PeerIdKey)) <= 0 {
		return fmt.Errorf("missing peer id")
	}

	if !vip.IsSet(WalletSeedKey) || len(GetString(WalletSeedKey)) <= 0 {
		return fmt.Errorf("missing wallet seed")
	}

	dbType := GetString(DBTypeKey)
	if dbType != DBBadger && dbType != DBInMemory {
		return fmt.Errorf("%s must be one of %s, %s", DBTypeKey, DBBadger, DBInMemory)
	}

	if GetInt(PeerTimeoutKey) <= 0 {
		return fmt.Errorf("%s must be a positive number of seconds", PeerTimeoutKey)
	}
	if GetInt(DepositConfirmationsKey) <= 0 {
		return fmt.Errorf("%s must be a positive number", DepositConfirmationsKey)
	}

	return nil
}

func initDatadir() error {
	datadir := GetDatadir()
	if err := makeDirectoryIfNotExists(filepath.Join(datadir, DbLocation)); err != nil {
		return err
	}

	profilerEnabled := GetBool(EnableProfilerKey)
	if profilerEnabled {
		if err := makeDirectoryIfNotExists(filepath.Join(datadir, ProfilerLocation)); err != nil {
			return err
		}
	}
	return nil
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
