package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/spf13/viper"
)

const (
	// ListenPortKey is the port where the JSON interface will listen on,
	// deposit webhook receiver included.
	ListenPortKey = "LISTEN_PORT"
	// DatadirKey is the local data directory to store the internal state of
	// the daemon.
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// WalletSeedKey is the hex encoded seed the wallet derives its one-time
	// keys from. The daemon refuses to start without it.
	WalletSeedKey = "WALLET_SEED"
	// RegistryURLKey is the base URL of the event-sourced registry the
	// daemon routes its transactions to.
	RegistryURLKey = "REGISTRY_URL"
	// RegistryRequestsPerSecondKey caps the rate of requests towards the
	// registry, status polls included.
	RegistryRequestsPerSecondKey = "REGISTRY_REQUESTS_PER_SECOND"
	// RegistryRequestTimeoutKey is the per-request timeout towards the
	// registry.
	RegistryRequestTimeoutKey = "REGISTRY_REQUEST_TIMEOUT"
	// MaxStepAttemptsKey is the number of transient failures tolerated on a
	// single routing plan step before the plan is faulted.
	MaxStepAttemptsKey = "MAX_STEP_ATTEMPTS"
	// StepRetryDelayKey is how long a suspended routing plan waits before
	// the outbox relay resumes it.
	StepRetryDelayKey = "STEP_RETRY_DELAY"
	// OutboxIntervalKey is the polling interval of the outbox relay.
	OutboxIntervalKey = "OUTBOX_INTERVAL"
	// OutboxBatchSizeKey is the max number of outbox messages dispatched per
	// relay round.
	OutboxBatchSizeKey = "OUTBOX_BATCH_SIZE"
	// NotifyRequestTimeoutKey is the per-request timeout towards receiver
	// wallet webhooks.
	NotifyRequestTimeoutKey = "NOTIFY_REQUEST_TIMEOUT"

	DbLocation = "db"
)

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("gcert-daemon", false)

func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("GCERT")
	vip.AutomaticEnv()

	vip.SetDefault(ListenPortKey, 9945)
	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(RegistryRequestsPerSecondKey, 10)
	vip.SetDefault(RegistryRequestTimeoutKey, 15*time.Second)
	vip.SetDefault(MaxStepAttemptsKey, 10)
	vip.SetDefault(StepRetryDelayKey, 5*time.Second)
	vip.SetDefault(OutboxIntervalKey, time.Second)
	vip.SetDefault(OutboxBatchSizeKey, 50)
	vip.SetDefault(NotifyRequestTimeoutKey, 15*time.Second)

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

func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

// GetWalletSeed returns the decoded wallet seed.
func GetWalletSeed() ([]byte, error) {
	return hex.DecodeString(GetString(WalletSeedKey))
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	if !vip.IsSet(RegistryURLKey) {
		return fmt.Errorf("missing registry url")
	}

	seed, err := GetWalletSeed()
	if err != nil {
		return fmt.Errorf("wallet seed must be a hex string: %s", err)
	}
	if len(seed) < 16 {
		return fmt.Errorf("wallet seed must be at least 16 bytes")
	}

	if GetInt(MaxStepAttemptsKey) <= 0 {
		return fmt.Errorf("%s must be greater than 0", MaxStepAttemptsKey)
	}
	if GetInt(RegistryRequestsPerSecondKey) <= 0 {
		return fmt.Errorf("%s must be greater than 0", RegistryRequestsPerSecondKey)
	}

	return nil
}

func initDatadir() error {
	return makeDirectoryIfNotExists(filepath.Join(GetDatadir(), DbLocation))
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
