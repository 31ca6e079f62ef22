package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cometbft/cometbft/config"
	"github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/spf13/viper"
)

const (
	DefaultHomeDir       = "$HOME/.mvpr"
	DefaultIndexerDB     = "indexer.db"
	DefaultIndexerListen = "127.0.0.1:8088"
	DefaultIndexerPoll   = 5 * time.Second
)

// AppConfig is the [app] section of app.toml. Governance parameters are not
// here; they are consensus state and live in genesis.
type AppConfig struct {
	Home string `mapstructure:"-"`

	IndexerEnable       bool          `mapstructure:"indexer_enable"`
	IndexerDB           string        `mapstructure:"indexer_db"`
	IndexerListen       string        `mapstructure:"indexer_listen"`
	IndexerPollInterval time.Duration `mapstructure:"indexer_poll_interval"`
	MetricsEnable       bool          `mapstructure:"metrics_enable"`
}

func DefaultAppConfig(home string) *AppConfig {
	return &AppConfig{
		Home:                home,
		IndexerEnable:       true,
		IndexerDB:           DefaultIndexerDB,
		IndexerListen:       DefaultIndexerListen,
		IndexerPollInterval: DefaultIndexerPoll,
		MetricsEnable:       true,
	}
}

// IndexerDBPath resolves IndexerDB against the home directory.
func (c *AppConfig) IndexerDBPath() string {
	if filepath.IsAbs(c.IndexerDB) {
		return c.IndexerDB
	}
	return filepath.Join(c.Home, c.IndexerDB)
}

func (c *AppConfig) ValidateBasic() error {
	if c.IndexerEnable && c.IndexerDB == "" {
		return fmt.Errorf("indexer_db is empty")
	}
	if c.IndexerEnable && c.IndexerPollInterval <= 0 {
		return fmt.Errorf("indexer_poll_interval must be positive (got %v)", c.IndexerPollInterval)
	}
	return nil
}

type Config struct {
	*config.Config `mapstructure:",squash"`

	App *AppConfig `mapstructure:"app"`
}

func homeOrDefault(home string) string {
	if len(home) == 0 {
		home = os.ExpandEnv(DefaultHomeDir)
	}
	return home
}

func DefaultConfig(home string) *Config {
	home = homeOrDefault(home)
	cfg := &Config{
		DefaultMVPRCometConfig(),
		DefaultAppConfig(home),
	}
	cfg.SetRoot(home)
	return cfg
}

func NewMVPRConfig(home string) *Config {
	cfg := DefaultConfig(home)
	_ = os.MkdirAll(filepath.Join(cfg.RootDir, "config"), DefaultDirPerm)
	return cfg
}

func (c *Config) CometConfigFile() string {
	return filepath.Join(c.RootDir, "config", "config.toml")
}

func (c *Config) AppConfigFile() string {
	return filepath.Join(c.RootDir, "config", "app.toml")
}

func (c *Config) ValidateBasic() error {
	if err := c.Config.ValidateBasic(); err != nil {
		return err
	}
	return c.App.ValidateBasic()
}

// Load reads config.toml and merges app.toml on top of the defaults.
func Load(home string) (*Config, error) {
	cfg := DefaultConfig(home)
	v := viper.New()
	v.SetConfigFile(cfg.CometConfigFile())
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if _, err := os.Stat(cfg.AppConfigFile()); err == nil {
		v.SetConfigFile(cfg.AppConfigFile())
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("reading app config: %w", err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.SetRoot(cfg.App.Home)
	if err := cfg.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid configuration data: %w", err)
	}
	return cfg, nil
}

func InitializeNodeValidatorFiles(config *Config, privKey crypto.PrivKey) (nodeID string, pk crypto.PubKey, err error) {
	nodeKey, err := p2p.LoadOrGenNodeKey(config.NodeKeyFile())
	if err != nil {
		return "", nil, err
	}
	nodeID = string(nodeKey.ID())

	pvKeyFile := config.PrivValidatorKeyFile()
	if err := os.MkdirAll(filepath.Dir(pvKeyFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvKeyFile), err)
	}

	pvStateFile := config.PrivValidatorStateFile()
	if err := os.MkdirAll(filepath.Dir(pvStateFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvStateFile), err)
	}

	var filePV *privval.FilePV
	if privKey == nil {
		filePV = privval.LoadOrGenFilePV(pvKeyFile, pvStateFile)
	} else {
		filePV = privval.NewFilePV(privKey, pvKeyFile, pvStateFile)
		filePV.Save()
	}
	pukey, err := filePV.GetPubKey()
	if err != nil {
		return "", nil, err
	}

	return nodeID, pukey, nil
}

func DefaultMVPRCometConfig() *config.Config {
	cometConfig := config.DefaultConfig()
	cometConfig.Consensus.TimeoutPropose = time.Second * 10
	cometConfig.Consensus.TimeoutPrevote = time.Second * 1
	cometConfig.Consensus.TimeoutPrecommit = time.Second * 1
	cometConfig.Consensus.TimeoutCommit = time.Millisecond * 1200
	return cometConfig
}
