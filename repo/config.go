package repo

import (
	"time"
)

type Config struct {
	RepoRoot string `mapstructure:"-" toml:"-"`

	// Owner is the platform owner address, the only identity allowed to
	// pause and resume the ledger.
	Owner string `mapstructure:"owner" toml:"owner"`

	API        API        `mapstructure:"api" toml:"api"`
	Log        Log        `mapstructure:"log" toml:"log"`
	Governance Governance `mapstructure:"governance" toml:"governance"`
}

type API struct {
	Listen string `mapstructure:"listen" toml:"listen"`
}

type Log struct {
	Level        string        `mapstructure:"level" toml:"level"`
	Filename     string        `mapstructure:"filename" toml:"filename"`
	ReportCaller bool          `mapstructure:"report_caller" toml:"report_caller"`
	MaxAge       time.Duration `mapstructure:"max_age" toml:"max_age"`
	RotationTime time.Duration `mapstructure:"rotation_time" toml:"rotation_time"`
}

type Governance struct {
	// MaxOptions caps options per proposal, the two defaults included
	MaxOptions uint32 `mapstructure:"max_options" toml:"max_options"`

	// text length bounds for titles, descriptions and option names
	MaxTitle      int `mapstructure:"max_title" toml:"max_title"`
	MaxDesc       int `mapstructure:"max_desc" toml:"max_desc"`
	MaxOptionName int `mapstructure:"max_option_name" toml:"max_option_name"`
}

func DefaultConfig(repoRoot string) *Config {
	return &Config{
		RepoRoot: repoRoot,
		Owner:    DefaultOwnerAddr,
		API: API{
			Listen: "127.0.0.1:8881",
		},
		Log: Log{
			Level:        "info",
			Filename:     "govern.log",
			ReportCaller: false,
			MaxAge:       30 * 24 * time.Hour,
			RotationTime: 24 * time.Hour,
		},
		Governance: Governance{
			MaxOptions:    10,
			MaxTitle:      256,
			MaxDesc:       4096,
			MaxOptionName: 128,
		},
	}
}
