package constants

// Default filesystem locations used when flags and the config file leave
// them unset.

// DefaultConfigPath is the default path to the TOML configuration file.
const DefaultConfigPath = "./config.toml"

// DefaultCrontabPath is the default path to the job table.
const DefaultCrontabPath = "./crontab"

// DefaultEnvFile is the optional dotenv file loaded before the config.
const DefaultEnvFile = "./.env"
