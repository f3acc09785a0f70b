package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "leadwatch"
)

type Config struct {
	Keywords   []string          `mapstructure:"keywords"`
	JobTitles  []string          `mapstructure:"job-titles"`
	Industries []string          `mapstructure:"industries"`
	Search     *SearchConfig     `mapstructure:"search"`
	Monitoring *MonitoringConfig `mapstructure:"monitoring"`
	Database   string            `mapstructure:"database"`
	Listen     string            `mapstructure:"listen"`
	Apify      *ApifyConfig      `mapstructure:"apify"`
	AI         *AIConfig         `mapstructure:"ai"`
}

type SearchConfig struct {
	ResultsPerKeyword int    `mapstructure:"results-per-keyword"`
	DateFilter        string `mapstructure:"date-filter"`
	SortType          string `mapstructure:"sort-type"`
	UseJobTitleFilter bool   `mapstructure:"use-job-title-filter"`
}

type MonitoringConfig struct {
	Active        bool `mapstructure:"active"`
	IntervalHours int  `mapstructure:"interval-hours"`
}

type ApifyConfig struct {
	TokenFile string `mapstructure:"token-file"`
	Actor     string `mapstructure:"actor"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "leadwatch finds PR agency leads in social posts and tracks them for review",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("apify.token-file", "APIFY_TOKEN_FILE"); err != nil {
		log.Fatalf("binding APIFY_TOKEN_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is leadwatch.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Only commands doing real work need a config file.
	if runCmd.CalledAs() == "" && serveCmd.CalledAs() == "" && leadsCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
