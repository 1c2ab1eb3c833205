package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/sonido-score/logging"
)

const envPrefix = "SONIDO_SCORE"

var (
	configFile   string
	logLevel     string
	logFormat    string
	outputFormat string
	quality      string
	workers      int
	ffmpegPath   string
	ffprobePath  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sonido-score",
	Short: "Transcribe notes, chords and rhythm from audio",
	Long: `sonido-score analyzes recorded audio: windowed spectra and spectrograms,
YIN pitch tracking, note segmentation, chord identification, glissando
detection and tempo, beat and time-signature estimation.

WAV files are read natively; any other format is decoded with ffmpeg.
Pass - as the file to read audio from stdin.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd, viper.GetViper()); err != nil {
			return err
		}
		return initializeLogging()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default is $HOME/.config/sonido-score/sonido-score.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"log format (text, json)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "json",
		"output format (json, yaml)")
	rootCmd.PersistentFlags().StringVarP(&quality, "quality", "q", "medium",
		"analysis preset (low, medium, high, professional)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0,
		"clips analyzed concurrently by batch (0 = GOMAXPROCS)")
	rootCmd.PersistentFlags().StringVar(&ffmpegPath, "ffmpeg", "ffmpeg",
		"path to the ffmpeg binary")
	rootCmd.PersistentFlags().StringVar(&ffprobePath, "ffprobe", "ffprobe",
		"path to the ffprobe binary")
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "sonido-score"))
		}
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.SetConfigName("sonido-score")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	} else if configFile != "" {
		fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", configFile, err)
		os.Exit(1)
	}
}

// bindFlags binds each cobra flag to its associated viper configuration
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var lastErr error

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		envVar := envPrefix + "_" + strings.ToUpper(key)

		// Apply the viper config value to the flag when the flag is not set and viper has a value
		if !f.Changed && v.IsSet(key) {
			val := v.Get(key)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				lastErr = err
			}
		}

		if err := v.BindPFlag(key, f); err != nil {
			lastErr = err
		}

		if err := v.BindEnv(key, envVar); err != nil {
			lastErr = err
		}
	})

	return lastErr
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("output", "json")
	viper.SetDefault("quality", "medium")
	viper.SetDefault("workers", 0)
	viper.SetDefault("ffmpeg", "ffmpeg")
	viper.SetDefault("ffprobe", "ffprobe")
}

// initializeLogging installs the global logger every analyzer captures
func initializeLogging() error {
	level, err := logging.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		return err
	}

	switch format := viper.GetString("log_format"); format {
	case "json":
		logger, err := logging.NewZapLogger("json", level)
		if err != nil {
			return err
		}
		logging.SetGlobalLogger(logger)
	case "text", "":
		logger := logging.NewDefaultLogger()
		logger.SetLevel(level)
		logging.SetGlobalLogger(logger)
	default:
		return fmt.Errorf("unknown log format %q (text, json)", format)
	}

	return nil
}
