/*
 * streamfed is a media-aggregation gateway that federates IPTV providers
 * and the TMDB catalog into a single normalized inventory.
 * Copyright (C) 2026  The streamfed authors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vaxvhbe/streamfed/pkg/cache"
	"github.com/vaxvhbe/streamfed/pkg/config"
	"github.com/vaxvhbe/streamfed/pkg/database"
	"github.com/vaxvhbe/streamfed/pkg/ingest"
	"github.com/vaxvhbe/streamfed/pkg/provider"
	"github.com/vaxvhbe/streamfed/pkg/ratelimit"
	"github.com/vaxvhbe/streamfed/pkg/resolver"
	"github.com/vaxvhbe/streamfed/pkg/scheduler"
	"github.com/vaxvhbe/streamfed/pkg/server"
	"github.com/vaxvhbe/streamfed/pkg/tmdb"
	"github.com/vaxvhbe/streamfed/pkg/utils"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "streamfed",
	Short: "Media-aggregation gateway for IPTV providers",
	Long: `streamfed federates multiple upstream IPTV providers and the TMDB
catalog into a single normalized inventory.

It serves:
- browseable/searchable catalogs over the federated inventory
- per-title best-available stream resolution with liveness probing
- an Xtream-compatible player API and M3U export
- a Stremio add-on`,

	Run: func(cmd *cobra.Command, args []string) {
		log.Printf("[streamfed] Gateway is starting...")

		utils.Config.DebugLoggingEnabled = viper.GetBool("debug-logging")

		conf := &config.GatewayConfig{
			HostConfig: &config.HostConfiguration{
				Hostname: viper.GetString("hostname"),
				Port:     viper.GetInt("port"),
			},
			PublicURL:       viper.GetString("public-url"),
			CacheFolder:     viper.GetString("cache-folder"),
			TMDBAPIKey:      config.CredentialString(viper.GetString("tmdb-api-key")),
			SyncOnStartup:   viper.GetBool("sync-on-startup"),
			XtreamBatchSize: viper.GetInt("xtream-batch-size"),
			AGTVBatchSize:   viper.GetInt("agtv-batch-size"),
		}
		conf.Normalize()

		if err := run(conf); err != nil {
			log.Fatal(err)
		}
	},
}

// run wires every subsystem and blocks on the HTTP edge.
func run(conf *config.GatewayConfig) error {
	db, err := database.NewDBManager()
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	store := cache.NewStore(conf.CacheFolder)
	limiters := ratelimit.NewRegistry()
	defer limiters.Shutdown()

	// The settings store overrides the configured TMDB key so the key can
	// be rotated without a restart.
	tmdbKey := conf.TMDBAPIKey.String()
	if key, err := db.GetSetting(database.SettingTMDBAPIKey); err == nil && key != "" {
		tmdbKey = key
	} else if tmdbKey != "" {
		if err := db.SetSetting(database.SettingTMDBAPIKey, tmdbKey); err != nil {
			utils.WarnLog("Could not persist TMDB API key to settings: %v", err)
		}
	}
	metadata := tmdb.NewClient(tmdbKey, store, limiters)

	deps := provider.Deps{Cache: store, Limiters: limiters}
	matcher := provider.NewMatcher(metadata)
	pipeline := ingest.NewPipeline(db, matcher, metadata, deps)
	pipeline.SetBatchSizes(conf.XtreamBatchSize, conf.AGTVBatchSize)

	sched := scheduler.New(db)
	if err := sched.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize scheduler: %w", err)
	}
	scheduler.RegisterStandardJobs(sched, pipeline, store, db, metadata)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)

	if conf.SyncOnStartup {
		utils.InfoLog("Sync-on-startup enabled, triggering provider sync")
		go func() {
			if err := sched.RunJob(ctx, scheduler.JobProvidersSync); err != nil {
				utils.WarnLog("Startup sync did not run: %v", err)
			}
		}()
	}

	res := resolver.New(db)
	edge := server.NewServer(conf, db, res, sched, metadata)

	// Drain in-flight jobs and mark the store stopping on shutdown.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		s := <-sig
		utils.InfoLog("Received %v, shutting down", s)
		db.SetStopping()
		sched.Stop()
		cancel()
		limiters.Shutdown()
		utils.Close()
		os.Exit(0)
	}()

	return edge.Serve()
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Config file flag
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default is $HOME/.streamfed.yaml)")

	// Edge configuration
	rootCmd.Flags().Int("port", config.DefaultPort, "Listening port")
	rootCmd.Flags().String("hostname", "", "Hostname to bind")
	rootCmd.Flags().String("public-url", "", "Externally visible base URL used in generated playlists")

	// Ingestion configuration
	rootCmd.Flags().String("cache-folder", "", "Root of the on-disk upstream response cache")
	rootCmd.Flags().String("tmdb-api-key", "", "TMDB API key (the settings store overrides it)")
	rootCmd.Flags().Bool("sync-on-startup", false, "Run the provider sync right after boot")
	rootCmd.Flags().Int("xtream-batch-size", config.DefaultXtreamBatchSize, "Bulk-save batch size for Xtream providers")
	rootCmd.Flags().Int("agtv-batch-size", config.DefaultAGTVBatchSize, "Bulk-save batch size for playlist providers")

	rootCmd.Flags().Bool("debug-logging", false, "Enable debug logging")

	// Bind all flags to viper
	if err := viper.BindPFlags(rootCmd.Flags()); err != nil {
		log.Fatal("Error binding PFlags to viper")
	}
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory and current directory
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".streamfed")
	}

	// Replace hyphens with underscores in environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// Read environment variables
	viper.AutomaticEnv()

	// Read in config file if found
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}
