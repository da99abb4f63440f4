// Command rgstore manages content-addressable sequence stores: ingest
// FASTA files, look sequences up by digest, extract regions, and export
// collections back to FASTA.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/databio/rgstore"
	"github.com/databio/rgstore/internal/config"
	"github.com/databio/rgstore/pkg/codec"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rgstore:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rgstore",
		Short:         "Content-addressable store for biological sequences",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "path to rgstore.yaml")
	root.PersistentFlags().String("store", "", "store directory (overrides config)")
	root.PersistentFlags().String("remote", "", "remote store base URL")
	root.PersistentFlags().String("cache", "", "cache directory for remote stores")
	root.PersistentFlags().Bool("quiet", false, "only log warnings and errors")
	root.PersistentFlags().Bool("verbose", false, "enable debug logging")

	root.AddCommand(
		newDigestCmd(),
		newAddCmd(),
		newGetCmd(),
		newListCmd(),
		newExportCmd(),
		newRegionsCmd(),
		newAliasCmd(),
		newFaiCmd(),
		newStatsCmd(),
	)
	return root
}

// cliConfig merges the optional yaml file with command-line overrides.
func cliConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if dir, _ := cmd.Flags().GetString("store"); dir != "" {
		cfg.StoreDir = dir
	}
	if url, _ := cmd.Flags().GetString("remote"); url != "" {
		cfg.RemoteURL = url
	}
	if dir, _ := cmd.Flags().GetString("cache"); dir != "" {
		cfg.CacheDir = dir
	}
	return cfg, nil
}

func storeOptions(cmd *cobra.Command, cfg config.Config) (rgstore.Config, error) {
	mode, err := codec.ParseStorageMode(cfg.Mode)
	if err != nil {
		return rgstore.Config{}, err
	}
	log := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	quiet, _ := cmd.Flags().GetBool("quiet")
	return rgstore.Config{
		Mode:                mode,
		Logger:              log,
		Quiet:               quiet,
		SeqdataPathTemplate: cfg.SeqdataPathTemplate,
		BlobBackend:         cfg.BlobBackend,
		MinFreeSpace:        cfg.MinFreeSpace,
	}, nil
}

// openStore opens the configured store: a remote one when a base URL is
// set, an existing local directory when it holds a manifest, and a
// fresh persisted store otherwise.
func openStore(cmd *cobra.Command) (*rgstore.Store, config.Config, error) {
	cfg, err := cliConfig(cmd)
	if err != nil {
		return nil, config.Config{}, err
	}
	opts, err := storeOptions(cmd, cfg)
	if err != nil {
		return nil, config.Config{}, err
	}

	if cfg.RemoteURL != "" {
		cache := cfg.CacheDir
		if cache == "" {
			cache = filepath.Join(cfg.StoreDir, "remote-cache")
		}
		s, err := rgstore.OpenRemote(cmd.Context(), cache, cfg.RemoteURL, opts)
		return s, cfg, err
	}

	manifest := filepath.Join(cfg.StoreDir, "rgstore.json")
	if _, statErr := os.Stat(manifest); statErr == nil {
		s, err := rgstore.OpenLocal(cfg.StoreDir, opts)
		return s, cfg, err
	}
	s, err := rgstore.OnDisk(cfg.StoreDir, opts)
	return s, cfg, err
}
