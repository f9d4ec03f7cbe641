// Command harmonize runs a host process that loads wasm mods from a
// directory, compiles their combined schedules, and watches the
// directory for changes, reloading affected mods as files appear or
// change (spec.md §6, grounded on the original file_watcher.rs design).
package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/harmonize-run/harmonize"
	"github.com/harmonize-run/harmonize/api"
	"github.com/harmonize-run/harmonize/internal/manifest"
	"github.com/harmonize-run/harmonize/internal/watch"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "harmonize",
		Short: "Load and run WebAssembly mods against a scheduled ECS runtime",
	}
	root.PersistentFlags().String("mods-dir", "./mods", "directory to load mod pairs (.manifest/.wasm) from")
	root.PersistentFlags().String("log-level", "info", "log level: trace, debug, info, warn, error")
	_ = v.BindPFlags(root.PersistentFlags())
	v.SetEnvPrefix("HARMONIZE")
	v.AutomaticEnv()

	root.AddCommand(newWatchCmd(v))
	root.AddCommand(newDumpCmd())
	return root
}

func newWatchCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Load every mod pair in --mods-dir and reload on change",
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := uuid.New()
			log := newLogger(v.GetString("log-level")).WithField("session", sessionID)

			ctx := cmd.Context()
			rt := harmonize.New(ctx, harmonize.Config{
				Labels: []api.StableId{api.LabelStart, api.LabelUpdate},
				Logger: log,
			})
			defer rt.Close(ctx)

			dir := v.GetString("mods-dir")
			w, err := watch.New(dir, log)
			if err != nil {
				return fmt.Errorf("starting mod watcher: %w", err)
			}
			defer w.Close()

			log.WithField("dir", dir).Info("watching for mods")
			return w.Run(ctx, func(manifestBytes, wasmBytes []byte) error {
				if _, err := rt.LoadMod(ctx, manifestBytes, wasmBytes); err != nil {
					log.WithError(err).Warn("mod failed to load")
					return nil // keep watching; a bad mod shouldn't stop the process
				}
				return rt.RebuildSchedules()
			})
		},
	}
}

func newDumpCmd() *cobra.Command {
	var manifestPath string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print a human-readable decode of a mod manifest file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(manifestPath)
			if err != nil {
				return err
			}
			return dumpManifest(cmd, data)
		},
	}
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "path to a .manifest file")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}

func dumpManifest(cmd *cobra.Command, data []byte) error {
	text, err := decodeAndDump(data)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}

func decodeAndDump(data []byte) (string, error) {
	m, err := manifest.Decode(data)
	if err != nil {
		return "", err
	}
	return manifest.Dump(m), nil
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}
