package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"

	"github.com/go-semantic-release/source-resolver/internal/batch"
	"github.com/go-semantic-release/source-resolver/internal/config"
	"github.com/go-semantic-release/source-resolver/internal/registry"
	"github.com/go-semantic-release/source-resolver/internal/resolver"
	"github.com/go-semantic-release/source-resolver/internal/state"
	"github.com/go-semantic-release/source-resolver/pkg/manifest"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type app struct {
	log *logrus.Logger
	out io.Writer

	cfg        *config.ResolverConfig
	httpClient *http.Client
	resolver   *resolver.Resolver
	store      state.Store
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "source-resolver",
		Short:   "Resolve the latest version and download urls of third-party packages",
		Version: version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if must(cmd.Flags().GetBool("verbose")) {
				a.log.SetLevel(logrus.DebugLevel)
			}
			return a.setup(cmd)
		},
	}
	cmd.SetOut(a.out)
	cmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
	cmd.PersistentFlags().String("sources-file", "", "YAML file with the source configuration (default: built-in sources)")
	cmd.PersistentFlags().SortFlags = false

	cmd.AddCommand(
		newLatestCmd(a),
		newGetURLCmd(a),
		newListCmd(a),
		newCheckCmd(a),
		newDownloadCmd(a),
	)
	return cmd
}

// setup builds the resolver from the environment unless it was provided.
func (a *app) setup(cmd *cobra.Command) error {
	if a.resolver != nil {
		return nil
	}
	cfg, err := config.NewResolverConfigFromEnv()
	if err != nil {
		return err
	}
	if sourcesFile := must(cmd.Flags().GetString("sources-file")); sourcesFile != "" {
		cfg.SourcesFile = sourcesFile
	}
	a.cfg = cfg

	clients, err := cfg.CreateClients(cmd.Context())
	if err != nil {
		return err
	}
	a.httpClient = clients.HTTP
	sourceConfigs, err := cfg.LoadSources()
	if err != nil {
		return err
	}
	reg, err := registry.NewFromConfig(sourceConfigs, clients)
	if err != nil {
		return err
	}
	a.resolver = resolver.New(a.log, reg)
	return nil
}

// packageName returns the package of an invocation, given as argument or
// by _3PP_PACKAGE.
func packageName(args []string, iCfg *config.InvocationConfig) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if iCfg.Package != "" {
		return iCfg.Package, nil
	}
	return "", errors.New("no package given (argument or _3PP_PACKAGE)")
}

func newLatestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "latest [package]",
		Short: "Print the latest upstream version of a package",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			iCfg, err := config.NewInvocationConfigFromEnv()
			if err != nil {
				return err
			}
			name, err := packageName(args, iCfg)
			if err != nil {
				return err
			}
			v, err := a.resolver.CheckLatest(cmd.Context(), name)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, v)
			return err
		},
	}
}

// invocationTarget returns the version and platform of an invocation. Flags
// take precedence over _3PP_VERSION and _3PP_PLATFORM.
func invocationTarget(cmd *cobra.Command, iCfg *config.InvocationConfig) (string, manifest.Platform, error) {
	v := iCfg.Version
	if f := must(cmd.Flags().GetString("version")); f != "" {
		v = f
	}
	if v == "" {
		return "", manifest.Platform{}, errors.New("no version given (--version or _3PP_VERSION)")
	}
	p := iCfg.Platform
	if f := must(cmd.Flags().GetString("platform")); f != "" {
		p = f
	}
	if p == "" {
		return "", manifest.Platform{}, errors.New("no platform given (--platform or _3PP_PLATFORM)")
	}
	platform, err := manifest.ParsePlatform(p)
	if err != nil {
		return "", manifest.Platform{}, err
	}
	return v, platform, nil
}

func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().String("version", "", "package version (default: $_3PP_VERSION)")
	cmd.Flags().String("platform", "", "target platform as <os>-<arch> (default: $_3PP_PLATFORM)")
}

func newGetURLCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get_url [package]",
		Short: "Print the fetch manifest of a package version for a platform",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			iCfg, err := config.NewInvocationConfigFromEnv()
			if err != nil {
				return err
			}
			name, err := packageName(args, iCfg)
			if err != nil {
				return err
			}
			v, platform, err := invocationTarget(cmd, iCfg)
			if err != nil {
				return err
			}
			m, err := a.resolver.Resolve(cmd.Context(), name, v, platform)
			if err != nil {
				return err
			}
			// encode completely before writing so a failure never leaves partial output
			raw, err := json.Marshal(m)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, string(raw))
			return err
		},
	}
	addTargetFlags(cmd)
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the configured sources",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			for _, s := range a.resolver.Registry().Sources() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name(), s.Type(), strings.Join(s.Platforms().Strings(), ","))
			}
			return tw.Flush()
		},
	}
}

func (a *app) stateStore(cmd *cobra.Command) (state.Store, func() error, error) {
	if a.store != nil {
		return a.store, func() error { return nil }, nil
	}
	cfg := a.cfg
	if cfg == nil {
		var err error
		if cfg, err = config.NewResolverConfigFromEnv(); err != nil {
			return nil, nil, err
		}
	}
	return cfg.CreateStateStore(cmd.Context())
}

func newCheckCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compare the latest versions with the installed ones and resolve the outdated packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			platform, err := manifest.ParsePlatform(must(cmd.Flags().GetString("platform")))
			if err != nil {
				return err
			}
			store, closeStore, err := a.stateStore(cmd)
			if err != nil {
				return err
			}
			defer func() {
				if cErr := closeStore(); cErr != nil {
					a.log.Error(cErr)
				}
			}()

			updates, syncErr := a.resolver.Sync(cmd.Context(), platform, store, must(cmd.Flags().GetBool("record")))
			raw, err := json.MarshalIndent(updates, "", "  ")
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintln(a.out, string(raw)); err != nil {
				return err
			}
			return syncErr
		},
	}
	cmd.Flags().String("platform", "", "target platform as <os>-<arch>")
	cmd.Flags().Bool("record", false, "record resolved versions as installed")
	_ = cmd.MarkFlagRequired("platform")
	return cmd
}

func newDownloadCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download [package]",
		Short: "Download the artifacts of a package version into a tar.gz archive",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			iCfg, err := config.NewInvocationConfigFromEnv()
			if err != nil {
				return err
			}
			name, err := packageName(args, iCfg)
			if err != nil {
				return err
			}
			v, platform, err := invocationTarget(cmd, iCfg)
			if err != nil {
				return err
			}
			m, err := a.resolver.Resolve(cmd.Context(), name, v, platform)
			if err != nil {
				return err
			}
			a.log.Infof("downloading %d files of %s@%s", len(m.URL), name, v)
			fileName, checksum, err := batch.NewDownloader(a.log, a.httpClient).
				DownloadFilesAndTarGz(cmd.Context(), name, v, m, must(cmd.Flags().GetString("output")))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.out, "%s  %s\n", checksum, fileName)
			return err
		},
	}
	addTargetFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "archive path (default: a temporary file)")
	return cmd
}
