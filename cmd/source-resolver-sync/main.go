package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-semantic-release/source-resolver/pkg/client"
	"github.com/go-semantic-release/source-resolver/pkg/manifest"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "dev"

var defaultServerURLs = []string{"http://127.0.0.1:8080"}

func main() {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	cmd := newCmd(log, os.Stdout)
	if err := cmd.Execute(); err != nil {
		log.Errorf("ERROR: %v", err)
		os.Exit(1)
	}
}

func newCmd(log *logrus.Logger, out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "source-resolver-sync",
		Short:   "Report outdated packages of one or more resolver servers",
		Version: version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(log, out, cmd, args)
		},
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	cmd.PersistentFlags().StringArrayP("server-url", "s", defaultServerURLs, "the resolver server URL")
	cmd.PersistentFlags().String("admin-access-token", os.Getenv("SOURCE_RESOLVER_ADMIN_ACCESS_TOKEN"), "admin access token, required with --record")
	cmd.PersistentFlags().StringP("platform", "p", "linux-amd64", "the target platform")
	cmd.PersistentFlags().StringArray("source", nil, "limit to these sources (default: all)")
	cmd.PersistentFlags().Bool("record", false, "record the latest versions as installed")
	cmd.PersistentFlags().SortFlags = false
	return cmd
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

type outdatedSource struct {
	Server    string `json:"server"`
	Source    string `json:"source"`
	Installed string `json:"installed"`
	Latest    string `json:"latest"`
}

func syncServer(ctx context.Context, log *logrus.Logger, c *client.Client, serverURL string, platform manifest.Platform, sources []string, adminAccessToken string) ([]outdatedSource, error) {
	if len(sources) == 0 {
		infos, err := c.ListSources(ctx)
		if err != nil {
			return nil, err
		}
		for _, info := range infos {
			for _, p := range info.Platforms {
				if p == platform.String() {
					sources = append(sources, info.Name)
					break
				}
			}
		}
	}
	if len(sources) == 0 {
		log.Warnf("%s has no sources for %s", serverURL, platform)
		return nil, nil
	}

	res, err := c.BatchLatest(ctx, sources...)
	if err != nil {
		return nil, err
	}
	for name, msg := range res.Errors {
		log.Errorf("failed to get latest version of %s: %s", name, msg)
	}

	outdated := make([]outdatedSource, 0)
	for _, name := range sources {
		latest, ok := res.Versions[name]
		if !ok {
			continue
		}
		installed, err := c.GetInstalled(ctx, name, platform)
		if err != nil {
			return nil, err
		}
		if installed == latest {
			continue
		}
		outdated = append(outdated, outdatedSource{Server: serverURL, Source: name, Installed: installed, Latest: latest})
		if adminAccessToken == "" {
			continue
		}
		log.Infof("recording %s@%s for %s", name, latest, platform)
		if err := c.RecordInstalled(ctx, adminAccessToken, name, platform, latest); err != nil {
			return nil, err
		}
	}
	if len(res.Errors) > 0 {
		return outdated, fmt.Errorf("%d sources failed", len(res.Errors))
	}
	return outdated, nil
}

func run(log *logrus.Logger, out io.Writer, cmd *cobra.Command, _ []string) error {
	log.Infof("starting source-resolver-sync (version=%s)", version)
	serverURLs := must(cmd.PersistentFlags().GetStringArray("server-url"))
	if len(serverURLs) == 0 {
		return errors.New("no server URLs provided")
	}
	platform, err := manifest.ParsePlatform(must(cmd.PersistentFlags().GetString("platform")))
	if err != nil {
		return err
	}
	adminAccessToken := ""
	if must(cmd.PersistentFlags().GetBool("record")) {
		adminAccessToken = must(cmd.PersistentFlags().GetString("admin-access-token"))
		if adminAccessToken == "" {
			return errors.New("no admin access token provided")
		}
	}
	sources := must(cmd.PersistentFlags().GetStringArray("source"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outdated := make([]outdatedSource, 0)
	failed := 0
	for _, serverURL := range serverURLs {
		serverURL = strings.TrimSuffix(serverURL, "/")
		log.Infof("checking resolver server: %s", serverURL)
		res, err := syncServer(ctx, log, client.New(serverURL), serverURL, platform, sources, adminAccessToken)
		if err != nil {
			log.Errorf("failed to sync %s: %v", serverURL, err)
			failed++
		}
		outdated = append(outdated, res...)
	}

	raw, err := json.MarshalIndent(outdated, "", "  ")
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(out, string(raw)); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d servers failed", failed, len(serverURLs))
	}
	return nil
}
