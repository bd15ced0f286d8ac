// Package resolver drives the registered sources: it answers latest and
// get_url queries and compares upstream versions with the installed ones.
package resolver

import (
	"context"
	"fmt"

	"github.com/go-semantic-release/source-resolver/internal/metrics"
	"github.com/go-semantic-release/source-resolver/internal/registry"
	"github.com/go-semantic-release/source-resolver/internal/source"
	"github.com/go-semantic-release/source-resolver/internal/state"
	"github.com/go-semantic-release/source-resolver/pkg/manifest"
	"github.com/sirupsen/logrus"
)

const (
	OperationLatest = "latest"
	OperationGetURL = "get_url"
)

// Resolver does not cache or retry. Every call goes to the source and its
// error is returned unchanged.
type Resolver struct {
	log      *logrus.Logger
	registry *registry.Registry
}

func New(log *logrus.Logger, reg *registry.Registry) *Resolver {
	return &Resolver{
		log:      log,
		registry: reg,
	}
}

func (r *Resolver) Registry() *registry.Registry {
	return r.registry
}

func (r *Resolver) CheckLatest(ctx context.Context, name string) (string, error) {
	s, err := r.registry.Find(name)
	if err != nil {
		return "", err
	}
	r.log.Debugf("checking latest version of %s (%s)", s.Name(), s.Type())
	version, err := s.Latest(ctx)
	metrics.RecordResolution(ctx, s.Name(), OperationLatest, source.Kind(err))
	if err != nil {
		return "", err
	}
	r.log.Debugf("latest version of %s is %s", s.Name(), version)
	return version, nil
}

func (r *Resolver) Resolve(ctx context.Context, name, version string, platform manifest.Platform) (*manifest.FetchManifest, error) {
	s, err := r.registry.Find(name)
	if err != nil {
		return nil, err
	}
	if version == "" {
		return nil, fmt.Errorf("version is required")
	}
	if platform.IsZero() {
		return nil, fmt.Errorf("platform is required")
	}
	r.log.Debugf("resolving %s@%s for %s", s.Name(), version, platform)
	m, err := s.GetURL(ctx, version, platform)
	if err == nil {
		if vErr := m.Validate(); vErr != nil {
			err = fmt.Errorf("%s returned an invalid manifest: %w", s.Name(), vErr)
		}
	}
	metrics.RecordResolution(ctx, s.Name(), OperationGetURL, source.Kind(err))
	if err != nil {
		return nil, err
	}
	return m, nil
}

type Update struct {
	Source    string                  `json:"source"`
	Platform  string                  `json:"platform"`
	Installed string                  `json:"installed,omitempty"`
	Latest    string                  `json:"latest,omitempty"`
	UpToDate  bool                    `json:"up_to_date"`
	Manifest  *manifest.FetchManifest `json:"manifest,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

// Sync compares the latest version of every source supporting platform with
// the version recorded in store and resolves the manifest of each outdated
// source. A failing source does not stop the others; the returned error
// reports how many failed. With record set, successfully resolved versions
// are written back to store.
func (r *Resolver) Sync(ctx context.Context, platform manifest.Platform, store state.Store, record bool) ([]*Update, error) {
	updates := make([]*Update, 0)
	failed := 0
	for _, s := range r.registry.Sources() {
		if !s.Platforms().Has(platform) {
			r.log.Debugf("skipping %s: %s is not supported", s.Name(), platform)
			continue
		}
		u := &Update{Source: s.Name(), Platform: platform.String()}
		updates = append(updates, u)
		if err := r.syncSource(ctx, u, platform, store, record); err != nil {
			r.log.Warnf("failed to sync %s: %v", s.Name(), err)
			u.Error = err.Error()
			failed++
		}
	}
	if failed > 0 {
		return updates, fmt.Errorf("%d of %d sources failed to sync", failed, len(updates))
	}
	return updates, nil
}

func (r *Resolver) syncSource(ctx context.Context, u *Update, platform manifest.Platform, store state.Store, record bool) error {
	installed, err := store.InstalledVersion(ctx, u.Source, platform)
	if err != nil {
		return fmt.Errorf("could not read installed version: %w", err)
	}
	u.Installed = installed

	latest, err := r.CheckLatest(ctx, u.Source)
	if err != nil {
		return err
	}
	u.Latest = latest
	if installed == latest {
		u.UpToDate = true
		return nil
	}

	r.log.Infof("%s is outdated (%q -> %q)", u.Source, installed, latest)
	m, err := r.Resolve(ctx, u.Source, latest, platform)
	if err != nil {
		return err
	}
	u.Manifest = m
	if !record {
		return nil
	}
	if err := store.RecordInstalled(ctx, u.Source, platform, latest); err != nil {
		return fmt.Errorf("could not record installed version: %w", err)
	}
	return nil
}
