package config

import (
	"context"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-semantic-release/source-resolver/internal/source"
	"github.com/go-semantic-release/source-resolver/internal/state"
	"github.com/google/go-github/v59/github"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/oauth2"
)

type ResolverConfig struct {
	Stage               string        `envconfig:"STAGE" default:"dev"`
	ProjectID           string        `envconfig:"GOOGLE_CLOUD_PROJECT_ID" default:"chrome-infra-3pp"`
	Port                string        `envconfig:"PORT" default:"8080"`
	BindAddress         string        `envconfig:"BIND_ADDRESS"`
	GitHubToken         string        `envconfig:"GITHUB_TOKEN"`
	GitHubAPIURL        string        `envconfig:"GITHUB_API_URL"`
	CABundle            string        `envconfig:"CA_BUNDLE"`
	HTTPTimeout         time.Duration `envconfig:"HTTP_TIMEOUT" default:"1m"`
	S3Endpoint          string        `envconfig:"S3_ENDPOINT" default:"https://storage.googleapis.com"`
	S3Region            string        `envconfig:"S3_REGION" default:"auto"`
	S3AccessKeyID       string        `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey   string        `envconfig:"S3_SECRET_ACCESS_KEY"`
	SourcesFile         string        `envconfig:"SOURCES_FILE"`
	StateBackend        string        `envconfig:"STATE_BACKEND" default:"file"`
	StateFile           string        `envconfig:"STATE_FILE" default:".3pp-installed.json"`
	AdminAccessToken    string        `envconfig:"ADMIN_ACCESS_TOKEN"`
	DisableRequestCache bool          `envconfig:"DISABLE_REQUEST_CACHE"`
	DisableMetrics      bool          `envconfig:"DISABLE_METRICS"`
	BatchConcurrency    int           `envconfig:"BATCH_CONCURRENCY" default:"4"`
	Version             string        `ignored:"true"`
}

func NewResolverConfigFromEnv() (*ResolverConfig, error) {
	var rCfg ResolverConfig
	err := envconfig.Process("", &rCfg)
	if err != nil {
		return nil, err
	}
	return &rCfg, nil
}

// InvocationConfig carries the inputs of a single protocol invocation.
type InvocationConfig struct {
	Package  string `envconfig:"_3PP_PACKAGE"`
	Version  string `envconfig:"_3PP_VERSION"`
	Platform string `envconfig:"_3PP_PLATFORM"`
}

func NewInvocationConfigFromEnv() (*InvocationConfig, error) {
	var iCfg InvocationConfig
	err := envconfig.Process("", &iCfg)
	if err != nil {
		return nil, err
	}
	return &iCfg, nil
}

func (r *ResolverConfig) GetServerAddr() string {
	return r.BindAddress + ":" + r.Port
}

// LoadRootCAs returns the trust roots configured by CA_BUNDLE, or nil to keep
// the system roots.
func (r *ResolverConfig) LoadRootCAs() (*x509.CertPool, error) {
	if r.CABundle == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(r.CABundle)
	if err != nil {
		return nil, fmt.Errorf("could not read CA bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("CA bundle %s contains no certificates", r.CABundle)
	}
	return pool, nil
}

func (r *ResolverConfig) CreateHTTPClient() (*http.Client, error) {
	rootCAs, err := r.LoadRootCAs()
	if err != nil {
		return nil, err
	}
	return source.NewHTTPClient(r.HTTPTimeout, rootCAs), nil
}

func (r *ResolverConfig) CreateGitHubClient(httpClient *http.Client) (*github.Client, error) {
	ghHTTPClient := httpClient
	if r.GitHubToken != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		ghHTTPClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: r.GitHubToken}))
		ghHTTPClient.Timeout = httpClient.Timeout
	}
	ghClient := github.NewClient(ghHTTPClient)
	if r.GitHubAPIURL != "" {
		return ghClient.WithEnterpriseURLs(r.GitHubAPIURL, r.GitHubAPIURL)
	}
	return ghClient, nil
}

func (r *ResolverConfig) CreateS3Client(ctx context.Context, httpClient *http.Client) (*s3.Client, error) {
	var credentialsProvider aws.CredentialsProvider = aws.AnonymousCredentials{}
	if r.S3AccessKeyID != "" {
		credentialsProvider = credentials.NewStaticCredentialsProvider(
			r.S3AccessKeyID,
			r.S3SecretAccessKey,
			"",
		)
	}
	s3Cfg, err := awsConfig.LoadDefaultConfig(ctx,
		awsConfig.WithRegion(r.S3Region),
		awsConfig.WithHTTPClient(httpClient),
		// upstream failures are reported, never retried
		awsConfig.WithRetryMaxAttempts(1),
		awsConfig.WithCredentialsProvider(credentialsProvider),
	)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(s3Cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(r.S3Endpoint)
		o.UsePathStyle = true
	}), nil
}

// Clients are the upstream clients shared by all sources of a registry.
type Clients struct {
	HTTP   *http.Client
	GitHub *github.Client
	S3     s3.ListObjectsV2APIClient
}

func (r *ResolverConfig) CreateClients(ctx context.Context) (*Clients, error) {
	httpClient, err := r.CreateHTTPClient()
	if err != nil {
		return nil, err
	}
	ghClient, err := r.CreateGitHubClient(httpClient)
	if err != nil {
		return nil, err
	}
	s3Client, err := r.CreateS3Client(ctx, httpClient)
	if err != nil {
		return nil, err
	}
	return &Clients{HTTP: httpClient, GitHub: ghClient, S3: s3Client}, nil
}

// LoadSources returns the sources of SOURCES_FILE or the built-in sources.
func (r *ResolverConfig) LoadSources() ([]*SourceConfig, error) {
	if r.SourcesFile == "" {
		return Sources, nil
	}
	return LoadSourcesFile(r.SourcesFile)
}

const (
	StateBackendMemory    = "memory"
	StateBackendFile      = "file"
	StateBackendFirestore = "firestore"
)

// CreateStateStore returns the configured installed-version store and a
// function releasing its resources.
func (r *ResolverConfig) CreateStateStore(ctx context.Context) (state.Store, func() error, error) {
	noop := func() error { return nil }
	switch r.StateBackend {
	case StateBackendMemory:
		return state.NewMemoryStore(), noop, nil
	case StateBackendFile:
		if r.StateFile == "" {
			return nil, nil, fmt.Errorf("STATE_FILE is required for the file state backend")
		}
		return state.NewFileStore(r.StateFile), noop, nil
	case StateBackendFirestore:
		db, err := firestore.NewClient(ctx, r.ProjectID)
		if err != nil {
			return nil, nil, err
		}
		state.CollectionPrefix = r.Stage
		return state.NewFirestoreStore(db), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown state backend %q", r.StateBackend)
	}
}
