package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"github.com/LatVAlY/specWise/internal/config"
)

type Option func(*IntegrationSuite)

// WithWeaviate also starts a Weaviate container.
func WithWeaviate() Option {
	return func(s *IntegrationSuite) { s.wantWeaviate = true }
}

// WithNSQ also starts an nsqd container.
func WithNSQ() Option {
	return func(s *IntegrationSuite) { s.wantNSQ = true }
}

type IntegrationSuite struct {
	T        *testing.T
	DB       *sql.DB
	Weaviate *weaviate.Client
	NSQ      *nsq.Producer
	NSQDAddr string

	wantWeaviate bool
	wantNSQ      bool

	pgHost string
	pgPort int

	weaviateHost string
	nsqdHTTP     string

	pgContainer       *postgres.PostgresContainer
	weaviateContainer testcontainers.Container
	nsqContainer      testcontainers.Container
}

func NewIntegrationSuite(t *testing.T, opts ...Option) *IntegrationSuite {
	s := &IntegrationSuite{T: t}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MigrationPath points at the repository migrations regardless of the test's working directory.
func MigrationPath() string {
	_, b, _, _ := runtime.Caller(0)
	return fmt.Sprintf("file://%s/../../migrations", filepath.Dir(b))
}

func (s *IntegrationSuite) Setup() {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("specwise_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(s.T, err)
	s.pgContainer = pgContainer

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(s.T, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(s.T, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(s.T, err)
	s.pgHost, s.pgPort = host, port.Int()

	s.DB, err = sql.Open("postgres", connStr)
	require.NoError(s.T, err)

	m, err := migrate.New(MigrationPath(), connStr)
	require.NoError(s.T, err)
	require.NoError(s.T, m.Up())

	if s.wantWeaviate {
		s.startWeaviate(ctx)
	}
	if s.wantNSQ {
		s.startNSQ(ctx)
	}
}

func (s *IntegrationSuite) startWeaviate(ctx context.Context) {
	req := testcontainers.ContainerRequest{
		Image:        "semitechnologies/weaviate:latest",
		ExposedPorts: []string{"8080/tcp", "50051/tcp"},
		Env: map[string]string{
			"AUTHENTICATION_ANONYMOUS_ACCESS_ENABLED": "true",
			"DEFAULT_VECTORIZER_MODULE":               "none",
			"PERSISTENCE_DATA_PATH":                   "/var/lib/weaviate",
		},
		WaitingFor: wait.ForHTTP("/v1/meta").WithPort("8080/tcp").WithStartupTimeout(60 * time.Second),
	}
	weaviateC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(s.T, err)
	s.weaviateContainer = weaviateC

	host, err := weaviateC.Host(ctx)
	require.NoError(s.T, err)
	port, err := weaviateC.MappedPort(ctx, "8080")
	require.NoError(s.T, err)

	s.weaviateHost = fmt.Sprintf("%s:%s", host, port.Port())
	s.Weaviate, err = weaviate.NewClient(weaviate.Config{
		Host:   s.weaviateHost,
		Scheme: "http",
	})
	require.NoError(s.T, err)
}

func (s *IntegrationSuite) startNSQ(ctx context.Context) {
	req := testcontainers.ContainerRequest{
		Image:        "nsqio/nsq:v1.3.0",
		ExposedPorts: []string{"4150/tcp", "4151/tcp"},
		Cmd:          []string{"/nsqd", "--broadcast-address=localhost"},
		WaitingFor:   wait.ForLog("TCP: listening on").WithStartupTimeout(60 * time.Second),
	}
	nsqC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(s.T, err)
	s.nsqContainer = nsqC

	host, err := nsqC.Host(ctx)
	require.NoError(s.T, err)
	port, err := nsqC.MappedPort(ctx, "4150")
	require.NoError(s.T, err)

	httpPort, err := nsqC.MappedPort(ctx, "4151")
	require.NoError(s.T, err)

	s.NSQDAddr = fmt.Sprintf("%s:%s", host, port.Port())
	s.nsqdHTTP = fmt.Sprintf("%s:%s", host, httpPort.Port())
	s.NSQ, err = nsq.NewProducer(s.NSQDAddr, nsq.NewConfig())
	require.NoError(s.T, err)
}

// GetAppConfig returns a config pointing at the suite's containers.
func (s *IntegrationSuite) GetAppConfig() *config.Config {
	return &config.Config{
		DBHost:                     s.pgHost,
		DBPort:                     s.pgPort,
		DBUser:                     "test",
		DBPass:                     "test",
		DBName:                     "specwise_test",
		WeaviateHost:               s.weaviateHost,
		WeaviateScheme:             "http",
		NSQDHost:                   s.NSQDAddr,
		NSQDHTTP:                   s.nsqdHTTP,
		NSQMsgTimeout:              time.Minute,
		EnableAPI:                  true,
		EnableProcessWorker:        true,
		WorkerConcurrency:          1,
		MigrationPath:              MigrationPath(),
		CompletionProvider:         config.ProviderGemini,
		CompletionRPM:              0,
		GeminiModel:                "gemini-2.0-flash",
		GeminiEmbeddingModel:       "gemini-embedding-001",
		WindowSize:                 2,
		ExtractMaxRetries:          1,
		ExtractConcurrency:         2,
		ConfidenceThreshold:        0.5,
		ReferencePolicy:            "same_parent_first",
		SearchAlpha:                0.5,
		SearchTopK:                 10,
		StuckJobSweep:              "@every 5m",
		StuckJobTimeout:            2 * time.Hour,
		ServerPort:                 8081,
		LogLevel:                   "debug",
		BootstrapRetryAttempts:     5,
		BootstrapRetryDelaySeconds: 1,
	}
}

// ConsumeOne waits up to ten seconds for one message on topic and returns
// it, or nil on timeout.
func (s *IntegrationSuite) ConsumeOne(topic string) *nsq.Message {
	consumer, err := nsq.NewConsumer(topic, "test", nsq.NewConfig())
	require.NoError(s.T, err)
	defer consumer.Stop()

	msgs := make(chan *nsq.Message, 1)
	consumer.AddHandler(nsq.HandlerFunc(func(m *nsq.Message) error {
		select {
		case msgs <- m:
		default:
		}
		return nil
	}))
	require.NoError(s.T, consumer.ConnectToNSQD(s.NSQDAddr))

	select {
	case m := <-msgs:
		return m
	case <-time.After(10 * time.Second):
		return nil
	}
}

func (s *IntegrationSuite) Teardown() {
	ctx := context.Background()
	if s.NSQ != nil {
		s.NSQ.Stop()
	}
	if s.DB != nil {
		s.DB.Close()
	}
	if s.pgContainer != nil {
		s.pgContainer.Terminate(ctx)
	}
	if s.weaviateContainer != nil {
		s.weaviateContainer.Terminate(ctx)
	}
	if s.nsqContainer != nil {
		s.nsqContainer.Terminate(ctx)
	}
}
