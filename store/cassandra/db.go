// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package cassandra

import (
	"context"
	"errors"
	"time"

	"emperror.dev/emperror"
	"github.com/gocql/gocql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/arethusa/model"
	"github.com/xmidt-org/arethusa/store"
	"github.com/xmidt-org/arethusa/store/db/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultOpTimeout             = time.Duration(10) * time.Second
	defaultDatabase              = "arethusa"
	defaultNumRetries            = 0
	defaultWaitTimeMult          = 1
	defaultMaxNumberConnsPerHost = 2

	pingInterval = 5 * time.Second
)

type Config struct {
	// Hosts to connect to. Must have at least one
	Hosts []string

	// Database aka Keyspace for cassandra
	Database string

	// OpTimeout
	OpTimeout time.Duration

	// SSLRootCert used for enabling tls to the cluster. SSLKey, and SSLCert must also be set.
	SSLRootCert string
	// SSLKey used for enabling tls to the cluster. SSLRootCert, and SSLCert must also be set.
	SSLKey string
	// SSLCert used for enabling tls to the cluster. SSLRootCert, and SSLKey must also be set.
	SSLCert string
	// If you want to verify the hostname and server cert (like a wildcard for cass cluster) then you should turn this on
	// This option is basically the inverse of InSecureSkipVerify
	// See InSecureSkipVerify in http://golang.org/pkg/crypto/tls/ for more info
	EnableHostVerification bool

	// Username to authenticate into the cluster. Password must also be provided.
	Username string
	// Password to authenticate into the cluster. Username must also be provided.
	Password string

	// NumRetries for connecting to the db
	NumRetries int

	// WaitTimeMult the amount of time to wait before retrying to connect to the db
	WaitTimeMult time.Duration

	// MaxConnsPerHost max number of connections per host
	MaxConnsPerHost int
}

type CassandraClient struct {
	client   dbStore
	config   Config
	logger   *zap.Logger
	measures metric.Measures
}

func NewCassandra(config Config, measures metric.Measures, lc fx.Lifecycle, logger *zap.Logger) (store.S, error) {
	client, err := CreateCassandraClient(config, measures, logger)
	if err != nil {
		return nil, err
	}
	ticker := doEvery(pingInterval, func(_ time.Time) {
		if err := client.Ping(); err != nil {
			logger.Error("ping failed", zap.Error(err))
		}
	})
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			ticker.Stop()
			client.Close()
			return nil
		},
	})
	return client, nil
}

func doEvery(d time.Duration, f func(time.Time)) *time.Ticker {
	ticker := time.NewTicker(d)
	go func() {
		for x := range ticker.C {
			f(x)
		}
	}()
	return ticker
}

func CreateCassandraClient(config Config, measures metric.Measures, logger *zap.Logger) (*CassandraClient, error) {
	if len(config.Hosts) == 0 {
		return nil, errors.New("number of hosts must be > 0")
	}

	validateConfig(&config)

	clusterConfig := gocql.NewCluster(config.Hosts...)
	clusterConfig.Consistency = gocql.LocalQuorum
	clusterConfig.Keyspace = config.Database
	clusterConfig.Timeout = config.OpTimeout
	clusterConfig.NumConns = config.MaxConnsPerHost
	// let the caller's retry loop handle it
	clusterConfig.RetryPolicy = &gocql.SimpleRetryPolicy{NumRetries: 1}
	// setup ssl
	if config.SSLRootCert != "" && config.SSLCert != "" && config.SSLKey != "" {
		clusterConfig.SslOpts = &gocql.SslOptions{
			CertPath:               config.SSLCert,
			KeyPath:                config.SSLKey,
			CaPath:                 config.SSLRootCert,
			EnableHostVerification: config.EnableHostVerification,
		}
	}
	// setup authentication
	if config.Username != "" && config.Password != "" {
		clusterConfig.Authenticator = gocql.PasswordAuthenticator{
			Username: config.Username,
			Password: config.Password,
		}
	}

	session, err := connect(clusterConfig, logger)

	// retry if it fails
	waitTime := 1 * time.Second
	for attempt := 0; attempt < config.NumRetries && err != nil; attempt++ {
		time.Sleep(waitTime)
		session, err = connect(clusterConfig, logger)
		waitTime = waitTime * config.WaitTimeMult
	}
	if err != nil {
		return nil, emperror.WrapWith(err, "Connecting to database failed", "hosts", config.Hosts)
	}

	return &CassandraClient{
		client:   session,
		config:   config,
		logger:   logger,
		measures: measures,
	}, nil
}

func (s *CassandraClient) observe(queryType string, err error) {
	labels := prometheus.Labels{store.TypeLabel: queryType}
	if err != nil {
		s.measures.QueryFailureCount.With(labels).Add(1.0)
		return
	}
	s.measures.QuerySuccessCount.With(labels).Add(1.0)
}

func (s *CassandraClient) Put(ctx context.Context, f model.Faucet) error {
	err := s.client.Put(ctx, f)
	s.observe(store.InsertType, err)
	return err
}

func (s *CassandraClient) Get(ctx context.Context, id string) (model.Faucet, error) {
	f, err := s.client.Get(ctx, id)
	s.observe(store.ReadType, err)
	return f, err
}

func (s *CassandraClient) MarkConsumed(ctx context.Context, id string, at time.Time) error {
	err := s.client.MarkConsumed(ctx, id, at)
	s.observe(store.UpdateType, err)
	return err
}

func (s *CassandraClient) Revoke(ctx context.Context, id string, at time.Time) error {
	err := s.client.Revoke(ctx, id, at)
	s.observe(store.UpdateType, err)
	return err
}

func (s *CassandraClient) LastForFaucet(ctx context.Context, faucetID string) (model.ScanEvent, error) {
	ev, err := s.client.LastForFaucet(ctx, faucetID)
	s.observe(store.ReadType, err)
	return ev, err
}

func (s *CassandraClient) LastForDevice(ctx context.Context, faucetID, device string) (model.ScanEvent, error) {
	ev, err := s.client.LastForDevice(ctx, faucetID, device)
	s.observe(store.ReadType, err)
	return ev, err
}

func (s *CassandraClient) Append(ctx context.Context, ev model.ScanEvent) error {
	err := s.client.Append(ctx, ev)
	s.observe(store.AppendType, err)
	return err
}

func (s *CassandraClient) GetScan(ctx context.Context, scanID string) (model.ScanEvent, error) {
	ev, err := s.client.GetScan(ctx, scanID)
	s.observe(store.ReadType, err)
	return ev, err
}

func (s *CassandraClient) Close() {
	s.client.Close()
}

// Ping is for pinging the database to verify that the connection is still good.
func (s *CassandraClient) Ping() error {
	err := s.client.Ping()
	if err != nil {
		s.measures.QueryFailureCount.With(prometheus.Labels{store.TypeLabel: store.PingType}).Add(1.0)
		return emperror.WrapWith(err, "Pinging connection failed")
	}
	s.measures.QuerySuccessCount.With(prometheus.Labels{store.TypeLabel: store.PingType}).Add(1.0)
	return nil
}

func validateConfig(config *Config) {
	zeroDuration := time.Duration(0) * time.Second

	if config.OpTimeout == zeroDuration {
		config.OpTimeout = defaultOpTimeout
	}

	if config.Database == "" {
		config.Database = defaultDatabase
	}
	if config.NumRetries < 0 {
		config.NumRetries = defaultNumRetries
	}
	if config.WaitTimeMult < 1 {
		config.WaitTimeMult = defaultWaitTimeMult
	}
	if config.MaxConnsPerHost <= 0 {
		config.MaxConnsPerHost = defaultMaxNumberConnsPerHost
	}
}
