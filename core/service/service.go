// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package service assembles a gateway from environment variables. It is shared by
the HTTP server and the lambda function.

The gateway configuration is read from the file GATEWAY_CONFIG, see package gateway
for its format. Example for a local server backed by SQLite:

	STORE=sqlite DSN=file:tablegate.db GATEWAY_CONFIG=gateway.json gatewayd
*/
package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joeshaw/envdecode"

	"github.com/relabs-tech/tablegate/core"
	"github.com/relabs-tech/tablegate/core/csql"
	"github.com/relabs-tech/tablegate/core/gateway"
	"github.com/relabs-tech/tablegate/core/logger"
	"github.com/relabs-tech/tablegate/core/metrics"
	"github.com/relabs-tech/tablegate/core/notify"
	"github.com/relabs-tech/tablegate/core/schema"
	"github.com/relabs-tech/tablegate/core/store"
)

// Service holds the configuration of the gateway service
type Service struct {
	Listen           string `env:"LISTEN,default=:3000" description:"listen address of the HTTP server"`
	Store            string `env:"STORE,default=memory" description:"the table store: memory, postgres or sqlite"`
	DSN              string `env:"DSN,optional" description:"the connection string for postgres or sqlite"`
	PostgresPassword string `env:"POSTGRES_PASSWORD,optional" description:"password to the Postgres DB, appended to the DSN"`
	Schema           string `env:"SCHEMA,default=tablegate" description:"the Postgres schema of the tables"`
	UpdateSchema     bool   `env:"UPDATE_SCHEMA,default=true" description:"create missing tables of configured resources"`
	GatewayConfig    string `env:"GATEWAY_CONFIG,required" description:"path to the JSON gateway configuration"`
	SchemaDir        string `env:"SCHEMA_DIR,optional" description:"directory with JSON schemas for schema_id"`
	Notifier         string `env:"NOTIFIER,default=none" description:"change notifications: none, log, kafka or sqs"`
	KafkaBrokers     string `env:"KAFKA_BROKERS,optional" description:"comma separated list of Kafka brokers"`
	KafkaTopic       string `env:"KAFKA_TOPIC,default=tablegate_changes" description:"the Kafka topic for change notifications"`
	SQSQueueURL      string `env:"SQS_QUEUE_URL,optional" description:"the SQS queue for change notifications"`
	AWSRegion        string `env:"AWS_REGION,optional" description:"the AWS region of the SQS queue"`
	AWSAccessID      string `env:"AWS_ACCESS_ID,optional" description:"static AWS credentials, the default chain is used otherwise"`
	AWSAccessKey     string `env:"AWS_ACCESS_KEY,optional" description:"static AWS credentials"`
	Metrics          bool   `env:"METRICS,default=true" description:"collect prometheus metrics"`
	LogLevel         string `env:"LOG_LEVEL,default=info" description:"logrus log level"`
}

// Runtime is an assembled gateway with its collaborators
type Runtime struct {
	Gateway *gateway.Gateway
	// Metrics is nil when metrics are disabled
	Metrics *metrics.Metrics
	closers []io.Closer
}

// Close releases the store and the notifier
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			logger.Default().WithError(err).Errorln("cannot close")
		}
	}
}

// FromEnv decodes the service configuration from the environment
func FromEnv() (*Service, error) {
	s := &Service{}
	if err := envdecode.Decode(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Build assembles the gateway
func (s *Service) Build(ctx context.Context) (*Runtime, error) {
	logger.InitLogger(logger.ParseLevel(s.LogLevel))

	config, err := os.ReadFile(s.GatewayConfig)
	if err != nil {
		return nil, fmt.Errorf("cannot read gateway configuration: %w", err)
	}

	rt := &Runtime{}
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	backend, err := s.openStore(rt)
	if err != nil {
		return nil, err
	}

	var validator *schema.Validator
	if s.SchemaDir != "" {
		validator, err = schema.NewValidatorFromFS(os.DirFS(s.SchemaDir))
		if err != nil {
			return nil, fmt.Errorf("cannot load schemas from %s: %w", s.SchemaDir, err)
		}
	}

	notifier, err := s.openNotifier(ctx, rt)
	if err != nil {
		return nil, err
	}

	builder := &gateway.Builder{
		Config:       string(config),
		Backend:      backend,
		UpdateSchema: s.UpdateSchema,
		Notifier:     notifier,
		Validator:    validator,
	}
	if s.Metrics {
		rt.Metrics, err = metrics.New(nil)
		if err != nil {
			return nil, err
		}
		builder.Observer = rt.Metrics
	}

	rt.Gateway, err = gateway.New(builder)
	if err != nil {
		return nil, err
	}
	ok = true
	return rt, nil
}

func (s *Service) openStore(rt *Runtime) (store.Backend, error) {
	switch s.Store {
	case "memory":
		logger.Default().Warnln("using the memory store, records are lost on exit")
		return store.NewMemory(), nil
	case "postgres":
		dsn := s.DSN
		if s.PostgresPassword != "" {
			dsn += " password=" + s.PostgresPassword
		}
		db, err := csql.OpenWithSchema(dsn, s.Schema)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, db)
		return store.NewPostgres(db), nil
	case "sqlite":
		if s.DSN == "" {
			return nil, fmt.Errorf("DSN is required for the sqlite store")
		}
		sqlite, err := store.OpenSQLite(s.DSN)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, sqlite)
		return sqlite, nil
	default:
		return nil, fmt.Errorf("unknown store '%s'", s.Store)
	}
}

func (s *Service) openNotifier(ctx context.Context, rt *Runtime) (core.Notifier, error) {
	switch s.Notifier {
	case "none":
		return nil, nil
	case "log":
		return notify.Log{}, nil
	case "kafka":
		var brokers []string
		for _, broker := range strings.Split(s.KafkaBrokers, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				brokers = append(brokers, broker)
			}
		}
		k, err := notify.NewKafka(notify.KafkaConfiguration{Brokers: brokers, Topic: s.KafkaTopic})
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, k)
		return k, nil
	case "sqs":
		q, err := notify.NewSQS(ctx, notify.SQSConfiguration{
			QueueURL:  s.SQSQueueURL,
			AWSRegion: s.AWSRegion,
			AccessID:  s.AWSAccessID,
			AccessKey: s.AWSAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return q, nil
	default:
		return nil, fmt.Errorf("unknown notifier '%s'", s.Notifier)
	}
}
