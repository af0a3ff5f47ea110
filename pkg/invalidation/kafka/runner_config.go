package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

type Driver string

const (
	DriverNone  Driver = "none"
	DriverKafka Driver = "kafka"
)

// TLSConfig enables TLS to the brokers. CaFile alone verifies the brokers;
// CertFile and KeyFile together add a client certificate.
type TLSConfig struct {
	Enable     bool
	CaFile     string
	CertFile   string
	KeyFile    string
	SkipVerify bool
}

// SASLConfig supports PLAIN only. SCRAM needs a client generator and
// OAUTHBEARER a token provider, neither of which is configured here.
type SASLConfig struct {
	Enable    bool
	Mechanism string
	Username  string
	Password  string
}

type InvalidationConfig struct {
	Enabled bool
	Driver  Driver

	Brokers  []string
	Topic    string
	GroupID  string
	ClientID string

	SessionTimeout   time.Duration
	Heartbeat        time.Duration
	RebalanceTimeout time.Duration
	InitialOldest    bool

	TLS  TLSConfig
	SASL SASLConfig
}

func FromEnv() InvalidationConfig {
	driver := Driver(strings.ToLower(strings.TrimSpace(os.Getenv("INVALIDATION_DRIVER"))))
	if driver == "" {
		driver = DriverNone
	}
	return InvalidationConfig{
		Enabled:          envBool("INVALIDATION_ENABLED", false),
		Driver:           driver,
		Brokers:          split(envStr("KAFKA_BROKERS", "localhost:9092")),
		Topic:            envStr("KAFKA_TOPIC", "gfas-ingest"),
		GroupID:          envStr("KAFKA_GROUP_ID", "emission-explorer-invalidator"),
		ClientID:         envStr("KAFKA_CLIENT_ID", "emission-explorer"),
		SessionTimeout:   envDur("KAFKA_SESSION_TIMEOUT", 30*time.Second),
		Heartbeat:        envDur("KAFKA_HEARTBEAT", 3*time.Second),
		RebalanceTimeout: envDur("KAFKA_REBALANCE_TIMEOUT", 30*time.Second),
		InitialOldest:    envBool("KAFKA_INITIAL_OLDEST", true),
		TLS: TLSConfig{
			Enable:     envBool("KAFKA_TLS_ENABLE", false),
			CaFile:     os.Getenv("KAFKA_TLS_CA_FILE"),
			CertFile:   os.Getenv("KAFKA_TLS_CERT_FILE"),
			KeyFile:    os.Getenv("KAFKA_TLS_KEY_FILE"),
			SkipVerify: envBool("KAFKA_TLS_SKIP_VERIFY", false),
		},
		SASL: SASLConfig{
			Enable:    envBool("KAFKA_SASL_ENABLE", false),
			Mechanism: envStr("KAFKA_SASL_MECHANISM", sarama.SASLTypePlaintext),
			Username:  os.Getenv("KAFKA_SASL_USERNAME"),
			Password:  os.Getenv("KAFKA_SASL_PASSWORD"),
		},
	}
}

// Active reports whether Start will join a consumer group.
func (c InvalidationConfig) Active() bool {
	return c.Enabled && c.Driver == DriverKafka
}

func (c InvalidationConfig) Validate() error {
	if !c.Active() {
		return nil
	}
	var errs []error
	if len(c.Brokers) == 0 {
		errs = append(errs, errors.New("no brokers"))
	}
	if c.Topic == "" {
		errs = append(errs, errors.New("no topic"))
	}
	if c.GroupID == "" {
		errs = append(errs, errors.New("no group id"))
	}
	if c.SASL.Enable && c.SASL.Username == "" {
		errs = append(errs, errors.New("sasl enabled without username"))
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		errs = append(errs, errors.New("tls cert and key must be set together"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalidation config: %w", err)
	}
	return nil
}

// Sarama builds the consumer group configuration.
func (c InvalidationConfig) Sarama() (*sarama.Config, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	if c.ClientID != "" {
		cfg.ClientID = c.ClientID
	}
	cfg.Consumer.Group.Session.Timeout = c.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.RebalanceTimeout
	if c.InitialOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Return.Errors = true

	if c.TLS.Enable {
		tc, err := c.TLS.build()
		if err != nil {
			return nil, err
		}
		cfg.Net.TLS.Enable = true
		cfg.Net.TLS.Config = tc
	}
	if c.SASL.Enable {
		mech := sarama.SASLMechanism(strings.ToUpper(c.SASL.Mechanism))
		if mech != sarama.SASLTypePlaintext {
			return nil, fmt.Errorf("unsupported sasl mechanism %q", c.SASL.Mechanism)
		}
		cfg.Net.SASL.Enable = true
		cfg.Net.SASL.Mechanism = mech
		cfg.Net.SASL.User = c.SASL.Username
		cfg.Net.SASL.Password = c.SASL.Password
	}
	return cfg, nil
}

func (t TLSConfig) build() (*tls.Config, error) {
	tc := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: t.SkipVerify}
	if t.CaFile != "" {
		pem, err := os.ReadFile(filepath.Clean(t.CaFile))
		if err != nil {
			return nil, fmt.Errorf("read kafka ca: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("kafka ca %s: no certificates", t.CaFile)
		}
		tc.RootCAs = pool
	}
	if t.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load kafka client cert: %w", err)
		}
		tc.Certificates = []tls.Certificate{cert}
	}
	return tc, nil
}

func envStr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDur(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func split(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if x := strings.TrimSpace(p); x != "" {
			out = append(out, x)
		}
	}
	return out
}
