package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/pkg/errs"
)

// DispatchSettings is the mutable form of the configuration, filled from the
// environment and overridden by the persisted dispatch_settings rows.
type DispatchSettings struct {
	OfferTimeout          time.Duration
	PingInterval          time.Duration
	MaxPingAttempts       int
	MaxAutoRetries        int
	SearchRadiusKm        float64
	MaxConcurrentMissions int
	MaxDirectRadiusKm     float64
	AllowChaining         bool
	DefaultVerification   string
	OTPLength             int
	OTPMaxAttempts        int
	RetryBackoff          time.Duration
	OptimizerTimeout      time.Duration
	LocationFlushInterval time.Duration
}

func DefaultDispatchSettings() DispatchSettings {
	return DispatchSettings{
		OfferTimeout:          15 * time.Second,
		PingInterval:          2 * time.Second,
		MaxPingAttempts:       10,
		MaxAutoRetries:        2,
		SearchRadiusKm:        10,
		MaxConcurrentMissions: 2,
		MaxDirectRadiusKm:     1,
		AllowChaining:         true,
		DefaultVerification:   "OTP",
		OTPLength:             6,
		OTPMaxAttempts:        5,
		RetryBackoff:          10 * time.Second,
		OptimizerTimeout:      10 * time.Second,
		LocationFlushInterval: 5 * time.Minute,
	}
}

// Override applies persisted key/value pairs such as "offer_timeout" = "20s".
// Unknown keys are rejected so typos surface at startup.
func (s DispatchSettings) Override(values map[string]string) (DispatchSettings, error) {
	var joined error
	for key, raw := range values {
		if err := s.set(key, strings.TrimSpace(raw)); err != nil {
			joined = errors.Join(joined, errs.NewValueIsInvalidErrorWithCause(key, err))
		}
	}
	return s, joined
}

func (s *DispatchSettings) set(key, raw string) error {
	var err error
	switch key {
	case "offer_timeout":
		s.OfferTimeout, err = time.ParseDuration(raw)
	case "ping_interval":
		s.PingInterval, err = time.ParseDuration(raw)
	case "max_ping_attempts":
		s.MaxPingAttempts, err = strconv.Atoi(raw)
	case "max_auto_retries":
		s.MaxAutoRetries, err = strconv.Atoi(raw)
	case "search_radius_km":
		s.SearchRadiusKm, err = strconv.ParseFloat(raw, 64)
	case "max_concurrent_missions":
		s.MaxConcurrentMissions, err = strconv.Atoi(raw)
	case "max_direct_radius_km":
		s.MaxDirectRadiusKm, err = strconv.ParseFloat(raw, 64)
	case "allow_chaining":
		s.AllowChaining, err = strconv.ParseBool(raw)
	case "default_verification":
		s.DefaultVerification = raw
	case "otp_length":
		s.OTPLength, err = strconv.Atoi(raw)
	case "otp_max_attempts":
		s.OTPMaxAttempts, err = strconv.Atoi(raw)
	case "retry_backoff":
		s.RetryBackoff, err = time.ParseDuration(raw)
	case "optimizer_timeout":
		s.OptimizerTimeout, err = time.ParseDuration(raw)
	case "location_flush_interval":
		s.LocationFlushInterval, err = time.ParseDuration(raw)
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return err
}

// DispatchConfig is the validated, read-only configuration injected into handlers,
// jobs and the ack monitor.
type DispatchConfig struct {
	s            DispatchSettings
	verification []order.ProofType
}

// NewDispatchConfig validates settings; every problem is reported at once.
func NewDispatchConfig(s DispatchSettings) (DispatchConfig, error) {
	var joined error
	positive := func(name string, d time.Duration) {
		if d <= 0 {
			joined = errors.Join(joined, errs.NewValueIsInvalidErrorWithCause(name, fmt.Errorf("%s is not positive", d)))
		}
	}
	atLeast := func(name string, v, minValue int) {
		if v < minValue {
			joined = errors.Join(joined, errs.NewValueIsOutOfRangeError(name, v, minValue, "unbounded"))
		}
	}

	positive("offerTimeout", s.OfferTimeout)
	positive("pingInterval", s.PingInterval)
	positive("retryBackoff", s.RetryBackoff)
	positive("optimizerTimeout", s.OptimizerTimeout)
	positive("locationFlushInterval", s.LocationFlushInterval)
	atLeast("maxPingAttempts", s.MaxPingAttempts, 1)
	atLeast("maxAutoRetries", s.MaxAutoRetries, 0)
	atLeast("maxConcurrentMissions", s.MaxConcurrentMissions, 1)
	atLeast("otpMaxAttempts", s.OTPMaxAttempts, 1)
	if s.OTPLength < 4 || s.OTPLength > 12 {
		joined = errors.Join(joined, errs.NewValueIsOutOfRangeError("otpLength", s.OTPLength, 4, 12))
	}
	if s.SearchRadiusKm <= 0 {
		joined = errors.Join(joined, errs.NewValueIsOutOfRangeError("searchRadiusKm", s.SearchRadiusKm, 0, "unbounded"))
	}
	if s.MaxDirectRadiusKm < 0 {
		joined = errors.Join(joined, errs.NewValueIsOutOfRangeError("maxDirectRadiusKm", s.MaxDirectRadiusKm, 0, "unbounded"))
	}
	verification, err := order.ParseProofTypes(s.DefaultVerification)
	joined = errors.Join(joined, err)

	if joined != nil {
		return DispatchConfig{}, joined
	}
	return DispatchConfig{s: s, verification: verification}, nil
}

// DefaultDispatchConfig is NewDispatchConfig over the defaults, which are valid.
func DefaultDispatchConfig() DispatchConfig {
	cfg, err := NewDispatchConfig(DefaultDispatchSettings())
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c DispatchConfig) OfferTimeout() time.Duration { return c.s.OfferTimeout }

func (c DispatchConfig) PingInterval() time.Duration { return c.s.PingInterval }

func (c DispatchConfig) MaxPingAttempts() int { return c.s.MaxPingAttempts }

// AckWindow is how long the ack monitor waits before declaring the driver unreachable.
func (c DispatchConfig) AckWindow() time.Duration {
	return time.Duration(c.s.MaxPingAttempts) * c.s.PingInterval
}

func (c DispatchConfig) MaxAutoRetries() int { return c.s.MaxAutoRetries }

func (c DispatchConfig) SearchRadiusKm() float64 { return c.s.SearchRadiusKm }

func (c DispatchConfig) MaxConcurrentMissions() int { return c.s.MaxConcurrentMissions }

func (c DispatchConfig) MaxDirectRadiusKm() float64 { return c.s.MaxDirectRadiusKm }

func (c DispatchConfig) AllowChaining() bool { return c.s.AllowChaining }

func (c DispatchConfig) OTPMaxAttempts() int { return c.s.OTPMaxAttempts }

func (c DispatchConfig) RetryBackoff() time.Duration { return c.s.RetryBackoff }

func (c DispatchConfig) OptimizerTimeout() time.Duration { return c.s.OptimizerTimeout }

func (c DispatchConfig) LocationFlushInterval() time.Duration { return c.s.LocationFlushInterval }

// ProofPolicy is how new actions get their proofs.
func (c DispatchConfig) ProofPolicy() order.ProofPolicy {
	return order.ProofPolicy{
		DefaultVerification: append([]order.ProofType(nil), c.verification...),
		OTPLength:           c.s.OTPLength,
	}
}

// Settings returns a copy of the underlying values.
func (c DispatchConfig) Settings() DispatchSettings { return c.s }
