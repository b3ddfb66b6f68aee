package services

import (
	"time"

	"budgetledger/internal/config"
	"budgetledger/internal/ledger"
)

const (
	defaultStagingTTL   = 24 * time.Hour
	defaultMaxErrors    = 20
	defaultCommitMaxIDs = 500
)

// Options carries the tunables shared by the ledger services.
type Options struct {
	Normalizer   ledger.Normalizer
	StagingTTL   time.Duration
	MaxRows      int
	MaxBytes     int64
	MaxErrors    int
	CommitMaxIDs int
}

// DefaultOptions returns the values used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Normalizer:   ledger.NewNormalizer(),
		StagingTTL:   defaultStagingTTL,
		MaxErrors:    defaultMaxErrors,
		CommitMaxIDs: defaultCommitMaxIDs,
	}
}

func (o Options) withDefaults() Options {
	if o.Normalizer.Scale == 0 && o.Normalizer.MaxAmount.IsZero() {
		o.Normalizer = ledger.NewNormalizer()
	}
	if o.StagingTTL <= 0 {
		o.StagingTTL = defaultStagingTTL
	}
	if o.MaxErrors <= 0 {
		o.MaxErrors = defaultMaxErrors
	}
	if o.CommitMaxIDs <= 0 {
		o.CommitMaxIDs = defaultCommitMaxIDs
	}
	return o
}

func (o Options) now() time.Time {
	if o.Normalizer.Now != nil {
		return o.Normalizer.Now()
	}
	return time.Now()
}

// NewOptions derives the service tunables from the application config.
func NewOptions(cfg *config.Config) Options {
	return Options{
		Normalizer:   cfg.Normalizer(),
		StagingTTL:   cfg.StagingTTL,
		MaxRows:      cfg.ImportMaxRows,
		MaxBytes:     cfg.ImportMaxBytes,
		MaxErrors:    cfg.ImportMaxErrors,
		CommitMaxIDs: cfg.CommitMaxIDs,
	}.withDefaults()
}
