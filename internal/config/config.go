// Package config holds the engine's tunables (spec.md §6's config bag)
// as a validated struct, following vinodismyname-mcpxcel's config package
// shape: grouped defaults as untyped consts, one struct, validated via
// github.com/go-playground/validator/v10 at Workbook construction time.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/PSU3D0/formualizer-sub003/internal/apperr"
)

// Scheduling defaults.
const (
	DefaultEnableParallel      = true
	DefaultMaxThreads          = 4
	DefaultParallelThreshold   = 32
	DefaultArrowCanonicalValues = false
)

// Stripe/range defaults.
const (
	DefaultRangeExpansionLimit = 4096
	DefaultBlockStripesEnabled = true
	DefaultBlockSize           = 32
)

// Open-ended range resolution bounds: an open range ("A:A", "1:1")
// resolves against the sheet's used region at evaluation time, clamped to
// these ceilings so a formula over a whole column never expands the
// candidate set past a sane bound.
const (
	DefaultMaxOpenEndedRows = 1_048_576
	DefaultMaxOpenEndedCols = 16_384
)

// Change-log defaults.
const (
	DefaultUndoRetention = 200
)

// Config mirrors spec.md §6's config bag. Zero-value Config is invalid;
// use Default() and override fields, then Validate() before use.
type Config struct {
	EnableParallel       bool `validate:"-"`
	MaxThreads           int  `validate:"gte=1,lte=256"`
	ParallelThreshold    int  `validate:"gte=1"`
	WorkbookSeed         uint64 `validate:"-"`
	ArrowCanonicalValues bool `validate:"-"`

	RangeExpansionLimit uint64 `validate:"gte=1"`
	BlockStripesEnabled bool   `validate:"-"`
	BlockSize           uint32 `validate:"required,power_of_two"`

	MaxOpenEndedRows uint32 `validate:"gte=1"`
	MaxOpenEndedCols uint32 `validate:"gte=1"`

	UndoRetention int `validate:"gte=0"`
}

// Default returns the recommended configuration for a single workbook.
func Default() Config {
	return Config{
		EnableParallel:       DefaultEnableParallel,
		MaxThreads:           DefaultMaxThreads,
		ParallelThreshold:    DefaultParallelThreshold,
		ArrowCanonicalValues: DefaultArrowCanonicalValues,

		RangeExpansionLimit: DefaultRangeExpansionLimit,
		BlockStripesEnabled: DefaultBlockStripesEnabled,
		BlockSize:           DefaultBlockSize,

		MaxOpenEndedRows: DefaultMaxOpenEndedRows,
		MaxOpenEndedCols: DefaultMaxOpenEndedCols,

		UndoRetention: DefaultUndoRetention,
	}
}

var singleton *validator.Validate

// validatorInstance returns a package-level singleton validator with the
// block_size power-of-two rule registered, mirroring
// vinodismyname-mcpxcel/pkg/validation's Validator() singleton.
func validatorInstance() *validator.Validate {
	if singleton == nil {
		singleton = validator.New()
		_ = singleton.RegisterValidation("power_of_two", func(fl validator.FieldLevel) bool {
			n := fl.Field().Uint()
			return n > 0 && n&(n-1) == 0
		})
	}
	return singleton
}

// Validate checks c against its struct tags, turning the first failure
// into a readable apperr.InvalidArgument, per SPEC_FULL.md §2.3.
func (c Config) Validate() error {
	if err := validatorInstance().Struct(c); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			fe := ve[0]
			field := strings.ToLower(fe.Field())
			return apperr.New(apperr.InvalidArgument, "config: %s must satisfy %s=%s", field, fe.Tag(), fe.Param())
		}
		return apperr.New(apperr.InvalidArgument, "config: invalid configuration: %v", err)
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("config{parallel=%v threads=%d seed=%d arrow_canonical=%v range_limit=%d block=%d}",
		c.EnableParallel, c.MaxThreads, c.WorkbookSeed, c.ArrowCanonicalValues, c.RangeExpansionLimit, c.BlockSize)
}
