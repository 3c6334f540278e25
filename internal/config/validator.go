package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// structValidator runs the struct-tag checks types.go declares
// (`validate:"required"`, `validate:"min=0,max=100"`, the SyncJobs
// map's `required,min=1,dive`): the numeric-range and required-field
// rules a tag can express cleanly, leaving the spec-specific rules
// (reserved option keys, cron syntax, path existence) to the
// hand-written pass below.
var structValidator = newStructValidator()

// newStructValidator reports field names the same way the hand-written
// pass does (the YAML tag, e.g. "max_cpu_usage_percent") instead of the Go
// field name, so both passes produce ValidationErrors with matching Field
// conventions.
func newStructValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateStructTags translates go-playground/validator's FieldErrors
// into this package's ValidationError shape so both passes merge into
// one ValidationErrors result.
func validateStructTags(cfg *Config) ValidationErrors {
	err := structValidator.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs ValidationErrors
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			verrs = append(verrs, ValidationError{
				Field:   fe.Field(),
				Value:   fe.Value(),
				Message: fmt.Sprintf("failed '%s' validation", fe.Tag()),
			})
		}
		return verrs
	}
	// An *InvalidValidationError (non-struct/nil argument) can't happen
	// here since cfg is always a *Config; surface it rather than drop it.
	return ValidationErrors{{Field: "<config>", Message: err.Error()}}
}

// ValidationError is one field-level validation failure.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error for field '%s': %s (value: %v)",
		e.Field, e.Message, e.Value)
}

// ValidationErrors is the list Load returns on a failed parse, matching
// spec.md §4.1's `(Config, nil) | (nil, ValidationError)` contract.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	messages := make([]string, 0, len(e))
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// Validator accumulates field errors across a single validation pass.
type Validator struct {
	errors ValidationErrors
}

// NewValidator returns an empty Validator.
func NewValidator() *Validator {
	return &Validator{errors: make(ValidationErrors, 0)}
}

func (v *Validator) AddError(field string, value any, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Value: value, Message: message})
}

func (v *Validator) HasErrors() bool { return len(v.errors) > 0 }

func (v *Validator) Errors() ValidationErrors { return v.errors }

func (v *Validator) ValidateRequired(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, value, "is required")
	}
}

// ValidateCronExpression validates a 5-field cron expression via
// robfig/cron's standard parser, which is also used at runtime to compute
// next-run times (spec.md §4.4) — a string that parses here is guaranteed
// schedulable later. Required-ness is already covered by the job's
// struct tag, so an empty value is silently skipped here.
func (v *Validator) ValidateCronExpression(field, value string) {
	if value == "" {
		return
	}
	if _, err := cron.ParseStandard(value); err != nil {
		v.AddError(field, value, fmt.Sprintf("invalid cron expression: %v", err))
	}
}

// ValidatePathExists checks the path exists on disk, used for
// local_base_path per spec.md §3/§8 scenario 4.
func (v *Validator) ValidatePathExists(field, value string) {
	if value == "" {
		return
	}
	if _, err := os.Stat(value); err != nil {
		v.AddError(field, value, fmt.Sprintf("path does not exist: %s", value))
	}
}

// ValidateOptionMap rejects the internally-reserved keys resync/bisync/log-file
// an operator must never be able to override (spec.md §3).
func (v *Validator) ValidateOptionMap(field string, opts OptionMap) {
	for key := range opts {
		if disallowedOptionKeys[key] {
			v.AddError(field, key, fmt.Sprintf("option key %q is reserved and may not be set", key))
		}
	}
}

// Validate runs every structural/semantic check spec.md §4.1 requires and
// returns the accumulated errors (empty slice, not nil, when clean): the
// struct-tag pass first (required fields, max_cpu_usage_percent's
// 0-100 range), then the hand-written pass for what a tag can't express.
func Validate(cfg *Config) ValidationErrors {
	v := NewValidator()
	v.errors = append(v.errors, validateStructTags(cfg)...)

	v.ValidatePathExists("local_base_path", cfg.LocalBasePath)
	v.ValidateOptionMap("rclone_options", cfg.RcloneOptions)
	v.ValidateOptionMap("bisync_options", cfg.BisyncOptions)
	v.ValidateOptionMap("resync_options", cfg.ResyncOptions)

	atLeastOneValid := false
	for key, job := range cfg.SyncJobs {
		prefix := fmt.Sprintf("sync_jobs.%s", key)
		before := len(v.errors)

		// Required-ness is already caught by the struct tag pass above, but
		// that pass ran before this loop started: re-check here too so a job
		// missing a required field still counts against atLeastOneValid
		// below instead of slipping through as "no new errors this job".
		v.ValidateRequired(prefix+".local", job.Local)
		v.ValidateRequired(prefix+".rclone_remote", job.RcloneRemote)
		v.ValidateRequired(prefix+".remote", job.Remote)
		v.ValidateRequired(prefix+".schedule", job.Schedule)
		v.ValidateCronExpression(prefix+".schedule", job.Schedule)
		v.ValidateOptionMap(prefix+".rclone_options", job.RcloneOptions)
		v.ValidateOptionMap(prefix+".bisync_options", job.BisyncOptions)
		v.ValidateOptionMap(prefix+".resync_options", job.ResyncOptions)

		if len(v.errors) == before {
			atLeastOneValid = true
		}
	}
	if len(cfg.SyncJobs) > 0 && !atLeastOneValid {
		v.AddError("sync_jobs", nil, "at least one valid sync job is required")
	}

	return v.Errors()
}
