package config

import "fmt"

// Validator validates a loaded Config comprehensively, with a fail-fast
// ValidateAll and one validate* method per concern.
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast — stops at
// the first error). Order: required credentials, the service registry
// scaling limits depend on, then the numeric intake/budget knobs.
func (v *Validator) ValidateAll() error {
	if err := v.validateRequired(); err != nil {
		return err
	}
	if err := v.validateServices(); err != nil {
		return err
	}
	if err := v.validateScalingLimits(); err != nil {
		return err
	}
	if err := v.validateIntake(); err != nil {
		return err
	}
	if err := v.validateTokenBudgets(); err != nil {
		return err
	}
	return nil
}

func (v *Validator) validateRequired() error {
	if v.cfg.LLMAPIKey == "" && !v.cfg.IsVertexAI() {
		return NewValidationError("LLM_API_KEY", ErrMissingRequiredField)
	}
	if v.cfg.PagerDutyAPIToken == "" {
		return NewValidationError("PAGERDUTY_API_TOKEN", ErrMissingRequiredField)
	}
	if v.cfg.OpsAuthToken == "" {
		return NewValidationError("OPS_AUTH_TOKEN", ErrMissingRequiredField)
	}
	if len(v.cfg.Services) == 0 {
		return NewValidationError("SERVICE_REGISTRY", fmt.Errorf("%w: at least one service must be registered", ErrMissingRequiredField))
	}
	return nil
}

func (v *Validator) validateServices() error {
	seen := make(map[string]struct{}, len(v.cfg.Services))
	for _, svc := range v.cfg.Services {
		if _, dup := seen[svc.Name]; dup {
			return NewValidationError("SERVICE_REGISTRY", fmt.Errorf("%w: duplicate service name %q", ErrInvalidValue, svc.Name))
		}
		seen[svc.Name] = struct{}{}
	}
	return nil
}

func (v *Validator) validateScalingLimits() error {
	for _, sc := range v.cfg.ScalingLimits {
		if _, ok := v.cfg.ServiceByName(sc.ServiceName); !ok {
			return NewValidationError("SCALING_LIMITS", fmt.Errorf("%w: %q is not a registered service", ErrInvalidValue, sc.ServiceName))
		}
	}
	return nil
}

func (v *Validator) validateIntake() error {
	if v.cfg.MaxConcurrentAlerts < 1 {
		return NewValidationError("MAX_CONCURRENT_ALERTS", fmt.Errorf("%w: must be >= 1, got %d", ErrInvalidValue, v.cfg.MaxConcurrentAlerts))
	}
	if v.cfg.AlertQueueTTL < 0 {
		return NewValidationError("ALERT_QUEUE_TTL_SECONDS", fmt.Errorf("%w: must be >= 0", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateTokenBudgets() error {
	if v.cfg.MaxTokensPerIncident < 0 {
		return NewValidationError("MAX_TOKENS_PER_INCIDENT", fmt.Errorf("%w: must be >= 0", ErrInvalidValue))
	}
	if v.cfg.MaxTokensPerHour < 0 {
		return NewValidationError("MAX_TOKENS_PER_HOUR", fmt.Errorf("%w: must be >= 0 (0 means unlimited)", ErrInvalidValue))
	}
	return nil
}
