package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/onduty-run/sentry-agent/pkg/alert"
)

// parseServices parses the SERVICE_REGISTRY grammar:
//
//	name|base_url|critical,name|base_url|critical,...
//
// critical is "true"/"false" and defaults to true when omitted.
func parseServices(raw string) ([]alert.ServiceEndpoint, error) {
	var services []alert.ServiceEndpoint
	for _, entry := range splitNonEmpty(raw, ",") {
		parts := strings.Split(entry, "|")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, NewLoadError("SERVICE_REGISTRY", fmt.Errorf("%w: entry %q must have 2 or 3 '|'-separated parts", ErrInvalidGrammar, entry))
		}
		name := strings.TrimSpace(parts[0])
		base := strings.TrimSpace(parts[1])
		if name == "" || base == "" {
			return nil, NewLoadError("SERVICE_REGISTRY", fmt.Errorf("%w: entry %q has an empty name or URL", ErrInvalidGrammar, entry))
		}
		u, err := url.Parse(base)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, NewLoadError("SERVICE_REGISTRY", fmt.Errorf("%w: entry %q has a non-http(s) base_url", ErrInvalidValue, entry))
		}
		critical := true
		if len(parts) == 3 {
			v := strings.ToLower(strings.TrimSpace(parts[2]))
			critical = v != "false"
		}
		services = append(services, alert.ServiceEndpoint{Name: name, BaseURL: base, Critical: critical})
	}
	return services, nil
}

// parseScalingLimits parses the SCALING_LIMITS grammar:
//
//	name|min|max|mode,name|min|max|mode,...
//
// mode is one of "application"/"cloud_native".
func parseScalingLimits(raw string) ([]alert.ScalingConfig, error) {
	var limits []alert.ScalingConfig
	for _, entry := range splitNonEmpty(raw, ",") {
		parts := strings.Split(entry, "|")
		if len(parts) != 4 {
			return nil, NewLoadError("SCALING_LIMITS", fmt.Errorf("%w: entry %q must have exactly 4 '|'-separated parts", ErrInvalidGrammar, entry))
		}
		name := strings.TrimSpace(parts[0])
		if name == "" {
			return nil, NewLoadError("SCALING_LIMITS", fmt.Errorf("%w: entry %q has an empty name", ErrInvalidGrammar, entry))
		}
		minI, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || minI < 1 {
			return nil, NewLoadError("SCALING_LIMITS", fmt.Errorf("%w: entry %q has invalid min_instances", ErrInvalidValue, entry))
		}
		maxI, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil || maxI < minI {
			return nil, NewLoadError("SCALING_LIMITS", fmt.Errorf("%w: entry %q has max_instances < min_instances", ErrInvalidValue, entry))
		}
		mode := alert.ScalingMode(strings.ToLower(strings.TrimSpace(parts[3])))
		if mode != alert.ScalingModeApplication && mode != alert.ScalingModeCloudNative {
			return nil, NewLoadError("SCALING_LIMITS", fmt.Errorf("%w: entry %q has an unknown scaling mode %q", ErrInvalidValue, entry, mode))
		}
		limits = append(limits, alert.ScalingConfig{ServiceName: name, MinInstances: minI, MaxInstances: maxI, Mode: mode})
	}
	return limits, nil
}

func splitNonEmpty(raw, sep string) []string {
	var out []string
	for _, part := range strings.Split(raw, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
