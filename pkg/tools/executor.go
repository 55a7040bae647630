package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/onduty-run/sentry-agent/pkg/alert"
)

// SMTPConfig holds the outbound mail settings needed by
// email_incident_report. Zero value means email is not configured.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

func (c SMTPConfig) configured() bool {
	return c.Host != "" && c.To != ""
}

// Executor holds everything a tool handler needs: the service
// registry, credentials, the incident-report directory, and a
// per-run HTTP client. One Executor is constructed per agent run so
// that trace_id and rate limiting are scoped to that run.
type Executor struct {
	Services              map[string]alert.ServiceEndpoint
	ScalingLimits         map[string]alert.ScalingConfig
	OpsAuthToken          string
	PagerDutyAPIToken     string
	PagerDutyRoutingKey   string
	IncidentsDir          string
	TraceID               string
	SMTP                  SMTPConfig

	// PagerDutyAPIBaseURL and PagerDutyEventsURL default to the real
	// PagerDuty endpoints; overridable in tests.
	PagerDutyAPIBaseURL string
	PagerDutyEventsURL  string

	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewExecutor constructs an Executor for one agent run.
func NewExecutor(
	services []alert.ServiceEndpoint,
	scalingLimits []alert.ScalingConfig,
	opsAuthToken, pagerDutyAPIToken, pagerDutyRoutingKey, incidentsDir, traceID string,
	smtp SMTPConfig,
	httpTimeout time.Duration,
	logger *slog.Logger,
) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	svcByName := make(map[string]alert.ServiceEndpoint, len(services))
	for _, s := range services {
		svcByName[s.Name] = s
	}
	scalingByName := make(map[string]alert.ScalingConfig, len(scalingLimits))
	for _, sc := range scalingLimits {
		scalingByName[sc.ServiceName] = sc
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "tool-http-client",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &Executor{
		Services:            svcByName,
		ScalingLimits:       scalingByName,
		OpsAuthToken:        opsAuthToken,
		PagerDutyAPIToken:   pagerDutyAPIToken,
		PagerDutyRoutingKey: pagerDutyRoutingKey,
		IncidentsDir:        incidentsDir,
		TraceID:             traceID,
		SMTP:                smtp,
		PagerDutyAPIBaseURL: "https://api.pagerduty.com",
		PagerDutyEventsURL:  "https://events.pagerduty.com/v2/enqueue",
		httpClient:          &http.Client{Timeout: httpTimeout},
		breaker:             breaker,
		limiter:             rate.NewLimiter(rate.Limit(5), 10),
		logger:              logger,
	}
}

// doHTTP issues req through the rate limiter and circuit breaker, and
// attaches the trace_id header every outbound call needs.
func (e *Executor) doHTTP(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req.Header.Set("X-Trace-Id", e.TraceID)

	result, err := e.breaker.Execute(func() (any, error) {
		return e.httpClient.Do(req)
	})
	if err != nil {
		return nil, err
	}
	return result.(*http.Response), nil
}

// Registry is the fixed set of 9 tools, their compiled schemas, and
// their handlers. Immutable after NewRegistry.
type Registry struct {
	names   []string
	schemas map[string]*jsonschema.Schema
	specs   map[string]Handler
}

// NewRegistry compiles every tool's schema once and binds it to its
// handler. Panics on a malformed built-in schema — a programmer error,
// not a runtime condition.
func NewRegistry() *Registry {
	handlers := map[string]Handler{
		"call_ops_endpoint":         handleCallOpsEndpoint,
		"query_cloud_logs":          handleQueryCloudLogs,
		"query_cloud_metrics":       handleQueryCloudMetrics,
		"escalate_pagerduty":        handleEscalatePagerDuty,
		"acknowledge_alert":         handleAcknowledgeAlert,
		"create_pagerduty_incident": handleCreatePagerDutyIncident,
		"write_incident_report":     handleWriteIncidentReport,
		"email_incident_report":     handleEmailIncidentReport,
		"scale_service":             handleScaleService,
	}

	r := &Registry{
		names:   make([]string, 0, len(handlers)),
		schemas: make(map[string]*jsonschema.Schema, len(handlers)),
		specs:   handlers,
	}
	for name, raw := range schemas {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(name+".json", mustUnmarshalSchema(raw)); err != nil {
			panic(fmt.Sprintf("tools: invalid built-in schema for %s: %v", name, err))
		}
		sch, err := compiler.Compile(name + ".json")
		if err != nil {
			panic(fmt.Sprintf("tools: failed compiling schema for %s: %v", name, err))
		}
		r.schemas[name] = sch
		r.names = append(r.names, name)
	}
	return r
}

func mustUnmarshalSchema(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		panic(fmt.Sprintf("tools: schema is not valid JSON: %v", err))
	}
	return v
}

// Names returns the registered tool names, for converting to a
// provider's tool-definition format.
func (r *Registry) Names() []string { return r.names }

// Description returns a tool's human-readable description.
func (r *Registry) Description(name string) string { return descriptions[name] }

// Schema returns a tool's raw JSON schema string.
func (r *Registry) Schema(name string) string { return schemas[name] }

// Execute validates the call's input against the tool's schema, then
// dispatches to its handler. An unknown tool name, a schema violation,
// or a handler error all collapse into the same {"error": "..."}
// envelope as content, matching the reference's uniform error surface.
func (r *Registry) Execute(ctx context.Context, e *Executor, call Call) Result {
	handler, ok := r.specs[call.Name]
	if !ok {
		return errorResult(call, fmt.Sprintf("Unknown tool: %s", call.Name))
	}

	if sch, ok := r.schemas[call.Name]; ok {
		if err := sch.Validate(call.Input); err != nil {
			return errorResult(call, err.Error())
		}
	}

	content, err := handler(ctx, e, call.Input)
	if err != nil {
		return errorResult(call, err.Error())
	}
	return Result{CallID: call.ID, Name: call.Name, Content: content}
}

func errorResult(call Call, message string) Result {
	body, _ := json.Marshal(map[string]string{"error": message})
	return Result{CallID: call.ID, Name: call.Name, Content: string(body), IsError: true}
}
