package main

import (
	"context"
	"os"
	"strconv"

	"github.com/containerd/log"
	"github.com/moby/isoserve/version"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// See https://opentelemetry.io/docs/specs/otel/configuration/sdk-environment-variables/ for details on env vars/values.
const (
	otelSDKDisabledEnv                = "OTEL_SDK_DISABLED"
	otelTracesExporterEnv             = "OTEL_TRACES_EXPORTER"
	otelExporterOTLPEndpointEnv       = "OTEL_EXPORTER_OTLP_ENDPOINT"
	otelExporterOTLPTracesEndpointEnv = "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"
	otelExporterOTLPTracesProtocol    = "OTEL_EXPORTER_OTLP_TRACES_PROTOCOL"
	otelExporterOTLPProtocolEnv       = "OTEL_EXPORTER_OTLP_PROTOCOL"
	otelServiceNameEnv                = "OTEL_SERVICE_NAME"
	otelTracesSamplerEnv              = "OTEL_TRACES_SAMPLER"
	otelTracesSamplerArgEnv           = "OTEL_TRACES_SAMPLER_ARG"
)

var errTracingDisabled = errors.New("tracing disabled")

// newTracerProvider returns the tracer provider configured from the
// environment, or a no-op provider when tracing is not configured. The
// returned function flushes and stops the provider.
func newTracerProvider(ctx context.Context) (trace.TracerProvider, func(context.Context) error) {
	tp, err := getTracerProvider(ctx, os.Getenv)
	if err != nil {
		if errors.Is(err, errTracingDisabled) {
			log.G(ctx).WithError(err).Debug("Tracing is not enabled")
		} else {
			log.G(ctx).WithError(err).Warn("Failed to initialize tracing, skipping")
		}
		return noop.NewTracerProvider(), func(context.Context) error { return nil }
	}
	return tp, tp.Shutdown
}

func getTracerProvider(ctx context.Context, getEnv func(string) string) (*sdktrace.TracerProvider, error) {
	// By default the OTLP libs will connect to localhost if no endpoint is set.
	// isoserved should not export anything without explicit configuration.

	if v := getEnv(otelSDKDisabledEnv); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil || b {
			if err != nil {
				err = errors.Wrap(errTracingDisabled, errors.Wrap(err, "failed to parse env").Error())
			} else {
				err = errors.Wrap(errTracingDisabled, "tracing disabled by env")
			}
			return nil, errors.Wrapf(err, "%s=%s", otelSDKDisabledEnv, v)
		}
	}

	// We default to otlp, any other value than empty or "none" is unsupported
	expName := getEnv(otelTracesExporterEnv)
	switch expName {
	case "otlp", "":
	case "none":
		return nil, errors.Wrapf(errTracingDisabled, "trace exports disabled by env %s=%s", otelTracesExporterEnv, expName)
	default:
		return nil, errors.Errorf("unsupported tracing exporter %s in env %s", expName, otelTracesExporterEnv)
	}

	if expName == "" {
		// Only check if the endpoint vars are set if the exporter is not explicitly set
		if getEnv(otelExporterOTLPEndpointEnv) == "" && getEnv(otelExporterOTLPTracesEndpointEnv) == "" {
			log.G(ctx).Debug("No tracing endpoint configured, skipping")
			return nil, errors.Wrap(errTracingDisabled, "no tracing endpoint configured")
		}
	}

	sampler, err := getSampler(ctx, getEnv)
	if err != nil {
		return nil, err
	}

	var exp *otlptrace.Exporter

	proto := getEnv(otelExporterOTLPTracesProtocol)
	if proto == "" {
		proto = getEnv(otelExporterOTLPProtocolEnv)
	}

	switch proto {
	case "grpc":
		exp, err = otlptracegrpc.New(ctx)
	case "http/protobuf", "":
		exp, err = otlptracehttp.New(ctx)
	default:
		return nil, errors.Errorf("unsupported otlp protocol %s, only grpc and http/protobuf are supported", proto)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create otlp exporter")
	}

	serviceName := getEnv(otelServiceNameEnv)
	if serviceName == "" {
		serviceName = "isoserved"
	}
	res := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version.Version),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sampler),
		sdktrace.WithResource(res),
	)
	return tp, nil
}

func getSampler(ctx context.Context, getEnv func(string) string) (sdktrace.Sampler, error) {
	samplerValue := getEnv(otelTracesSamplerEnv)
	switch samplerValue {
	case "always_on":
		return sdktrace.AlwaysSample(), nil
	case "always_off":
		return sdktrace.NeverSample(), nil
	case "parentbased_always_on", "":
		return sdktrace.ParentBased(sdktrace.AlwaysSample()), nil
	case "parentbased_always_off":
		return sdktrace.ParentBased(sdktrace.NeverSample()), nil
	case "traceidratio", "parentbased_traceidratio":
		ratio := 1.0
		if v := getEnv(otelTracesSamplerArgEnv); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to parse %s=%s", otelTracesSamplerArgEnv, v)
			}
			ratio = f
		}
		if samplerValue == "traceidratio" {
			return sdktrace.TraceIDRatioBased(ratio), nil
		}
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio)), nil
	default:
		log.G(ctx).WithField("sampler", samplerValue).Warn("Unsupported tracing sampler, using parentbased_always_on")
		return sdktrace.ParentBased(sdktrace.AlwaysSample()), nil
	}
}
