package utils

import (
	"context"

	"github.com/mmdatafocus/sales_recon/appctx"
	"github.com/sirupsen/logrus"
)

var (
	ContextKeyRunId         = appctx.ContextKeyRunId
	ContextKeyChannel       = appctx.ContextKeyChannel
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyDryRun        = appctx.ContextKeyDryRun
)

func GetRunIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyRunId)
}

func GetChannelFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyChannel)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func GetDryRunFromContext(ctx context.Context) bool {
	v, _ := appctx.GetBool(ctx, ContextKeyDryRun)
	return v
}

func SetRunIdInContext(ctx context.Context, runId string) context.Context {
	return appctx.Set(ctx, ContextKeyRunId, runId)
}

func SetChannelInContext(ctx context.Context, channel string) context.Context {
	return appctx.Set(ctx, ContextKeyChannel, channel)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func SetDryRunInContext(ctx context.Context, dryRun bool) context.Context {
	return appctx.Set(ctx, ContextKeyDryRun, dryRun)
}

// LogFields returns the run identifiers carried by ctx as logrus fields.
func LogFields(ctx context.Context) logrus.Fields {
	fields := logrus.Fields{}
	if v, ok := GetRunIdFromContext(ctx); ok && v != "" {
		fields["run_id"] = v
	}
	if v, ok := GetChannelFromContext(ctx); ok && v != "" {
		fields["channel"] = v
	}
	if v, ok := GetCorrelationIdFromContext(ctx); ok && v != "" {
		fields["correlation_id"] = v
	}
	return fields
}
