package provider

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/mikecbrant/secure-static-site/internal/utils/logging"
)

func valueOrDefault[T ~string](ptr *T, def T) string {
	if ptr == nil {
		return string(def)
	}
	return string(*ptr)
}

// pulumiLogger forwards library logs to the engine, attached to a resource so they show up
// under it in the CLI.
type pulumiLogger struct {
	ctx *pulumi.Context
	res pulumi.Resource
}

var _ logging.Logger = pulumiLogger{}

func (l pulumiLogger) Debug(msg string, fields logging.Fields) {
	_ = l.ctx.Log.Debug(formatLogLine(msg, fields), &pulumi.LogArgs{Resource: l.res})
}

func (l pulumiLogger) Info(msg string, fields logging.Fields) {
	_ = l.ctx.Log.Info(formatLogLine(msg, fields), &pulumi.LogArgs{Resource: l.res})
}

func (l pulumiLogger) Warn(msg string, fields logging.Fields) {
	_ = l.ctx.Log.Warn(formatLogLine(msg, fields), &pulumi.LogArgs{Resource: l.res})
}

// formatLogLine renders msg followed by key=value pairs in key order.
func formatLogLine(msg string, fields logging.Fields) string {
	if len(fields) == 0 {
		return msg
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString(msg)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, fields[k])
	}
	return sb.String()
}
