package rate

import (
	"fmt"
	"strings"

	"gateflow/internal/metrics"
	"gateflow/logger"
)

func component(exchange, dataType string) string {
	return fmt.Sprintf("%s_%s", strings.ToLower(exchange), strings.ToLower(dataType))
}

func limitFields(exchange, symbol, ip, dataType string) logger.Fields {
	fields := logger.Fields{
		"exchange": strings.ToLower(exchange),
		"type":     strings.ToLower(dataType),
	}
	if symbol != "" {
		fields["symbol"] = symbol
	}
	if ip != "" {
		fields["ip"] = ip
	}
	return fields
}

// ReportRateLimitExceeded counts one rejected request for exchange and
// dataType. symbol and ip are optional.
func ReportRateLimitExceeded(log *logger.Log, exchange, symbol, ip, dataType string) {
	if log == nil {
		log = logger.GetLogger()
	}
	c := component(exchange, dataType)
	fields := limitFields(exchange, symbol, ip, dataType)
	metrics.EmitMetric(log, c, "rate_limit_exceeded", int64(1), "counter", fields)
	log.WithComponent(c).WithFields(fields).Warn("rate limit exceeded")
}

// ReportIPBan counts one IP ban for exchange and dataType.
func ReportIPBan(log *logger.Log, exchange, symbol, ip, dataType string) {
	if log == nil {
		log = logger.GetLogger()
	}
	c := component(exchange, dataType)
	fields := limitFields(exchange, symbol, ip, dataType)
	metrics.EmitMetric(log, c, "ip_ban", int64(1), "counter", fields)
	log.WithComponent(c).WithFields(fields).Error("ip banned")
}

// detectLimit inspects an error message or label and reports whether it
// signals a rate limit or an IP ban.
func detectLimit(exchange, msg string) (rateLimit bool, ipBan bool) {
	lowerMsg := strings.ToLower(msg)
	switch strings.ToLower(exchange) {
	case "gate":
		ipBan = strings.Contains(lowerMsg, "ip") && (strings.Contains(lowerMsg, "forbidden") || strings.Contains(lowerMsg, "ban"))
		rateLimit = !ipBan && (strings.Contains(lowerMsg, "too_many_requests") ||
			strings.Contains(lowerMsg, "too many requests") ||
			strings.Contains(lowerMsg, "request rate limit"))
	default:
		rateLimit = strings.Contains(lowerMsg, "rate limit") || strings.Contains(lowerMsg, "too many requests")
		ipBan = strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "ban")
	}
	return
}

// ReportLimitFromMessage records a rate limit or IP ban when msg matches the
// exchange's wording, and reports whether anything was recorded.
func ReportLimitFromMessage(log *logger.Log, exchange, symbol, ip, dataType, msg string) bool {
	rateLimit, ipBan := detectLimit(exchange, msg)
	if rateLimit {
		ReportRateLimitExceeded(log, exchange, symbol, ip, dataType)
	}
	if ipBan {
		ReportIPBan(log, exchange, symbol, ip, dataType)
	}
	return rateLimit || ipBan
}
