package rediskey

import "fmt"

// Quota keys (global convention across services)
const (
	QuotaPrefix      = "quota"
	ExecutionsPrefix = "quota:executions"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildExecutionsKey returns "quota:executions:{tenantID}"
func BuildExecutionsKey(tenantID string) string {
	return NamespaceKey(ExecutionsPrefix, tenantID)
}
