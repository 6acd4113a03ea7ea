package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// configType describes one selectable configuration category and the Monaco
// APIs it covers.
type configType struct {
	Key        string   `json:"key"`
	Label      string   `json:"label"`
	MonacoAPIs []string `json:"monaco_apis"`
}

// configTypeCatalog is the vocabulary accepted by the config_types operation
// option. Order matters for display, so this is a slice rather than a map.
var configTypeCatalog = []configType{
	{Key: "alerting", Label: "Alerting Profiles", MonacoAPIs: []string{"alerting-profile"}},
	{Key: "dashboards", Label: "Dashboards", MonacoAPIs: []string{"dashboard"}},
	{Key: "slo", Label: "SLO", MonacoAPIs: []string{"slo"}},
	{Key: "rules", Label: "Rules", MonacoAPIs: []string{
		"request-naming-service",
		"service-resource-naming",
		"conditional-naming-service",
		"conditional-naming-processgroup",
		"conditional-naming-host",
	}},
	{Key: "maintenance", Label: "Maintenance Windows", MonacoAPIs: []string{"maintenance-window"}},
	{Key: "notification", Label: "Notification Channels", MonacoAPIs: []string{"notification"}},
	{Key: "management_zone", Label: "Management Zones", MonacoAPIs: []string{"management-zone"}},
	{Key: "anomaly_detection", Label: "Anomaly Detection", MonacoAPIs: []string{
		"anomaly-detection-metrics",
		"anomaly-detection-applications",
		"anomaly-detection-services",
		"anomaly-detection-hosts",
		"anomaly-detection-vmware",
		"anomaly-detection-aws",
		"anomaly-detection-database-services",
		"anomaly-detection-disks",
		"frequent-issue-detection",
	}},
	{Key: "auto_tags", Label: "Auto Tags", MonacoAPIs: []string{"auto-tag"}},
	{Key: "application_detection", Label: "Application Detection Rules", MonacoAPIs: []string{"app-detection-rule", "app-detection-rule-host"}},
	{Key: "service_detection", Label: "Service Detection Rules", MonacoAPIs: []string{
		"service-detection-full-web-request",
		"service-detection-full-web-service",
		"service-detection-opaque-web-request",
		"service-detection-opaque-web-service",
	}},
	{Key: "request_attributes", Label: "Request Attributes", MonacoAPIs: []string{"request-attributes"}},
	{Key: "metric_events", Label: "Metric Events", MonacoAPIs: []string{"anomaly-detection-metrics"}},
	{Key: "synthetic_monitors", Label: "Synthetic Monitors", MonacoAPIs: []string{"synthetic-monitor", "synthetic-location"}},
	{Key: "extensions", Label: "Extensions", MonacoAPIs: []string{"extension"}},
}

// configPresets are named bundles of config type keys. The full preset maps
// to the catch-all "all" selector.
var configPresets = map[string][]string{
	"core": {"alerting", "dashboards", "slo", "maintenance", "notification", "management_zone"},
	"ops":  {"alerting", "dashboards", "slo", "anomaly_detection", "metric_events"},
	"full": {"all"},
}

func (a *API) handleListConfigTypes(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]configType{"config_types": configTypeCatalog})
}

func (a *API) handleListConfigPresets(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]map[string][]string{"presets": configPresets})
}
