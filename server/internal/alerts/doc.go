// Package alerts implements the rule engine that watches live monitoring
// sessions. Rules such as "fatigue_alert == true" or "health_score < 50"
// are evaluated on every analysis result with a per-session cooldown.
// Firing and resolved alerts are delivered to Slack, Teams or generic HTTP
// webhooks and published over MQTT.
package alerts
