package targets

import (
	"github.com/papapumpkin/buildscript/internal/config"
	"github.com/papapumpkin/buildscript/internal/target"
	"github.com/papapumpkin/buildscript/internal/workspace"
)

// SharedConfig returns the configuration shared by every service. It is
// only meaningful after run-init, and only when the broker is enabled; ok
// is false otherwise.
func SharedConfig(c *target.Collection, cfg config.Config) (workspace.SharedConfig, bool) {
	broker, ok := target.Lookup[*rabbitmqTarget](c, RabbitMQ)
	if !ok {
		return workspace.SharedConfig{}, false
	}
	ip := cfg.ServerIP
	if ip == "" {
		ip = "127.0.0.1"
	}
	return workspace.SharedConfig{ServerIP: ip, RabbitMQURL: broker.AMQPURL()}, true
}
