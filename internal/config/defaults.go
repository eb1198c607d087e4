package config

var defaults = map[string]any{
	"secret":    "",
	"log_level": "info",

	"nonce_store": "memory",

	"user_auth_ttl": 8, // 8 days
	"base_url":      "/",

	"rbac.policy_file": "",

	"email.host":     "host.docker.internal",
	"email.port":     "25",
	"email.username": "",
	"email.password": "",
	"email.from":     "noreply@example.com",

	"storage.type":        "sqlite",
	"storage.sqlite.path": "./data/lototrak.db",
}

func Defaults() map[string]any {
	values := make(map[string]any)
	for k, v := range defaults {
		values[k] = v
	}
	return values
}
