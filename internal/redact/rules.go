package redact

import "regexp"

type ruleDef struct {
	name        string
	pattern     string
	replacement string
}

// Order matters: later rules see text already rewritten by earlier ones.
var builtin = []ruleDef{
	// API keys
	{"OpenAI API Key", `sk-[a-zA-Z0-9]{20,}`, "[OPENAI_API_KEY_REDACTED]"},
	{"Anthropic API Key", `sk-ant-[a-zA-Z0-9-]{20,}`, "[ANTHROPIC_API_KEY_REDACTED]"},
	{"GitHub Token", `gh[ps]_[a-zA-Z0-9]{36,}`, "[GITHUB_TOKEN_REDACTED]"},
	{"GitHub OAuth", `gho_[a-zA-Z0-9]{36,}`, "[GITHUB_OAUTH_REDACTED]"},
	{"AWS Access Key", `AKIA[0-9A-Z]{16}`, "[AWS_ACCESS_KEY_REDACTED]"},
	// The terminator is captured and written back.
	{"AWS Secret Key", `[a-zA-Z0-9/+=]{40}(\s|"|$)`, "[AWS_SECRET_KEY_REDACTED]$1"},
	{"Generic API Key", `(?i)(?:api[_-]?key|apikey|api_secret|secret_key)\s*[=:]\s*['"]?[a-zA-Z0-9_-]{16,}['"]?`, "[API_KEY_REDACTED]"},

	// Tokens
	{"Bearer Token", `(?i)Bearer\s+[a-zA-Z0-9._-]+`, "Bearer [TOKEN_REDACTED]"},
	{"JWT Token", `eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`, "[JWT_REDACTED]"},
	{"Slack Token", `xox[baprs]-[a-zA-Z0-9-]+`, "[SLACK_TOKEN_REDACTED]"},

	{"Email", `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, "[EMAIL_REDACTED]"},

	// Connection strings
	{"MongoDB Connection String", `mongodb(?:\+srv)?://[^@\s]+@\S+`, "[MONGODB_CONNECTION_REDACTED]"},
	{"PostgreSQL Connection String", `postgres(?:ql)?://[^@\s]+@\S+`, "[POSTGRES_CONNECTION_REDACTED]"},
	{"MySQL Connection String", `mysql://[^@\s]+@\S+`, "[MYSQL_CONNECTION_REDACTED]"},
	{"Redis Connection String", `redis://[^@\s]*@?\S+`, "[REDIS_CONNECTION_REDACTED]"},

	{"Environment Variable", `(?i)(?:export\s+)?(?:DATABASE_URL|DB_PASSWORD|SECRET_KEY|PRIVATE_KEY|AUTH_SECRET|SESSION_SECRET)\s*=\s*['"]?[^\s'"]+['"]?`, "[ENV_REDACTED]"},

	{"Private IP Address", `\b(?:10\.\d{1,3}|172\.(?:1[6-9]|2\d|3[01])|192\.168)\.\d{1,3}\.\d{1,3}\b`, "[PRIVATE_IP_REDACTED]"},

	{"SSH Private Key", `-----BEGIN (?:RSA |EC |OPENSSH )?PRIVATE KEY-----[\s\S]*?-----END (?:RSA |EC |OPENSSH )?PRIVATE KEY-----`, "[SSH_PRIVATE_KEY_REDACTED]"},

	// Placeholders start with '[' so an already-masked URL is left alone.
	{"Password in URL", `://[^:/\s\[]+:[^@\s]+@`, "://[USER_REDACTED]:[PASSWORD_REDACTED]@"},
}

var compiled = func() []Rule {
	rules := make([]Rule, len(builtin))
	for i, d := range builtin {
		rules[i] = Rule{Name: d.name, Pattern: regexp.MustCompile(d.pattern), Replacement: d.replacement}
	}
	return rules
}()

// DefaultRules returns a copy of the built-in rule table.
func DefaultRules() []Rule {
	out := make([]Rule, len(compiled))
	copy(out, compiled)
	return out
}
