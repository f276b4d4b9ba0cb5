package masking

import "regexp"

// CompiledPattern holds a pre-compiled regex pattern with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
	Description string
}

// builtinPatterns compiles the structural credential patterns. These run
// after literal secret replacement and catch credentials the process never
// saw directly, such as keys a provider reflects back inside an error body.
func builtinPatterns() []*CompiledPattern {
	return []*CompiledPattern{
		{
			Name:        "authorization_bearer",
			Regex:       regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~+/\-]+=*`),
			Replacement: "${1}" + Placeholder,
			Description: "Bearer tokens in Authorization headers",
		},
		{
			Name:        "json_credential_field",
			Regex:       regexp.MustCompile(`(?i)("(?:api[_-]?key|apikey|token|secret|password)"\s*:\s*")[^"]*(")`),
			Replacement: "${1}" + Placeholder + "${2}",
			Description: "Credential fields in JSON bodies",
		},
		{
			Name:        "query_credential_param",
			Regex:       regexp.MustCompile(`(?i)([?&](?:key|api[_-]?key|apikey|token|access_token)=)[^&\s"']+`),
			Replacement: "${1}" + Placeholder,
			Description: "Credential query parameters in URLs",
		},
	}
}
