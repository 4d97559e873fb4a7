// internal/reporting/rules.go
package reporting

import (
	"github.com/xkilldash9x/phortress/internal/analysis/static/php/sources"
)

// ruleInfo is the reporting metadata for one vulnerability class.
type ruleInfo struct {
	Name           string
	Description    string
	Recommendation string
	CWE            string
}

var rules = map[sources.VulnerabilityClass]ruleInfo{
	sources.ClassXSS: {
		Name:           "Cross-Site Scripting",
		Description:    "User-controlled data is written to the HTML response without output encoding.",
		Recommendation: "Encode the value for its output context, e.g. with htmlspecialchars() for HTML bodies.",
		CWE:            "CWE-79",
	},
	sources.ClassSQLInjection: {
		Name:           "SQL Injection",
		Description:    "User-controlled data is concatenated into a SQL query.",
		Recommendation: "Use prepared statements with bound parameters instead of building query strings.",
		CWE:            "CWE-89",
	},
	sources.ClassCommand: {
		Name:           "OS Command Injection",
		Description:    "User-controlled data reaches a function that executes a shell command.",
		Recommendation: "Avoid the shell where possible; otherwise quote every argument with escapeshellarg().",
		CWE:            "CWE-78",
	},
	sources.ClassFileInclusion: {
		Name:           "File Inclusion",
		Description:    "User-controlled data selects a file that is included and executed.",
		Recommendation: "Include files from a fixed allow-list rather than from request data.",
		CWE:            "CWE-98",
	},
	sources.ClassCodeInjection: {
		Name:           "Code Injection",
		Description:    "User-controlled data is evaluated as PHP code.",
		Recommendation: "Remove dynamic evaluation of request data.",
		CWE:            "CWE-94",
	},
	sources.ClassHeaderInjection: {
		Name:           "HTTP Header Injection",
		Description:    "User-controlled data is written into an HTTP response header.",
		Recommendation: "Strip CR and LF characters from header values and validate redirect targets.",
		CWE:            "CWE-113",
	},
	sources.ClassPathTraversal: {
		Name:           "Path Traversal",
		Description:    "User-controlled data is used as a filesystem path.",
		Recommendation: "Resolve the path with realpath() and check it stays within the expected directory.",
		CWE:            "CWE-22",
	},
}

// ruleFor returns the metadata for class, falling back to a generic entry
// for classes added through configuration.
func ruleFor(class sources.VulnerabilityClass) ruleInfo {
	if info, ok := rules[class]; ok {
		return info
	}
	return ruleInfo{
		Name:           string(class),
		Description:    "User-controlled data reaches a sensitive function.",
		Recommendation: "Validate or sanitize the value before it reaches the sink.",
	}
}
