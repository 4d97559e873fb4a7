// Package sources defines the PHP taint sources, sanitizers and sinks the
// analyser knows about.
package sources

// VulnerabilityClass categorizes the impact of a sink and the protection
// a sanitizer provides.
type VulnerabilityClass string

const (
	ClassXSS             VulnerabilityClass = "xss"
	ClassSQLInjection    VulnerabilityClass = "sql_injection"
	ClassCommand         VulnerabilityClass = "command_injection"
	ClassFileInclusion   VulnerabilityClass = "file_inclusion"
	ClassCodeInjection   VulnerabilityClass = "code_injection"
	ClassHeaderInjection VulnerabilityClass = "header_injection"
	ClassPathTraversal   VulnerabilityClass = "path_traversal"
	// ClassAll is used by sanitizers that neutralize any payload, such as
	// integer conversion.
	ClassAll VulnerabilityClass = "*"
)

// SanitizerDefinition describes a function that makes its result safe for
// the listed classes.
type SanitizerDefinition struct {
	Name     string
	Protects []VulnerabilityClass
}

// ReverserDefinition describes a function that undoes a sanitizer.
type ReverserDefinition struct {
	Name   string
	Undoes string
}

// SinkDefinition describes a function or construct where tainted data
// leads to a vulnerability.
type SinkDefinition struct {
	Name  string
	Class VulnerabilityClass
	// Args lists the sensitive argument positions. Empty means all.
	Args []int
}

// Definitions is the complete set of names a Registry is built from.
type Definitions struct {
	InputVariables []string
	InputFunctions []string
	Sanitizers     []SanitizerDefinition
	Reversers      []ReverserDefinition
	Sinks          []SinkDefinition
}

// DefaultDefinitions returns the built-in catalogue.
func DefaultDefinitions() Definitions {
	return Definitions{
		InputVariables: []string{"$_GET", "$_POST", "$_COOKIE", "$_REQUEST", "$_FILES", "$_SERVER"},
		InputFunctions: []string{
			"filter_input",
			"filter_input_array",
			"getallheaders",
			"apache_request_headers",
			"getenv",
			"fgets",
			"fread",
			"stream_get_contents",
		},
		Sanitizers: []SanitizerDefinition{
			{Name: "htmlspecialchars", Protects: []VulnerabilityClass{ClassXSS}},
			{Name: "htmlentities", Protects: []VulnerabilityClass{ClassXSS}},
			{Name: "strip_tags", Protects: []VulnerabilityClass{ClassXSS}},
			{Name: "urlencode", Protects: []VulnerabilityClass{ClassXSS, ClassHeaderInjection}},
			{Name: "rawurlencode", Protects: []VulnerabilityClass{ClassXSS, ClassHeaderInjection}},
			{Name: "json_encode", Protects: []VulnerabilityClass{ClassXSS}},
			{Name: "addslashes", Protects: []VulnerabilityClass{ClassSQLInjection}},
			{Name: "mysql_real_escape_string", Protects: []VulnerabilityClass{ClassSQLInjection}},
			{Name: "mysqli_real_escape_string", Protects: []VulnerabilityClass{ClassSQLInjection}},
			{Name: "pg_escape_string", Protects: []VulnerabilityClass{ClassSQLInjection}},
			{Name: "pg_escape_literal", Protects: []VulnerabilityClass{ClassSQLInjection}},
			{Name: "sqlite_escape_string", Protects: []VulnerabilityClass{ClassSQLInjection}},
			{Name: "escapeshellarg", Protects: []VulnerabilityClass{ClassCommand}},
			{Name: "escapeshellcmd", Protects: []VulnerabilityClass{ClassCommand}},
			{Name: "basename", Protects: []VulnerabilityClass{ClassPathTraversal, ClassFileInclusion}},
			{Name: "realpath", Protects: []VulnerabilityClass{ClassPathTraversal}},
			{Name: "intval", Protects: []VulnerabilityClass{ClassAll}},
			{Name: "floatval", Protects: []VulnerabilityClass{ClassAll}},
			{Name: "boolval", Protects: []VulnerabilityClass{ClassAll}},
			{Name: "md5", Protects: []VulnerabilityClass{ClassAll}},
			{Name: "sha1", Protects: []VulnerabilityClass{ClassAll}},
		},
		Reversers: []ReverserDefinition{
			{Name: "htmlspecialchars_decode", Undoes: "htmlspecialchars"},
			{Name: "html_entity_decode", Undoes: "htmlentities"},
			{Name: "stripslashes", Undoes: "addslashes"},
			{Name: "urldecode", Undoes: "urlencode"},
			{Name: "rawurldecode", Undoes: "rawurlencode"},
		},
		Sinks: []SinkDefinition{
			{Name: "echo", Class: ClassXSS},
			{Name: "print", Class: ClassXSS},
			{Name: "exit", Class: ClassXSS},
			{Name: "die", Class: ClassXSS},
			{Name: "printf", Class: ClassXSS},
			{Name: "vprintf", Class: ClassXSS},

			{Name: "mysql_query", Class: ClassSQLInjection, Args: []int{0}},
			{Name: "mysqli_query", Class: ClassSQLInjection, Args: []int{1}},
			{Name: "mysqli_multi_query", Class: ClassSQLInjection, Args: []int{1}},
			{Name: "pg_query", Class: ClassSQLInjection},
			{Name: "sqlite_query", Class: ClassSQLInjection},
			{Name: "db2_exec", Class: ClassSQLInjection, Args: []int{1}},

			{Name: "exec", Class: ClassCommand, Args: []int{0}},
			{Name: "system", Class: ClassCommand, Args: []int{0}},
			{Name: "shell_exec", Class: ClassCommand, Args: []int{0}},
			{Name: "passthru", Class: ClassCommand, Args: []int{0}},
			{Name: "popen", Class: ClassCommand, Args: []int{0}},
			{Name: "proc_open", Class: ClassCommand, Args: []int{0}},
			{Name: "pcntl_exec", Class: ClassCommand, Args: []int{0}},

			{Name: "include", Class: ClassFileInclusion},
			{Name: "include_once", Class: ClassFileInclusion},
			{Name: "require", Class: ClassFileInclusion},
			{Name: "require_once", Class: ClassFileInclusion},

			{Name: "eval", Class: ClassCodeInjection},
			{Name: "assert", Class: ClassCodeInjection, Args: []int{0}},
			{Name: "create_function", Class: ClassCodeInjection},

			{Name: "header", Class: ClassHeaderInjection, Args: []int{0}},
			{Name: "setcookie", Class: ClassHeaderInjection, Args: []int{1}},

			{Name: "file_get_contents", Class: ClassPathTraversal, Args: []int{0}},
			{Name: "file_put_contents", Class: ClassPathTraversal, Args: []int{0}},
			{Name: "fopen", Class: ClassPathTraversal, Args: []int{0}},
			{Name: "readfile", Class: ClassPathTraversal, Args: []int{0}},
			{Name: "unlink", Class: ClassPathTraversal, Args: []int{0}},
			{Name: "file", Class: ClassPathTraversal, Args: []int{0}},
		},
	}
}
