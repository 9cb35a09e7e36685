// Package flags defines the CLI flags shared by the juxr subcommands.
// Every flag can also be supplied through a JUXR_-prefixed environment
// variable, which is how the tool is normally configured inside container
// entrypoints.
package flags

import (
	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "JUXR"

// PrefixEnvVar builds the environment variable names for a flag
func PrefixEnvVar(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	Debug = &cli.BoolFlag{
		Name:    "debug",
		Aliases: []string{"d"},
		EnvVars: PrefixEnvVar("DEBUG"),
		Usage:   "Turn on debug logging",
	}
	OutputDir = &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Value:   ".",
		EnvVars: PrefixEnvVar("OUTPUT"),
		Usage:   "Directory in which to write imported files",
	}
	Reports = &cli.StringSliceFlag{
		Name:    "reports",
		Aliases: []string{"r"},
		EnvVars: PrefixEnvVar("REPORTS"),
		Usage:   "The JUnit XML report file(s) to export, supports * and ** style globs",
	}
	Files = &cli.StringSliceFlag{
		Name:    "files",
		EnvVars: PrefixEnvVar("FILES"),
		Usage:   "Additional files to export, supports * and ** style globs",
	}
	Secret = &cli.StringSliceFlag{
		Name:    "secret",
		Aliases: []string{"s"},
		Usage:   "Name of an environment variable with a value that should be redacted from the reports",
	}
	Secrets = &cli.StringFlag{
		Name:    "secrets",
		EnvVars: PrefixEnvVar("SECRETS"),
		Usage:   "A comma separated list of environment variable names with values that should be redacted from the reports",
	}
	SkipExport = &cli.BoolFlag{
		Name:    "skip-export",
		EnvVars: PrefixEnvVar("SKIP_EXPORT"),
		Usage:   "Skip exporting, for use in scripts / containers where you do not always want to export reports",
	}
	SuitePrefix = &cli.StringFlag{
		Name:    "test-suite-prefix",
		EnvVars: PrefixEnvVar("SUITE_PREFIX"),
		Usage:   "A string to prepend to each test suite name",
	}
	SuiteSuffix = &cli.StringFlag{
		Name:    "test-suite-suffix",
		EnvVars: PrefixEnvVar("SUITE_SUFFIX"),
		Usage:   "A string to append to each test suite name",
	}
	NamePrefix = &cli.StringFlag{
		Name:    "test-name-prefix",
		EnvVars: PrefixEnvVar("NAME_PREFIX"),
		Usage:   "A string to prepend to each test case name",
	}
	NameSuffix = &cli.StringFlag{
		Name:    "test-name-suffix",
		EnvVars: PrefixEnvVar("NAME_SUFFIX"),
		Usage:   "A string to append to each test case name",
	}
	ClassPrefix = &cli.StringFlag{
		Name:    "test-class-prefix",
		EnvVars: PrefixEnvVar("CLASS_PREFIX"),
		Usage:   "A string to prepend to each test case class name",
	}
	ClassSuffix = &cli.StringFlag{
		Name:    "test-class-suffix",
		EnvVars: PrefixEnvVar("CLASS_SUFFIX"),
		Usage:   "A string to append to each test case class name",
	}
	SuiteName = &cli.StringFlag{
		Name:     "name",
		Aliases:  []string{"n"},
		Required: true,
		Usage:    "The name of the test suite",
	}
	TestName = &cli.StringFlag{
		Name:     "test",
		Aliases:  []string{"t"},
		Required: true,
		Usage:    "The name of the test case",
	}
	Success = &cli.IntSliceFlag{
		Name:  "success",
		Usage: "Exit codes of the command indicating a successful test result",
	}
	Failure = &cli.IntSliceFlag{
		Name:  "failure",
		Usage: "Exit codes of the command indicating a failed test result",
	}
	Skipped = &cli.IntSliceFlag{
		Name:  "skipped",
		Usage: "Exit codes of the command indicating a skipped test",
	}
	IgnoreFailures = &cli.BoolFlag{
		Name:  "ignore-failures",
		Usage: "Test failures/errors will not affect the exit code",
	}
	RedirectErrToOut = &cli.BoolFlag{
		Name:  "redirect-err-to-out",
		Usage: "Redirects the child process STDERR to STDOUT, useful where buffering is corrupting the export",
	}
)

// ExportFlags are the flags understood by the export and exec subcommands
func ExportFlags() []cli.Flag {
	return append(TransformFlags(), Reports, Files, SkipExport)
}

// TransformFlags are the report-rewriting flags
func TransformFlags() []cli.Flag {
	return []cli.Flag{
		SuitePrefix, SuiteSuffix,
		NamePrefix, NameSuffix,
		ClassPrefix, ClassSuffix,
		Secret, Secrets,
	}
}
