package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	juxr "github.com/cloudbees-oss/juxr"
	"github.com/cloudbees-oss/juxr/exitcodes"
	"github.com/cloudbees-oss/juxr/flags"
	"github.com/cloudbees-oss/juxr/metrics"
	"github.com/cloudbees-oss/juxr/reports"
	"github.com/cloudbees-oss/juxr/suite"
	"github.com/cloudbees-oss/juxr/tap"
	"github.com/cloudbees-oss/juxr/types"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := &cli.App{
		Name:    "juxr",
		Usage:   "JUnit XML Reporting toolkit",
		Version: fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate),
		Flags:   []cli.Flag{flags.Debug},
		Before: func(c *cli.Context) error {
			verbosity := log.LevelInfo
			if c.Bool(flags.Debug.Name) {
				verbosity = log.LevelDebug
			}
			log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, verbosity, false)))
			return nil
		},
		Commands: []*cli.Command{
			importCommand(),
			exportCommand(),
			execCommand(),
			testCommand(),
			runCommand(),
			tapCommand(),
		},
	}
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			if juxr.IsRuntimeError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RuntimeErr))
			} else if juxr.IsTestFailureError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.TestFailure))
			} else {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.TestFailure))
			}
		}
	}

	if err := app.Run(os.Args); err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Imports JUnit XML Reports and attachments from STDIN",
		Flags: append(flags.TransformFlags(), flags.OutputDir),
		Action: func(c *cli.Context) error {
			importer := &juxr.Importer{
				OutputDir:   c.String(flags.OutputDir.Name),
				Transformer: transformer(c),
				Log:         log.Root(),
			}
			result, err := importer.Run(os.Stdin, os.Stdout)
			if err != nil {
				return err
			}
			for _, s := range result.Suites {
				metrics.RecordSuite(s)
			}
			if len(result.Errs) > 0 {
				for _, err := range result.Errs {
					log.Warn("Import error", "err", err)
				}
				return juxr.NewTestFailureError(fmt.Sprintf("%d artifact(s) were lost or corrupt", len(result.Errs)))
			}
			log.Debug("Import complete", "files", len(result.Files))
			return nil
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export JUnit XML Reports (and any referenced attachments) to STDOUT",
		Flags: flags.ExportFlags(),
		Action: func(c *cli.Context) error {
			exporter := &juxr.Exporter{
				Transformer: transformer(c),
				Skip:        c.Bool(flags.SkipExport.Name),
				Log:         log.Root(),
			}
			return exporter.Export(os.Stdout, c.StringSlice(flags.Reports.Name), c.StringSlice(flags.Files.Name))
		},
	}
}

func execCommand() *cli.Command {
	return &cli.Command{
		Name: "exec",
		Usage: "Runs a command that generates JUnit XML Reports and exports them " +
			"(and any referenced attachments) to STDOUT before propagating the invoked command's exit code",
		ArgsUsage: "-- command [args...]",
		Flags:     append(flags.ExportFlags(), flags.RedirectErrToOut, flags.IgnoreFailures),
		Action: func(c *cli.Context) error {
			executor := &juxr.Executor{
				Exporter: &juxr.Exporter{
					Transformer: transformer(c),
					Skip:        c.Bool(flags.SkipExport.Name),
					Log:         log.Root(),
				},
				RedirectErrToOut: c.Bool(flags.RedirectErrToOut.Name),
				Log:              log.Root(),
			}
			code, err := executor.Run(c.Context, c.Args().Slice(), os.Stdout, os.Stderr,
				c.StringSlice(flags.Reports.Name), c.StringSlice(flags.Files.Name))
			if err != nil {
				return err
			}
			if code != 0 && !c.Bool(flags.IgnoreFailures.Name) {
				return cli.Exit("", code)
			}
			return nil
		},
	}
}

func testCommand() *cli.Command {
	return &cli.Command{
		Name:      "test",
		Usage:     "Runs a single command as a test and captures the result in JUnit XML format",
		ArgsUsage: "-- command [args...]",
		Flags: []cli.Flag{
			flags.SuiteName, flags.TestName, flags.OutputDir,
			flags.Success, flags.Failure, flags.Skipped, flags.IgnoreFailures,
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() == 0 {
				return juxr.NewRuntimeError(errors.New("a command to execute must be supplied"))
			}
			test := &suite.PlanTest{
				Command:    suite.Command{Exec: c.Args().Slice()},
				Classifier: classifier(c),
			}
			if err := test.Classifier.Validate(); err != nil {
				return juxr.NewRuntimeError(err)
			}
			name := c.String(flags.SuiteName.Name)
			results := types.NewTestSuite(name)
			fmt.Println(results.StartSummary())
			results.Append(test.Run(c.Context, name, c.String(flags.TestName.Name), log.Root()))
			return finishSuite(c, results)
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name: "run",
		Usage: "Runs a basic set of tests as expressed in a simplified YAML format and " +
			"captures their results as a JUnit XML format test report",
		ArgsUsage: "suite.yaml...",
		Flags:     []cli.Flag{flags.OutputDir, flags.IgnoreFailures},
		Action: func(c *cli.Context) error {
			exitCode := 0
			for _, planPath := range c.Args().Slice() {
				f, err := os.Open(planPath)
				if err != nil {
					log.Error("Could not open test definitions", "path", planPath, "err", err)
					exitCode = exitcodes.TestFailure
					continue
				}
				plan, err := suite.ReadPlan(f)
				f.Close()
				if err != nil {
					log.Error("Could not read tests", "path", planPath, "err", err)
					exitCode = exitcodes.TestFailure
					continue
				}
				name := strings.TrimSuffix(filepath.Base(planPath), filepath.Ext(planPath))
				results := types.NewTestSuite(name)
				fmt.Println(results.StartSummary())
				for _, testName := range plan.Names() {
					results.Append(plan.Get(testName).Run(c.Context, name, testName, log.Root()))
				}
				juxr.FormatSuite(os.Stdout, results)
				fmt.Println(results.EndSummary())
				metrics.RecordSuite(results)
				if _, err := reports.WriteFile(outputDir(c), results); err != nil {
					log.Error("Could not write test results", "err", err)
					exitCode = exitcodes.TestFailure
				}
				if results.ExitCode() != 0 {
					exitCode = exitcodes.TestFailure
				}
			}
			if exitCode != 0 && !c.Bool(flags.IgnoreFailures.Name) {
				return cli.Exit("", exitCode)
			}
			return nil
		},
	}
}

func tapCommand() *cli.Command {
	return &cli.Command{
		Name: "tap",
		Usage: "Parses TAP formatted results into JUnit XML Report format. " +
			"If no command is specified then STDIN will be parsed for the TAP formatted test report, " +
			"otherwise the supplied command will be run and its output parsed as a TAP formatted test report",
		ArgsUsage: "[-- command [args...]]",
		Flags: []cli.Flag{
			flags.SuiteName, flags.OutputDir,
			flags.Success, flags.Failure, flags.Skipped, flags.IgnoreFailures,
		},
		Action: func(c *cli.Context) error {
			name := c.String(flags.SuiteName.Name)
			cls := classifier(c)
			if err := cls.Validate(); err != nil {
				return juxr.NewRuntimeError(err)
			}
			fmt.Printf("Running %s\n", name)
			var (
				results *types.TestSuite
				code    int
				err     error
			)
			if c.Args().Len() > 0 {
				runner := &tap.Runner{Suite: name, Classifier: cls, Log: log.Root()}
				results, code, err = runner.Run(c.Context, c.Args().Slice())
			} else {
				results, err = tap.Parse(name, os.Stdin)
			}
			if err != nil {
				return juxr.NewRuntimeError(fmt.Errorf("could not parse TAP results: %w", err))
			}
			juxr.FormatSuite(os.Stdout, results)
			fmt.Println(results.EndSummary())
			metrics.RecordSuite(results)
			if _, err := reports.WriteFile(outputDir(c), results); err != nil {
				return juxr.NewRuntimeError(err)
			}
			if c.Bool(flags.IgnoreFailures.Name) {
				return nil
			}
			if code > 0 {
				return cli.Exit("", code)
			}
			if results.ExitCode() != 0 {
				return juxr.NewTestFailureError(fmt.Sprintf("suite %s had failing tests", name))
			}
			return nil
		},
	}
}

// finishSuite prints the summary, writes the report and maps the suite
// outcome to the process exit code.
func finishSuite(c *cli.Context, results *types.TestSuite) error {
	juxr.FormatSuite(os.Stdout, results)
	fmt.Println(results.EndSummary())
	metrics.RecordSuite(results)
	if _, err := reports.WriteFile(outputDir(c), results); err != nil {
		return juxr.NewRuntimeError(err)
	}
	if results.ExitCode() != 0 && !c.Bool(flags.IgnoreFailures.Name) {
		return juxr.NewTestFailureError(fmt.Sprintf("suite %s had failing tests", results.Name))
	}
	return nil
}

// outputDir resolves and creates the output directory
func outputDir(c *cli.Context) string {
	dir := c.String(flags.OutputDir.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Error("Could not create output directory", "dir", dir, "err", err)
	}
	return dir
}

// transformer assembles the report transformer from the rewrite and
// redaction flags. Secret flags name environment variables; the values to
// redact are read from the environment.
func transformer(c *cli.Context) *reports.Transformer {
	t := &reports.Transformer{
		SuiteNamePrefix: c.String(flags.SuitePrefix.Name),
		SuiteNameSuffix: c.String(flags.SuiteSuffix.Name),
		CaseNamePrefix:  c.String(flags.NamePrefix.Name),
		CaseNameSuffix:  c.String(flags.NameSuffix.Name),
		ClassPrefix:     c.String(flags.ClassPrefix.Name),
		ClassSuffix:     c.String(flags.ClassSuffix.Name),
	}
	names := c.StringSlice(flags.Secret.Name)
	if list := c.String(flags.Secrets.Name); list != "" {
		names = append(names, strings.Split(list, ",")...)
	}
	for _, env := range names {
		env = strings.TrimSpace(env)
		if env == "" {
			continue
		}
		if value, ok := os.LookupEnv(env); ok && value != "" {
			log.Debug("Redacting value of environment variable from reports", "name", env)
			t.AddSecret(value)
		}
	}
	return t
}

// classifier reads the exit-code sets, leaving unset sets nil so the
// defaults apply.
func classifier(c *cli.Context) exitcodes.Classifier {
	var cls exitcodes.Classifier
	if c.IsSet(flags.Success.Name) {
		cls.Success = c.IntSlice(flags.Success.Name)
	}
	if c.IsSet(flags.Failure.Name) {
		cls.Failure = c.IntSlice(flags.Failure.Name)
	}
	if c.IsSet(flags.Skipped.Name) {
		cls.Skipped = c.IntSlice(flags.Skipped.Name)
	}
	return cls
}
