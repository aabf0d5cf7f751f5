package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/vistralis/zen/internal/activitylog"
	"github.com/vistralis/zen/internal/bulkimport"
	"github.com/vistralis/zen/internal/health"
	"github.com/vistralis/zen/internal/installer"
	"github.com/vistralis/zen/internal/redact"
	"github.com/vistralis/zen/internal/registry"
	"github.com/vistralis/zen/internal/scanner"
	"github.com/vistralis/zen/internal/validate"
	"github.com/vistralis/zen/internal/zenconfig"
	"github.com/vistralis/zen/internal/zenerr"
)

var (
	verbose        bool
	configDirFlag  string
	installCommand string

	version = "dev"
	commit  = "none"
	date    = "unknown"

	log      *slog.Logger
	store    *registry.Store
	clock    clockwork.Clock
	activity *activitylog.Log
	checker  *health.Checker
	resolver *health.Resolver
	pkgCache *scanner.Cache
	delegate *installer.Delegate
)

var rootCmd = &cobra.Command{
	Use:   "zen",
	Short: "Zen manages Python virtual environments and their health on this machine",
	Long: `Zen is a local registry and health engine for Python virtual environments:
it tracks where your environments live, which project directories they belong
to, and whether their installed packages are internally consistent.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log = newLogger(verbose)

		zcfg, err := zenconfig.Load()
		if err != nil {
			return fmt.Errorf("failed to resolve zen config: %w", err)
		}
		if configDirFlag != "" {
			zcfg.ConfigDir = configDirFlag
		}
		if _, err := zcfg.EnsureConfigDir(); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}

		store, err = registry.New(registry.Config{Logger: log, Path: zcfg.DBPath()})
		if err != nil {
			return fmt.Errorf("failed to open registry: %w", err)
		}

		activity, err = activitylog.New(zcfg.LogPath(), clockwork.NewRealClock())
		if err != nil {
			return fmt.Errorf("failed to open activity log: %w", err)
		}

		clock = clockwork.NewRealClock()
		pkgCache, err = scanner.NewCache(1 << 14)
		if err != nil {
			return fmt.Errorf("failed to create scan cache: %w", err)
		}
		checker = health.NewChecker(pkgCache)
		resolver = health.NewResolver(store, clock)
		delegate = installer.New(installCommand)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			store.Close()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("zen %s (commit: %s, built: %s)\n", version, commit, date)
		fmt.Printf("registry schema version: %d\n", registry.CurrentSchema)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		envs, err := store.ListEnvironments()
		if err != nil {
			return err
		}
		if len(envs) == 0 {
			fmt.Println("no environments registered")
			return nil
		}
		for _, e := range envs {
			sev := checker.QuickCheck(e.Name, e.Path)
			star := ""
			if e.IsFavorite {
				star = " *"
			}
			fmt.Printf("%-24s %-10s %-8s %s%s\n", e.Name, e.PythonVersion, sev, redact.Path(e.Path), star)
		}
		return nil
	},
}

var createCmd = &cobra.Command{
	Use:   "create NAME PATH PYTHON_VERSION",
	Short: "Register an already-created environment directory under a name",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, path, pyVersion := args[0], args[1], args[2]
		if err := validate.Name(name, "Environment"); err != nil {
			return err
		}
		if err := validate.PythonVersion(pyVersion); err != nil {
			return err
		}
		env, err := store.RegisterEnvironment(clock, name, path, pyVersion)
		if err != nil {
			return err
		}
		activity.Append("cli", "create_environment", fmt.Sprintf("%s -> %s", env.Name, redact.Path(env.Path)))
		fmt.Printf("registered %q\n", env.Name)
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "Untrack an environment (use --purge to also delete its registry record's disk reference)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		purge, _ := cmd.Flags().GetBool("purge")
		if purge {
			if err := store.DeleteEnvironment(name); err != nil {
				return err
			}
			activity.Append("cli", "delete_environment", name)
			fmt.Printf("deleted %q\n", name)
			return nil
		}
		if err := store.UntrackEnvironment(name); err != nil {
			return err
		}
		activity.Append("cli", "untrack_environment", name)
		fmt.Printf("untracked %q\n", name)
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info NAME",
	Short: "Show one environment's registry record and labels",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := store.LookupEnvironmentByName(args[0])
		if err != nil {
			return err
		}
		labels, err := store.ListLabels(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("name:      %s\n", env.Name)
		fmt.Printf("path:      %s\n", redact.Path(env.Path))
		fmt.Printf("python:    %s\n", env.PythonVersion)
		fmt.Printf("favorite:  %t\n", env.IsFavorite)
		fmt.Printf("created:   %s\n", env.CreatedAt.Format(time.RFC3339))
		fmt.Printf("labels:    %s\n", strings.Join(labels, ", "))
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health NAME",
	Short: "Run a full health check against an environment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := store.LookupEnvironmentByName(args[0])
		if err != nil {
			return err
		}
		report := checker.Check(env.Name, env.Path)
		for _, d := range report.Diagnostics {
			fmt.Printf("[%s] %s: %s\n", strings.ToUpper(d.Severity().String()), d.Kind, d.Detail)
		}
		fmt.Printf("overall: %s\n", report.OverallSeverity())
		return nil
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff NAME_A NAME_B",
	Short: "Compare the installed package sets of two environments",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		envA, err := store.LookupEnvironmentByName(args[0])
		if err != nil {
			return err
		}
		envB, err := store.LookupEnvironmentByName(args[1])
		if err != nil {
			return err
		}
		a := packagesByName(pkgCache.Scan(envA.Path))
		b := packagesByName(pkgCache.Scan(envB.Path))
		printDiff(a, b)
		return nil
	},
}

func packagesByName(pkgs []scanner.Package) map[string]string {
	m := make(map[string]string, len(pkgs))
	for _, p := range pkgs {
		m[p.Name] = p.Version
	}
	return m
}

func printDiff(a, b map[string]string) {
	for name, va := range a {
		if vb, ok := b[name]; !ok {
			fmt.Printf("- %s %s\n", name, va)
		} else if va != vb {
			fmt.Printf("~ %s %s -> %s\n", name, va, vb)
		}
	}
	for name, vb := range b {
		if _, ok := a[name]; !ok {
			fmt.Printf("+ %s %s\n", name, vb)
		}
	}
}

var scanCmd = &cobra.Command{
	Use:   "scan PATH...",
	Short: "Scan candidate directories in parallel and report which look like environments",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		results, err := bulkimport.ScanAll(context.Background(), args, concurrency)
		if err != nil {
			return err
		}
		for _, r := range results {
			if r.Err != nil {
				fmt.Printf("%s: %v\n", redact.Path(r.EnvRoot), r.Err)
				continue
			}
			fmt.Printf("%s: %d packages\n", redact.Path(r.EnvRoot), len(r.Packages))
		}
		return nil
	},
}

var findCmd = &cobra.Command{
	Use:   "find PACKAGE",
	Short: "Find every registered environment with a given package installed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := scanner.Normalize(args[0])
		envs, err := store.ListEnvironments()
		if err != nil {
			return err
		}
		found := false
		for _, env := range envs {
			for _, pkg := range pkgCache.Scan(env.Path) {
				if pkg.Name == target {
					fmt.Printf("%-24s %s\n", env.Name, pkg.Version)
					found = true
				}
			}
		}
		if !found {
			fmt.Printf("%s not found in any registered environment\n", args[0])
		}
		return nil
	},
}

var packageCmd = &cobra.Command{
	Use:   "package NAME PACKAGE",
	Short: "Show one package's scanned metadata within one environment",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := store.LookupEnvironmentByName(args[0])
		if err != nil {
			return err
		}
		target := scanner.Normalize(args[1])
		for _, pkg := range pkgCache.Scan(env.Path) {
			if pkg.Name != target {
				continue
			}
			fmt.Printf("name:      %s\n", pkg.Name)
			fmt.Printf("version:   %s\n", pkg.Version)
			fmt.Printf("installer: %s\n", pkg.Installer)
			fmt.Printf("source:    %s\n", pkg.InstallSource)
			fmt.Printf("editable:  %t\n", pkg.Editable)
			if pkg.SourceURL != "" {
				fmt.Printf("url:       %s\n", pkg.SourceURL)
			}
			if pkg.ImportName != "" {
				fmt.Printf("import as: %s\n", pkg.ImportName)
			}
			return nil
		}
		fmt.Printf("%s not installed in %s\n", args[1], args[0])
		return nil
	},
}

var associateCmd = &cobra.Command{
	Use:   "associate PROJECT_PATH ENV_NAME",
	Short: "Link a project directory to an environment",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		isDefault, _ := cmd.Flags().GetBool("default")
		tag, _ := cmd.Flags().GetString("tag")

		env, err := store.LookupEnvironmentByName(args[1])
		if err != nil {
			return err
		}
		var tagPtr *string
		if tag != "" {
			tagPtr = &tag
		}
		if _, err := store.AssociateProject(clock, args[0], env.ID, isDefault, tagPtr); err != nil {
			return err
		}
		activity.Append("cli", "associate_project", fmt.Sprintf("%s -> %s", redact.Path(args[0]), env.Name))
		fmt.Printf("linked %s to %s\n", redact.Path(args[0]), env.Name)
		return nil
	},
}

var activateCmd = &cobra.Command{
	Use:   "activate [PATH]",
	Short: "Resolve which environment to activate for a directory (defaults to $PWD)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd := "."
		if len(args) == 1 {
			cwd = args[0]
		} else if pwd, err := os.Getwd(); err == nil {
			cwd = pwd
		}

		outcome, err := resolver.Resolve(cwd, envPathExists)
		if err != nil {
			return err
		}
		if outcome.AutoSelected {
			c := outcome.Candidates[0]
			activity.Append("cli", "activate", fmt.Sprintf("%s -> %s (auto)", redact.Path(cwd), c.EnvName))
			fmt.Println(c.EnvName)
			return nil
		}
		for _, c := range outcome.Candidates {
			fmt.Printf("%s\t%s\n", c.EnvName, redact.Path(c.EnvPath))
		}
		return nil
	},
}

func envPathExists(envPath string) bool {
	_, err := os.Stat(envPath)
	return err == nil
}

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Manage project notes",
}

var noteAddCmd = &cobra.Command{
	Use:   "add PROJECT_PATH MESSAGE",
	Short: "Add a note against a project path",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := uuid.NewString()
		if _, err := store.AddNote(clock, id, args[0], nil, args[1], nil); err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var noteListCmd = &cobra.Command{
	Use:   "list [PROJECT_PATH]",
	Short: "List notes, optionally filtered by project path",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var path *string
		if len(args) == 1 {
			path = &args[0]
		}
		notes, err := store.ListNotes(path, nil)
		if err != nil {
			return err
		}
		for _, n := range notes {
			fmt.Printf("%s  %s  %s\n", n.UUID[:8], redact.Path(n.ProjectPath), n.Message)
		}
		return nil
	},
}

var labelCmd = &cobra.Command{
	Use:   "label",
	Short: "Manage environment labels",
}

var labelAddCmd = &cobra.Command{
	Use:   "add ENV_NAME LABEL",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := store.AddLabel(clock, args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("labeled %s: %s\n", args[0], args[1])
		return nil
	},
}

var labelListCmd = &cobra.Command{
	Use:   "list ENV_NAME",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		labels, err := store.ListLabels(args[0])
		if err != nil {
			return err
		}
		fmt.Println(strings.Join(labels, ", "))
		return nil
	},
}

var installCmd = &cobra.Command{
	Use:   "install ENV_NAME PACKAGE...",
	Short: "Install packages into an environment via the external installer",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := store.LookupEnvironmentByName(args[0])
		if err != nil {
			return err
		}
		editable, _ := cmd.Flags().GetBool("editable")
		pre, _ := cmd.Flags().GetBool("pre")
		upgrade, _ := cmd.Flags().GetBool("upgrade")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		indexURL, _ := cmd.Flags().GetString("index-url")
		extraIndexURL, _ := cmd.Flags().GetString("extra-index-url")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		res, err := delegate.Install(ctx, env.Path, installer.InstallOptions{
			Editable:      editable,
			Pre:           pre,
			Upgrade:       upgrade,
			DryRun:        dryRun,
			IndexURL:      indexURL,
			ExtraIndexURL: extraIndexURL,
			PackageSpecs:  args[1:],
		}, 5*time.Minute)
		fmt.Print(res.Stdout)
		fmt.Fprint(os.Stderr, res.Stderr)
		if err != nil {
			return err
		}
		activity.Append("cli", "install", fmt.Sprintf("%s: %s", args[0], strings.Join(args[1:], " ")))
		return nil
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall ENV_NAME PACKAGE...",
	Short: "Uninstall packages from an environment via the external installer",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := store.LookupEnvironmentByName(args[0])
		if err != nil {
			return err
		}
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		res, err := delegate.Uninstall(ctx, env.Path, args[1:], 5*time.Minute)
		fmt.Print(res.Stdout)
		fmt.Fprint(os.Stderr, res.Stderr)
		if err != nil {
			return err
		}
		activity.Append("cli", "uninstall", fmt.Sprintf("%s: %s", args[0], strings.Join(args[1:], " ")))
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run ENV_NAME -- CMD...",
	Short: "Run a command inside an environment's activated shape",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := store.LookupEnvironmentByName(args[0])
		if err != nil {
			return err
		}
		timeoutSec, _ := cmd.Flags().GetInt("timeout")
		workDir, _ := cmd.Flags().GetString("workdir")
		timeout := 5 * time.Minute
		if timeoutSec > 0 {
			timeout = time.Duration(timeoutSec) * time.Second
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		res, err := delegate.Run(ctx, env.Path, workDir, args[1:], timeout)
		fmt.Print(res.Stdout)
		fmt.Fprint(os.Stderr, res.Stderr)
		if err != nil {
			return err
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Get, set, or list free-form config key/value pairs",
}

var configGetCmd = &cobra.Command{
	Use:  "get KEY",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		val, err := store.GetConfig(args[0])
		if err != nil {
			return err
		}
		fmt.Println(val)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:  "set KEY VALUE",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return store.SetConfig(args[0], args[1])
	},
}

var configListCmd = &cobra.Command{
	Use:  "list",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := store.ListConfig()
		if err != nil {
			return err
		}
		for k, v := range cfg {
			fmt.Printf("%s=%s\n", k, v)
		}
		return nil
	},
}

func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				t := a.Value.Time().UTC()
				a.Value = slog.StringValue(t.Format("2006-01-02T15:04:05.000Z"))
			}
			if s, ok := a.Value.Any().(string); ok && s == "" {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose (debug) logging")
	rootCmd.PersistentFlags().StringVar(&configDirFlag, "config-dir", "", "override the Zen config directory (defaults to ~/.config/zen)")
	rootCmd.PersistentFlags().StringVar(&installCommand, "install-command", "pip", "external package installer executable to delegate to")

	removeCmd.Flags().Bool("purge", false, "also delete the registry's record of the on-disk environment")

	associateCmd.Flags().Bool("default", false, "make this the project's default environment")
	associateCmd.Flags().String("tag", "", "optional free-form tag for this link")

	installCmd.Flags().Bool("editable", false, "install in editable mode (-e)")
	installCmd.Flags().Bool("pre", false, "allow pre-release versions")
	installCmd.Flags().Bool("upgrade", false, "upgrade already-installed packages")
	installCmd.Flags().Bool("dry-run", false, "resolve without installing")
	installCmd.Flags().String("index-url", "", "override package index URL")
	installCmd.Flags().String("extra-index-url", "", "additional package index URL")

	runCmd.Flags().Int("timeout", 300, "command timeout in seconds")
	runCmd.Flags().String("workdir", "", "working directory for the command")

	scanCmd.Flags().Int("concurrency", 4, "number of directories to scan concurrently")

	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(packageCmd)
	rootCmd.AddCommand(associateCmd)
	rootCmd.AddCommand(activateCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(runCmd)

	noteCmd.AddCommand(noteAddCmd)
	noteCmd.AddCommand(noteListCmd)
	rootCmd.AddCommand(noteCmd)

	labelCmd.AddCommand(labelAddCmd)
	labelCmd.AddCommand(labelListCmd)
	rootCmd.AddCommand(labelCmd)

	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	kind, ok := zenerr.KindOf(err)
	if !ok {
		return 1
	}
	switch kind {
	case zenerr.InputInvalid:
		return 2
	case zenerr.NotFound:
		return 3
	case zenerr.Conflict:
		return 4
	case zenerr.SubprocessError:
		return 5
	default:
		return 1
	}
}
