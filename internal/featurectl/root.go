// SPDX-License-Identifier: Apache-2.0

// Package featurectl implements the featurectl command tree.
package featurectl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/adiadia/featuredesk/internal/client"
	"github.com/adiadia/featuredesk/internal/config"
	"github.com/adiadia/featuredesk/internal/editor"
	"github.com/adiadia/featuredesk/internal/logging"
	"github.com/adiadia/featuredesk/internal/tui"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var errMissingProject = errors.New("project is not set (use --project or FEATURECTL_PROJECT)")

// EditorRunner drives an edit session until it ends.
type EditorRunner func(ctx context.Context, session *editor.Session) error

type app struct {
	v         *viper.Viper
	runEditor EditorRunner
	version   string

	cfg    config.ClientConfig
	logger *slog.Logger
	closer io.Closer
}

type Option func(*app)

// WithEditorRunner replaces the terminal UI used by the edit command.
func WithEditorRunner(run EditorRunner) Option {
	return func(a *app) {
		if run != nil {
			a.runEditor = run
		}
	}
}

// WithVersion sets the string printed by the version command.
func WithVersion(version string) Option {
	return func(a *app) {
		a.version = version
	}
}

// NewRootCommand builds the featurectl command tree with its own viper
// instance.
func NewRootCommand(opts ...Option) *cobra.Command {
	return newApp(opts...).rootCommand()
}

func newApp(opts ...Option) *app {
	a := &app{
		v:       viper.New(),
		version: "dev",
		runEditor: func(ctx context.Context, session *editor.Session) error {
			return tui.Run(ctx, session)
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "featurectl",
		Short: "Browse and edit featuredesk features",
		Long: `featurectl talks to a featuredesk API server. It lists projects and
features, prints a feature as JSON or YAML, and opens an interactive form
for editing a feature's category, name, description, priority and steps.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.loadConfig,
		PersistentPostRun: func(*cobra.Command, []string) {
			a.closeLog()
		},
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.config/featurectl/config.yaml)")
	flags.String("api-url", "", "featuredesk API base URL")
	flags.String("token", "", "API key token")
	flags.StringP("project", "p", "", "project ID")
	flags.Duration("timeout", 0, "request timeout")
	flags.BoolP("verbose", "v", false, "log API requests to stderr")

	_ = a.v.BindPFlag(config.KeyAPIURL, flags.Lookup("api-url"))
	_ = a.v.BindPFlag(config.KeyToken, flags.Lookup("token"))
	_ = a.v.BindPFlag(config.KeyProject, flags.Lookup("project"))
	_ = a.v.BindPFlag(config.KeyTimeout, flags.Lookup("timeout"))

	root.AddCommand(
		a.newProjectsCommand(),
		a.newListCommand(),
		a.newShowCommand(),
		a.newCreateCommand(),
		a.newEditCommand(),
		a.newEventsCommand(),
		a.newVersionCommand(),
	)
	return root
}

// Execute runs featurectl with os.Args.
func Execute(ctx context.Context, opts ...Option) error {
	return NewRootCommand(opts...).ExecuteContext(ctx)
}

func (a *app) loadConfig(cmd *cobra.Command, _ []string) error {
	if skipsConfig(cmd) {
		return nil
	}

	config.SetClientDefaults(a.v)
	path, _ := cmd.Flags().GetString("config")
	if err := config.ReadClientFile(a.v, path); err != nil {
		return err
	}

	cfg, err := config.LoadClient(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	// The edit form owns the terminal, so logs go to a file there.
	if cmd.Name() == "edit" {
		logger, closer, err := logging.NewFileLogger(cfg.LogFile)
		if err != nil {
			return err
		}
		a.logger = logger
		a.closer = closer
	} else if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		a.logger = logging.NewWriterLogger(cmd.ErrOrStderr(), "dev")
	} else {
		a.logger = logging.Discard()
	}
	return nil
}

func skipsConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "version", "help", "completion":
			return true
		}
	}
	return false
}

// closeLog closes the edit log file. cobra skips post-run hooks when RunE
// fails, so edit also defers it.
func (a *app) closeLog() {
	if a.closer == nil {
		return
	}
	_ = a.closer.Close()
	a.closer = nil
}

func (a *app) client() (*client.Client, error) {
	return client.New(a.cfg.APIURL, a.cfg.Token,
		client.WithTimeout(a.cfg.Timeout),
		client.WithLogger(a.logger),
	)
}

func (a *app) projectID() (uuid.UUID, error) {
	if a.cfg.Project == "" {
		return uuid.Nil, errMissingProject
	}
	id, err := uuid.Parse(a.cfg.Project)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid project id %q: %w", a.cfg.Project, err)
	}
	return id, nil
}

func parseFeatureID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid feature id %q: %w", raw, err)
	}
	return id, nil
}

func (a *app) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the featurectl version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), a.version)
		},
	}
}
