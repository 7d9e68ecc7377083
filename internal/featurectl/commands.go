// SPDX-License-Identifier: Apache-2.0

package featurectl

import (
	"fmt"
	"strconv"

	"github.com/adiadia/featuredesk/internal/domain"
	"github.com/adiadia/featuredesk/internal/editor"
	"github.com/spf13/cobra"
)

func (a *app) newProjectsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects owned by the API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			projects, err := c.ListProjects(cmd.Context())
			if err != nil {
				return fmt.Errorf("list projects: %w", err)
			}
			return renderProjects(cmd.OutOrStdout(), projects)
		},
	}

	var webhookURL string
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			project, err := c.CreateProject(cmd.Context(), domain.CreateProjectParams{
				Name:       args[0],
				WebhookURL: webhookURL,
			})
			if err != nil {
				return fmt.Errorf("create project: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), project.ID)
			return nil
		},
	}
	create.Flags().StringVar(&webhookURL, "webhook-url", "", "URL notified when features change")

	cmd.AddCommand(create)
	return cmd
}

func (a *app) newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List features in the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			projectID, err := a.projectID()
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			features, err := c.ListFeatures(cmd.Context(), projectID)
			if err != nil {
				return fmt.Errorf("list features: %w", err)
			}
			return renderFeatures(cmd.OutOrStdout(), features)
		},
	}
}

func (a *app) newShowCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show FEATURE_ID",
		Short: "Print a feature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(output)
			if err != nil {
				return err
			}
			projectID, err := a.projectID()
			if err != nil {
				return err
			}
			featureID, err := parseFeatureID(args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			feature, err := c.GetFeature(cmd.Context(), projectID, featureID)
			if err != nil {
				return fmt.Errorf("get feature: %w", err)
			}
			return renderFeature(cmd.OutOrStdout(), feature, format)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", string(formatText), "output format: text, json or yaml")
	return cmd
}

func (a *app) newCreateCommand() *cobra.Command {
	var params domain.CreateFeatureParams
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a feature in the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			projectID, err := a.projectID()
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			params.ProjectID = projectID
			feature, err := c.CreateFeature(cmd.Context(), params)
			if err != nil {
				return fmt.Errorf("create feature: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), feature.ID)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&params.Category, "category", "", "feature category")
	flags.StringVar(&params.Name, "name", "", "feature name")
	flags.StringVar(&params.Description, "description", "", "feature description")
	flags.IntVar(&params.Priority, "priority", domain.MinFeaturePriority, "feature priority (1 is highest)")
	flags.StringArrayVar(&params.Steps, "step", nil, "verification step, repeatable")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func (a *app) newEditCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "edit FEATURE_ID",
		Short: "Edit a feature interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.closeLog()

			projectID, err := a.projectID()
			if err != nil {
				return err
			}
			featureID, err := parseFeatureID(args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			feature, err := c.GetFeature(cmd.Context(), projectID, featureID)
			if err != nil {
				return fmt.Errorf("get feature: %w", err)
			}

			var saved *domain.Feature
			session := editor.NewSession(feature, projectID.String(), c, editor.Callbacks{
				OnSaved: func(f domain.Feature) { saved = &f },
			}, editor.WithLogger(a.logger))

			if err := a.runEditor(cmd.Context(), session); err != nil {
				return fmt.Errorf("edit feature: %w", err)
			}

			out := cmd.OutOrStdout()
			if saved == nil {
				fmt.Fprintln(out, "No changes saved.")
				return nil
			}
			fmt.Fprintf(out, "Saved %q (priority %d, %d steps).\n", saved.Name, saved.Priority, len(saved.Steps))
			return nil
		},
	}
}

func (a *app) newEventsCommand() *cobra.Command {
	var after string
	cmd := &cobra.Command{
		Use:   "events FEATURE_ID",
		Short: "List a feature's change events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			afterSeq, err := strconv.ParseInt(after, 10, 64)
			if err != nil || afterSeq < 0 {
				return fmt.Errorf("invalid --after %q", after)
			}
			projectID, err := a.projectID()
			if err != nil {
				return err
			}
			featureID, err := parseFeatureID(args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			events, err := c.ListFeatureEvents(cmd.Context(), projectID, featureID, afterSeq)
			if err != nil {
				return fmt.Errorf("list events: %w", err)
			}
			return renderEvents(cmd.OutOrStdout(), events)
		},
	}
	cmd.Flags().StringVar(&after, "after", "0", "only events with a sequence number above this")
	return cmd
}
