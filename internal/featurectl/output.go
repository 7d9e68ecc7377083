// SPDX-License-Identifier: Apache-2.0

package featurectl

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/adiadia/featuredesk/internal/domain"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"
)

type outputFormat string

const (
	formatText outputFormat = "text"
	formatJSON outputFormat = "json"
	formatYAML outputFormat = "yaml"
)

func parseFormat(raw string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(strings.TrimSpace(raw))); f {
	case formatText, formatJSON, formatYAML:
		return f, nil
	case "yml":
		return formatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", raw)
	}
}

// featureView fixes field names and order for json and yaml output.
type featureView struct {
	ID          string    `json:"id" yaml:"id"`
	ProjectID   string    `json:"project_id" yaml:"project_id"`
	Category    string    `json:"category" yaml:"category"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Priority    int       `json:"priority" yaml:"priority"`
	Steps       []string  `json:"steps" yaml:"steps"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}

func newFeatureView(f domain.Feature) featureView {
	steps := f.Steps
	if steps == nil {
		steps = []string{}
	}
	return featureView{
		ID:          f.ID.String(),
		ProjectID:   f.ProjectID.String(),
		Category:    f.Category,
		Name:        f.Name,
		Description: f.Description,
		Priority:    f.Priority,
		Steps:       steps,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

var headerStyle = lipgloss.NewStyle().Bold(true)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle()
		}).
		Headers(headers...)
}

func renderFeature(w io.Writer, f domain.Feature, format outputFormat) error {
	view := newFeatureView(f)

	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(view); err != nil {
			return err
		}
		return enc.Close()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  [%s]  priority %d\n", f.Name, f.Category, f.Priority)
	fmt.Fprintf(&b, "%s\n", f.ID)
	fmt.Fprintf(&b, "\n%s\n", f.Description)
	if len(f.Steps) > 0 {
		b.WriteString("\nSteps:\n")
		for i, step := range f.Steps {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, step)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func renderFeatures(w io.Writer, features []domain.Feature) error {
	if len(features) == 0 {
		_, err := fmt.Fprintln(w, "No features.")
		return err
	}

	t := newTable("ID", "PRIORITY", "CATEGORY", "NAME", "STEPS")
	for _, f := range features {
		t.Row(f.ID.String(), strconv.Itoa(f.Priority), f.Category, f.Name, strconv.Itoa(len(f.Steps)))
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}

func renderProjects(w io.Writer, projects []domain.ProjectRecord) error {
	if len(projects) == 0 {
		_, err := fmt.Fprintln(w, "No projects.")
		return err
	}

	t := newTable("ID", "NAME", "WEBHOOK")
	for _, p := range projects {
		t.Row(p.ID.String(), p.Name, p.WebhookURL)
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}

func renderEvents(w io.Writer, events []domain.EventRecord) error {
	if len(events) == 0 {
		_, err := fmt.Fprintln(w, "No events.")
		return err
	}

	t := newTable("SEQ", "TYPE", "CREATED", "DELIVERED")
	for _, ev := range events {
		delivered := "pending"
		if ev.DeliveredAt != nil {
			delivered = ev.DeliveredAt.UTC().Format(time.RFC3339)
		}
		t.Row(strconv.FormatInt(ev.Seq, 10), string(ev.Type), ev.CreatedAt.UTC().Format(time.RFC3339), delivered)
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}
