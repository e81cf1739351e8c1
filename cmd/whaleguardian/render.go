// Copyright 2026 Harald Albrecht.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/thediveo/whaleguardian"
	"github.com/thediveo/whaleguardian/guardian"
)

var (
	purple = lipgloss.Color("99")
	green  = lipgloss.Color("76")
	red    = lipgloss.Color("204")
	yellow = lipgloss.Color("214")
	dim    = lipgloss.Color("243")
	faint  = lipgloss.Color("238")
)

var (
	successStyle = lipgloss.NewStyle().Foreground(green)
	errorStyle   = lipgloss.NewStyle().Foreground(red)
	warnStyle    = lipgloss.NewStyle().Foreground(yellow)
	labelStyle   = lipgloss.NewStyle().Foreground(dim)
	titleStyle   = lipgloss.NewStyle().Foreground(purple).Bold(true)
)

// renderTable renders a table with rounded borders and dimmed odd rows.
func renderTable(headers []string, rows [][]string) string {
	headerStyle := lipgloss.NewStyle().Foreground(purple).Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	oddStyle := cellStyle.Foreground(dim)

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(faint)).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row%2 == 0:
				return cellStyle
			default:
				return oddStyle
			}
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}

// renderPolicies renders a table of policies.
func renderPolicies(policies []whaleguardian.Policy) string {
	rows := make([][]string, 0, len(policies))
	for _, p := range policies {
		limit := "-"
		if p.MaxActions > 0 {
			limit = fmt.Sprintf("%d per %s", p.MaxActions, p.ActionWindow)
		}
		rows = append(rows, []string{
			p.ID,
			selector(p.Selector),
			condition(p.Condition),
			string(p.Action),
			p.Cooldown.String(),
			limit,
		})
	}
	return renderTable(
		[]string{"POLICY", "SELECTOR", "CONDITION", "ACTION", "COOLDOWN", "LIMIT"},
		rows)
}

func selector(s whaleguardian.Selector) string {
	var parts []string
	if s.Name != "" {
		parts = append(parts, "name="+s.Name)
	}
	if s.Image != "" {
		parts = append(parts, "image="+s.Image)
	}
	if s.Project != "" {
		parts = append(parts, "project="+s.Project)
	}
	keys := make([]string, 0, len(s.Labels))
	for key := range s.Labels {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		parts = append(parts, "label:"+key+"="+s.Labels[key])
	}
	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, " ")
}

func condition(c whaleguardian.ConditionSpec) string {
	var parts []string
	if c.Metric != "" {
		parts = append(parts, fmt.Sprintf("%s>%g", c.Metric, c.Above))
	}
	if c.State != "" {
		parts = append(parts, c.State)
	}
	if c.Polls > 0 {
		parts = append(parts, fmt.Sprintf("for %d polls", c.Polls))
	}
	if c.For > 0 {
		parts = append(parts, "for "+c.For.String())
	}
	if c.Event != "" {
		parts = append(parts, fmt.Sprintf("%s>%g in %s", c.Event, c.Above, c.Window))
	}
	if len(parts) == 0 {
		return c.Kind
	}
	return c.Kind + ": " + strings.Join(parts, " ")
}

// renderStatus renders the published guardian status: a short summary
// followed by the containers, the tombstones, and the recent actions.
func renderStatus(st guardian.Status) string {
	var sb strings.Builder
	state := string(st.State)
	switch st.State {
	case guardian.StateDegraded, guardian.StateStopped:
		state = errorStyle.Render(state)
	default:
		state = successStyle.Render(state)
	}
	fmt.Fprintf(&sb, "%s %s\n", labelStyle.Render("state:   "), state)
	fmt.Fprintf(&sb, "%s %d\n", labelStyle.Render("cycles:  "), st.Cycles)
	if !st.At.IsZero() {
		fmt.Fprintf(&sb, "%s %s\n", labelStyle.Render("snapshot:"), st.At.Format(time.RFC3339))
	}
	if st.Failures > 0 {
		fmt.Fprintf(&sb, "%s %s\n", labelStyle.Render("failures:"),
			warnStyle.Render(fmt.Sprintf("%d (%s)", st.Failures, st.LastError)))
	}

	if len(st.Containers) > 0 {
		// Standalone containers come first, followed by the containers of
		// the composer projects in alphabetical order.
		pf := whaleguardian.NewPortfolio(st.Containers...)
		rows := make([][]string, 0, len(st.Containers))
		for _, name := range append([]string{""}, pf.Names()...) {
			project := name
			if project == "" {
				project = "-"
			}
			for _, c := range pf.Project(name).Containers() {
				rows = append(rows, []string{
					project, c.Name, shortID(c.ID), string(c.Status), string(c.Health),
					fmt.Sprint(c.RestartCount), usage(c.Usage),
				})
			}
		}
		sb.WriteString("\n" + titleStyle.Render("Containers") + "\n")
		sb.WriteString(renderTable(
			[]string{"PROJECT", "NAME", "ID", "STATUS", "HEALTH", "RESTARTS", "USAGE"}, rows) + "\n")
	}
	if len(st.Tombstones) > 0 {
		rows := make([][]string, 0, len(st.Tombstones))
		for _, c := range st.Tombstones {
			rows = append(rows, []string{c.Name, shortID(c.ID), c.Observed.Format(time.RFC3339)})
		}
		sb.WriteString("\n" + titleStyle.Render("Removed") + "\n")
		sb.WriteString(renderTable([]string{"NAME", "ID", "SINCE"}, rows) + "\n")
	}
	if len(st.Recent) > 0 {
		rows := make([][]string, 0, len(st.Recent))
		for _, rec := range st.Recent {
			rows = append(rows, []string{
				rec.At.Format(time.RFC3339), rec.Violation.ContainerName,
				rec.Violation.PolicyID, string(rec.Action), outcome(rec.Outcome),
			})
		}
		sb.WriteString("\n" + titleStyle.Render("Recent actions") + "\n")
		sb.WriteString(renderTable(
			[]string{"AT", "CONTAINER", "POLICY", "ACTION", "OUTCOME"}, rows) + "\n")
	}
	return sb.String()
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func usage(u whaleguardian.Usage) string {
	if !u.Valid {
		return "-"
	}
	return fmt.Sprintf("%.1f%% %.1fMiB", u.CPUPercent, float64(u.MemoryBytes)/(1<<20))
}

func outcome(o whaleguardian.Outcome) string {
	switch o {
	case whaleguardian.OutcomeSuccess:
		return successStyle.Render(string(o))
	case whaleguardian.OutcomeFailure:
		return errorStyle.Render(string(o))
	default:
		return warnStyle.Render(string(o))
	}
}
