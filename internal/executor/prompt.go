package executor

import (
	"fmt"
	"strings"

	"github.com/liurenhao/stagegate/internal/domain"
)

const maxHandoffs = 5

var roleInstructions = map[domain.Role]string{
	domain.RoleAnalyst:        "You analyze the project goal and produce briefs and requirements documents.",
	domain.RoleArchitect:      "You design the system architecture, interface contracts, and data schemas.",
	domain.RoleDesigner:       "You produce structured design concepts. Save each concept with the concept.save tool.",
	domain.RoleEngineer:       "You implement the planned work by writing files into the project workspace.",
	domain.RoleReviewer:       "You review the implemented work against its plan and record review notes.",
	domain.RoleTester:         "You verify the implementation against the test plan and record findings.",
	domain.RoleReleaseManager: "You prepare the release and record the deployment plan.",
}

// systemPrompt builds the system instruction for a role at a gate.
func systemPrompt(role domain.Role, gateName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the %s on an automated software delivery pipeline, working the %s stage.\n", role, gateName)
	if inst, ok := roleInstructions[role]; ok {
		b.WriteString(inst)
		b.WriteString("\n")
	}
	b.WriteString("Use the provided tools to persist your work. Finish with a concise summary of what you produced.")
	return b.String()
}

// buildPrompt assembles the worker's user instruction: the task, the
// prioritized document context, recent handoffs, open tasks, and a snapshot
// of the workspace layout.
func buildPrompt(task string, docs []domain.Document, handoffs []domain.Handoff, tasks []domain.Task, tree []string) string {
	var b strings.Builder

	b.WriteString("# Task\n")
	b.WriteString(task)
	b.WriteString("\n")

	if len(docs) > 0 {
		b.WriteString("\n# Context documents\n")
		for _, doc := range docs {
			fmt.Fprintf(&b, "\n## [%s] %s (v%d)\n%s\n", doc.Category, doc.Title, doc.Version, doc.Body)
		}
	}

	if len(handoffs) > 0 {
		b.WriteString("\n# Recent handoffs\n")
		n := len(handoffs)
		if n > maxHandoffs {
			n = maxHandoffs
		}
		for _, h := range handoffs[:n] {
			fmt.Fprintf(&b, "- from %s to %s at %s: %s\n", h.FromRole, h.ToRole, h.Gate, h.Note)
		}
	}

	if len(tasks) > 0 {
		b.WriteString("\n# Assigned tasks\n")
		for _, t := range tasks {
			fmt.Fprintf(&b, "- [%s] %s\n", t.TaskID, t.Description)
		}
	}

	if len(tree) > 0 {
		b.WriteString("\n# Workspace files\n")
		for _, path := range tree {
			fmt.Fprintf(&b, "- %s\n", path)
		}
	}

	return b.String()
}
