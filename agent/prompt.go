package agent

import (
	"fmt"
	"strings"

	"github.com/mohitkumar/forge/model"
)

func buildSystemPrompt(spec *model.AgentSpec, format model.OutputFormat, memories []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.", spec.Name)
	if spec.Role != "" {
		fmt.Fprintf(&b, " Your role: %s.", spec.Role)
	}
	if spec.Goal != "" {
		fmt.Fprintf(&b, "\nYour goal: %s", spec.Goal)
	}
	if spec.Backstory != "" {
		fmt.Fprintf(&b, "\nBackground: %s", spec.Backstory)
	}
	if spec.Instructions != "" {
		fmt.Fprintf(&b, "\nInstructions: %s", spec.Instructions)
	}
	if instruction := formatInstruction(format); instruction != "" {
		b.WriteString("\n")
		b.WriteString(instruction)
	}
	if len(memories) > 0 {
		b.WriteString("\n\nRelevant context from previous interactions:")
		for _, m := range memories {
			b.WriteString("\n- ")
			b.WriteString(m)
		}
	}
	return b.String()
}

func formatInstruction(format model.OutputFormat) string {
	switch format {
	case model.OUTPUT_FORMAT_JSON:
		return "Respond with valid JSON only, no surrounding prose."
	case model.OUTPUT_FORMAT_MARKDOWN:
		return "Format your response as markdown."
	}
	return ""
}

const repromptMessage = "Your previous answer seemed uncertain or incomplete. " +
	"Review the task and give your best, complete answer. " +
	"If information is missing, state your best conclusion from what you have."
