package display

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rote-dev/rote-go/pkg/core"
	"github.com/rote-dev/rote-go/pkg/patterns"
)

const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorPurple = "\033[35m"
	ColorCyan   = "\033[36m"
)

// FormatPatternList renders the pattern store contents as a scannable list,
// one block per pattern.
func FormatPatternList(list []*patterns.AutomationPattern) string {
	var output strings.Builder

	if len(list) == 0 {
		output.WriteString("No patterns stored yet.\n")
		output.WriteString(fmt.Sprintf("%sTip:%s Run a task with 'rote-cli run' and the store fills itself\n",
			ColorPurple, ColorReset))
		return output.String()
	}

	output.WriteString(fmt.Sprintf("%s%sLearned Patterns%s (%d)\n", ColorBold, ColorBlue, ColorReset, len(list)))
	output.WriteString(strings.Repeat("=", 50) + "\n\n")

	for _, p := range list {
		rateColor := successRateColor(p.SuccessRate)

		output.WriteString(fmt.Sprintf("%s%s%s%s  %s%s%s\n",
			ColorBold, ColorGreen, p.TaskType, ColorReset,
			ColorCyan, p.ID, ColorReset))
		output.WriteString(fmt.Sprintf("  %sSuccess:%s %s%.0f%%%s | %sConfidence:%s %.2f | %sRuns:%s %d\n",
			ColorCyan, ColorReset, rateColor, p.SuccessRate*100, ColorReset,
			ColorCyan, ColorReset, p.Confidence,
			ColorCyan, ColorReset, p.ExecutionCount))
		output.WriteString(fmt.Sprintf("  %sSteps:%s %d | %sAvg time:%s %s | %sLast used:%s %s\n",
			ColorCyan, ColorReset, len(p.ActionSequence),
			ColorCyan, ColorReset, formatDuration(p.AverageExecutionTime),
			ColorCyan, ColorReset, formatTimestamp(p.LastUpdated)))
		if len(p.Tags) > 0 {
			output.WriteString(fmt.Sprintf("  %sTags:%s %s\n", ColorYellow, ColorReset, strings.Join(p.Tags, ", ")))
		}
		output.WriteString("\n")
	}

	output.WriteString(fmt.Sprintf("%sTip:%s Use 'rote-cli patterns show <id>' for the full action sequence\n",
		ColorPurple, ColorReset))

	return output.String()
}

// FormatPatternDetails renders everything the store knows about one pattern.
func FormatPatternDetails(p *patterns.AutomationPattern) string {
	var output strings.Builder

	output.WriteString(fmt.Sprintf("%s%s%s%s\n", ColorBold, ColorBlue, p.TaskType, ColorReset))
	output.WriteString(strings.Repeat("=", len(p.TaskType)+10) + "\n\n")

	output.WriteString(fmt.Sprintf("%sID:%s %s\n", ColorCyan, ColorReset, p.ID))
	rateColor := successRateColor(p.SuccessRate)
	output.WriteString(fmt.Sprintf("%sSuccess rate:%s %s%.1f%%%s over %d run(s)\n",
		ColorCyan, ColorReset, rateColor, p.SuccessRate*100, ColorReset, p.ExecutionCount))
	output.WriteString(fmt.Sprintf("%sConfidence:%s %.2f\n", ColorCyan, ColorReset, p.Confidence))
	output.WriteString(fmt.Sprintf("%sAvg execution:%s %s (min %s, max %s)\n",
		ColorCyan, ColorReset,
		formatDuration(p.UsageStats.AverageExecutionTime),
		formatDuration(p.UsageStats.MinExecutionTime),
		formatDuration(p.UsageStats.MaxExecutionTime)))
	output.WriteString(fmt.Sprintf("%sCreated:%s %s | %sUpdated:%s %s\n",
		ColorCyan, ColorReset, formatTimestamp(p.CreatedDate),
		ColorCyan, ColorReset, formatTimestamp(p.LastUpdated)))

	if p.Conditions.URLPattern != "" || p.Conditions.PageState != "" || len(p.Conditions.RequiredElements) > 0 {
		output.WriteString(fmt.Sprintf("\n%sApplies when:%s\n", ColorBold, ColorReset))
		if p.Conditions.URLPattern != "" {
			output.WriteString(fmt.Sprintf("  • URL matches %q\n", p.Conditions.URLPattern))
		}
		if p.Conditions.PageState != "" {
			output.WriteString(fmt.Sprintf("  • Page state is %q\n", p.Conditions.PageState))
		}
		for _, el := range p.Conditions.RequiredElements {
			output.WriteString(fmt.Sprintf("  • Element %s is present\n", el))
		}
	}

	output.WriteString(fmt.Sprintf("\n%sAction sequence:%s\n", ColorBold, ColorReset))
	for i, step := range p.ActionSequence {
		line := fmt.Sprintf("  %2d. %-8s %s", i+1, step.Kind, step.Target.Primary.Value)
		if step.Value != "" {
			line += fmt.Sprintf(" = %q", step.Value)
		}
		output.WriteString(line + "\n")
	}

	if len(p.Selectors) > 0 {
		output.WriteString(fmt.Sprintf("\n%sSelector reliability:%s\n", ColorBold, ColorReset))
		for _, sel := range p.Selectors {
			relColor := successRateColor(sel.Reliability)
			output.WriteString(fmt.Sprintf("  %s%.2f%s  %s\n",
				relColor, sel.Reliability, ColorReset, sel.Locator.Value))
			for _, reason := range sel.FailureReasons {
				output.WriteString(fmt.Sprintf("        %s↳ %s%s\n", ColorYellow, reason, ColorReset))
			}
		}
	}

	if len(p.RequiredCapabilities) > 0 {
		output.WriteString(fmt.Sprintf("\n%sRequires:%s %s\n", ColorCyan, ColorReset,
			strings.Join(p.RequiredCapabilities, ", ")))
	}
	if len(p.Tags) > 0 {
		output.WriteString(fmt.Sprintf("%sTags:%s %s\n", ColorYellow, ColorReset, strings.Join(p.Tags, ", ")))
	}

	return output.String()
}

// FormatStoreStats renders the aggregate health of the pattern store.
func FormatStoreStats(s patterns.StoreStats) string {
	var output strings.Builder

	output.WriteString(fmt.Sprintf("%s%sPattern Store%s\n", ColorBold, ColorBlue, ColorReset))
	output.WriteString(strings.Repeat("=", 30) + "\n\n")

	output.WriteString(fmt.Sprintf("%sPatterns:%s %d across %d task type(s)\n",
		ColorCyan, ColorReset, s.PatternCount, s.TaskTypes))
	output.WriteString(fmt.Sprintf("%sTotal executions:%s %d\n", ColorCyan, ColorReset, s.TotalExecutions))

	rateColor := successRateColor(s.AverageSuccessRate)
	output.WriteString(fmt.Sprintf("%sAverage success rate:%s %s%.1f%%%s\n",
		ColorCyan, ColorReset, rateColor, s.AverageSuccessRate*100, ColorReset))

	if !s.LastSweep.IsZero() {
		output.WriteString(fmt.Sprintf("%sLast sweep:%s %s\n", ColorCyan, ColorReset, formatTimestamp(s.LastSweep)))
	}

	return output.String()
}

// FormatTaskResult renders a finished run, successful or not.
func FormatTaskResult(result *core.TaskResult) string {
	var output strings.Builder

	if result.Success {
		output.WriteString(fmt.Sprintf("\n%s%s✅ Task Complete%s\n", ColorBold, ColorGreen, ColorReset))
	} else {
		output.WriteString(fmt.Sprintf("\n%s%s❌ Task Failed%s\n", ColorBold, ColorRed, ColorReset))
	}
	output.WriteString(strings.Repeat("=", 40) + "\n")

	output.WriteString(fmt.Sprintf("%sRun:%s %s\n", ColorCyan, ColorReset, result.RunID))
	if result.StrategyUsed != "" {
		output.WriteString(fmt.Sprintf("%sStrategy:%s %s\n", ColorCyan, ColorReset, result.StrategyUsed))
	}
	output.WriteString(fmt.Sprintf("%sInteractions:%s %d\n", ColorCyan, ColorReset, result.Interactions))
	output.WriteString(fmt.Sprintf("%sDuration:%s %s\n", ColorCyan, ColorReset, formatDuration(result.Duration)))

	if len(result.Trace) > 0 {
		output.WriteString(fmt.Sprintf("\n%sTrace:%s\n", ColorBold, ColorReset))
		for i, step := range result.Trace {
			mark := fmt.Sprintf("%s✓%s", ColorGreen, ColorReset)
			if !step.Success {
				mark = fmt.Sprintf("%s✗%s", ColorRed, ColorReset)
			}
			line := fmt.Sprintf("  %s %2d. %-8s %s (%s)", mark, i+1, step.Step.Kind,
				step.Locator.Value, formatDuration(step.Duration))
			output.WriteString(line + "\n")
			if step.Error != "" {
				output.WriteString(fmt.Sprintf("       %s%s%s\n", ColorYellow, step.Error, ColorReset))
			}
		}
	}

	for _, attempt := range result.Attempts {
		output.WriteString(fmt.Sprintf("\n%sStrategy %s failed%s (%s)\n",
			ColorYellow, attempt.Strategy, ColorReset, attempt.FailureCode))
		output.WriteString(fmt.Sprintf("  %s\n", attempt.Failure))
		if attempt.Screenshot != "" {
			output.WriteString(fmt.Sprintf("  %sScreenshot:%s %s\n", ColorCyan, ColorReset, attempt.Screenshot))
		}
	}

	return output.String()
}

// FormatBatchSummary renders per-task outcomes plus a one-line total,
// in the order the tasks appeared in the file.
func FormatBatchSummary(types []string, results []*core.TaskResult, errs []error) string {
	var output strings.Builder

	output.WriteString(fmt.Sprintf("\n%s%sBatch Summary%s\n", ColorBold, ColorBlue, ColorReset))
	output.WriteString(strings.Repeat("=", 40) + "\n")

	succeeded := 0
	for i, taskType := range types {
		switch {
		case errs[i] != nil:
			output.WriteString(fmt.Sprintf("  %s✗%s %-24s %s\n",
				ColorRed, ColorReset, taskType, errs[i]))
		case results[i] != nil && results[i].Success:
			succeeded++
			output.WriteString(fmt.Sprintf("  %s✓%s %-24s via %s, %d interaction(s) in %s\n",
				ColorGreen, ColorReset, taskType, results[i].StrategyUsed,
				results[i].Interactions, formatDuration(results[i].Duration)))
		default:
			output.WriteString(fmt.Sprintf("  %s✗%s %-24s no result\n", ColorRed, ColorReset, taskType))
		}
	}

	output.WriteString(fmt.Sprintf("\n%d/%d task(s) succeeded\n", succeeded, len(types)))
	return output.String()
}

// FormatTaskTypes renders the distinct task types present in a pattern list.
func FormatTaskTypes(list []*patterns.AutomationPattern) string {
	seen := make(map[string]int)
	for _, p := range list {
		seen[p.TaskType]++
	}
	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)

	var output strings.Builder
	for _, t := range types {
		output.WriteString(fmt.Sprintf("  %s (%d pattern(s))\n", t, seen[t]))
	}
	return output.String()
}

func successRateColor(rate float64) string {
	switch {
	case rate >= 0.8:
		return ColorGreen
	case rate >= 0.5:
		return ColorYellow
	default:
		return ColorRed
	}
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	return d.Round(10 * time.Millisecond).String()
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format("2006-01-02 15:04")
}
