package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rote-dev/rote-go/cmd/rote-cli/internal/display"
	"github.com/rote-dev/rote-go/cmd/rote-cli/internal/runner"
	"github.com/rote-dev/rote-go/pkg/core"
)

func NewRunCommand() *cobra.Command {
	var spec runner.TaskSpec
	var tasksFile string
	var parallel int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a CRM task in a real browser, learning from the execution",
		Long: `Execute a task against the configured browser. The engine tries strategies
cheapest-first: remembered steps, then a learned pattern for the task type,
then vision-guided interpretation of the live page.

Every run feeds the pattern store, so repeated tasks get faster and stop
spending vision calls. Describe the task once; the engine does the rest.

With --tasks the command reads a YAML batch file and runs every task in it,
sharing one pattern store so tasks of the same type learn from each other.`,
		Example: `  # One-off task described in natural language
  rote-cli run --type create_lead \
      --url https://crm.example.com/leads/new \
      --desc "Create a lead for Dana Smith, phone 555-0134" \
      --criteria "a confirmation banner names Dana Smith"

  # Batch file, three browsers in parallel
  rote-cli run --tasks tonight.yaml --parallel 3

  # Same batch against a different pattern store
  rote-cli run --tasks tonight.yaml --set store.path=/var/lib/rote/patterns.json`,
		Run: func(cmd *cobra.Command, args []string) {
			var err error
			if tasksFile != "" {
				err = runBatchFile(cmd, tasksFile, parallel)
			} else {
				err = runSingle(cmd, spec)
			}
			if err != nil {
				exitErr(err)
			}
		},
	}

	cmd.Flags().StringVar(&spec.Type, "type", "", "Task type, e.g. create_lead (keys the pattern store)")
	cmd.Flags().StringVar(&spec.URL, "url", "", "Page to start the task on")
	cmd.Flags().StringVar(&spec.Description, "desc", "", "Natural-language task description")
	cmd.Flags().StringVar(&spec.SuccessCriteria, "criteria", "", "What the page looks like when the task is done")
	cmd.Flags().IntVar(&spec.EstimatedClicks, "clicks", 0, "Estimated interactions, tightens the vision budget (0 = default)")
	cmd.Flags().StringVar(&tasksFile, "tasks", "", "YAML batch file; overrides the single-task flags")
	cmd.Flags().IntVar(&parallel, "parallel", 1, "Browsers to run concurrently in batch mode")

	return cmd
}

func runSingle(cmd *cobra.Command, spec runner.TaskSpec) error {
	if spec.Type == "" || spec.Description == "" {
		return fmt.Errorf("--type and --desc are required (or use --tasks for a batch file)")
	}
	task, err := spec.Task()
	if err != nil {
		return err
	}

	cfg, store, err := setup(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Println(display.RenderRunHeader(task.Type, task.Description, task.Page.URL))

	engine, err := runner.NewEngine(cfg, store)
	if err != nil {
		return err
	}
	defer engine.Close()

	result, err := engine.Run(cmd.Context(), &task)
	if result != nil {
		fmt.Print(display.FormatTaskResult(result))
	}
	return err
}

func runBatchFile(cmd *cobra.Command, path string, parallel int) error {
	tasks, err := runner.LoadTaskFile(path)
	if err != nil {
		return err
	}

	cfg, store, err := setup(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Println(display.RenderBatchHeader(path, len(tasks), parallel))

	results := runner.RunBatch(cmd.Context(), cfg, store, tasks, parallel)

	types := make([]string, len(results))
	taskResults := make([]*core.TaskResult, len(results))
	errs := make([]error, len(results))
	failed := 0
	for i, r := range results {
		types[i] = r.Task.Type
		taskResults[i] = r.Result
		errs[i] = r.Err
		if r.Err != nil || r.Result == nil || !r.Result.Success {
			failed++
		}
	}
	fmt.Print(display.FormatBatchSummary(types, taskResults, errs))

	if failed > 0 {
		return fmt.Errorf("%d of %d task(s) failed", failed, len(tasks))
	}
	return nil
}
