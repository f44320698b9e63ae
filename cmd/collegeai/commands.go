package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kalambet/collegeai/internal/chat"
	"github.com/kalambet/collegeai/internal/config"
	"github.com/kalambet/collegeai/internal/cvreview"
	"github.com/kalambet/collegeai/internal/document"
	"github.com/kalambet/collegeai/internal/pipeline"
	"github.com/kalambet/collegeai/internal/storage"
)

var clientID string

func init() {
	rootCmd.PersistentFlags().StringVar(&clientID, "client", "", "client id (run generates one when empty)")
}

func requireClient() (string, error) {
	id := strings.TrimSpace(clientID)
	if id == "" {
		return "", errors.New("--client is required")
	}
	return id, nil
}

// newRunner builds a pipeline runner talking to the command's terminal.
func newRunner(cmd *cobra.Command, a *app) (*pipeline.Runner, error) {
	opts := []pipeline.Option{
		pipeline.WithMaxTurns(a.cfg.Pipeline.MaxTurns),
		pipeline.WithLogger(a.logger),
	}
	if path, _ := cmd.Flags().GetString("resume"); path != "" {
		text, err := cvreview.LoadResume(path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithResume(text))
	}
	p := newTerminalPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
	return pipeline.NewRunner(a.agents, a.store, p, opts...), nil
}

// finish prints the chat reply, or turns a halted run into an error.
func finish(cmd *cobra.Command, st pipeline.State) error {
	if st.Err != "" {
		return errors.New(st.Err)
	}
	if st.Reply != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", st.Reply)
	}
	return nil
}

// --- run ---

var runCmd = &cobra.Command{
	Use:   "run [message]",
	Short: "Run every stage for a new client, or chat with a returning one",
	Long: `Run walks a new client through intake, college advice, CV review,
scholarships and scholarship prep, then opens the chat. A client whose
intake profile is already stored goes straight to chat with the message.

Examples:
  collegeai run
  collegeai run --resume ./resume.pdf
  collegeai run --client 7f0c... "Which of my schools has the best aid?"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		id := strings.TrimSpace(clientID)
		if id == "" {
			id = uuid.New().String()
			printStep("New client id %s", id)
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		r, err := newRunner(cmd, a)
		if err != nil {
			return err
		}
		return finish(cmd, r.Run(cmd.Context(), id, strings.Join(args, " ")))
	},
}

func init() {
	runCmd.Flags().String("resume", "", "resume file (PDF or text) for the CV review")
}

// --- single stages ---

func stageCmd(stage pipeline.Stage, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireClient()
			if err != nil {
				return err
			}
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := newRunner(cmd, a)
			if err != nil {
				return err
			}
			st := r.RunStage(cmd.Context(), id, stage, strings.Join(args, " "))
			if st.Err == "" && stage != pipeline.StageChat {
				printSuccess("%s saved for %s", stage, id)
			}
			return finish(cmd, st)
		},
	}
}

var stageCmds = []*cobra.Command{
	stageCmd(pipeline.StageIntake, "intake", "Run or continue the intake interview"),
	stageCmd(pipeline.StageAdvisor, "advisor", "Recommend colleges for the stored profile"),
	stageCmd(pipeline.StageCVReview, "cv", "Review a resume against the reach and target colleges"),
	stageCmd(pipeline.StageScholarships, "scholarships", "Find verified scholarships"),
	stageCmd(pipeline.StagePrep, "prep", "Suggest how to prepare for the recommended scholarships"),
	stageCmd(pipeline.StageChat, "chat [message]", "Ask a question about the student file"),
}

func init() {
	for _, c := range stageCmds {
		if c.Name() == "cv" {
			c.Flags().String("resume", "", "resume file (PDF or text)")
		}
	}
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or edit a client's intake profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the intake profile as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := requireClient()
		if err != nil {
			return err
		}
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		doc, err := a.profiles.Get(id)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no intake profile for %s", id)
		}
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), doc)
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set <path> <value>",
	Short: "Set one profile field by dot path",
	Long: `Set one profile field by dot path. The value is parsed as JSON when it
can be (numbers, booleans, lists) and stored as a string otherwise.

Examples:
  collegeai profile set gpa_unweighted 3.8 --client 7f0c...
  collegeai profile set regions_open_to '["Northeast","Midwest"]' --client 7f0c...`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		op := document.PatchOp{Path: args[0], Value: parseValue(args[1])}
		return patchProfile(cmd, []document.PatchOp{op})
	},
}

var profilePatchCmd = &cobra.Command{
	Use:   "patch <ops-json | @file>",
	Short: `Apply a JSON list of {"path","value"} operations`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := []byte(args[0])
		if name, ok := strings.CutPrefix(args[0], "@"); ok {
			data, err := os.ReadFile(name)
			if err != nil {
				return fmt.Errorf("reading patch file: %w", err)
			}
			raw = data
		}
		var ops []document.PatchOp
		if err := json.Unmarshal(raw, &ops); err != nil {
			return fmt.Errorf("invalid patch JSON: %w", err)
		}
		return patchProfile(cmd, ops)
	},
}

func patchProfile(cmd *cobra.Command, ops []document.PatchOp) error {
	id, err := requireClient()
	if err != nil {
		return err
	}
	for _, op := range ops {
		if strings.TrimSpace(op.Path) == "" {
			return errors.New("every patch operation needs a path")
		}
	}
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.profiles.Patch(id, ops); err != nil {
		return err
	}
	printSuccess("Applied %d change(s) to %s", len(ops), id)
	return nil
}

// parseValue reads raw as JSON, falling back to the plain string.
func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

func init() {
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
	profileCmd.AddCommand(profilePatchCmd)
}

// --- context ---

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Show everything stored for a client, as the chat sees it",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := requireClient()
		if err != nil {
			return err
		}
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		return printJSON(cmd.OutOrStdout(), chat.Aggregate(id, chat.StoreSources(a.store, storage.ContextStores...)))
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		if !cfg.HasOracle() {
			printWarning("No OpenAI API key: set OPENAI_API_KEY or COLLEGEAI_OPENAI_API_KEY")
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
