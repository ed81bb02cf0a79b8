package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/harrisonrobin/taskmind/pkg/auth"
	"github.com/harrisonrobin/taskmind/pkg/config"
	"github.com/harrisonrobin/taskmind/pkg/extract"
	"github.com/harrisonrobin/taskmind/pkg/google"
	"github.com/harrisonrobin/taskmind/pkg/index"
	"github.com/harrisonrobin/taskmind/pkg/logger"
	"github.com/harrisonrobin/taskmind/pkg/model"
	"github.com/harrisonrobin/taskmind/pkg/pipeline"
	"github.com/harrisonrobin/taskmind/pkg/server"
	"github.com/harrisonrobin/taskmind/pkg/store"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "taskmind",
		Short:         "Turn recent email and chat into a prioritized task list",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/taskmind/config.yaml)")

	rootCmd.AddCommand(authCmd(&configPath))
	rootCmd.AddCommand(syncCmd(&configPath))
	rootCmd.AddCommand(analyzeCmd(&configPath))
	rootCmd.AddCommand(tasksCmd(&configPath))
	rootCmd.AddCommand(settingsCmd(&configPath))
	rootCmd.AddCommand(configCmd(&configPath))
	rootCmd.AddCommand(calendarCmd(&configPath))
	rootCmd.AddCommand(serveCmd(&configPath))

	return rootCmd
}

func authCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to Gmail, Chat, Drive and Calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger.Init(cfg.Log.Level, cfg.Log.JSON)

			dir, err := config.GetXdgHome()
			if err != nil {
				return err
			}
			if err := auth.Authenticate(cmd.Context(), dir, cfg.Account.Enhanced()); err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Authentication successful! Token saved to %s\n", dir)
			return nil
		},
	}
}

func syncCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Scan Gmail and Chat and rebuild the task list",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.syncer.Sync(cmd.Context())
			if err != nil {
				return explain(err)
			}
			printReport(cmd.OutOrStdout(), report)
			if !report.NoContent {
				printTasks(cmd.OutOrStdout(), a.store.Tasks())
			}
			return nil
		},
	}
}

func analyzeCmd(configPath *string) *cobra.Command {
	var text string

	cmd := &cobra.Command{
		Use:   "analyze [file|-]",
		Short: "Extract tasks from pasted text and add them to the list",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if text == "" {
				path := "-"
				if len(args) == 1 {
					path = args[0]
				}
				body, err := readInput(cmd.InOrStdin(), path)
				if err != nil {
					return err
				}
				text = body
			}

			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.syncer.Analyze(cmd.Context(), text)
			if err != nil {
				return explain(err)
			}
			printReport(cmd.OutOrStdout(), report)
			if len(report.Extracted) > 0 {
				printTasks(cmd.OutOrStdout(), report.Extracted)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&text, "text", "t", "", "text to analyze instead of a file")
	return cmd
}

func tasksCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect and manage the task list",
	}

	var asJSON, pendingOnly bool
	list := &cobra.Command{
		Use:   "list",
		Short: "Show the task list",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			tasks := a.store.Tasks()
			if pendingOnly {
				pending := tasks[:0]
				for _, t := range tasks {
					if !t.IsCompleted {
						pending = append(pending, t)
					}
				}
				tasks = pending
			}
			if asJSON {
				return store.Export(cmd.OutOrStdout(), tasks, "json")
			}
			printTasks(cmd.OutOrStdout(), tasks)
			return nil
		},
	}
	list.Flags().BoolVarP(&asJSON, "json", "j", false, "output as JSON")
	list.Flags().BoolVar(&pendingOnly, "pending", false, "hide completed tasks")

	toggle := &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip a task between pending and completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := resolveID(a.store.Tasks(), args[0])
			if err != nil {
				return err
			}
			t, err := a.store.Toggle(cmd.Context(), id)
			if err != nil {
				return err
			}
			state := "pending"
			if t.IsCompleted {
				state = "completed"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", t.Title, state)
			return nil
		},
	}

	var yes bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Delete all tasks? [y/N] ") {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Task list cleared.")
			return nil
		},
	}
	clearCmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	var format, output string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write the task list as JSON or YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return store.Export(w, a.store.Tasks(), format)
		},
	}
	export.Flags().StringVarP(&format, "format", "f", "json", "json or yaml")
	export.Flags().StringVarP(&output, "output", "o", "-", "destination file")

	cmd.AddCommand(list, toggle, clearCmd, export)
	return cmd
}

func settingsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the stored settings",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print settings with the API key masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(a.settings.Current().Masked())
		},
	}

	var apiKey, instructions string
	var drive, autoSave bool
	set := &cobra.Command{
		Use:   "set",
		Short: "Change individual settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			flags := cmd.Flags()
			s, err := a.settings.Update(cmd.Context(), func(s *model.Settings) error {
				if flags.Changed("api-key") {
					s.GeminiAPIKey = strings.TrimSpace(apiKey)
				}
				if flags.Changed("instructions") {
					s.CustomInstructions = instructions
				}
				if flags.Changed("drive") {
					s.GoogleDriveConnected = drive
				}
				if flags.Changed("autosave") {
					s.AutoSave = autoSave
				}
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Settings saved (Drive backup %s).\n", onOff(s.BackupEnabled()))
			return nil
		},
	}
	set.Flags().StringVar(&apiKey, "api-key", "", "Gemini API key")
	set.Flags().StringVar(&instructions, "instructions", "", "custom extraction rules")
	set.Flags().BoolVar(&drive, "drive", false, "mirror the task list to Google Drive")
	set.Flags().BoolVar(&autoSave, "autosave", true, "back up after every change")

	cmd.AddCommand(show, set)
	return cmd
}

func configCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Persist one config key, e.g. calendar.name Work",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Set(*configPath, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s set to: %s\n", args[0], args[1])
			return nil
		},
	})
	return cmd
}

func calendarCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Mirror dated tasks into Google Calendar",
	}

	var calendarName string
	push := &cobra.Command{
		Use:   "push",
		Short: "Create or update all-day events for tasks with a due date",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if calendarName == "" {
				calendarName = a.cfg.Calendar.Name
			}
			cred, err := a.provider.Credential(ctx)
			if err != nil {
				return explain(err)
			}
			idx, err := index.Load(ctx, a.kv)
			if err != nil {
				return err
			}
			client, err := google.NewCalendarClient(ctx, cred, calendarName, idx)
			if err != nil {
				return err
			}

			sum, err := client.Push(ctx, a.store.Tasks(), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Calendar %q: %d created, %d updated, %d unchanged, %d without due date, %d removed, %d failed\n",
				calendarName, sum.Created, sum.Updated, sum.Unchanged, sum.Skipped, sum.Removed, sum.Failed)
			return nil
		},
	}
	push.Flags().StringVarP(&calendarName, "calendar", "c", "", "calendar name (overrides calendar.name)")

	cmd.AddCommand(push)
	return cmd
}

func serveCmd(configPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			err = config.Watch(*configPath, func(cfg *config.Config) {
				logger.Init(cfg.Log.Level, cfg.Log.JSON)
			})
			if err != nil {
				logger.Warn("config watch disabled", "error", err)
			}

			return server.New(a.syncer, a.bus, a.cfg.Server.JWTSecret).Run(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

// explain adds the fix for errors a user can act on.
func explain(err error) error {
	switch {
	case errors.Is(err, extract.ErrMissingCredential):
		return fmt.Errorf("%w\nset one with `taskmind settings set --api-key KEY` or GEMINI_API_KEY", err)
	case errors.Is(err, auth.ErrNoToken):
		return fmt.Errorf("%w\nrun `taskmind auth` first", err)
	}
	return err
}

func readInput(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("could not read %s: %w", path, err)
	}
	return string(b), nil
}

// resolveID accepts a full id or a unique prefix of one.
func resolveID(tasks []model.Task, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", errors.New("task id must not be empty")
	}
	var match string
	for _, t := range tasks {
		if t.ID == prefix {
			return t.ID, nil
		}
		if strings.HasPrefix(t.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("id prefix %q is ambiguous", prefix)
			}
			match = t.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", store.ErrTaskNotFound, prefix)
	}
	return match, nil
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, _ := bufio.NewReader(in).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func printReport(w io.Writer, r pipeline.Report) {
	if r.NoContent {
		fmt.Fprintln(w, "No content found in any source; nothing to analyze.")
		return
	}
	fmt.Fprintf(w, "Scanned %d emails and %d chats, found %d tasks (%d in list).\n",
		r.Stats.EmailsScanned, r.Stats.ChatsScanned, r.Stats.TasksFound, r.Total)
	if r.Shared {
		fmt.Fprintln(w, "Joined a sync that was already running.")
	}
}

func printTasks(w io.Writer, tasks []model.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\t\tPRIORITY\tSOURCE\tDUE\tCONF\tTITLE")
	for _, t := range tasks {
		done := " "
		if t.IsCompleted {
			done = "✓"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.0f\t%s\n", shortID(t.ID), done, t.Priority, t.SourceType, t.DueDate, t.ConfidenceScore, t.Title)
	}
	tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
