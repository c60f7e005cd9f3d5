package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"github.com/devricklin/offline-responder/internal/biz/domain"
	"github.com/devricklin/offline-responder/internal/biz/repo"
	"github.com/devricklin/offline-responder/internal/data"
)

// Edits made here are picked up by a running daemon on its next start.

func openTemplates() (repo.TemplateRepo, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg, false)
	if err != nil {
		return nil, err
	}
	return data.NewTemplateRepo(cfg.Paths.TemplatesPath, log.Named("templates"))
}

func openConfigStore() (repo.ConfigRepo, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg, false)
	if err != nil {
		return nil, err
	}
	return data.NewConfigRepo(cfg.Paths.ConfigPath, log.Named("config"))
}

// ============ templates ============

func newTemplatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "templates",
		Aliases: []string{"template", "tpl"},
		Short:   "Manage reply templates",
	}
	cmd.AddCommand(newTemplatesListCmd())
	cmd.AddCommand(newTemplatesShowCmd())
	cmd.AddCommand(newTemplatesAddCmd())
	cmd.AddCommand(newTemplatesDeleteCmd())
	return cmd
}

func newTemplatesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List template IDs",
		RunE: func(cmd *cobra.Command, args []string) error {
			templates, err := openTemplates()
			if err != nil {
				return err
			}
			all := templates.List()
			for _, id := range data.SortedTemplateIDs(all) {
				fmt.Fprintf(cmd.OutOrStdout(), "%-18s %s\n", id, firstLine(all[id].Body))
			}
			return nil
		},
	}
}

func newTemplatesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			templates, err := openTemplates()
			if err != nil {
				return err
			}
			tpl, ok := templates.Get(args[0])
			if !ok {
				return fmt.Errorf("template %q not found", args[0])
			}
			if tpl.Subject != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Subject: %s\n\n", tpl.Subject)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tpl.Body)
			return nil
		},
	}
}

func newTemplatesAddCmd() *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "add <id> <body>",
		Short: "Create or replace a template. Placeholders: {sender_name} {offline_hours} {offline_minutes} {current_time} {current_date}",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			templates, err := openTemplates()
			if err != nil {
				return err
			}
			if err := templates.Add(args[0], domain.Template{Subject: subject, Body: args[1]}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Template %s saved\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Optional subject line")
	return cmd
}

func newTemplatesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			templates, err := openTemplates()
			if err != nil {
				return err
			}
			deleted, err := templates.Delete(args[0])
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("template %q not found", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Template %s deleted\n", args[0])
			return nil
		},
	}
}

// ============ config ============

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and edit the dotted-path config store",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Print a value, or the whole document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openConfigStore()
			if err != nil {
				return err
			}
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			raw, ok := store.Raw(path)
			if !ok {
				return fmt.Errorf("%s is not set", path)
			}
			out := pretty.Pretty([]byte(raw))
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			if !strings.HasSuffix(string(out), "\n") {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <path> <value>",
		Short: "Set a value. JSON values are parsed, anything else is stored as a string",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openConfigStore()
			if err != nil {
				return err
			}
			if err := store.Set(args[0], data.ParseValue(args[1])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s updated\n", args[0])
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <path>",
		Short: "Remove a value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openConfigStore()
			if err != nil {
				return err
			}
			deleted, err := store.Delete(args[0])
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("%s is not set", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s deleted\n", args[0])
			return nil
		},
	})
	return cmd
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return truncate(s, 60)
}
