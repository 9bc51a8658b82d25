package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/koustreak/classiflow/internal/errs"
	"github.com/koustreak/classiflow/internal/issue"
	"github.com/koustreak/classiflow/internal/logger"
	"github.com/koustreak/classiflow/internal/metadata"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *options) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the classification and issue API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.session.Load(ctx); err != nil {
				a.log.Warn("initial load failed, serving empty view", logger.Fields{"error": err.Error()})
			}

			addr := opts.cfg.Server.Listen
			if cmd.Flags().Changed("listen") {
				addr = listen
			}
			return a.server().ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (overrides server.listen)")
	return cmd
}

func newTablesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List tables with their classifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.session.Load(cmd.Context()); err != nil {
				return err
			}

			tables := a.session.Tables()
			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), tables)
			}

			cat := a.session.Catalog()
			label := func(id string) string {
				if cl, ok := cat.Lookup(id); ok {
					return cat.Display(cl)
				}
				return orDash(id)
			}

			var rows [][]string
			for _, t := range tables {
				rows = append(rows, []string{t.Name, "", label(t.ClassificationID)})
				for _, c := range t.Columns {
					rows = append(rows, []string{t.Name, c.Name, label(c.ClassificationID)})
				}
			}
			return printTable(cmd.OutOrStdout(), []string{"TABLE", "COLUMN", "CLASSIFICATION"}, rows)
		},
	}
}

func newClassificationsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "classifications",
		Short: "List the classifications that can be assigned",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.session.Load(cmd.Context()); err != nil {
				return err
			}

			cat := a.session.Catalog()
			selectable := cat.Selectable()
			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), selectable)
			}
			rows := make([][]string, 0, len(selectable))
			for _, cl := range selectable {
				rows = append(rows, []string{cl.ID, cat.Display(cl)})
			}
			return printTable(cmd.OutOrStdout(), []string{"ID", "CLASSIFICATION"}, rows)
		},
	}
}

func newClassifyCmd(opts *options) *cobra.Command {
	var edit metadata.Edit

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Assign or clear the classification of a table or column",
		Long:  "Assign a classification to a table, or to one of its columns with --column. Pass an empty --classification to clear it.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.session.Load(cmd.Context()); err != nil {
				return err
			}

			n, err := a.session.UpdateClassification(cmd.Context(), edit)
			if opts.output == "json" && n.Message != "" {
				if perr := printJSON(cmd.OutOrStdout(), n); perr != nil {
					return perr
				}
			} else if n.Message != "" {
				fmt.Fprintln(cmd.OutOrStdout(), n.Message)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&edit.Table, "table", "", "Table name")
	cmd.Flags().StringVar(&edit.Column, "column", "", "Column name (omit to classify the table)")
	cmd.Flags().StringVar(&edit.ClassificationID, "classification", "", "Classification id (empty clears it)")
	_ = cmd.MarkFlagRequired("table")
	_ = cmd.MarkFlagRequired("classification")
	return cmd
}

func newDatabasesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "databases <project>",
		Short: "List the databases of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.close()

			dbs, err := a.reviewer.Databases(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), dbs)
			}
			rows := make([][]string, 0, len(dbs))
			for _, db := range dbs {
				rows = append(rows, []string{db.Name})
			}
			return printTable(cmd.OutOrStdout(), []string{"DATABASE"}, rows)
		},
	}
}

// sqlFlags reads SQL from --sql or --file.
type sqlFlags struct {
	sql  string
	file string
}

func (f *sqlFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.sql, "sql", "", "SQL statement")
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "Read the SQL statement from a file")
	cmd.MarkFlagsMutuallyExclusive("sql", "file")
}

func (f *sqlFlags) statement() (string, error) {
	if f.file == "" {
		return f.sql, nil
	}
	raw, err := os.ReadFile(f.file)
	if err != nil {
		return "", errs.Wrap(errs.ErrKindInvalidInput, "read sql file", err)
	}
	return string(raw), nil
}

func newCheckCmd(opts *options) *cobra.Command {
	var (
		project  string
		database string
		sql      sqlFlags
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Review SQL against a database without changing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stmt, err := sql.statement()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.close()

			advices, err := a.reviewer.Check(cmd.Context(), project, database, stmt)
			if err != nil {
				return err
			}
			if opts.output == "json" || len(advices) > 0 {
				return printJSON(cmd.OutOrStdout(), advices)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "No advices.")
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "Project (projects/<id>)")
	cmd.Flags().StringVar(&database, "database", "", "Target database (instances/<i>/databases/<d>)")
	sql.register(cmd)
	return cmd
}

func newIssueCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Create database change issues and follow their status",
	}
	cmd.AddCommand(newIssueCreateCmd(opts), newIssueStatusCmd(opts))
	return cmd
}

func newIssueCreateCmd(opts *options) *cobra.Command {
	var (
		req issue.Request
		sql sqlFlags
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a database change issue from SQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stmt, err := sql.statement()
			if err != nil {
				return err
			}
			req.SQL = stmt

			a, err := newApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.close()

			res := a.issues.Create(cmd.Context(), req)
			if opts.output == "json" {
				if err := printJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), res.Message)
				if res.Success {
					fmt.Fprintf(cmd.OutOrStdout(), "Issue uid: %s\n", res.Issue.UID)
				}
			}
			return res.Err()
		},
	}
	cmd.Flags().StringVar(&req.Project, "project", "", "Project (projects/<id>)")
	cmd.Flags().StringVar(&req.Database, "database", "", "Target database (instances/<i>/databases/<d>)")
	sql.register(cmd)
	return cmd
}

func newIssueStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status <project> <uid>",
		Short: "Show the current status of an issue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.close()

			status, err := a.status.FetchStatus(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]string{"project": args[0], "uid": args[1], "status": status})
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

func newConfigCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprint(cmd.OutOrStdout(), opts.cfg.String())
			return nil
		},
	}
}
