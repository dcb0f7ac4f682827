package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/JonMunkholm/olive/internal/errors"
	"github.com/JonMunkholm/olive/internal/rowstore"
)

var (
	askURL   string
	askKey   string
	askTable string
	askSQL   bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask one question from the terminal",
	Example: `  olive ask --url https://xyz.supabase.co --key $KEY --table users "users named ann"
  olive ask --url postgres://reader@localhost/app --key secret --table orders --sql "top 5 orders"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		target := rowstore.Target{Endpoint: askURL, AccessKey: askKey, Table: askTable}
		question := strings.Join(args, " ")
		out := cmd.OutOrStdout()

		if askSQL {
			q, err := e.pipeline.GenerateSQL(cmd.Context(), target, question)
			if err != nil {
				return fmt.Errorf("%s", apperrors.Message(err))
			}
			fmt.Fprintln(out, q.RawText)
			return nil
		}

		answer, err := e.pipeline.Ask(cmd.Context(), target, question)
		if err != nil {
			return fmt.Errorf("%s", apperrors.Message(err))
		}
		fmt.Fprintln(out, answer.SQL)
		fmt.Fprintln(out)
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if answer.Chart != nil {
			return enc.Encode(answer.Chart)
		}
		return enc.Encode(answer.Rows)
	},
}

func init() {
	askCmd.Flags().StringVar(&askURL, "url", "", "Project URL or postgres:// DSN")
	askCmd.Flags().StringVar(&askKey, "key", "", "API key or database password")
	askCmd.Flags().StringVar(&askTable, "table", "", "Table name")
	askCmd.Flags().BoolVar(&askSQL, "sql", false, "Only print the generated SQL")
	rootCmd.AddCommand(askCmd)
}
