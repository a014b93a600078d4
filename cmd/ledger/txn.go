package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/localledger/ledger/internal/ledger/catalog"
	"github.com/localledger/ledger/internal/ledger/db"
	"github.com/localledger/ledger/internal/ledger/schema"
)

var (
	amountStyle   = lipgloss.NewStyle().Bold(true)
	negativeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

var addCmd = &cobra.Command{
	Use:     "add",
	GroupID: "txn",
	Short:   "Record a transaction",
	Long: `Record a transaction in the local ledger.

With --amount and --category the transaction is created directly;
without them an interactive form opens. The date accepts both
calendar form (2025-02-28) and phrases like "yesterday" or
"last friday", and defaults to today.

Examples:
  ledger add --amount -12.50 --category 101 --date yesterday
  ledger add`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()

		amount, _ := cmd.Flags().GetString("amount")
		categoryID, _ := cmd.Flags().GetInt64("category")
		dateText, _ := cmd.Flags().GetString("date")
		notes, _ := cmd.Flags().GetString("notes")

		cat := loadCatalog(a)

		if amount == "" || categoryID == 0 {
			amount, categoryID, dateText, notes, err = addForm(cat, amount, categoryID, dateText, notes)
			if err != nil {
				fatalf("%v", err)
			}
		}

		date, err := parseUserDate(dateText)
		if err != nil {
			fatalf("%v", err)
		}

		txn, err := a.store.Create(ctx, db.CreateParams{
			CategoryID: categoryID,
			Amount:     amount,
			Date:       date,
			Notes:      notes,
		})
		if err != nil {
			fatalf("failed to create transaction: %v", err)
		}

		fmt.Printf("Recorded %s on %s (%s)\n",
			renderAmount(txn.Amount), txn.Date, categoryLabel(cat, txn.CategoryID))
		fmt.Println(dimStyle.Render("id: " + txn.ID))
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	GroupID: "txn",
	Short:   "List transactions",
	Long: `List transactions, newest first.

With --month only transactions of that calendar month are shown:
  ledger list --month 2025-02`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()

		month, _ := cmd.Flags().GetString("month")

		var txns []*schema.Transaction
		if month != "" {
			year, m, err := parseMonth(month)
			if err != nil {
				fatalf("%v", err)
			}
			txns, err = a.store.ListByMonth(ctx, year, m)
			if err != nil {
				fatalf("failed to list transactions: %v", err)
			}
		} else {
			txns, err = a.store.ListAll(ctx)
			if err != nil {
				fatalf("failed to list transactions: %v", err)
			}
		}

		if len(txns) == 0 {
			fmt.Println("No transactions.")
			return
		}

		cat := loadCatalog(a)
		for _, txn := range txns {
			marker := " "
			if !txn.Synced {
				marker = "*"
			}
			line := fmt.Sprintf("%s %s  %10s  %-30s %s",
				marker, txn.Date, renderAmount(txn.Amount),
				categoryLabel(cat, txn.CategoryID), txn.Notes)
			fmt.Println(line)
			fmt.Println(dimStyle.Render("    " + txn.ID))
		}
		fmt.Println(dimStyle.Render("\n* not yet synced"))
	},
}

var editCmd = &cobra.Command{
	Use:     "edit <id>",
	GroupID: "txn",
	Short:   "Edit a transaction",
	Long: `Edit fields of an existing transaction. Only the flags given
change; everything else stays. Editing marks the transaction for
re-sync.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()

		var params db.UpdateParams
		if cmd.Flags().Changed("amount") {
			v, _ := cmd.Flags().GetString("amount")
			params.Amount = &v
		}
		if cmd.Flags().Changed("category") {
			v, _ := cmd.Flags().GetInt64("category")
			params.CategoryID = &v
		}
		if cmd.Flags().Changed("date") {
			text, _ := cmd.Flags().GetString("date")
			d, err := parseUserDate(text)
			if err != nil {
				fatalf("%v", err)
			}
			params.Date = &d
		}
		if cmd.Flags().Changed("notes") {
			v, _ := cmd.Flags().GetString("notes")
			params.Notes = &v
		}

		txn, err := a.store.Update(ctx, args[0], params)
		if err != nil {
			fatalf("failed to update transaction: %v", err)
		}
		fmt.Printf("Updated %s: %s on %s\n", txn.ID, renderAmount(txn.Amount), txn.Date)
	},
}

var rmCmd = &cobra.Command{
	Use:     "rm <id>",
	GroupID: "txn",
	Short:   "Delete a transaction",
	Long: `Delete a transaction from the local ledger. If it was synced,
the remote copy is removed on the next sync pass.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()

		if err := a.store.Delete(ctx, args[0]); err != nil {
			fatalf("failed to delete transaction: %v", err)
		}
		fmt.Printf("Deleted %s\n", args[0])
	},
}

func init() {
	addCmd.Flags().String("amount", "", "signed decimal amount, e.g. -12.50")
	addCmd.Flags().Int64("category", 0, "subcategory id")
	addCmd.Flags().String("date", "", "date (2025-02-28 or a phrase like \"yesterday\"; default today)")
	addCmd.Flags().String("notes", "", "free-form note")

	listCmd.Flags().String("month", "", "restrict to a calendar month (YYYY-MM)")

	editCmd.Flags().String("amount", "", "new amount")
	editCmd.Flags().Int64("category", 0, "new subcategory id")
	editCmd.Flags().String("date", "", "new date")
	editCmd.Flags().String("notes", "", "new note")

	rootCmd.AddCommand(addCmd, listCmd, editCmd, rmCmd)
}

// addForm collects missing transaction fields interactively.
func addForm(cat *catalog.Catalog, amount string, categoryID int64, dateText, notes string) (string, int64, string, string, error) {
	if dateText == "" {
		dateText = "today"
	}

	var options []huh.Option[int64]
	if cat != nil {
		for _, c := range cat.Categories() {
			for _, sub := range c.Subcategories {
				options = append(options, huh.NewOption(c.Name+" / "+sub.Name, sub.ID))
			}
		}
	}

	fields := []huh.Field{
		huh.NewInput().
			Title("Amount").
			Description("Signed decimal, e.g. -12.50 for an expense").
			Value(&amount).
			Validate(func(s string) error {
				if !schema.ValidAmount(s) {
					return fmt.Errorf("not a decimal amount")
				}
				return nil
			}),
	}

	if len(options) > 0 {
		fields = append(fields, huh.NewSelect[int64]().
			Title("Category").
			Options(options...).
			Value(&categoryID))
	} else {
		categoryText := strconv.FormatInt(categoryID, 10)
		fields = append(fields, huh.NewInput().
			Title("Category id").
			Value(&categoryText).
			Validate(func(s string) error {
				id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("not a positive id")
				}
				categoryID = id
				return nil
			}))
	}

	fields = append(fields,
		huh.NewInput().
			Title("Date").
			Description("2025-02-28 or a phrase like \"yesterday\"").
			Value(&dateText).
			Validate(func(s string) error {
				_, err := parseUserDate(s)
				return err
			}),
		huh.NewInput().
			Title("Notes").
			Value(&notes),
	)

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return "", 0, "", "", err
	}
	return amount, categoryID, dateText, notes, nil
}

// parseUserDate accepts calendar form first, then natural language. The
// result is always reduced to calendar components; no time of day survives.
func parseUserDate(text string) (schema.Date, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return schema.DateOf(time.Now()), nil
	}

	if d, err := schema.ParseDate(text); err == nil {
		return d, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(text, time.Now())
	if err != nil || r == nil {
		return schema.Date{}, fmt.Errorf("cannot understand date %q", text)
	}
	return schema.DateOf(r.Time), nil
}

// parseMonth parses YYYY-MM.
func parseMonth(s string) (int, time.Month, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid month %q, want YYYY-MM", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q, want YYYY-MM", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 1 || m > 12 {
		return 0, 0, fmt.Errorf("invalid month %q, want YYYY-MM", s)
	}
	return year, time.Month(m), nil
}

// loadCatalog returns the catalog or nil when none is configured. A missing
// catalog never blocks recording transactions.
func loadCatalog(a *app) *catalog.Catalog {
	c, err := catalog.Load(a.cfg.CatalogPath)
	if err != nil {
		return nil
	}
	return c
}

func categoryLabel(cat *catalog.Catalog, id int64) string {
	if cat == nil {
		return fmt.Sprintf("#%d", id)
	}
	return cat.Label(id)
}

func renderAmount(amount string) string {
	if strings.HasPrefix(amount, "-") {
		return negativeStyle.Render(amount)
	}
	return amountStyle.Render(amount)
}
