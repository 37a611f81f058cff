package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/oxen-go/oxen/internal/dataframe/format"
	"github.com/oxen-go/oxen/internal/repository"
)

var (
	dfFilter string
	dfLimit  int
	dfOffset int
	dfValues string
)

// DataFrameRowsHandler lists (a page of) a data frame's rows.
func DataFrameRowsHandler(h *repository.Handle, args []string) error {
	id, relPath := args[0], args[1]
	client, repo, err := workspaceClient(h)
	if err != nil {
		return err
	}
	limit := dfLimit
	if limit <= 0 {
		limit = 100
	}
	result, err := client.GetDataFrameRows(context.Background(), repo, id, relPath, dfFilter, limit, dfOffset)
	if err != nil {
		return fmt.Errorf("list rows: %w", err)
	}
	fmt.Println(tabJoin(result.Columns))
	for _, row := range result.Rows {
		cells := make([]string, 0, len(row.Values)+1)
		for _, v := range row.Values {
			cells = append(cells, fmt.Sprintf("%v", v))
		}
		fmt.Printf("#%d [%s]\t%s\n", row.ID, row.Status, tabJoin(cells))
	}
	return nil
}

// DataFrameAddRowHandler appends one row, whose values are given as a
// JSON array (e.g. `[1, "alice", true]`) matching the file's column
// order, to relPath's row-level view.
func DataFrameAddRowHandler(h *repository.Handle, args []string) error {
	id, relPath := args[0], args[1]
	if dfValues == "" {
		return fmt.Errorf("--values is required")
	}
	var row format.Row
	if err := json.Unmarshal([]byte(dfValues), &row); err != nil {
		return fmt.Errorf("parse --values: %w", err)
	}

	client, repo, err := workspaceClient(h)
	if err != nil {
		return err
	}
	rowID, err := client.AddDataFrameRow(context.Background(), repo, id, relPath, row)
	if err != nil {
		return fmt.Errorf("add row: %w", err)
	}
	fmt.Printf("Added row #%d to %s in workspace '%s'\n", rowID, relPath, id)
	return nil
}

var (
	dfColumnType    string
	dfColumnDefault string
	dfNewColumnName string
)

// DataFrameAddColumnHandler adds a new column to relPath's row-level
// view, backfilling --default into every existing row.
func DataFrameAddColumnHandler(h *repository.Handle, args []string) error {
	id, relPath, column := args[0], args[1], args[2]
	if dfColumnType == "" {
		return fmt.Errorf("--type is required")
	}
	var def format.Value
	if dfColumnDefault != "" {
		if err := json.Unmarshal([]byte(dfColumnDefault), &def); err != nil {
			return fmt.Errorf("parse --default: %w", err)
		}
	}
	client, repo, err := workspaceClient(h)
	if err != nil {
		return err
	}
	if err := client.AddDataFrameColumn(context.Background(), repo, id, relPath, column, dfColumnType, def); err != nil {
		return fmt.Errorf("add column: %w", err)
	}
	fmt.Printf("Added column '%s' (%s) to %s in workspace '%s'\n", column, dfColumnType, relPath, id)
	return nil
}

// DataFrameRenameColumnHandler renames a column in relPath's row-level
// view.
func DataFrameRenameColumnHandler(h *repository.Handle, args []string) error {
	id, relPath, column := args[0], args[1], args[2]
	if dfNewColumnName == "" {
		return fmt.Errorf("--to is required")
	}
	client, repo, err := workspaceClient(h)
	if err != nil {
		return err
	}
	if err := client.RenameDataFrameColumn(context.Background(), repo, id, relPath, column, dfNewColumnName); err != nil {
		return fmt.Errorf("rename column: %w", err)
	}
	fmt.Printf("Renamed column '%s' to '%s' in %s\n", column, dfNewColumnName, relPath)
	return nil
}

// DataFrameRetypeColumnHandler changes a column's declared type.
func DataFrameRetypeColumnHandler(h *repository.Handle, args []string) error {
	id, relPath, column := args[0], args[1], args[2]
	if dfColumnType == "" {
		return fmt.Errorf("--type is required")
	}
	client, repo, err := workspaceClient(h)
	if err != nil {
		return err
	}
	if err := client.RetypeDataFrameColumn(context.Background(), repo, id, relPath, column, dfColumnType); err != nil {
		return fmt.Errorf("retype column: %w", err)
	}
	fmt.Printf("Retyped column '%s' to %s in %s\n", column, dfColumnType, relPath)
	return nil
}

// DataFrameDropColumnHandler removes a column from relPath's
// row-level view.
func DataFrameDropColumnHandler(h *repository.Handle, args []string) error {
	id, relPath, column := args[0], args[1], args[2]
	client, repo, err := workspaceClient(h)
	if err != nil {
		return err
	}
	if err := client.DropDataFrameColumn(context.Background(), repo, id, relPath, column); err != nil {
		return fmt.Errorf("drop column: %w", err)
	}
	fmt.Printf("Dropped column '%s' from %s\n", column, relPath)
	return nil
}

// DataFrameUpdateRowHandler overwrites a row's values, given as a JSON
// array matching the file's column order.
func DataFrameUpdateRowHandler(h *repository.Handle, args []string) error {
	id, relPath := args[0], args[1]
	rowID, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("parse row id: %w", err)
	}
	if dfValues == "" {
		return fmt.Errorf("--values is required")
	}
	var row format.Row
	if err := json.Unmarshal([]byte(dfValues), &row); err != nil {
		return fmt.Errorf("parse --values: %w", err)
	}

	client, repo, err := workspaceClient(h)
	if err != nil {
		return err
	}
	if err := client.UpdateDataFrameRow(context.Background(), repo, id, relPath, rowID, row); err != nil {
		return fmt.Errorf("update row: %w", err)
	}
	fmt.Printf("Updated row #%d in %s in workspace '%s'\n", rowID, relPath, id)
	return nil
}

// DataFrameDeleteRowHandler marks a row removed in relPath's row-level
// view.
func DataFrameDeleteRowHandler(h *repository.Handle, args []string) error {
	id, relPath := args[0], args[1]
	rowID, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("parse row id: %w", err)
	}
	client, repo, err := workspaceClient(h)
	if err != nil {
		return err
	}
	if err := client.DeleteDataFrameRow(context.Background(), repo, id, relPath, rowID); err != nil {
		return fmt.Errorf("delete row: %w", err)
	}
	fmt.Printf("Deleted row #%d from %s in workspace '%s'\n", rowID, relPath, id)
	return nil
}

// DataFrameRestoreRowHandler undoes a pending modify or delete on a
// row, reverting it to its base-commit content.
func DataFrameRestoreRowHandler(h *repository.Handle, args []string) error {
	id, relPath := args[0], args[1]
	rowID, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("parse row id: %w", err)
	}
	client, repo, err := workspaceClient(h)
	if err != nil {
		return err
	}
	if err := client.RestoreDataFrameRow(context.Background(), repo, id, relPath, rowID); err != nil {
		return fmt.Errorf("restore row: %w", err)
	}
	fmt.Printf("Restored row #%d in %s in workspace '%s'\n", rowID, relPath, id)
	return nil
}

// DataFrameRestoreFrameHandler discards every pending row edit in
// relPath's row-level view.
func DataFrameRestoreFrameHandler(h *repository.Handle, args []string) error {
	id, relPath := args[0], args[1]
	client, repo, err := workspaceClient(h)
	if err != nil {
		return err
	}
	if err := client.RestoreDataFrame(context.Background(), repo, id, relPath); err != nil {
		return fmt.Errorf("restore frame: %w", err)
	}
	fmt.Printf("Restored %s in workspace '%s'\n", relPath, id)
	return nil
}

func tabJoin(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += "\t"
		}
		out += s
	}
	return out
}

func init() {
	rowsCmd := NewCommand("rows <workspace-id> <path>", "List a data frame's rows inside a workspace", DataFrameRowsHandler, 2)
	rowsCmd.Flags().StringVar(&dfFilter, "filter", "", "SQL WHERE-clause fragment to filter rows")
	rowsCmd.Flags().IntVar(&dfLimit, "limit", 100, "Maximum rows to return")
	rowsCmd.Flags().IntVar(&dfOffset, "offset", 0, "Rows to skip before the first one returned")
	rowsCmd.Flags().StringVar(&workspaceRemote, "remote", "", "Remote to talk to (default: the default remote)")

	addRowCmd := NewCommand("add-row <workspace-id> <path>", "Append a row to a data frame inside a workspace", DataFrameAddRowHandler, 2)
	addRowCmd.Flags().StringVar(&dfValues, "values", "", `Row values as a JSON array, e.g. '["alice", 30, true]'`)
	addRowCmd.Flags().StringVar(&workspaceRemote, "remote", "", "Remote to talk to (default: the default remote)")

	addColumnCmd := NewCommand("add-column <workspace-id> <path> <column>", "Add a column to a data frame inside a workspace", DataFrameAddColumnHandler, 3)
	addColumnCmd.Flags().StringVar(&dfColumnType, "type", "", "Column type (int64, float64, bool, string)")
	addColumnCmd.Flags().StringVar(&dfColumnDefault, "default", "", "Default value as JSON, backfilled into existing rows")
	addColumnCmd.Flags().StringVar(&workspaceRemote, "remote", "", "Remote to talk to (default: the default remote)")

	renameColumnCmd := NewCommand("rename-column <workspace-id> <path> <column>", "Rename a column in a data frame inside a workspace", DataFrameRenameColumnHandler, 3)
	renameColumnCmd.Flags().StringVar(&dfNewColumnName, "to", "", "New column name")
	renameColumnCmd.Flags().StringVar(&workspaceRemote, "remote", "", "Remote to talk to (default: the default remote)")

	retypeColumnCmd := NewCommand("retype-column <workspace-id> <path> <column>", "Change a column's declared type in a data frame inside a workspace", DataFrameRetypeColumnHandler, 3)
	retypeColumnCmd.Flags().StringVar(&dfColumnType, "type", "", "New column type (int64, float64, bool, string)")
	retypeColumnCmd.Flags().StringVar(&workspaceRemote, "remote", "", "Remote to talk to (default: the default remote)")

	dropColumnCmd := NewCommand("drop-column <workspace-id> <path> <column>", "Remove a column from a data frame inside a workspace", DataFrameDropColumnHandler, 3)
	dropColumnCmd.Flags().StringVar(&workspaceRemote, "remote", "", "Remote to talk to (default: the default remote)")

	updateRowCmd := NewCommand("update-row <workspace-id> <path> <row-id>", "Overwrite a row's values in a data frame inside a workspace", DataFrameUpdateRowHandler, 3)
	updateRowCmd.Flags().StringVar(&dfValues, "values", "", `Row values as a JSON array, e.g. '["alice", 30, true]'`)
	updateRowCmd.Flags().StringVar(&workspaceRemote, "remote", "", "Remote to talk to (default: the default remote)")

	deleteRowCmd := NewCommand("delete-row <workspace-id> <path> <row-id>", "Mark a row removed in a data frame inside a workspace", DataFrameDeleteRowHandler, 3)
	deleteRowCmd.Flags().StringVar(&workspaceRemote, "remote", "", "Remote to talk to (default: the default remote)")

	restoreRowCmd := NewCommand("restore-row <workspace-id> <path> <row-id>", "Undo a pending modify or delete on a row", DataFrameRestoreRowHandler, 3)
	restoreRowCmd.Flags().StringVar(&workspaceRemote, "remote", "", "Remote to talk to (default: the default remote)")

	restoreFrameCmd := NewCommand("restore-frame <workspace-id> <path>", "Discard every pending row edit in a data frame inside a workspace", DataFrameRestoreFrameHandler, 2)
	restoreFrameCmd.Flags().StringVar(&workspaceRemote, "remote", "", "Remote to talk to (default: the default remote)")

	dfRoot := &cobra.Command{
		Use:   "df",
		Short: "Inspect and edit row-level data frame views inside a workspace",
	}
	dfRoot.AddCommand(rowsCmd)
	dfRoot.AddCommand(addRowCmd)
	dfRoot.AddCommand(addColumnCmd)
	dfRoot.AddCommand(renameColumnCmd)
	dfRoot.AddCommand(retypeColumnCmd)
	dfRoot.AddCommand(dropColumnCmd)
	dfRoot.AddCommand(updateRowCmd)
	dfRoot.AddCommand(deleteRowCmd)
	dfRoot.AddCommand(restoreRowCmd)
	dfRoot.AddCommand(restoreFrameCmd)
	rootCmd.AddCommand(dfRoot)
}
