package main

import (
	"fmt"

	"github.com/pterm/pterm"

	"github.com/coolbeans/quarry/pkg/query"
)

// formatPretty is the terminal table format, in addition to the formats
// QueryResult knows.
const formatPretty = "pretty"

func render(result *query.QueryResult, format string) (string, error) {
	if format == formatPretty {
		return renderPretty(result)
	}
	return result.Format(query.OutputFormat(format))
}

// renderPretty draws the rows with pterm. ASK answers are colored.
func renderPretty(result *query.QueryResult) (string, error) {
	if result.Type == query.AskQueryType {
		if result.Boolean {
			return pterm.LightGreen("true") + "\n", nil
		}
		return pterm.LightRed("false") + "\n", nil
	}
	if len(result.Rows) == 0 {
		return pterm.Gray("No results") + "\n", nil
	}

	data := pterm.TableData{result.Variables}
	data = append(data, result.Cells()...)
	table, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\n%s\n", table, pterm.Gray(fmt.Sprintf("%d rows", result.Count))), nil
}
