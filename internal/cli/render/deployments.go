package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/samber/lo"
	"github.com/trebuchet-org/sling/internal/domain"
	"github.com/trebuchet-org/sling/internal/usecase"
)

var (
	networkBg          = color.BgYellow
	chainBg            = color.BgCyan
	networkHeader      = color.New(networkBg, color.FgBlack)
	networkHeaderBold  = color.New(networkBg, color.FgBlack, color.Bold)
	chainHeader        = color.New(chainBg, color.FgBlack)
	chainHeaderBold    = color.New(chainBg, color.FgBlack, color.Bold)
	contractStyle      = color.New(color.FgGreen, color.Bold)
	labelStyle         = color.New(color.FgCyan)
	addressStyle       = color.New(color.FgWhite)
	timestampStyle     = color.New(color.Faint)
	verifiedStyle      = color.New(color.FgGreen)
	notVerifiedStyle   = color.New(color.FgRed)
	sectionHeaderStyle = color.New(color.Bold, color.FgHiWhite)
)

type TableData [][]string

// DeploymentsRenderer renders the registry as tree-style tables grouped by
// network and chain
type DeploymentsRenderer struct {
	out   io.Writer
	color bool
}

// NewDeploymentsRenderer creates a new deployments renderer
func NewDeploymentsRenderer(out io.Writer, color bool) *DeploymentsRenderer {
	return &DeploymentsRenderer{
		out:   out,
		color: color,
	}
}

// RenderDeploymentList renders deployments grouped by network
func (r *DeploymentsRenderer) RenderDeploymentList(result *usecase.DeploymentListResult) error {
	if len(result.Deployments) == 0 {
		fmt.Fprintln(r.out, "No deployments found")
		return nil
	}

	groups := lo.GroupBy(result.Deployments, func(d *domain.DeploymentRecord) string { return d.Network })
	networks := lo.Keys(groups)
	sort.Strings(networks)

	tables := make(map[string]TableData, len(networks))
	for _, network := range networks {
		tables[network] = r.buildDeploymentTable(groups[network])
	}
	widths := calculateTableColumnWidths(lo.Values(tables))

	for i, network := range networks {
		deployments := groups[network]
		isLast := i == len(networks)-1
		treePrefix, continuationPrefix := "├─", "│ "
		if isLast {
			treePrefix, continuationPrefix = "└─", "  "
		}

		fmt.Fprintln(r.out, networkHeader.Sprintf("   ◎ %-10s %s", "network:", networkHeaderBold.Sprintf("%-30s", strings.ToUpper(network))))
		fmt.Fprintf(r.out, "%s%s%s\n", treePrefix,
			chainHeader.Sprintf(" ⛓ %-10s ", "chain:"),
			chainHeaderBold.Sprintf("%-30d", deployments[0].ChainID))
		fmt.Fprintln(r.out, continuationPrefix)
		fmt.Fprintf(r.out, "%s%s\n", continuationPrefix, sectionHeaderStyle.Sprint("CONTRACTS"))
		fmt.Fprint(r.out, renderTableWithWidths(tables[network], widths, continuationPrefix))
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out)
	}

	fmt.Fprintf(r.out, "Total deployments: %d", result.Summary.Total)
	if result.Summary.Unverified > 0 {
		fmt.Fprintf(r.out, " (%s)", notVerifiedStyle.Sprintf("%d without verified code", result.Summary.Unverified))
	}
	fmt.Fprintln(r.out)
	return nil
}

func (r *DeploymentsRenderer) buildDeploymentTable(deployments []*domain.DeploymentRecord) TableData {
	rows := make(TableData, 0, len(deployments))
	for _, d := range deployments {
		name := contractStyle.Sprint(d.ContractName)
		if d.Label != "" {
			name += " " + labelStyle.Sprintf("(%s)", d.Label)
		}
		code := verifiedStyle.Sprint("✓ code")
		if !d.CodeVerified {
			code = notVerifiedStyle.Sprint("✗ no code")
		}
		rows = append(rows, []string{
			name,
			addressStyle.Sprint(d.Address.Hex()),
			code,
			timestampStyle.Sprint(d.CreatedAt.Format("2006-01-02 15:04:05")),
		})
	}
	return rows
}

func renderTableWithWidths(tableData TableData, columnWidths []int, continuationPrefix string) string {
	if len(tableData) == 0 {
		return ""
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.Style().Options.SeparateRows = false
	t.Style().Options.DrawBorder = false
	t.Style().Options.SeparateHeader = false
	t.Style().Options.SeparateColumns = false
	t.Style().Box = table.BoxStyle{PaddingRight: "   "}

	colConfigs := make([]table.ColumnConfig, len(columnWidths))
	for i, width := range columnWidths {
		if i == 0 {
			width += text.RuneWidthWithoutEscSequences(continuationPrefix)
		}
		colConfigs[i] = table.ColumnConfig{
			Number:   i + 1,
			Align:    text.AlignLeft,
			WidthMin: width,
			WidthMax: width,
		}
	}
	t.SetColumnConfigs(colConfigs)

	for _, row := range tableData {
		tableRow := make(table.Row, len(row))
		for i, cell := range row {
			if i == 0 {
				cell = continuationPrefix + cell
			}
			tableRow[i] = cell
		}
		t.AppendRow(tableRow)
	}
	return t.Render()
}

// calculateTableColumnWidths returns the widest visible cell per column
// across all tables so that groups line up
func calculateTableColumnWidths(tables []TableData) []int {
	var widths []int
	for _, tbl := range tables {
		for _, row := range tbl {
			for i, cell := range row {
				if i >= len(widths) {
					widths = append(widths, 0)
				}
				widths[i] = max(widths[i], text.RuneWidthWithoutEscSequences(cell))
			}
		}
	}
	return widths
}
