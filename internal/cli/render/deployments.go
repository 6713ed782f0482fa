package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/trebuchet-org/lend-deploy/internal/domain/models"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

// Color styles for table format
var (
	networkBg          = color.BgCyan
	networkHeader      = color.New(networkBg, color.FgBlack)
	networkHeaderBold  = color.New(networkBg, color.FgBlack, color.Bold)
	addressStyle       = color.New(color.FgWhite)
	timestampStyle     = color.New(color.Faint)
	pendingStyle       = color.New(color.FgYellow)
	verifiedStyle      = color.New(color.FgGreen)
	notVerifiedStyle   = color.New(color.FgRed)
	sectionHeaderStyle = color.New(color.Bold, color.FgHiWhite)
	nameStyle          = color.New(color.FgGreen, color.Bold)
)

type TableData [][]string

// DeploymentsRenderer renders deployment lists as tables grouped by network
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

	// Deployments arrive sorted by network, then creation order
	var networks []string
	groups := make(map[string][]*models.Deployment)
	for _, dep := range result.Deployments {
		if _, ok := groups[dep.Network]; !ok {
			networks = append(networks, dep.Network)
		}
		groups[dep.Network] = append(groups[dep.Network], dep)
	}

	// Build all tables first so columns line up across networks
	tables := make(map[string]TableData, len(networks))
	var all []TableData
	for _, network := range networks {
		t := r.buildDeploymentTable(groups[network], result.OnChain)
		tables[network] = t
		all = append(all, t)
	}
	widths := calculateTableColumnWidths(all)

	for i, network := range networks {
		deps := groups[network]
		label := fmt.Sprintf("%-10s", "network:")
		value := fmt.Sprintf("%-30s", fmt.Sprintf("%s (chain %d)", network, deps[0].ChainID))
		fmt.Fprintln(r.out, networkHeader.Sprintf(" ⛓ %s ", label)+networkHeaderBold.Sprint(value))

		isLast := i == len(networks)-1
		prefix := "│ "
		if isLast {
			prefix = "  "
		}
		fmt.Fprintln(r.out, prefix)
		fmt.Fprintf(r.out, "%s%s\n", prefix, sectionHeaderStyle.Sprint("CONTRACTS"))
		fmt.Fprint(r.out, renderTableWithWidths(tables[network], widths, prefix))
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out)
	}

	r.renderSummary(result)
	return nil
}

func (r *DeploymentsRenderer) renderSummary(result *usecase.DeploymentListResult) {
	summary := result.Summary
	fmt.Fprintf(r.out, "Total deployments: %d", summary.Total)
	if len(summary.ByNetwork) > 1 {
		var parts []string
		for _, network := range sortedKeys(summary.ByNetwork) {
			parts = append(parts, fmt.Sprintf("%s: %d", network, summary.ByNetwork[network]))
		}
		fmt.Fprintf(r.out, " (%s)", strings.Join(parts, ", "))
	}
	fmt.Fprintf(r.out, ", verified: %d, unverified: %d\n", summary.Verified, summary.Unverified)
}

// buildDeploymentTable creates a TableData for one network's deployments
func (r *DeploymentsRenderer) buildDeploymentTable(deployments []*models.Deployment, onChain map[string]bool) TableData {
	tableData := make(TableData, 0, len(deployments))

	for _, deployment := range deployments {
		row := []string{
			nameStyle.Sprint(deployment.DisplayName()),
			addressStyle.Sprint(deployment.Address),
			verificationCell(deployment),
		}
		if onChain != nil {
			row = append(row, onChainCell(onChain, usecase.RecordKey(deployment)))
		}
		row = append(row, timestampStyle.Sprint(deployment.CreatedAt.Format("2006-01-02 15:04:05")))
		tableData = append(tableData, row)
	}

	return tableData
}

func verificationCell(deployment *models.Deployment) string {
	switch deployment.Verification.Status {
	case models.VerificationStatusVerified:
		return verifiedStyle.Sprint("✓ verified")
	case models.VerificationStatusFailed:
		return notVerifiedStyle.Sprint("✗ failed")
	default:
		return pendingStyle.Sprint("? unverified")
	}
}

func onChainCell(onChain map[string]bool, key string) string {
	exists, checked := onChain[key]
	switch {
	case !checked:
		return ""
	case exists:
		return verifiedStyle.Sprint("● code")
	default:
		return notVerifiedStyle.Sprint("○ no code")
	}
}

// renderTableWithWidths renders a table with specific column widths
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
	t.Style().Box = table.BoxStyle{
		PaddingRight: "   ",
	}

	colConfigs := make([]table.ColumnConfig, len(columnWidths))
	for i, width := range columnWidths {
		if i == 0 {
			width += 2 + len([]rune(continuationPrefix))
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
				tableRow[i] = continuationPrefix + cell
			} else {
				tableRow[i] = cell
			}
		}
		t.AppendRow(tableRow)
	}

	return t.Render()
}

// calculateTableColumnWidths calculates column widths for multiple tables
func calculateTableColumnWidths(tables []TableData) []int {
	maxCols := 0
	for _, t := range tables {
		for _, row := range t {
			if len(row) > maxCols {
				maxCols = len(row)
			}
		}
	}

	widths := make([]int, maxCols)
	for _, t := range tables {
		for _, row := range t {
			for colIdx, cell := range row {
				if w := len([]rune(stripAnsiCodes(cell))); w > widths[colIdx] {
					widths[colIdx] = w
				}
			}
		}
	}

	return widths
}
