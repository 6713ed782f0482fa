package render

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

// NetworksRenderer renders network lists
type NetworksRenderer struct {
	out   io.Writer
	color bool
}

// NewNetworksRenderer creates a new networks renderer
func NewNetworksRenderer(out io.Writer, color bool) *NetworksRenderer {
	return &NetworksRenderer{
		out:   out,
		color: color,
	}
}

// RenderNetworksList renders configured networks and, when resolved, their
// named accounts
func (r *NetworksRenderer) RenderNetworksList(result *usecase.ListNetworksResult) error {
	if len(result.Networks) == 0 {
		fmt.Fprintln(r.out, "No networks configured in deploy.toml [networks]")
		return nil
	}

	fmt.Fprintln(r.out, "🌐 Available Networks:")
	fmt.Fprintln(r.out)

	for _, status := range result.Networks {
		marker := " "
		if status.Name == result.Active {
			marker = "*"
		}

		if status.Network == nil {
			fmt.Fprintf(r.out, "%s ❌ %s - Error: %v\n", marker, status.Name, status.Error)
			continue
		}

		network := status.Network
		fmt.Fprintf(r.out, "%s ✅ %s - Chain ID: %d", marker, status.Name, network.ChainID)
		if network.Confirm {
			color.New(color.FgYellow).Fprint(r.out, " (confirm)")
		}
		fmt.Fprintln(r.out)

		if status.Accounts != nil || len(status.Signers) > 0 || len(status.MissingAccounts) > 0 || status.Error != nil {
			r.renderAccounts(status)
		}
	}

	return nil
}

func (r *NetworksRenderer) renderAccounts(status usecase.NetworkStatus) {
	if status.Error != nil {
		notVerifiedStyle.Fprintf(r.out, "      %v\n", status.Error)
		return
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.Style().Options.DrawBorder = false
	t.Style().Options.SeparateColumns = false
	t.Style().Options.SeparateHeader = false
	t.Style().Box = table.BoxStyle{PaddingLeft: "      ", PaddingRight: " "}

	for i, signer := range status.Signers {
		t.AppendRow(table.Row{faintStyle.Sprintf("key %d", i), addressStyle.Sprint(signer.Hex())})
	}
	for _, role := range sortedKeys(status.Accounts) {
		t.AppendRow(table.Row{role, addressStyle.Sprint(status.Accounts[role].Hex())})
	}
	for _, role := range status.MissingAccounts {
		t.AppendRow(table.Row{role, notVerifiedStyle.Sprint("missing")})
	}
	fmt.Fprintln(r.out, t.Render())
}
