package render

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

// InitRenderer renders init command results
type InitRenderer struct {
	out io.Writer
}

// NewInitRenderer creates a new init renderer
func NewInitRenderer(out io.Writer) *InitRenderer {
	return &InitRenderer{out: out}
}

// Render renders the init project result
func (r *InitRenderer) Render(result *usecase.InitProjectResult) error {
	failed := false
	for _, step := range result.Steps {
		if step.Success {
			msg := step.Name
			if step.Message != "" {
				msg = step.Message
			}
			fmt.Fprintln(r.out, FormatSuccess(msg))
			continue
		}
		failed = true
		color.New(color.FgRed).Fprintf(r.out, "❌ %s\n", step.Name)
		if step.Message != "" {
			fmt.Fprintf(r.out, "   %s\n", step.Message)
		}
		if step.Error != nil {
			fmt.Fprintf(r.out, "   %s\n", step.Error.Error())
		}
	}

	if !failed {
		r.printSuccessMessage(result)
	}
	return nil
}

func (r *InitRenderer) printSuccessMessage(result *usecase.InitProjectResult) {
	fmt.Fprintln(r.out)
	if result.AlreadyInitialized {
		fmt.Fprintln(r.out, FormatWarning("lend-deploy was already initialized in this project"))
	} else {
		color.New(color.FgGreen, color.Bold).Fprintln(r.out, "🎉 lend-deploy initialized successfully!")
	}

	fmt.Fprintln(r.out)
	color.New(color.FgCyan, color.Bold).Fprintln(r.out, "📋 Next steps:")

	fmt.Fprintln(r.out, "1. Copy .env.example to .env and configure your deployment keys:")
	fmt.Fprintln(r.out, "   • Set DEPLOYER_PRIVATE_KEY for your deployment wallet")
	fmt.Fprintln(r.out, "   • Set RPC URLs for networks you'll deploy to")
	fmt.Fprintln(r.out, "   • Set BSCSCAN_API_KEY for contract verification")
	fmt.Fprintln(r.out)

	fmt.Fprintln(r.out, "2. Review named accounts and networks in deploy.toml:")
	color.New(color.FgHiBlack).Fprintln(r.out, "   lend-deploy networks --accounts")
	fmt.Fprintln(r.out)

	fmt.Fprintln(r.out, "3. Build your contracts, then dry-run the sample pipeline:")
	color.New(color.FgHiBlack).Fprintln(r.out, "   forge build")
	color.New(color.FgHiBlack).Fprintln(r.out, "   lend-deploy deploy pipelines/lending-pool.yaml --network bsctest --dry-run")
	fmt.Fprintln(r.out)

	fmt.Fprintln(r.out, "4. Deploy, verify and inspect:")
	color.New(color.FgHiBlack).Fprintln(r.out, "   lend-deploy deploy pipelines/lending-pool.yaml --network bsctest")
	color.New(color.FgHiBlack).Fprintln(r.out, "   lend-deploy verify --all --network bsctest")
	color.New(color.FgHiBlack).Fprintln(r.out, "   lend-deploy list")
	color.New(color.FgHiBlack).Fprintln(r.out, "   lend-deploy show LendingPool --network bsctest")
}
