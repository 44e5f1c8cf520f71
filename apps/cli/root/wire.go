package root

import (
	"github.com/motorline/dealerdesk/apps/cli/cmd/auth"
	"github.com/motorline/dealerdesk/apps/cli/cmd/bootstrap"
)

func init() {
	Root().AddCommand(auth.Command())
	Root().AddCommand(bootstrap.Command())
}
