package main

import (
	"github.com/urfave/cli/v2"
)

var claim = cli.Command{
	Name:  "claim",
	Usage: "retire a quantity of a production certificate against a consumption certificate",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "owner",
			Usage:    "owner of the slices to claim",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "registry",
			Usage:    "registry hosting both certificate streams",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "production",
			Usage:    "production certificate id",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "consumption",
			Usage:    "consumption certificate id",
			Required: true,
		},
		&cli.Uint64Flag{
			Name:     "quantity",
			Usage:    "quantity to claim, in watt hours",
			Required: true,
		},
	},
	Action: claimAction,
}

func claimAction(ctx *cli.Context) error {
	return postJSON(ctx, "/v1/claims", map[string]interface{}{
		"owner":                    ctx.String("owner"),
		"registry":                 ctx.String("registry"),
		"productionCertificateId":  ctx.String("production"),
		"consumptionCertificateId": ctx.String("consumption"),
		"quantity":                 ctx.Uint64("quantity"),
	})
}
