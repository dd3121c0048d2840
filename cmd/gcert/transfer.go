package main

import (
	"github.com/urfave/cli/v2"
)

var transfer = cli.Command{
	Name:  "transfer",
	Usage: "move a quantity of a certificate to a receiving endpoint",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "owner",
			Usage:    "owner of the slices to transfer",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "registry",
			Usage:    "registry hosting the certificate stream",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "certificate",
			Usage:    "certificate id",
			Required: true,
		},
		&cli.Uint64Flag{
			Name:     "quantity",
			Usage:    "quantity to transfer, in watt hours",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "receiver",
			Usage:    "id of the receiving endpoint",
			Required: true,
		},
		&cli.StringSliceFlag{
			Name:  "disclose",
			Usage: "hashed attribute keys to disclose to the receiver",
		},
	},
	Action: transferAction,
}

func transferAction(ctx *cli.Context) error {
	return postJSON(ctx, "/v1/transfers", map[string]interface{}{
		"owner":              ctx.String("owner"),
		"registry":           ctx.String("registry"),
		"certificateId":      ctx.String("certificate"),
		"quantity":           ctx.Uint64("quantity"),
		"receiverEndpointId": ctx.String("receiver"),
		"discloseAttributes": ctx.StringSlice("disclose"),
	})
}
