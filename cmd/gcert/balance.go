package main

import (
	"fmt"
	"net/url"

	"github.com/urfave/cli/v2"
)

var balance = cli.Command{
	Name:  "balance",
	Usage: "show the owner's balance for a certificate",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "owner",
			Usage:    "owner reference",
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
	},
	Action: balanceAction,
}

func balanceAction(ctx *cli.Context) error {
	query := url.Values{}
	query.Set("owner", ctx.String("owner"))
	query.Set("registry", ctx.String("registry"))
	query.Set("certificate", ctx.String("certificate"))
	return getJSON(ctx, fmt.Sprintf("/v1/balances?%s", query.Encode()))
}
