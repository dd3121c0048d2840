package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var createendpoint = cli.Command{
	Name:  "createendpoint",
	Usage: "create a wallet endpoint backed by a new HD account",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "owner",
			Usage:    "owner reference of the endpoint",
			Required: true,
		},
	},
	Action: createEndpointAction,
}

var registerendpoint = cli.Command{
	Name:  "registerendpoint",
	Usage: "register a counterparty endpoint by its public key root and webhook url",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "reference",
			Usage:    "reference name of the counterparty",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "pubkey",
			Usage:    "extended public key root of the counterparty endpoint",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "url",
			Usage:    "webhook url where deposit notifications are delivered",
			Required: true,
		},
	},
	Action: registerEndpointAction,
}

var listendpoints = cli.Command{
	Name:  "listendpoints",
	Usage: "list the endpoints of an owner",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "owner",
			Usage:    "owner reference to list endpoints for",
			Required: true,
		},
	},
	Action: listEndpointsAction,
}

func createEndpointAction(ctx *cli.Context) error {
	return postJSON(ctx, "/v1/endpoints", map[string]string{
		"owner": ctx.String("owner"),
	})
}

func registerEndpointAction(ctx *cli.Context) error {
	return postJSON(ctx, "/v1/endpoints/external", map[string]string{
		"reference": ctx.String("reference"),
		"publicKey": ctx.String("pubkey"),
		"remoteUrl": ctx.String("url"),
	})
}

func listEndpointsAction(ctx *cli.Context) error {
	return getJSON(ctx, fmt.Sprintf("/v1/endpoints?owner=%s", ctx.String("owner")))
}
